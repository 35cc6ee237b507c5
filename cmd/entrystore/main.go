// Package main is the entry point for the entrystore server.
//
// entrystore keeps key/content entries in a JSON file, logs every edit to an
// append-only history file and serves them over HTTP along with a small web
// UI. Configuration is read from CLI flags, a .env file in the data directory
// and server_config.json (quotas and rate limits).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/maruel/entrystore/frontend"
	"github.com/maruel/entrystore/internal/server"
	"github.com/maruel/entrystore/internal/server/ipgeo"
	"github.com/maruel/entrystore/internal/storage"
	"github.com/maruel/entrystore/internal/storage/git"
)

func main() {
	if err := mainImpl(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "entrystore: %v\n", err)
		os.Exit(1)
	}
}

func mainImpl() error {
	version := flag.Bool("version", false, "Print version and exit")
	httpAddr := flag.String("http", "localhost:8080", "Address to listen on (e.g., localhost:8080, :8080, 0.0.0.0:8080)")
	dataDir := flag.String("data-dir", "./data", "Data directory holding store.json and history.log")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	useGit := flag.Bool("git", false, "Commit store.json and history.log to a git repository in the data directory after every change")
	seedPath := flag.String("seed", "", "YAML manifest of entries to create at startup when missing (optional)")
	geoDB := flag.String("geo-db", "", "Path to MaxMind MMDB file for IP geolocation (optional)")
	flag.Parse()
	if len(flag.Args()) > 0 {
		return fmt.Errorf("unknown arguments: %v", flag.Args())
	}
	if *version {
		printVersion()
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()
	ll := &slog.LevelVar{}
	slog.SetDefault(newLogger(os.Stderr, ll, os.Getenv("JOURNAL_STREAM") != ""))

	if err := os.MkdirAll(*dataDir, 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	env, err := loadDotEnv(*dataDir)
	if err != nil {
		return err
	}
	if err := applyDotEnv(flag.CommandLine, env); err != nil {
		return err
	}
	if err := setLevel(ll, *logLevel); err != nil {
		return err
	}
	serverCfg, err := storage.LoadServerConfig(*dataDir)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", storage.ServerConfigFileName, err)
	}

	store, err := storage.NewStore(*dataDir)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	if *seedPath != "" {
		m, err := storage.ParseSeedFile(*seedPath)
		if err != nil {
			return err
		}
		n, err := store.Seed(ctx, m.Entries)
		if err != nil {
			return fmt.Errorf("failed to seed store: %w", err)
		}
		slog.InfoContext(ctx, "Seeded store", "manifest", *seedPath, "created", n, "total", len(m.Entries))
	}

	var committer server.Committer
	if *useGit {
		repo, err := git.Open(ctx, *dataDir, "", "")
		if err != nil {
			return err
		}
		if err := repo.Commit(ctx, git.Author{}, "Startup snapshot", store.Files()...); err != nil {
			return err
		}
		n, _ := repo.CommitCount(ctx)
		attrs := []any{"dir", repo.Dir(), "commits", n}
		if last, err := repo.History(ctx, storage.StoreFileName, 1); err == nil && len(last) == 1 {
			attrs = append(attrs, "last", last[0].Hash[:12], "lastDate", last[0].AuthorDate)
		}
		slog.InfoContext(ctx, "Git versioning enabled", attrs...)
		committer = repo
	}

	geoChecker, err := ipgeo.Open(*geoDB)
	if err != nil {
		return fmt.Errorf("failed to open geo database: %w", err)
	}
	if geoChecker != nil {
		defer func() { _ = geoChecker.Close() }()
		slog.InfoContext(ctx, "IP geolocation enabled", "db", *geoDB)
	}

	// Watch own executable for modifications (for development restarts)
	if err := watchExecutable(ctx, stop); err != nil {
		return fmt.Errorf("failed to watch executable: %w", err)
	}

	buildVersion, _, _, _ := getBuildInfo()
	router := server.NewRouter(&server.Options{
		Store:     store,
		Config:    serverCfg,
		Version:   buildVersion,
		Committer: committer,
		Geo:       geoChecker,
		UI:        frontend.Root(),
	})
	defer router.Close()

	// ":8080" becomes "localhost:8080"
	addr := *httpAddr
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           router,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.InfoContext(ctx, "Starting server", "addr", addr, "data", *dataDir, "version", buildVersion)
		serverErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		slog.InfoContext(ctx, "Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		slog.InfoContext(ctx, "Server stopped")
	}
	return nil
}

func printVersion() {
	version, goVersion, revision, dirty := getBuildInfo()
	fmt.Printf("entrystore %s\n", version)
	fmt.Printf("  Go version: %s\n", goVersion)
	fmt.Printf("  Revision:   %s\n", revision)
	if dirty {
		fmt.Printf("  Modified:   true\n")
	}
}

func getBuildInfo() (version, goVersion, revision string, dirty bool) {
	version = "unknown"
	goVersion = "unknown"
	revision = "unknown"
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	version = info.Main.Version
	if version == "" || version == "(devel)" {
		version = "dev"
	}
	goVersion = info.GoVersion
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}
	return
}

// watchExecutable watches the current executable for modifications and calls
// stop to trigger graceful shutdown when detected.
func watchExecutable(ctx context.Context, stop context.CancelFunc) error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(exe); err != nil {
		_ = w.Close()
		return err
	}
	go func() {
		defer func() { _ = w.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Chmod) {
					slog.InfoContext(ctx, "Executable modified, initiating shutdown")
					stop()
					return
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.WarnContext(ctx, "Error watching executable", "err", err)
			}
		}
	}()
	return nil
}
