// Logging and .env handling.

package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// newLogger returns a tint logger writing to w. Colors are only used on a
// terminal.
func newLogger(w *os.File, level slog.Leveler, underSystemd bool) *slog.Logger {
	return slog.New(tint.NewHandler(colorable.NewColorable(w), &tint.Options{
		Level:       level,
		TimeFormat:  "15:04:05.000",
		NoColor:     !isatty.IsTerminal(w.Fd()),
		ReplaceAttr: replaceAttr(underSystemd),
	}))
}

// replaceAttr drops empty attributes, loopback client IPs and, under systemd
// which adds its own, the timestamp.
func replaceAttr(underSystemd bool) func([]string, slog.Attr) slog.Attr {
	return func(groups []string, a slog.Attr) slog.Attr {
		if underSystemd && a.Key == slog.TimeKey && len(groups) == 0 {
			return slog.Attr{}
		}
		if a.Key == "ip" {
			if v := a.Value.String(); v == "127.0.0.1" || v == "::1" {
				return slog.Attr{}
			}
		}
		skip := false
		switch t := a.Value.Any().(type) {
		case string:
			skip = t == ""
		case bool:
			skip = !t
		case uint64:
			skip = t == 0
		case int64:
			skip = t == 0
		case float64:
			skip = t == 0
		case time.Time:
			skip = t.IsZero()
		case time.Duration:
			skip = t == 0
		case nil:
			skip = true
		}
		if skip {
			return slog.Attr{}
		}
		return a
	}
}

func setLevel(ll *slog.LevelVar, level string) error {
	switch level {
	case "debug":
		ll.Set(slog.LevelDebug)
	case "info":
		ll.Set(slog.LevelInfo)
	case "warn":
		ll.Set(slog.LevelWarn)
	case "error":
		ll.Set(slog.LevelError)
	default:
		return fmt.Errorf("unknown log level: %q", level)
	}
	return nil
}

// envFlags maps flag names to the .env keys that can set them.
var envFlags = map[string]string{
	"http":      "HTTP",
	"log-level": "LOG_LEVEL",
	"git":       "GIT",
	"seed":      "SEED",
	"geo-db":    "GEO_DB",
}

// applyDotEnv sets the flags of fs that were not given on the command line
// from env. It must be called once, right after parsing: flags it sets count as
// given on a later call.
func applyDotEnv(fs *flag.FlagSet, env map[string]string) error {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	for name, key := range envFlags {
		v := env[key]
		if set[name] || v == "" || fs.Lookup(name) == nil {
			continue
		}
		if err := fs.Set(name, v); err != nil {
			return fmt.Errorf("invalid %s in .env: %w", key, err)
		}
	}
	return nil
}

func loadDotEnv(dataDir string) (map[string]string, error) {
	env := make(map[string]string)
	path := filepath.Join(dataDir, ".env")
	raw, err := os.ReadFile(path) //nolint:gosec // G304: path is constructed from dataDir flag, not user input
	if err != nil {
		if os.IsNotExist(err) {
			return env, nil
		}
		return nil, err
	}
	for line := range strings.SplitSeq(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)
		if strings.HasPrefix(val, "'") || strings.HasSuffix(val, "'") {
			return nil, fmt.Errorf("single quotes are not supported in .env: %s", line)
		}
		if strings.HasPrefix(val, "\"") {
			unquoted, err := strconv.Unquote(val)
			if err != nil {
				return nil, fmt.Errorf("failed to unquote %s: %w", key, err)
			}
			val = unquoted
		}
		env[key] = val
	}
	return env, nil
}
