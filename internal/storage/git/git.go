// Versions the data directory with go-git (pure Go, no git binary dependency).

package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Author identifies who made a change for git commits.
type Author struct {
	Name  string
	Email string
}

// Commit represents a commit in git history.
type Commit struct {
	Hash        string    `json:"hash"`
	Message     string    `json:"message"` // Subject line.
	Author      string    `json:"author"`
	AuthorEmail string    `json:"author_email"`
	AuthorDate  time.Time `json:"author_date"`
}

// Repo is a git repository rooted at a data directory.
type Repo struct {
	dir          string
	defaultName  string
	defaultEmail string
	repo         *gogit.Repository
	mu           sync.Mutex
}

// Open opens the repository in dir, initializing it when needed.
func Open(_ context.Context, dir, defaultName, defaultEmail string) (*Repo, error) {
	if defaultName == "" {
		defaultName = "entrystore"
	}
	if defaultEmail == "" {
		defaultEmail = "entrystore@localhost"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return nil, fmt.Errorf("failed to create repo directory: %w", err)
	}
	repo, err := gogit.PlainOpen(dir)
	if errors.Is(err, gogit.ErrRepositoryNotExists) {
		if repo, err = gogit.PlainInit(dir, false); err != nil {
			return nil, fmt.Errorf("failed to initialize git repo: %w", err)
		}
		cfg, err := repo.Config()
		if err != nil {
			return nil, fmt.Errorf("failed to read git config: %w", err)
		}
		cfg.User.Name = defaultName
		cfg.User.Email = defaultEmail
		if err := repo.SetConfig(cfg); err != nil {
			return nil, fmt.Errorf("failed to write git config: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to open git repo: %w", err)
	}
	return &Repo{dir: dir, defaultName: defaultName, defaultEmail: defaultEmail, repo: repo}, nil
}

// Dir returns the working directory.
func (r *Repo) Dir() string {
	return r.dir
}

// Commit stages files, relative to the repository root, and commits them.
//
// Files that don't exist yet are skipped. No commit is made when none of the
// files changed since the last commit.
func (r *Repo) Commit(_ context.Context, author Author, msg string, files ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}
	var staged []string
	for _, f := range files {
		if _, err := os.Stat(filepath.Join(r.dir, f)); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if _, err := w.Add(f); err != nil {
			return fmt.Errorf("failed to stage %s: %w", f, err)
		}
		staged = append(staged, f)
	}
	status, err := w.Status()
	if err != nil {
		return fmt.Errorf("failed to get worktree status: %w", err)
	}
	changed := false
	for _, f := range staged {
		if s := status.File(f).Staging; s != gogit.Unmodified && s != gogit.Untracked {
			changed = true
			break
		}
	}
	if !changed {
		return nil
	}

	name := author.Name
	email := author.Email
	if name == "" {
		name = r.defaultName
	}
	if email == "" {
		email = r.defaultEmail
	}
	now := time.Now()
	_, err = w.Commit(msg, &gogit.CommitOptions{
		Author:    &object.Signature{Name: name, Email: email, When: now},
		Committer: &object.Signature{Name: r.defaultName, Email: r.defaultEmail, When: now},
	})
	if err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// CommitCount returns the total number of commits in the repository.
func (r *Repo) CommitCount(_ context.Context) (int, error) {
	iter, err := r.repo.Log(&gogit.LogOptions{})
	if err != nil {
		return 0, nil //nolint:nilerr // no commits yet is not an error
	}
	defer iter.Close()
	n := 0
	for {
		if _, err := iter.Next(); err != nil {
			break
		}
		n++
	}
	return n, nil
}

// History returns the last n commits touching path, newest first.
// n is capped at 1000. If n <= 0, defaults to 1000.
func (r *Repo) History(_ context.Context, path string, n int) ([]*Commit, error) {
	if n <= 0 || n > 1000 {
		n = 1000
	}
	opts := &gogit.LogOptions{}
	if path != "" {
		opts.FileName = &path
	}
	iter, err := r.repo.Log(opts)
	if err != nil {
		return nil, nil //nolint:nilerr // no commits yet is not an error
	}
	defer iter.Close()
	var out []*Commit
	for range n {
		c, err := iter.Next()
		if err != nil {
			break
		}
		subject, _, _ := strings.Cut(c.Message, "\n")
		out = append(out, &Commit{
			Hash:        c.Hash.String(),
			Message:     subject,
			Author:      c.Author.Name,
			AuthorEmail: c.Author.Email,
			AuthorDate:  c.Author.When,
		})
	}
	return out, nil
}
