// Defines rate limit tiers and routing rules.

package ratelimit

import (
	"net/http"
	"strings"

	"github.com/maruel/entrystore/internal/storage"
)

// Tier is a named limiter.
type Tier struct {
	Name    string
	Limiter *Limiter
}

// Config holds the limiters of each tier. A nil tier is unlimited.
type Config struct {
	Write *Tier
	Read  *Tier
}

// NewConfig builds the tiers from the configured per-minute rates. The burst is
// a tenth of the rate, so a client can't spend a whole minute's budget at once.
func NewConfig(rl storage.RateLimits) *Config {
	return &Config{
		Write: newTier("write", rl.WriteRatePerMin),
		Read:  newTier("read", rl.ReadRatePerMin),
	}
}

func newTier(name string, perMin int) *Tier {
	if perMin <= 0 {
		return nil
	}
	return &Tier{Name: name, Limiter: NewLimiter(perMin, perMin/10)}
}

// Match returns the tier limiting the request, or nil when it is not limited.
// Only the entry endpoints are limited.
func (c *Config) Match(method, path string) *Tier {
	if c == nil || !isEntriesPath(path) {
		return nil
	}
	switch method {
	case http.MethodPost:
		return c.Write
	case http.MethodGet:
		return c.Read
	default:
		return nil
	}
}

// Close stops all limiter cleanup goroutines.
func (c *Config) Close() {
	if c == nil {
		return
	}
	for _, t := range []*Tier{c.Write, c.Read} {
		if t != nil {
			t.Limiter.Close()
		}
	}
}

func isEntriesPath(path string) bool {
	path = strings.TrimSuffix(path, "/")
	return path == "/entries" || path == "/api/entries"
}
