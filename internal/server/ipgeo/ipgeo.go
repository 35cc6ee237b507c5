// Package ipgeo resolves client IP addresses to country codes using a MaxMind
// MMDB file.
package ipgeo

import (
	"net/netip"

	"github.com/oschwald/maxminddb-golang/v2"
)

const (
	// Local is returned for loopback, private, link-local and unspecified addresses.
	Local = "local"
	// Tailscale is returned for the Tailscale CGNAT range.
	Tailscale = "tailscale"
)

// Checker resolves IP addresses to ISO 3166-1 alpha-2 country codes.
//
// A nil Checker is valid: it still classifies local and Tailscale addresses
// but returns "" for public ones.
type Checker struct {
	reader *maxminddb.Reader
}

// Open opens an MMDB file for country lookups. An empty path returns a nil
// Checker.
func Open(dbPath string) (*Checker, error) {
	if dbPath == "" {
		return nil, nil
	}
	r, err := maxminddb.Open(dbPath)
	if err != nil {
		return nil, err
	}
	return &Checker{reader: r}, nil
}

// Close releases the MMDB reader resources.
func (c *Checker) Close() error {
	if c == nil {
		return nil
	}
	return c.reader.Close()
}

type countryRecord struct {
	Country struct {
		ISOCode string `maxminddb:"iso_code"`
	} `maxminddb:"country"`
}

// 100.64.0.0/10
var tailscalePrefix = netip.MustParsePrefix("100.64.0.0/10")

// CountryCode returns the country code for ipStr, Local, Tailscale, or "" when
// the address cannot be parsed or resolved.
func (c *Checker) CountryCode(ipStr string) string {
	addr, err := netip.ParseAddr(ipStr)
	if err != nil {
		return ""
	}
	if cc := classify(addr.Unmap()); cc != "" {
		return cc
	}
	if c == nil {
		return ""
	}
	var rec countryRecord
	if err := c.reader.Lookup(addr).Decode(&rec); err != nil {
		return ""
	}
	return rec.Country.ISOCode
}

func classify(addr netip.Addr) string {
	switch {
	case addr.IsLoopback(), addr.IsPrivate(), addr.IsUnspecified(), addr.IsLinkLocalUnicast():
		return Local
	case tailscalePrefix.Contains(addr):
		return Tailscale
	default:
		return ""
	}
}
