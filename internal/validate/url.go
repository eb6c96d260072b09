// Package validate holds small, focused Validate* functions, each
// returning a sentinel or typed error.
package validate

import (
	"net"
	"net/url"
	"strings"

	"github.com/socrates8300/openchime/internal/ocerr"
)

var privateCIDRs = mustParseCIDRs(
	"127.0.0.0/8",
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
)

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			panic(err)
		}
		nets = append(nets, n)
	}
	return nets
}

// ValidateICSURL requires an https scheme and a host that is non-empty
// and not localhost or in a private IPv4 range.
func ValidateICSURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return ocerr.New(ocerr.ConfigInvalid, "ICS URL cannot be empty")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return ocerr.Wrap(ocerr.ConfigInvalid, "ICS URL is malformed", err)
	}

	if u.Scheme != "https" {
		return ocerr.New(ocerr.ConfigInvalid, "ICS URL must use https")
	}

	host := u.Hostname()
	if host == "" {
		return ocerr.New(ocerr.ConfigInvalid, "ICS URL must have a host")
	}

	if strings.EqualFold(host, "localhost") {
		return ocerr.New(ocerr.ConfigInvalid, "ICS URL must not point to localhost")
	}

	if ip := net.ParseIP(host); ip != nil {
		if v4 := ip.To4(); v4 != nil {
			for _, n := range privateCIDRs {
				if n.Contains(v4) {
					return ocerr.New(ocerr.ConfigInvalid, "ICS URL must not point to a private address range")
				}
			}
		}
	}

	return nil
}
