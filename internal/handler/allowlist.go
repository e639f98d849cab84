package handler

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

const forbiddenBody = "You are not allowed to see this!"

// AllowList matches caller addresses against single IPs and CIDR ranges.
type AllowList struct {
	prefixes []netip.Prefix
}

// NewAllowList parses entries such as "127.0.0.1", "::1" or "10.0.0.0/8".
func NewAllowList(entries []string) (*AllowList, error) {
	list := &AllowList{}

	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("allowed address %q: %w", entry, err)
			}
			list.prefixes = append(list.prefixes, prefix.Masked())
			continue
		}

		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("allowed address %q: %w", entry, err)
		}
		addr = addr.Unmap()
		list.prefixes = append(list.prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}

	return list, nil
}

// Allows reports whether remoteAddr, in host:port or bare form, is listed.
func (l *AllowList) Allows(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}

	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()

	for _, prefix := range l.prefixes {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// Wrap answers 403 to callers outside the list. Only the connection's peer
// address is trusted; forwarding headers are ignored.
func (l *AllowList) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allows(r.RemoteAddr) {
			http.Error(w, forbiddenBody, http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
