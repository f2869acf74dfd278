package crawler

import (
	"fmt"
	"net/url"
	"strings"
)

// Origin returns the host an address belongs to. It is the partition key for
// per-host admission control.
//
// The port is not part of the origin, and the host is lower-cased because
// host names are case-insensitive. The address itself is never rewritten.
func Origin(address string) (string, error) {
	u, err := url.Parse(address)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %w", ErrMalformedAddress, address, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w: %q has no scheme or host", ErrMalformedAddress, address)
	}

	host := u.Hostname()
	if host == "" {
		return "", fmt.Errorf("%w: %q has an empty host", ErrMalformedAddress, address)
	}
	return strings.ToLower(host), nil
}
