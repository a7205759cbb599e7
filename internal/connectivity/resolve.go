package connectivity

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"time"
)

// Resolver looks up broker host names. *net.Resolver satisfies it.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// literalAddress returns host:port when host is an IP literal.
func literalAddress(host string, port int) (string, bool) {
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return "", false
	}
	return net.JoinHostPort(addr.String(), strconv.Itoa(port)), true
}

// resolveBroker turns host into a dialable host:port, going through r with
// a bounded timeout for names.
func resolveBroker(ctx context.Context, r Resolver, host string, port int, timeout time.Duration) (string, error) {
	if addr, ok := literalAddress(host, port); ok {
		return addr, nil
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	addrs, err := r.LookupHost(ctx, host)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrResolveFailed, host, err)
	}
	if len(addrs) == 0 {
		return "", fmt.Errorf("%w: %s: no addresses", ErrResolveFailed, host)
	}

	return net.JoinHostPort(addrs[0], strconv.Itoa(port)), nil
}
