package inspector

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
)

// HostResolver resolves host names for the URL policy. *net.Resolver satisfies it.
type HostResolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// blockedPrefixes are the address ranges an inspected agent may not live in
// unless private networks are explicitly allowed.
var blockedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("127.0.0.0/8"),    // loopback
	netip.MustParsePrefix("10.0.0.0/8"),     // private
	netip.MustParsePrefix("172.16.0.0/12"),  // private
	netip.MustParsePrefix("192.168.0.0/16"), // private
	netip.MustParsePrefix("169.254.0.0/16"), // link-local, cloud metadata
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("224.0.0.0/4"), // multicast
	netip.MustParsePrefix("240.0.0.0/4"), // reserved
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("::/128"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("fe80::/10"),
	netip.MustParsePrefix("ff00::/8"),
}

var localHostnames = map[string]bool{
	"localhost":             true,
	"localhost.localdomain": true,
	"ip6-localhost":         true,
}

// URLPolicy decides which agent URLs the inspector is willing to contact.
type URLPolicy struct {
	// AllowPrivateNetworks disables the localhost and private range checks.
	AllowPrivateNetworks bool
	Resolver             HostResolver
}

// Validate parses raw and checks it against the policy. Validation failures
// are KindValidation; a host that cannot be resolved is KindConnection.
func (p *URLPolicy) Validate(ctx context.Context, raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, validationError("URL is required")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, validationError("Invalid URL format")
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return nil, validationError("URL must use http or https scheme")
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return nil, validationError("URL must include a hostname")
	}
	if u.User != nil {
		return nil, validationError("URL must not contain credentials")
	}

	if p.AllowPrivateNetworks {
		return u, nil
	}

	if localHostnames[host] || strings.HasSuffix(host, ".localhost") {
		return nil, validationError("Access to localhost is not allowed")
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		if isBlocked(addr) {
			return nil, validationError("Access to private/internal IP addresses is not allowed")
		}
		return u, nil
	}

	resolver := p.Resolver
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	addrs, err := resolver.LookupIPAddr(ctx, host)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && !dnsErr.IsNotFound && dnsErr.IsTimeout {
			return nil, newError(KindTimeout, "", fmt.Errorf("timed out resolving hostname: %s", host))
		}
		return nil, newError(KindConnection, "", fmt.Errorf("Unable to resolve hostname: %s", host))
	}
	for _, ia := range addrs {
		addr, ok := netip.AddrFromSlice(ia.IP)
		if !ok {
			continue
		}
		if isBlocked(addr) {
			return nil, validationError("Access to private/internal IP addresses is not allowed")
		}
	}

	return u, nil
}

// dialControl rejects connections to blocked addresses. It is installed as
// net.Dialer.Control and sees the resolved IP of every outbound connection.
func (p *URLPolicy) dialControl(_, address string, _ syscall.RawConn) error {
	if p.AllowPrivateNetworks {
		return nil
	}
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("invalid dial address %q: %w", address, err)
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return fmt.Errorf("invalid dial address %q: %w", address, err)
	}
	if isBlocked(addr) {
		return validationError("Access to private/internal IP addresses is not allowed")
	}
	return nil
}

func isBlocked(addr netip.Addr) bool {
	addr = addr.Unmap().WithZone("")
	for _, prefix := range blockedPrefixes {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}
