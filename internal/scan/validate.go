package scan

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/L1nMay/porty/internal/envdetect"
)

var ErrInvalidTarget = errors.New("invalid target")

// TargetPolicy decides which single hosts may be scanned.
//   - hostnames and IP literals are accepted, CIDR ranges never (one host per scan)
//   - loopback, RFC1918/ULA and link-local addresses are always allowed
//   - other addresses need AllowPublic, or must sit inside a local interface network
type TargetPolicy struct {
	AllowPublic bool
	// LocalNetworks overrides interface discovery, mainly for tests.
	LocalNetworks []*net.IPNet
}

func (p TargetPolicy) Check(raw string) error {
	t := strings.TrimSpace(raw)
	if t == "" {
		return fmt.Errorf("%w: empty", ErrInvalidTarget)
	}
	if strings.ContainsAny(t, " \t/\\@") {
		if _, _, err := net.ParseCIDR(t); err == nil {
			return fmt.Errorf("%w: %s is a network, scan one host at a time", ErrInvalidTarget, t)
		}
		return fmt.Errorf("%w: %s", ErrInvalidTarget, t)
	}

	ip := net.ParseIP(t)
	if ip == nil {
		if !isHostname(t) {
			return fmt.Errorf("%w: %s", ErrInvalidTarget, t)
		}
		// resolved by the OS on each connect
		return nil
	}

	if p.AllowPublic || isSafeIP(ip) {
		return nil
	}
	for _, n := range p.localNetworks() {
		if n.Contains(ip) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s is outside allowed networks", ErrInvalidTarget, t)
}

func (p TargetPolicy) localNetworks() []*net.IPNet {
	if p.LocalNetworks != nil {
		return p.LocalNetworks
	}
	nets, err := envdetect.DetectLocalNetworks(false)
	if err != nil {
		return nil
	}
	out := make([]*net.IPNet, 0, len(nets))
	for _, n := range nets {
		out = append(out, n.Net)
	}
	return out
}

func isSafeIP(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast()
}

func isHostname(s string) bool {
	if len(s) > 253 || strings.Contains(s, ":") {
		return false
	}
	for _, label := range strings.Split(strings.TrimSuffix(s, "."), ".") {
		if label == "" || len(label) > 63 {
			return false
		}
		if strings.HasPrefix(label, "-") || strings.HasSuffix(label, "-") {
			return false
		}
		for _, r := range label {
			if !(r == '-' || r == '_' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
				return false
			}
		}
	}
	return true
}
