// Package icmp answers whether a host replies to a single ICMP echo.
// Every failure is reported as unreachable; nothing here aborts a scan.
package icmp

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/go-ping/ping"

	"github.com/L1nMay/porty/internal/logger"
	"github.com/L1nMay/porty/internal/model"
)

// Timeout bounds the whole echo exchange.
const Timeout = 2 * time.Second

// Pinger is the part of *ping.Pinger the checker drives.
type Pinger interface {
	Run() error
	Stop()
	Statistics() *ping.Statistics
}

type PingerFactory func(addr string, timeout time.Duration, privileged bool) (Pinger, error)

// Resolver is satisfied by *net.Resolver.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

type Checker struct {
	Timeout    time.Duration
	Privileged bool
	Resolver   Resolver
	NewPinger  PingerFactory
}

func NewChecker(privileged bool) *Checker {
	return &Checker{
		Timeout:    Timeout,
		Privileged: privileged,
		Resolver:   net.DefaultResolver,
		NewPinger:  newGoPinger,
	}
}

func newGoPinger(addr string, timeout time.Duration, privileged bool) (Pinger, error) {
	p, err := ping.NewPinger(addr)
	if err != nil {
		return nil, err
	}
	p.Count = 1
	p.Timeout = timeout
	p.SetPrivileged(privileged)
	return p, nil
}

// Check resolves target and sends one echo request to it. When resolution
// fails the raw target string is handed to the pinger and ResolvedIP stays empty.
func (c *Checker) Check(ctx context.Context, target string) model.Reachability {
	var out model.Reachability

	addr := target
	if ip, err := c.resolve(ctx, target); err != nil {
		logger.Errorf("resolve %s: %v", target, err)
	} else {
		out.ResolvedIP = ip
		addr = ip
	}

	ok, err := c.ping(ctx, addr)
	if err != nil {
		logger.Errorf("icmp echo %s: %v", addr, err)
		return out
	}
	out.Reachable = ok
	return out
}

func (c *Checker) resolve(ctx context.Context, target string) (string, error) {
	if ip := net.ParseIP(target); ip != nil {
		return ip.String(), nil
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()

	addrs, err := c.Resolver.LookupIPAddr(ctx, target)
	if err != nil {
		return "", err
	}
	if len(addrs) == 0 {
		return "", fmt.Errorf("no addresses for %s", target)
	}
	for _, a := range addrs {
		if a.IP.To4() != nil {
			return a.IP.String(), nil
		}
	}
	return addrs[0].IP.String(), nil
}

func (c *Checker) ping(ctx context.Context, addr string) (bool, error) {
	p, err := c.NewPinger(addr, c.timeout(), c.Privileged)
	if err != nil {
		return false, err
	}

	done := make(chan error, 1)
	go func() { done <- p.Run() }()

	// the pinger enforces its own timeout; this is the backstop
	timer := time.NewTimer(c.timeout() + 500*time.Millisecond)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			return false, err
		}
	case <-timer.C:
		p.Stop()
		<-done
	case <-ctx.Done():
		p.Stop()
		<-done
		return false, ctx.Err()
	}

	st := p.Statistics()
	return st != nil && st.PacketsRecv > 0, nil
}

func (c *Checker) timeout() time.Duration {
	if c.Timeout <= 0 {
		return Timeout
	}
	return c.Timeout
}
