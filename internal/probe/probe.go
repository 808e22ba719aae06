// Package probe performs single TCP connect attempts and classifies them.
package probe

import (
	"context"
	"errors"
	"net"
	"os"
	"strconv"
	"syscall"
	"time"

	"github.com/L1nMay/porty/internal/logger"
	"github.com/L1nMay/porty/internal/model"
)

const DefaultTimeout = time.Second

// Dialer is the subset of net.Dialer the prober needs.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

type Prober struct {
	Timeout time.Duration
	Dialer  Dialer
}

func New(timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Prober{
		Timeout: timeout,
		Dialer: &net.Dialer{
			Timeout:   timeout,
			KeepAlive: -1,
		},
	}
}

// Probe makes exactly one connection attempt to target:port. An established
// connection is closed immediately without exchanging data.
func (p *Prober) Probe(ctx context.Context, target string, port int) model.Outcome {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	addr := net.JoinHostPort(target, strconv.Itoa(port))
	start := time.Now()
	conn, err := p.Dialer.DialContext(ctx, "tcp", addr)
	rtt := time.Since(start)

	out := model.Outcome{RTTMillis: rtt.Milliseconds()}
	if err == nil {
		_ = conn.Close()
		out.State = model.StateOpen
		logger.Debugf("probe %s open rtt=%s", addr, rtt)
		return out
	}

	out.State, out.Cause = Classify(err)
	logger.Debugf("probe %s %s: %v", addr, out.State, err)
	return out
}

// Classify maps a dial error to a non-open state and a short cause.
func Classify(err error) (model.State, string) {
	switch {
	case err == nil:
		return model.StateOpen, ""
	case errors.Is(err, context.DeadlineExceeded), isTimeout(err):
		return model.StateFiltered, "timeout"
	case errors.Is(err, syscall.ECONNREFUSED):
		return model.StateClosed, "connection refused"
	case errors.Is(err, syscall.EHOSTUNREACH):
		return model.StateClosed, "host unreachable"
	case errors.Is(err, syscall.ENETUNREACH):
		return model.StateClosed, "network unreachable"
	case errors.Is(err, syscall.ECONNRESET):
		return model.StateClosed, "connection reset"
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return model.StateError, "dns: " + dnsErr.Err
	}
	var sysErr *os.SyscallError
	if errors.As(err, &sysErr) {
		return model.StateError, sysErr.Error()
	}
	return model.StateError, err.Error()
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
