package ports

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/L1nMay/porty/internal/catalog"
	"github.com/L1nMay/porty/internal/model"
)

const (
	MinPort = 0
	MaxPort = 65535

	DefaultTarget = "127.0.0.1"
)

var (
	ErrInvalidRange    = errors.New("invalid port range")
	ErrInvalidArgument = errors.New("invalid argument")
)

// Selection tells the resolver where ports come from. Exactly one of the
// concrete types ByRange or ByCatalog.
type Selection interface {
	fmt.Stringer
	resolve(ctx context.Context) ([]model.PortSpec, error)
}

// ByRange covers every port in [Start, End].
type ByRange struct {
	Start int
	End   int
}

func (r ByRange) String() string {
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

func (r ByRange) Validate() error {
	if r.Start < MinPort || r.Start > MaxPort {
		return fmt.Errorf("%w: start port %d outside %d-%d", ErrInvalidArgument, r.Start, MinPort, MaxPort)
	}
	if r.End < MinPort || r.End > MaxPort {
		return fmt.Errorf("%w: end port %d outside %d-%d", ErrInvalidArgument, r.End, MinPort, MaxPort)
	}
	if r.End < r.Start {
		return fmt.Errorf("%w: end port %d is before start port %d", ErrInvalidRange, r.End, r.Start)
	}
	return nil
}

func (r ByRange) Len() int {
	return r.End - r.Start + 1
}

func (r ByRange) resolve(_ context.Context) ([]model.PortSpec, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	out := make([]model.PortSpec, 0, r.Len())
	for p := r.Start; p <= r.End; p++ {
		out = append(out, model.PortSpec{
			Port:        p,
			Protocol:    model.UnknownProtocol,
			Description: model.ScannedDescription,
		})
	}
	return out, nil
}

// ByCatalog uses a reference table verbatim, in catalog order.
type ByCatalog struct {
	Source catalog.Source
	Name   string
}

func (c ByCatalog) String() string {
	if c.Name != "" {
		return "catalog " + c.Name
	}
	return "catalog"
}

func (c ByCatalog) resolve(ctx context.Context) ([]model.PortSpec, error) {
	if c.Source == nil {
		return nil, fmt.Errorf("%w: no catalog source configured", ErrInvalidArgument)
	}
	specs, err := c.Source.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load port catalog: %w", err)
	}
	return specs, nil
}

// Resolve turns a selection into the ordered list of ports to probe.
func Resolve(ctx context.Context, sel Selection) ([]model.PortSpec, error) {
	if sel == nil {
		return nil, fmt.Errorf("%w: no port selection", ErrInvalidArgument)
	}
	return sel.resolve(ctx)
}

// Args is the positional command line: [target] [start] [end].
type Args struct {
	Target string
	Range  *ByRange
}

// ParseArgs reads the positional surface. No range arguments selects the
// catalog; a single port scans just that port.
func ParseArgs(args []string) (Args, error) {
	if len(args) > 3 {
		return Args{}, fmt.Errorf("%w: expected at most 3 arguments, got %d", ErrInvalidArgument, len(args))
	}

	out := Args{Target: DefaultTarget}
	if len(args) > 0 {
		t := strings.TrimSpace(args[0])
		if t == "" {
			return Args{}, fmt.Errorf("%w: empty target", ErrInvalidArgument)
		}
		out.Target = t
	}
	if len(args) < 2 {
		return out, nil
	}

	start, err := parsePort("start", args[1])
	if err != nil {
		return Args{}, err
	}
	end := start
	if len(args) == 3 {
		if end, err = parsePort("end", args[2]); err != nil {
			return Args{}, err
		}
	}

	r := ByRange{Start: start, End: end}
	if err := r.Validate(); err != nil {
		return Args{}, err
	}
	out.Range = &r
	return out, nil
}

// Selection returns the range when one was given, otherwise the catalog.
func (a Args) Selection(src catalog.Source, name string) Selection {
	if a.Range != nil {
		return *a.Range
	}
	return ByCatalog{Source: src, Name: name}
}

func parsePort(which, s string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %s port %q is not a number", ErrInvalidArgument, which, s)
	}
	if v < MinPort || v > MaxPort {
		return 0, fmt.Errorf("%w: %s port %d outside %d-%d", ErrInvalidArgument, which, v, MinPort, MaxPort)
	}
	return v, nil
}
