package scan

import (
	"fmt"
	"net"
	"sort"
	"strings"

	"github.com/L1nMay/porty/internal/catalog"
	"github.com/L1nMay/porty/internal/config"
	"github.com/L1nMay/porty/internal/model"
	"github.com/L1nMay/porty/internal/ports"
)

// Plan is everything one scan needs, fixed before it starts.
type Plan struct {
	Target          string          `json:"target"`
	Selection       ports.Selection `json:"-"`
	Ports           string          `json:"ports"`
	ICMP            bool            `json:"icmp"`
	Concurrency     int             `json:"concurrency"`
	GroupByProtocol bool            `json:"group_by_protocol"`
	AllowPublic     bool            `json:"-"`

	// LocalNetworks replaces interface discovery in the target check when non-nil.
	LocalNetworks []*net.IPNet `json:"-"`
}

// NewPlan combines the parsed positional arguments with the config. A target
// given on the command line wins over the configured one.
func NewPlan(cfg *config.Config, args ports.Args, src catalog.Source, explicitTarget bool) *Plan {
	target := cfg.Target
	if explicitTarget {
		target = args.Target
	}
	sel := args.Selection(src, cfg.CatalogSource)
	return &Plan{
		Target:          target,
		Selection:       sel,
		Ports:           sel.String(),
		ICMP:            cfg.ICMPEnabled(),
		Concurrency:     cfg.Concurrency,
		GroupByProtocol: cfg.GroupByProtocol,
		AllowPublic:     true,
	}
}

func (p *Plan) Validate() error {
	if p.Selection == nil {
		return fmt.Errorf("%w: no port selection", ports.ErrInvalidArgument)
	}
	if p.Concurrency < 0 {
		return fmt.Errorf("%w: concurrency %d", ports.ErrInvalidArgument, p.Concurrency)
	}
	policy := TargetPolicy{AllowPublic: p.AllowPublic, LocalNetworks: p.LocalNetworks}
	return policy.Check(p.Target)
}

func (p *Plan) Strategy() Strategy {
	return StrategyFor(p.Concurrency)
}

// GroupByProtocol returns a copy of specs ordered by protocol name, compared
// case-insensitively. Ports sharing a protocol keep their relative order.
func GroupByProtocol(specs []model.PortSpec) []model.PortSpec {
	out := make([]model.PortSpec, len(specs))
	copy(out, specs)
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Protocol) < strings.ToLower(out[j].Protocol)
	})
	return out
}
