package nat

import (
	"fmt"
	"strings"

	"github.com/easzlab/rvcm/pkg/config"
)

// Protocol is the router's protocol code for a forwarding rule.
type Protocol int

const (
	ProtocolTCP  Protocol = 1
	ProtocolUDP  Protocol = 2
	ProtocolBoth Protocol = 3
)

// String returns the upper-case protocol name used in listings.
func (p Protocol) String() string {
	switch p {
	case ProtocolTCP:
		return "TCP"
	case ProtocolUDP:
		return "UDP"
	case ProtocolBoth:
		return "BOTH"
	default:
		return fmt.Sprintf("unknown(%d)", int(p))
	}
}

// Valid reports whether p is a code the router understands.
func (p Protocol) Valid() bool {
	return p >= ProtocolTCP && p <= ProtocolBoth
}

// HasTCP reports whether the rule forwards TCP traffic.
func (p Protocol) HasTCP() bool {
	return p == ProtocolTCP || p == ProtocolBoth
}

// MarshalText encodes the protocol by name in JSON and YAML exports.
func (p Protocol) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("invalid protocol code %d", int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText decodes a protocol name.
func (p *Protocol) UnmarshalText(text []byte) error {
	parsed, err := ParseProtocol(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParseProtocol converts a protocol name (case-insensitive) to a Protocol.
func ParseProtocol(name string) (Protocol, error) {
	switch strings.ToLower(name) {
	case "tcp":
		return ProtocolTCP, nil
	case "udp":
		return ProtocolUDP, nil
	case "both":
		return ProtocolBoth, nil
	default:
		return 0, fmt.Errorf("unsupported protocol: %s (supported: tcp, udp, both)", name)
	}
}

// Rule is a single port forwarding entry.
// Name is a display label; the router does not enforce uniqueness.
type Rule struct {
	Name           string   `json:"name"             yaml:"name"`
	Enabled        bool     `json:"enabled"          yaml:"enabled"`
	Protocol       Protocol `json:"protocol"         yaml:"protocol"`
	PublicPortMin  int      `json:"public_port_min"  yaml:"public_port_min"`
	PublicPortMax  int      `json:"public_port_max"  yaml:"public_port_max"`
	PrivatePortMin int      `json:"private_port_min" yaml:"private_port_min"`
	PrivatePortMax int      `json:"private_port_max" yaml:"private_port_max"`
	TargetHost     int      `json:"target"           yaml:"target"`
}

// String renders the rule in the router's list encoding.
func (r Rule) String() string {
	enabled := 0
	if r.Enabled {
		enabled = 1
	}
	return fmt.Sprintf("%d-%s-%d-%d-%d-%d-%d-%d-0-",
		enabled,
		r.Name,
		r.PublicPortMin,
		r.PublicPortMax,
		int(r.Protocol),
		r.PrivatePortMin,
		r.PrivatePortMax,
		r.TargetHost,
	)
}

// Validate checks that r can be written to the router and read back unchanged.
func (r Rule) Validate() error {
	if err := config.ValidateRuleName(r.Name); err != nil {
		return err
	}
	return r.validateFields()
}

// validateFields checks everything but the name. Rules already on the router
// may carry names this tool would not create.
func (r Rule) validateFields() error {
	if !r.Protocol.Valid() {
		return fmt.Errorf("rule %q: invalid protocol code %d", r.Name, int(r.Protocol))
	}
	for _, port := range []int{r.PublicPortMin, r.PublicPortMax, r.PrivatePortMin, r.PrivatePortMax} {
		if port < 1 || port > 65535 {
			return fmt.Errorf("rule %q: port %d out of range 1-65535", r.Name, port)
		}
	}
	if r.PublicPortMin > r.PublicPortMax {
		return fmt.Errorf("rule %q: public port range %d-%d is inverted", r.Name, r.PublicPortMin, r.PublicPortMax)
	}
	if r.PrivatePortMin > r.PrivatePortMax {
		return fmt.Errorf("rule %q: private port range %d-%d is inverted", r.Name, r.PrivatePortMin, r.PrivatePortMax)
	}
	if r.TargetHost < 0 || r.TargetHost > 255 {
		return fmt.Errorf("rule %q: target must be the last address octet (0-255), got %d", r.Name, r.TargetHost)
	}
	return nil
}

// RuleFromConfig converts a desired rule from the config file into a Rule.
func RuleFromConfig(rc config.RuleConfig) (Rule, error) {
	protocol, err := ParseProtocol(rc.GetProtocol())
	if err != nil {
		return Rule{}, fmt.Errorf("rule %q: %w", rc.Name, err)
	}

	rule := Rule{
		Name:           rc.Name,
		Enabled:        rc.IsEnabled(),
		Protocol:       protocol,
		PublicPortMin:  rc.PublicPortMin,
		PublicPortMax:  rc.GetPublicPortMax(),
		PrivatePortMin: rc.GetPrivatePortMin(),
		PrivatePortMax: rc.GetPrivatePortMax(),
		TargetHost:     rc.Target,
	}
	if err := rule.Validate(); err != nil {
		return Rule{}, err
	}
	return rule, nil
}

// RuleUpdate carries optional new values for Update. Nil fields are left alone.
type RuleUpdate struct {
	PublicPortMin  *int
	PublicPortMax  *int
	PrivatePortMin *int
	PrivatePortMax *int
	TargetHost     *int
	Protocol       *Protocol
}

// IsEmpty reports whether no field is set.
func (u RuleUpdate) IsEmpty() bool {
	return u.PublicPortMin == nil && u.PublicPortMax == nil &&
		u.PrivatePortMin == nil && u.PrivatePortMax == nil &&
		u.TargetHost == nil && u.Protocol == nil
}

// apply overwrites fields of r that differ from u and reports whether any did.
func (u RuleUpdate) apply(r *Rule) bool {
	changed := false
	setInt := func(dst *int, src *int) {
		if src != nil && *dst != *src {
			*dst = *src
			changed = true
		}
	}
	setInt(&r.PublicPortMin, u.PublicPortMin)
	setInt(&r.PublicPortMax, u.PublicPortMax)
	setInt(&r.PrivatePortMin, u.PrivatePortMin)
	setInt(&r.PrivatePortMax, u.PrivatePortMax)
	setInt(&r.TargetHost, u.TargetHost)
	if u.Protocol != nil && r.Protocol != *u.Protocol {
		r.Protocol = *u.Protocol
		changed = true
	}
	return changed
}
