package nat

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/easzlab/rvcm/pkg/router"
)

// ErrMalformedList is wrapped by every error Decode returns for a bad vs_list.
var ErrMalformedList = errors.New("malformed vs_list")

// ParseError describes a vs_list entry that could not be decoded.
type ParseError struct {
	Index  int
	Entry  string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%s: %s", ErrMalformedList, e.Reason)
	}
	return fmt.Sprintf("%s: entry %d %q: %s", ErrMalformedList, e.Index, e.Entry, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return ErrMalformedList
}

// Codec converts between the router's NAT page and a Table. The field layout
// is undocumented firmware behavior, so it is kept behind this interface.
type Codec interface {
	// Decode extracts the rule table from a NAT page. A page without a
	// vs_list line yields an empty table.
	Decode(page string) (Table, error)

	// Encode renders the complete save form for table.
	Encode(table Table) router.Form
}

// NewCodec returns the codec for the RV6688BCM firmware.
func NewCodec() Codec {
	return rv6688Codec{}
}

type rv6688Codec struct{}

const (
	listPrefix     = "var vs_list"
	minRuleFields  = 8
	ruleSeparator  = ";"
	fieldSeparator = "-"
)

func (rv6688Codec) Decode(page string) (Table, error) {
	for _, line := range strings.Split(page, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, listPrefix) {
			continue
		}

		first := strings.IndexByte(line, '"')
		last := strings.LastIndexByte(line, '"')
		if first < 0 || last <= first {
			return Table{}, &ParseError{Index: -1, Entry: line, Reason: "vs_list value is not a quoted string"}
		}
		return DecodeList(line[first+1 : last])
	}
	return Table{}, nil
}

// DecodeList parses a bare list value such as the h_vs_list form field.
func DecodeList(list string) (Table, error) {
	list = strings.TrimSuffix(list, ruleSeparator)
	if list == "" {
		return Table{}, nil
	}

	entries := strings.Split(list, ruleSeparator)
	rules := make([]Rule, 0, len(entries))
	for i, entry := range entries {
		rule, err := decodeRule(i, entry)
		if err != nil {
			return Table{}, err
		}
		rules = append(rules, rule)
	}
	return Table{Rules: rules}, nil
}

func decodeRule(index int, entry string) (Rule, error) {
	fields := strings.Split(entry, fieldSeparator)
	if len(fields) < minRuleFields {
		return Rule{}, &ParseError{
			Index:  index,
			Entry:  entry,
			Reason: fmt.Sprintf("expected at least %d fields, got %d", minRuleFields, len(fields)),
		}
	}

	// Positions: enabled, name, public min, public max, protocol,
	// private min, private max, target octet.
	numbers := make([]int, 0, 7)
	for _, pos := range []int{0, 2, 3, 4, 5, 6, 7} {
		n, err := strconv.Atoi(fields[pos])
		if err != nil {
			return Rule{}, &ParseError{
				Index:  index,
				Entry:  entry,
				Reason: fmt.Sprintf("field %d %q is not a number", pos, fields[pos]),
			}
		}
		numbers = append(numbers, n)
	}

	protocol := Protocol(numbers[3])
	if !protocol.Valid() {
		return Rule{}, &ParseError{
			Index:  index,
			Entry:  entry,
			Reason: fmt.Sprintf("unknown protocol code %d", numbers[3]),
		}
	}

	return Rule{
		Enabled:        numbers[0] != 0,
		Name:           fields[1],
		PublicPortMin:  numbers[1],
		PublicPortMax:  numbers[2],
		Protocol:       protocol,
		PrivatePortMin: numbers[4],
		PrivatePortMax: numbers[5],
		TargetHost:     numbers[6],
	}, nil
}

func (rv6688Codec) Encode(table Table) router.Form {
	form := router.Form{}.
		Add("virtual_server_list", "Active Worlds").
		Add("vs_pc_list", "0").
		Add("if_list", "").
		Add("clear_entry_list", "")

	for i, rule := range table.Rules {
		idx := strconv.Itoa(i)
		enabled := "0"
		if rule.Enabled {
			enabled = "1"
		}
		form = form.
			Add("enable_"+idx, enabled).
			Add("description_"+idx, rule.Name).
			Add("inbound_port_low_"+idx, strconv.Itoa(rule.PublicPortMin)).
			Add("inbound_port_high_"+idx, strconv.Itoa(rule.PublicPortMax)).
			Add("type_"+idx, strconv.Itoa(int(rule.Protocol))).
			Add("private_port_low_"+idx, strconv.Itoa(rule.PrivatePortMin)).
			Add("private_port_high_"+idx, strconv.Itoa(rule.PrivatePortMax)).
			Add("private_ip_"+idx, strconv.Itoa(rule.TargetHost)).
			Add("if_"+idx, "0")
	}

	return form.
		Add("h_vs_list", EncodeList(table)).
		Add("fwi_des", "").
		Add("todo", "save").
		Add("this_file", "vs.htm").
		Add("next_file", "vs.htm").
		Add("message", "")
}

// EncodeList renders the h_vs_list value: every rule followed by ';'.
func EncodeList(table Table) string {
	var sb strings.Builder
	for _, rule := range table.Rules {
		sb.WriteString(rule.String())
		sb.WriteString(ruleSeparator)
	}
	if len(table.Rules) == 0 {
		return ruleSeparator
	}
	return sb.String()
}
