// Package calls parses the router's VoIP call history.
package calls

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/easzlab/rvcm/pkg/router"
)

const (
	logsKeyword  = "var call_logs ="
	stampLayout  = "Mon Jan 2 15:04:05 2006"
	exportLayout = "2006-01-02T15:04:05"
	recordFields = 7
)

var partyPattern = regexp.MustCompile(`([0-9+\-]+).*\((.*?)\)`)

// Getter fetches a page from the router.
type Getter interface {
	Get(ctx context.Context, path string) (string, error)
}

// Party is one side of a call.
type Party struct {
	Phone string
	IP    string
}

// Call is a single call history record.
type Call struct {
	Line      int
	Direction string
	Status    string
	Calling   Party
	Called    Party
	Duration  time.Duration
	Stamp     time.Time
}

// Record is the flat export form of a Call.
type Record struct {
	Line         int    `json:"line"          yaml:"line"`
	Direction    string `json:"direction"     yaml:"direction"`
	Status       string `json:"status"        yaml:"status"`
	CallingPhone string `json:"calling_phone" yaml:"calling_phone"`
	CallingIP    string `json:"calling_ip"    yaml:"calling_ip"`
	CalledPhone  string `json:"called_phone"  yaml:"called_phone"`
	CalledIP     string `json:"called_ip"     yaml:"called_ip"`
	Duration     int    `json:"duration"      yaml:"duration"`
	Stamp        string `json:"stamp"         yaml:"stamp"`
}

// Record flattens c for JSON and YAML output. Duration is in seconds.
func (c Call) Record() Record {
	return Record{
		Line:         c.Line,
		Direction:    c.Direction,
		Status:       c.Status,
		CallingPhone: c.Calling.Phone,
		CallingIP:    c.Calling.IP,
		CalledPhone:  c.Called.Phone,
		CalledIP:     c.Called.IP,
		Duration:     int(c.Duration / time.Second),
		Stamp:        c.Stamp.Format(exportLayout),
	}
}

// Fetch downloads and parses the call history.
func Fetch(ctx context.Context, getter Getter) ([]Call, error) {
	page, err := getter.Get(ctx, router.PathCallLog)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch call history: %w", err)
	}
	return Parse(page)
}

// Parse extracts the call records embedded in the call log page. A page
// without a call_logs variable has no calls.
func Parse(page string) ([]Call, error) {
	raw := "[]"
	for _, line := range strings.Split(page, "\n") {
		idx := strings.Index(line, logsKeyword)
		if idx < 0 {
			continue
		}
		raw = strings.TrimSuffix(strings.TrimSpace(line[idx+len(logsKeyword):]), ";")
		break
	}

	var records []string
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		return nil, fmt.Errorf("failed to decode call_logs: %w", err)
	}

	calls := make([]Call, 0, len(records))
	for i, record := range records {
		call, err := ParseRecord(record)
		if err != nil {
			return nil, fmt.Errorf("call record %d: %w", i, err)
		}
		calls = append(calls, call)
	}
	return calls, nil
}

// ParseRecord parses one record such as
//
//	line 0, Answered, IN, Calling:000;cpc-rus=1;phone-cont(55.66.77.88), Called:+100(11.22.33.44), Duration:0h:15m:34s, Mon Nov 28 19:43:31 2016
func ParseRecord(record string) (Call, error) {
	parts := strings.Split(record, ",")
	if len(parts) != recordFields {
		return Call{}, fmt.Errorf("expected %d comma separated fields, got %d in %q", recordFields, len(parts), record)
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	lineFields := strings.Fields(parts[0])
	if len(lineFields) != 2 {
		return Call{}, fmt.Errorf("malformed line field %q", parts[0])
	}
	line, err := strconv.Atoi(lineFields[1])
	if err != nil {
		return Call{}, fmt.Errorf("malformed line number %q", lineFields[1])
	}

	calling, err := parseParty(parts[3])
	if err != nil {
		return Call{}, err
	}
	called, err := parseParty(parts[4])
	if err != nil {
		return Call{}, err
	}

	duration, err := parseDuration(parts[5])
	if err != nil {
		return Call{}, err
	}

	stamp, err := time.Parse(stampLayout, strings.Join(strings.Fields(parts[6]), " "))
	if err != nil {
		return Call{}, fmt.Errorf("malformed timestamp %q: %w", parts[6], err)
	}

	return Call{
		Line:      line,
		Direction: strings.ToUpper(parts[2]),
		Status:    parts[1],
		Calling:   calling,
		Called:    called,
		Duration:  duration,
		Stamp:     stamp,
	}, nil
}

// parseParty parses "Label:phone...(ip)".
func parseParty(field string) (Party, error) {
	_, value, ok := strings.Cut(field, ":")
	if !ok {
		return Party{}, fmt.Errorf("malformed party %q", field)
	}
	m := partyPattern.FindStringSubmatch(value)
	if m == nil {
		return Party{}, fmt.Errorf("malformed party %q", field)
	}
	return Party{Phone: m[1], IP: m[2]}, nil
}

// parseDuration parses "Duration:0h:15m:34s".
func parseDuration(field string) (time.Duration, error) {
	_, span, ok := strings.Cut(field, ":")
	if !ok {
		return 0, fmt.Errorf("malformed duration %q", field)
	}
	values := strings.Split(span, ":")
	if len(values) != 3 {
		return 0, fmt.Errorf("malformed duration %q", field)
	}

	units := []struct {
		suffix string
		unit   time.Duration
	}{{"h", time.Hour}, {"m", time.Minute}, {"s", time.Second}}

	var total time.Duration
	for i, u := range units {
		if !strings.HasSuffix(values[i], u.suffix) {
			return 0, fmt.Errorf("malformed duration %q", field)
		}
		n, err := strconv.Atoi(strings.TrimSuffix(values[i], u.suffix))
		if err != nil {
			return 0, fmt.Errorf("malformed duration %q", field)
		}
		total += time.Duration(n) * u.unit
	}
	return total, nil
}
