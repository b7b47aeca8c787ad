// Package status scrapes the router's status page.
package status

import (
	"context"
	"fmt"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/easzlab/rvcm/pkg/router"
)

// applyRequiredLine is rendered into the page while saved changes wait for Apply.
const applyRequiredLine = `var headMsg = "Please do Apply to make the changes take effect.";`

// Getter fetches a page from the router.
type Getter interface {
	Get(ctx context.Context, path string) (string, error)
}

// Info is the router state shown on the status page.
type Info struct {
	Model         string `json:"model"           yaml:"model"`
	IP            string `json:"ip"              yaml:"ip"`
	Gateway       string `json:"gateway"         yaml:"gateway"`
	MAC           string `json:"mac"             yaml:"mac"`
	LocalIP       string `json:"local_ip"        yaml:"local_ip"`
	DNS1          string `json:"dns1"            yaml:"dns1"`
	DNS2          string `json:"dns2"            yaml:"dns2"`
	SIP           string `json:"sip"             yaml:"sip"`
	GPON          string `json:"gpon"            yaml:"gpon"`
	Firmware      string `json:"firmware"        yaml:"firmware"`
	PhoneUp       bool   `json:"phone_status"    yaml:"phone_status"`
	WANUp         bool   `json:"wan_status"      yaml:"wan_status"`
	LANUp         bool   `json:"lan_status"      yaml:"lan_status"`
	ApplyRequired bool   `json:"unsaved_changes" yaml:"unsaved_changes"`
}

// Fetch downloads and parses the status page.
func Fetch(ctx context.Context, getter Getter) (*Info, error) {
	page, err := getter.Get(ctx, router.PathInfo)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch router info: %w", err)
	}
	return Parse(page)
}

// Parse extracts Info from the status page. The firmware lays the page out
// as one outer table whose even rows hold the WAN, phone, device and LAN
// blocks, each an inner table.
func Parse(page string) (*Info, error) {
	doc, err := htmlquery.Parse(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("failed to parse info page: %w", err)
	}

	form := htmlquery.FindOne(doc, `//form[@action="setup.cgi"]`)
	if form == nil {
		return nil, fmt.Errorf("info page has no setup form")
	}

	s := scraper{form: form}
	info := &Info{
		WANUp:    s.script(2, 2, 4, `"Up"`),
		IP:       s.cell(2, 3, 2),
		Gateway:  s.cell(2, 3, 4),
		DNS1:     s.cell(2, 4, 2),
		DNS2:     s.cell(2, 4, 4),
		PhoneUp:  s.script(4, 3, 2, `"Up"`),
		SIP:      s.cell(4, 4, 2),
		Model:    s.cell(6, 2, 2),
		Firmware: s.cell(6, 2, 4),
		GPON:     s.cell(6, 3, 2),
		MAC:      s.cell(6, 3, 4),
		LocalIP:  s.cell(8, 2, 2),
		LANUp:    s.script(8, 2, 4, `"Connected"`),
	}
	if s.err != nil {
		return nil, s.err
	}

	for _, line := range strings.Split(page, "\n") {
		if strings.TrimSpace(line) == applyRequiredLine {
			info.ApplyRequired = true
			break
		}
	}
	return info, nil
}

// scraper looks up cells by position and keeps the first lookup error.
type scraper struct {
	form *html.Node
	err  error
}

func (s *scraper) find(expr string) *html.Node {
	if s.err != nil {
		return nil
	}
	node, err := htmlquery.Query(s.form, expr)
	if err != nil {
		s.err = fmt.Errorf("invalid xpath %s: %w", expr, err)
		return nil
	}
	if node == nil {
		s.err = fmt.Errorf("info page is missing %s", expr)
	}
	return node
}

// cell returns the text of td[col] in row of the inner table at block.
func (s *scraper) cell(block, row, col int) string {
	node := s.find(fmt.Sprintf(".//table/tbody/tr[%d]/td/table/tbody/tr[%d]/td[%d]", block, row, col))
	if node == nil {
		return ""
	}
	return strings.TrimSpace(htmlquery.InnerText(node))
}

// script reports whether the inline script of the cell writes marker.
func (s *scraper) script(block, row, col int, marker string) bool {
	node := s.find(fmt.Sprintf(".//table/tbody/tr[%d]/td/table/tbody/tr[%d]/td[%d]/script", block, row, col))
	if node == nil {
		return false
	}
	return strings.Contains(htmlquery.InnerText(node), marker)
}

// Pretty renders the aligned text block printed by `rvcm info`.
func (i *Info) Pretty() string {
	lines := []string{
		"Model           : " + i.Model,
		"IP              : " + i.IP,
		"Gateway         : " + i.Gateway,
		"MAC             : " + i.MAC,
		"Local IP        : " + i.LocalIP,
		"DNS1            : " + i.DNS1,
		"DNS2            : " + i.DNS2,
		"SIP             : " + i.SIP,
		"GPON            : " + i.GPON,
		"Firmware        : " + i.Firmware,
		"Phone status    : " + available(i.PhoneUp),
		"WAN status      : " + available(i.WANUp),
		"LAN status      : " + available(i.LANUp),
		"Unsaved changes : " + yesNo(i.ApplyRequired),
	}
	return strings.Join(lines, "\n")
}

func available(up bool) string {
	if up {
		return "OK"
	}
	return "Unavailable"
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
