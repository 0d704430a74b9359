// Package chrome decides which transient page chrome (sticky CTA bar, header
// variant) is shown for a fragment and scroll position. Everything here is a
// pure function of its inputs.
package chrome

import (
	"fmt"
	"os"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"finitefield.org/ledgerline-web/internal/sections"
)

// DefaultHidden is the stock deny-list for the sticky CTA bar.
var DefaultHidden = []string{"pricing", "contact", "free-trial", "case-study-*", "blog-*"}

const (
	DefaultStickyThreshold = 300
	DefaultHeaderThreshold = 80
)

// Policy is the sticky bar visibility policy. Hidden entries match a fragment
// exactly, or as a glob when they contain '*'.
type Policy struct {
	Hidden     []string `yaml:"hidden"`
	ShowOnHome bool     `yaml:"show_on_home"`
}

// DefaultPolicy returns a policy with the stock deny-list.
func DefaultPolicy() Policy {
	hidden := make([]string, len(DefaultHidden))
	copy(hidden, DefaultHidden)
	return Policy{Hidden: hidden}
}

// Visible reports whether the sticky bar may render for fragment.
func (p Policy) Visible(fragment string) bool {
	id := sections.Normalize(fragment)
	if id == "" {
		return p.ShowOnHome
	}
	for _, rule := range p.Hidden {
		rule = sections.Normalize(rule)
		if rule == "" {
			continue
		}
		if !strings.Contains(rule, "*") {
			if rule == id {
				return false
			}
			continue
		}
		if ok, err := path.Match(rule, id); err == nil && ok {
			return false
		}
	}
	return true
}

// LoadPolicy reads a YAML policy document. A document without a hidden list
// keeps the default deny-list.
func LoadPolicy(file string) (Policy, error) {
	raw, err := os.ReadFile(file)
	if err != nil {
		return Policy{}, fmt.Errorf("chrome: read policy: %w", err)
	}
	var doc struct {
		Hidden     *[]string `yaml:"hidden"`
		ShowOnHome bool      `yaml:"show_on_home"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return Policy{}, fmt.Errorf("chrome: parse policy %s: %w", file, err)
	}
	p := DefaultPolicy()
	if doc.Hidden != nil {
		p.Hidden = *doc.Hidden
	}
	p.ShowOnHome = doc.ShowOnHome
	for _, rule := range p.Hidden {
		if _, err := path.Match(sections.Normalize(rule), ""); err != nil {
			return Policy{}, fmt.Errorf("chrome: bad rule %q: %w", rule, err)
		}
	}
	return p, nil
}

// HeaderVariant selects the header styling.
type HeaderVariant string

const (
	HeaderOverlay HeaderVariant = "overlay"
	HeaderSolid   HeaderVariant = "solid"
)

// State is the chrome derived for one fragment/scroll pair.
type State struct {
	StickyVisible bool
	Header        HeaderVariant
}

// Gate combines the policy with scroll thresholds.
type Gate struct {
	Policy          Policy
	StickyThreshold float64
	HeaderThreshold float64
}

// NewGate returns a gate using the default thresholds.
func NewGate(p Policy) Gate {
	return Gate{Policy: p, StickyThreshold: DefaultStickyThreshold, HeaderThreshold: DefaultHeaderThreshold}
}

// Sticky reports whether the sticky CTA bar is visible.
func (g Gate) Sticky(fragment string, scrollY float64) bool {
	return scrollY > g.StickyThreshold && g.Policy.Visible(fragment)
}

// Header picks the header variant: solid once a section is active or the page
// has scrolled past the header threshold.
func (g Gate) Header(fragment string, scrollY float64) HeaderVariant {
	if sections.Normalize(fragment) != "" || scrollY > g.HeaderThreshold {
		return HeaderSolid
	}
	return HeaderOverlay
}

// Evaluate derives the full chrome state.
func (g Gate) Evaluate(fragment string, scrollY float64) State {
	return State{
		StickyVisible: g.Sticky(fragment, scrollY),
		Header:        g.Header(fragment, scrollY),
	}
}
