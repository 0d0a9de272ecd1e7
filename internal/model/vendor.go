package model

import (
	"fmt"
	"regexp"
	"strings"
)

// VendorRule describes how to recognise one shipping provider's mails.
type VendorRule struct {
	// Name is the display name of the carrier (e.g. "DHL").
	Name string `mapstructure:"name" yaml:"name"`

	// HTML selects the HTML body as search text instead of plain text.
	HTML bool `mapstructure:"html" yaml:"html"`

	// FromFilter restricts which senders the rule applies to. A filter
	// starting with "@" matches as a domain substring, anything else as an
	// exact address. Empty means any sender.
	FromFilter []string `mapstructure:"from_filter" yaml:"from_filter"`

	// Regex holds the tracking-number patterns. The first capturing group
	// (or the whole match) is the tracking id.
	Regex []string `mapstructure:"regex" yaml:"regex"`

	// CSSSelectors optionally narrow the HTML fragments that are searched.
	CSSSelectors []string `mapstructure:"css_selectors" yaml:"css_selectors"`

	// URL is an optional tracking-link template; "{tracking}" is replaced
	// with the matched id.
	URL string `mapstructure:"url" yaml:"url"`

	compiled []*regexp.Regexp
}

// Compile prepares the rule's regexes for matching. Patterns are applied
// case-insensitively.
func (r *VendorRule) Compile() error {
	if r.Name == "" {
		return fmt.Errorf("vendor rule without a name")
	}

	r.compiled = r.compiled[:0]
	for _, pat := range r.Regex {
		rx, err := regexp.Compile("(?i)" + pat)
		if err != nil {
			return fmt.Errorf("compiling pattern %q for vendor %s: %w", pat, r.Name, err)
		}
		r.compiled = append(r.compiled, rx)
	}

	return nil
}

// Patterns returns the compiled regexes. Empty until Compile has run.
func (r *VendorRule) Patterns() []*regexp.Regexp {
	return r.compiled
}

// TrackingURL expands the rule's URL template for a tracking id.
// Returns "" when the rule has no template.
func (r *VendorRule) TrackingURL(trackingID string) string {
	if r.URL == "" {
		return ""
	}
	return strings.ReplaceAll(r.URL, "{tracking}", trackingID)
}
