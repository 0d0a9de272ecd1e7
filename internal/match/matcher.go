// Package match applies vendor rules to decoded messages. Evaluate is a
// pure function: no network, no storage, identical inputs give identical
// output.
package match

import (
	"strings"

	"github.com/nhle/trackit/internal/decode"
	"github.com/nhle/trackit/internal/model"
)

// snippetContext is how many characters of surrounding text are kept on
// each side of a matched tracking id.
const snippetContext = 40

// Evaluate checks a decoded message against the vendor rules, in rule
// order, and returns every tracking match found. A single rule may emit
// multiple matches (several regexes, or one regex matching repeatedly).
// The EmailUID field is left zero; the orchestrator fills it in.
func Evaluate(msg *decode.Message, rules []model.VendorRule) []model.TrackingMatch {
	var matches []model.TrackingMatch

	for i := range rules {
		rule := &rules[i]

		if !senderMatches(msg.Sender, rule.FromFilter) {
			continue
		}

		text := searchText(msg, rule)
		if text == "" {
			continue
		}

		for _, rx := range rule.Patterns() {
			for _, loc := range rx.FindAllStringSubmatchIndex(text, -1) {
				start, end := loc[0], loc[1]
				if len(loc) >= 4 && loc[2] >= 0 {
					start, end = loc[2], loc[3]
				}

				id := strings.TrimSpace(text[start:end])
				if id == "" {
					continue
				}

				matches = append(matches, model.TrackingMatch{
					Supplier:   rule.Name,
					TrackingID: id,
					MessageID:  msg.MessageID,
					Subject:    msg.Subject,
					Date:       msg.Date,
					Sender:     msg.Sender,
					Snippet:    snippet(text, start, end),
					URL:        rule.TrackingURL(id),
				})
			}
		}
	}

	return matches
}

// senderMatches applies the rule's sender filters. A filter starting with
// "@" matches as a domain substring; any other filter must equal the
// address exactly. Comparison is case-insensitive. No filters means any
// sender matches.
func senderMatches(sender string, filters []string) bool {
	if len(filters) == 0 {
		return true
	}

	addr := strings.ToLower(strings.TrimSpace(sender))
	for _, f := range filters {
		f = strings.ToLower(strings.TrimSpace(f))
		if f == "" {
			continue
		}
		if strings.HasPrefix(f, "@") {
			if strings.Contains(addr, f) {
				return true
			}
		} else if addr == f {
			return true
		}
	}

	return false
}

// searchText picks the text a rule is applied to: the extracted HTML text
// in HTML mode (narrowed to the rule's CSS selectors), the plain body
// otherwise. HTML mode falls back to the plain body when the message has no
// HTML part.
func searchText(msg *decode.Message, rule *model.VendorRule) string {
	if rule.HTML && msg.HTMLText != "" {
		return decode.HTMLToText(msg.HTMLText, rule.CSSSelectors)
	}
	return msg.PlainText
}

// snippet returns up to snippetContext characters of context on each side
// of the match location.
func snippet(text string, start, end int) string {
	lo := start - snippetContext
	if lo < 0 {
		lo = 0
	}
	hi := end + snippetContext
	if hi > len(text) {
		hi = len(text)
	}
	return text[lo:hi]
}
