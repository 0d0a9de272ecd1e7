package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/trackit/internal/decode"
	"github.com/nhle/trackit/internal/model"
)

func compiledRule(t *testing.T, rule model.VendorRule) model.VendorRule {
	t.Helper()
	require.NoError(t, rule.Compile())
	return rule
}

func dhlRule(t *testing.T) model.VendorRule {
	return compiledRule(t, model.VendorRule{
		Name:       "DHL",
		FromFilter: []string{"@dhl.de"},
		Regex:      []string{`JJD\w{13,17}`},
	})
}

func TestEvaluate_BasicMatch(t *testing.T) {
	msg := &decode.Message{
		Sender:    "noreply@dhl.de",
		Subject:   "Ihre Sendung",
		PlainText: "Your tracking JJD1234567890123 is ready",
	}

	matches := Evaluate(msg, []model.VendorRule{dhlRule(t)})

	require.Len(t, matches, 1)
	assert.Equal(t, "DHL", matches[0].Supplier)
	assert.Equal(t, "JJD1234567890123", matches[0].TrackingID)
	assert.Equal(t, "noreply@dhl.de", matches[0].Sender)
	assert.Contains(t, matches[0].Snippet, "JJD1234567890123")
}

func TestEvaluate_SenderFilterRejects(t *testing.T) {
	msg := &decode.Message{
		Sender:    "someone@other.com",
		PlainText: "Your tracking JJD1234567890123 is ready",
	}

	matches := Evaluate(msg, []model.VendorRule{dhlRule(t)})
	assert.Empty(t, matches)
}

func TestEvaluate_DomainFilterCaseInsensitive(t *testing.T) {
	msg := &decode.Message{
		Sender:    "Versand@DHL.de",
		PlainText: "JJD1234567890123",
	}

	matches := Evaluate(msg, []model.VendorRule{dhlRule(t)})
	require.Len(t, matches, 1)
}

func TestEvaluate_ExactAddressFilter(t *testing.T) {
	rule := compiledRule(t, model.VendorRule{
		Name:       "GLS",
		FromFilter: []string{"noreply@gls.com"},
		Regex:      []string{`\b\d{11}\b`},
	})

	hit := &decode.Message{Sender: "NoReply@GLS.com", PlainText: "Paket 12345678901"}
	miss := &decode.Message{Sender: "other@gls.com.example.org", PlainText: "Paket 12345678901"}

	assert.Len(t, Evaluate(hit, []model.VendorRule{rule}), 1)
	assert.Empty(t, Evaluate(miss, []model.VendorRule{rule}))
}

func TestEvaluate_EmptyFilterMatchesAnySender(t *testing.T) {
	rule := compiledRule(t, model.VendorRule{
		Name:  "Generic",
		Regex: []string{`TRACK-(\d+)`},
	})

	msg := &decode.Message{Sender: "whoever@example.com", PlainText: "TRACK-42"}
	matches := Evaluate(msg, []model.VendorRule{rule})

	require.Len(t, matches, 1)
	assert.Equal(t, "42", matches[0].TrackingID, "first capturing group wins over whole match")
}

func TestEvaluate_CaseInsensitiveRegex(t *testing.T) {
	rule := compiledRule(t, model.VendorRule{
		Name:  "Hermes",
		Regex: []string{`hermes tracking (\w+)`},
	})

	msg := &decode.Message{PlainText: "HERMES Tracking H99X7"}
	matches := Evaluate(msg, []model.VendorRule{rule})

	require.Len(t, matches, 1)
	assert.Equal(t, "H99X7", matches[0].TrackingID)
}

func TestEvaluate_MultipleMatchesPerRule(t *testing.T) {
	rule := compiledRule(t, model.VendorRule{
		Name:  "UPS",
		Regex: []string{`1Z\w{16}`},
	})

	msg := &decode.Message{
		PlainText: "First 1Z12345E0205271688 and second 1Z12345E6605272234 shipped",
	}
	matches := Evaluate(msg, []model.VendorRule{rule})

	require.Len(t, matches, 2)
	assert.Equal(t, "1Z12345E0205271688", matches[0].TrackingID)
	assert.Equal(t, "1Z12345E6605272234", matches[1].TrackingID)
}

func TestEvaluate_HTMLModeFallsBackToPlain(t *testing.T) {
	rule := compiledRule(t, model.VendorRule{
		Name:  "DPD",
		HTML:  true,
		Regex: []string{`\b0140\d{10}\b`},
	})

	msg := &decode.Message{PlainText: "Paketnummer 01401234567890"}
	matches := Evaluate(msg, []model.VendorRule{rule})

	require.Len(t, matches, 1)
	assert.Equal(t, "01401234567890", matches[0].TrackingID)
}

func TestEvaluate_HTMLModeUsesExtractedText(t *testing.T) {
	rule := compiledRule(t, model.VendorRule{
		Name:  "DPD",
		HTML:  true,
		Regex: []string{`code (\w+)`},
	})

	msg := &decode.Message{
		PlainText: "plain body without anything",
		HTMLText:  "<html><body><p>Your code <b>ABC123</b> is here</p></body></html>",
	}
	matches := Evaluate(msg, []model.VendorRule{rule})

	require.Len(t, matches, 1)
	assert.Equal(t, "ABC123", matches[0].TrackingID)
}

func TestEvaluate_CSSSelectorsNarrowSearch(t *testing.T) {
	rule := compiledRule(t, model.VendorRule{
		Name:         "Post",
		HTML:         true,
		CSSSelectors: []string{".tracking"},
		Regex:        []string{`RR\d{9}DE`},
	})

	msg := &decode.Message{
		HTMLText: `<html><body>
			<div class="footer">RR000000000DE is a decoy</div>
			<div class="tracking">Sendung RR123456789DE</div>
		</body></html>`,
	}
	matches := Evaluate(msg, []model.VendorRule{rule})

	require.Len(t, matches, 1)
	assert.Equal(t, "RR123456789DE", matches[0].TrackingID)
}

func TestEvaluate_URLTemplateExpanded(t *testing.T) {
	rule := compiledRule(t, model.VendorRule{
		Name:  "DHL",
		Regex: []string{`JJD\w{13}`},
		URL:   "https://www.dhl.de/track?id={tracking}",
	})

	msg := &decode.Message{PlainText: "JJD1234567890123"}
	matches := Evaluate(msg, []model.VendorRule{rule})

	require.Len(t, matches, 1)
	assert.Equal(t, "https://www.dhl.de/track?id=JJD1234567890123", matches[0].URL)
}

func TestEvaluate_RuleWithoutPatternsNeverMatches(t *testing.T) {
	rule := compiledRule(t, model.VendorRule{
		Name:       "Empty",
		FromFilter: []string{"@example.com"},
	})

	msg := &decode.Message{Sender: "a@example.com", PlainText: "anything at all"}
	assert.Empty(t, Evaluate(msg, []model.VendorRule{rule}))
}

func TestEvaluate_Deterministic(t *testing.T) {
	rules := []model.VendorRule{dhlRule(t)}
	msg := &decode.Message{
		Sender:    "noreply@dhl.de",
		PlainText: "JJD1234567890123 and JJD9876543210987",
	}

	first := Evaluate(msg, rules)
	second := Evaluate(msg, rules)
	assert.Equal(t, first, second)
}

func TestEvaluate_RuleOrderPreserved(t *testing.T) {
	a := compiledRule(t, model.VendorRule{Name: "A", Regex: []string{`X\d`}})
	b := compiledRule(t, model.VendorRule{Name: "B", Regex: []string{`X\d`}})

	msg := &decode.Message{PlainText: "X1"}
	matches := Evaluate(msg, []model.VendorRule{a, b})

	require.Len(t, matches, 2)
	assert.Equal(t, "A", matches[0].Supplier)
	assert.Equal(t, "B", matches[1].Supplier)
}

func TestSnippet_Bounds(t *testing.T) {
	text := "JJD1234567890123"
	assert.Equal(t, text, snippet(text, 0, len(text)), "snippet clamps at text bounds")

	long := "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa" +
		"MATCH" +
		"bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	got := snippet(long, 50, 55)
	assert.Len(t, got, 5+2*snippetContext)
	assert.Contains(t, got, "MATCH")
}
