package decode

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// HTMLToText extracts the visible text of an HTML body. When selectors are
// given, only the first element matching each selector contributes, joined
// with newlines; otherwise the whole document text is used. Whitespace is
// collapsed to single spaces within each fragment.
func HTMLToText(html string, selectors []string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	// Script and style contents are not message text.
	doc.Find("script, style").Remove()

	if len(selectors) == 0 {
		return collapseSpace(doc.Text())
	}

	var parts []string
	for _, sel := range selectors {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		if text := collapseSpace(node.Text()); text != "" {
			parts = append(parts, text)
		}
	}

	return strings.Join(parts, "\n")
}

// collapseSpace trims a fragment and folds runs of whitespace into single
// spaces.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
