package decode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTMLToText_WholeDocument(t *testing.T) {
	html := `<html><body>
		<p>Your parcel</p>
		<p>number   <b>JJD123</b>  shipped</p>
	</body></html>`

	got := HTMLToText(html, nil)
	assert.Equal(t, "Your parcel number JJD123 shipped", got)
}

func TestHTMLToText_StripsScriptAndStyle(t *testing.T) {
	html := `<html><head><style>p { color: red }</style></head>
		<body><script>var x = "JJD999";</script><p>real text</p></body></html>`

	got := HTMLToText(html, nil)
	assert.Equal(t, "real text", got)
}

func TestHTMLToText_Selectors(t *testing.T) {
	html := `<html><body>
		<div class="header">ignore me</div>
		<div class="tracking">JJD123</div>
		<div id="status">in transit</div>
	</body></html>`

	got := HTMLToText(html, []string{".tracking", "#status"})
	assert.Equal(t, "JJD123\nin transit", got)
}

func TestHTMLToText_SelectorFirstElementOnly(t *testing.T) {
	html := `<ul><li>first</li><li>second</li></ul>`

	got := HTMLToText(html, []string{"li"})
	assert.Equal(t, "first", got)
}

func TestHTMLToText_UnmatchedSelectorSkipped(t *testing.T) {
	html := `<p>hello</p>`

	assert.Equal(t, "hello", HTMLToText(html, []string{".missing", "p"}))
	assert.Equal(t, "", HTMLToText(html, []string{".missing"}))
}
