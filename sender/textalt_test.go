package sender

import (
	"strings"
	"testing"
)

func TestHtmlToTextStripsBlocks(t *testing.T) {
	source := `<html><head><style>body { color: red; }</style></head>
<body><script>alert("x")</script><h1>Hello</h1><p>World &amp; friends</p></body></html>`

	got := htmlToText(source)
	if got != "Hello World & friends" {
		t.Fatalf("unexpected text: %q", got)
	}
}

func TestHtmlToTextCollapsesWhitespace(t *testing.T) {
	got := htmlToText("<p>a</p>\n\n\t  <p>b</p>")
	if got != "a b" {
		t.Fatalf("expected collapsed whitespace, got %q", got)
	}
}

func TestHtmlToTextTruncates(t *testing.T) {
	source := "<p>" + strings.Repeat("x", 2000) + "</p>"
	got := htmlToText(source)
	if len([]rune(got)) != textAltMaxLen {
		t.Fatalf("expected truncation to %d chars, got %d", textAltMaxLen, len([]rune(got)))
	}
}

func TestHtmlToTextCaseInsensitiveBlocks(t *testing.T) {
	got := htmlToText(`<STYLE>junk</STYLE><Script>junk</Script>keep`)
	if got != "keep" {
		t.Fatalf("expected case-insensitive stripping, got %q", got)
	}
}
