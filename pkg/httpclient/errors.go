package httpclient

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const maxSnippetRunes = 512

// HTTPError is returned alongside the response when the backend answers outside 2xx.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (e *HTTPError) Error() string {
	snippet := BodySnippet(e.Header.Get("Content-Type"), e.Body)
	if snippet == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.StatusCode, snippet)
}

// BodySnippet returns a bounded, single-line excerpt of body. HTML error
// pages are reduced to their visible text.
func BodySnippet(contentType string, body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return ""
	}

	text := string(trimmed)
	if strings.Contains(strings.ToLower(contentType), "html") || trimmed[0] == '<' {
		if doc, err := goquery.NewDocumentFromReader(bytes.NewReader(trimmed)); err == nil {
			var parts []string
			collectText(doc.Find("body"), &parts)
			text = strings.Join(parts, " ")
			if strings.TrimSpace(text) == "" {
				text = doc.Find("title").Text()
			}
		}
	}

	text = strings.Join(strings.Fields(text), " ")
	if runes := []rune(text); len(runes) > maxSnippetRunes {
		return string(runes[:maxSnippetRunes]) + "..."
	}
	return text
}

// collectText appends text nodes in document order so adjacent block elements stay separated.
func collectText(sel *goquery.Selection, parts *[]string) {
	sel.Contents().Each(func(_ int, c *goquery.Selection) {
		switch goquery.NodeName(c) {
		case "#text":
			*parts = append(*parts, c.Text())
		case "script", "style":
		default:
			collectText(c, parts)
		}
	})
}
