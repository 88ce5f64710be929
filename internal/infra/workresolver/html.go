package workresolver

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// maxHTMLText caps extracted page text.
const maxHTMLText = 20000

// htmlText returns the visible text of a page, one block per line.
func htmlText(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript, template, iframe, svg").Remove()

	var out strings.Builder
	if title := collapse(doc.Find("title").First().Text()); title != "" {
		out.WriteString(title)
		out.WriteString("\n")
	}
	doc.Find("h1, h2, h3, h4, h5, h6, p, li, blockquote, pre, td").Each(func(_ int, s *goquery.Selection) {
		if s.ParentsFiltered("p, li, blockquote, pre, td").Length() > 0 {
			return
		}
		if text := collapse(s.Text()); text != "" {
			out.WriteString(text)
			out.WriteString("\n")
		}
	})
	if out.Len() == 0 {
		if text := collapse(doc.Find("body").Text()); text != "" {
			out.WriteString(text)
		}
	}

	result := strings.TrimSpace(out.String())
	if len(result) > maxHTMLText {
		result = result[:maxHTMLText]
	}
	return result, nil
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
