package resolver

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// nextDataSelector matches the script block Next.js uses to hydrate the page.
const nextDataSelector = `script#__NEXT_DATA__[type="application/json"]`

// extractNextData returns the JSON payload of the page's __NEXT_DATA__ block.
func extractNextData(body []byte) ([]byte, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: parse html: %v", ErrNoEmbeddedData, err)
	}
	sel := doc.Find(nextDataSelector).First()
	if sel.Length() == 0 {
		return nil, ErrNoEmbeddedData
	}
	payload := strings.TrimSpace(sel.Text())
	if payload == "" {
		return nil, ErrNoEmbeddedData
	}
	return []byte(payload), nil
}
