// -----------------------------------------------------------------------
// HTTP Meta Plugin - Fetches a page and extracts document metadata
// -----------------------------------------------------------------------

package plugins

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/venator/internal/models"
)

const httpMetaUserAgent = "Venator/1.0 (+https://github.com/ternarybob/venator)"

// HTTPMetaAdapter fetches a URL and extracts title, meta description and
// canonical link. Emits "title", "description", "canonical" and
// "status_code" data fields.
type HTTPMetaAdapter struct {
	client *http.Client
}

// NewHTTPMetaAdapter creates the builtin http_meta plugin.
func NewHTTPMetaAdapter() *HTTPMetaAdapter {
	return &HTTPMetaAdapter{
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (a *HTTPMetaAdapter) Name() string {
	return "http_meta"
}

// Invoke fetches the "url" parameter and parses the response body.
func (a *HTTPMetaAdapter) Invoke(ctx context.Context, params map[string]interface{}) (<-chan models.PluginEvent, error) {
	rawURL, ok := stringParam(params, "url")
	if !ok {
		return nil, fmt.Errorf("http_meta requires a non-empty \"url\" parameter")
	}
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		rawURL = "https://" + rawURL
	}

	out := make(chan models.PluginEvent)
	go func() {
		defer close(out)

		if !emit(ctx, out, models.NewStatusEvent(fmt.Sprintf("fetching %s", rawURL))) {
			return
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			emit(ctx, out, models.NewErrorEvent(fmt.Sprintf("invalid URL %s: %v", rawURL, err)))
			return
		}
		req.Header.Set("User-Agent", httpMetaUserAgent)

		resp, err := a.client.Do(req)
		if err != nil {
			emit(ctx, out, models.NewErrorEvent(fmt.Sprintf("fetch %s: %v", rawURL, err)))
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			emit(ctx, out, models.NewErrorEvent(fmt.Sprintf("fetch %s: HTTP %d", rawURL, resp.StatusCode)))
			return
		}

		if !emit(ctx, out, models.NewStatusEvent("parsing document")) {
			return
		}

		doc, err := goquery.NewDocumentFromReader(resp.Body)
		if err != nil {
			emit(ctx, out, models.NewErrorEvent(fmt.Sprintf("parse %s: %v", rawURL, err)))
			return
		}

		payload := map[string]interface{}{
			"url":         rawURL,
			"status_code": resp.StatusCode,
			"title":       strings.TrimSpace(doc.Find("title").First().Text()),
		}
		if desc, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
			payload["description"] = strings.TrimSpace(desc)
		}
		if canonical, ok := doc.Find(`link[rel="canonical"]`).Attr("href"); ok {
			payload["canonical"] = canonical
		}

		if !emit(ctx, out, models.NewDataEvent(payload)) {
			return
		}

		emit(ctx, out, models.NewCompleteEvent(nil))
	}()

	return out, nil
}
