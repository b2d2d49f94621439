// Package metadata inspects a target website and suggests registration
// values: a display name, a slug and automation hints gleaned from the page.
package metadata

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonesrussell/gobotctl/internal/logger"
	"github.com/jonesrussell/gobotctl/internal/models"
)

const defaultHTTPTimeout = 30 * time.Second

// InspectResponse carries suggested values for the website registration form.
type InspectResponse struct {
	Name          string   `json:"name"`
	Slug          string   `json:"slug"`
	URL           string   `json:"url"`
	Description   string   `json:"description"`
	FormFields    []string `json:"form_fields"`
	HasCaptcha    bool     `json:"has_captcha"`
	RequiresLogin bool     `json:"requires_login"`
}

// Extractor fetches target pages and derives registration hints.
type Extractor struct {
	logger logger.Logger
	client *http.Client
}

func NewExtractor(log logger.Logger) *Extractor {
	return &Extractor{
		logger: log,
		client: &http.Client{Timeout: defaultHTTPTimeout},
	}
}

// Inspect fetches a URL and extracts metadata for form prefilling.
func (e *Extractor) Inspect(ctx context.Context, targetURL string) (*InspectResponse, error) {
	e.logger.Info("Inspecting target website", logger.String("url", targetURL))

	parsedURL, err := url.Parse(targetURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme %q", parsedURL.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// Set user agent to avoid bot blocking
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; GoBotCtl/1.0)")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	name := extractName(doc, parsedURL)
	response := &InspectResponse{
		Name:          name,
		Slug:          models.Slugify(name),
		URL:           targetURL,
		Description:   extractDescription(doc),
		FormFields:    extractFormFields(doc),
		HasCaptcha:    detectCaptcha(doc),
		RequiresLogin: detectLogin(doc),
	}

	e.logger.Info("Website inspection complete",
		logger.String("url", targetURL),
		logger.String("name", response.Name),
		logger.Int("form_fields", len(response.FormFields)),
		logger.Bool("has_captcha", response.HasCaptcha),
	)

	return response, nil
}

// extractName picks a display name from the page, falling back to the host.
func extractName(doc *goquery.Document, parsedURL *url.URL) string {
	if ogTitle, exists := doc.Find("meta[property='og:title']").Attr("content"); exists && ogTitle != "" {
		return ogTitle
	}
	if ogSite, exists := doc.Find("meta[property='og:site_name']").Attr("content"); exists && ogSite != "" {
		return ogSite
	}
	if title := doc.Find("title").First().Text(); strings.TrimSpace(title) != "" {
		return strings.TrimSpace(title)
	}
	return parsedURL.Host
}

func extractDescription(doc *goquery.Document) string {
	if desc, exists := doc.Find("meta[name='description']").Attr("content"); exists {
		return strings.TrimSpace(desc)
	}
	if ogDesc, exists := doc.Find("meta[property='og:description']").Attr("content"); exists {
		return strings.TrimSpace(ogDesc)
	}
	return ""
}

// extractFormFields collects named inputs from the first form on the page,
// skipping hidden and submit controls.
func extractFormFields(doc *goquery.Document) []string {
	var fields []string
	seen := make(map[string]bool)

	doc.Find("form").First().Find("input, select, textarea").Each(func(_ int, sel *goquery.Selection) {
		inputType, _ := sel.Attr("type")
		if inputType == "hidden" || inputType == "submit" || inputType == "button" {
			return
		}
		name, exists := sel.Attr("name")
		if !exists || name == "" || seen[name] {
			return
		}
		seen[name] = true
		fields = append(fields, name)
	})

	return fields
}

func detectCaptcha(doc *goquery.Document) bool {
	if doc.Find(".g-recaptcha, .h-captcha, .cf-turnstile").Length() > 0 {
		return true
	}
	found := false
	doc.Find("script[src]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		src, _ := sel.Attr("src")
		if strings.Contains(src, "recaptcha") || strings.Contains(src, "hcaptcha") || strings.Contains(src, "turnstile") {
			found = true
			return false
		}
		return true
	})
	return found
}

func detectLogin(doc *goquery.Document) bool {
	return doc.Find("input[type='password']").Length() > 0
}
