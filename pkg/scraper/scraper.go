package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/xhad/narrator/internal/models"
	"golang.org/x/time/rate"
)

const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:123.0) Gecko/20100101 Firefox/123.0"

// DefaultExcludePatterns are URL fragments of pages that never carry news:
// legal, navigation, social, shop, account, newsletter and help pages.
var DefaultExcludePatterns = []string{
	"impressum", "imprint", "privacy", "datenschutz", "agb", "terms",
	"kontakt", "contact", "about", "uber-uns", "team",
	"suche", "search", "login", "register", "anmelden", "registrieren",
	"sitemap", "archive", "archiv", "feeds", "rss",
	"facebook", "twitter", "instagram", "linkedin", "youtube",
	"warenkorb", "cart", "checkout", "shop", "store",
	"profile", "profil", "account", "konto", "settings", "einstellungen",
	"newsletter", "subscribe", "abonnieren",
	"help", "hilfe", "faq", "support",
}

type ScraperConfig struct {
	UserAgent       string
	RateLimit       float64 // requests per second
	Timeout         time.Duration
	ExcludePatterns []string
	MaxBodyBytes    int64
}

type Scraper struct {
	config  ScraperConfig
	client  *http.Client
	limiter *rate.Limiter
}

// ErrBodyTooLarge is returned for pages larger than MaxBodyBytes.
var ErrBodyTooLarge = errors.New("response body too large")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d for %s", e.StatusCode, e.URL)
}

func NewWithConfig(config ScraperConfig) *Scraper {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 2 // 2 requests per second by default
	}
	if config.UserAgent == "" {
		config.UserAgent = DefaultUserAgent
	}
	if config.ExcludePatterns == nil {
		config.ExcludePatterns = DefaultExcludePatterns
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = 10 << 20
	}

	return &Scraper{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
	}
}

func New() *Scraper {
	return NewWithConfig(ScraperConfig{})
}

func (s *Scraper) Config() ScraperConfig {
	return s.config
}

// Fetch downloads a page with browser-like headers.
func (s *Scraper) Fetch(ctx context.Context, pageURL string) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", pageURL, err)
	}
	req.Header.Set("User-Agent", s.config.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("DNT", "1")
	req.Header.Set("Upgrade-Insecure-Requests", "1")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{URL: pageURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.config.MaxBodyBytes+1))
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", pageURL, err)
	}
	if int64(len(body)) > s.config.MaxBodyBytes {
		return "", fmt.Errorf("%w: %s exceeds %d bytes", ErrBodyTooLarge, pageURL, s.config.MaxBodyBytes)
	}
	return string(body), nil
}

// Document fetches a page and returns its title and cleaned text.
func (s *Scraper) Document(ctx context.Context, pageURL string) (models.Document, error) {
	html, err := s.Fetch(ctx, pageURL)
	if err != nil {
		return models.Document{}, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return models.Document{}, err
	}
	content, err := extract(doc, html, pageURL)
	if err != nil {
		return models.Document{}, err
	}

	return models.Document{
		URL:     pageURL,
		Title:   strings.TrimSpace(doc.Find("title").First().Text()),
		Content: content,
		Metadata: map[string]interface{}{
			"time":  time.Now(),
			"bytes": len(html),
		},
	}, nil
}

func (s *Scraper) ExtractText(html string) (string, error) {
	return ExtractText(html)
}

// ExtractText returns the visible text of an HTML page, one phrase per
// line. Pages without visible text go through readability.
func ExtractText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	return extract(doc, html, "")
}

func extract(doc *goquery.Document, html, pageURL string) (string, error) {
	doc.Find("script, style, noscript").Remove()
	if text := cleanText(doc.Text()); text != "" {
		return text, nil
	}
	return readabilityText(html, pageURL), nil
}

// cleanText trims every line, splits lines on double spaces and drops blanks.
func cleanText(text string) string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		for _, phrase := range strings.Split(strings.TrimSpace(line), "  ") {
			if phrase = strings.TrimSpace(phrase); phrase != "" {
				out = append(out, phrase)
			}
		}
	}
	return strings.Join(out, "\n")
}

func readabilityText(html, pageURL string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}
	if pageURL == "" {
		pageURL = "http://localhost/"
	}
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	article, err := readability.FromReader(strings.NewReader(html), parsed)
	if err != nil {
		return ""
	}
	return cleanText(article.TextContent)
}

func (s *Scraper) Links(html, baseURL string) ([]string, error) {
	return Links(html, baseURL)
}

// Links returns the absolute URLs of all anchors that point to the same
// domain as baseURL, ignoring a leading "www.". Order of first appearance
// is kept and duplicates are removed.
func Links(html, baseURL string) ([]string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", baseURL, err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var links []string
	doc.Find("a[href]").Each(func(_ int, selection *goquery.Selection) {
		href, _ := selection.Attr("href")
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		abs.Fragment = ""
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return
		}
		if !SameDomain(base, abs) {
			return
		}
		link := abs.String()
		if !seen[link] {
			seen[link] = true
			links = append(links, link)
		}
	})

	return links, nil
}

// SameDomain compares hosts without a "www." prefix.
func SameDomain(a, b *url.URL) bool {
	return strings.TrimPrefix(strings.ToLower(a.Host), "www.") == strings.TrimPrefix(strings.ToLower(b.Host), "www.")
}

// IsExcluded reports whether link contains one of the exclude patterns.
func (s *Scraper) IsExcluded(link string) bool {
	lower := strings.ToLower(link)
	for _, pattern := range s.config.ExcludePatterns {
		if strings.Contains(lower, strings.ToLower(pattern)) {
			return true
		}
	}
	return false
}

// IsRelevant reports whether link is not excluded and mentions a keyword.
func (s *Scraper) IsRelevant(link string, keywords []string) bool {
	if s.IsExcluded(link) {
		return false
	}
	lower := strings.ToLower(link)
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
