// Package email discovers a contact address on a listing's website.
package email

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"maps-scraper/models"
	"maps-scraper/utils"
)

const (
	mailtoPrefix     = "mailto:"
	maxResponseBytes = 2 * 1024 * 1024
	defaultTimeout   = 10 * time.Second
)

var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

// Finder performs a best-effort crawl of a website for contact emails: the
// given page first, then at most one "contact" page.
type Finder struct {
	client    *http.Client
	userAgent string
	logger    *utils.Logger
}

// Option configures optional Finder dependencies.
type Option func(*Finder)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Finder) {
		if client != nil {
			f.client = client
		}
	}
}

// New builds a Finder whose fetches time out after timeout and carry userAgent.
func New(timeout time.Duration, userAgent string, logger *utils.Logger, opts ...Option) *Finder {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	f := &Finder{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Find returns the emails found for website joined by ", ". The bool is false
// when nothing was found, the input is empty or the "Not Available" sentinel,
// or the first fetch failed. Find never returns an error.
func (f *Finder) Find(ctx context.Context, website string) (result string, found bool) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Warn("[email] Recovered while crawling %q: %v", website, r)
			result, found = "", false
		}
	}()

	target, ok := normaliseURL(website)
	if !ok {
		return "", false
	}

	body, err := f.fetch(ctx, target)
	if err != nil {
		f.logger.Debug("[email] Fetch %s failed: %v", target, err)
		return "", false
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		f.logger.Debug("[email] Parse %s failed: %v", target, err)
	}

	addrs := newAddressSet()
	addrs.add(mailtoAddresses(doc)...)
	addrs.add(emailPattern.FindAllString(string(body), -1)...)

	if addrs.empty() {
		if contactURL, ok := contactPage(doc, target); ok {
			contactBody, err := f.fetch(ctx, contactURL)
			if err != nil {
				f.logger.Debug("[email] Contact page %s failed: %v", contactURL, err)
			} else {
				addrs.add(emailPattern.FindAllString(string(contactBody), -1)...)
			}
		}
	}

	if addrs.empty() {
		return "", false
	}
	return addrs.join(), true
}

func (f *Finder) fetch(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// Error pages are still scanned; many sites serve contact details on them.
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// normaliseURL rejects empty and sentinel values and prefixes a missing scheme
// with http://.
func normaliseURL(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, models.NotAvailable) {
		return "", false
	}
	if !strings.HasPrefix(strings.ToLower(raw), "http") {
		raw = "http://" + raw
	}
	return raw, true
}

func mailtoAddresses(doc *goquery.Document) []string {
	if doc == nil {
		return nil
	}
	var out []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if !strings.HasPrefix(href, mailtoPrefix) {
			return
		}
		addr := strings.TrimPrefix(href, mailtoPrefix)
		if idx := strings.Index(addr, "?"); idx != -1 {
			addr = addr[:idx]
		}
		if addr = strings.TrimSpace(addr); addr != "" {
			out = append(out, addr)
		}
	})
	return out
}

// contactPage returns the first anchor whose href mentions "contact",
// resolved against pageURL.
func contactPage(doc *goquery.Document, pageURL string) (string, bool) {
	if doc == nil {
		return "", false
	}
	var href string
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		h, _ := sel.Attr("href")
		if strings.Contains(strings.ToLower(h), "contact") {
			href = strings.TrimSpace(h)
			return false
		}
		return true
	})
	if href == "" {
		return "", false
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return "", false
	}
	resolved, err := base.Parse(href)
	if err != nil {
		return "", false
	}
	return resolved.String(), true
}

// addressSet keeps the first-seen order of distinct addresses.
type addressSet struct {
	seen  map[string]struct{}
	order []string
}

func newAddressSet() *addressSet {
	return &addressSet{seen: make(map[string]struct{})}
}

func (s *addressSet) add(list ...string) {
	for _, a := range list {
		if _, dup := s.seen[a]; dup {
			continue
		}
		s.seen[a] = struct{}{}
		s.order = append(s.order, a)
	}
}

func (s *addressSet) empty() bool { return len(s.order) == 0 }

func (s *addressSet) join() string { return strings.Join(s.order, ", ") }
