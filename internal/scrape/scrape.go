// Package scrape collects popular marketplace listings into the JSONL
// metadata the seeder consumes. Phase 1 walks search result pages and
// keeps items above a like threshold; phase 2 visits each item's detail
// page for full metadata.
package scrape

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/tyarity/boothlens/pkg/types"
)

const (
	// BaseURL is the marketplace root.
	BaseURL = "https://booth.pm"
	// DefaultSearchURL lists 3D clothing tagged for VRChat.
	DefaultSearchURL = BaseURL + "/ja/browse/3D%E8%A1%A3%E8%A3%85?tags%5B%5D=VRChat&adult=include"

	// MinLikes is the popularity cutoff for phase 1.
	MinLikes = 1000
	// MaxPages caps the phase 1 page walk.
	MaxPages = 170
	// emptyPageLimit stops phase 1 after this many consecutive pages
	// without a qualifying item.
	emptyPageLimit = 3

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
)

var likesRe = regexp.MustCompile(`[\d,]+`)

// Scraper fetches and parses marketplace pages.
type Scraper struct {
	client    *http.Client
	searchURL string
	minLikes  int
	delay     time.Duration
}

// New creates a Scraper with a polite per-request delay.
func New(timeout, delay time.Duration) *Scraper {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Scraper{
		client:    &http.Client{Timeout: timeout},
		searchURL: DefaultSearchURL,
		minLikes:  MinLikes,
		delay:     delay,
	}
}

// CollectPopular runs phase 1: walk search pages and return listing
// stubs with at least MinLikes likes.
func (s *Scraper) CollectPopular(ctx context.Context) ([]types.ListingRecord, error) {
	var all []types.ListingRecord
	emptyPages := 0

	for page := 1; page <= MaxPages; page++ {
		if ctx.Err() != nil {
			return all, ctx.Err()
		}
		doc, err := s.fetch(ctx, fmt.Sprintf("%s&page=%d", s.searchURL, page))
		if err != nil {
			return all, fmt.Errorf("scrape: page %d: %w", page, err)
		}
		items := ParseSearchPage(doc, s.minLikes)
		if len(items) == 0 {
			emptyPages++
			if emptyPages >= emptyPageLimit {
				slog.Info("Stopping after consecutive empty pages", "page", page)
				break
			}
		} else {
			emptyPages = 0
			all = append(all, items...)
		}
		slog.Info("Scanned search page", "page", page, "qualifying", len(items), "total", len(all))
		s.pause(ctx)
	}
	return all, nil
}

// Enrich runs phase 2 for one stub: fetch its detail page and merge full
// metadata into the record.
func (s *Scraper) Enrich(ctx context.Context, stub types.ListingRecord) (types.ListingRecord, error) {
	doc, err := s.fetch(ctx, stub.URL)
	if err != nil {
		return stub, fmt.Errorf("scrape: detail %s: %w", stub.URL, err)
	}
	return ParseDetailPage(doc, stub), nil
}

func (s *Scraper) fetch(ctx context.Context, rawURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("bad status code: %d", resp.StatusCode)
	}
	return goquery.NewDocumentFromReader(resp.Body)
}

func (s *Scraper) pause(ctx context.Context) {
	if s.delay <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(s.delay):
	}
}

// ParseSearchPage extracts listing stubs from a search result page,
// keeping items with at least minLikes likes.
func ParseSearchPage(doc *goquery.Document, minLikes int) []types.ListingRecord {
	var items []types.ListingRecord
	doc.Find("li.item-card").Each(func(_ int, card *goquery.Selection) {
		likes := parseLikes(card)
		if likes < minLikes {
			return
		}

		anchor := card.Find("a.item-card__title-anchor, .item-card__title a").First()
		title := strings.TrimSpace(anchor.Text())
		href, _ := anchor.Attr("href")
		if href == "" {
			return
		}
		if strings.HasPrefix(href, "/") {
			href = BaseURL + href
		}

		rec := types.ListingRecord{
			URL:   href,
			Title: title,
			Likes: likes,
		}
		if thumb, ok := card.Find("a[data-original]").First().Attr("data-original"); ok {
			rec.Images = []string{thumb}
		}
		rec.Price = strings.TrimSpace(card.Find(".price").First().Text())
		shop := card.Find(".item-card__shop-name-anchor").First()
		rec.Shop = strings.TrimSpace(shop.Text())
		rec.ShopURL, _ = shop.Attr("href")

		items = append(items, rec)
	})
	return items
}

func parseLikes(card *goquery.Selection) int {
	text := card.Find(`[class*="shop__text--link"] .typography-14`).First().Text()
	m := likesRe.FindString(text)
	if m == "" {
		return 0
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m, ",", ""))
	if err != nil {
		return 0
	}
	return n
}

// ParseDetailPage merges a detail page into a phase 1 stub. Fields the
// page doesn't provide keep the stub's values.
func ParseDetailPage(doc *goquery.Document, stub types.ListingRecord) types.ListingRecord {
	rec := stub

	if title := strings.TrimSpace(doc.Find("h2.font-bold").First().Text()); title != "" {
		rec.Title = title
	}
	if shop := strings.TrimSpace(doc.Find("header a[href*='booth.pm'] span").First().Text()); shop != "" {
		rec.Shop = shop
	}

	if rawPrice, ok := doc.Find("div#items").First().Attr("data-product-price"); ok && rawPrice != "" {
		suffix := ""
		if doc.Find("div.variation-name, div[class*='variation-name']").Length() > 1 {
			suffix = "~"
		}
		rec.Price = "¥ " + rawPrice + suffix
	}

	desc := doc.Find("div.market-item-detail-description").First()
	if desc.Length() == 0 {
		desc = doc.Find("div.js-market-item-detail-description").First()
	}
	if desc.Length() > 0 {
		clone := desc.Clone()
		clone.Find("aside, .sidebar, .shop-info").Remove()
		rec.Description = strings.Join(strings.Fields(clone.Text()), " ")
	}

	// Category comes from the last meaningful breadcrumb.
	var crumbs []string
	doc.Find("nav[aria-label=breadcrumb] ol li a").Each(func(_ int, a *goquery.Selection) {
		if t := strings.TrimSpace(a.Text()); t != "" {
			crumbs = append(crumbs, t)
		}
	})
	if len(crumbs) > 0 {
		rec.Category = crumbs[len(crumbs)-1]
	}

	var images []string
	doc.Find("img.market-item-detail-item-image").Each(func(_ int, img *goquery.Selection) {
		src, ok := img.Attr("data-origin")
		if !ok || src == "" {
			src, _ = img.Attr("src")
		}
		if src != "" {
			images = append(images, src)
		}
	})
	if len(images) > 0 {
		rec.Images = images
	}

	rec.Avatars = MatchKeywords(rec.Title+" "+rec.Description, AvatarNames)
	rec.Colors = MatchKeywords(rec.Title+" "+rec.Description, ColorNames)
	return rec
}

// WriteJSONL appends records to a JSONL file, one record per line.
func WriteJSONL(path string, records []types.ListingRecord) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("scrape: open output: %w", err)
	}
	defer f.Close()
	return AppendJSONL(f, records)
}

// AppendJSONL writes records to w, one JSON document per line.
func AppendJSONL(w io.Writer, records []types.ListingRecord) error {
	enc := json.NewEncoder(w)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("scrape: encode record: %w", err)
		}
	}
	return nil
}

// ReadJSONL parses listing records from a JSONL stream, skipping blank
// and malformed lines.
func ReadJSONL(r io.Reader) ([]types.ListingRecord, error) {
	var records []types.ListingRecord
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec types.ListingRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			slog.Warn("Skipping malformed listing line", "error", err)
			continue
		}
		records = append(records, rec)
	}
	return records, scanner.Err()
}
