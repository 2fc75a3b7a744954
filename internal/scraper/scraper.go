package scraper

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/markusmobius/go-trafilatura"
	"github.com/temoto/robotstxt"
	"golang.org/x/time/rate"
)

const (
	scraperUserAgent = "CouncilDigest-Bot/1.0 (+https://councildigest.example.com/bot)"

	// One navigation per second keeps us well under the council site's
	// tolerance; chromedp navigations are serial anyway.
	navigationsPerSecond = 1.0
)

// Service drives a headless Chrome session against the council agenda
// page, downloads the Decisions and Minutes documents per meeting, and
// writes the on-disk index consumed by the meeting cache.
type Service struct {
	agendaURL  string
	outputDir  string
	chromePath string
	timeout    time.Duration
	limiter    *rate.Limiter
}

// NewService creates a scraper service. chromePath may be empty to let
// chromedp locate the browser itself.
func NewService(agendaURL, outputDir, chromePath string, timeout time.Duration) *Service {
	return &Service{
		agendaURL:  agendaURL,
		outputDir:  outputDir,
		chromePath: chromePath,
		timeout:    timeout,
		limiter:    rate.NewLimiter(rate.Limit(navigationsPerSecond), 1),
	}
}

// scrapedLink is the shape returned by the in-page collection script.
type scrapedLink struct {
	MeetingText  string `json:"meetingText"`
	MeetingURL   string `json:"meetingUrl"`
	DecisionsURL string `json:"decisionsUrl"`
	MinutesURL   string `json:"minutesUrl"`
}

// collectMeetingsJS walks the agenda table in-page. The council site is
// a single-page app, so the rows only exist after render.
const collectMeetingsJS = `
(() => {
  const rows = Array.from(document.querySelectorAll('table tbody tr'));
  return rows.map(row => {
    const meetingLink = row.querySelector('td a');
    const links = Array.from(row.querySelectorAll('a'));
    const byLabel = label => {
      const a = links.find(l => l.textContent.trim().toLowerCase() === label);
      return a ? a.href : '';
    };
    return {
      meetingText: row.textContent.trim().replace(/\s+/g, ' '),
      meetingUrl: meetingLink ? meetingLink.href : '',
      decisionsUrl: byLabel('decisions'),
      minutesUrl: byLabel('minutes'),
    };
  }).filter(m => m.meetingUrl !== '');
})()
`

// Scrape runs the full browser session: agenda page, then one
// navigation per linked document. The entire run is bounded by the
// configured timeout.
func (s *Service) Scrape(ctx context.Context) ([]ScrapedMeeting, error) {
	if allowed, err := s.checkRobots(ctx); err == nil && !allowed {
		return nil, fmt.Errorf("scraping disallowed by robots.txt for %s", s.agendaURL)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if s.chromePath != "" {
		opts = append(opts, chromedp.ExecPath(s.chromePath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	log.Printf("🌐 [SCRAPER] Loading agenda page: %s", s.agendaURL)

	var links []scrapedLink
	if err := chromedp.Run(browserCtx,
		network.Enable(),
		emulation.SetUserAgentOverride(scraperUserAgent),
		chromedp.Navigate(s.agendaURL),
		chromedp.WaitVisible("table tbody tr", chromedp.ByQuery),
		chromedp.Evaluate(collectMeetingsJS, &links),
	); err != nil {
		return nil, fmt.Errorf("failed to load agenda page: %w", err)
	}

	if len(links) == 0 {
		return nil, fmt.Errorf("agenda page produced no meeting rows")
	}
	log.Printf("🌐 [SCRAPER] Found %d meetings on agenda page", len(links))

	if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	meetings := make([]ScrapedMeeting, 0, len(links))
	for i, link := range links {
		m := ScrapedMeeting{
			MeetingText:  link.MeetingText,
			MeetingURL:   link.MeetingURL,
			DecisionsURL: link.DecisionsURL,
			MinutesURL:   link.MinutesURL,
		}

		if link.DecisionsURL != "" {
			name := fmt.Sprintf("meeting-%02d-decisions.txt", i+1)
			if err := s.fetchDocument(browserCtx, link.DecisionsURL, name); err != nil {
				log.Printf("⚠️  [SCRAPER] Decisions for %q failed: %v", link.MeetingText, err)
			} else {
				m.Files.Decisions = name
			}
		}
		if link.MinutesURL != "" {
			name := fmt.Sprintf("meeting-%02d-minutes.txt", i+1)
			if err := s.fetchDocument(browserCtx, link.MinutesURL, name); err != nil {
				log.Printf("⚠️  [SCRAPER] Minutes for %q failed: %v", link.MeetingText, err)
			} else {
				m.Files.Minutes = name
			}
		}

		meetings = append(meetings, m)
	}

	if err := SaveIndex(s.outputDir, meetings); err != nil {
		return nil, err
	}

	// Re-load so file paths come back resolved and existence-checked the
	// same way every other consumer sees them.
	return LoadIndex(s.outputDir)
}

// fetchDocument navigates to a document page, extracts its readable
// text and writes it as one blob in the output directory.
func (s *Service) fetchDocument(browserCtx context.Context, docURL, fileName string) error {
	if err := s.limiter.Wait(browserCtx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	var html string
	if err := chromedp.Run(browserCtx,
		chromedp.Navigate(docURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("failed to load %s: %w", docURL, err)
	}

	parsedURL, _ := url.Parse(docURL)
	result, err := trafilatura.Extract(strings.NewReader(html), trafilatura.Options{
		OriginalURL: parsedURL,
	})
	if err != nil || result == nil || result.ContentText == "" {
		// Some documents are plain enough that readability extraction
		// finds no "main" block; keep the raw text instead of nothing.
		text := fallbackText(html)
		if text == "" {
			return fmt.Errorf("no content extracted from %s", docURL)
		}
		return os.WriteFile(filepath.Join(s.outputDir, fileName), []byte(text), 0o644)
	}

	return os.WriteFile(filepath.Join(s.outputDir, fileName), []byte(result.ContentText), 0o644)
}

// fallbackText strips tags crudely when trafilatura rejects the page.
func fallbackText(html string) string {
	var b bytes.Buffer
	inTag := false
	for _, r := range html {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
			b.WriteRune('\n')
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// checkRobots fetches the council site's robots.txt. Missing or
// unreadable robots.txt allows the crawl, matching crawler convention.
func (s *Service) checkRobots(ctx context.Context) (bool, error) {
	parsedURL, err := url.Parse(s.agendaURL)
	if err != nil {
		return true, err
	}

	robotsURL := parsedURL.Scheme + "://" + parsedURL.Host + "/robots.txt"

	reqCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, "GET", robotsURL, nil)
	if err != nil {
		return true, nil
	}
	req.Header.Set("User-Agent", scraperUserAgent)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return true, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return true, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1*1024*1024))
	if err != nil {
		return true, nil
	}

	robotsData, err := robotstxt.FromBytes(body)
	if err != nil {
		return true, nil
	}

	group := robotsData.FindGroup("CouncilDigest-Bot")
	if group == nil {
		group = robotsData.FindGroup("*")
	}
	if group != nil {
		return group.Test(parsedURL.Path), nil
	}
	return true, nil
}
