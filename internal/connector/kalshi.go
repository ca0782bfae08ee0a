package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/oddsflow/scanner/internal/logger"
	"github.com/oddsflow/scanner/internal/models"
)

const userAgent = "oddsflow-scanner/0.1"

// Rate-limit backoff: server-suggested Retry-After when present, otherwise
// exponential starting at 500ms with an 8s ceiling, plus up to 250ms jitter
// so concurrent clients don't synchronize with the rate-limit window.
const (
	retryDelayBase = 500 * time.Millisecond
	retryDelayMax  = 8 * time.Second
	retryJitterMax = 250 * time.Millisecond
)

// politicsKeywords is the series filter: a series survives discovery when its
// category, title, or ticker contains any keyword (case-insensitive).
var politicsKeywords = []string{
	"politic", "election", "president", "presidential", "senate", "house", "congress",
	"governor", "mayor", "ballot", "referendum", "approval", "poll", "impeach",
	"democrat", "republican", "gop",
}

// KalshiConfig holds the remote connector's tuning knobs.
type KalshiConfig struct {
	BaseURL      string
	SeriesPages  int           // max pages when discovering series
	EventsPages  int           // max event pages per series
	PageSize     int           // series page size
	LimitMarkets int           // stop collecting once this many markets are emitted
	BandCents    float64       // depth aggregation band around the implied price
	MaxRetries   int           // rate-limit retry ceiling per request
	Timeout      time.Duration // per-request HTTP timeout
}

// Kalshi ingests politics markets by construction: series discovery filtered
// by keyword, then events with nested markets under each surviving series.
//
// The connector is stateful: prevVolume keeps each market's last cumulative
// volume so flow can be derived as max(volume - previous, 0). The ingestion
// loop is the single writer of that map; Fetch must not be called from
// multiple goroutines.
type Kalshi struct {
	cfg        KalshiConfig
	httpClient *http.Client
	prevVolume map[string]float64
	series     []string
	discovered bool
}

// NewKalshi creates a Kalshi connector. Series discovery runs on the first
// Fetch and the surviving tickers are reused for the connector's lifetime.
func NewKalshi(cfg KalshiConfig) *Kalshi {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.elections.kalshi.com/trade-api/v2"
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 6
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 25 * time.Second
	}
	return &Kalshi{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		prevVolume: make(map[string]float64),
	}
}

// Fetch returns the current batch of politics market observations.
// Markets without a derivable probability are skipped for this cycle; an
// unreachable orderbook degrades that market's depth to zero. Transport and
// non-429 HTTP failures abort the whole fetch.
func (c *Kalshi) Fetch(ctx context.Context) ([]models.Observation, error) {
	if !c.discovered {
		series, err := c.discoverSeries(ctx)
		if err != nil {
			return nil, fmt.Errorf("series discovery failed: %w", err)
		}
		c.series = series
		c.discovered = true
		logger.Info("Discovered %d politics series", len(series))
	}
	if len(c.series) == 0 {
		// The /series endpoint returned no politics metadata; nothing to poll.
		return []models.Observation{}, nil
	}

	collected := make([]models.Observation, 0, c.cfg.LimitMarkets)
	seen := make(map[string]bool)

	for _, st := range c.series {
		if len(collected) >= c.cfg.LimitMarkets {
			break
		}

		endpoint := "/events?series_ticker=" + url.QueryEscape(st) + "&with_nested_markets=true"
		err := c.forEachPage(ctx, endpoint, 100, c.cfg.EventsPages, func(p *apiPage) (bool, error) {
			events := p.Events
			if events == nil {
				events = p.Data
			}
			for _, ev := range events {
				for _, m := range asMaps(ev["markets"]) {
					obs, emitted, err := c.buildObservation(ctx, m, seen)
					if err != nil {
						return false, err
					}
					if emitted {
						collected = append(collected, obs)
					}
					if len(collected) >= c.cfg.LimitMarkets {
						return false, nil
					}
				}
			}
			return true, nil
		})
		if err != nil {
			return nil, err
		}
	}

	return collected, nil
}

// buildObservation derives one observation from a nested market object.
// emitted is false when the market is skipped (duplicate, or no derivable
// probability this cycle); such markets stay eligible for the next cycle.
func (c *Kalshi) buildObservation(ctx context.Context, m map[string]any, seen map[string]bool) (models.Observation, bool, error) {
	ticker, ok := firstString(m, tickerAliases)
	if !ok {
		return models.Observation{}, false, nil
	}
	if seen[ticker] {
		return models.Observation{}, false, nil
	}
	seen[ticker] = true

	title, ok := firstString(m, titleAliases)
	if !ok {
		title = ticker
	}

	// Probability from the nested fields; one detail fetch when missing.
	p, ok := impliedP(m)
	var detail map[string]any
	if !ok {
		var err error
		detail, err = c.fetchMarketDetail(ctx, ticker)
		if err != nil {
			return models.Observation{}, false, err
		}
		p, ok = impliedP(detail)
	}
	if !ok {
		logger.Debug("Skipping %s: no derivable probability this cycle", ticker)
		return models.Observation{}, false, nil
	}

	// Cumulative volume; nested markets sometimes omit it.
	vol, _ := firstFloat(m, volumeAliases)
	if vol == 0 && detail == nil {
		var err error
		detail, err = c.fetchMarketDetail(ctx, ticker)
		if err != nil {
			return models.Observation{}, false, err
		}
		vol, _ = firstFloat(detail, volumeAliases)
	}

	// Flow is the non-negative volume delta. A first observation and a
	// cumulative-volume regression both yield zero, never a negative delta.
	prev, known := c.prevVolume[ticker]
	if !known {
		prev = vol
	}
	flow := math.Max(vol-prev, 0.0)
	c.prevVolume[ticker] = vol

	bid := optionalFloat(m, detail, yesBidAliases)
	ask := optionalFloat(m, detail, yesAskAliases)
	midCents := p * 100.0

	depth, err := c.depthNear(ctx, ticker, midCents)
	if err != nil {
		logger.Warn("Orderbook unavailable for %s, depth degraded to 0: %v", ticker, err)
		depth = 0.0
	}

	return models.Observation{
		Platform: "kalshi",
		MarketID: ticker,
		Title:    title,
		// category is blank on this host; use a stable label
		Category:  "politics",
		P:         p,
		Flow:      flow,
		Depth:     depth,
		Bid:       bid,
		Ask:       ask,
		Mid:       &midCents,
		Volume24h: &vol,
	}, true, nil
}

// discoverSeries pages through /series and keeps tickers whose metadata looks
// politics-related, deduplicated and sorted so repeated runs enumerate
// identically.
func (c *Kalshi) discoverSeries(ctx context.Context) ([]string, error) {
	var tickers []string
	seen := make(map[string]bool)

	err := c.forEachPage(ctx, "/series", c.cfg.PageSize, c.cfg.SeriesPages, func(p *apiPage) (bool, error) {
		series := p.Series
		if series == nil {
			series = p.Data
		}
		for _, s := range series {
			if !looksPoliticsSeries(s) {
				continue
			}
			t, ok := firstString(s, []string{"ticker", "series_ticker"})
			if !ok || seen[t] {
				continue
			}
			seen[t] = true
			tickers = append(tickers, t)
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(tickers)
	return tickers, nil
}

func looksPoliticsSeries(s map[string]any) bool {
	cat, _ := firstString(s, []string{"category"})
	title, _ := firstString(s, []string{"title", "name", "ticker"})
	text := strings.ToLower(strings.TrimSpace(cat + " " + title))

	for _, k := range politicsKeywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

// impliedP derives the implied probability from a market object using the
// fallback chain: mid of bid/ask in cents, then a quoted mid price, then the
// last trade price. The result is clamped to [0.001, 0.999].
func impliedP(m map[string]any) (float64, bool) {
	var midCents float64

	bid, bidOK := firstFloat(m, yesBidAliases)
	ask, askOK := firstFloat(m, yesAskAliases)
	switch {
	case bidOK && askOK && bid > 0 && ask > 0:
		midCents = 0.5 * (bid + ask)
	default:
		if yp, ok := firstFloat(m, yesPriceAliases); ok {
			midCents = yp
		} else if lp, ok := firstFloat(m, lastAliases); ok {
			midCents = lp
		} else {
			return 0, false
		}
	}

	p := midCents / 100.0
	return math.Max(math.Min(p, 0.999), 0.001), true
}

// depthNear returns the YES-side resting quantity within ±BandCents of the
// given price. Levels arrive either as [price, qty] pairs or as objects.
func (c *Kalshi) depthNear(ctx context.Context, ticker string, midCents float64) (float64, error) {
	var payload map[string]any
	obURL := fmt.Sprintf("%s/markets/%s/orderbook", c.cfg.BaseURL, url.PathEscape(ticker))
	if err := c.getJSON(ctx, obURL, &payload); err != nil {
		return 0, err
	}

	ob := payload
	if nested, ok := payload["orderbook"].(map[string]any); ok {
		ob = nested
	}

	levels := ob["yes"]
	if levels == nil {
		levels = ob["YES"]
	}

	lo := midCents - c.cfg.BandCents
	hi := midCents + c.cfg.BandCents

	var depth float64
	rawLevels, _ := levels.([]any)
	for _, lvl := range rawLevels {
		var px, qty float64
		var pxOK, qtyOK bool
		switch l := lvl.(type) {
		case []any:
			if len(l) >= 2 {
				px, pxOK = toFloat(l[0])
				qty, qtyOK = toFloat(l[1])
			}
		case map[string]any:
			px, pxOK = firstFloat(l, obPriceAliases)
			qty, qtyOK = firstFloat(l, obQtyAliases)
		}
		if !pxOK || !qtyOK {
			continue
		}
		if lo <= px && px <= hi {
			depth += qty
		}
	}
	return depth, nil
}

func (c *Kalshi) fetchMarketDetail(ctx context.Context, ticker string) (map[string]any, error) {
	var payload struct {
		Market map[string]any `json:"market"`
	}
	detailURL := fmt.Sprintf("%s/markets/%s", c.cfg.BaseURL, url.PathEscape(ticker))
	if err := c.getJSON(ctx, detailURL, &payload); err != nil {
		return nil, fmt.Errorf("failed to fetch market detail for %s: %w", ticker, err)
	}
	if payload.Market == nil {
		return map[string]any{}, nil
	}
	return payload.Market, nil
}

// apiPage covers the shapes of the paged endpoints; each response uses one of
// the list fields plus an optional continuation cursor.
type apiPage struct {
	Cursor string           `json:"cursor"`
	Series []map[string]any `json:"series"`
	Events []map[string]any `json:"events"`
	Data   []map[string]any `json:"data"`
}

// forEachPage walks a cursor-paginated endpoint for up to maxPages pages,
// calling visit on each page. visit returns false to stop early.
func (c *Kalshi) forEachPage(ctx context.Context, endpoint string, limit, maxPages int, visit func(*apiPage) (bool, error)) error {
	cursor := ""
	for i := 0; i < maxPages; i++ {
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		pageURL := fmt.Sprintf("%s%s%slimit=%d", c.cfg.BaseURL, endpoint, sep, limit)
		if cursor != "" {
			pageURL += "&cursor=" + url.QueryEscape(cursor)
		}

		var page apiPage
		if err := c.getJSON(ctx, pageURL, &page); err != nil {
			return err
		}

		cont, err := visit(&page)
		if err != nil {
			return err
		}
		if !cont || page.Cursor == "" {
			return nil
		}
		cursor = page.Cursor
	}
	return nil
}

// getJSON performs a GET request and decodes the JSON response into v.
// 429 responses are retried with backoff up to the configured ceiling, after
// which a RateLimitError is returned. Every other failure, transport or HTTP,
// propagates immediately without retry.
func (c *Kalshi) getJSON(ctx context.Context, urlStr string, v any) error {
	delay := retryDelayBase

	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
		if err != nil {
			return fmt.Errorf("failed to build request: %w", err)
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			sleep := delay
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if secs, perr := strconv.ParseFloat(ra, 64); perr == nil {
					sleep = time.Duration(secs * float64(time.Second))
				}
			}
			resp.Body.Close()

			sleep += time.Duration(rand.Float64() * float64(retryJitterMax))
			logger.Debug("Rate limited on %s, sleeping %v (attempt %d/%d)", urlStr, sleep, attempt+1, c.cfg.MaxRetries)
			time.Sleep(sleep)

			delay *= 2
			if delay > retryDelayMax {
				delay = retryDelayMax
			}
			continue
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return fmt.Errorf("unexpected status %d for url=%s", resp.StatusCode, urlStr)
		}

		err = json.NewDecoder(resp.Body).Decode(v)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	}

	return &RateLimitError{URL: urlStr, Attempts: c.cfg.MaxRetries}
}

// optionalFloat looks an alias chain up in the nested market first, then in
// the detail object when one was fetched.
func optionalFloat(m, detail map[string]any, keys []string) *float64 {
	if f, ok := firstFloat(m, keys); ok {
		return &f
	}
	if detail != nil {
		if f, ok := firstFloat(detail, keys); ok {
			return &f
		}
	}
	return nil
}
