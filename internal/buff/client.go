package buff

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/skinarb/skinarb/internal/credentials"
	"github.com/skinarb/skinarb/internal/pacing"
	"github.com/skinarb/skinarb/pkg/types"
)

// Client fetches sell listings from the Buff marketplace. Credentials are
// read from the store on every request so token updates apply to in-flight
// refreshes without a restart.
type Client struct {
	http        *resty.Client
	pacer       *pacing.Pacer
	backoff     *pacing.Backoff
	creds       *credentials.Store
	logger      *zap.Logger
	baseURL     string
	maxAttempts int
}

// Config holds client configuration.
type Config struct {
	BaseURL        string
	RequestTimeout time.Duration
	MaxAttempts    int
	BackoffBase    time.Duration
	BackoffMax     time.Duration
	Pacer          *pacing.Pacer
	Credentials    *credentials.Store
	Logger         *zap.Logger
}

// New creates a new Buff client.
func New(cfg *Config) *Client {
	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.RequestTimeout).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "application/json, text/plain, */*").
		SetHeader("Referer", cfg.BaseURL+"/market/csgo")

	return &Client{
		http:        httpClient,
		pacer:       cfg.Pacer,
		backoff:     pacing.NewBackoff(cfg.BackoffBase, cfg.BackoffMax),
		creds:       cfg.Credentials,
		logger:      cfg.Logger,
		baseURL:     cfg.BaseURL,
		maxAttempts: cfg.MaxAttempts,
	}
}

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Marketplace identifies this client's marketplace.
func (c *Client) Marketplace() types.Marketplace {
	return types.MarketplaceBuff
}

type goodsResponse struct {
	Code string `json:"code"`
	Data struct {
		Items      []goodsItem `json:"items"`
		TotalCount int         `json:"total_count"`
		TotalPage  int         `json:"total_page"`
	} `json:"data"`
}

type goodsItem struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	MarketHashName string `json:"market_hash_name"`
	SellMinPrice   string `json:"sell_min_price"`
	SellNum        int    `json:"sell_num"`
	GoodsInfo      struct {
		IconURL string `json:"icon_url"`
	} `json:"goods_info"`
}

// FetchPage retrieves one page of sell listings. Page numbers are 1-based.
func (c *Client) FetchPage(ctx context.Context, page, pageSize int) (*types.CataloguePage, error) {
	var lastErr error
	authRetried := false

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		err := c.pacer.Wait(ctx)
		if err != nil {
			return nil, err
		}

		result, retryable, err := c.fetchOnce(ctx, page, pageSize)
		if err == nil {
			PagesFetchedTotal.Inc()
			ItemsFetchedTotal.Add(float64(len(result.Items)))
			return result, nil
		}
		lastErr = err

		if errors.Is(err, types.ErrAuthFailed) {
			// One extra attempt, tokens may have just been refreshed
			if authRetried {
				return nil, err
			}
			authRetried = true
		} else if !retryable || ctx.Err() != nil {
			return nil, err
		}

		if attempt < c.maxAttempts {
			delay := c.backoff.Delay(attempt)
			c.logger.Warn("buff-page-retry",
				zap.Int("page", page),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", delay),
				zap.Error(err))
			err = pacing.Sleep(ctx, delay)
			if err != nil {
				return nil, fmt.Errorf("retry wait: %w", err)
			}
		}
	}

	return nil, fmt.Errorf("fetch buff page %d after %d attempts: %w", page, c.maxAttempts, lastErr)
}

// fetchOnce performs a single request. The bool reports whether a failure
// is worth retrying.
func (c *Client) fetchOnce(ctx context.Context, page, pageSize int) (*types.CataloguePage, bool, error) {
	var body goodsResponse

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Cookie", c.cookieHeader()).
		SetQueryParam("game", "csgo").
		SetQueryParam("page_num", strconv.Itoa(page)).
		SetQueryParam("page_size", strconv.Itoa(pageSize)).
		SetQueryParam("tab", "selling").
		SetQueryParam("_", strconv.FormatInt(time.Now().UnixMilli(), 10)).
		SetResult(&body).
		Get("/api/market/goods")
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, fmt.Errorf("fetch buff page %d: %w", page, ctx.Err())
		}
		RequestsTotal.WithLabelValues("transport_error").Inc()
		return nil, true, fmt.Errorf("%w: buff request: %v", types.ErrUpstreamUnavailable, err)
	}

	switch {
	case resp.StatusCode() == http.StatusForbidden || resp.StatusCode() == http.StatusUnauthorized:
		RequestsTotal.WithLabelValues("forbidden").Inc()
		return nil, false, fmt.Errorf("%w: buff returned %d", types.ErrAuthFailed, resp.StatusCode())
	case resp.StatusCode() == http.StatusTooManyRequests:
		RequestsTotal.WithLabelValues("rate_limited").Inc()
		return nil, true, fmt.Errorf("%w: buff returned 429", types.ErrRateLimited)
	case resp.StatusCode() != http.StatusOK:
		RequestsTotal.WithLabelValues("http_error").Inc()
		return nil, true, fmt.Errorf("%w: buff returned status %d", types.ErrUpstreamUnavailable, resp.StatusCode())
	}

	if body.Code != "OK" {
		if strings.Contains(body.Code, "Login") {
			RequestsTotal.WithLabelValues("auth_error").Inc()
			return nil, false, fmt.Errorf("%w: buff api code %q", types.ErrAuthFailed, body.Code)
		}
		RequestsTotal.WithLabelValues("api_error").Inc()
		return nil, true, fmt.Errorf("%w: buff api code %q", types.ErrUpstreamUnavailable, body.Code)
	}

	RequestsTotal.WithLabelValues("ok").Inc()

	items := make([]types.Item, 0, len(body.Data.Items))
	for _, g := range body.Data.Items {
		price, err := decimal.NewFromString(g.SellMinPrice)
		if err != nil {
			c.logger.Debug("buff-price-unparseable",
				zap.String("name", g.Name),
				zap.String("price", g.SellMinPrice))
			continue
		}

		items = append(items, types.Item{
			ID:        strconv.FormatInt(g.ID, 10),
			Key:       g.MarketHashName,
			Name:      g.Name,
			Price:     price.InexactFloat64(),
			SellCount: g.SellNum,
			IconURL:   g.GoodsInfo.IconURL,
			URL:       fmt.Sprintf("%s/goods/%d", c.baseURL, g.ID),
		})
	}

	return &types.CataloguePage{
		Items:      items,
		TotalPages: body.Data.TotalPage,
		TotalItems: body.Data.TotalCount,
	}, false, nil
}

// cookieHeader renders the stored cookies as a Cookie header value with a
// stable ordering.
func (c *Client) cookieHeader() string {
	creds := c.creds.Buff()

	names := make([]string, 0, len(creds.Cookies))
	for name := range creds.Cookies {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+"="+creds.Cookies[name])
	}
	return strings.Join(parts, "; ")
}
