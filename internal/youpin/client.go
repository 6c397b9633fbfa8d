package youpin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/skinarb/skinarb/internal/credentials"
	"github.com/skinarb/skinarb/internal/pacing"
	"github.com/skinarb/skinarb/pkg/types"
)

// Client fetches sell listings from the Youpin marketplace. Device-bound
// headers are derived from the credential store on every request.
type Client struct {
	http        *resty.Client
	pacer       *pacing.Pacer
	backoff     *pacing.Backoff
	creds       *credentials.Store
	logger      *zap.Logger
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

// New creates a new Youpin client.
func New(cfg *Config) *Client {
	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.RequestTimeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("App-Version", "6.12.0").
		SetHeader("AppType", "1").
		SetHeader("Platform", "pc").
		SetHeader("Secret-V", "h5_v1")

	return &Client{
		http:        httpClient,
		pacer:       cfg.Pacer,
		backoff:     pacing.NewBackoff(cfg.BackoffBase, cfg.BackoffMax),
		creds:       cfg.Credentials,
		logger:      cfg.Logger,
		maxAttempts: cfg.MaxAttempts,
	}
}

// Marketplace identifies this client's marketplace.
func (c *Client) Marketplace() types.Marketplace {
	return types.MarketplaceYoupin
}

type saleTemplateRequest struct {
	ListSortType int `json:"listSortType"`
	SortType     int `json:"sortType"`
	PageSize     int `json:"pageSize"`
	PageIndex    int `json:"pageIndex"`
}

type saleTemplateResponse struct {
	Code int    `json:"Code"`
	Msg  string `json:"Msg"`
	Data []struct {
		ID                int64           `json:"Id"`
		CommodityName     string          `json:"CommodityName"`
		CommodityHashName string          `json:"CommodityHashName"`
		Price             decimal.Decimal `json:"Price"`
		OnSaleCount       int             `json:"OnSaleCount"`
		IconURL           string          `json:"IconUrl"`
	} `json:"Data"`
}

// FetchPage retrieves one page of sell listings. Page numbers are 1-based.
// Youpin does not advertise totals, so TotalPages is always zero and the
// caller stops on the first empty page.
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
			if authRetried {
				return nil, err
			}
			authRetried = true
		} else if !retryable || ctx.Err() != nil {
			return nil, err
		}

		if attempt < c.maxAttempts {
			delay := c.backoff.Delay(attempt)
			c.logger.Warn("youpin-page-retry",
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

	return nil, fmt.Errorf("fetch youpin page %d after %d attempts: %w", page, c.maxAttempts, lastErr)
}

func (c *Client) fetchOnce(ctx context.Context, page, pageSize int) (*types.CataloguePage, bool, error) {
	var body saleTemplateResponse

	req := c.http.R().
		SetContext(ctx).
		SetBody(saleTemplateRequest{
			ListSortType: 0,
			SortType:     0,
			PageSize:     pageSize,
			PageIndex:    page,
		}).
		SetResult(&body)

	for name, value := range c.authHeaders() {
		req.SetHeader(name, value)
	}

	resp, err := req.Post("/api/homepage/pc/goods/market/querySaleTemplate")
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, fmt.Errorf("fetch youpin page %d: %w", page, ctx.Err())
		}
		RequestsTotal.WithLabelValues("transport_error").Inc()
		return nil, true, fmt.Errorf("%w: youpin request: %v", types.ErrUpstreamUnavailable, err)
	}

	switch {
	case resp.StatusCode() == http.StatusForbidden || resp.StatusCode() == http.StatusUnauthorized:
		RequestsTotal.WithLabelValues("forbidden").Inc()
		return nil, false, fmt.Errorf("%w: youpin returned %d", types.ErrAuthFailed, resp.StatusCode())
	case resp.StatusCode() == http.StatusTooManyRequests:
		RequestsTotal.WithLabelValues("rate_limited").Inc()
		return nil, true, fmt.Errorf("%w: youpin returned 429", types.ErrRateLimited)
	case resp.StatusCode() != http.StatusOK:
		RequestsTotal.WithLabelValues("http_error").Inc()
		return nil, true, fmt.Errorf("%w: youpin returned status %d", types.ErrUpstreamUnavailable, resp.StatusCode())
	}

	if body.Code != 0 {
		RequestsTotal.WithLabelValues("api_error").Inc()
		return nil, true, fmt.Errorf("%w: youpin api code %d (%s)", types.ErrUpstreamUnavailable, body.Code, body.Msg)
	}

	RequestsTotal.WithLabelValues("ok").Inc()

	items := make([]types.Item, 0, len(body.Data))
	for _, d := range body.Data {
		items = append(items, types.Item{
			ID:        fmt.Sprintf("%d", d.ID),
			Key:       d.CommodityHashName,
			Name:      d.CommodityName,
			Price:     d.Price.InexactFloat64(),
			SellCount: d.OnSaleCount,
			IconURL:   d.IconURL,
		})
	}

	return &types.CataloguePage{Items: items}, false, nil
}

// authHeaders assembles the device-bound headers from the stored
// credentials. The W3C traceparent is derived from the B3 value when one
// is configured.
func (c *Client) authHeaders() map[string]string {
	creds := c.creds.Youpin()

	headers := map[string]string{
		"DeviceId":      creds.DeviceID,
		"DeviceUk":      creds.DeviceUK,
		"Uk":            creds.UK,
		"Authorization": creds.Authorization,
	}

	if creds.B3 != "" {
		headers["B3"] = creds.B3
		parts := strings.Split(creds.B3, "-")
		if len(parts) >= 2 {
			headers["TraceParent"] = fmt.Sprintf("00-%s-%s-01", parts[0], parts[1])
		}
	}

	for name, value := range creds.Headers {
		headers[name] = value
	}

	return headers
}
