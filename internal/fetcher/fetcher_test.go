package fetcher

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/skinarb/skinarb/pkg/types"
)

// stubClient serves scripted pages. A nil page entry fails the fetch.
type stubClient struct {
	marketplace types.Marketplace
	pages       map[int]*types.CataloguePage
	calls       []int
}

func (s *stubClient) Marketplace() types.Marketplace { return s.marketplace }

func (s *stubClient) FetchPage(ctx context.Context, page, pageSize int) (*types.CataloguePage, error) {
	s.calls = append(s.calls, page)
	p, ok := s.pages[page]
	if !ok || p == nil {
		return nil, fmt.Errorf("scripted failure for page %d", page)
	}
	return p, nil
}

func pageOf(totalPages int, keys ...string) *types.CataloguePage {
	items := make([]types.Item, 0, len(keys))
	for _, k := range keys {
		items = append(items, types.Item{ID: k, Key: k, Name: k, Price: 10})
	}
	return &types.CataloguePage{Items: items, TotalPages: totalPages}
}

func newTestFetcher(t *testing.T, failureCap int, reporter OutcomeReporter) *Fetcher {
	t.Helper()
	f, err := New(&Config{
		PageSize:   10,
		MaxPages:   50,
		FailureCap: failureCap,
		Reporter:   reporter,
		Logger:     zap.NewNop(),
	})
	require.NoError(t, err)
	return f
}

func TestFetchAllUsesAdvertisedTotal(t *testing.T) {
	client := &stubClient{
		marketplace: types.MarketplaceBuff,
		pages: map[int]*types.CataloguePage{
			1: pageOf(3, "a", "b"),
			2: pageOf(3, "c"),
			3: pageOf(3, "d"),
			4: pageOf(3, "never fetched"),
		},
	}

	f := newTestFetcher(t, 0, nil)
	cat, err := f.FetchAll(context.Background(), client, nil)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3}, client.calls)
	assert.Len(t, cat.Items, 4)
	assert.Equal(t, 3, cat.SuccessfulPages)
	assert.Equal(t, 0, cat.FailedPages)
}

func TestFetchAllStopsOnEmptyPageWithoutTotal(t *testing.T) {
	client := &stubClient{
		marketplace: types.MarketplaceYoupin,
		pages: map[int]*types.CataloguePage{
			1: pageOf(0, "a"),
			2: pageOf(0, "b"),
			3: pageOf(0),
			4: pageOf(0, "never fetched"),
		},
	}

	f := newTestFetcher(t, 0, nil)
	cat, err := f.FetchAll(context.Background(), client, nil)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3}, client.calls)
	assert.Len(t, cat.Items, 2)
}

func TestFetchAllSkipsFailedPages(t *testing.T) {
	client := &stubClient{
		marketplace: types.MarketplaceBuff,
		pages: map[int]*types.CataloguePage{
			1: pageOf(3, "a"),
			// page 2 fails
			3: pageOf(3, "c"),
		},
	}

	f := newTestFetcher(t, 5, nil)
	cat, err := f.FetchAll(context.Background(), client, nil)
	require.NoError(t, err)

	assert.Len(t, cat.Items, 2)
	assert.Equal(t, 2, cat.SuccessfulPages)
	assert.Equal(t, 1, cat.FailedPages)
}

func TestFetchAllAbortsAtFailureCap(t *testing.T) {
	client := &stubClient{
		marketplace: types.MarketplaceYoupin,
		pages:       map[int]*types.CataloguePage{},
	}

	f := newTestFetcher(t, 3, nil)
	cat, err := f.FetchAll(context.Background(), client, nil)

	require.Error(t, err)
	assert.Equal(t, 3, cat.FailedPages)
	assert.Len(t, client.calls, 3)
}

// authFailClient fails every page with an authentication error.
type authFailClient struct {
	marketplace types.Marketplace
	calls       int
}

func (c *authFailClient) Marketplace() types.Marketplace { return c.marketplace }

func (c *authFailClient) FetchPage(ctx context.Context, page, pageSize int) (*types.CataloguePage, error) {
	c.calls++
	return nil, fmt.Errorf("%w: session expired", types.ErrAuthFailed)
}

func TestFetchAllAbortsOnAuthFailure(t *testing.T) {
	client := &authFailClient{marketplace: types.MarketplaceBuff}

	// Generous failure cap: the abort must come from the auth error alone
	f := newTestFetcher(t, 10, nil)
	cat, err := f.FetchAll(context.Background(), client, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrAuthFailed)
	assert.Equal(t, 1, client.calls)
	assert.Equal(t, 1, cat.FailedPages)
}

func TestSetLimitsAppliesToNextWalk(t *testing.T) {
	client := &stubClient{
		marketplace: types.MarketplaceYoupin,
		pages: map[int]*types.CataloguePage{
			1: pageOf(0, "a"),
			2: pageOf(0, "b"),
			3: pageOf(0, "c"),
		},
	}

	f := newTestFetcher(t, 0, nil)
	f.SetLimits(25, 2)

	cat, err := f.FetchAll(context.Background(), client, nil)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2}, client.calls)
	assert.Len(t, cat.Items, 2)
}

func TestFetchAllCancellationReturnsPartial(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	client := &stubClient{
		marketplace: types.MarketplaceBuff,
		pages: map[int]*types.CataloguePage{
			1: pageOf(10, "a"),
		},
	}
	// Cancel after the first page by failing page 2 with a cancelled ctx
	f := newTestFetcher(t, 0, nil)

	cat, err := f.FetchAll(ctx, &cancellingClient{inner: client, cancel: cancel, after: 1}, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, cat.Items, 1)
}

// cancellingClient cancels the context after a number of successful pages.
type cancellingClient struct {
	inner  *stubClient
	cancel context.CancelFunc
	after  int
	count  int
}

func (c *cancellingClient) Marketplace() types.Marketplace { return c.inner.Marketplace() }

func (c *cancellingClient) FetchPage(ctx context.Context, page, pageSize int) (*types.CataloguePage, error) {
	p, err := c.inner.FetchPage(ctx, page, pageSize)
	if err == nil {
		c.count++
		if c.count >= c.after {
			c.cancel()
		}
	}
	return p, err
}

// recordingReporter captures breaker signals.
type recordingReporter struct {
	mu       sync.Mutex
	outcomes []bool
}

func (r *recordingReporter) Record(marketplace types.Marketplace, success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, success)
}

func TestFetchAllReportsOutcomes(t *testing.T) {
	client := &stubClient{
		marketplace: types.MarketplaceBuff,
		pages: map[int]*types.CataloguePage{
			1: pageOf(2, "a"),
			// page 2 fails
		},
	}

	reporter := &recordingReporter{}
	f := newTestFetcher(t, 5, reporter)

	_, err := f.FetchAll(context.Background(), client, nil)
	require.NoError(t, err)

	assert.Equal(t, []bool{true, false}, reporter.outcomes)
}
