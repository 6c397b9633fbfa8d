package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/skinarb/skinarb/internal/catalog"
	"github.com/skinarb/skinarb/internal/circuitbreaker"
	"github.com/skinarb/skinarb/internal/credentials"
	"github.com/skinarb/skinarb/internal/fetcher"
	"github.com/skinarb/skinarb/internal/refresh"
	"github.com/skinarb/skinarb/internal/settings"
	"github.com/skinarb/skinarb/pkg/types"
)

type handlers struct {
	logger       *zap.Logger
	orchestrator *refresh.Orchestrator
	scheduler    *refresh.Scheduler
	settings     *settings.Store
	credentials  *credentials.Store
	breaker      *circuitbreaker.UpstreamBreaker
	snapshots    *catalog.Snapshots
	probers      map[types.Marketplace]fetcher.PageClient
}

// envelope is the uniform response shape.
type envelope struct {
	OK    bool        `json:"ok"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

func writeData(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{OK: true, Data: data})
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusFor(err))
	_ = json.NewEncoder(w).Encode(envelope{OK: false, Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrValidationFailed):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrAlreadyRunning):
		return http.StatusConflict
	case errors.Is(err, types.ErrAuthFailed):
		return http.StatusBadGateway
	case errors.Is(err, types.ErrRateLimited):
		return http.StatusServiceUnavailable
	case errors.Is(err, types.ErrUpstreamUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// GET /api/items?min_diff&sort_by&limit
func (h *handlers) handleItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	minDiff := 0.0
	if raw := q.Get("min_diff"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeError(w, errorsWrap(types.ErrValidationFailed, "min_diff must be a number"))
			return
		}
		minDiff = v
	}

	limit := 0
	if raw := q.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, errorsWrap(types.ErrValidationFailed, "limit must be an integer"))
			return
		}
		limit = v
	}

	pairs, err := h.orchestrator.List(minDiff, q.Get("sort_by"), limit)
	if err != nil {
		writeError(w, err)
		return
	}

	writeData(w, http.StatusOK, map[string]interface{}{
		"items": pairs,
		"count": len(pairs),
	})
}

// GET /api/status
func (h *handlers) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, h.statusPayload())
}

func (h *handlers) statusPayload() map[string]interface{} {
	payload := map[string]interface{}{
		"refresh": h.orchestrator.GetStatus(),
	}
	if h.scheduler != nil {
		payload["schedule"] = h.scheduler.Next()
	}
	if h.breaker != nil {
		payload["upstreams"] = h.breaker.GetStatus()
	}
	return payload
}

// GET /api/statistics
func (h *handlers) handleStatistics(w http.ResponseWriter, r *http.Request) {
	payload := map[string]interface{}{
		"analysis": h.orchestrator.GetStats(),
	}
	if h.snapshots != nil {
		payload["catalogues"] = h.snapshots.Summarize()
	}
	writeData(w, http.StatusOK, payload)
}

// POST /api/update
func (h *handlers) handleUpdate(w http.ResponseWriter, r *http.Request) {
	h.triggerRefresh(w, types.RefreshFull)
}

// POST /api/update/incremental
func (h *handlers) handleUpdateIncremental(w http.ResponseWriter, r *http.Request) {
	h.triggerRefresh(w, types.RefreshIncremental)
}

// triggerRefresh starts a refresh. A refresh already in flight is not an
// error for the caller; the trigger is simply reported as absorbed.
func (h *handlers) triggerRefresh(w http.ResponseWriter, mode types.RefreshMode) {
	err := h.orchestrator.Trigger(mode)
	if err != nil {
		if errors.Is(err, types.ErrAlreadyRunning) {
			writeData(w, http.StatusOK, map[string]interface{}{
				"started": false,
				"reason":  "refresh already running",
			})
			return
		}
		writeError(w, err)
		return
	}

	writeData(w, http.StatusAccepted, map[string]interface{}{
		"started": true,
		"mode":    mode,
	})
}

// POST /api/cancel
func (h *handlers) handleCancel(w http.ResponseWriter, r *http.Request) {
	cancelled := h.orchestrator.CancelRunning()
	writeData(w, http.StatusOK, map[string]interface{}{"cancelled": cancelled})
}

// settingsDTO is the wire form of the runtime settings. Refresh intervals
// are in minutes and request delays in seconds, matching the
// operator-facing knobs.
type settingsDTO struct {
	MinDiff                    float64 `json:"min_diff"`
	MaxDiff                    float64 `json:"max_diff"`
	MinBuyPrice                float64 `json:"min_buy_price"`
	MaxBuyPrice                float64 `json:"max_buy_price"`
	MaxOutput                  int     `json:"max_output"`
	FullIntervalMinutes        float64 `json:"full_interval_minutes"`
	IncrementalIntervalMinutes float64 `json:"incremental_interval_minutes"`
	BuffMaxPages               int     `json:"buff_max_pages"`
	YoupinMaxPages             int     `json:"youpin_max_pages"`
	BuffPageSize               int     `json:"buff_page_size"`
	YoupinPageSize             int     `json:"youpin_page_size"`
	BuffMinDelaySeconds        float64 `json:"buff_min_delay_seconds"`
	YoupinMinDelaySeconds      float64 `json:"youpin_min_delay_seconds"`
}

func toDTO(s settings.Snapshot) settingsDTO {
	return settingsDTO{
		MinDiff:                    s.MinDiff,
		MaxDiff:                    s.MaxDiff,
		MinBuyPrice:                s.MinBuyPrice,
		MaxBuyPrice:                s.MaxBuyPrice,
		MaxOutput:                  s.MaxOutput,
		FullIntervalMinutes:        s.FullInterval.Minutes(),
		IncrementalIntervalMinutes: s.IncrementalInterval.Minutes(),
		BuffMaxPages:               s.BuffMaxPages,
		YoupinMaxPages:             s.YoupinMaxPages,
		BuffPageSize:               s.BuffPageSize,
		YoupinPageSize:             s.YoupinPageSize,
		BuffMinDelaySeconds:        s.BuffMinDelay.Seconds(),
		YoupinMinDelaySeconds:      s.YoupinMinDelay.Seconds(),
	}
}

// GET /api/settings
func (h *handlers) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, toDTO(h.settings.Current()))
}

// POST /api/settings
func (h *handlers) handlePostSettings(w http.ResponseWriter, r *http.Request) {
	var body struct {
		MinDiff                    *float64 `json:"min_diff"`
		MaxDiff                    *float64 `json:"max_diff"`
		MinBuyPrice                *float64 `json:"min_buy_price"`
		MaxBuyPrice                *float64 `json:"max_buy_price"`
		MaxOutput                  *int     `json:"max_output"`
		FullIntervalMinutes        *float64 `json:"full_interval_minutes"`
		IncrementalIntervalMinutes *float64 `json:"incremental_interval_minutes"`
		BuffMaxPages               *int     `json:"buff_max_pages"`
		YoupinMaxPages             *int     `json:"youpin_max_pages"`
		BuffPageSize               *int     `json:"buff_page_size"`
		YoupinPageSize             *int     `json:"youpin_page_size"`
		BuffMinDelaySeconds        *float64 `json:"buff_min_delay_seconds"`
		YoupinMinDelaySeconds      *float64 `json:"youpin_min_delay_seconds"`
	}

	err := json.NewDecoder(r.Body).Decode(&body)
	if err != nil {
		writeError(w, errorsWrap(types.ErrValidationFailed, "malformed json body"))
		return
	}

	update := settings.Update{
		MinDiff:        body.MinDiff,
		MaxDiff:        body.MaxDiff,
		MinBuyPrice:    body.MinBuyPrice,
		MaxBuyPrice:    body.MaxBuyPrice,
		MaxOutput:      body.MaxOutput,
		BuffMaxPages:   body.BuffMaxPages,
		YoupinMaxPages: body.YoupinMaxPages,
		BuffPageSize:   body.BuffPageSize,
		YoupinPageSize: body.YoupinPageSize,
	}
	if body.FullIntervalMinutes != nil {
		d := time.Duration(*body.FullIntervalMinutes * float64(time.Minute))
		update.FullInterval = &d
	}
	if body.IncrementalIntervalMinutes != nil {
		d := time.Duration(*body.IncrementalIntervalMinutes * float64(time.Minute))
		update.IncrementalInterval = &d
	}
	if body.BuffMinDelaySeconds != nil {
		d := time.Duration(*body.BuffMinDelaySeconds * float64(time.Second))
		update.BuffMinDelay = &d
	}
	if body.YoupinMinDelaySeconds != nil {
		d := time.Duration(*body.YoupinMinDelaySeconds * float64(time.Second))
		update.YoupinMinDelay = &d
	}

	applied, err := h.settings.Apply(update)
	if err != nil {
		writeError(w, err)
		return
	}

	writeData(w, http.StatusOK, toDTO(applied))
}

type rangeDTO struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// GET /api/price_range
func (h *handlers) handleGetPriceRange(w http.ResponseWriter, r *http.Request) {
	s := h.settings.Current()
	writeData(w, http.StatusOK, rangeDTO{Min: s.MinDiff, Max: s.MaxDiff})
}

// POST /api/price_range
func (h *handlers) handlePostPriceRange(w http.ResponseWriter, r *http.Request) {
	var body rangeDTO
	err := json.NewDecoder(r.Body).Decode(&body)
	if err != nil {
		writeError(w, errorsWrap(types.ErrValidationFailed, "malformed json body"))
		return
	}

	applied, err := h.settings.Apply(settings.Update{MinDiff: &body.Min, MaxDiff: &body.Max})
	if err != nil {
		writeError(w, err)
		return
	}

	writeData(w, http.StatusOK, rangeDTO{Min: applied.MinDiff, Max: applied.MaxDiff})
}

// GET /api/buff_price_range
func (h *handlers) handleGetBuyPriceRange(w http.ResponseWriter, r *http.Request) {
	s := h.settings.Current()
	writeData(w, http.StatusOK, rangeDTO{Min: s.MinBuyPrice, Max: s.MaxBuyPrice})
}

// POST /api/buff_price_range
func (h *handlers) handlePostBuyPriceRange(w http.ResponseWriter, r *http.Request) {
	var body rangeDTO
	err := json.NewDecoder(r.Body).Decode(&body)
	if err != nil {
		writeError(w, errorsWrap(types.ErrValidationFailed, "malformed json body"))
		return
	}

	applied, err := h.settings.Apply(settings.Update{MinBuyPrice: &body.Min, MaxBuyPrice: &body.Max})
	if err != nil {
		writeError(w, err)
		return
	}

	writeData(w, http.StatusOK, rangeDTO{Min: applied.MinBuyPrice, Max: applied.MaxBuyPrice})
}

// GET /api/tokens/status
func (h *handlers) handleTokensStatus(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, h.credentials.Status())
}

// POST /api/tokens/{marketplace}
func (h *handlers) handleTokensUpdate(w http.ResponseWriter, r *http.Request) {
	marketplace := types.Marketplace(chi.URLParam(r, "marketplace"))

	switch marketplace {
	case types.MarketplaceBuff:
		var body credentials.BuffCredentials
		err := json.NewDecoder(r.Body).Decode(&body)
		if err != nil {
			writeError(w, errorsWrap(types.ErrValidationFailed, "malformed json body"))
			return
		}
		err = h.credentials.UpdateBuff(body)
		if err != nil {
			writeError(w, err)
			return
		}
	case types.MarketplaceYoupin:
		var body credentials.YoupinCredentials
		err := json.NewDecoder(r.Body).Decode(&body)
		if err != nil {
			writeError(w, errorsWrap(types.ErrValidationFailed, "malformed json body"))
			return
		}
		err = h.credentials.UpdateYoupin(body)
		if err != nil {
			writeError(w, err)
			return
		}
	default:
		writeError(w, errorsWrap(types.ErrValidationFailed, "unknown marketplace"))
		return
	}

	writeData(w, http.StatusOK, h.credentials.Status()[string(marketplace)])
}

// POST /api/tokens/test/{marketplace}
func (h *handlers) handleTokensTest(w http.ResponseWriter, r *http.Request) {
	marketplace := types.Marketplace(chi.URLParam(r, "marketplace"))
	prober, ok := h.probers[marketplace]
	if !ok {
		writeError(w, errorsWrap(types.ErrValidationFailed, "unknown marketplace"))
		return
	}

	page, err := prober.FetchPage(r.Context(), 1, 10)
	if err != nil {
		h.credentials.MarkStatus(marketplace, false)
		credentials.ProbesTotal.WithLabelValues(string(marketplace), "failure").Inc()
		h.logger.Warn("token-probe-failed",
			zap.String("marketplace", string(marketplace)),
			zap.Error(err))
		writeError(w, err)
		return
	}

	h.credentials.MarkStatus(marketplace, true)
	credentials.ProbesTotal.WithLabelValues(string(marketplace), "success").Inc()

	writeData(w, http.StatusOK, map[string]interface{}{
		"marketplace": marketplace,
		"item_count":  len(page.Items),
	})
}

// errorsWrap attaches a human message to a sentinel error.
func errorsWrap(sentinel error, msg string) error {
	return fmt.Errorf("%w: %s", sentinel, msg)
}
