package healthprobe

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
)

// Probe answers the liveness and readiness endpoints. The analysis
// service flips to ready once its components are started and back to
// unready when shutdown begins, so load balancers stop routing before
// the listener closes.
type Probe struct {
	startedAt time.Time
	ready     atomic.Bool
	reason    atomic.Value
}

// New creates a Probe in the unready state.
func New() *Probe {
	p := &Probe{startedAt: time.Now()}
	p.reason.Store("starting")
	return p
}

// MarkReady flips the probe to ready.
func (p *Probe) MarkReady() {
	p.ready.Store(true)
	p.reason.Store("")
}

// MarkUnready flips the probe back to unready with a reason reported on
// the readiness endpoint.
func (p *Probe) MarkUnready(reason string) {
	p.ready.Store(false)
	p.reason.Store(reason)
}

// Report is the wire form of both probe endpoints.
type Report struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Reason        string  `json:"reason,omitempty"`
}

// Live returns the liveness handler. It answers 200 whenever the process
// can serve requests at all.
func (p *Probe) Live() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p.write(w, http.StatusOK, Report{
			Status:        "alive",
			UptimeSeconds: time.Since(p.startedAt).Seconds(),
		})
	}
}

// Ready returns the readiness handler: 200 once the service is started,
// 503 with a reason otherwise.
func (p *Probe) Ready() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !p.ready.Load() {
			reason, _ := p.reason.Load().(string)
			p.write(w, http.StatusServiceUnavailable, Report{
				Status: "not_ready",
				Reason: reason,
			})
			return
		}

		p.write(w, http.StatusOK, Report{
			Status:        "ready",
			UptimeSeconds: time.Since(p.startedAt).Seconds(),
		})
	}
}

func (p *Probe) write(w http.ResponseWriter, status int, report Report) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(report)
}
