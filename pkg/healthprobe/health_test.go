package healthprobe

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func TestNewStartsUnready(t *testing.T) {
	p := New()

	if p == nil {
		t.Fatal("New() returned nil")
	}
	if time.Since(p.startedAt) > 1*time.Second {
		t.Errorf("Start time is too old: %v", p.startedAt)
	}
	if p.ready.Load() {
		t.Error("Probe should not be ready before MarkReady")
	}
}

func TestLive_AlwaysReturnsOK(t *testing.T) {
	p := New()
	handler := p.Live()

	for _, ready := range []bool{false, true} {
		if ready {
			p.MarkReady()
		} else {
			p.MarkUnready("starting")
		}

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		w := httptest.NewRecorder()
		handler(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("Live handler status = %d, want %d (ready=%v)", w.Code, http.StatusOK, ready)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	handler(w, req)

	var report Report
	err := json.NewDecoder(w.Body).Decode(&report)
	if err != nil {
		t.Fatalf("Failed to decode live response: %v", err)
	}
	if report.Status != "alive" {
		t.Errorf("Status = %s, want alive", report.Status)
	}
	if report.UptimeSeconds < 0 {
		t.Errorf("UptimeSeconds = %f, want >= 0", report.UptimeSeconds)
	}
}

func TestReady_FollowsState(t *testing.T) {
	p := New()
	handler := p.Ready()

	// Initially not ready
	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()
	handler(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Initial ready status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}

	var notReady Report
	err := json.NewDecoder(w.Body).Decode(&notReady)
	if err != nil {
		t.Fatalf("Failed to decode ready response: %v", err)
	}
	if notReady.Status != "not_ready" {
		t.Errorf("Status = %s, want not_ready", notReady.Status)
	}
	if notReady.Reason != "starting" {
		t.Errorf("Reason = %q, want starting", notReady.Reason)
	}

	// Ready after startup
	p.MarkReady()
	req = httptest.NewRequest(http.MethodGet, "/ready", nil)
	w = httptest.NewRecorder()
	handler(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("Ready status after MarkReady = %d, want %d", w.Code, http.StatusOK)
	}

	// Back to 503 during shutdown, with the shutdown reason
	p.MarkUnready("shutting down")
	req = httptest.NewRequest(http.MethodGet, "/ready", nil)
	w = httptest.NewRecorder()
	handler(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Ready status after MarkUnready = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}

	var down Report
	err = json.NewDecoder(w.Body).Decode(&down)
	if err != nil {
		t.Fatalf("Failed to decode ready response: %v", err)
	}
	if down.Reason != "shutting down" {
		t.Errorf("Reason = %q, want shutting down", down.Reason)
	}
}

func TestProbe_ConcurrentAccess(t *testing.T) {
	p := New()
	handler := p.Ready()

	done := make(chan bool)

	go func() {
		for i := 0; i < 100; i++ {
			if i%2 == 0 {
				p.MarkReady()
			} else {
				p.MarkUnready("flapping")
			}
		}
		done <- true
	}()

	go func() {
		for i := 0; i < 100; i++ {
			req := httptest.NewRequest(http.MethodGet, "/ready", nil)
			w := httptest.NewRecorder()
			handler(w, req)
		}
		done <- true
	}()

	<-done
	<-done
}
