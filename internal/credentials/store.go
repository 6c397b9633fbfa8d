package credentials

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/skinarb/skinarb/pkg/types"
)

// StatusActive and StatusInvalid mark whether a marketplace's credentials
// passed their last probe.
const (
	StatusActive  = "active"
	StatusInvalid = "invalid"
	StatusUnknown = "unknown"
)

// BuffCredentials holds the cookie-based session for the Buff marketplace.
type BuffCredentials struct {
	Cookies     map[string]string `json:"cookies"`
	Headers     map[string]string `json:"headers,omitempty"`
	LastUpdated time.Time         `json:"last_updated"`
	Status      string            `json:"status"`
}

// YoupinCredentials holds the device-bound token set for the Youpin
// marketplace.
type YoupinCredentials struct {
	DeviceID      string            `json:"device_id"`
	DeviceUK      string            `json:"device_uk,omitempty"`
	UK            string            `json:"uk"`
	B3            string            `json:"b3,omitempty"`
	Authorization string            `json:"authorization"`
	Headers       map[string]string `json:"headers,omitempty"`
	LastUpdated   time.Time         `json:"last_updated"`
	Status        string            `json:"status"`
}

type fileLayout struct {
	Buff   BuffCredentials   `json:"buff"`
	Youpin YoupinCredentials `json:"youpin"`
}

// Store persists marketplace credentials in a single JSON file and hands
// out copies to the clients. All mutations go through Update* so the file
// and the in-memory view never diverge.
type Store struct {
	path   string
	logger *zap.Logger

	mu   sync.RWMutex
	data fileLayout
}

// Config holds store configuration.
type Config struct {
	Path   string // Credentials file, created on first update
	Logger *zap.Logger
}

// New creates a credential store, loading the file at cfg.Path when it
// exists. A missing file is not an error; both records start empty with
// status unknown.
func New(cfg *Config) (*Store, error) {
	s := &Store{
		path:   cfg.Path,
		logger: cfg.Logger,
		data: fileLayout{
			Buff:   BuffCredentials{Status: StatusUnknown},
			Youpin: YoupinCredentials{Status: StatusUnknown},
		},
	}

	raw, err := os.ReadFile(cfg.Path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.Logger.Info("credentials-file-missing", zap.String("path", cfg.Path))
			return s, nil
		}
		return nil, fmt.Errorf("read credentials file: %w", err)
	}

	err = json.Unmarshal(raw, &s.data)
	if err != nil {
		return nil, fmt.Errorf("parse credentials file: %w", err)
	}

	cfg.Logger.Info("credentials-loaded",
		zap.String("path", cfg.Path),
		zap.String("buff_status", s.data.Buff.Status),
		zap.String("youpin_status", s.data.Youpin.Status))

	return s, nil
}

// Buff returns a copy of the Buff credentials.
func (s *Store) Buff() BuffCredentials {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyBuff(s.data.Buff)
}

// Youpin returns a copy of the Youpin credentials.
func (s *Store) Youpin() YoupinCredentials {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyYoupin(s.data.Youpin)
}

// UpdateBuff validates and stores new Buff credentials, then persists the
// file. The previous record is kept untouched when validation or the disk
// write fails.
func (s *Store) UpdateBuff(creds BuffCredentials) error {
	if creds.Cookies["session"] == "" {
		return fmt.Errorf("%w: buff session cookie required", types.ErrValidationFailed)
	}
	if creds.Cookies["csrf_token"] == "" {
		return fmt.Errorf("%w: buff csrf_token cookie required", types.ErrValidationFailed)
	}

	creds.LastUpdated = time.Now()
	creds.Status = StatusActive

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.data.Buff
	s.data.Buff = copyBuff(creds)

	err := s.persistLocked()
	if err != nil {
		s.data.Buff = prev
		return err
	}

	s.logger.Info("credentials-updated", zap.String("marketplace", "buff"))
	UpdatesTotal.WithLabelValues("buff").Inc()
	return nil
}

// UpdateYoupin validates and stores new Youpin credentials, then persists
// the file.
func (s *Store) UpdateYoupin(creds YoupinCredentials) error {
	if creds.DeviceID == "" {
		return fmt.Errorf("%w: youpin device_id required", types.ErrValidationFailed)
	}
	if creds.UK == "" {
		return fmt.Errorf("%w: youpin uk required", types.ErrValidationFailed)
	}
	if creds.Authorization == "" {
		return fmt.Errorf("%w: youpin authorization required", types.ErrValidationFailed)
	}

	creds.LastUpdated = time.Now()
	creds.Status = StatusActive

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.data.Youpin
	s.data.Youpin = copyYoupin(creds)

	err := s.persistLocked()
	if err != nil {
		s.data.Youpin = prev
		return err
	}

	s.logger.Info("credentials-updated", zap.String("marketplace", "youpin"))
	UpdatesTotal.WithLabelValues("youpin").Inc()
	return nil
}

// MarkStatus records the outcome of a probe without touching the secrets.
func (s *Store) MarkStatus(marketplace types.Marketplace, ok bool) {
	status := StatusActive
	if !ok {
		status = StatusInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch marketplace {
	case types.MarketplaceBuff:
		s.data.Buff.Status = status
	case types.MarketplaceYoupin:
		s.data.Youpin.Status = status
	}

	err := s.persistLocked()
	if err != nil {
		s.logger.Warn("credentials-status-persist-failed", zap.Error(err))
	}
}

// MarketplaceStatus summarizes one marketplace's credential state without
// exposing secrets.
type MarketplaceStatus struct {
	Configured  bool      `json:"configured"`
	Status      string    `json:"status"`
	LastUpdated time.Time `json:"last_updated"`
}

// Status reports both marketplaces' credential state.
func (s *Store) Status() map[string]MarketplaceStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return map[string]MarketplaceStatus{
		"buff": {
			Configured:  s.data.Buff.Cookies["session"] != "",
			Status:      s.data.Buff.Status,
			LastUpdated: s.data.Buff.LastUpdated,
		},
		"youpin": {
			Configured:  s.data.Youpin.Authorization != "",
			Status:      s.data.Youpin.Status,
			LastUpdated: s.data.Youpin.LastUpdated,
		},
	}
}

// persistLocked writes the file atomically. Callers hold s.mu.
func (s *Store) persistLocked() error {
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal credentials: %v", types.ErrPersistFailed, err)
	}

	dir := filepath.Dir(s.path)
	err = os.MkdirAll(dir, 0o755)
	if err != nil {
		return fmt.Errorf("%w: create data dir: %v", types.ErrPersistFailed, err)
	}

	tmp := s.path + ".tmp"
	err = os.WriteFile(tmp, raw, 0o600)
	if err != nil {
		return fmt.Errorf("%w: write credentials: %v", types.ErrPersistFailed, err)
	}

	err = os.Rename(tmp, s.path)
	if err != nil {
		return fmt.Errorf("%w: rename credentials: %v", types.ErrPersistFailed, err)
	}

	return nil
}

func copyBuff(c BuffCredentials) BuffCredentials {
	c.Cookies = copyMap(c.Cookies)
	c.Headers = copyMap(c.Headers)
	return c
}

func copyYoupin(c YoupinCredentials) YoupinCredentials {
	c.Headers = copyMap(c.Headers)
	return c
}

func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
