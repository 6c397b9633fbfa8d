package credentials

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/skinarb/skinarb/pkg/types"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tokens_config.json")
	s, err := New(&Config{Path: path, Logger: zap.NewNop()})
	require.NoError(t, err)
	return s, path
}

func TestMissingFileStartsUnknown(t *testing.T) {
	s, _ := newTestStore(t)

	status := s.Status()
	assert.False(t, status["buff"].Configured)
	assert.False(t, status["youpin"].Configured)
	assert.Equal(t, StatusUnknown, status["buff"].Status)
}

func TestUpdateBuffValidation(t *testing.T) {
	s, _ := newTestStore(t)

	tests := []struct {
		name    string
		cookies map[string]string
		wantErr bool
	}{
		{"missing everything", map[string]string{}, true},
		{"missing csrf", map[string]string{"session": "abc"}, true},
		{"missing session", map[string]string{"csrf_token": "xyz"}, true},
		{"complete", map[string]string{"session": "abc", "csrf_token": "xyz"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.UpdateBuff(BuffCredentials{Cookies: tt.cookies})
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, types.ErrValidationFailed))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestUpdateYoupinValidation(t *testing.T) {
	s, _ := newTestStore(t)

	err := s.UpdateYoupin(YoupinCredentials{DeviceID: "d", UK: "u"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrValidationFailed))

	err = s.UpdateYoupin(YoupinCredentials{DeviceID: "d", UK: "u", Authorization: "Bearer t"})
	require.NoError(t, err)
}

func TestPersistenceRoundTrip(t *testing.T) {
	s, path := newTestStore(t)

	require.NoError(t, s.UpdateBuff(BuffCredentials{
		Cookies: map[string]string{"session": "abc", "csrf_token": "xyz"},
	}))
	require.NoError(t, s.UpdateYoupin(YoupinCredentials{
		DeviceID:      "dev-1",
		UK:            "uk-1",
		B3:            "traceid-spanid-1",
		Authorization: "Bearer t",
	}))

	reloaded, err := New(&Config{Path: path, Logger: zap.NewNop()})
	require.NoError(t, err)

	buff := reloaded.Buff()
	assert.Equal(t, "abc", buff.Cookies["session"])
	assert.Equal(t, StatusActive, buff.Status)

	youpin := reloaded.Youpin()
	assert.Equal(t, "dev-1", youpin.DeviceID)
	assert.Equal(t, "traceid-spanid-1", youpin.B3)

	status := reloaded.Status()
	assert.True(t, status["buff"].Configured)
	assert.True(t, status["youpin"].Configured)
}

func TestMarkStatus(t *testing.T) {
	s, _ := newTestStore(t)

	require.NoError(t, s.UpdateBuff(BuffCredentials{
		Cookies: map[string]string{"session": "abc", "csrf_token": "xyz"},
	}))

	s.MarkStatus(types.MarketplaceBuff, false)
	assert.Equal(t, StatusInvalid, s.Status()["buff"].Status)

	s.MarkStatus(types.MarketplaceBuff, true)
	assert.Equal(t, StatusActive, s.Status()["buff"].Status)
}

func TestAccessorsReturnCopies(t *testing.T) {
	s, _ := newTestStore(t)

	require.NoError(t, s.UpdateBuff(BuffCredentials{
		Cookies: map[string]string{"session": "abc", "csrf_token": "xyz"},
	}))

	creds := s.Buff()
	creds.Cookies["session"] = "mutated"

	assert.Equal(t, "abc", s.Buff().Cookies["session"])
}
