package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rofi-bw/rofi-bw-go/internal/masterkey"
	"github.com/rofi-bw/rofi-bw-go/internal/vaultapi"
)

const (
	testEmail    = "a@b.com"
	testPassword = "master-pw"
)

// fakeServer answers prelogin/login/refresh/sync the way the account
// server would, with a single fixed password/iterations pair, so Session's
// state machine can be exercised end-to-end without a real network.
func fakeServer(t *testing.T, iterations uint32) *httptest.Server {
	t.Helper()

	const accessToken = "access-1"
	const refreshToken = "refresh-1"

	validHash := masterkey.PasswordHash(masterkey.Derive(testPassword, testEmail, iterations), testPassword)

	mux := http.NewServeMux()
	mux.HandleFunc("/accounts/prelogin", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"Kdf": 0, "KdfIterations": iterations})
	})
	mux.HandleFunc("/connect/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		switch r.Form.Get("grant_type") {
		case "password":
			if r.Form.Get("password") != validHash {
				w.WriteHeader(http.StatusBadRequest)
				json.NewEncoder(w).Encode(map[string]string{"error_description": "invalid_username_or_password"})
				return
			}
			json.NewEncoder(w).Encode(map[string]any{
				"access_token": accessToken, "refresh_token": refreshToken, "expires_in": 3600,
			})
		case "refresh_token":
			if r.Form.Get("refresh_token") != refreshToken {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			json.NewEncoder(w).Encode(map[string]any{
				"access_token": accessToken, "refresh_token": refreshToken, "expires_in": 3600,
			})
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	})
	mux.HandleFunc("/sync", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"profile":{},"folders":[],"ciphers":[]}`)
	})

	return httptest.NewServer(mux)
}

func newTestClient(t *testing.T, srv *httptest.Server) *vaultapi.Client {
	t.Helper()
	return vaultapi.New(srv.URL, "desktop", vaultapi.Device{Name: "test", Type: 8})
}

func TestStartFullLoginThenCacheResume(t *testing.T) {
	srv := fakeServer(t, 100000)
	defer srv.Close()
	client := newTestClient(t, srv)

	cachePath := filepath.Join(t.TempDir(), "cache")

	// S1: first unlock, no cache present, full login path.
	s1 := New(client, cachePath)
	require.NoError(t, s1.Start(context.Background(), testEmail, testPassword))
	assert.Equal(t, Unlocked, s1.State())
	assert.NotEmpty(t, s1.AccountJSON())
	s1.Close()
	assert.Equal(t, Closed, s1.State())

	// S2: resume after restart, served entirely from the cache file.
	s2 := New(client, cachePath)
	require.NoError(t, s2.Start(context.Background(), testEmail, testPassword))
	assert.Equal(t, Unlocked, s2.State())
}

func TestStartInvalidCredentials(t *testing.T) {
	srv := fakeServer(t, 100000)
	defer srv.Close()
	client := newTestClient(t, srv)

	s := New(client, filepath.Join(t.TempDir(), "cache"))
	err := s.Start(context.Background(), testEmail, "wrong-password")
	assert.ErrorIs(t, err, vaultapi.ErrInvalidCredentials)
	assert.Equal(t, Closed, s.State())
}

func TestResyncSessionExpired(t *testing.T) {
	srv := fakeServer(t, 100000)
	defer srv.Close()
	client := newTestClient(t, srv)

	s := New(client, filepath.Join(t.TempDir(), "cache"))
	require.NoError(t, s.Start(context.Background(), testEmail, testPassword))

	// Force the refresh token to one the fake server will reject.
	s.token.Refresh = "stale"
	err := s.Resync(context.Background())
	assert.ErrorIs(t, err, vaultapi.ErrSessionExpired)
	assert.Equal(t, Closed, s.State())
}

func TestIsCorrectMasterPassword(t *testing.T) {
	srv := fakeServer(t, 100000)
	defer srv.Close()
	client := newTestClient(t, srv)

	s := New(client, filepath.Join(t.TempDir(), "cache"))
	require.NoError(t, s.Start(context.Background(), testEmail, testPassword))

	assert.True(t, s.IsCorrectMasterPassword(testPassword))
	assert.False(t, s.IsCorrectMasterPassword("wrong-pw"))
}
