package ingeststatus

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": exp.Unix(),
	})
	s, err := tok.SignedString([]byte("unused-signing-key"))
	require.NoError(t, err)
	return s
}

func TestFileCredentialStoreRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "creds")
	s := FileCredentialStore{Dir: dir, Channel: 7}

	tok, exp, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, tok)
	assert.Zero(t, exp)

	require.NoError(t, s.Save("opaque-token", 12345))

	tok, exp, err = s.Load()
	require.NoError(t, err)
	assert.Equal(t, "opaque-token", tok)
	assert.EqualValues(t, 12345, exp)

	info, err := os.Stat(filepath.Join(dir, "token_channel_7.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestClientLoginParsesNestedToken(t *testing.T) {
	token := makeToken(t, time.Now().Add(time.Hour))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/login/":
			json.NewEncoder(w).Encode(map[string]any{"user": map[string]string{"token": token}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, Channel: 1, Username: "u", Password: "p"}
	got, err := c.ensureCredential(context.Background())
	require.NoError(t, err)
	assert.Equal(t, token, got)
}

func TestClientIsIngestingTrue(t *testing.T) {
	token := makeToken(t, time.Now().Add(time.Hour))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/login/":
			json.NewEncoder(w).Encode(map[string]any{"user": map[string]string{"token": token}})
		case "/api/control/1/media/current":
			assert.Equal(t, "Bearer "+token, r.Header.Get("Authorization"))
			json.NewEncoder(w).Encode(map[string]any{"ingest": true})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, Channel: 1, Username: "u", Password: "p"}
	assert.True(t, c.IsIngesting(context.Background()))
}

func TestClientIsIngestingFallsBackOnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	assumeFree := &Client{BaseURL: srv.URL, Channel: 1, AssumeFreeOnError: true}
	assert.False(t, assumeFree.IsIngesting(context.Background()))

	assumeBusy := &Client{BaseURL: srv.URL, Channel: 1, AssumeFreeOnError: false}
	assert.True(t, assumeBusy.IsIngesting(context.Background()))
}

func TestClientRefreshesNearExpiry(t *testing.T) {
	nearExpiry := makeToken(t, time.Now().Add(100*time.Second)) // Within the 300s margin.
	fresh := makeToken(t, time.Now().Add(time.Hour))

	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		tok := nearExpiry
		if calls > 1 {
			tok = fresh
		}
		json.NewEncoder(w).Encode(map[string]any{"user": map[string]string{"token": tok}})
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, Channel: 1}
	first, err := c.ensureCredential(context.Background())
	require.NoError(t, err)
	assert.Equal(t, nearExpiry, first)

	second, err := c.ensureCredential(context.Background())
	require.NoError(t, err)
	assert.Equal(t, fresh, second, "credential within expiry margin should trigger re-login")
}
