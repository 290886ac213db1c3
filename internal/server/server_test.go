package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ttsgate/internal/audio"
	"ttsgate/internal/config"
	"ttsgate/internal/store"
	"ttsgate/internal/tts"
)

type stubEngine struct {
	ready  bool
	fail   bool
	speeds []float32
}

func (e *stubEngine) Synthesize(_ context.Context, text, _ string, speed float32) ([]byte, error) {
	e.speeds = append(e.speeds, speed)
	if e.fail {
		return nil, fmt.Errorf("synthesis exploded")
	}
	var buf bytes.Buffer
	if err := audio.WriteHeader(&buf, 2048, 22050, 1, 16); err != nil {
		return nil, err
	}
	buf.Write(make([]byte, 2048))
	return buf.Bytes(), nil
}

func (e *stubEngine) Voices() []tts.Voice {
	return []tts.Voice{
		{Name: "en_US-amy-medium", Installed: true},
		{Name: "en_GB-alba-medium", Installed: false},
	}
}
func (e *stubEngine) Ready() bool  { return e.ready }
func (e *stubEngine) Name() string { return "stub" }

func newTestServer(t *testing.T, eng tts.Engine, mutate func(*config.Config)) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.Store.ClipDir = t.TempDir()
	if mutate != nil {
		mutate(cfg)
	}
	st, err := store.Open(cfg.Store.ClipDir, cfg.RetentionWindow())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	svc := tts.NewService(eng, "en_US-amy-medium", 1.0)
	return New(cfg, svc, st, "test")
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, ttsResponse) {
	t.Helper()
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	var resp ttsResponse
	if strings.Contains(w.Header().Get("Content-Type"), "json") {
		json.Unmarshal(w.Body.Bytes(), &resp)
	}
	return w, resp
}

func TestTTSRoundTrip(t *testing.T) {
	s := newTestServer(t, &stubEngine{ready: true}, nil)
	h := s.Handler()

	w, resp := doJSON(t, h, http.MethodPost, "/api/tts", `{"text":"hello world"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, resp.Success)
	require.True(t, store.ValidFilename(resp.Filename))
	assert.Greater(t, resp.DurationMS, int64(0))

	// The returned filename serves playable WAV bytes.
	aw := httptest.NewRecorder()
	h.ServeHTTP(aw, httptest.NewRequest(http.MethodGet, "/api/audio/"+resp.Filename, nil))
	require.Equal(t, http.StatusOK, aw.Code)
	assert.Equal(t, "audio/wav", aw.Header().Get("Content-Type"))
	assert.Equal(t, "RIFF", string(aw.Body.Bytes()[:4]))
}

func TestTTSQueryStringVariant(t *testing.T) {
	s := newTestServer(t, &stubEngine{ready: true}, nil)

	w, resp := doJSON(t, s.Handler(), http.MethodGet, "/api/tts?text=hi+there&voice=en_US-amy-medium", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.Filename)
}

func TestTTSSpeedPassedToEngine(t *testing.T) {
	eng := &stubEngine{ready: true}
	s := newTestServer(t, eng, nil)
	h := s.Handler()

	w, _ := doJSON(t, h, http.MethodPost, "/api/tts", `{"text":"hi","speed":2.0}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, _ = doJSON(t, h, http.MethodGet, "/api/tts?text=hi&speed=0.5", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Omitted speed falls back to the configured default.
	w, _ = doJSON(t, h, http.MethodPost, "/api/tts", `{"text":"hi"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	require.Len(t, eng.speeds, 3)
	assert.Equal(t, float32(2.0), eng.speeds[0])
	assert.Equal(t, float32(0.5), eng.speeds[1])
	assert.Equal(t, float32(1.0), eng.speeds[2])
}

func TestTTSInvalidSpeed(t *testing.T) {
	s := newTestServer(t, &stubEngine{ready: true}, nil)

	for _, req := range []struct{ method, path, body string }{
		{http.MethodPost, "/api/tts", `{"text":"hi","speed":-1}`},
		{http.MethodGet, "/api/tts?text=hi&speed=fast", ""},
	} {
		w, resp := doJSON(t, s.Handler(), req.method, req.path, req.body)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.False(t, resp.Success)
		assert.Contains(t, resp.Error, "speed")
	}
}

func TestTTSMissingText(t *testing.T) {
	s := newTestServer(t, &stubEngine{ready: true}, nil)

	for _, req := range []struct{ method, path, body string }{
		{http.MethodPost, "/api/tts", `{}`},
		{http.MethodPost, "/api/tts", `{"voice":"amy"}`},
		{http.MethodGet, "/api/tts", ""},
	} {
		w, resp := doJSON(t, s.Handler(), req.method, req.path, req.body)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.False(t, resp.Success)
		assert.Contains(t, resp.Error, "text is required")
	}
}

func TestTTSBadJSON(t *testing.T) {
	s := newTestServer(t, &stubEngine{ready: true}, nil)
	w, resp := doJSON(t, s.Handler(), http.MethodPost, "/api/tts", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, resp.Success)
}

func TestTTSEngineNotReady(t *testing.T) {
	s := newTestServer(t, &stubEngine{ready: false}, nil)
	w, resp := doJSON(t, s.Handler(), http.MethodPost, "/api/tts", `{"text":"hi"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.False(t, resp.Success)
}

func TestTTSSynthesisFailure(t *testing.T) {
	s := newTestServer(t, &stubEngine{ready: true, fail: true}, nil)
	w, resp := doJSON(t, s.Handler(), http.MethodPost, "/api/tts", `{"text":"hi"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "synthesis exploded")
}

func TestAudioNotFound(t *testing.T) {
	s := newTestServer(t, &stubEngine{ready: true}, nil)
	w, resp := doJSON(t, s.Handler(), http.MethodGet, "/api/audio/00000000-0000-0000-0000-000000000000.wav", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, resp.Success)
}

func TestAudioInvalidFilename(t *testing.T) {
	s := newTestServer(t, &stubEngine{ready: true}, nil)
	w, _ := doJSON(t, s.Handler(), http.MethodGet, "/api/audio/clips.db", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVoices(t *testing.T) {
	s := newTestServer(t, &stubEngine{ready: true}, nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/voices", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var voices []tts.Voice
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &voices))
	require.Len(t, voices, 2)
	assert.Equal(t, "en_US-amy-medium", voices[0].Name)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, &stubEngine{ready: true}, nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var health healthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "stub", health.Engine)
	assert.Equal(t, "test", health.Version)
}

func TestHealthDegraded(t *testing.T) {
	s := newTestServer(t, &stubEngine{ready: false}, nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestClipsList(t *testing.T) {
	s := newTestServer(t, &stubEngine{ready: true}, nil)
	h := s.Handler()

	doJSON(t, h, http.MethodPost, "/api/tts", `{"text":"one"}`)
	doJSON(t, h, http.MethodPost, "/api/tts", `{"text":"two"}`)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/clips", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var clips []store.Clip
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &clips))
	assert.Len(t, clips, 2)
}

func TestAuth(t *testing.T) {
	s := newTestServer(t, &stubEngine{ready: true}, func(c *config.Config) {
		c.Server.APIKey = "secret123"
	})
	h := s.Handler()

	tests := []struct {
		name       string
		path       string
		authHeader string
		wantStatus int
	}{
		{"missing token", "/api/tts?text=hi", "", http.StatusUnauthorized},
		{"wrong token", "/api/tts?text=hi", "Bearer nope", http.StatusUnauthorized},
		{"valid token", "/api/tts?text=hi", "Bearer secret123", http.StatusOK},
		{"health is public", "/api/health", "", http.StatusOK},
		{"web form is public", "/", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.authHeader != "" {
				r.Header.Set("Authorization", tt.authHeader)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, r)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, &stubEngine{ready: true}, func(c *config.Config) {
		c.Server.RequestsPerMin = 6 // burst of 2
	})
	h := s.Handler()

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w, _ := doJSON(t, h, http.MethodGet, "/api/tts?text=hi", "")
		codes = append(codes, w.Code)
	}
	assert.Equal(t, http.StatusOK, codes[0])
	assert.Equal(t, http.StatusOK, codes[1])
	assert.Equal(t, http.StatusTooManyRequests, codes[2])

	// Audio fetches are not rate limited.
	w, _ := doJSON(t, h, http.MethodGet, "/api/audio/00000000-0000-0000-0000-000000000000.wav", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWebFormServed(t *testing.T) {
	s := newTestServer(t, &stubEngine{ready: true}, nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ttsgate")
	assert.Contains(t, w.Body.String(), "/api/tts")
}

func TestGracefulRun(t *testing.T) {
	s := newTestServer(t, &stubEngine{ready: true}, func(c *config.Config) {
		c.Server.Host = "127.0.0.1"
		c.Server.Port = 0 // kernel-assigned
	})
	// Port 0 is rejected by config validation but fine for a direct test
	// of Run's shutdown path.
	s.httpSrv.Addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
