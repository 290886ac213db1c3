package coqui

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ttsgate/internal/audio"
)

func wavBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, audio.WriteHeader(&buf, 200, 22050, 1, 16))
	buf.Write(make([]byte, 200))
	return buf.Bytes()
}

func TestSynthesize(t *testing.T) {
	clip := wavBytes(t)
	var gotQuery map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/tts", r.URL.Path)
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "audio/wav")
		w.Write(clip)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	out, err := c.Synthesize(context.Background(), "hello world", "speaker1", 1.0)
	require.NoError(t, err)
	assert.Equal(t, clip, out)
	assert.Equal(t, []string{"hello world"}, gotQuery["text"])
	assert.Equal(t, []string{"speaker1"}, gotQuery["speaker_id"])
	assert.True(t, c.Ready(), "successful synthesis marks the backend ready")
}

func TestSynthesizeDefaultVoiceOmitsSpeaker(t *testing.T) {
	clip := wavBytes(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.Query().Get("speaker_id"))
		w.Write(clip)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	_, err := c.Synthesize(context.Background(), "hi", "default", 1.0)
	require.NoError(t, err)
}

func TestSynthesizeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model exploded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	_, err := c.Synthesize(context.Background(), "hi", "", 1.0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
	assert.Contains(t, err.Error(), "model exploded")
}

func TestSynthesizeRejectsNonWAV(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>surprise</html>"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	_, err := c.Synthesize(context.Background(), "hi", "", 1.0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a WAV")
}

func TestSynthesizeRejectsEmptyText(t *testing.T) {
	c := NewClient("http://127.0.0.1:0", time.Second)
	_, err := c.Synthesize(context.Background(), "", "", 1.0)
	require.Error(t, err)
}

func TestProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	c := NewClient(srv.URL, time.Second)
	assert.True(t, c.Probe(context.Background()))
	assert.True(t, c.Ready())

	srv.Close()
	assert.False(t, c.Probe(context.Background()))
}

func TestVoices(t *testing.T) {
	c := NewClient("http://localhost:5002", time.Second)
	voices := c.Voices()
	require.Len(t, voices, 1)
	assert.True(t, voices[0].Installed)
	assert.Equal(t, "coqui", c.Name())
}
