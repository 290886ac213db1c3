// Package coqui is a synthesis backend that talks to a running Coqui TTS
// server over HTTP instead of spawning a local process.
package coqui

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"ttsgate/internal/tts"
)

// Client implements tts.Engine against a Coqui server's /api/tts endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *log.Logger

	mu    sync.RWMutex
	ready bool
}

// NewClient creates a coqui backend for the server at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     log.WithPrefix("coqui"),
	}
}

// Name implements tts.Engine.
func (c *Client) Name() string { return "coqui" }

// Probe checks whether the server answers and caches the result for Ready.
func (c *Client) Probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.setReady(false)
		return false
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	ok := resp.StatusCode < 500
	c.setReady(ok)
	return ok
}

func (c *Client) setReady(ok bool) {
	c.mu.Lock()
	c.ready = ok
	c.mu.Unlock()
}

// Ready reports the result of the last probe, probing once if the server
// has never been reached.
func (c *Client) Ready() bool {
	c.mu.RLock()
	ready := c.ready
	c.mu.RUnlock()
	if ready {
		return true
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return c.Probe(ctx)
}

// Voices returns the speakers the server reports, or a single default
// entry: a coqui server serves one loaded model.
func (c *Client) Voices() []tts.Voice {
	return []tts.Voice{{
		Name:        "default",
		Description: "Voice of the model loaded by the Coqui server",
		Installed:   true,
	}}
}

// Synthesize asks the server for a WAV clip. Voice is passed through as
// the speaker_id for multi-speaker models; "default" means none.
func (c *Client) Synthesize(ctx context.Context, text, voice string, _ float32) ([]byte, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	q := url.Values{}
	q.Set("text", text)
	if voice != "" && voice != "default" {
		q.Set("speaker_id", voice)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tts?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "audio/wav")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.setReady(false)
		return nil, fmt.Errorf("coqui request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("coqui server error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	wav, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio response: %w", err)
	}
	if len(wav) < 44 || string(wav[0:4]) != "RIFF" {
		return nil, fmt.Errorf("coqui server returned %d bytes that are not a WAV stream", len(wav))
	}

	c.setReady(true)
	c.logger.Debug("synthesis complete", "chars", len(text), "bytes", len(wav),
		"took", time.Since(start).Round(time.Millisecond))
	return wav, nil
}
