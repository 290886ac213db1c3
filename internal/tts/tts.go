// Package tts defines the synthesis engine contract and the service
// facade the HTTP API and CLI talk to.
package tts

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"ttsgate/internal/audio"
)

// Voice describes a single synthesis voice.
type Voice struct {
	Name        string `json:"name"`
	Language    string `json:"language"`
	Gender      string `json:"gender"`
	Quality     string `json:"quality"`
	SampleRate  int    `json:"sample_rate"`
	Description string `json:"description"`
	Installed   bool   `json:"installed"`
}

// Engine is a synthesis backend: the piper subprocess or a coqui server.
type Engine interface {
	// Synthesize converts text into a complete WAV clip.
	Synthesize(ctx context.Context, text, voice string, speed float32) ([]byte, error)
	// Voices returns the engine's voice catalog.
	Voices() []Voice
	// Ready reports whether the engine can serve requests.
	Ready() bool
	// Name identifies the backend in logs and the health endpoint.
	Name() string
}

// maxChunkChars bounds the text handed to the engine in one call. Longer
// inputs are split at sentence boundaries and the clips stitched together.
const maxChunkChars = 500

// Service wraps an Engine with default-voice fallback and long-text
// chunking. It is safe for concurrent use.
type Service struct {
	mu           sync.RWMutex
	engine       Engine
	defaultVoice string
	speed        float32
}

// NewService creates a synthesis service on top of engine.
func NewService(engine Engine, defaultVoice string, speed float32) *Service {
	if speed <= 0 {
		speed = 1.0
	}
	return &Service{
		engine:       engine,
		defaultVoice: defaultVoice,
		speed:        speed,
	}
}

// Ready reports whether the underlying engine can synthesize.
func (s *Service) Ready() bool {
	return s.engine.Ready()
}

// EngineName returns the backend identifier.
func (s *Service) EngineName() string {
	return s.engine.Name()
}

// Voices returns the engine's voice catalog.
func (s *Service) Voices() []Voice {
	return s.engine.Voices()
}

// DefaultVoice returns the voice used when a request names none.
func (s *Service) DefaultVoice() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defaultVoice
}

// SetDefaultVoice changes the fallback voice. The voice must exist in the
// engine catalog.
func (s *Service) SetDefaultVoice(name string) error {
	for _, v := range s.engine.Voices() {
		if v.Name == name {
			s.mu.Lock()
			s.defaultVoice = name
			s.mu.Unlock()
			return nil
		}
	}
	return fmt.Errorf("voice %q not found", name)
}

// Synthesize converts text into a WAV clip, splitting long text into
// sentence chunks and stitching the resulting clips. A speed of zero or
// less falls back to the configured default.
func (s *Service) Synthesize(ctx context.Context, text, voice string, speed float32) ([]byte, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}
	if !s.engine.Ready() {
		return nil, fmt.Errorf("%s engine is not ready", s.engine.Name())
	}
	if voice == "" {
		voice = s.DefaultVoice()
	}

	if speed <= 0 {
		s.mu.RLock()
		speed = s.speed
		s.mu.RUnlock()
	}

	if len(text) <= maxChunkChars {
		return s.engine.Synthesize(ctx, text, voice, speed)
	}

	chunks := splitIntoChunks(text, maxChunkChars)
	log.Debug("splitting long text for synthesis", "chars", len(text), "chunks", len(chunks))

	clips := make([][]byte, 0, len(chunks))
	for i, chunk := range chunks {
		clip, err := s.engine.Synthesize(ctx, chunk, voice, speed)
		if err != nil {
			return nil, fmt.Errorf("failed to synthesize chunk %d/%d: %w", i+1, len(chunks), err)
		}
		clips = append(clips, clip)
	}
	return audio.Concat(clips), nil
}
