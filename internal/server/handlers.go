package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"ttsgate/internal/audio"
	"ttsgate/internal/store"
)

type ttsRequest struct {
	Text  string  `json:"text"`
	Voice string  `json:"voice,omitempty"`
	Speed float32 `json:"speed,omitempty"`
}

type ttsResponse struct {
	Success    bool   `json:"success"`
	Filename   string `json:"filename,omitempty"`
	DurationMS int64  `json:"duration_ms,omitempty"`
	Error      string `json:"error,omitempty"`
}

type healthResponse struct {
	Status  string `json:"status"`
	Engine  string `json:"engine"`
	Version string `json:"version"`
}

// handleTTS accepts both the JSON POST body and the legacy query-string
// form (GET /api/tts?text=...&voice=...) with one response shape.
func (s *Server) handleTTS(w http.ResponseWriter, r *http.Request) {
	var req ttsRequest
	switch r.Method {
	case http.MethodPost:
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeTTSError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	case http.MethodGet:
		req.Text = r.URL.Query().Get("text")
		req.Voice = r.URL.Query().Get("voice")
		if raw := r.URL.Query().Get("speed"); raw != "" {
			speed, err := strconv.ParseFloat(raw, 32)
			if err != nil {
				writeTTSError(w, http.StatusBadRequest, "invalid speed")
				return
			}
			req.Speed = float32(speed)
		}
	}

	if req.Text == "" {
		writeTTSError(w, http.StatusBadRequest, "text is required")
		return
	}
	if req.Speed < 0 {
		writeTTSError(w, http.StatusBadRequest, "speed must be positive")
		return
	}
	if !s.svc.Ready() {
		writeTTSError(w, http.StatusServiceUnavailable, "synthesis engine is not ready")
		return
	}

	start := time.Now()
	wav, err := s.svc.Synthesize(r.Context(), req.Text, req.Voice, req.Speed)
	if err != nil {
		s.logger.Error("synthesis failed", "voice", req.Voice, "error", err)
		writeTTSError(w, http.StatusInternalServerError, err.Error())
		return
	}

	clip, err := s.store.Save(r.Context(), wav, req.Text, req.Voice)
	if err != nil {
		s.logger.Error("failed to store clip", "error", err)
		writeTTSError(w, http.StatusInternalServerError, "failed to store audio")
		return
	}

	s.logger.Info("synthesized", "chars", len(req.Text), "voice", req.Voice,
		"file", clip.Filename, "took", time.Since(start).Round(time.Millisecond))

	writeJSON(w, http.StatusOK, ttsResponse{
		Success:    true,
		Filename:   clip.Filename,
		DurationMS: audio.Duration(wav).Milliseconds(),
	})
}

func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	filename := mux.Vars(r)["filename"]
	if !store.ValidFilename(filename) {
		writeTTSError(w, http.StatusBadRequest, "invalid filename")
		return
	}

	clip, err := s.store.Get(r.Context(), filename)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			writeTTSError(w, http.StatusNotFound, "audio file not found")
			return
		}
		writeTTSError(w, http.StatusInternalServerError, "failed to read audio file")
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	http.ServeFile(w, r, s.store.Path(clip))
}

func (s *Server) handleVoices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Voices())
}

func (s *Server) handleClips(w http.ResponseWriter, r *http.Request) {
	clips, err := s.store.List(r.Context(), 50)
	if err != nil {
		writeTTSError(w, http.StatusInternalServerError, "failed to list clips")
		return
	}
	if clips == nil {
		clips = []store.Clip{}
	}
	writeJSON(w, http.StatusOK, clips)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if !s.svc.Ready() {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, healthResponse{
		Status:  status,
		Engine:  s.svc.EngineName(),
		Version: s.version,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeTTSError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ttsResponse{Success: false, Error: msg})
}
