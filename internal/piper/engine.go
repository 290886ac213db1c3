// Package piper runs the external piper binary as a synthesis backend and
// knows how to install it together with its ONNX voice models.
package piper

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"ttsgate/internal/tts"
)

// Config locates the piper binary and its voice models.
type Config struct {
	// BinaryPath is the piper executable. Empty means a "bin" directory
	// next to ModelDir.
	BinaryPath string
	// ModelDir holds the <voice>.onnx and <voice>.onnx.json files.
	ModelDir string
}

// Engine synthesizes speech by invoking the piper binary per request.
type Engine struct {
	binaryPath string
	modelDir   string
	logger     *log.Logger
}

// NewEngine creates a piper engine. It does not install anything; use
// Installer for that.
func NewEngine(cfg Config) *Engine {
	binary := cfg.BinaryPath
	if binary == "" {
		binary = filepath.Join(filepath.Dir(cfg.ModelDir), "bin", binaryName())
	}
	return &Engine{
		binaryPath: binary,
		modelDir:   cfg.ModelDir,
		logger:     log.WithPrefix("piper"),
	}
}

func binaryName() string {
	if runtime.GOOS == "windows" {
		return "piper.exe"
	}
	return "piper"
}

// BinaryPath returns the resolved piper executable path.
func (e *Engine) BinaryPath() string { return e.binaryPath }

// ModelDir returns the voice model directory.
func (e *Engine) ModelDir() string { return e.modelDir }

// Name implements tts.Engine.
func (e *Engine) Name() string { return "piper" }

// Ready reports whether the binary and at least one voice model exist.
func (e *Engine) Ready() bool {
	if _, err := os.Stat(e.binaryPath); err != nil {
		return false
	}
	for _, v := range catalog {
		if e.voiceInstalled(v.Name) {
			return true
		}
	}
	return false
}

// Voices returns the catalog with the Installed flag reflecting which
// models are present in ModelDir.
func (e *Engine) Voices() []tts.Voice {
	voices := Catalog()
	for i := range voices {
		voices[i].Installed = e.voiceInstalled(voices[i].Name)
	}
	return voices
}

func (e *Engine) voiceInstalled(name string) bool {
	model := filepath.Join(e.modelDir, name+".onnx")
	config := model + ".json"
	if _, err := os.Stat(model); err != nil {
		return false
	}
	if _, err := os.Stat(config); err != nil {
		return false
	}
	return true
}

// Synthesize runs piper with the requested voice model and returns the
// produced WAV bytes. Speed is mapped to piper's --length_scale, which is
// the inverse of playback speed.
func (e *Engine) Synthesize(ctx context.Context, text, voice string, speed float32) ([]byte, error) {
	if voice == "" {
		return nil, fmt.Errorf("voice cannot be empty")
	}
	if !e.voiceInstalled(voice) {
		return nil, fmt.Errorf("voice %q is not installed (run: ttsgate install --voice %s)", voice, voice)
	}

	modelFile := filepath.Join(e.modelDir, voice+".onnx")
	outputFile := filepath.Join(os.TempDir(), fmt.Sprintf("ttsgate_%d.wav", time.Now().UnixNano()))
	defer os.Remove(outputFile)

	args := []string{
		"--model", modelFile,
		"--output-file", outputFile,
	}
	if speed > 0 && speed != 1.0 {
		args = append(args, "--length_scale", fmt.Sprintf("%.2f", 1.0/speed))
	}

	cmd := exec.CommandContext(ctx, e.binaryPath, args...)
	cmd.Stdin = strings.NewReader(text)

	// piper needs the espeak-ng data shipped alongside the binary.
	espeakData := filepath.Join(filepath.Dir(e.binaryPath), "espeak-ng-data")
	if _, err := os.Stat(espeakData); err == nil {
		cmd.Env = append(os.Environ(), "ESPEAK_DATA_PATH="+espeakData)
	}

	start := time.Now()
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("piper failed: %w (output: %s)", err, firstLine(out))
	}

	wav, err := os.ReadFile(outputFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read piper output: %w", err)
	}

	e.logger.Debug("synthesis complete", "voice", voice, "chars", len(text),
		"bytes", len(wav), "took", time.Since(start).Round(time.Millisecond))
	return wav, nil
}

func firstLine(out []byte) string {
	s := strings.TrimSpace(string(out))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
