package piper

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

const (
	piperVersion       = "2023.11.14-2"
	defaultReleaseBase = "https://github.com/rhasspy/piper/releases/download/" + piperVersion
	defaultVoiceBase   = "https://huggingface.co/rhasspy/piper-voices/resolve/main"

	// Anything smaller than this is an HTML error page, not a model or
	// archive.
	minDownloadSize = 1000
)

// Installer downloads the piper release archive and voice models.
type Installer struct {
	binDir   string
	modelDir string

	releaseBase string
	voiceBase   string

	client *http.Client
	logger *log.Logger
}

// NewInstaller creates an installer that places the binary next to the
// engine's expected location.
func NewInstaller(cfg Config) *Installer {
	binary := cfg.BinaryPath
	if binary == "" {
		binary = filepath.Join(filepath.Dir(cfg.ModelDir), "bin", binaryName())
	}
	return &Installer{
		binDir:      filepath.Dir(binary),
		modelDir:    cfg.ModelDir,
		releaseBase: defaultReleaseBase,
		voiceBase:   defaultVoiceBase,
		client:      &http.Client{Timeout: 5 * time.Minute},
		logger:      log.WithPrefix("install"),
	}
}

// EnsureBinary downloads and extracts the piper release for this platform
// unless the binary is already present.
func (in *Installer) EnsureBinary(ctx context.Context) error {
	binary := filepath.Join(in.binDir, binaryName())
	if _, err := os.Stat(binary); err == nil {
		in.logger.Info("piper binary already installed", "path", binary)
		return nil
	}

	archive, err := releaseArchiveName(runtime.GOOS, runtime.GOARCH)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(in.binDir, 0755); err != nil {
		return fmt.Errorf("failed to create bin directory: %w", err)
	}

	url := in.releaseBase + "/" + archive
	downloadPath := filepath.Join(in.binDir, archive)
	defer os.Remove(downloadPath)

	in.logger.Info("downloading piper", "os", runtime.GOOS, "arch", runtime.GOARCH, "url", url)
	if err := in.downloadWithRetry(ctx, url, downloadPath, 2); err != nil {
		return fmt.Errorf("failed to download piper release: %w", err)
	}

	if err := extractArchive(downloadPath, in.binDir); err != nil {
		return fmt.Errorf("failed to extract piper release: %w", err)
	}

	if _, err := os.Stat(binary); err != nil {
		return fmt.Errorf("piper binary missing after extraction: %w", err)
	}
	in.logger.Info("piper binary installed", "path", binary)
	return nil
}

// EnsureVoice downloads the .onnx model and its .onnx.json config for the
// named voice unless both already exist.
func (in *Installer) EnsureVoice(ctx context.Context, name string) error {
	if !KnownVoice(name) {
		return fmt.Errorf("unknown voice %q", name)
	}

	modelFile := filepath.Join(in.modelDir, name+".onnx")
	configFile := modelFile + ".json"
	if fileExists(modelFile) && fileExists(configFile) {
		in.logger.Info("voice already installed", "voice", name)
		return nil
	}

	repoPath, err := voiceRepoPath(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(in.modelDir, 0755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}

	modelURL := fmt.Sprintf("%s/%s/%s.onnx", in.voiceBase, repoPath, name)
	configURL := modelURL + ".json"

	in.logger.Info("downloading voice model", "voice", name, "url", modelURL)
	if err := in.downloadWithRetry(ctx, modelURL, modelFile, 3); err != nil {
		return fmt.Errorf("failed to download voice model: %w", err)
	}
	if err := in.downloadWithRetry(ctx, configURL, configFile, 3); err != nil {
		return fmt.Errorf("failed to download voice config: %w", err)
	}

	in.logger.Info("voice installed", "voice", name)
	return nil
}

func releaseArchiveName(goos, goarch string) (string, error) {
	switch goos {
	case "linux":
		switch goarch {
		case "amd64":
			return "piper_linux_x86_64.tar.gz", nil
		case "arm64":
			return "piper_linux_aarch64.tar.gz", nil
		case "arm":
			return "piper_linux_armv7l.tar.gz", nil
		}
		return "", fmt.Errorf("unsupported linux architecture %q", goarch)
	case "darwin":
		switch goarch {
		case "arm64":
			return "piper_macos_aarch64.tar.gz", nil
		case "amd64":
			return "piper_macos_x64.tar.gz", nil
		}
		return "", fmt.Errorf("unsupported darwin architecture %q", goarch)
	case "windows":
		if goarch == "amd64" {
			return "piper_windows_amd64.zip", nil
		}
		return "", fmt.Errorf("unsupported windows architecture %q", goarch)
	}
	return "", fmt.Errorf("unsupported platform %q", goos)
}

func (in *Installer) downloadWithRetry(ctx context.Context, url, dest string, attempts int) error {
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			wait := time.Duration(1<<uint(attempt-2)) * 2 * time.Second
			in.logger.Warn("retrying download", "attempt", attempt, "of", attempts, "wait", wait)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := in.download(ctx, url, dest); err != nil {
			lastErr = err
			os.Remove(dest)
			continue
		}

		info, err := os.Stat(dest)
		if err != nil {
			lastErr = fmt.Errorf("downloaded file verification failed: %w", err)
			continue
		}
		if info.Size() < minDownloadSize {
			lastErr = fmt.Errorf("downloaded file too small (%d bytes), likely an error page", info.Size())
			os.Remove(dest)
			continue
		}
		return nil
	}
	return fmt.Errorf("download failed after %d attempts: %w", attempts, lastErr)
}

func (in *Installer) download(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/octet-stream, */*")

	resp, err := in.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("file not found (status 404): %s", url)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("rate limited (status 429)")
	case resp.StatusCode >= 400:
		return fmt.Errorf("download failed: %s", resp.Status)
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("failed to save file: %w", err)
	}
	return nil
}

// extractArchive unpacks a piper release into destDir. Archive entries are
// nested under a top-level "piper/" directory which is stripped, so the
// binary, shared libraries and espeak-ng-data land directly in destDir.
func extractArchive(archivePath, destDir string) error {
	switch {
	case strings.HasSuffix(archivePath, ".tar.gz"):
		return extractTarGz(archivePath, destDir)
	case strings.HasSuffix(archivePath, ".zip"):
		return extractZip(archivePath, destDir)
	}
	return fmt.Errorf("unsupported archive format: %s", archivePath)
}

func extractTarGz(archivePath, destDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return err
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		target, ok := archiveTarget(destDir, hdr.Name)
		if !ok {
			continue
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return err
			}
			if err := writeExtracted(target, tr, os.FileMode(hdr.Mode)); err != nil {
				return err
			}
		case tar.TypeSymlink:
			// Piper releases ship versioned .so symlinks the binary
			// resolves at load time (libespeak-ng.so.1 -> .so.1.52).
			// Windows builds come as zip archives without them.
			if runtime.GOOS == "windows" {
				continue
			}
			if !symlinkAllowed(destDir, target, hdr.Linkname) {
				continue
			}
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return err
			}
			if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
				return err
			}
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return err
			}
		}
	}
}

// symlinkAllowed rejects absolute link targets and targets that resolve
// outside destDir.
func symlinkAllowed(destDir, target, linkname string) bool {
	if linkname == "" || filepath.IsAbs(linkname) {
		return false
	}
	resolved := filepath.Join(filepath.Dir(target), linkname)
	rel, err := filepath.Rel(destDir, resolved)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(os.PathSeparator))
}

func extractZip(archivePath, destDir string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		target, ok := archiveTarget(destDir, f.Name)
		if !ok {
			continue
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}
		rc, err := f.Open()
		if err != nil {
			return err
		}
		err = writeExtracted(target, rc, f.Mode())
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// archiveTarget maps an archive entry name to its destination, stripping
// the leading "piper/" directory and rejecting path traversal.
func archiveTarget(destDir, name string) (string, bool) {
	name = strings.TrimPrefix(filepath.ToSlash(name), "piper/")
	if name == "" || strings.Contains(name, "..") {
		return "", false
	}
	return filepath.Join(destDir, filepath.FromSlash(name)), true
}

func writeExtracted(target string, r io.Reader, mode os.FileMode) error {
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	if runtime.GOOS != "windows" && mode&0100 != 0 {
		return os.Chmod(target, 0755)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
