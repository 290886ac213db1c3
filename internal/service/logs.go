package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

type logSection struct {
	Name    string
	Content string
}

// tailFileLines returns the last n lines of path, or "" when the file is
// missing or empty.
func tailFileLines(path string, n int) string {
	b, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	content := strings.TrimRight(string(b), "\n")
	if content == "" {
		return ""
	}
	lines := strings.Split(content, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n") + "\n"
}

// combineLogSections joins non-empty sections under tail-style headers.
func combineLogSections(sections []logSection) string {
	var sb strings.Builder
	for _, s := range sections {
		if s.Content == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "==> %s <==\n", s.Name)
		sb.WriteString(s.Content)
	}
	return sb.String()
}

// followFiles polls the given files for appended data and copies it to w
// until ctx is done. Files that do not exist yet are picked up once they
// appear; truncation resets the read offset.
func followFiles(ctx context.Context, paths []string, w io.Writer) error {
	offsets := make(map[string]int64, len(paths))
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil {
			offsets[p] = info.Size()
		}
	}

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for _, p := range paths {
				info, err := os.Stat(p)
				if err != nil {
					continue
				}
				offset := offsets[p]
				if info.Size() < offset {
					offset = 0
				}
				if info.Size() == offset {
					continue
				}
				f, err := os.Open(p)
				if err != nil {
					continue
				}
				if _, err := f.Seek(offset, io.SeekStart); err == nil {
					n, _ := io.Copy(w, f)
					offsets[p] = offset + n
				}
				f.Close()
			}
		}
	}
}
