package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

const userAgent = "llmd/1.0"

// downloadFile fetches url into dest, resuming from dest+".part" when a
// previous attempt left one behind. progress receives bytes written so far
// and the total size (-1 when unknown).
func downloadFile(ctx context.Context, client *http.Client, url, dest string, progress func(done, total int64)) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	part := dest + ".part"

	var startByte int64
	if fi, err := os.Stat(part); err == nil {
		startByte = fi.Size()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	if startByte > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", startByte))
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusRequestedRangeNotSatisfiable && startByte > 0:
		// The partial file already holds everything.
		return os.Rename(part, dest)
	case resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent:
		return fmt.Errorf("download failed: HTTP %d from %s", resp.StatusCode, url)
	}

	flags := os.O_CREATE | os.O_WRONLY
	if startByte > 0 && resp.StatusCode == http.StatusPartialContent {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
		startByte = 0
	}
	total := int64(-1)
	if resp.ContentLength >= 0 {
		total = startByte + resp.ContentLength
	}

	f, err := os.OpenFile(part, flags, 0o644)
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	pw := &progressWriter{w: f, done: startByte, total: total, fn: progress}
	if progress != nil {
		progress(startByte, total)
	}
	_, copyErr := io.Copy(pw, resp.Body)
	closeErr := f.Close()
	if copyErr != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("download interrupted: %w", copyErr)
	}
	if closeErr != nil {
		return closeErr
	}
	if total >= 0 && pw.done != total {
		return fmt.Errorf("download incomplete: got %d of %d bytes", pw.done, total)
	}
	return os.Rename(part, dest)
}

type progressWriter struct {
	w     io.Writer
	done  int64
	total int64
	fn    func(done, total int64)
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.done += int64(n)
	if p.fn != nil {
		p.fn(p.done, p.total)
	}
	return n, err
}

// verifySHA256 checks the file digest against want (hex, case-insensitive).
func verifySHA256(path, want string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return err
	}
	got := hex.EncodeToString(h.Sum(nil))
	if !strings.EqualFold(got, strings.TrimSpace(want)) {
		return errors.New("checksum mismatch: got " + got)
	}
	return nil
}
