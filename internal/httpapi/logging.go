package httpapi

import (
	"bytes"
	"net/http"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// zlog is the HTTP layer logger; a no-op until SetLogger is called.
var zlog = zerolog.Nop()

// SetLogger installs a structured logger used by the HTTP layer.
func SetLogger(l zerolog.Logger) { zlog = l.With().Str("component", "http").Logger() }

// loggingLineWriter logs complete NDJSON lines at debug level.
type loggingLineWriter struct {
	buf       []byte
	requestID string
}

func (lw *loggingLineWriter) Write(p []byte) (int, error) {
	lw.buf = append(lw.buf, p...)
	for {
		idx := bytes.IndexByte(lw.buf, '\n')
		if idx < 0 {
			break
		}
		if idx > 0 {
			zlog.Debug().Str("request_id", lw.requestID).Str("line", string(lw.buf[:idx])).Msg("infer>")
		}
		lw.buf = lw.buf[idx+1:]
	}
	return len(p), nil
}

// parseLevel maps a request or env log setting to the level at which an
// inference request is logged. Empty and "off" disable request logging;
// "1" means debug; unknown values mean info.
func parseLevel(s string) zerolog.Level {
	switch s = strings.ToLower(strings.TrimSpace(s)); s {
	case "", "off":
		return zerolog.Disabled
	case "1":
		return zerolog.DebugLevel
	}
	if l, err := zerolog.ParseLevel(s); err == nil && l != zerolog.NoLevel {
		return l
	}
	return zerolog.InfoLevel
}

// defaultLogLevel is read once from LLMD_LOG_INFER / LLMD_HTTP_LOG_LEVEL.
var defaultLogLevel = func() zerolog.Level {
	if os.Getenv("LLMD_LOG_INFER") == "1" {
		return zerolog.DebugLevel
	}
	return parseLevel(os.Getenv("LLMD_HTTP_LOG_LEVEL"))
}()

// requestLogLevel applies per-request overrides: ?log=, then X-Log-Level,
// then X-Log-Infer: 1.
func requestLogLevel(r *http.Request) zerolog.Level {
	if v := r.URL.Query().Get("log"); v != "" {
		return parseLevel(v)
	}
	if v := r.Header.Get("X-Log-Level"); v != "" {
		return parseLevel(v)
	}
	if r.Header.Get("X-Log-Infer") == "1" {
		return zerolog.DebugLevel
	}
	return defaultLogLevel
}
