package httpapi

import "time"

const defaultMaxBodyBytes = 1 << 20

// Options gathers the HTTP tunables set from configuration.
type Options struct {
	MaxBodyBytes        int64
	InferTimeoutSeconds int64
	CORSEnabled         bool
	CORSAllowedOrigins  []string
	CORSAllowedMethods  []string
	CORSAllowedHeaders  []string
}

// Configure applies opts to the package settings used by NewMux.
func Configure(opts Options) {
	SetMaxBodyBytes(opts.MaxBodyBytes)
	SetInferTimeoutSeconds(opts.InferTimeoutSeconds)
	SetCORSOptions(opts.CORSEnabled, opts.CORSAllowedOrigins, opts.CORSAllowedMethods, opts.CORSAllowedHeaders)
}

// maxBodyBytes bounds JSON request bodies.
var maxBodyBytes int64 = defaultMaxBodyBytes

// SetMaxBodyBytes sets the maximum request body size; n <= 0 restores 1 MiB.
func SetMaxBodyBytes(n int64) {
	if n <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
		return
	}
	maxBodyBytes = n
}

// inferTimeout bounds /infer and synchronous /switch in seconds.
// Zero means no additional timeout beyond server/connection timeouts.
var inferTimeout = int64(0)

// SetInferTimeoutSeconds sets the infer timeout in seconds (0 disables).
func SetInferTimeoutSeconds(sec int64) {
	if sec < 0 {
		sec = 0
	}
	inferTimeout = sec
}

func inferDeadline() time.Duration { return time.Duration(inferTimeout) * time.Second }

// CORS configuration (opt-in). If disabled, no CORS middleware is added.
var (
	corsEnabled        bool
	corsAllowedOrigins []string
	corsAllowedMethods []string
	corsAllowedHeaders []string
)

// SetCORSOptions configures CORS behavior for the HTTP server.
func SetCORSOptions(enabled bool, origins, methods, headers []string) {
	corsEnabled = enabled
	corsAllowedOrigins = append([]string(nil), origins...)
	corsAllowedMethods = append([]string(nil), methods...)
	corsAllowedHeaders = append([]string(nil), headers...)
}
