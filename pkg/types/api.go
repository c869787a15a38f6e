package types

// InferRequest represents an inference request payload.
type InferRequest struct {
	// Optional model identifier. If empty, the current model is used.
	// example: tinyllama-q4
	Model string `json:"model,omitempty" example:"tinyllama-q4"`
	// Required prompt text to generate a completion for.
	// example: Write a haiku about the ocean.
	Prompt string `json:"prompt" example:"Write a haiku about the ocean."`
	// Maximum number of new tokens to generate. Zero uses the model default.
	// example: 128
	MaxTokens int `json:"max_tokens,omitempty" example:"128"`
	// Sampling temperature (higher = more random). Omitted uses the model
	// default; 0 asks for greedy decoding.
	// example: 0.7
	Temperature *float64 `json:"temperature,omitempty" example:"0.7"`
	// Nucleus sampling probability. Zero uses the model default.
	// example: 0.9
	TopP float64 `json:"top_p,omitempty" example:"0.9"`
	// Optional stop sequences. Generation stops when any sequence is matched.
	// example: ["\n\n","END"]
	Stop []string `json:"stop,omitempty" example:"[\"\\n\\n\",\"END\"]"`
}

// AvailableModel is one entry of GET /models.
type AvailableModel struct {
	// example: tinyllama-q4
	ID string `json:"id" example:"tinyllama-q4"`
	// example: TinyLlama (Q4)
	DisplayName string `json:"display_name" example:"TinyLlama (Q4)"`
	Description string `json:"description,omitempty"`
	// example: local
	Backend Backend `json:"backend" example:"local"`
	// example: true
	Loaded bool `json:"is_loaded" example:"true"`
	// example: true
	Current bool `json:"is_current" example:"true"`
}

// ModelsResponse wraps the list of models returned by GET /models.
type ModelsResponse struct {
	// Models whose backend is currently reachable or present.
	Models []AvailableModel `json:"models"`
}

// CurrentModelResponse is returned by GET /models/current.
type CurrentModelResponse struct {
	// Empty when no model is loaded.
	// example: tinyllama-q4
	Model string `json:"model" example:"tinyllama-q4"`
	// example: false
	Switching bool `json:"switching" example:"false"`
}

// ModelStatusResponse is returned by GET /models/{id}/status.
type ModelStatusResponse struct {
	// example: tinyllama-q4
	Model string `json:"model" example:"tinyllama-q4"`
	// Orchestration status: ready, loading, downloading, error or unknown.
	// example: ready
	Status string `json:"status" example:"ready"`
	// Weights download status: ready, downloading, loading, complete, error or unknown.
	// example: complete
	DownloadStatus string `json:"download_status" example:"complete"`
	// example: 100
	Progress float64 `json:"progress" example:"100"`
	// Step details reported by the provider.
	Details map[string]any `json:"details"`
	// example: false
	Downloading bool `json:"downloading" example:"false"`
	// example: true
	Loaded bool `json:"loaded" example:"true"`
	// Last load error, if any.
	Error string `json:"error,omitempty"`
}

// SwitchRequest is the body of POST /switch.
type SwitchRequest struct {
	// example: tinyllama-q4
	Model string `json:"model" example:"tinyllama-q4"`
	// When true the switch runs in the background and an operation id is returned.
	// example: false
	Async bool `json:"async,omitempty" example:"false"`
}

// SwitchResponse is returned by POST /switch.
type SwitchResponse struct {
	// example: tinyllama-q4
	Model string `json:"model" example:"tinyllama-q4"`
	// example: true
	OK bool `json:"ok" example:"true"`
	// Operation id for asynchronous switches.
	OpID string `json:"op_id,omitempty"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// InstanceStatus summarizes one configured model for /status.
type InstanceStatus struct {
	// ID of the model.
	// example: tinyllama-q4
	ModelID string `json:"model_id" example:"tinyllama-q4"`
	// example: local
	Backend Backend `json:"backend" example:"local"`
	// Orchestration status (ready, loading, downloading, error).
	// example: ready
	State string `json:"state" example:"ready"`
	// example: true
	Loaded bool `json:"loaded" example:"true"`
	// example: true
	Current bool `json:"current" example:"true"`
	// Download progress for hub models (0-100).
	// example: 100
	Progress float64 `json:"progress" example:"100"`
	// Last time this model served a request (unix seconds).
	// example: 1700000000
	LastUsed int64 `json:"last_used_unix,omitempty" example:"1700000000"`
	// Size of the weights file in MB when known.
	// example: 1200
	EstMB int `json:"est_mb,omitempty" example:"1200"`
	// Current queue length for incoming requests.
	// example: 0
	QueueLen int `json:"queue_len" example:"0"`
	// Number of open generation streams.
	// example: 1
	Inflight int `json:"inflight" example:"1"`
	// Maximum queued requests allowed before backpressure triggers.
	// example: 32
	MaxQueueDepth int `json:"max_queue_depth" example:"32"`
	// Last load error, if any.
	Error string `json:"error,omitempty"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// One entry per configured model.
	Instances []InstanceStatus `json:"instances"`
	// Currently loaded model, empty when none.
	// example: tinyllama-q4
	CurrentModel string `json:"current_model,omitempty" example:"tinyllama-q4"`
	// example: false
	Switching bool `json:"switching" example:"false"`
	// Last error observed by the manager (if any).
	LastError string `json:"last_error,omitempty"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
	// Total number of successful model loads.
	// example: 12
	LoadsTotal uint64 `json:"loads_total" example:"12"`
	// Total number of unloads.
	// example: 11
	UnloadsTotal uint64 `json:"unloads_total" example:"11"`
	// Overall manager state (loading, ready, error).
	// example: ready
	State string `json:"state" example:"ready"`
	// Number of models currently loading.
	// example: 1
	WarmupsInProgress int `json:"warmups_in_progress" example:"1"`
	// Number of models currently draining (unload in progress).
	// example: 0
	DrainingCount int `json:"draining_count" example:"0"`
}

// Float64 returns a pointer to v, for optional request fields.
func Float64(v float64) *float64 { return &v }
