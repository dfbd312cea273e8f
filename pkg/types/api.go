package types

// GenerateRequest is the payload for POST /generate.
type GenerateRequest struct {
	// Free-form text prompt describing the track to generate.
	// example: an upbeat synthwave track with a driving bassline
	Prompt string `json:"prompt" example:"an upbeat synthwave track with a driving bassline"`
	// Optional lyrics to condition generation on.
	Lyrics string `json:"lyrics,omitempty"`
	// Requested duration of the generated audio in seconds.
	// example: 60
	DurationSeconds int `json:"duration_seconds,omitempty" example:"60"`
	// Number of diffusion steps; 0 lets the server choose.
	// example: 27
	Steps int `json:"steps,omitempty" example:"27"`
	// Random seed for reproducibility; 0 or omitted lets the server choose.
	// example: 42
	Seed int64 `json:"seed,omitempty" example:"42"`
}

// LyricsRequest is the payload for POST /lyrics.
type LyricsRequest struct {
	// Prompt describing the song the lyrics are for.
	// example: a ballad about leaving home
	Prompt string `json:"prompt" example:"a ballad about leaving home"`
	// Maximum number of new tokens to generate.
	// example: 256
	MaxTokens int `json:"max_tokens,omitempty" example:"256"`
	// Sampling temperature (higher = more random).
	// example: 0.7
	Temperature float64 `json:"temperature,omitempty" example:"0.7"`
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

// QueueStatus summarizes the admission queue for /status.
type QueueStatus struct {
	// Fixed queue capacity.
	// example: 20
	Capacity int `json:"capacity" example:"20"`
	// Requests currently holding a queue slot.
	// example: 3
	QueueLen int `json:"queue_len" example:"3"`
	// Requests currently being processed.
	// example: 1
	Inflight int `json:"inflight" example:"1"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// The readiness record produced at startup.
	Readiness ReadinessRecord `json:"readiness"`
	// Admission queue state.
	Queue QueueStatus `json:"queue"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}
