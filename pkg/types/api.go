package types

// UpscaleParams carries the non-file fields of an upscale request.
type UpscaleParams struct {
	// Model identifier to run. Required.
	// example: 4x-ultrasharp
	Model string `json:"model" example:"4x-ultrasharp"`
	// Optional scale override. Must equal the model's native scale;
	// any other value is rejected.
	// example: 4
	Scale int `json:"scale,omitempty" example:"4"`
}

// ModelEntry is one row of a catalog listing: the descriptor plus
// the locally observable state.
type ModelEntry struct {
	Descriptor
	// Install state: remote, ready, stale or unusable.
	// example: ready
	State string `json:"state" example:"ready"`
	// True while the model's weights are held in the loaded-model cache.
	// example: false
	Loaded bool `json:"loaded,omitempty"`
}

// ModelsResponse wraps the catalog listing returned by GET /models.
type ModelsResponse struct {
	// Catalog entries sorted by id.
	Models []ModelEntry `json:"models"`
}

// SyncResponse is returned by POST /sync and by the sync CLI.
type SyncResponse struct {
	// Snapshot revision the plan was computed against.
	// example: W/"a1b2c3"
	Revision string `json:"revision,omitempty" example:"W/\"a1b2c3\""`
	// True when the remote reported no change since the stored revision.
	// example: false
	NotModified bool `json:"not_modified,omitempty"`
	// Per-action counts of the applied plan.
	Added   int `json:"added" example:"2"`
	Updated int `json:"updated" example:"1"`
	Skipped int `json:"skipped" example:"40"`
	Stale   int `json:"stale" example:"0"`
	// Full decision list, present when the caller asked for detail.
	Decisions []SyncDecision `json:"decisions,omitempty"`
}

// FetchProgress is one NDJSON line of a weight download stream.
type FetchProgress struct {
	// Model the transfer belongs to.
	// example: 4x-ultrasharp
	ModelID string `json:"model_id" example:"4x-ultrasharp"`
	// Human-readable phase: resuming, downloading, verifying, done.
	// example: downloading
	Status string `json:"status" example:"downloading"`
	// Total bytes expected, when known.
	// example: 66864885
	Total int64 `json:"total,omitempty" example:"66864885"`
	// Bytes completed so far.
	// example: 1048576
	Completed int64 `json:"completed,omitempty" example:"1048576"`
	// Terminal error message, set on the last line of a failed stream.
	Error string `json:"error,omitempty"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: model not found
	Error string `json:"error" example:"model not found"`
	// HTTP status code.
	// example: 404
	Code int `json:"code" example:"404"`
	// Stable failure kind so clients can explain causes distinctly
	// (e.g. checksum_mismatch, accelerator_exhausted).
	// example: model_not_found
	Reason string `json:"reason,omitempty" example:"model_not_found"`
}

// LoadedModelStatus summarizes one cache entry for /status.
type LoadedModelStatus struct {
	// Model the handle serves.
	// example: 4x-ultrasharp
	ModelID string `json:"model_id" example:"4x-ultrasharp"`
	// Live references held by in-flight jobs.
	// example: 1
	Refs int `json:"refs" example:"1"`
	// Estimated resident size in MB.
	// example: 67
	EstMB int `json:"est_mb" example:"67"`
	// Last time the handle served a tile (unix seconds).
	// example: 1700000000
	LastUsed int64 `json:"last_used_unix" example:"1700000000"`
}

// JobStatus summarizes one in-flight upscale operation for /status.
type JobStatus struct {
	// Job identifier, also attached to logs.
	// example: 7f9c24e5-1d3a-4b8f-9e2a-5c0cfe9b0001
	ID string `json:"id"`
	// Model the job runs.
	// example: 4x-ultrasharp
	ModelID string `json:"model_id" example:"4x-ultrasharp"`
	// Input dimensions and requested scale.
	Width  int `json:"width" example:"5000"`
	Height int `json:"height" example:"3000"`
	Scale  int `json:"scale" example:"4"`
	// Tile progress.
	TilesTotal int `json:"tiles_total" example:"70"`
	TilesDone  int `json:"tiles_done" example:"12"`
	// Start time in unix seconds.
	StartedUnix int64 `json:"started_unix" example:"1700000000"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Loaded model handles.
	Loaded []LoadedModelStatus `json:"loaded"`
	// In-flight upscale jobs.
	Jobs []JobStatus `json:"jobs,omitempty"`
	// Memory budget in MB across all loaded models.
	// example: 4096
	BudgetMB int `json:"budget_mb" example:"4096"`
	// Estimated used memory in MB.
	// example: 134
	UsedMB int `json:"used_est_mb" example:"134"`
	// Reserved margin in MB.
	// example: 256
	MarginMB int `json:"margin_mb" example:"256"`
	// Catalog state.
	CatalogRevision string `json:"catalog_revision,omitempty"`
	LastSyncUnix    int64  `json:"last_sync_unix,omitempty" example:"1700000000"`
	ModelsTotal     int    `json:"models_total" example:"42"`
	ModelsReady     int    `json:"models_ready" example:"7"`
	// Counters since start.
	LoadsTotal        uint64 `json:"loads_total" example:"12"`
	EvictionsTotal    uint64 `json:"evictions_total" example:"5"`
	DegradationsTotal uint64 `json:"degradations_total" example:"3"`
	// Last error observed by the engine (if any).
	LastError string `json:"last_error,omitempty"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}
