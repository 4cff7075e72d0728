// Package engine coordinates model loading, device admission and tiled
// upscale execution. It is structured into small files by concern:
//
//   - engine.go: core Engine type, Config and constructor.
//   - errors.go: error kinds and helpers (IsTooBusy, IsAcceleratorExhausted, ...).
//   - cache.go: reference-counted loaded-model cache with LRU eviction.
//   - admission.go: job admission queue and device stream gate.
//   - image.go: input decode and normalization, PNG output.
//   - runner.go: per-tile execution with out-of-memory degradation.
//   - upscale.go: the Upscale entry point tying plan, run and compose together.
//   - jobs.go: in-flight job tracking for /status.
//   - status.go: Status reporting.
//   - events.go: lifecycle event publishing.
//   - metrics.go: Prometheus counters.
//
// External packages should use the public methods only (New, Upscale,
// Load, Unload, Status, Ready). Internal types are subject to change.
package engine
