package types

import "time"

// Descriptor describes one super-resolution model known to the catalog.
// Descriptors are persisted in the registry file and served by the API.
type Descriptor struct {
	// Stable identifier for the model.
	// example: 4x-ultrasharp
	ID string `json:"id" yaml:"id" example:"4x-ultrasharp"`
	// Human-friendly name from the catalog.
	// example: UltraSharp
	Name string `json:"name" yaml:"name" example:"UltraSharp"`
	// Rendered listing name, e.g. "[4X] UltraSharp (anime, photo)".
	DisplayName string `json:"display_name,omitempty" yaml:"display_name,omitempty" example:"[4X] UltraSharp (anime, photo)"`
	// Architecture family the weights target (e.g. esrgan, span, resampler).
	// example: esrgan
	Architecture string `json:"architecture" yaml:"architecture" example:"esrgan"`
	// Native upscale factor of the network.
	// example: 4
	Scale int `json:"scale" yaml:"scale" example:"4"`
	// Color channels the network consumes (1..4).
	// example: 3
	InputChannels int `json:"input_channels" yaml:"input_channels" example:"3"`
	// Color channels the network produces (1..4).
	// example: 3
	OutputChannels int `json:"output_channels" yaml:"output_channels" example:"3"`
	// Weight file name inside the models directory.
	// example: 4x-UltraSharp.pth
	FileName string `json:"file_name,omitempty" yaml:"file_name,omitempty" example:"4x-UltraSharp.pth"`
	// Lowercase hex sha256 of the weight file.
	Checksum string `json:"checksum,omitempty" yaml:"checksum,omitempty"`
	// Direct download URL for the weight file; empty when the catalog
	// offers no supported source.
	SourceURL string `json:"source_url,omitempty" yaml:"source_url,omitempty"`
	// Size of the weight file in bytes, when the catalog reports one.
	SizeBytes int64 `json:"size_bytes,omitempty" yaml:"size_bytes,omitempty"`
	// Absolute path of the verified local weight file; empty until fetched.
	LocalPath string `json:"local_path,omitempty" yaml:"local_path,omitempty"`
	// Catalog tags, treated as a set.
	Tags []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	// True for models registered manually rather than discovered by sync.
	// User-defined models are never removed by staleness reconciliation.
	UserDefined bool `json:"user_defined,omitempty" yaml:"user_defined,omitempty"`
	// True when the model is no longer present in the remote catalog.
	Stale bool `json:"stale,omitempty" yaml:"stale,omitempty"`
	// Set when the descriptor cannot serve inference and why.
	Unusable       bool   `json:"unusable,omitempty" yaml:"unusable,omitempty"`
	UnusableReason string `json:"unusable_reason,omitempty" yaml:"unusable_reason,omitempty"`
	// Last time sync touched this descriptor.
	LastSynced time.Time `json:"last_synced,omitempty" yaml:"last_synced,omitempty"`
}

// Ready reports whether the model has verified local weights and is usable.
func (d Descriptor) Ready() bool {
	return d.LocalPath != "" && !d.Unusable
}

// HasSource reports whether the catalog offers a direct download for the model.
func (d Descriptor) HasSource() bool {
	return d.SourceURL != ""
}
