package httpapi

// maxBodyBytes controls the maximum allowed request body size for the
// upscale endpoint. Defaults to 64 MiB, enough for large PNG sources.
var maxBodyBytes int64 = 64 << 20

// SetMaxBodyBytes allows configuring the maximum request body size.
func SetMaxBodyBytes(n int64) {
	if n <= 0 {
		maxBodyBytes = 64 << 20
		return
	}
	maxBodyBytes = n
}

// upscaleTimeout controls the maximum duration an /upscale request may run
// before timing out. Zero means no additional timeout beyond
// server/connection timeouts.
var upscaleTimeout = int64(0) // seconds

// SetUpscaleTimeoutSeconds sets the upscale timeout in seconds (0 disables).
func SetUpscaleTimeoutSeconds(sec int64) {
	if sec < 0 {
		sec = 0
	}
	upscaleTimeout = sec
}

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
