package main

// General API documentation for swaggo. The UI is served at /swagger/ when
// the binary is built with -tags=swagger.
//
// @title           upscaled API
// @version         1.0
// @description     HTTP API for tiled image super-resolution and model catalog management.
//
// @contact.name   upscaled maintainers
// @contact.url    https://github.com/your-org/upscaled
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
