package main

// General API documentation for swaggo. Regenerate with `swag init -g cmd/llmd/docs.go`.
//
// @title           llmd API
// @version         1.0
// @description     HTTP API for model lifecycle management, switching and streaming inference.
//
// @contact.name   llmd maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
