package main

// General API documentation for swaggo. Run `make swagger-gen` to generate docs.
//
// @title           songd API
// @version         1.0
// @description     HTTP API for the hosted music generation demo.
//
// @contact.name   songd maintainers
// @contact.url    https://github.com/your-org/songd
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
