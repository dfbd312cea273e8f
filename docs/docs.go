//go:build swagger

// Package docs holds the OpenAPI description served under /swagger/.
// Regenerate with `make swagger-gen`.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/generate": {
            "post": {
                "produces": ["application/x-ndjson"],
                "summary": "Generate a track, streaming progress lines",
                "responses": {
                    "200": {"description": "NDJSON stream"},
                    "429": {"description": "admission queue full"},
                    "503": {"description": "generation disabled"}
                }
            }
        },
        "/lyrics": {
            "post": {
                "produces": ["application/x-ndjson"],
                "summary": "Generate lyrics, streaming token lines",
                "responses": {
                    "200": {"description": "NDJSON stream"},
                    "503": {"description": "language model unavailable"}
                }
            }
        },
        "/status": {
            "get": {
                "produces": ["application/json"],
                "summary": "Readiness record, queue and uptime",
                "responses": {"200": {"description": "OK"}}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "songd API",
	Description:      "HTTP API for the hosted generative-audio service.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
