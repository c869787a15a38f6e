// Package docs registers the OpenAPI document served under /swagger when
// built with -tags=swagger. Regenerate with `swag init -g cmd/llmd/docs.go`.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "license": {"name": "MIT", "url": "https://opensource.org/licenses/MIT"},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/models": {
            "get": {
                "produces": ["application/json"],
                "summary": "List available models",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.ModelsResponse"}}}
            }
        },
        "/models/current": {
            "get": {
                "produces": ["application/json"],
                "summary": "Current model",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.CurrentModelResponse"}}}
            }
        },
        "/models/{id}/status": {
            "get": {
                "produces": ["application/json"],
                "summary": "Per-model status and download progress",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.ModelStatusResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/switch": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "summary": "Switch the current model",
                "parameters": [{"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/types.SwitchRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.SwitchResponse"}},
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/types.SwitchResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "503": {"description": "Load failed", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/unload": {
            "post": {
                "produces": ["application/json"],
                "summary": "Unload the current model",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/infer": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/x-ndjson"],
                "summary": "Stream a completion as NDJSON",
                "parameters": [{"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/types.InferRequest"}}],
                "responses": {
                    "200": {"description": "NDJSON stream"},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "415": {"description": "Unsupported Media Type", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "503": {"description": "No model loaded", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/status": {
            "get": {
                "produces": ["application/json"],
                "summary": "Manager status",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.StatusResponse"}}}
            }
        }
    },
    "definitions": {
        "types.ErrorResponse": {"type": "object", "properties": {"error": {"type": "string"}, "code": {"type": "integer"}}},
        "types.SwitchRequest": {"type": "object", "properties": {"model": {"type": "string"}, "async": {"type": "boolean"}}},
        "types.SwitchResponse": {"type": "object", "properties": {"model": {"type": "string"}, "ok": {"type": "boolean"}, "op_id": {"type": "string"}}},
        "types.InferRequest": {"type": "object", "properties": {
            "model": {"type": "string"}, "prompt": {"type": "string"}, "max_tokens": {"type": "integer"},
            "temperature": {"type": "number"}, "top_p": {"type": "number"}, "stop": {"type": "array", "items": {"type": "string"}}
        }},
        "types.AvailableModel": {"type": "object", "properties": {
            "id": {"type": "string"}, "display_name": {"type": "string"}, "description": {"type": "string"},
            "backend": {"type": "string"}, "is_loaded": {"type": "boolean"}, "is_current": {"type": "boolean"}
        }},
        "types.ModelsResponse": {"type": "object", "properties": {"models": {"type": "array", "items": {"$ref": "#/definitions/types.AvailableModel"}}}},
        "types.CurrentModelResponse": {"type": "object", "properties": {"model": {"type": "string"}, "switching": {"type": "boolean"}}},
        "types.ModelStatusResponse": {"type": "object", "properties": {
            "model": {"type": "string"}, "status": {"type": "string"}, "download_status": {"type": "string"},
            "progress": {"type": "number"}, "details": {"type": "object"}, "downloading": {"type": "boolean"},
            "loaded": {"type": "boolean"}, "error": {"type": "string"}
        }},
        "types.StatusResponse": {"type": "object", "properties": {
            "current_model": {"type": "string"}, "switching": {"type": "boolean"}, "state": {"type": "string"},
            "last_error": {"type": "string"}, "uptime_seconds": {"type": "integer"}, "loads_total": {"type": "integer"},
            "unloads_total": {"type": "integer"}, "warmups_in_progress": {"type": "integer"}, "draining_count": {"type": "integer"}
        }}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "llmd API",
	Description:      "HTTP API for model lifecycle management and streaming inference.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
