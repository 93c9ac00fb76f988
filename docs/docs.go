// Package docs holds the OpenAPI description served at /v1/docs/doc.json.
// Regenerate with `swag init -g cmd/server/main.go` after changing handler annotations.
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
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "paths": {
        "/auth/guest": {"post": {"tags": ["auth"], "summary": "Issue a guest bearer token", "responses": {"201": {"description": "Created"}, "403": {"description": "Forbidden"}}}},
        "/codes": {"get": {"tags": ["sessions"], "summary": "Allocate an unused join code", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}},
        "/sessions": {"post": {"tags": ["sessions"], "summary": "Create a session", "security": [{"BearerAuth": []}], "responses": {"201": {"description": "Created"}, "409": {"description": "Conflict"}}}},
        "/sessions/{id}": {"get": {"tags": ["sessions"], "summary": "Read a session with its derived clocks", "security": [{"BearerAuth": []}], "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}},
        "/sessions/{id}/join": {"post": {"tags": ["sessions"], "summary": "Join a session", "security": [{"BearerAuth": []}], "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}, "409": {"description": "Conflict"}}}},
        "/sessions/{id}/roles": {"post": {"tags": ["sessions"], "summary": "Assign target and detector and start the talk phase", "security": [{"BearerAuth": []}], "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}, "409": {"description": "Conflict"}}}},
        "/sessions/{id}/persona/activate": {"post": {"tags": ["persona"], "summary": "Open a persona window", "security": [{"BearerAuth": []}], "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}, "409": {"description": "Conflict"}}}},
        "/sessions/{id}/persona/deactivate": {"post": {"tags": ["persona"], "summary": "Take back control", "security": [{"BearerAuth": []}], "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}, "409": {"description": "Conflict"}}}},
        "/sessions/{id}/guess": {"post": {"tags": ["sessions"], "summary": "Submit the detector's single guess", "security": [{"BearerAuth": []}], "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}, "409": {"description": "Conflict"}}}},
        "/sessions/{id}/end": {"post": {"tags": ["sessions"], "summary": "End a session", "security": [{"BearerAuth": []}], "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}}}},
        "/sessions/{id}/intro": {"post": {"tags": ["sessions"], "summary": "Mark the intro as complete", "security": [{"BearerAuth": []}], "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}}}},
        "/sessions/{id}/expire": {"post": {"tags": ["sessions"], "summary": "End the session if its deadline has passed", "security": [{"BearerAuth": []}], "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}}}},
        "/sessions/{id}/events": {"get": {"tags": ["sessions"], "summary": "List the audit trail of a session", "security": [{"BearerAuth": []}], "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}}}}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/v1",
	Schemes:          []string{},
	Title:            "Voiceswap Session API",
	Description:      "Coordinates persona takeover sessions between a target and a detector",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
