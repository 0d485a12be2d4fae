// Package docs registers the OpenAPI document served at /api/swagger.
// Regenerate with `swag init -g cmd/server/main.go -o docs`.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/conversations": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["conversations"], "summary": "List my conversations", "produces": ["application/json"], "responses": {"200": {"description": "OK"}}},
            "post": {"security": [{"BearerAuth": []}], "tags": ["conversations"], "summary": "Start or resume a conversation", "consumes": ["application/json"], "produces": ["application/json"], "responses": {"200": {"description": "OK"}, "201": {"description": "Created"}, "403": {"description": "Forbidden"}}}
        },
        "/conversations/badges": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["conversations"], "summary": "Unread message and pending request counters", "responses": {"200": {"description": "OK"}}}
        },
        "/conversations/{id}/respond": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["conversations"], "summary": "Accept or ignore a conversation request", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "403": {"description": "Forbidden"}}}
        },
        "/conversations/{id}/messages": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["messages"], "summary": "Page through a conversation", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}, {"type": "integer", "name": "limit", "in": "query"}, {"type": "integer", "name": "before", "in": "query"}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}},
            "post": {"security": [{"BearerAuth": []}], "tags": ["messages"], "summary": "Send a message", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"201": {"description": "Created"}, "403": {"description": "Forbidden"}, "409": {"description": "Conflict"}}}
        },
        "/conversations/{id}/report": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["moderation"], "summary": "Report a conversation to the moderators", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"201": {"description": "Created"}}}
        },
        "/listings/{id}/sold": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["ledger"], "summary": "Record a completed sale or swap", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"201": {"description": "Created"}, "409": {"description": "Conflict"}}}
        },
        "/transactions/{id}/ratings": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["ratings"], "summary": "Rate the other party of a transaction", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"201": {"description": "Created"}, "409": {"description": "Conflict"}}}
        },
        "/ratings/pending": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["ratings"], "summary": "Transactions I can still rate", "responses": {"200": {"description": "OK"}}}
        },
        "/players/{id}/standing": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["ratings"], "summary": "Marketplace standing of a player", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}
        },
        "/admin/reports": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["admin"], "summary": "List conversation reports", "parameters": [{"type": "string", "name": "status", "in": "query"}], "responses": {"200": {"description": "OK"}}}
        },
        "/admin/reports/{id}/resolve": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["admin"], "summary": "Resolve a report", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "409": {"description": "Conflict"}}}
        },
        "/admin/actions": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["admin"], "summary": "Warn, mute, ban or lift a sanction without a report", "responses": {"201": {"description": "Created"}}}
        }
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api",
	Schemes:          []string{},
	Title:            "Puzzle Marketplace API",
	Description:      "Marketplace conversations, trust and safety, and post-sale ratings.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
