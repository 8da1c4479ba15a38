// Package docs holds the OpenAPI description served under /docs.
// Regenerate with: swag init -g cmd/api/main.go
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
        "/health": {
            "get": {
                "description": "Returns basic health status and timestamp.",
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/health/db": {
            "get": {
                "description": "Verifies Postgres connectivity and that the notification ledger exists.",
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Database health check",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}},
                    "503": {"description": "Service Unavailable", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/api/v1/admin/notifications/run": {
            "post": {
                "description": "Runs a notification pass immediately, ignoring quiet hours. Per-recipient failures are listed in errors.",
                "produces": ["application/json"],
                "tags": ["notifications"],
                "summary": "Run notification pass",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/delivery.PassResult"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}}
                }
            }
        },
        "/api/v1/admin/notifications/ledger": {
            "get": {
                "description": "Returns ledger record counts per kind and status, including claims older than the stale threshold.",
                "produces": ["application/json"],
                "tags": ["notifications"],
                "summary": "Ledger summary",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.LedgerSummary"}},
                    "304": {"description": "Not Modified"},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "delivery.PassResult": {
            "type": "object",
            "properties": {
                "run_id": {"type": "string"},
                "trigger": {"type": "string"},
                "started_at": {"type": "string"},
                "duration_ns": {"type": "integer"},
                "games_in_24hour_window": {"type": "integer"},
                "games_in_gameday_window": {"type": "integer"},
                "emails_sent": {"type": "integer"},
                "pushes_sent": {"type": "integer"},
                "delivered": {"type": "integer"},
                "duplicates_skipped": {"type": "integer"},
                "push_targets_removed": {"type": "integer"},
                "errors": {"type": "array", "items": {"type": "string"}}
            }
        },
        "handler.LedgerSummary": {
            "type": "object",
            "properties": {
                "generated_at": {"type": "string"},
                "stale_after_seconds": {"type": "integer"},
                "counts": {"type": "array", "items": {"$ref": "#/definitions/ledger.Count"}}
            }
        },
        "ledger.Count": {
            "type": "object",
            "properties": {
                "kind": {"type": "string", "enum": ["24hour", "gameday", "24hour-push", "gameday-push"]},
                "status": {"type": "string", "enum": ["pending", "sending", "sent"]},
                "total": {"type": "integer"},
                "stale": {"type": "integer"}
            }
        },
        "respond.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {
                    "type": "object",
                    "properties": {
                        "code": {"type": "string"},
                        "message": {"type": "string"},
                        "detail": {"type": "string"}
                    }
                }
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Athletics Notify Admin API",
	Description:      "Game reminder delivery: manual passes and ledger reporting.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
