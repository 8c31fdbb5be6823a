// Package docs registers the OpenAPI description served under /swagger.
// Regenerate with: swag init -g cmd/meteo/main.go -o docs
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
        "/warnings": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Warnings"],
                "summary": "Active advisories at a point",
                "operationId": "currentForPoint",
                "parameters": [
                    {"type": "number", "description": "Latitude", "name": "lat", "in": "query", "required": true},
                    {"type": "number", "description": "Longitude", "name": "lon", "in": "query", "required": true},
                    {"type": "string", "description": "Refresh from the feed first (default 1)", "name": "refresh", "in": "query"},
                    {"type": "string", "description": "Record a snapshot (default 0)", "name": "save", "in": "query"},
                    {"type": "string", "description": "Use the resolution cache", "name": "cache", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.WarningsResponse"}},
                    "400": {"description": "Bad request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "404": {"description": "Point outside any county", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "502": {"description": "Geocoder unavailable", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/warnings/live": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Warnings"],
                "summary": "Advisories at a point straight from the feed",
                "operationId": "liveForPoint",
                "parameters": [
                    {"type": "number", "name": "lat", "in": "query", "required": true},
                    {"type": "number", "name": "lon", "in": "query", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.WarningsResponse"}},
                    "502": {"description": "Feed unavailable", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/warnings/future": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Warnings"],
                "summary": "Advisories that have not started yet at a point",
                "operationId": "futureForPoint",
                "parameters": [
                    {"type": "number", "name": "lat", "in": "query", "required": true},
                    {"type": "number", "name": "lon", "in": "query", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.WarningsResponse"}}
                }
            }
        },
        "/warnings/teryt/{code}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Warnings"],
                "summary": "Active advisories in a county",
                "operationId": "currentForRegion",
                "parameters": [
                    {"type": "string", "description": "4-digit TERYT county code", "name": "code", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.WarningsResponse"}},
                    "400": {"description": "Malformed code", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/warnings/teryt/{code}/future": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Warnings"],
                "summary": "Upcoming advisories in a county",
                "operationId": "futureForRegion",
                "parameters": [
                    {"type": "string", "name": "code", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.WarningsResponse"}}
                }
            }
        },
        "/history": {
            "get": {
                "produces": ["application/json"],
                "tags": ["History"],
                "summary": "Stored advisories at a point, filtered by time",
                "operationId": "historyForPoint",
                "parameters": [
                    {"type": "number", "name": "lat", "in": "query", "required": true},
                    {"type": "number", "name": "lon", "in": "query", "required": true},
                    {"type": "string", "name": "since", "in": "query"},
                    {"type": "string", "name": "until", "in": "query"},
                    {"type": "string", "name": "active_at", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.WarningsResponse"}}
                }
            }
        },
        "/history/teryt/{code}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["History"],
                "summary": "Stored advisories in a county, filtered by time",
                "operationId": "historyForRegion",
                "parameters": [
                    {"type": "string", "name": "code", "in": "path", "required": true},
                    {"type": "string", "name": "since", "in": "query"},
                    {"type": "string", "name": "until", "in": "query"},
                    {"type": "string", "name": "active_at", "in": "query"},
                    {"type": "string", "name": "If-None-Match", "in": "header"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.WarningsResponse"}},
                    "304": {"description": "Not modified"}
                }
            }
        },
        "/snapshots": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Snapshots"],
                "summary": "Record active advisories at a point",
                "operationId": "createSnapshot",
                "parameters": [
                    {"type": "string", "description": "Key for safe retries", "name": "Idempotency-Key", "in": "header"},
                    {"description": "Point", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.CreateSnapshotRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/domain.Snapshot"}},
                    "400": {"description": "Bad request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/snapshots/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Snapshots"],
                "summary": "Read a snapshot",
                "operationId": "getSnapshot",
                "parameters": [
                    {"type": "string", "format": "uuid", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.Snapshot"}},
                    "404": {"description": "Snapshot not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/status": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Status"],
                "summary": "Server clock and store freshness",
                "operationId": "status",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.StatusResponse"}}
                }
            }
        }
    },
    "definitions": {
        "domain.Advisory": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "event_name": {"type": "string"},
                "level": {"type": "integer"},
                "probability": {"type": "integer"},
                "valid_from": {"type": "string", "format": "date-time"},
                "valid_to": {"type": "string", "format": "date-time"},
                "published_at": {"type": "string", "format": "date-time"},
                "content": {"type": "string"},
                "comment": {"type": "string"},
                "office": {"type": "string"},
                "updated_at": {"type": "string", "format": "date-time"},
                "regions": {"type": "array", "items": {"type": "string"}}
            }
        },
        "domain.Snapshot": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "lat": {"type": "number"},
                "lon": {"type": "number"},
                "region_code": {"type": "string"},
                "region_name": {"type": "string"},
                "captured_at": {"type": "string", "format": "date-time"},
                "advisory_ids": {"type": "array", "items": {"type": "string"}}
            }
        },
        "handlers.CreateSnapshotRequest": {
            "type": "object",
            "required": ["lat", "lon"],
            "properties": {
                "lat": {"type": "number", "example": 50.061947},
                "lon": {"type": "number", "example": 19.936856},
                "cache": {"type": "boolean"}
            }
        },
        "handlers.ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "request_id": {"type": "string"}
            }
        },
        "handlers.StatusResponse": {
            "type": "object",
            "properties": {
                "now": {"type": "string", "format": "date-time"},
                "last_published": {"type": "string", "format": "date-time"},
                "cached_points": {"type": "integer"}
            }
        },
        "handlers.WarningsResponse": {
            "type": "object",
            "properties": {
                "point": {"type": "object", "properties": {"lat": {"type": "number"}, "lon": {"type": "number"}}},
                "area": {"type": "object", "properties": {"teryt4": {"type": "string"}, "name": {"type": "string"}}},
                "filters": {"type": "object", "properties": {"since": {"type": "string"}, "until": {"type": "string"}, "active_at": {"type": "string"}}},
                "count": {"type": "integer"},
                "items": {"type": "array", "items": {"$ref": "#/definitions/domain.Advisory"}},
                "upstream_available": {"type": "boolean"},
                "saved_snapshot_id": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Meteo Warnings API",
	Description:      "County-level severe-weather advisories from the IMGW feed, queried by point or TERYT code.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
