// Package docs serves the OpenAPI description of the tournament API.
// Regenerate with `swag init -g cmd/main.go` after changing handler annotations.
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
        "/tournaments": {
            "get": {
                "produces": ["application/json"],
                "tags": ["tournaments"],
                "summary": "List tournaments",
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["tournaments"],
                "summary": "Create a tournament",
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/createTournamentRequest"}}],
                "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request"}}
            },
            "put": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["tournaments"],
                "summary": "Rename a tournament",
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/updateTournamentRequest"}}],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}, "401": {"description": "Unauthorized"}, "404": {"description": "Not Found"}, "409": {"description": "Conflict"}}
            },
            "delete": {
                "consumes": ["application/json"],
                "tags": ["tournaments"],
                "summary": "Delete a tournament and everything in it",
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/tournamentAccessRequest"}}],
                "responses": {"204": {"description": "No Content"}, "401": {"description": "Unauthorized"}, "404": {"description": "Not Found"}}
            }
        },
        "/tournaments/{tournamentID}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["tournaments"],
                "summary": "Get a tournament with players, rounds and matches",
                "parameters": [{"type": "integer", "in": "path", "name": "tournamentID", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}
            }
        },
        "/tournaments/players": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["players"],
                "summary": "Register a player",
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/addPlayerRequest"}}],
                "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request"}, "401": {"description": "Unauthorized"}, "404": {"description": "Not Found"}}
            },
            "delete": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["players"],
                "summary": "Remove a player before the tournament starts",
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/removePlayerRequest"}}],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}, "401": {"description": "Unauthorized"}, "404": {"description": "Not Found"}}
            }
        },
        "/tournaments/start": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["tournaments"],
                "summary": "Start a tournament and create round one",
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/tournamentAccessRequest"}}],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}, "401": {"description": "Unauthorized"}, "404": {"description": "Not Found"}}
            }
        },
        "/tournaments/next-round": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["tournaments"],
                "summary": "Submit the winners of the current round and advance",
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/nextRoundRequest"}}],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}, "401": {"description": "Unauthorized"}, "404": {"description": "Not Found"}, "409": {"description": "Conflict"}}
            }
        },
        "/tournaments/validate-password": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["tournaments"],
                "summary": "Check a tournament password",
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/tournamentAccessRequest"}}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}
            }
        }
    },
    "definitions": {
        "createTournamentRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "type": {"type": "integer", "enum": [1, 2]},
                "password": {"type": "string"}
            }
        },
        "updateTournamentRequest": {
            "type": "object",
            "properties": {
                "tournament_id": {"type": "integer"},
                "name": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "tournamentAccessRequest": {
            "type": "object",
            "properties": {
                "tournament_id": {"type": "integer"},
                "password": {"type": "string"}
            }
        },
        "addPlayerRequest": {
            "type": "object",
            "properties": {
                "tournament_id": {"type": "integer"},
                "name": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "removePlayerRequest": {
            "type": "object",
            "properties": {
                "tournament_id": {"type": "integer"},
                "player_id": {"type": "integer"},
                "password": {"type": "string"}
            }
        },
        "nextRoundRequest": {
            "type": "object",
            "properties": {
                "tournament_id": {"type": "integer"},
                "password": {"type": "string"},
                "match_results": {
                    "type": "array",
                    "items": {
                        "type": "object",
                        "properties": {
                            "match_id": {"type": "integer"},
                            "winner_id": {"type": "integer"}
                        }
                    }
                }
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api",
	Schemes:          []string{},
	Title:            "Tournament Engine API",
	Description:      "Swiss and Champions Meeting tournaments protected by an optional shared password.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
