// Package docs holds the Swagger document served at /api/swagger.
// Regenerate with: swag init -g cmd/server/main.go -o docs
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "API Support"
        },
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/feature-flags": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["flags"],
                "summary": "Feature flags for the caller",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}}
                }
            }
        },
        "/posts": {
            "get": {
                "produces": ["application/json"],
                "tags": ["posts"],
                "summary": "List posts, newest first",
                "parameters": [
                    {"type": "integer", "description": "Page size (1-100)", "name": "take", "in": "query"},
                    {"type": "integer", "description": "Return posts older than this id", "name": "cursor", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/service.PostPage"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["posts"],
                "summary": "Create a post",
                "parameters": [
                    {"description": "Post content", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/server.createPostRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/models.PostWithStats"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/posts/from-user/{userId}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["posts"],
                "summary": "List one author's posts, newest first",
                "parameters": [
                    {"type": "integer", "description": "Author ID", "name": "userId", "in": "path", "required": true},
                    {"type": "integer", "description": "Page size (1-100)", "name": "take", "in": "query"},
                    {"type": "integer", "description": "Return posts older than this id", "name": "cursor", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/service.PostPage"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/posts/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["posts"],
                "summary": "Get a post with its likes, dislikes and views",
                "parameters": [
                    {"type": "integer", "description": "Post ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.PostWithStats"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "tags": ["posts"],
                "summary": "Delete a post you authored",
                "parameters": [
                    {"type": "integer", "description": "Post ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            },
            "patch": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "tags": ["posts"],
                "summary": "Edit a post you authored",
                "parameters": [
                    {"type": "integer", "description": "Post ID", "name": "id", "in": "path", "required": true},
                    {"description": "New content", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/server.updatePostRequest"}}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/posts/{id}/rating": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Omitting state clears the rating. Asking for the current state again is rejected.",
                "produces": ["application/json"],
                "tags": ["ratings"],
                "summary": "Like, dislike or clear your rating of a post",
                "parameters": [
                    {"type": "integer", "description": "Post ID", "name": "id", "in": "path", "required": true},
                    {"type": "string", "description": "Like or Dislike; empty clears", "name": "state", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.PostStats"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "models.ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "details": {"type": "string"},
                "error": {"type": "string"}
            }
        },
        "models.PostStats": {
            "type": "object",
            "properties": {
                "dislikes": {"type": "integer"},
                "likes": {"type": "integer"},
                "views": {"type": "integer"}
            }
        },
        "models.PostWithStats": {
            "type": "object",
            "properties": {
                "author_id": {"type": "integer"},
                "content": {"type": "string"},
                "created_at": {"type": "string"},
                "dislikes": {"type": "integer"},
                "edited_at": {"type": "string"},
                "id": {"type": "integer"},
                "likes": {"type": "integer"},
                "views": {"type": "integer"}
            }
        },
        "server.createPostRequest": {
            "type": "object",
            "required": ["content"],
            "properties": {
                "content": {"type": "string", "maxLength": 5000}
            }
        },
        "server.updatePostRequest": {
            "type": "object",
            "required": ["content"],
            "properties": {
                "content": {"type": "string", "maxLength": 5000}
            }
        },
        "service.PostPage": {
            "type": "object",
            "properties": {
                "next_cursor": {"type": "integer"},
                "results": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/models.PostWithStats"}
                }
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "Type \"Bearer\" followed by a space and JWT token.",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8375",
	BasePath:         "/api",
	Schemes:          []string{"http", "https"},
	Title:            "Feedpulse API",
	Description:      "Feed posts with live like, dislike and approximate view counts",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
