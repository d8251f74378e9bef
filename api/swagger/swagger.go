package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "LMS Teams API",
        "description": "Team membership import and lookup service",
        "version": "0.1.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Teams", "description": "Team membership import, lookup and rosters"}
    ],
    "paths": {
        "/courses/{courseId}/teams/memberships/import": {
            "post": {
                "tags": ["Teams"],
                "summary": "Import team memberships from CSV",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "courseId", "in": "path", "required": true, "type": "string"},
                    {"name": "file", "in": "formData", "required": true, "type": "file", "description": "CSV with header user_identifier, enrollment_mode, <teamset ids>"}
                ],
                "responses": {
                    "200": {"description": "Batch imported", "schema": {"$ref": "#/definitions/ImportReport"}},
                    "422": {"description": "Batch rejected", "schema": {"$ref": "#/definitions/ImportReport"}},
                    "404": {"description": "Course not found"}
                }
            }
        },
        "/courses/{courseId}/teams": {
            "get": {
                "tags": ["Teams"],
                "summary": "List teams of a course",
                "parameters": [
                    {"name": "courseId", "in": "path", "required": true, "type": "string"},
                    {"name": "teamsetId", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "sort", "in": "query", "type": "string"},
                    {"name": "order", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Teams", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Teams"],
                "summary": "Create a team in a teamset",
                "consumes": ["application/json"],
                "parameters": [
                    {"name": "courseId", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateTeamRequest"}}
                ],
                "responses": {
                    "201": {"description": "Team created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid payload"},
                    "409": {"description": "Team name already taken in teamset"}
                }
            }
        },
        "/courses/{courseId}/teamsets/{teamsetId}/team": {
            "get": {
                "tags": ["Teams"],
                "summary": "Resolve the team a user belongs to within a teamset",
                "parameters": [
                    {"name": "courseId", "in": "path", "required": true, "type": "string"},
                    {"name": "teamsetId", "in": "path", "required": true, "type": "string"},
                    {"name": "user", "in": "query", "required": true, "type": "string", "description": "Username or email"}
                ],
                "responses": {
                    "200": {"description": "Team with detail URL", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "User or membership not found"}
                }
            }
        },
        "/teams/{id}": {
            "get": {
                "tags": ["Teams"],
                "summary": "Get one team with its member count",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Team detail", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Team not found"}
                }
            }
        },
        "/teams/{id}/anonymous-member-ids": {
            "get": {
                "tags": ["Teams"],
                "summary": "List anonymized member IDs of a team",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Anonymous member IDs", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/teams/{id}/roster.pdf": {
            "get": {
                "tags": ["Teams"],
                "summary": "Download the team roster as PDF",
                "produces": ["application/pdf"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "PDF roster"},
                    "404": {"description": "Team not found"}
                }
            }
        }
    },
    "definitions": {
        "CreateTeamRequest": {
            "type": "object",
            "required": ["teamset_id", "name"],
            "properties": {
                "teamset_id": {"type": "string"},
                "name": {"type": "string"},
                "description": {"type": "string"}
            }
        },
        "ImportReport": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "errors": {"type": "array", "items": {"type": "string"}},
                "records_added": {"type": "integer"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
