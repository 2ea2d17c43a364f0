package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "GradeFlow API",
        "description": "Grade migration administration: raw score import, late policy scoring, gradebook publication",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Authentication", "description": "Token issuance"},
        {"name": "Tasks", "description": "Background task polling"},
        {"name": "Migrations", "description": "Grading cycle workflow"},
        {"name": "Imports", "description": "Raw score CSV ingestion"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"}
                }
            }
        },
        "/api/v1/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/tasks": {
            "get": {
                "tags": ["Tasks"],
                "summary": "List the requesting user's background tasks",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/tasks/{id}": {
            "get": {
                "tags": ["Tasks"],
                "summary": "Get one background task",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/courses/{courseId}/migrations": {
            "get": {
                "tags": ["Migrations"],
                "summary": "List grading cycles for a course",
                "parameters": [
                    {"name": "courseId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Migrations"],
                "summary": "Create a grading cycle",
                "parameters": [
                    {"name": "courseId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/migrations/{masterId}": {
            "get": {
                "tags": ["Migrations"],
                "summary": "Get one grading cycle",
                "parameters": [
                    {"name": "masterId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Migrations"],
                "summary": "Delete a grading cycle before loading",
                "parameters": [
                    {"name": "masterId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Deleted"},
                    "400": {"description": "Illegal state", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/migrations/{masterId}/migrations": {
            "post": {
                "tags": ["Migrations"],
                "summary": "Attach an assignment to a grading cycle",
                "parameters": [
                    {"name": "masterId", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AddMigrationRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/migrations/{masterId}/migrations/{migrationId}/policy": {
            "put": {
                "tags": ["Migrations"],
                "summary": "Set the late policy for a migration",
                "parameters": [
                    {"name": "masterId", "in": "path", "required": true, "type": "string"},
                    {"name": "migrationId", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SetPolicyRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/migrations/{masterId}/migrations/{migrationId}/scores/{source}": {
            "post": {
                "tags": ["Imports"],
                "summary": "Import raw scores from a vendor CSV",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "masterId", "in": "path", "required": true, "type": "string"},
                    {"name": "migrationId", "in": "path", "required": true, "type": "string"},
                    {"name": "source", "in": "path", "required": true, "type": "string", "enum": ["gradescope", "prairielearn"]},
                    {"name": "file", "in": "formData", "required": true, "type": "file"}
                ],
                "responses": {
                    "200": {"description": "Imported", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already imported", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/migrations/{masterId}/load/validate": {
            "post": {
                "tags": ["Migrations"],
                "summary": "Validate raw score loading (CREATED to LOADED)",
                "parameters": [
                    {"name": "masterId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Raw scores missing", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/migrations/{masterId}/start": {
            "post": {
                "tags": ["Migrations"],
                "summary": "Start score processing (LOADED to STARTED)",
                "parameters": [
                    {"name": "masterId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "202": {"description": "Tasks spawned", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Illegal state", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/migrations/{masterId}/review": {
            "get": {
                "tags": ["Migrations"],
                "summary": "Get migrations to review (STARTED to AWAITING_REVIEW)",
                "parameters": [
                    {"name": "masterId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/migrations/{masterId}/migrations/{migrationId}/review": {
            "put": {
                "tags": ["Migrations"],
                "summary": "Override a student's score",
                "parameters": [
                    {"name": "masterId", "in": "path", "required": true, "type": "string"},
                    {"name": "migrationId", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ScoreChangeRequest"}}
                ],
                "responses": {
                    "201": {"description": "Revision appended", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/migrations/{masterId}/review/finalize": {
            "post": {
                "tags": ["Migrations"],
                "summary": "Finalize review (AWAITING_REVIEW to READY_TO_POST)",
                "parameters": [
                    {"name": "masterId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/migrations/{masterId}/post": {
            "post": {
                "tags": ["Migrations"],
                "summary": "Post scores to the gradebook (READY_TO_POST to POSTING)",
                "parameters": [
                    {"name": "masterId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "202": {"description": "Tasks spawned", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/migrations/{masterId}/post/finalize": {
            "post": {
                "tags": ["Migrations"],
                "summary": "Finalize posting (POSTING to COMPLETED)",
                "parameters": [
                    {"name": "masterId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["email", "password"]
        },
        "AddMigrationRequest": {
            "type": "object",
            "properties": {
                "assignment_id": {"type": "string"}
            },
            "required": ["assignment_id"]
        },
        "SetPolicyRequest": {
            "type": "object",
            "properties": {
                "policy_id": {"type": "string"}
            },
            "required": ["policy_id"]
        },
        "ScoreChangeRequest": {
            "type": "object",
            "properties": {
                "cwid": {"type": "string"},
                "new_score": {"type": "number"},
                "submission_status": {"type": "string"},
                "adjusted_submission_date": {"type": "string", "format": "date-time"},
                "justification": {"type": "string"}
            },
            "required": ["cwid", "submission_status", "justification"]
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
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
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
