package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Enrollment API",
        "description": "Student enrollment records with weighted final grades",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Enrollments", "description": "Enrollment lifecycle and grading"}
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
        "/api/v1/enrollments": {
            "get": {
                "tags": ["Enrollments"],
                "summary": "List enrollments",
                "security": [{"Bearer": []}],
                "parameters": [
                    {"name": "studentId", "in": "query", "type": "string"},
                    {"name": "courseId", "in": "query", "type": "string"},
                    {"name": "semester", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized"},
                    "403": {"description": "Forbidden"}
                }
            },
            "post": {
                "tags": ["Enrollments"],
                "summary": "Create enrollment",
                "security": [{"Bearer": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateEnrollmentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation or domain failure"},
                    "403": {"description": "Forbidden"}
                }
            }
        },
        "/api/v1/enrollments/{id}": {
            "get": {
                "tags": ["Enrollments"],
                "summary": "Get enrollment by id",
                "security": [{"Bearer": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Forbidden"},
                    "404": {"description": "Not found"}
                }
            },
            "put": {
                "tags": ["Enrollments"],
                "summary": "Update enrollment grades",
                "security": [{"Bearer": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateGradesRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation or domain failure"},
                    "403": {"description": "Forbidden"},
                    "404": {"description": "Not found"}
                }
            },
            "delete": {
                "tags": ["Enrollments"],
                "summary": "Deactivate enrollment",
                "security": [{"Bearer": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Forbidden"},
                    "404": {"description": "Not found"}
                }
            }
        }
    },
    "securityDefinitions": {
        "Bearer": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "definitions": {
        "CreateEnrollmentRequest": {
            "type": "object",
            "required": ["course_id", "semester"],
            "properties": {
                "student_id": {"type": "string"},
                "course_id": {"type": "string"},
                "semester": {"type": "string"},
                "grades": {"type": "array", "items": {"type": "number"}}
            }
        },
        "UpdateGradesRequest": {
            "type": "object",
            "required": ["grades"],
            "properties": {
                "grades": {"type": "array", "items": {"type": "number"}}
            }
        },
        "Enrollment": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "student_id": {"type": "string"},
                "course_id": {"type": "string"},
                "semester": {"type": "string"},
                "grades": {"type": "array", "items": {"type": "number"}},
                "final_grade": {"type": "number"},
                "active": {"type": "boolean"},
                "created_at": {"type": "string", "format": "date-time"},
                "updated_at": {"type": "string", "format": "date-time"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "data": {"type": "object"},
                "error": {"type": "string"}
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
