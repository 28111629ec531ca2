package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Einstein Academic Concierge API",
        "description": "Course auto-registration, waitlisting and batch allocation engine",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Students", "description": "Student registry and preferences"},
        {"name": "Courses", "description": "Course registry, lifecycle and exports"},
        {"name": "Registrations", "description": "Applications, manual registration and dropouts"},
        {"name": "Allocations", "description": "Batch allocation and rescoring"},
        {"name": "Metrics", "description": "Observability"}
    ],
    "paths": {
        "/students": {
            "post": {
                "tags": ["Students"],
                "summary": "Register or update a student",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AddStudentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/{studentId}": {
            "get": {
                "tags": ["Students"],
                "summary": "Fetch a student profile",
                "parameters": [
                    {"name": "studentId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/{studentId}/status": {
            "get": {
                "tags": ["Students"],
                "summary": "Enrollment and waitlist status for a student",
                "parameters": [
                    {"name": "studentId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/{studentId}/preferences": {
            "put": {
                "tags": ["Students"],
                "summary": "Replace a student's ordered course preferences",
                "parameters": [
                    {"name": "studentId", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SetPreferencesRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses": {
            "post": {
                "tags": ["Courses"],
                "summary": "Register or update a course",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AddCourseRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses/{courseId}": {
            "get": {
                "tags": ["Courses"],
                "summary": "Fetch a course definition",
                "parameters": [
                    {"name": "courseId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses/{courseId}/status": {
            "get": {
                "tags": ["Courses"],
                "summary": "Enrollment and waitlist status for a course",
                "parameters": [
                    {"name": "courseId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses/{courseId}/open": {
            "post": {
                "tags": ["Courses"],
                "summary": "Open booking for a course",
                "parameters": [
                    {"name": "courseId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses/{courseId}/close": {
            "post": {
                "tags": ["Courses"],
                "summary": "Close booking for a course",
                "parameters": [
                    {"name": "courseId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses/{courseId}/complete": {
            "post": {
                "tags": ["Courses"],
                "summary": "Mark a course as completed",
                "parameters": [
                    {"name": "courseId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses/{courseId}/roster/export": {
            "get": {
                "tags": ["Courses"],
                "summary": "Download the enrolled roster as CSV or PDF",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "courseId", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "File attachment"}
                }
            }
        },
        "/courses/{courseId}/waitlist/export": {
            "get": {
                "tags": ["Courses"],
                "summary": "Download the ranked waitlist as CSV or PDF",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "courseId", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "File attachment"}
                }
            }
        },
        "/courses/{courseId}/waitlist/{studentId}": {
            "get": {
                "tags": ["Registrations"],
                "summary": "Waitlist standing for one student on one course",
                "parameters": [
                    {"name": "courseId", "in": "path", "required": true, "type": "string"},
                    {"name": "studentId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/registrations/apply": {
            "post": {
                "tags": ["Registrations"],
                "summary": "Submit a course application",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ApplyRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/registrations/apply-all": {
            "post": {
                "tags": ["Registrations"],
                "summary": "Apply to every course in the student's preference list",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ApplyAllRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/registrations/manual": {
            "post": {
                "tags": ["Registrations"],
                "summary": "Attempt immediate enrollment into an open course",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ManualRegisterRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/registrations/dropout": {
            "post": {
                "tags": ["Registrations"],
                "summary": "Drop an enrolled student and backfill the seat",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/DropoutRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/allocations/run": {
            "post": {
                "tags": ["Allocations"],
                "summary": "Run one batch allocation",
                "parameters": [
                    {"name": "payload", "in": "body", "required": false, "schema": {"$ref": "#/definitions/RunAllocationRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/allocations/recompute": {
            "post": {
                "tags": ["Allocations"],
                "summary": "Rescore all pending applications and re-rank waitlists",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/allocations/auto-batch/start": {
            "post": {
                "tags": ["Allocations"],
                "summary": "Start the periodic batch allocation worker",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/allocations/auto-batch/stop": {
            "post": {
                "tags": ["Allocations"],
                "summary": "Stop the periodic batch allocation worker",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/metrics/summary": {
            "get": {
                "tags": ["Metrics"],
                "summary": "Aggregated registration metrics",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "AddStudentRequest": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "name": {"type": "string"},
                "email": {"type": "string"},
                "gpa": {"type": "number"},
                "year": {"type": "integer"},
                "interests": {"type": "array", "items": {"type": "string"}},
                "completedCourses": {"type": "array", "items": {"type": "string"}}
            },
            "required": ["id", "name"]
        },
        "AddCourseRequest": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "name": {"type": "string"},
                "capacity": {"type": "integer"},
                "minGpa": {"type": "number"},
                "tags": {"type": "array", "items": {"type": "string"}},
                "preferredYears": {"type": "array", "items": {"type": "integer"}},
                "prerequisites": {"type": "array", "items": {"type": "string"}}
            },
            "required": ["id", "name", "capacity"]
        },
        "SetPreferencesRequest": {
            "type": "object",
            "properties": {
                "courseIds": {"type": "array", "items": {"type": "string"}}
            },
            "required": ["courseIds"]
        },
        "ApplyRequest": {
            "type": "object",
            "properties": {
                "studentId": {"type": "string"},
                "courseId": {"type": "string"},
                "appliedAt": {"type": "string", "format": "date-time"}
            },
            "required": ["studentId", "courseId"]
        },
        "ApplyAllRequest": {
            "type": "object",
            "properties": {
                "studentId": {"type": "string"},
                "appliedAt": {"type": "string", "format": "date-time"}
            },
            "required": ["studentId"]
        },
        "ManualRegisterRequest": {
            "type": "object",
            "properties": {
                "studentId": {"type": "string"},
                "courseId": {"type": "string"}
            },
            "required": ["studentId", "courseId"]
        },
        "DropoutRequest": {
            "type": "object",
            "properties": {
                "studentId": {"type": "string"},
                "courseId": {"type": "string"}
            },
            "required": ["studentId", "courseId"]
        },
        "RunAllocationRequest": {
            "type": "object",
            "properties": {
                "courseIds": {"type": "array", "items": {"type": "string"}}
            }
        },
        "AllocationResult": {
            "type": "object",
            "properties": {
                "studentId": {"type": "string"},
                "courseId": {"type": "string"},
                "status": {"type": "string", "enum": ["REGISTERED", "WAITLISTED", "REJECTED", "DROPPED"]},
                "message": {"type": "string"},
                "waitlistPosition": {"type": "integer"},
                "score": {"type": "number"}
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
                "pagination": {"type": "object"},
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
