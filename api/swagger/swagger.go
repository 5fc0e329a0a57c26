package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SMA ADP Timetable Console",
        "description": "Console gateway driving timetable construction against the school backend",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "tags": [
        {"name": "Timetable", "description": "Timetable construction workflow"},
        {"name": "Reference", "description": "Class, section, teacher and subject lists"},
        {"name": "Observability", "description": "Gateway health and metrics"}
    ],
    "paths": {
        "/timetable/workflows": {
            "post": {
                "tags": ["Timetable"],
                "summary": "Start a timetable workflow",
                "parameters": [
                    {"name": "payload", "in": "body", "required": false, "schema": {"$ref": "#/definitions/StartWorkflowRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetable/workflows/{id}": {
            "get": {
                "tags": ["Timetable"],
                "summary": "Get workflow state",
                "parameters": [{"$ref": "#/parameters/WorkflowID"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Owned by another user", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown or expired", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Timetable"],
                "summary": "Close a workflow",
                "parameters": [{"$ref": "#/parameters/WorkflowID"}],
                "responses": {"204": {"description": "Closed"}}
            }
        },
        "/timetable/workflows/{id}/configuration": {
            "patch": {
                "tags": ["Timetable"],
                "summary": "Update workflow configuration",
                "description": "Changing any value after slots were generated resets the grid.",
                "parameters": [
                    {"$ref": "#/parameters/WorkflowID"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ConfigurationPatch"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/timetable/workflows/{id}/existing": {
            "post": {
                "tags": ["Timetable"],
                "summary": "Load the existing timetable for the configured class",
                "parameters": [{"$ref": "#/parameters/WorkflowID"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/timetable/workflows/{id}/time-slots": {
            "post": {
                "tags": ["Timetable"],
                "summary": "Generate time slots",
                "parameters": [{"$ref": "#/parameters/WorkflowID"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Incomplete configuration", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already generating", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetable/workflows/{id}/entries/{day}/{slot}": {
            "get": {
                "tags": ["Timetable"],
                "summary": "Open the entry editor for a cell",
                "parameters": [{"$ref": "#/parameters/WorkflowID"}, {"$ref": "#/parameters/Day"}, {"$ref": "#/parameters/Slot"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "put": {
                "tags": ["Timetable"],
                "summary": "Commit an entry to a cell",
                "description": "Runs the teacher conflict check first. A conflict answers 409 with the report in data.",
                "parameters": [
                    {"$ref": "#/parameters/WorkflowID"}, {"$ref": "#/parameters/Day"}, {"$ref": "#/parameters/Slot"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/EntryForm"}}
                ],
                "responses": {
                    "200": {"description": "Committed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Teacher conflict", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Conflict check unavailable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Timetable"],
                "summary": "Clear a cell",
                "parameters": [{"$ref": "#/parameters/WorkflowID"}, {"$ref": "#/parameters/Day"}, {"$ref": "#/parameters/Slot"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/timetable/workflows/{id}/validation": {
            "post": {
                "tags": ["Timetable"],
                "summary": "Validate the whole timetable",
                "parameters": [{"$ref": "#/parameters/WorkflowID"}],
                "responses": {"200": {"description": "OK; inspect result.isValid", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/timetable/workflows/{id}/draft": {
            "post": {
                "tags": ["Timetable"],
                "summary": "Save the timetable as a draft",
                "parameters": [{"$ref": "#/parameters/WorkflowID"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/timetable/workflows/{id}/final": {
            "post": {
                "tags": ["Timetable"],
                "summary": "Save the timetable as final",
                "parameters": [{"$ref": "#/parameters/WorkflowID"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "412": {"description": "No valid validation for the current grid", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetable/workflows/{id}/reset": {
            "post": {
                "tags": ["Timetable"],
                "summary": "Create a new timetable",
                "parameters": [{"$ref": "#/parameters/WorkflowID"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/timetable/workflows/{id}/export": {
            "get": {
                "tags": ["Timetable"],
                "summary": "Export the current grid",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"$ref": "#/parameters/WorkflowID"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"], "default": "pdf"}
                ],
                "responses": {"200": {"description": "File", "schema": {"type": "file"}}}
            }
        },
        "/timetable/history": {
            "get": {
                "tags": ["Timetable"],
                "summary": "List recent timetable workflow events",
                "parameters": [
                    {"name": "classId", "in": "query", "type": "string"},
                    {"name": "sectionId", "in": "query", "type": "string"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/reference/classes": {
            "get": {
                "tags": ["Reference"],
                "summary": "List classes",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/reference/classes/{classId}/sections": {
            "get": {
                "tags": ["Reference"],
                "summary": "List sections of a class",
                "parameters": [{"$ref": "#/parameters/ClassID"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/reference/classes/{classId}/subjects": {
            "get": {
                "tags": ["Reference"],
                "summary": "List subjects of a class",
                "parameters": [{"$ref": "#/parameters/ClassID"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/reference/teachers": {
            "get": {
                "tags": ["Reference"],
                "summary": "List teachers",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/reference/cache": {
            "delete": {
                "tags": ["Reference"],
                "summary": "Drop cached reference lists",
                "responses": {"204": {"description": "No Content"}}
            }
        },
        "/metrics/summary": {
            "get": {
                "tags": ["Observability"],
                "summary": "Gateway metrics summary",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        }
    },
    "parameters": {
        "WorkflowID": {"name": "id", "in": "path", "required": true, "type": "string"},
        "ClassID": {"name": "classId", "in": "path", "required": true, "type": "string"},
        "Day": {"name": "day", "in": "path", "required": true, "type": "string", "description": "Day name or 1-based number"},
        "Slot": {"name": "slot", "in": "path", "required": true, "type": "integer", "description": "Time slot row index"}
    },
    "definitions": {
        "ConfigurationPatch": {
            "type": "object",
            "properties": {
                "classId": {"type": "string"},
                "sectionId": {"type": "string"},
                "semester": {"type": "string"},
                "periodDuration": {"type": "integer"},
                "schoolStartTime": {"type": "string", "example": "07:00"},
                "lunchStartTime": {"type": "string", "example": "10:00"},
                "lunchDuration": {"type": "integer"},
                "totalPeriods": {"type": "integer"}
            }
        },
        "StartWorkflowRequest": {
            "type": "object",
            "properties": {
                "configuration": {"$ref": "#/definitions/ConfigurationPatch"}
            }
        },
        "EntryForm": {
            "type": "object",
            "required": ["subjectId", "teacherId"],
            "properties": {
                "subjectId": {"type": "string"},
                "subjectName": {"type": "string"},
                "subjectCode": {"type": "string"},
                "teacherId": {"type": "string"},
                "teacherName": {"type": "string"},
                "room": {"type": "string"},
                "type": {"type": "string", "enum": ["Regular", "Lab", "Tutorial"]}
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
