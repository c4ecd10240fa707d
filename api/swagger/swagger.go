package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Attendance Insights API",
        "description": "Attendance analytics, insights and exports for the university dashboard",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http",
        "https"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Dashboard", "description": "Aggregated attendance views"},
        {"name": "Filters", "description": "Distinct filter option values"},
        {"name": "Assistant", "description": "Streaming question answering"},
        {"name": "Exports", "description": "CSV and PDF exports"},
        {"name": "System", "description": "Health and metrics"}
    ],
    "paths": {
        "/dashboard/overview": {"get": {"tags": ["Dashboard"], "summary": "Full dashboard bundle", "security": [{"BearerAuth": []}], "parameters": [{"$ref": "#/parameters/school"}, {"$ref": "#/parameters/programmeName"}, {"$ref": "#/parameters/status"}, {"$ref": "#/parameters/dateFrom"}, {"$ref": "#/parameters/dateTo"}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}, "400": {"description": "Invalid filters"}, "502": {"description": "Data source failure"}}}},
        "/dashboard/kpis": {"get": {"tags": ["Dashboard"], "summary": "Headline attendance figures", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}}},
        "/dashboard/schools": {"get": {"tags": ["Dashboard"], "summary": "Attendance rate per school", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}}},
        "/dashboard/programmes": {"get": {"tags": ["Dashboard"], "summary": "Attendance rate per programme", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}}},
        "/dashboard/weekly": {"get": {"tags": ["Dashboard"], "summary": "Weekly attendance trend", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}}},
        "/dashboard/yearly": {"get": {"tags": ["Dashboard"], "summary": "Attendance per year of study", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}}},
        "/dashboard/delivery-modes": {"get": {"tags": ["Dashboard"], "summary": "Attendance per delivery mode", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}}},
        "/dashboard/hotspots": {"get": {"tags": ["Dashboard"], "summary": "Module and weekday absence hotspots", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}}},
        "/dashboard/at-risk": {"get": {"tags": ["Dashboard"], "summary": "Students at risk of disengagement", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}}},
        "/dashboard/insights": {"get": {"tags": ["Dashboard"], "summary": "Heuristic insight cards", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}}},
        "/dashboard/count": {"get": {"tags": ["Dashboard"], "summary": "Number of matching attendance rows", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}}},
        "/dashboard/cache": {"delete": {"tags": ["Dashboard"], "summary": "Drop every cached dashboard dataset (admin role)", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}, "403": {"description": "Forbidden"}}}},
        "/filters/{dimension}": {"get": {"tags": ["Filters"], "summary": "Distinct values for a filter dimension", "security": [{"BearerAuth": []}], "parameters": [{"name": "dimension", "in": "path", "required": true, "type": "string", "enum": ["school", "programme", "module", "status"]}, {"$ref": "#/parameters/school"}, {"$ref": "#/parameters/programmeName"}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}, "400": {"description": "Unknown dimension"}}}},
        "/ai/ask": {"post": {"tags": ["Assistant"], "summary": "Ask a question about the filtered attendance data", "security": [{"BearerAuth": []}], "consumes": ["application/json"], "produces": ["text/event-stream"], "parameters": [{"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AskRequest"}}], "responses": {"200": {"description": "Stream of delta events followed by a done event"}, "400": {"description": "Invalid payload"}}}},
        "/exports/{dataset}": {"get": {"tags": ["Exports"], "summary": "Download a dataset export", "security": [{"BearerAuth": []}], "parameters": [{"name": "dataset", "in": "path", "required": true, "type": "string", "enum": ["records", "summary", "at-risk"]}, {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}], "responses": {"200": {"description": "File attachment"}, "404": {"description": "No data to export"}, "413": {"description": "Too many rows"}}}},
        "/exports": {"post": {"tags": ["Exports"], "summary": "Queue a background export", "security": [{"BearerAuth": []}], "parameters": [{"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ExportJobRequest"}}], "responses": {"202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}}},
        "/exports/jobs/{id}": {"get": {"tags": ["Exports"], "summary": "Export job status", "security": [{"BearerAuth": []}], "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}, "404": {"description": "Unknown job"}}}},
        "/exports/download/{token}": {"get": {"tags": ["Exports"], "summary": "Download a finished export with a signed token", "parameters": [{"name": "token", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "File attachment"}, "403": {"description": "Invalid or expired token"}}}},
        "/system/metrics": {"get": {"tags": ["System"], "summary": "Runtime metrics snapshot", "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}}}
    },
    "parameters": {
        "school": {"name": "school", "in": "query", "type": "string"},
        "programmeName": {"name": "programmeName", "in": "query", "type": "string"},
        "status": {"name": "status", "in": "query", "type": "string"},
        "dateFrom": {"name": "dateFrom", "in": "query", "type": "string", "format": "date"},
        "dateTo": {"name": "dateTo", "in": "query", "type": "string", "format": "date"}
    },
    "definitions": {
        "AskRequest": {
            "type": "object",
            "required": ["question"],
            "properties": {
                "question": {"type": "string"},
                "filters": {"type": "object"}
            }
        },
        "ExportJobRequest": {
            "type": "object",
            "required": ["dataset", "format"],
            "properties": {
                "dataset": {"type": "string"},
                "format": {"type": "string"},
                "filters": {"type": "object"}
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
