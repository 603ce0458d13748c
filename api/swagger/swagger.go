package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Flexitaim API",
        "description": "Scheduling API for resources, weekly availability windows and bookings",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": ["http", "https"],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "in": "header", "name": "Authorization"}
    },
    "security": [{"BearerAuth": []}],
    "tags": [
        {"name": "Availability", "description": "Weekly availability windows"},
        {"name": "Bookings", "description": "Appointments on a resource"},
        {"name": "Tickets", "description": "QR check-in tickets"},
        {"name": "Resources", "description": "Bookable resources"}
    ],
    "paths": {
        "/availabilities": {
            "get": {"tags": ["Availability"], "summary": "List availability windows", "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}},
            "post": {
                "tags": ["Availability"],
                "summary": "Create availability window",
                "parameters": [{"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/CreateAvailabilityRequest"}}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Overlaps an active window", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/availabilities/bulk": {
            "post": {
                "tags": ["Availability"],
                "summary": "Create availability windows in bulk",
                "parameters": [
                    {"in": "query", "name": "mode", "type": "string", "enum": ["strict", "lenient"]},
                    {"in": "body", "name": "payload", "required": true, "schema": {"type": "object", "properties": {"items": {"type": "array", "items": {"$ref": "#/definitions/CreateAvailabilityRequest"}}}}}
                ],
                "responses": {
                    "201": {"description": "COMMITTED", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "207": {"description": "PARTIAL", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "ROLLED_BACK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Availability"],
                "summary": "Update availability windows in bulk",
                "parameters": [{"in": "query", "name": "mode", "type": "string", "enum": ["strict", "lenient"]}],
                "responses": {
                    "201": {"description": "COMMITTED"},
                    "207": {"description": "PARTIAL"},
                    "409": {"description": "ROLLED_BACK"}
                }
            }
        },
        "/availabilities/{id}": {
            "get": {"tags": ["Availability"], "summary": "Get availability window", "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}},
            "put": {"tags": ["Availability"], "summary": "Update availability window", "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}, "409": {"description": "Conflict"}}},
            "delete": {"tags": ["Availability"], "summary": "Delete availability window", "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}], "responses": {"204": {"description": "Deleted"}, "404": {"description": "Not found"}}}
        },
        "/bookings": {
            "get": {"tags": ["Bookings"], "summary": "List bookings", "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["Bookings"], "summary": "Book a resource slot", "parameters": [{"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/CreateBookingRequest"}}], "responses": {"201": {"description": "Created"}, "409": {"description": "Slot already booked"}}}
        },
        "/bookings/{id}": {
            "get": {"tags": ["Bookings"], "summary": "Get booking", "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}}},
            "put": {"tags": ["Bookings"], "summary": "Update booking", "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}, "409": {"description": "Invalid transition or overlap"}}},
            "delete": {"tags": ["Bookings"], "summary": "Delete booking", "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}], "responses": {"204": {"description": "Deleted"}}}
        },
        "/bookings/{id}/ticket": {
            "post": {"tags": ["Tickets"], "summary": "Issue a QR check-in ticket", "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}], "responses": {"201": {"description": "Created"}}}
        },
        "/tickets/{token}": {
            "get": {"tags": ["Tickets"], "summary": "Verify a scanned ticket", "security": [], "parameters": [{"in": "path", "name": "token", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}, "401": {"description": "Invalid or expired"}}}
        },
        "/bookings/{id}/cancellations": {
            "get": {"tags": ["Bookings"], "summary": "List the cancellation log of a booking", "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}, "404": {"description": "Booking not found"}}}
        },
        "/users/{id}/bookings": {
            "get": {"tags": ["Bookings"], "summary": "List bookings of a client", "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}}}
        },
        "/users/{id}/favorites": {
            "get": {"tags": ["Favorites"], "summary": "List favorite resources of a user", "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}, "404": {"description": "User unknown or no favorites"}}}
        },
        "/users/{id}/favorites/{resource_id}": {
            "delete": {"tags": ["Favorites"], "summary": "Remove a favorite", "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}, {"in": "path", "name": "resource_id", "required": true, "type": "string"}], "responses": {"204": {"description": "Removed"}, "404": {"description": "No active favorite"}}}
        },
        "/favorites": {
            "post": {"tags": ["Favorites"], "summary": "Favorite a resource", "parameters": [{"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/FavoriteRequest"}}], "responses": {"200": {"description": "Reactivated or already active"}, "201": {"description": "Created"}}}
        },
        "/resources": {
            "get": {"tags": ["Resources"], "summary": "List resources", "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["Resources"], "summary": "Create resource", "parameters": [{"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/CreateResourceRequest"}}], "responses": {"201": {"description": "Created"}}}
        },
        "/resources/link/{link}": {
            "get": {"tags": ["Resources"], "summary": "Resolve a public booking link", "security": [], "parameters": [{"in": "path", "name": "link", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}}}
        },
        "/resources/{id}": {
            "get": {"tags": ["Resources"], "summary": "Get resource", "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}}},
            "delete": {"tags": ["Resources"], "summary": "Deactivate resource with its bookings and windows", "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}], "responses": {"200": {"description": "Cascade summary"}}}
        },
        "/resources/{id}/availabilities": {
            "get": {"tags": ["Availability"], "summary": "List active windows of a resource", "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}], "responses": {"200": {"description": "OK, meta.cache_hit reports cache use"}}}
        },
        "/resources/{id}/bookings": {
            "get": {"tags": ["Bookings"], "summary": "List active bookings of a resource", "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}}}
        },
        "/resources/{id}/bookings/export": {
            "get": {
                "tags": ["Resources"],
                "summary": "Export the booking roster",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"in": "path", "name": "id", "required": true, "type": "string"},
                    {"in": "query", "name": "format", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {"200": {"description": "File"}}
            }
        }
    },
    "definitions": {
        "CreateAvailabilityRequest": {
            "type": "object",
            "required": ["resource_id", "day_of_week", "start_time", "end_time", "start_date", "end_date"],
            "properties": {
                "resource_id": {"type": "string"},
                "day_of_week": {"type": "integer", "minimum": 0, "maximum": 6},
                "start_time": {"type": "string", "example": "09:00:00"},
                "end_time": {"type": "string", "example": "10:00:00"},
                "start_date": {"type": "string", "example": "2025-03-03"},
                "end_date": {"type": "string", "example": "2025-03-31"}
            }
        },
        "CreateBookingRequest": {
            "type": "object",
            "required": ["resource_id", "date", "start_time", "end_time"],
            "properties": {
                "resource_id": {"type": "string"},
                "subject_id": {"type": "string"},
                "date": {"type": "string", "example": "2025-03-03"},
                "start_time": {"type": "string"},
                "end_time": {"type": "string"},
                "status": {"type": "string", "enum": ["Available", "Confirmed", "Cancelled", "Completed"]},
                "notes": {"type": "string"}
            }
        },
        "CreateResourceRequest": {
            "type": "object",
            "required": ["name", "duration_minutes"],
            "properties": {
                "owner_id": {"type": "string"},
                "name": {"type": "string"},
                "description": {"type": "string"},
                "duration_minutes": {"type": "integer"},
                "price": {"type": "number"}
            }
        },
        "FavoriteRequest": {
            "type": "object",
            "required": ["resource_id"],
            "properties": {
                "user_id": {"type": "string"},
                "resource_id": {"type": "string"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"},
                "details": {"type": "object"}
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
