package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "LexCase Identity API",
        "description": "Identity, session and permission service for the LexCase practice suite",
        "version": "0.1.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Authentication", "description": "Login lifecycle and session management"},
        {"name": "Recovery", "description": "Password reset and secret-phrase recovery"},
        {"name": "Identities", "description": "Identity profiles"},
        {"name": "Permissions", "description": "Module and action permissions"},
        {"name": "Approvals", "description": "Administrator review queues"}
    ],
    "paths": {
        "/auth/classify": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Classify an identifier before login",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ClassifyRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate and issue a session",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Awaiting validation", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/verify": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Verify a persisted session token",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/VerifySessionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unknown, expired or revoked session", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/logout": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Revoke a session token",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LogoutRequest"}}
                ],
                "responses": {
                    "204": {"description": "Logged out"}
                }
            }
        },
        "/auth/register": {
            "post": {
                "tags": ["Identities"],
                "summary": "Self-register an account awaiting approval",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RegisterRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Email already registered", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/credentials": {
            "post": {
                "tags": ["Authentication"],
                "summary": "First-login password and secret phrase setup",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SetCredentialsRequest"}}
                ],
                "responses": {
                    "200": {"description": "Credentials stored, logged in", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Weak password", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Password reused", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/reset/complete": {
            "post": {
                "tags": ["Recovery"],
                "summary": "Complete an approved password reset",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SetPasswordRequest"}}
                ],
                "responses": {
                    "200": {"description": "Password set, logged in", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/forgot-password": {
            "post": {
                "tags": ["Recovery"],
                "summary": "File a password-reset request for review",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ForgotPasswordRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted"}
                }
            }
        },
        "/auth/recover/question": {
            "get": {
                "tags": ["Recovery"],
                "summary": "Fetch the stored secret question",
                "parameters": [
                    {"name": "identifier", "in": "query", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "412": {"description": "No secret phrase configured", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/recover": {
            "post": {
                "tags": ["Recovery"],
                "summary": "Reset the password through the secret answer",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RecoverRequest"}}
                ],
                "responses": {
                    "200": {"description": "Password set, logged in", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Wrong secret answer", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/identities": {
            "get": {
                "tags": ["Identities"],
                "summary": "List identities",
                "parameters": [
                    {"name": "role", "in": "query", "type": "string"},
                    {"name": "approved", "in": "query", "type": "boolean"},
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Identities"],
                "summary": "Create an identity (administrator)",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateIdentityRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/identities/{id}": {
            "get": {
                "tags": ["Identities"],
                "summary": "Get one identity",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "patch": {
                "tags": ["Identities"],
                "summary": "Update an identity",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateIdentityRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Identities"],
                "summary": "Delete an identity, reassigning its work items",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "replacement_id", "in": "query", "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Deleted"},
                    "409": {"description": "Outstanding work items", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/identities/{id}/permissions": {
            "get": {
                "tags": ["Permissions"],
                "summary": "Resolve effective permissions",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/identities/{id}/permissions/override": {
            "get": {
                "tags": ["Permissions"],
                "summary": "Get the stored override",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Permissions"],
                "summary": "Save a per-identity override",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/PermissionRecord"}}
                ],
                "responses": {
                    "200": {"description": "Resolved record after the save", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Unknown module or action keys", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Permissions"],
                "summary": "Remove a per-identity override",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "204": {"description": "Override cleared"},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/permissions/me": {
            "get": {
                "tags": ["Permissions"],
                "summary": "Resolve the caller's permissions",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/permissions/apply-role": {
            "post": {
                "tags": ["Permissions"],
                "summary": "Apply a record to every holder of a role",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ApplyRoleRequest"}}
                ],
                "responses": {
                    "200": {"description": "Succeeded/total with per-identity failures", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/approvals/pending": {
            "get": {
                "tags": ["Approvals"],
                "summary": "List accounts awaiting approval",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/approvals/{id}/approve": {
            "post": {
                "tags": ["Approvals"],
                "summary": "Approve a pending account",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/approvals/{id}/dependents": {
            "get": {
                "tags": ["Approvals"],
                "summary": "List work items blocking a rejection",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/approvals/{id}/reject": {
            "post": {
                "tags": ["Approvals"],
                "summary": "Reject a pending account",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "schema": {"$ref": "#/definitions/RejectRequest"}}
                ],
                "responses": {
                    "204": {"description": "Rejected"},
                    "409": {"description": "Outstanding work items", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/approvals/resets": {
            "get": {
                "tags": ["Approvals"],
                "summary": "List reset requests: pending queue and history",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/approvals/resets/{id}": {
            "post": {
                "tags": ["Approvals"],
                "summary": "Decide on a reset request",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ReviewResetRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already decided", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "ClassifyRequest": {
            "type": "object",
            "properties": {
                "identifier": {"type": "string"}
            },
            "required": ["identifier"]
        },
        "LoginRequest": {
            "type": "object",
            "properties": {
                "identifier": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["identifier", "password"]
        },
        "VerifySessionRequest": {
            "type": "object",
            "properties": {
                "session_token": {"type": "string"}
            },
            "required": ["session_token"]
        },
        "LogoutRequest": {
            "type": "object",
            "properties": {
                "session_token": {"type": "string"}
            }
        },
        "RegisterRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "display_name": {"type": "string"},
                "role": {"type": "string"},
                "function": {"type": "string"}
            },
            "required": ["email", "display_name", "role"]
        },
        "CreateIdentityRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "display_name": {"type": "string"},
                "role": {"type": "string"},
                "function": {"type": "string"}
            },
            "required": ["email", "display_name", "role"]
        },
        "UpdateIdentityRequest": {
            "type": "object",
            "properties": {
                "display_name": {"type": "string"},
                "role": {"type": "string"},
                "function": {"type": "string"}
            }
        },
        "SetCredentialsRequest": {
            "type": "object",
            "properties": {
                "identifier": {"type": "string"},
                "new_password": {"type": "string"},
                "secret_question": {"type": "string"},
                "secret_answer": {"type": "string"}
            },
            "required": ["identifier", "new_password", "secret_question", "secret_answer"]
        },
        "SetPasswordRequest": {
            "type": "object",
            "properties": {
                "identifier": {"type": "string"},
                "new_password": {"type": "string"}
            },
            "required": ["identifier", "new_password"]
        },
        "ForgotPasswordRequest": {
            "type": "object",
            "properties": {
                "identifier": {"type": "string"}
            },
            "required": ["identifier"]
        },
        "RecoverRequest": {
            "type": "object",
            "properties": {
                "identifier": {"type": "string"},
                "secret_answer": {"type": "string"},
                "new_password": {"type": "string"}
            },
            "required": ["identifier", "secret_answer", "new_password"]
        },
        "ReviewResetRequest": {
            "type": "object",
            "properties": {
                "decision": {"type": "string", "enum": ["approve", "reject"]}
            },
            "required": ["decision"]
        },
        "RejectRequest": {
            "type": "object",
            "properties": {
                "replacement_id": {"type": "string"}
            }
        },
        "ApplyRoleRequest": {
            "type": "object",
            "properties": {
                "role": {"type": "string"},
                "record": {"$ref": "#/definitions/PermissionRecord"}
            },
            "required": ["role", "record"]
        },
        "ModulePermission": {
            "type": "object",
            "properties": {
                "visible": {"type": "boolean"},
                "actions": {
                    "type": "object",
                    "additionalProperties": {"type": "boolean"}
                }
            }
        },
        "PermissionRecord": {
            "type": "object",
            "additionalProperties": {"$ref": "#/definitions/ModulePermission"}
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
