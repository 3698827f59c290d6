// Package api provides an HTTP client for the regard eye-tracking backend.
//
// # Overview
//
// The backend is a REST service that stores patients and their
// eye-tracking tests, grades finished tests, renders PDF reports and serves
// a model-based prediction endpoint. Client wraps every endpoint regard
// consumes and normalizes the backend's error payloads into *Error values.
//
// # Authentication
//
// Login stores the returned access and refresh tokens in a
// localstore.Storage under "access_token" and "refresh_token". Every
// request reads the access token fresh from storage and, when present,
// sends it as "Authorization: Bearer <token>". Cookies set by the backend
// are kept in a per-client cookie jar.
//
// When an authenticated request is answered with 401, the client posts the
// refresh token to /api/auth/refresh/ once and retries the request once on
// success. Concurrent 401s share a single refresh exchange. A rejected
// refresh clears both tokens and the original 401 is returned.
//
// # Endpoints
//
//   - POST /api/auth/register/, /api/auth/login/, /api/auth/refresh/
//   - GET  /api/patients/, /api/patients/me/
//   - GET  /api/tests/, /api/tests/{id}/, /api/tests/statistics/
//   - POST /api/tests/
//   - GET  /api/tests/{id}/export_pdf/, /api/tests/export_all_pdf/
//   - POST /ml/predict/
//
// List endpoints may answer with a bare array or with a paginated envelope;
// both decode into Page.
//
// # Error Handling
//
// Non-2xx responses become *Error. Its message is the first non-empty
// string among the payload's "detail", "error" and "message" fields, or
// "HTTP <status>". errors.Is matches ErrNotFound and ErrUnauthorized by
// status. Transport failures wrap ErrUnavailable.
package api
