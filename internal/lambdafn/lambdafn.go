// Package lambdafn implements the Lambda handlers deployed behind the
// maintenance assistant's Function URLs: query answering, fault data
// sync, health reporting, and session management.
package lambdafn

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"os"
	"strings"

	"github.com/aws/aws-lambda-go/events"
)

// defaultAllowedOrigins mirrors the registry defaults for the query
// handler. ALLOWED_ORIGINS (comma-separated) overrides it at deploy time.
var defaultAllowedOrigins = []string{
	"https://localhost:8501",
	"https://*.streamlit.app",
	"https://*.herokuapp.com",
}

// allowedOrigins resolves the origin allowlist from the environment.
func allowedOrigins() []string {
	raw := os.Getenv("ALLOWED_ORIGINS")
	if raw == "" {
		return defaultAllowedOrigins
	}
	var origins []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			origins = append(origins, part)
		}
	}
	if len(origins) == 0 {
		return defaultAllowedOrigins
	}
	return origins
}

// originAllowed reports whether origin may call the handler. Entries of
// the form https://*.example.com match any subdomain. Requests without
// an Origin header (curl, server-to-server) are allowed; browsers always
// send one.
func originAllowed(origin string, allowed []string) bool {
	if origin == "" {
		return true
	}
	for _, entry := range allowed {
		if entry == "*" || entry == origin {
			return true
		}
		if suffix, ok := strings.CutPrefix(entry, "https://*"); ok &&
			strings.HasPrefix(suffix, ".") && strings.HasSuffix(origin, suffix) {
			return true
		}
	}
	return false
}

// queryHeaders builds the response headers for the query handler: CORS
// reflecting the validated origin, plus transport and content-type
// protections. Rejected origins get "null" so the browser drops the
// response.
func queryHeaders(origin string, allowed []string) map[string]string {
	allowOrigin := "null"
	if originAllowed(origin, allowed) {
		allowOrigin = origin
		if allowOrigin == "" && len(allowed) > 0 {
			allowOrigin = allowed[0]
		}
	}
	return map[string]string{
		"Content-Type":                  "application/json",
		"Access-Control-Allow-Origin":   allowOrigin,
		"Access-Control-Allow-Methods":  "POST, OPTIONS",
		"Access-Control-Allow-Headers":  "Content-Type, Authorization, X-Amz-Date, X-Api-Key",
		"Access-Control-Expose-Headers": "X-Amz-Request-Id",
		"Access-Control-Max-Age":        "300",
		"X-Content-Type-Options":        "nosniff",
		"X-Frame-Options":               "DENY",
		"Referrer-Policy":               "strict-origin-when-cross-origin",
		"Strict-Transport-Security":     "max-age=31536000; includeSubDomains",
	}
}

// openHeaders builds the permissive header set used by the health and
// session endpoints.
func openHeaders(methods string) map[string]string {
	return map[string]string{
		"Content-Type":                 "application/json",
		"Access-Control-Allow-Origin":  "*",
		"Access-Control-Allow-Methods": methods,
		"Access-Control-Allow-Headers": "Content-Type",
	}
}

// header fetches a request header regardless of case. Function URLs
// lowercase header names on the way in, but tests and proxies may not.
func header(event events.LambdaFunctionURLRequest, name string) string {
	if v, ok := event.Headers[name]; ok {
		return v
	}
	for k, v := range event.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// method returns the request's HTTP method, defaulting to GET when the
// event carries none.
func method(event events.LambdaFunctionURLRequest) string {
	if m := event.RequestContext.HTTP.Method; m != "" {
		return strings.ToUpper(m)
	}
	return http.MethodGet
}

// requestBody returns the decoded request payload.
func requestBody(event events.LambdaFunctionURLRequest) ([]byte, error) {
	if event.IsBase64Encoded {
		return base64.StdEncoding.DecodeString(event.Body)
	}
	return []byte(event.Body), nil
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// respond marshals v as the JSON body of a Function URL response.
func respond(status int, headers map[string]string, v any) events.LambdaFunctionURLResponse {
	body, err := json.Marshal(v)
	if err != nil {
		return events.LambdaFunctionURLResponse{
			StatusCode: http.StatusInternalServerError,
			Headers:    headers,
			Body:       `{"error":"Internal server error","message":"Failed to encode response"}`,
		}
	}
	return events.LambdaFunctionURLResponse{
		StatusCode: status,
		Headers:    headers,
		Body:       string(body),
	}
}

// respondError is respond for the error envelope shared by the handlers.
func respondError(status int, headers map[string]string, name, message string) events.LambdaFunctionURLResponse {
	return respond(status, headers, errorBody{Error: name, Message: message})
}

// preflight answers an OPTIONS request.
func preflight(headers map[string]string) events.LambdaFunctionURLResponse {
	return events.LambdaFunctionURLResponse{StatusCode: http.StatusOK, Headers: headers}
}
