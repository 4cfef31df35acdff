package sandbox

// responses.go sends gateway responses: sealed envelopes for processed requests and
// unsigned JSON errors for requests that could not be processed.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/renqiukai/wzbank-go/internal/envelope"
	"github.com/renqiukai/wzbank-go/internal/logger"
)

// ErrorResponse is the unsigned body of a refused request.
type ErrorResponse struct {
	DealCode      ErrorCode `json:"dealCode" example:"E0401"`
	DealMsg       string    `json:"dealMsg" example:"Bad signature"`
	HTTPMethod    string    `json:"httpMethod" example:"POST"`
	RequestURI    string    `json:"requestUri" example:"/prdApiGW/V1/P01502/S01/queryeaccountbalance"`
	StatusCode    int       `json:"statusCode" example:"401"`
	RequestID     string    `json:"requestId,omitempty"`
	ErrorDateTime string    `json:"errorDateTime" example:"2025-12-02T03:06:08Z"`
}

// MapErrorToResponse maps an error to an ErrorResponse and its HTTP status.
//
// The deal message is the sanitized text for the code; the full error is only logged.
func MapErrorToResponse(err error, r *http.Request) *ErrorResponse {
	code := ErrCodeInternalError

	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		code = gwErr.Code()
	}

	status, text := statusFor(code)
	return &ErrorResponse{
		DealCode:      code,
		DealMsg:       text,
		HTTPMethod:    r.Method,
		RequestURI:    r.RequestURI,
		StatusCode:    status,
		RequestID:     middleware.GetReqID(r.Context()),
		ErrorDateTime: time.Now().UTC().Format(time.RFC3339),
	}
}

func statusFor(code ErrorCode) (int, string) {
	switch code {
	case ErrCodeMalformedRequest:
		return http.StatusBadRequest, "Malformed request"
	case ErrCodeBadSignature:
		return http.StatusUnauthorized, "Bad signature"
	case ErrCodeUnknownApp:
		return http.StatusForbidden, "Unknown app"
	case ErrCodeNotFound:
		return http.StatusNotFound, "Not found"
	case ErrCodeMethodNotAllowed:
		return http.StatusMethodNotAllowed, "Method not allowed"
	case ErrCodeRequestTooLarge:
		return http.StatusRequestEntityTooLarge, "Request too large"
	case ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests, "Rate limit exceeded"
	default:
		return http.StatusInternalServerError, "Internal error"
	}
}

// RespondWithErrorResponse logs err and sends the sanitized ErrorResponse.
func RespondWithErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	errorResponse := MapErrorToResponse(err, r)

	reqLogger := logger.ContextRequestLogger(r.Context())
	reqLogger.Warn("Request failed",
		slog.String("error", err.Error()),
		slog.Int("status_code", errorResponse.StatusCode),
		slog.String("deal_code", string(errorResponse.DealCode)),
	)

	RespondWithJSONPayload(w, errorResponse.StatusCode, errorResponse)
}

// RespondWithJSONPayload sends a JSON response with the given status code
func RespondWithJSONPayload(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			// headers are already written
			slog.Error("Failed to encode JSON response",
				slog.String("error", err.Error()),
			)
		}
	}
}

// RespondWithEnvelope sends a sealed envelope: its signed headers and the {"bizContent":...} body.
func RespondWithEnvelope(w http.ResponseWriter, env *envelope.WireEnvelope) {
	for name, values := range env.Header {
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(env.Body); err != nil {
		slog.Error("Failed to write envelope response",
			slog.String("error", err.Error()),
		)
	}
}
