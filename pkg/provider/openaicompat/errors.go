package openaicompat

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rhuss/chatbridge/pkg/api"
	"github.com/rhuss/chatbridge/pkg/provider"
)

// MapHTTPError converts an HTTP response with a non-2xx status code into
// an APIError. It attempts to parse the response body as an ErrorResponse
// to extract a descriptive message and falls back to the raw body.
func MapHTTPError(resp *http.Response) *api.APIError {
	message := ExtractErrorMessage(resp.Body)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		if message == "" {
			message = "upstream authentication failed"
		}
		apiErr := api.NewTransportError(resp.StatusCode, message)
		apiErr.Code = "unauthorized"
		return apiErr

	case resp.StatusCode == http.StatusTooManyRequests:
		if message == "" {
			message = "upstream rate limit exceeded"
		}
		apiErr := api.NewTransportError(resp.StatusCode, message)
		apiErr.Code = "rate_limited"
		return apiErr

	default:
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		if message == "" {
			message = "unexpected upstream error"
		}
		return api.NewTransportError(resp.StatusCode, message)
	}
}

// MapNetworkError converts a network-level error (connection refused, timeout,
// DNS resolution failure) into an APIError with a descriptive message.
func MapNetworkError(err error) *api.APIError {
	return api.NewTransportError(0, fmt.Sprintf("upstream connection error: %s", err.Error()))
}

// ExtractErrorMessage tries to parse the response body as an ErrorResponse
// and returns the error message if found, or the trimmed body otherwise.
func ExtractErrorMessage(body io.Reader) string {
	if body == nil {
		return ""
	}

	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(data) == 0 {
		return ""
	}

	var errResp provider.ErrorResponse
	if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error.Message != "" {
		return errResp.Error.Message
	}

	return strings.TrimSpace(string(data))
}
