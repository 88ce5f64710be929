package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"

	reperrors "repverse/internal/shared/errors"
	jsonx "repverse/internal/shared/json"
)

// wrapRequestError classifies transport failures. Caller cancellation passes
// through untouched so retries stop immediately.
func wrapRequestError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return reperrors.NewTransientError(err, "The model request timed out. Please retry.")
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return reperrors.NewTransientError(err, "The model request timed out. Please retry.")
	}
	return reperrors.NewTransientError(err, "Could not reach the model service. Please retry.")
}

// mapHTTPError turns a non-2xx generateContent reply into a classified error:
// 408, 429 and 5xx are transient, other 4xx are permanent.
func mapHTTPError(status int, body []byte, headers http.Header) error {
	message := upstreamMessage(body)
	if message == "" {
		message = http.StatusText(status)
	}
	base := fmt.Errorf("gemini status %d: %s", status, message)

	if status == http.StatusRequestTimeout || status == http.StatusTooManyRequests || status >= 500 {
		terr := reperrors.NewTransientError(base, transientMessage(status))
		terr.StatusCode = status
		if headers != nil {
			if secs, err := strconv.Atoi(strings.TrimSpace(headers.Get("Retry-After"))); err == nil && secs > 0 {
				terr.RetryAfter = secs
			}
		}
		return terr
	}

	perr := reperrors.NewPermanentError(base, permanentMessage(status))
	perr.StatusCode = status
	return perr
}

func upstreamMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var envelope struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}
	if err := jsonx.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		if envelope.Error.Status != "" {
			return envelope.Error.Status + ": " + envelope.Error.Message
		}
		return envelope.Error.Message
	}
	preview := strings.TrimSpace(string(body))
	if len(preview) > 200 {
		preview = preview[:200] + "..."
	}
	return preview
}

func transientMessage(status int) string {
	if status == http.StatusTooManyRequests {
		return "The model service is rate limiting requests. Please retry shortly."
	}
	return "The model service is temporarily unavailable. Please retry."
}

func permanentMessage(status int) string {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return "The model service rejected the API key."
	case http.StatusNotFound:
		return "The configured model does not exist."
	default:
		return "The model service rejected the request."
	}
}
