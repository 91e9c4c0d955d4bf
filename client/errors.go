package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// APIError is a non-2xx response from the ledger service, carrying the
// structured error body when the server sent one.
type APIError struct {
	Status  int    // HTTP status code
	Message string // server-provided detail, or the generic status text
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ledger api: %d %s", e.Status, e.Message)
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return apiErr
	}
	var wire struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &wire); err == nil {
		if wire.Message != "" {
			apiErr.Message = wire.Message
		} else if wire.Error != "" {
			apiErr.Message = wire.Error
		}
	}
	return apiErr
}

func statusIs(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// IsNotFound reports whether the server answered 404.
func IsNotFound(err error) bool { return statusIs(err, http.StatusNotFound) }

// IsInvalidRequest reports whether the server rejected the request as
// malformed or out of range (400).
func IsInvalidRequest(err error) bool { return statusIs(err, http.StatusBadRequest) }

// IsInsufficientFunds reports whether the member's balance cannot cover the
// operation (402).
func IsInsufficientFunds(err error) bool { return statusIs(err, http.StatusPaymentRequired) }

// IsConflict reports whether the operation collided with the current state,
// such as an already-claimed daily or a stacking booster (409).
func IsConflict(err error) bool { return statusIs(err, http.StatusConflict) }

// IsSyncUnavailable reports whether the service runs without a configured
// remote mirror (503).
func IsSyncUnavailable(err error) bool { return statusIs(err, http.StatusServiceUnavailable) }
