package gfycat

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrGrantMissing is returned by Builder.Build when neither a password nor
	// a client credentials grant was selected.
	ErrGrantMissing = errors.New("grant missing: select a password or client credentials grant")

	// ErrEmptyCollection is returned when the album holds no items to choose
	// from.
	ErrEmptyCollection = errors.New("album contains no items")
)

// APIError is a well-formed error envelope returned by the remote API.
type APIError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Error %s: %s", e.Code, e.Description)
}

// Status reports the remote message verbatim so callers can show it to users.
func (e *APIError) Status() (int, string) {
	return http.StatusBadGateway, e.Error()
}

// errorEnvelope is the wire shape of APIError.
type errorEnvelope struct {
	ErrorMessage struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"errorMessage"`
}

// TransportError indicates the API could not be reached, or replied with
// something that could not be understood.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Status hides transport details from HTTP clients.
func (e *TransportError) Status() (int, string) {
	return http.StatusBadGateway, http.StatusText(http.StatusBadGateway)
}
