package gfycat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const (
	// DefaultAPIURL is the base of both the token and album endpoints.
	DefaultAPIURL = "https://api.gfycat.com"

	// DefaultPublicHost serves the public page for each item.
	DefaultPublicHost = "gfycat.com"

	tokenPath = "/v1/oauth/token"
	albumPath = "/v1/me/albums/"

	// error bodies beyond this are not worth reading
	maxErrorBodyBytes = 64 << 10
)

func jsonBody(payload any) (io.Reader, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}

// do sends the request and decodes a successful JSON response into out. A
// non-success reply is decoded as an APIError; everything else that goes
// wrong is a TransportError.
func do(client *http.Client, req *http.Request, op string, out any) error {
	resp, err := client.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp, op)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("decoding response: %w", err)}
	}

	return nil
}

func decodeAPIError(resp *http.Response, op string) error {
	var envelope errorEnvelope
	err := json.NewDecoder(io.LimitReader(resp.Body, maxErrorBodyBytes)).Decode(&envelope)
	if err != nil || envelope.ErrorMessage.Code == "" {
		return &TransportError{
			Op:  op,
			Err: fmt.Errorf("unexpected status %d without error details", resp.StatusCode),
		}
	}

	return &APIError{
		StatusCode:  resp.StatusCode,
		Code:        envelope.ErrorMessage.Code,
		Description: envelope.ErrorMessage.Description,
	}
}
