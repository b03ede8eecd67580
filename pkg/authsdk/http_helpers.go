package authsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// send issues one request against BaseURL. A non-empty bearer is sent as
// the Authorization header.
func (c *SDKClient) send(ctx context.Context, method, path, bearer string, body []byte) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rd)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	return resp, nil
}

// doRequest is an unauthenticated call without a body.
func (c *SDKClient) doRequest(ctx context.Context, method, path string) (*http.Response, error) {
	return c.send(ctx, method, path, "", nil)
}

// postJSON sends in as a JSON body and decodes a 200 reply into out.
func (c *SDKClient) postJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	resp, err := c.send(ctx, http.MethodPost, path, "", body)
	if err != nil {
		return err
	}
	return decodeJSON(resp, out, http.StatusOK)
}

// call makes a bodiless authenticated request and decodes a 200 reply into
// out. An expired access token is refreshed first.
func (s *Session) call(ctx context.Context, method, path string, out any) error {
	token, err := s.getValidToken(ctx)
	if err != nil {
		return err
	}
	resp, err := s.client.send(ctx, method, path, token, nil)
	if err != nil {
		return err
	}
	return decodeJSON(resp, out, http.StatusOK)
}

// decodeJSON consumes resp. Any status other than want becomes a typed
// *OAuth2Error when the body carries one.
func decodeJSON(resp *http.Response, target any, want int) error {
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != want {
		if apiErr := parseErrorResponse(resp, raw); apiErr != nil {
			return apiErr
		}
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
