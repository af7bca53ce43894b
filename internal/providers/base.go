package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/parnexcodes/ddl/internal/logging"
)

// BaseProvider provides the pieces every adapter shares: identity, the
// upload transport and small JSON API helpers.
type BaseProvider struct {
	name      string
	engine    string
	transport *Transport
}

// NewBaseProvider creates a new base provider. A nil transport gets a default one.
func NewBaseProvider(name, engine string, transport *Transport) *BaseProvider {
	if transport == nil {
		transport = NewTransport(10 * time.Minute)
	}
	return &BaseProvider{
		name:      name,
		engine:    engine,
		transport: transport,
	}
}

// Name returns the provider display name
func (bp *BaseProvider) Name() string {
	return bp.name
}

// Engine returns the engine label shown while the provider is active
func (bp *BaseProvider) Engine() string {
	return bp.engine
}

// Transport returns the multipart upload transport
func (bp *BaseProvider) Transport() *Transport {
	return bp.transport
}

// MakeRequest creates and executes an HTTP request with common headers and logging
func (bp *BaseProvider) MakeRequest(ctx context.Context, method, url string, body io.Reader, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		bp.LogProviderError("http_request_create", err, map[string]interface{}{
			"method": method,
			"url":    url,
		})
		return nil, NewConfigurationError(fmt.Sprintf("failed to create request: %s %s", method, url), err)
	}

	req.Header.Set("User-Agent", userAgent)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	logging.HTTPRequest(method, url, nil)

	resp, err := bp.transport.Client().Do(req)
	if err != nil {
		bp.LogProviderError("http_request", err, map[string]interface{}{
			"url": url,
		})
		return nil, NewNetworkError(fmt.Sprintf("request failed: %s", url), err)
	}
	return resp, nil
}

// ParseResponse parses a JSON response body into the target structure
func (bp *BaseProvider) ParseResponse(resp *http.Response, started time.Time, target interface{}) ([]byte, error) {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		bp.LogProviderError("http_response_read", err, map[string]interface{}{
			"status_code": resp.StatusCode,
		})
		return nil, NewNetworkError("failed to read response body", err)
	}

	logging.HTTPResponse(resp.StatusCode, string(body), time.Since(started))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return body, NewAPIError(
			fmt.Sprintf("%d", resp.StatusCode),
			fmt.Sprintf("API returned status %d: %s", resp.StatusCode, string(body)),
			nil,
		)
	}

	if target != nil && len(body) > 0 {
		if err := json.Unmarshal(body, target); err != nil {
			bp.LogProviderError("json_parse", err, map[string]interface{}{
				"response": string(body),
			})
			return body, NewAPIError("JSON_PARSE_ERROR", "failed to parse API response", err)
		}
	}
	return body, nil
}

// GetJSON issues a GET and decodes the JSON answer into target
func (bp *BaseProvider) GetJSON(ctx context.Context, url string, headers map[string]string, target interface{}) error {
	start := time.Now()
	resp, err := bp.MakeRequest(ctx, http.MethodGet, url, nil, headers)
	if err != nil {
		return err
	}
	_, err = bp.ParseResponse(resp, start, target)
	return err
}

// PostJSON sends payload as a JSON body and decodes the answer into target
func (bp *BaseProvider) PostJSON(ctx context.Context, url string, headers map[string]string, payload, target interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return NewAPIError("JSON_ENCODE_ERROR", "failed to encode request", err)
	}

	h := map[string]string{"Content-Type": "application/json"}
	for k, v := range headers {
		h[k] = v
	}

	start := time.Now()
	resp, err := bp.MakeRequest(ctx, http.MethodPost, url, bytes.NewReader(data), h)
	if err != nil {
		return err
	}
	_, err = bp.ParseResponse(resp, start, target)
	return err
}

// LogProviderError logs provider errors with context
func (bp *BaseProvider) LogProviderError(operation string, err error, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["provider"] = bp.name

	logging.ErrorContext(operation, err, fields)
}
