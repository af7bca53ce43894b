package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/parnexcodes/ddl/internal/logging"
)

const userAgent = "ddl/1.0"

// UploadedMarker is what a successful upload with a non-JSON body reports
const UploadedMarker = "Uploaded"

// RetryPolicy controls the exponential backoff of multipart uploads
type RetryPolicy struct {
	InitialInterval time.Duration
	Multiplier      float64
	MaxInterval     time.Duration
	MaxAttempts     int
}

// DefaultRetryPolicy waits 4s then 8s between at most three attempts
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		InitialInterval: 4 * time.Second,
		Multiplier:      2,
		MaxInterval:     8 * time.Second,
		MaxAttempts:     3,
	}
}

// NewBackOff builds a deterministic (jitter free) backoff for the policy.
// It yields MaxAttempts-1 delays and then backoff.Stop.
func (p RetryPolicy) NewBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.Multiplier = p.Multiplier
	b.MaxInterval = p.MaxInterval
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()

	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return backoff.WithMaxRetries(b, uint64(attempts-1))
}

// Response is the outcome of a multipart upload that got HTTP 200
type Response struct {
	StatusCode int
	Body       []byte
	// JSON is false when the body could not be decoded, which still counts as uploaded
	JSON bool
}

// Uploaded reports whether this is the non-JSON success marker
func (r *Response) Uploaded() bool {
	return r != nil && !r.JSON
}

// Decode unmarshals a JSON body into target
func (r *Response) Decode(target interface{}) error {
	if r == nil || !r.JSON {
		return NewAPIError("JSON_PARSE_ERROR", "response body is not JSON", nil)
	}
	if err := json.Unmarshal(r.Body, target); err != nil {
		return NewAPIError("JSON_PARSE_ERROR", "failed to parse response", err)
	}
	return nil
}

func (r *Response) String() string {
	if r == nil {
		return ""
	}
	if !r.JSON {
		return UploadedMarker
	}
	return string(r.Body)
}

// TransportOption configures a Transport
type TransportOption func(*Transport)

// WithHTTPClient replaces the HTTP client used for uploads
func WithHTTPClient(client *http.Client) TransportOption {
	return func(t *Transport) {
		t.client = client
	}
}

// WithRetryPolicy overrides DefaultRetryPolicy
func WithRetryPolicy(policy RetryPolicy) TransportOption {
	return func(t *Transport) {
		t.policy = policy
	}
}

// WithRetryNotify registers a hook called before every retry wait
func WithRetryNotify(fn func(attempt int, delay time.Duration, err error)) TransportOption {
	return func(t *Transport) {
		t.onRetry = fn
	}
}

// Transport posts files as multipart forms with bounded retry
type Transport struct {
	client  *http.Client
	policy  RetryPolicy
	onRetry func(attempt int, delay time.Duration, err error)
}

// NewTransport creates a transport whose requests time out after timeout
func NewTransport(timeout time.Duration, opts ...TransportOption) *Transport {
	t := &Transport{
		client: &http.Client{Timeout: timeout},
		policy: DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Client returns the underlying HTTP client
func (t *Transport) Client() *http.Client {
	return t.client
}

// UploadMultipart streams filePath as the form field fieldName together
// with fields. It returns nil without error when the server answered with a
// status other than 200.
func (t *Transport) UploadMultipart(ctx context.Context, url, filePath, fieldName string, fields map[string]string, progress Observer) (*Response, error) {
	defer t.client.CloseIdleConnections()

	info, err := os.Stat(filePath)
	if err != nil {
		return nil, NewIOError(fmt.Sprintf("failed to stat %s", filePath), err)
	}
	if progress != nil {
		progress.TransferStarted(filePath, info.Size())
	}

	// Retried attempts re-read the file from the start; only report bytes past
	// what an earlier attempt already reached.
	var highWater int64
	onOffset := func(offset int64) {
		if offset <= highWater {
			return
		}
		highWater = offset
		if progress != nil {
			progress.TransferProgress(offset)
		}
	}

	attempt := 0
	var result *Response
	operation := func() error {
		attempt++
		resp, err := t.post(ctx, url, filePath, fieldName, fields, onOffset)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(NewCancelledError("upload cancelled", ctx.Err()))
			}
			switch GetErrorType(err) {
			case ErrorTypeIO, ErrorTypeConfiguration:
				return backoff.Permanent(err)
			}
			return err
		}
		result = resp
		return nil
	}

	notify := func(err error, delay time.Duration) {
		logging.RetryAttempt(url, attempt, delay, err)
		if t.onRetry != nil {
			t.onRetry(attempt, delay, err)
		}
	}

	err = backoff.RetryNotify(operation, backoff.WithContext(t.policy.NewBackOff(), ctx), notify)
	if err != nil {
		switch GetErrorType(err) {
		case ErrorTypeIO, ErrorTypeConfiguration, ErrorTypeCancelled:
			return nil, err
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, NewCancelledError("upload cancelled", err)
		}
		return nil, NewNetworkError(fmt.Sprintf("upload to %s failed after %d attempts", url, attempt), err)
	}
	return result, nil
}

func (t *Transport) post(ctx context.Context, url, filePath, fieldName string, fields map[string]string, onOffset OffsetFunc) (*Response, error) {
	reader, err := OpenProgressReader(filePath, onOffset)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	pipeR, pipeW := io.Pipe()
	mw := multipart.NewWriter(pipeW)

	writeErr := make(chan error, 1)
	go func() {
		err := writeForm(mw, reader, filepath.Base(filePath), fieldName, fields)
		pipeW.CloseWithError(err)
		writeErr <- err
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, pipeR)
	if err != nil {
		pipeR.CloseWithError(err)
		<-writeErr
		return nil, NewConfigurationError(fmt.Sprintf("invalid upload url %q", url), err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("User-Agent", userAgent)

	logging.HTTPRequest(http.MethodPost, url, map[string]string{
		"Content-Type": mw.FormDataContentType(),
		"field":        fieldName,
	})

	start := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		pipeR.CloseWithError(err)
		if werr := <-writeErr; GetErrorType(werr) == ErrorTypeIO {
			return nil, werr
		}
		return nil, NewNetworkError(fmt.Sprintf("request to %s failed", url), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	pipeR.Close()
	<-writeErr
	if err != nil {
		return nil, NewNetworkError("failed to read response body", err)
	}
	logging.HTTPResponse(resp.StatusCode, string(body), time.Since(start))

	if resp.StatusCode != http.StatusOK {
		return nil, nil
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Body:       body,
		JSON:       json.Valid(body),
	}, nil
}

func writeForm(mw *multipart.Writer, file io.Reader, filename, fieldName string, fields map[string]string) error {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if err := mw.WriteField(k, fields[k]); err != nil {
			return err
		}
	}

	part, err := mw.CreateFormFile(fieldName, filename)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, file); err != nil {
		return err
	}
	return mw.Close()
}
