package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parnexcodes/ddl/internal/logging"
)

func TestMain(m *testing.M) {
	logging.Init(false, os.Stderr)
	os.Exit(m.Run())
}

func fastPolicy() RetryPolicy {
	return RetryPolicy{
		InitialInterval: time.Millisecond,
		Multiplier:      2,
		MaxInterval:     2 * time.Millisecond,
		MaxAttempts:     3,
	}
}

func writeTempFile(t *testing.T, name string, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("a", size)), 0o644))
	return path
}

type recordingObserver struct {
	started []string
	offsets []int64
}

func (r *recordingObserver) TransferStarted(path string, size int64) {
	r.started = append(r.started, path)
}

func (r *recordingObserver) TransferProgress(offset int64) {
	r.offsets = append(r.offsets, offset)
}

// flakyRoundTripper fails the first n requests before reaching the network
type flakyRoundTripper struct {
	failures int32
	calls    int32
	next     http.RoundTripper
}

func (f *flakyRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	n := atomic.AddInt32(&f.calls, 1)
	if n <= f.failures {
		if req.Body != nil {
			req.Body.Close()
		}
		return nil, &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	}
	return f.next.RoundTrip(req)
}

func TestDefaultRetryPolicy_Delays(t *testing.T) {
	b := DefaultRetryPolicy().NewBackOff()

	var delays []time.Duration
	for {
		d := b.NextBackOff()
		if d == backoff.Stop {
			break
		}
		delays = append(delays, d)
		require.Less(t, len(delays), 10, "backoff never stopped")
	}

	// three attempts means two waits in between
	assert.Equal(t, []time.Duration{4 * time.Second, 8 * time.Second}, delays)
	for i := 1; i < len(delays); i++ {
		assert.GreaterOrEqual(t, delays[i], delays[i-1])
		assert.LessOrEqual(t, delays[i], 8*time.Second)
	}
}

func TestUploadMultipart_JSONResponse(t *testing.T) {
	path := writeTempFile(t, "movie.mkv", 1000)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseMultipartForm(10<<20))

		file, header, err := r.FormFile("file1")
		require.NoError(t, err)
		defer file.Close()

		content, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, "movie.mkv", header.Filename)
		assert.Len(t, content, 1000)
		assert.Equal(t, "abc", r.FormValue("token"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status":"ok","data":{"id":"42"}}`)
	}))
	defer server.Close()

	obs := &recordingObserver{}
	tr := NewTransport(time.Minute, WithRetryPolicy(fastPolicy()))
	resp, err := tr.UploadMultipart(context.Background(), server.URL, path, "file1", map[string]string{"token": "abc"}, obs)
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.True(t, resp.JSON)
	assert.False(t, resp.Uploaded())

	var decoded struct {
		Status string `json:"status"`
		Data   struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, resp.Decode(&decoded))
	assert.Equal(t, "ok", decoded.Status)
	assert.Equal(t, "42", decoded.Data.ID)

	assert.Equal(t, []string{path}, obs.started)
	require.NotEmpty(t, obs.offsets)
	assert.Equal(t, int64(1000), obs.offsets[len(obs.offsets)-1])
}

func TestUploadMultipart_NonJSONIsUploadedMarker(t *testing.T) {
	path := writeTempFile(t, "a.txt", 10)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		fmt.Fprint(w, "<html>thanks</html>")
	}))
	defer server.Close()

	tr := NewTransport(time.Minute, WithRetryPolicy(fastPolicy()))
	resp, err := tr.UploadMultipart(context.Background(), server.URL, path, "file", nil, nil)
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.True(t, resp.Uploaded())
	assert.Equal(t, UploadedMarker, resp.String())
	assert.Error(t, resp.Decode(&struct{}{}))
}

func TestUploadMultipart_NonOKStatusIsNotRetried(t *testing.T) {
	path := writeTempFile(t, "a.txt", 10)

	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	tr := NewTransport(time.Minute, WithRetryPolicy(fastPolicy()))
	resp, err := tr.UploadMultipart(context.Background(), server.URL, path, "file", nil, nil)
	assert.NoError(t, err)
	assert.Nil(t, resp)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestUploadMultipart_RetriesTransientFailures(t *testing.T) {
	path := writeTempFile(t, "a.bin", 1000)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer server.Close()

	rt := &flakyRoundTripper{failures: 2, next: http.DefaultTransport}
	var delays []time.Duration
	obs := &recordingObserver{}
	tr := NewTransport(time.Minute,
		WithHTTPClient(&http.Client{Transport: rt}),
		WithRetryPolicy(fastPolicy()),
		WithRetryNotify(func(attempt int, delay time.Duration, err error) {
			delays = append(delays, delay)
		}),
	)

	resp, err := tr.UploadMultipart(context.Background(), server.URL, path, "file", nil, obs)
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, int32(3), atomic.LoadInt32(&rt.calls))
	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond}, delays)

	// offsets never go backwards even though the file was opened three times
	for i := 1; i < len(obs.offsets); i++ {
		assert.Greater(t, obs.offsets[i], obs.offsets[i-1])
	}
	assert.Equal(t, int64(1000), obs.offsets[len(obs.offsets)-1])
}

func TestUploadMultipart_GivesUpAfterThreeAttempts(t *testing.T) {
	path := writeTempFile(t, "a.bin", 10)

	rt := &flakyRoundTripper{failures: 100, next: http.DefaultTransport}
	tr := NewTransport(time.Minute,
		WithHTTPClient(&http.Client{Transport: rt}),
		WithRetryPolicy(fastPolicy()),
	)

	resp, err := tr.UploadMultipart(context.Background(), "http://127.0.0.1:1/upload", path, "file", nil, nil)
	assert.Nil(t, resp)
	require.Error(t, err)
	assert.Equal(t, ErrorTypeNetwork, GetErrorType(err))
	assert.Equal(t, int32(3), atomic.LoadInt32(&rt.calls))
}

func TestUploadMultipart_MissingFileIsNotRetried(t *testing.T) {
	rt := &flakyRoundTripper{next: http.DefaultTransport}
	tr := NewTransport(time.Minute,
		WithHTTPClient(&http.Client{Transport: rt}),
		WithRetryPolicy(fastPolicy()),
	)

	_, err := tr.UploadMultipart(context.Background(), "http://127.0.0.1:1/upload", filepath.Join(t.TempDir(), "gone"), "file", nil, nil)
	require.Error(t, err)
	assert.Equal(t, ErrorTypeIO, GetErrorType(err))
	assert.Equal(t, int32(0), atomic.LoadInt32(&rt.calls))
}

func TestUploadMultipart_ContextCancellation(t *testing.T) {
	path := writeTempFile(t, "a.bin", 10)

	closed := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// the server only notices a closed connection once the body is drained
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
		close(closed)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	tr := NewTransport(time.Minute, WithRetryPolicy(fastPolicy()))
	resp, err := tr.UploadMultipart(ctx, server.URL, path, "file", nil, nil)
	assert.Nil(t, resp)
	require.Error(t, err)
	assert.Equal(t, ErrorTypeCancelled, GetErrorType(err))

	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("server request was not closed")
	}
}
