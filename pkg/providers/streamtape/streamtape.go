package streamtape

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/parnexcodes/ddl/internal/contenttype"
	"github.com/parnexcodes/ddl/internal/logging"
	"github.com/parnexcodes/ddl/internal/providers"
)

const (
	providerName = "StreamTape"
	engineLabel  = "StreamTape API"
)

// Response represents the StreamTape API envelope
type Response struct {
	Status int    `json:"status"`
	Msg    string `json:"msg"`
	Result struct {
		URL  string `json:"url"`
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"result"`
}

// Adapter uploads single files to StreamTape
type Adapter struct {
	*providers.BaseProvider
	Credential string
	APIURL     string
	Timeout    time.Duration

	transport *providers.Transport
	resolver  contenttype.Resolver
}

// Option customizes an Adapter
type Option func(*Adapter)

// WithTransport shares an upload transport with the adapter
func WithTransport(t *providers.Transport) Option {
	return func(a *Adapter) {
		a.transport = t
	}
}

// WithResolver replaces the MIME type resolver
func WithResolver(r contenttype.Resolver) Option {
	return func(a *Adapter) {
		a.resolver = r
	}
}

// New creates a StreamTape adapter. credential has the form "login:key";
// it is only checked when uploading so a bad value fails that provider
// attempt rather than the whole job.
func New(credential string, config map[string]interface{}, opts ...Option) (*Adapter, error) {
	apiURL, ok := config["api_url"].(string)
	if !ok {
		apiURL = "https://api.streamtape.com"
	}

	timeoutStr, ok := config["timeout"].(string)
	if !ok {
		timeoutStr = "10m"
	}
	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil {
		timeout = 10 * time.Minute
		logging.ErrorContext("provider_config", err, map[string]interface{}{
			"provider": providerName,
			"setting":  "timeout",
			"value":    timeoutStr,
		})
	}

	logging.ProviderConfig(providerName, map[string]interface{}{
		"api_url": apiURL,
		"timeout": timeout.String(),
	})

	a := &Adapter{
		Credential: credential,
		APIURL:     strings.TrimRight(apiURL, "/"),
		Timeout:    timeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.transport == nil {
		a.transport = providers.NewTransport(timeout)
	}
	if a.resolver == nil {
		a.resolver = contenttype.NewSniffer()
	}
	a.BaseProvider = providers.NewBaseProvider(providerName, engineLabel, a.transport)

	return a, nil
}

// SplitCredential splits "login:key" into its two parts
func SplitCredential(credential string) (login, key string, err error) {
	parts := strings.Split(credential, ":")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", providers.NewConfigurationError("StreamTape Login & Key not Found, Kindly Recheck !", nil)
	}
	return parts[0], parts[1], nil
}

// Upload sends one file to StreamTape. Folders are rejected before any request is made.
func (a *Adapter) Upload(ctx context.Context, path string, progress providers.Observer) (*providers.Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, providers.NewIOError(fmt.Sprintf("cannot access %s", path), err)
	}
	if !info.Mode().IsRegular() {
		return nil, providers.NewConfigurationError("StreamTape only supports file uploads", nil)
	}

	login, key, err := SplitCredential(a.Credential)
	if err != nil {
		return nil, err
	}
	mimeType := a.resolver.Resolve(path)

	uploadURL, err := a.uploadServer(ctx, login, key)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := a.transport.UploadMultipart(ctx, uploadURL, path, "file1", nil, progress)
	if err != nil {
		a.LogProviderError("upload_file", err, map[string]interface{}{"path": path})
		return nil, err
	}
	if resp == nil {
		return nil, providers.NewAPIError("UPLOAD_REJECTED", "StreamTape rejected the upload", nil)
	}

	var response Response
	if err := resp.Decode(&response); err != nil {
		return nil, err
	}
	if response.Status != http.StatusOK {
		return nil, providers.NewAPIError(
			fmt.Sprintf("%d", response.Status),
			fmt.Sprintf("upload failed: %s", response.Msg),
			nil,
		)
	}
	if response.Result.URL == "" {
		return nil, providers.NewAPIError("MISSING_DOWNLOAD_URL", "upload response missing download URL", nil)
	}

	logging.UploadComplete(filepath.Base(path), response.Result.URL, time.Since(start))

	return &providers.Result{
		Link:     response.Result.URL,
		MimeType: mimeType,
		Files:    1,
	}, nil
}

// uploadServer asks StreamTape for a one-time upload url
func (a *Adapter) uploadServer(ctx context.Context, login, key string) (string, error) {
	q := url.Values{}
	q.Set("login", login)
	q.Set("key", key)

	var response Response
	if err := a.GetJSON(ctx, a.APIURL+"/file/ul?"+q.Encode(), nil, &response); err != nil {
		return "", err
	}
	if response.Status != http.StatusOK {
		return "", providers.NewAPIError(
			fmt.Sprintf("%d", response.Status),
			fmt.Sprintf("upload url request failed: %s", response.Msg),
			nil,
		)
	}
	if response.Result.URL == "" {
		return "", providers.NewAPIError("MISSING_UPLOAD_URL", "StreamTape did not return an upload url", nil)
	}
	return response.Result.URL, nil
}
