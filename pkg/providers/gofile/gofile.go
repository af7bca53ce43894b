package gofile

import (
	"context"
	"encoding/json"
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
	providerName = "GoFile"
	engineLabel  = "GoFile API"
)

// UploadResponse represents the upload endpoint response format
type UploadResponse struct {
	Status string `json:"status"`
	Data   struct {
		DownloadPage string `json:"downloadPage"`
		ID           string `json:"id"`
		FileName     string `json:"fileName"`
		ParentFolder string `json:"parentFolder"`
	} `json:"data"`
}

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
}

type folderData struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// Adapter uploads files and whole folders to GoFile
type Adapter struct {
	*providers.BaseProvider
	Token           string
	UploadURL       string
	APIURL          string
	DownloadBaseURL string
	Timeout         time.Duration

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

// New creates a GoFile adapter. token is the account token and may be empty
// for anonymous single file uploads.
func New(token string, config map[string]interface{}, opts ...Option) (*Adapter, error) {
	uploadURL, ok := config["upload_url"].(string)
	if !ok {
		uploadURL = "https://upload.gofile.io/uploadFile"
	}

	apiURL, ok := config["api_url"].(string)
	if !ok {
		apiURL = "https://api.gofile.io"
	}

	downloadBaseURL, ok := config["download_base_url"].(string)
	if !ok {
		downloadBaseURL = "https://gofile.io"
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
		"upload_url":        uploadURL,
		"api_url":           apiURL,
		"download_base_url": downloadBaseURL,
		"timeout":           timeout.String(),
		"has_token":         token != "",
	})

	a := &Adapter{
		Token:           strings.TrimSpace(token),
		UploadURL:       uploadURL,
		APIURL:          strings.TrimRight(apiURL, "/"),
		DownloadBaseURL: strings.TrimRight(downloadBaseURL, "/"),
		Timeout:         timeout,
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

// Upload sends a file or a folder tree to GoFile
func (a *Adapter) Upload(ctx context.Context, path string, progress providers.Observer) (*providers.Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, providers.NewIOError(fmt.Sprintf("cannot access %s", path), err)
	}

	if info.IsDir() {
		return a.uploadFolder(ctx, path, progress)
	}

	mimeType := a.resolver.Resolve(path)
	data, err := a.uploadFile(ctx, path, "", progress)
	if err != nil {
		return nil, err
	}

	return &providers.Result{
		Link:     data.Data.DownloadPage,
		MimeType: mimeType,
		Files:    1,
	}, nil
}

func (a *Adapter) uploadFile(ctx context.Context, path, folderID string, progress providers.Observer) (*UploadResponse, error) {
	fields := map[string]string{}
	if a.Token != "" {
		fields["token"] = a.Token
	}
	if folderID != "" {
		fields["folderId"] = folderID
	}

	start := time.Now()
	resp, err := a.transport.UploadMultipart(ctx, a.UploadURL, path, "file", fields, progress)
	if err != nil {
		a.LogProviderError("upload_file", err, map[string]interface{}{"path": path})
		return nil, err
	}
	if resp == nil {
		return nil, providers.NewAPIError("UPLOAD_REJECTED", "GoFile rejected the upload", nil)
	}

	var response UploadResponse
	if err := resp.Decode(&response); err != nil {
		a.LogProviderError("json_parse", err, map[string]interface{}{
			"response": resp.String(),
		})
		return nil, err
	}

	if response.Status != "ok" {
		return nil, providers.NewAPIError(
			"UPLOAD_ERROR",
			fmt.Sprintf("upload failed with status: %s", response.Status),
			nil,
		)
	}
	if response.Data.DownloadPage == "" {
		return nil, providers.NewAPIError("MISSING_DOWNLOAD_URL", "upload response missing download URL", nil)
	}

	logging.UploadComplete(filepath.Base(path), response.Data.DownloadPage, time.Since(start))
	return &response, nil
}

func (a *Adapter) uploadFolder(ctx context.Context, root string, progress providers.Observer) (*providers.Result, error) {
	if a.Token == "" {
		return nil, providers.NewConfigurationError("GoFile folder uploads need an account token", nil)
	}

	parent, err := a.rootFolder(ctx)
	if err != nil {
		return nil, err
	}

	folder, err := a.createFolder(ctx, parent, filepath.Base(root))
	if err != nil {
		return nil, err
	}

	result := &providers.Result{
		MimeType: contenttype.Folder,
		Folders:  1,
	}
	if err := a.uploadTree(ctx, root, folder.ID, progress, result); err != nil {
		return nil, err
	}

	result.Link = fmt.Sprintf("%s/d/%s", a.DownloadBaseURL, folder.Code)
	return result, nil
}

// uploadTree mirrors dir into the remote folder folderID, one entry at a time.
func (a *Adapter) uploadTree(ctx context.Context, dir, folderID string, progress providers.Observer, result *providers.Result) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return providers.NewIOError(fmt.Sprintf("cannot list %s", dir), err)
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return providers.NewCancelledError("upload cancelled", err)
		}

		path := filepath.Join(dir, entry.Name())
		logging.FileFound(path, 0, entry.IsDir())

		if entry.IsDir() {
			child, err := a.createFolder(ctx, folderID, entry.Name())
			if err != nil {
				return err
			}
			result.Folders++
			if err := a.uploadTree(ctx, path, child.ID, progress, result); err != nil {
				return err
			}
			continue
		}

		if !entry.Type().IsRegular() {
			continue
		}
		if _, err := a.uploadFile(ctx, path, folderID, progress); err != nil {
			return err
		}
		result.Files++
	}
	return nil
}

func (a *Adapter) rootFolder(ctx context.Context) (string, error) {
	var account struct {
		ID string `json:"id"`
	}
	if err := a.call(ctx, http.MethodGet, "/accounts/getid", nil, &account); err != nil {
		return "", err
	}
	if account.ID == "" {
		return "", providers.NewAPIError("MISSING_ACCOUNT", "GoFile did not return an account id", nil)
	}

	var details struct {
		RootFolder string `json:"rootFolder"`
	}
	if err := a.call(ctx, http.MethodGet, "/accounts/"+url.PathEscape(account.ID), nil, &details); err != nil {
		return "", err
	}
	if details.RootFolder == "" {
		return "", providers.NewAPIError("MISSING_ROOT_FOLDER", "GoFile account has no root folder", nil)
	}
	return details.RootFolder, nil
}

func (a *Adapter) createFolder(ctx context.Context, parentID, name string) (*folderData, error) {
	payload := map[string]string{
		"parentFolderId": parentID,
		"folderName":     name,
	}

	var folder folderData
	if err := a.call(ctx, http.MethodPost, "/contents/createFolder", payload, &folder); err != nil {
		return nil, err
	}
	if folder.ID == "" {
		return nil, providers.NewAPIError("MISSING_ID", "create folder response missing folder ID", nil)
	}
	return &folder, nil
}

// call performs an authenticated API request and decodes the data member of the envelope
func (a *Adapter) call(ctx context.Context, method, path string, payload, target interface{}) error {
	headers := map[string]string{"Authorization": "Bearer " + a.Token}

	var env envelope
	var err error
	if method == http.MethodGet {
		err = a.GetJSON(ctx, a.APIURL+path, headers, &env)
	} else {
		err = a.PostJSON(ctx, a.APIURL+path, headers, payload, &env)
	}
	if err != nil {
		return err
	}

	if env.Status != "ok" {
		return providers.NewAPIError("API_ERROR", fmt.Sprintf("GoFile %s returned status: %s", path, env.Status), nil)
	}
	if target != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, target); err != nil {
			return providers.NewAPIError("JSON_PARSE_ERROR", "failed to parse API response", err)
		}
	}
	return nil
}
