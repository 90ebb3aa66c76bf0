package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultHTTPTimeout = 10 * time.Second
	httpTimeoutEnvKey  = "CODEDROP_HTTP_TIMEOUT"

	// UploadField is the multipart field carrying files.
	UploadField = "files"
)

// UploadPart is one file streamed by UploadFiles.
type UploadPart struct {
	Filename string
	Content  io.Reader
}

// Download is an open file body returned by the API.
type Download struct {
	Body        io.ReadCloser
	Filename    string
	ContentType string
	Length      int64
	Checksum    string
}

// Client is a simple HTTP client for the codedrop API.
type Client struct {
	baseURL string
	http    *http.Client
	// stream has no overall timeout; uploads and downloads are bounded by ctx.
	stream *http.Client
}

// NewClient creates a new API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: httpTimeoutFromEnv()},
		stream:  &http.Client{},
	}
}

// Ping checks whether the API server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

func (c *Client) GetInfo(ctx context.Context) (InfoResponse, error) {
	var resp InfoResponse
	err := c.do(ctx, http.MethodGet, "/v1/info", nil, &resp)
	return resp, err
}

// ReserveCode asks the server for a fresh fetch code.
func (c *Client) ReserveCode(ctx context.Context) (CodeResponse, error) {
	var resp CodeResponse
	err := c.do(ctx, http.MethodPost, "/v1/codes", nil, &resp)
	return resp, err
}

// UploadFiles streams parts as one multipart batch under code.
func (c *Client) UploadFiles(ctx context.Context, code string, parts []UploadPart) (UploadResponse, error) {
	var resp UploadResponse

	pr, pw := io.Pipe()
	defer pr.Close()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeParts(mw, parts))
	}()

	endpoint := c.baseURL + codeFilesPath(code)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, pr)
	if err != nil {
		return resp, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	httpResp, err := c.stream.Do(req)
	if err != nil {
		return resp, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode >= 400 {
		return resp, decodeError(httpResp)
	}
	err = json.NewDecoder(httpResp.Body).Decode(&resp)
	return resp, err
}

func writeParts(mw *multipart.Writer, parts []UploadPart) error {
	for _, part := range parts {
		fw, err := mw.CreateFormFile(UploadField, part.Filename)
		if err != nil {
			return err
		}
		if _, err := io.Copy(fw, part.Content); err != nil {
			return fmt.Errorf("read %s: %w", part.Filename, err)
		}
	}
	return mw.Close()
}

// ListFiles lists the files stored under code.
func (c *Client) ListFiles(ctx context.Context, code string) (ListResponse, error) {
	var resp ListResponse
	err := c.do(ctx, http.MethodGet, codeFilesPath(code), nil, &resp)
	return resp, err
}

// Download opens a file body. The caller closes Body.
func (c *Client) Download(ctx context.Context, id string) (*Download, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/files/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}

	return &Download{
		Body:        resp.Body,
		Filename:    dispositionFilename(resp.Header.Get("Content-Disposition")),
		ContentType: resp.Header.Get("Content-Type"),
		Length:      resp.ContentLength,
		Checksum:    resp.Header.Get("X-Checksum"),
	}, nil
}

// DeleteFile removes one file.
func (c *Client) DeleteFile(ctx context.Context, id string) (DeleteFileResponse, error) {
	var resp DeleteFileResponse
	err := c.do(ctx, http.MethodDelete, "/v1/files/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// DeleteByCode removes every file under code and cancels an upload still in flight.
func (c *Client) DeleteByCode(ctx context.Context, code string) (DeleteCodeResponse, error) {
	var resp DeleteCodeResponse
	err := c.do(ctx, http.MethodDelete, codeFilesPath(code), nil, &resp)
	return resp, err
}

// Sweep runs one expiry sweep on the server.
func (c *Client) Sweep(ctx context.Context) (SweepResponse, error) {
	var resp SweepResponse
	err := c.do(ctx, http.MethodPost, "/v1/admin/sweep", nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}

	if out == nil {
		return nil
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(resp *http.Response) error {
	var errResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error != "" {
		return &APIError{Status: resp.StatusCode, Code: errResp.Code, ErrorCode: errResp.ErrorCode, Message: errResp.Error}
	}
	return &APIError{Status: resp.StatusCode, Message: fmt.Sprintf("api error: %s", resp.Status)}
}

func codeFilesPath(code string) string {
	return "/v1/codes/" + url.PathEscape(strings.TrimSpace(code)) + "/files"
}

func dispositionFilename(header string) string {
	if header == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	return params["filename"]
}

func httpTimeoutFromEnv() time.Duration {
	value := strings.TrimSpace(os.Getenv(httpTimeoutEnvKey))
	if value == "" {
		return defaultHTTPTimeout
	}

	if duration, err := time.ParseDuration(value); err == nil && duration > 0 {
		return duration
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	return defaultHTTPTimeout
}
