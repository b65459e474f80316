package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/andresuchdata/tutorstore/internal/archive"
	"github.com/andresuchdata/tutorstore/internal/gateway"
)

// APIError is a non-2xx response from the gateway service or a signed URL.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway returned %d: %s", e.StatusCode, e.Message)
}

// Client talks to the gateway HTTP service.
type Client struct {
	baseURL string
	http    *http.Client
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RequestUploadGrant asks for a signed write URL.
func (c *Client) RequestUploadGrant(ctx context.Context, fileName, contentType, folder string) (gateway.UploadGrant, error) {
	payload := map[string]string{"fileName": fileName, "fileType": contentType}
	if folder != "" {
		payload["folder"] = folder
	}
	var grant gateway.UploadGrant
	if err := c.doJSON(ctx, http.MethodPost, "/api/upload/presigned-url", payload, &grant); err != nil {
		return gateway.UploadGrant{}, err
	}
	return grant, nil
}

// PutToGrant sends body to a signed write URL. The Content-Type must match
// the one the grant was issued for.
func (c *Client) PutToGrant(ctx context.Context, grantURL string, body io.Reader, size int64, contentType string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, grantURL, body)
	if err != nil {
		return fmt.Errorf("build put request: %w", err)
	}
	req.ContentLength = size
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("put to grant: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return readAPIError(resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// UploadFile streams body as the multipart "file" field of a proxy upload.
func (c *Client) UploadFile(ctx context.Context, body io.Reader, size int64, fileName, contentType, folder string) (gateway.UploadResult, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		err := writeMultipart(mw, body, fileName, contentType, folder)
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/upload/file", pr)
	if err != nil {
		pr.Close()
		return gateway.UploadResult{}, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		pr.CloseWithError(err)
		return gateway.UploadResult{}, fmt.Errorf("upload %s: %w", fileName, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return gateway.UploadResult{}, readAPIError(resp)
	}

	var out struct {
		Success bool   `json:"success"`
		Key     string `json:"key"`
		URL     string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return gateway.UploadResult{}, fmt.Errorf("decode upload response: %w", err)
	}
	return gateway.UploadResult{Key: out.Key, CanonicalURL: out.URL}, nil
}

func writeMultipart(mw *multipart.Writer, body io.Reader, fileName, contentType, folder string) error {
	if folder != "" {
		if err := mw.WriteField("folder", folder); err != nil {
			return err
		}
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(fileName)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, body); err != nil {
		return err
	}
	return mw.Close()
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

// DeleteObject removes key from the store. Missing keys are not an error.
func (c *Client) DeleteObject(ctx context.Context, key string) error {
	var res gateway.DeleteResult
	return c.doJSON(ctx, http.MethodDelete, "/api/upload/"+url.PathEscape(key), nil, &res)
}

// CanonicalURL resolves the permanent address of key.
func (c *Client) CanonicalURL(ctx context.Context, key string) (string, error) {
	var out struct {
		URL string `json:"url"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/upload/url/"+url.PathEscape(key), nil, &out); err != nil {
		return "", err
	}
	return out.URL, nil
}

// DownloadURL requests a signed read URL for key.
func (c *Client) DownloadURL(ctx context.Context, key, fileName string, preview bool) (string, error) {
	q := url.Values{}
	if fileName != "" {
		q.Set("fileName", fileName)
	}
	if preview {
		q.Set("isPreview", "true")
	}
	path := "/api/download/" + url.PathEscape(key)
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out struct {
		DownloadURL string `json:"downloadUrl"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return "", err
	}
	return out.DownloadURL, nil
}

// DownloadFolder streams a ZIP of keys into w and returns the keys the
// server could not include.
func (c *Client) DownloadFolder(ctx context.Context, folderName string, keys []string, w io.Writer) ([]string, error) {
	payload, err := json.Marshal(map[string]any{"folderName": folderName, "fileKeys": keys})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/download/folder", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build archive request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download folder: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, readAPIError(resp)
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		return nil, fmt.Errorf("read archive: %w", err)
	}
	// Trailers are only populated once the body has been fully read.
	return archive.DecodeFailedKeys(resp.Trailer.Get(archive.FailedKeysTrailer)), nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return readAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func readAPIError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var payload struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(data))
	if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
		msg = payload.Error
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}
