package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/andresuchdata/tutorstore/internal/archive"
	"github.com/andresuchdata/tutorstore/internal/gateway"
	"github.com/andresuchdata/tutorstore/internal/metrics"
	"github.com/andresuchdata/tutorstore/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/zip"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	router *gin.Engine
	store  *storage.MemoryStore
}

func newTestEnv(t *testing.T, hasCredentials bool) *testEnv {
	t.Helper()
	store := storage.NewMemoryStore()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	gw := gateway.New(store, gateway.Config{
		Bucket:         "tutor-support",
		Region:         "ap-southeast-2",
		GrantTTL:       time.Hour,
		HasCredentials: hasCredentials,
	}, gateway.WithMetrics(m))

	router := NewRouter(&Services{
		Gateway:        gw,
		Archive:        archive.NewStreamer(store, m),
		Metrics:        reg,
		MaxUploadBytes: 1 << 20,
	}, nil)
	return &testEnv{router: router, store: store}
}

func (e *testEnv) do(t *testing.T, method, target string, body []byte, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, true)
	rec := env.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])
}

func TestPresignedURL(t *testing.T) {
	env := newTestEnv(t, true)

	rec := env.do(t, http.MethodPost, "/api/upload/presigned-url",
		[]byte(`{"fileName":"lecture.pdf","fileType":"application/pdf"}`), "application/json")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	key := body["key"].(string)
	assert.Regexp(t, regexp.MustCompile(`^course-files/\d{13}-lecture\.pdf$`), key)
	assert.Equal(t, "https://tutor-support.s3.ap-southeast-2.amazonaws.com/"+key, body["url"])
	assert.Equal(t, float64(3600), body["expiresIn"])
	assert.NotEmpty(t, body["presignedUrl"])
}

func TestPresignedURL_Validation(t *testing.T) {
	env := newTestEnv(t, true)

	rec := env.do(t, http.MethodPost, "/api/upload/presigned-url", []byte(`{"fileName":"a.pdf"}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "fileName and fileType are required", decode(t, rec)["error"])
}

func TestPresignedURL_NotConfigured(t *testing.T) {
	env := newTestEnv(t, false)

	rec := env.do(t, http.MethodPost, "/api/upload/presigned-url",
		[]byte(`{"fileName":"a.pdf","fileType":"application/pdf"}`), "application/json")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "credentials")
}

func TestUploadRoutes_ConfiguredDefaultFolder(t *testing.T) {
	store := storage.NewMemoryStore()
	gw := gateway.New(store, gateway.Config{Bucket: "tutor-support", Region: "ap-southeast-2", HasCredentials: true})
	router := NewRouter(&Services{Gateway: gw, DefaultFolder: "handouts"}, nil)
	env := &testEnv{router: router, store: store}

	rec := env.do(t, http.MethodPost, "/api/upload/presigned-url",
		[]byte(`{"fileName":"a.pdf","fileType":"application/pdf"}`), "application/json")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(decode(t, rec)["key"].(string), "handouts/"))

	body, ct := multipartBody(t, "notes.txt", "text/plain", []byte("hello"), "")
	rec = env.do(t, http.MethodPost, "/api/upload/file", body, ct)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, strings.HasPrefix(decode(t, rec)["key"].(string), "handouts/"))
}

func multipartBody(t *testing.T, fileName, contentType string, data []byte, folder string) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if folder != "" {
		require.NoError(t, mw.WriteField("folder", folder))
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+fileName+`"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return buf.Bytes(), mw.FormDataContentType()
}

func TestUploadFile(t *testing.T) {
	env := newTestEnv(t, true)

	body, ct := multipartBody(t, "notes.txt", "text/plain", []byte("hello"), "private-storage")
	rec := env.do(t, http.MethodPost, "/api/upload/file", body, ct)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode(t, rec)
	assert.Equal(t, true, resp["success"])
	key := resp["key"].(string)
	assert.True(t, strings.HasPrefix(key, "private-storage/"))

	obj, ok := env.store.Object(key)
	require.True(t, ok)
	assert.Equal(t, "hello", string(obj.Data))
	assert.Equal(t, "text/plain", obj.ContentType)
}

func TestUploadFile_Missing(t *testing.T) {
	env := newTestEnv(t, true)
	rec := env.do(t, http.MethodPost, "/api/upload/file", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No file uploaded", decode(t, rec)["error"])
}

func TestDeleteEncodedKey(t *testing.T) {
	env := newTestEnv(t, true)
	require.NoError(t, env.store.PutObject(context.Background(), "uploads/1-a b.txt", strings.NewReader("a"), 1, ""))

	target := "/api/upload/" + url.PathEscape("uploads/1-a b.txt")
	rec := env.do(t, http.MethodDelete, target, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"success": true, "key": "uploads/1-a b.txt"}, decode(t, rec))
	assert.Empty(t, env.store.Keys())

	rec = env.do(t, http.MethodDelete, target, nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCanonicalURLRoute(t *testing.T) {
	env := newTestEnv(t, true)
	rec := env.do(t, http.MethodGet, "/api/upload/url/uploads%2F1-a.txt", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "uploads/1-a.txt", body["key"])
	assert.Equal(t, "https://tutor-support.s3.ap-southeast-2.amazonaws.com/uploads/1-a.txt", body["url"])
}

func TestDownloadGrant(t *testing.T) {
	env := newTestEnv(t, true)

	rec := env.do(t, http.MethodGet, "/api/download/course-files%2F1-lecture.pdf?isPreview=true", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "course-files/1-lecture.pdf", body["key"])

	u, err := url.Parse(body["downloadUrl"].(string))
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", u.Query().Get("response-content-type"))
	assert.Equal(t, `inline; filename="1-lecture.pdf"`, u.Query().Get("response-content-disposition"))

	rec = env.do(t, http.MethodGet, "/api/download/course-files%2F1-lecture.pdf?fileName=Lecture.pdf", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	u, err = url.Parse(decode(t, rec)["downloadUrl"].(string))
	require.NoError(t, err)
	assert.Equal(t, "application/octet-stream", u.Query().Get("response-content-type"))
	assert.Equal(t, `attachment; filename="Lecture.pdf"`, u.Query().Get("response-content-disposition"))
}

func TestFolderArchive(t *testing.T) {
	env := newTestEnv(t, true)
	require.NoError(t, env.store.PutObject(context.Background(), "uploads/1-a.txt", strings.NewReader("alpha"), 5, "text/plain"))

	rec := env.do(t, http.MethodPost, "/api/download/folder",
		[]byte(`{"folderName":"Week 1","fileKeys":["uploads/1-a.txt","uploads/2-b.txt"]}`), "application/json")
	res := rec.Result()
	defer res.Body.Close()

	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "application/zip", res.Header.Get("Content-Type"))
	assert.Equal(t, `attachment; filename="Week 1.zip"`, res.Header.Get("Content-Disposition"))
	assert.Equal(t, []string{"uploads/2-b.txt"}, archive.DecodeFailedKeys(res.Trailer.Get(archive.FailedKeysTrailer)))

	data := rec.Body.Bytes()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	require.Len(t, zr.File, 1)
	assert.Equal(t, "1-a.txt", zr.File[0].Name)
}

func TestFolderArchive_Validation(t *testing.T) {
	env := newTestEnv(t, true)
	rec := env.do(t, http.MethodPost, "/api/download/folder", []byte(`{"fileKeys":[]}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, true)
	env.do(t, http.MethodGet, "/api/download/a%2Fb.txt", nil, "")

	rec := env.do(t, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `tutorstore_gateway_operations_total{operation="presign_get",status="ok"} 1`)
}

func TestNormalizeAllowedOrigins(t *testing.T) {
	origins, all := normalizeAllowedOrigins([]string{"http://a.test, http://b.test", " "})
	assert.False(t, all)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, origins)

	_, all = normalizeAllowedOrigins([]string{"*"})
	assert.True(t, all)
}
