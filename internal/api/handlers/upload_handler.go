package handlers

import (
	"io"
	"net/http"

	"github.com/andresuchdata/tutorstore/internal/gateway"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const defaultUploadFolder = "course-files"

type UploadHandler struct {
	gateway        *gateway.Gateway
	maxUploadBytes int64
	defaultFolder  string
}

// NewUploadHandler builds the upload routes' handler. Requests without a
// folder go to defaultFolder, or course-files when that is empty.
func NewUploadHandler(gw *gateway.Gateway, maxUploadBytes int64, defaultFolder string) *UploadHandler {
	if defaultFolder == "" {
		defaultFolder = defaultUploadFolder
	}
	return &UploadHandler{gateway: gw, maxUploadBytes: maxUploadBytes, defaultFolder: defaultFolder}
}

type presignRequest struct {
	FileName string `json:"fileName"`
	FileType string `json:"fileType"`
	Folder   string `json:"folder"`
}

// IssueGrant returns a signed write URL for a new key.
func (h *UploadHandler) IssueGrant(c *gin.Context) {
	var req presignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if req.Folder == "" {
		req.Folder = h.defaultFolder
	}

	grant, err := h.gateway.IssueUploadGrant(c.Request.Context(), req.FileName, req.FileType, req.Folder)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, grant)
}

// UploadFile buffers the multipart "file" field and writes it to the store.
func (h *UploadHandler) UploadFile(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "No file uploaded")
		return
	}
	if h.maxUploadBytes > 0 && fh.Size > h.maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file exceeds the upload size limit"})
		return
	}

	f, err := fh.Open()
	if err != nil {
		log.Error().Err(err).Str("filename", fh.Filename).Msg("failed to open uploaded file")
		badRequest(c, "invalid form data")
		return
	}
	defer f.Close()

	body, err := io.ReadAll(f)
	if err != nil {
		log.Error().Err(err).Str("filename", fh.Filename).Msg("failed to read uploaded file")
		badRequest(c, "invalid form data")
		return
	}

	folder := c.DefaultPostForm("folder", h.defaultFolder)
	contentType := fh.Header.Get("Content-Type")

	res, err := h.gateway.ProxyUpload(c.Request.Context(), body, fh.Filename, contentType, folder)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"key":     res.Key,
		"url":     res.CanonicalURL,
	})
}

// Delete removes an object. Missing objects are reported as deleted.
func (h *UploadHandler) Delete(c *gin.Context) {
	res, err := h.gateway.Delete(c.Request.Context(), keyParam(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// CanonicalURL returns the permanent address of a key without contacting
// the store.
func (h *UploadHandler) CanonicalURL(c *gin.Context) {
	key := keyParam(c)
	if key == "" {
		badRequest(c, "fileKey is required")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"url": h.gateway.CanonicalURL(key),
		"key": key,
	})
}
