package handlers

import (
	"fmt"
	"net/http"

	"github.com/andresuchdata/tutorstore/internal/archive"
	"github.com/andresuchdata/tutorstore/internal/gateway"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type DownloadHandler struct {
	gateway  *gateway.Gateway
	streamer *archive.Streamer
}

func NewDownloadHandler(gw *gateway.Gateway, streamer *archive.Streamer) *DownloadHandler {
	return &DownloadHandler{gateway: gw, streamer: streamer}
}

// IssueGrant returns a signed read URL. isPreview=true renders inline with a
// guessed content type.
func (h *DownloadHandler) IssueGrant(c *gin.Context) {
	key := keyParam(c)
	preview := c.Query("isPreview") == "true"

	downloadURL, err := h.gateway.IssueDownloadGrant(c.Request.Context(), key, c.Query("fileName"), preview)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"downloadUrl": downloadURL,
		"key":         key,
	})
}

type folderRequest struct {
	FolderName string   `json:"folderName"`
	FileKeys   []string `json:"fileKeys"`
}

// Folder streams a ZIP of the requested keys. Keys that could not be
// fetched are listed in the archive.FailedKeysTrailer trailer.
func (h *DownloadHandler) Folder(c *gin.Context) {
	var req folderRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.FileKeys) == 0 {
		badRequest(c, "fileKeys array is required and must not be empty")
		return
	}
	if err := h.gateway.Ready(); err != nil {
		writeError(c, err)
		return
	}
	if req.FolderName == "" {
		req.FolderName = "folder"
	}

	c.Header("Content-Type", "application/zip")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.zip"`, req.FolderName))
	c.Header("Trailer", archive.FailedKeysTrailer)
	c.Status(http.StatusOK)

	res, err := h.streamer.BuildArchive(c.Request.Context(), req.FileKeys, c.Writer)
	if err != nil {
		// The status line is already on the wire; all we can do is log.
		log.Error().Err(err).Str("folder", req.FolderName).Msg("archive stream aborted")
		return
	}
	c.Writer.Header().Set(archive.FailedKeysTrailer, archive.EncodeFailedKeys(res.FailedKeys()))
}
