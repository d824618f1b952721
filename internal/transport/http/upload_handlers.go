package http

import (
	"bufio"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/anonchat-server/internal/attachment"
)

// sniffLen covers what content type detection inspects.
const sniffLen = 3072

// UploadHandlers serves stored attachments.
type UploadHandlers struct {
	store attachment.Store
	log   *zerolog.Logger
}

// NewUploadHandlers creates a new upload handlers instance.
func NewUploadHandlers(st attachment.Store, logger *zerolog.Logger) *UploadHandlers {
	return &UploadHandlers{store: st, log: logger}
}

// Get streams a stored attachment.
// GET /uploads/:name
func (h *UploadHandlers) Get(c *gin.Context) {
	name := c.Param("name")

	rc, err := h.store.Open(c.Request.Context(), name)
	if err != nil {
		if errors.Is(err, attachment.ErrNotFound) || errors.Is(err, attachment.ErrInvalidName) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found"})
			return
		}
		h.log.Error().Err(err).Str("file", name).Msg("failed to open attachment")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	defer rc.Close()

	br := bufio.NewReaderSize(rc, sniffLen)
	head, err := br.Peek(sniffLen)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		h.log.Error().Err(err).Str("file", name).Msg("failed to read attachment")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.Header("Cache-Control", "public, max-age=31536000, immutable")
	c.DataFromReader(http.StatusOK, -1, attachment.DetectContentType(head), br, nil)
}
