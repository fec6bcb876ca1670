package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"budget-tracker-backend/internal/extract"
	"budget-tracker-backend/internal/logging"
)

// ExtractData accepts a multipart upload with "file" and "fileType" fields
// and returns the extracted transaction candidates.
func (h *Handler) ExtractData(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.opts.MaxUploadBytes)

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			fail(c, http.StatusBadRequest, fmt.Sprintf("file exceeds the %d MB upload limit", h.opts.MaxUploadBytes>>20), nil)
			return
		}
		fail(c, http.StatusBadRequest, "No file uploaded", nil)
		return
	}

	ft, err := extract.ParseFileType(c.PostForm("fileType"))
	if err != nil {
		h.respondError(c, err, "file")
		return
	}

	f, err := header.Open()
	if err != nil {
		h.respondError(c, fmt.Errorf("open upload: %w", err), "file")
		return
	}
	defer f.Close()

	ctx := c.Request.Context()
	h.logger.InfoContext(ctx, "extraction started", logging.FieldFileType, ft, "filename", header.Filename, "size", header.Size)
	records, err := h.extractor.Extract(ctx, ft, f)
	if err != nil {
		h.respondError(c, err, "file")
		return
	}
	if records == nil {
		records = []extract.Record{}
	}
	success(c, gin.H{"data": records})
}
