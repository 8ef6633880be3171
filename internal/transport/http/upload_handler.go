package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ImageStore persists uploaded images and returns their public URL.
type ImageStore interface {
	Upload(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error)
}

type uploadHandler struct {
	images   ImageStore
	maxBytes int64
	resp     responder
}

func newUploadHandler(images ImageStore, maxBytes int64, resp responder) *uploadHandler {
	return &uploadHandler{images: images, maxBytes: maxBytes, resp: resp}
}

func (h *uploadHandler) register(rg *gin.RouterGroup) {
	rg.POST("/images", h.uploadImage)
}

type uploadResult struct {
	URL string `json:"url"`
}

func (h *uploadHandler) uploadImage(c *gin.Context) {
	header, err := c.FormFile("image")
	if err != nil {
		h.resp.badRequest(c, "Image file is required", err)
		return
	}
	if header.Size > h.maxBytes {
		c.JSON(http.StatusBadRequest, envelope{
			Message: fmt.Sprintf("Image must not exceed %d MB", h.maxBytes>>20),
		})
		return
	}
	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		c.JSON(http.StatusBadRequest, envelope{Message: "Only image files are allowed"})
		return
	}

	file, err := header.Open()
	if err != nil {
		h.resp.fail(c, err, "Server error while uploading image")
		return
	}
	defer file.Close()

	name := uuid.NewString() + strings.ToLower(filepath.Ext(header.Filename))
	url, err := h.images.Upload(c.Request.Context(), name, file, header.Size, contentType)
	if err != nil {
		h.resp.fail(c, err, "Server error while uploading image")
		return
	}
	okCreated(c, "Image uploaded successfully", uploadResult{URL: url})
}
