package handlers

import (
	"errors"
	"net/http"

	"medsoc-cms/pkg/services"

	"github.com/gin-gonic/gin"
)

// maxUploadBody caps the multipart body; the file itself is limited by the
// uploader.
const maxUploadBody = services.MaxUploadSize + 2<<20

func (h *Handler) ListMedia(c *gin.Context) {
	images, err := h.Images.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, images)
}

func (h *Handler) UploadMedia(c *gin.Context) {
	who := CurrentIdentity(c)
	if who == nil {
		respondError(c, services.ErrUnauthorized)
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBody)
	req := services.UploadRequest{
		ArticleID: c.PostForm("articleId"),
		Alt:       c.PostForm("alt"),
	}

	file, err := c.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "too large"})
			return
		}
	} else {
		src, err := file.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no file"})
			return
		}
		defer src.Close()

		req.Filename = file.Filename
		req.ContentType = file.Header.Get("Content-Type")
		req.Size = file.Size
		req.Body = src
	}

	img, err := h.Uploader.Upload(c.Request.Context(), who, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, img)
}

func (h *Handler) DeleteMedia(c *gin.Context) {
	if err := h.Uploader.Remove(c.Request.Context(), CurrentIdentity(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
