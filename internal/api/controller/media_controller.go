package controller

import (
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bassista/go_gallery/internal/api/middleware"
	"github.com/bassista/go_gallery/internal/logger"
	"github.com/bassista/go_gallery/internal/media"
)

// MediaController accepts photo uploads for later use in a create.
type MediaController struct {
	store    media.Store
	maxBytes int64
}

func NewMediaController(store media.Store, maxBytes int64) *MediaController {
	return &MediaController{store: store, maxBytes: maxBytes}
}

// Upload handles POST /media with a multipart "file" part and returns its mediaRef.
func (mc *MediaController) Upload(c *gin.Context) {
	log := logger.WithComponent("media-controller")
	id := middleware.Identity(c)
	if id.IsZero() {
		abortUnauthorized(c)
		return
	}
	if mc.maxBytes > 0 {
		// multipart framing adds a little on top of the file itself
		limit := mc.maxBytes + 64<<10
		if c.Request.ContentLength > limit {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	}

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
			return
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing file"})
		return
	}
	if mc.maxBytes > 0 && fh.Size > mc.maxBytes {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}

	f, err := fh.Open()
	if err != nil {
		abortInternal(c, log, "open upload", err)
		return
	}
	defer f.Close()

	contentType, err := detectContentType(fh.Header.Get("Content-Type"), f)
	if err != nil {
		abortInternal(c, log, "sniff upload", err)
		return
	}

	ref, err := mc.store.Put(c.Request.Context(), id.UserID, contentType, f, fh.Size)
	switch {
	case errors.Is(err, media.ErrUnsupportedType):
		c.AbortWithStatusJSON(http.StatusUnsupportedMediaType, gin.H{"error": "unsupported media type"})
		return
	case errors.Is(err, media.ErrTooLarge):
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	case err != nil:
		abortInternal(c, log, "store upload", err)
		return
	}

	log.Debugf("stored %s (%d bytes) for %s", ref, fh.Size, id.UserID)
	c.JSON(http.StatusCreated, gin.H{"mediaRef": ref})
}

// sniffable lists declared types the content sniffer recognizes; for these the
// bytes must agree with the declaration.
var sniffable = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
	"image/bmp":  true,
}

// detectContentType sniffs the first bytes and uses the result whenever the sniffer
// identifies the content. The declared part type is only used for content the
// sniffer cannot tell apart, and never for a type it would have recognized.
// The reader is rewound.
func detectContentType(declared string, r io.ReadSeeker) (string, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return "", err
	}

	const unknown = "application/octet-stream"
	sniffed, _, _ := mime.ParseMediaType(http.DetectContentType(head[:n]))
	if sniffed != "" && sniffed != unknown {
		return sniffed, nil
	}
	if mt, _, err := mime.ParseMediaType(declared); err == nil && !sniffable[mt] {
		return mt, nil
	}
	return unknown, nil
}
