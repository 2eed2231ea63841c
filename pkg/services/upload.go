package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"medsoc-cms/pkg/models"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	MaxUploadSize  = 5 << 20
	MaxImageWidth  = 1200
	MaxImageHeight = 800
	JPEGQuality    = 85
)

// transcodable lists the sniffed types the processor can decode.
var transcodable = []string{"image/jpeg", "image/png", "image/gif", "image/webp", "image/bmp", "image/tiff"}

// UploadRequest is one file handed to Upload. A nil Body means no file was
// sent.
type UploadRequest struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
	ArticleID   string
	Alt         string
}

// Uploader validates, transforms and stores uploaded images and records one
// Image row per successful upload.
type Uploader struct {
	blobs       BlobStore
	images      ImageStore
	articles    interface{ Exists(ctx context.Context, id string) (bool, error) }
	processor   ImageProcessor
	concurrency int
	now         func() time.Time
}

func NewUploader(blobs BlobStore, images ImageStore, articles ArticleStore, processor ImageProcessor, purgeConcurrency int) *Uploader {
	if purgeConcurrency <= 0 {
		purgeConcurrency = 4
	}
	return &Uploader{
		blobs:       blobs,
		images:      images,
		articles:    articles,
		processor:   processor,
		concurrency: purgeConcurrency,
		now:         time.Now,
	}
}

func (u *Uploader) Upload(ctx context.Context, who *Identity, req UploadRequest) (*models.Image, error) {
	if who == nil {
		return nil, ErrUnauthorized
	}
	if req.Body == nil {
		return nil, validationf("no file")
	}
	if !strings.HasPrefix(strings.ToLower(req.ContentType), "image/") {
		return nil, validationf("unsupported type")
	}
	if req.Size > MaxUploadSize {
		return nil, validationf("too large")
	}

	data, err := io.ReadAll(io.LimitReader(req.Body, MaxUploadSize+1))
	if err != nil {
		return nil, validationf("could not read file")
	}
	if len(data) > MaxUploadSize {
		return nil, validationf("too large")
	}
	if len(data) == 0 {
		return nil, validationf("no file")
	}

	var articleID *string
	if id := strings.TrimSpace(req.ArticleID); id != "" {
		ok, err := u.articles.Exists(ctx, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, validationf("article not found")
		}
		articleID = &id
	}

	contentType := req.ContentType
	sniffed := mimetype.Detect(data)
	// Anything the processor cannot decode, SVG included, is stored untouched.
	if mimetype.EqualsAny(sniffed.String(), transcodable...) {
		processed, err := u.processor.ResizeAndReencode(data, MaxImageWidth, MaxImageHeight, JPEGQuality)
		if err != nil {
			return nil, validationf("image could not be decoded")
		}
		data = processed
		contentType = "image/jpeg"
	}

	key := u.filename(req.Filename, sniffed)
	url, err := u.blobs.Put(ctx, key, data, contentType)
	if err != nil {
		return nil, &StorageError{Op: "put " + key, Err: err}
	}

	img := &models.Image{
		ID:           uuid.NewString(),
		Filename:     key,
		OriginalName: originalName(req.Filename, key),
		MimeType:     contentType,
		Size:         int64(len(data)),
		URL:          url,
		Alt:          optional(strings.TrimSpace(req.Alt)),
		ArticleID:    articleID,
		UploadedBy:   who.UserID,
		CreatedAt:    u.now().UTC(),
	}
	if err := u.images.Create(ctx, img); err != nil {
		if delErr := u.blobs.Delete(ctx, key); delErr != nil {
			logrus.WithError(delErr).WithField("key", key).Warn("orphaned blob after failed insert")
		}
		var verr *ValidationError
		if errors.As(err, &verr) {
			return nil, err
		}
		return nil, &DatabaseError{Op: "record image", Err: err}
	}

	logrus.WithFields(logrus.Fields{"image_id": img.ID, "key": key, "size": img.Size, "user_id": who.UserID}).Info("image uploaded")
	return img, nil
}

// Remove deletes an image row and, when no other row shares its URL, the blob.
func (u *Uploader) Remove(ctx context.Context, who *Identity, id string) error {
	if who == nil {
		return ErrUnauthorized
	}
	img, err := u.images.Delete(ctx, id)
	if err != nil {
		return err
	}
	u.Purge(ctx, []models.Image{*img})
	return nil
}

// Purge removes the blobs whose key no remaining row references.
// Failures are logged; the rows are already gone.
func (u *Uploader) Purge(ctx context.Context, images []models.Image) {
	if len(images) == 0 {
		return
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.concurrency)
	for _, img := range images {
		g.Go(func() error {
			refs, err := u.images.CountByFilename(gctx, img.Filename)
			if err != nil {
				logrus.WithError(err).WithField("image_id", img.ID).Warn("skip blob purge")
				return nil
			}
			if refs > 0 {
				return nil
			}
			if err := u.blobs.Delete(gctx, img.Filename); err != nil {
				logrus.WithError(err).WithField("key", img.Filename).Warn("blob purge failed")
			}
			return nil
		})
	}
	_ = g.Wait()
}

// filename builds <unix millis>-<8 hex><ext>, keeping the original extension.
func (u *Uploader) filename(original string, sniffed *mimetype.MIME) string {
	ext := strings.ToLower(filepath.Ext(original))
	if !isSafeExt(ext) {
		ext = sniffed.Extension()
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%d-%s%s", u.now().UnixMilli(), suffix, ext)
}

func originalName(name, fallback string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		return fallback
	}
	return base
}

func isSafeExt(ext string) bool {
	if len(ext) < 2 || len(ext) > 6 || ext[0] != '.' {
		return false
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
