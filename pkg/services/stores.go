package services

//go:generate mockgen -destination=../mocks/stores_mock.go -package=mocks medsoc-cms/pkg/services ArticleStore,ImageStore,UserStore,BlobStore,ImageProcessor

import (
	"context"

	"medsoc-cms/pkg/models"
)

// ArticleStore is the article repository contract used by the HTTP layer.
type ArticleStore interface {
	List(ctx context.Context, filter ArticleFilter) ([]models.Article, error)
	Get(ctx context.Context, id string) (*models.Article, error)
	GetBySlug(ctx context.Context, slug string) (*models.Article, error)
	Exists(ctx context.Context, id string) (bool, error)
	Create(ctx context.Context, in ArticleInput) (*models.Article, error)
	Update(ctx context.Context, id string, in ArticleInput) (*models.Article, error)
	// Delete removes the article and its images and returns the removed images.
	Delete(ctx context.Context, id string) ([]models.Image, error)
}

// ImageStore persists image metadata rows.
type ImageStore interface {
	Create(ctx context.Context, img *models.Image) error
	List(ctx context.Context) ([]models.Image, error)
	Get(ctx context.Context, id string) (*models.Image, error)
	Delete(ctx context.Context, id string) (*models.Image, error)
	// CountByFilename reports how many rows still reference the blob key.
	CountByFilename(ctx context.Context, filename string) (int64, error)
}

// UserStore abstracts user persistence.
type UserStore interface {
	// FindByEmail returns the user with that email, or ErrNotFound.
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, u *models.User) error
}

// BlobStore keeps uploaded bytes and hands back a public URL.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

// ImageProcessor shrinks an image to fit maxW x maxH and re-encodes it as JPEG.
type ImageProcessor interface {
	ResizeAndReencode(data []byte, maxW, maxH, quality int) ([]byte, error)
}
