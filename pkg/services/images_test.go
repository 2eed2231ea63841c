package services

import (
	"context"
	"testing"
	"time"

	"medsoc-cms/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageRepository(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "media@example.org")
	repo := NewImageRepository(db)
	ctx := context.Background()
	base := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	newImage := func(id, url string, at time.Time) *models.Image {
		return &models.Image{
			ID: id, Filename: "shared.jpg", OriginalName: id + ".jpg", MimeType: "image/jpeg",
			Size: 10, URL: url, UploadedBy: user.ID, CreatedAt: at,
		}
	}
	require.NoError(t, repo.Create(ctx, newImage("older", "/uploads/shared.jpg", base)))
	require.NoError(t, repo.Create(ctx, newImage("newer", "https://cdn.example.org/shared.jpg", base.Add(time.Minute))))

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "newer", list[0].ID)
	assert.Equal(t, "older", list[1].ID)

	n, err := repo.CountByFilename(ctx, "shared.jpg")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	deleted, err := repo.Delete(ctx, "older")
	require.NoError(t, err)
	assert.Equal(t, "/uploads/shared.jpg", deleted.URL)

	n, err = repo.CountByFilename(ctx, "shared.jpg")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "a row with a different URL still holds the blob key")

	_, err = repo.Get(ctx, "older")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.Delete(ctx, "older")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestImageRepositoryUnknownArticle(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "media@example.org")
	repo := NewImageRepository(db)
	missing := "no-such-article"

	err := repo.Create(context.Background(), &models.Image{
		ID: "i1", Filename: "a.jpg", OriginalName: "a.jpg", MimeType: "image/jpeg",
		URL: "/uploads/a.jpg", ArticleID: &missing, UploadedBy: user.ID, CreatedAt: time.Now(),
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "article not found", verr.Message)
}
