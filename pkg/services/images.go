package services

import (
	"context"
	"errors"

	"medsoc-cms/pkg/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ImageRepository implements ImageStore with GORM.
type ImageRepository struct {
	db *gorm.DB
}

func NewImageRepository(db *gorm.DB) *ImageRepository {
	return &ImageRepository{db: db}
}

func (r *ImageRepository) Create(ctx context.Context, img *models.Image) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(img).Error; err != nil {
		if errors.Is(err, gorm.ErrForeignKeyViolated) {
			return validationf("article not found")
		}
		return &DatabaseError{Op: "insert image", Err: err}
	}
	return nil
}

// List returns every image, newest first.
func (r *ImageRepository) List(ctx context.Context) ([]models.Image, error) {
	images := make([]models.Image, 0)
	if err := r.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").Find(&images).Error; err != nil {
		return nil, &DatabaseError{Op: "list images", Err: err}
	}
	return images, nil
}

func (r *ImageRepository) Get(ctx context.Context, id string) (*models.Image, error) {
	var img models.Image
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&img).Error; err != nil {
		return nil, classify("get image", err)
	}
	return &img, nil
}

func (r *ImageRepository) Delete(ctx context.Context, id string) (*models.Image, error) {
	var img models.Image
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&img).Error; err != nil {
			return classify("get image", err)
		}
		if err := tx.Delete(&models.Image{}, "id = ?", id).Error; err != nil {
			return &DatabaseError{Op: "delete image", Err: err}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &img, nil
}

// CountByFilename counts rows whose blob key is filename, whatever URL they
// were recorded under.
func (r *ImageRepository) CountByFilename(ctx context.Context, filename string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Image{}).Where("filename = ?", filename).Count(&count).Error; err != nil {
		return 0, &DatabaseError{Op: "count images", Err: err}
	}
	return count, nil
}
