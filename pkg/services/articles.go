package services

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path"
	"strings"
	"time"

	"medsoc-cms/pkg/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	SlugReject = "reject"
	SlugSuffix = "suffix"
)

// ArticleFilter narrows List. Zero Limit means no limit.
type ArticleFilter struct {
	PublishedOnly bool
	Category      string
	Limit         int
	Offset        int
}

// ImageDescriptor is an already uploaded file to attach to an article.
type ImageDescriptor struct {
	URL          string `json:"url" validate:"required"`
	OriginalName string `json:"original_name"`
	Alt          string `json:"alt"`
	MimeType     string `json:"mime_type"`
	Size         int64  `json:"size" validate:"gte=0"`
}

// ArticleInput is the payload of Create and Update. AuthorID is filled from
// the acting identity, never from the request body.
type ArticleInput struct {
	TitleMn       string            `json:"title_mn" validate:"required"`
	TitleEn       string            `json:"title_en" validate:"required"`
	ExcerptMn     string            `json:"excerpt_mn" validate:"required"`
	ExcerptEn     string            `json:"excerpt_en" validate:"required"`
	ContentMn     string            `json:"content_mn" validate:"required"`
	ContentEn     string            `json:"content_en" validate:"required"`
	Category      string            `json:"category" validate:"max=64"`
	FeaturedImage *string           `json:"featured_image"`
	IconType      string            `json:"icon_type" validate:"omitempty,oneof=calendar award users book globe stethoscope"`
	GradientFrom  string            `json:"gradient_from" validate:"max=64"`
	GradientTo    string            `json:"gradient_to" validate:"max=64"`
	Published     bool              `json:"published"`
	Images        []ImageDescriptor `json:"images" validate:"dive"`
	AuthorID      string            `json:"-"`
}

func (in *ArticleInput) normalize() {
	for _, f := range []*string{
		&in.TitleMn, &in.TitleEn, &in.ExcerptMn, &in.ExcerptEn, &in.ContentMn, &in.ContentEn,
		&in.Category, &in.IconType, &in.GradientFrom, &in.GradientTo, &in.AuthorID,
	} {
		*f = strings.TrimSpace(*f)
	}
	// Categories become path segments on export, so they are kept as slugs.
	if c := Slugify(in.Category); c != "" {
		in.Category = c
	}
	if in.FeaturedImage != nil {
		if v := strings.TrimSpace(*in.FeaturedImage); v == "" {
			in.FeaturedImage = nil
		} else {
			in.FeaturedImage = &v
		}
	}
	for i := range in.Images {
		in.Images[i].URL = strings.TrimSpace(in.Images[i].URL)
		in.Images[i].Alt = strings.TrimSpace(in.Images[i].Alt)
	}
}

// ArticlePolicy holds the site-level choices the repository applies.
type ArticlePolicy struct {
	SlugCollision              string
	UnpublishClearsPublishedAt bool
	DefaultIcon                string
	GradientFrom               string
	GradientTo                 string
}

func (p ArticlePolicy) withDefaults() ArticlePolicy {
	if p.SlugCollision == "" {
		p.SlugCollision = SlugReject
	}
	if p.DefaultIcon == "" {
		p.DefaultIcon = models.DefaultIconType
	}
	if p.GradientFrom == "" {
		p.GradientFrom = models.DefaultGradientFrom
	}
	if p.GradientTo == "" {
		p.GradientTo = models.DefaultGradientTo
	}
	return p
}

// ArticleRepository implements ArticleStore with GORM. Every write that
// touches both articles and images runs inside one transaction.
type ArticleRepository struct {
	db     *gorm.DB
	policy ArticlePolicy
	now    func() time.Time
}

func NewArticleRepository(db *gorm.DB, policy ArticlePolicy) *ArticleRepository {
	return &ArticleRepository{
		db:     db,
		policy: policy.withDefaults(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (r *ArticleRepository) session(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Session(&gorm.Session{NowFunc: r.now})
}

func (r *ArticleRepository) List(ctx context.Context, filter ArticleFilter) ([]models.Article, error) {
	q := r.session(ctx).Model(&models.Article{})
	if filter.PublishedOnly {
		q = q.Where("published = ?", true)
	}
	if filter.Category != "" {
		q = q.Where("category = ?", filter.Category)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	articles := make([]models.Article, 0)
	if err := q.Order("created_at DESC").Order("id DESC").Find(&articles).Error; err != nil {
		return nil, &DatabaseError{Op: "list articles", Err: err}
	}
	return articles, nil
}

func (r *ArticleRepository) Get(ctx context.Context, id string) (*models.Article, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *ArticleRepository) GetBySlug(ctx context.Context, slug string) (*models.Article, error) {
	return r.findOne(ctx, "slug = ?", slug)
}

func (r *ArticleRepository) findOne(ctx context.Context, cond string, arg string) (*models.Article, error) {
	var article models.Article
	err := r.session(ctx).
		Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC").Order("id ASC") }).
		Where(cond, arg).
		First(&article).Error
	if err != nil {
		return nil, classify("get article", err)
	}
	if article.Images == nil {
		article.Images = []models.Image{}
	}
	return &article, nil
}

func (r *ArticleRepository) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	if err := r.session(ctx).Model(&models.Article{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, &DatabaseError{Op: "check article", Err: err}
	}
	return count > 0, nil
}

func (r *ArticleRepository) Create(ctx context.Context, in ArticleInput) (*models.Article, error) {
	in.normalize()
	if err := validateArticleInput(in); err != nil {
		return nil, err
	}
	slug := Slugify(in.TitleEn)
	if slug == "" {
		return nil, validationf("title_en must contain at least one latin letter or digit")
	}

	now := r.now()
	article := &models.Article{
		ID:            uuid.NewString(),
		TitleMn:       in.TitleMn,
		TitleEn:       in.TitleEn,
		ExcerptMn:     in.ExcerptMn,
		ExcerptEn:     in.ExcerptEn,
		ContentMn:     in.ContentMn,
		ContentEn:     in.ContentEn,
		Category:      firstNonEmpty(in.Category, models.DefaultCategory),
		FeaturedImage: in.FeaturedImage,
		IconType:      firstNonEmpty(in.IconType, r.policy.DefaultIcon),
		GradientFrom:  firstNonEmpty(in.GradientFrom, r.policy.GradientFrom),
		GradientTo:    firstNonEmpty(in.GradientTo, r.policy.GradientTo),
		Published:     in.Published,
		AuthorID:      in.AuthorID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if in.Published {
		publishedAt := now
		article.PublishedAt = &publishedAt
	}

	err := r.inTx(ctx, "create article", func(tx *gorm.DB) error {
		resolved, err := r.resolveSlug(tx, slug)
		if err != nil {
			return err
		}
		article.Slug = resolved

		if err := tx.Omit(clause.Associations).Create(article).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return &ConflictError{Field: "slug", Value: article.Slug}
			}
			if errors.Is(err, gorm.ErrForeignKeyViolated) {
				return validationf("author does not exist")
			}
			return &DatabaseError{Op: "insert article", Err: err}
		}
		return r.attachImages(tx, article.ID, in.AuthorID, in.Images, now)
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{"article_id": article.ID, "slug": article.Slug, "images": len(in.Images)}).Info("article created")
	return article, nil
}

func (r *ArticleRepository) Update(ctx context.Context, id string, in ArticleInput) (*models.Article, error) {
	in.normalize()
	if err := validateArticleInput(in); err != nil {
		return nil, err
	}

	var article models.Article
	err := r.inTx(ctx, "update article", func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&article).Error; err != nil {
			return classify("load article", err)
		}

		now := r.now()
		article.TitleMn = in.TitleMn
		article.TitleEn = in.TitleEn
		article.ExcerptMn = in.ExcerptMn
		article.ExcerptEn = in.ExcerptEn
		article.ContentMn = in.ContentMn
		article.ContentEn = in.ContentEn
		article.FeaturedImage = in.FeaturedImage
		if in.Category != "" {
			article.Category = in.Category
		}
		if in.IconType != "" {
			article.IconType = in.IconType
		}
		if in.GradientFrom != "" {
			article.GradientFrom = in.GradientFrom
		}
		if in.GradientTo != "" {
			article.GradientTo = in.GradientTo
		}

		switch {
		case in.Published && !article.Published:
			publishedAt := now
			article.PublishedAt = &publishedAt
		case !in.Published && article.Published && r.policy.UnpublishClearsPublishedAt:
			article.PublishedAt = nil
		}
		article.Published = in.Published
		article.UpdatedAt = now

		if err := tx.Omit(clause.Associations).Save(&article).Error; err != nil {
			return &DatabaseError{Op: "save article", Err: err}
		}
		return r.attachImages(tx, article.ID, in.AuthorID, in.Images, now)
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{"article_id": article.ID, "published": article.Published}).Info("article updated")
	return &article, nil
}

func (r *ArticleRepository) Delete(ctx context.Context, id string) ([]models.Image, error) {
	images := make([]models.Image, 0)
	err := r.inTx(ctx, "delete article", func(tx *gorm.DB) error {
		var article models.Article
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").Where("id = ?", id).First(&article).Error; err != nil {
			return classify("load article", err)
		}
		if err := tx.Where("article_id = ?", id).Find(&images).Error; err != nil {
			return &DatabaseError{Op: "load images", Err: err}
		}
		if err := tx.Where("article_id = ?", id).Delete(&models.Image{}).Error; err != nil {
			return &DatabaseError{Op: "delete images", Err: err}
		}
		res := tx.Where("id = ?", id).Delete(&models.Article{})
		if res.Error != nil {
			return &DatabaseError{Op: "delete article", Err: res.Error}
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{"article_id": id, "images": len(images)}).Info("article deleted")
	return images, nil
}

// resolveSlug applies the collision policy to base.
func (r *ArticleRepository) resolveSlug(tx *gorm.DB, base string) (string, error) {
	candidate := base
	for n := 2; ; n++ {
		var count int64
		if err := tx.Model(&models.Article{}).Where("slug = ?", candidate).Count(&count).Error; err != nil {
			return "", &DatabaseError{Op: "check slug", Err: err}
		}
		if count == 0 {
			return candidate, nil
		}
		if r.policy.SlugCollision != SlugSuffix {
			return "", &ConflictError{Field: "slug", Value: base}
		}
		candidate = fmt.Sprintf("%s-%d", base, n)
	}
}

func (r *ArticleRepository) attachImages(tx *gorm.DB, articleID, uploaderID string, descriptors []ImageDescriptor, now time.Time) error {
	if len(descriptors) == 0 {
		return nil
	}
	rows := make([]models.Image, 0, len(descriptors))
	for i, d := range descriptors {
		filename := path.Base(d.URL)
		rows = append(rows, models.Image{
			ID:           uuid.NewString(),
			Filename:     filename,
			OriginalName: firstNonEmpty(d.OriginalName, filename),
			MimeType:     firstNonEmpty(d.MimeType, mime.TypeByExtension(path.Ext(filename)), "application/octet-stream"),
			Size:         d.Size,
			URL:          d.URL,
			Alt:          optional(d.Alt),
			ArticleID:    &articleID,
			UploadedBy:   uploaderID,
			// Keep gallery order stable for the oldest-first read.
			CreatedAt: now.Add(time.Duration(i) * time.Microsecond),
		})
	}
	if err := tx.Omit(clause.Associations).Create(&rows).Error; err != nil {
		return &DatabaseError{Op: "insert images", Err: err}
	}
	return nil
}

// inTx runs fn inside an explicit transaction. fn's error is returned as is
// after rollback.
func (r *ArticleRepository) inTx(ctx context.Context, op string, fn func(tx *gorm.DB) error) (err error) {
	tx := r.session(ctx).Begin()
	if tx.Error != nil {
		return &DatabaseError{Op: op + ": begin", Err: tx.Error}
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback().Error; rbErr != nil {
			logrus.WithError(rbErr).WithField("op", op).Warn("rollback failed")
		}
		return err
	}
	if err := tx.Commit().Error; err != nil {
		return &DatabaseError{Op: op + ": commit", Err: err}
	}
	return nil
}

func classify(op string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return &DatabaseError{Op: op, Err: err}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
