package models

import "time"

// IconTypes lists the icons a news card may carry.
var IconTypes = []string{"calendar", "award", "users", "book", "globe", "stethoscope"}

const (
	DefaultCategory     = "news"
	DefaultIconType     = "calendar"
	DefaultGradientFrom = "from-blue-500"
	DefaultGradientTo   = "to-cyan-500"
)

// Article is a bilingual news item. Mongolian and English fields are always
// filled together.
type Article struct {
	ID            string     `json:"id" gorm:"primaryKey;size:36"`
	TitleMn       string     `json:"title_mn" gorm:"not null"`
	TitleEn       string     `json:"title_en" gorm:"not null"`
	ExcerptMn     string     `json:"excerpt_mn" gorm:"not null"`
	ExcerptEn     string     `json:"excerpt_en" gorm:"not null"`
	ContentMn     string     `json:"content_mn" gorm:"type:text;not null"`
	ContentEn     string     `json:"content_en" gorm:"type:text;not null"`
	Slug          string     `json:"slug" gorm:"size:255;not null;uniqueIndex"`
	Category      string     `json:"category" gorm:"size:64;not null;index"`
	FeaturedImage *string    `json:"featured_image"`
	IconType      string     `json:"icon_type" gorm:"size:32;not null"`
	GradientFrom  string     `json:"gradient_from" gorm:"size:64;not null"`
	GradientTo    string     `json:"gradient_to" gorm:"size:64;not null"`
	Published     bool       `json:"published" gorm:"not null;index"`
	PublishedAt   *time.Time `json:"published_at"`
	AuthorID      string     `json:"author_id" gorm:"size:36;not null;index"`
	Author        *User      `json:"-" gorm:"foreignKey:AuthorID;constraint:OnDelete:RESTRICT"`
	Images        []Image    `json:"images,omitempty" gorm:"foreignKey:ArticleID;constraint:OnDelete:RESTRICT"`
	CreatedAt     time.Time  `json:"created_at" gorm:"index"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Title picks the title for lang, falling back to Mongolian.
func (a *Article) Title(lang string) string {
	if lang == "en" {
		return a.TitleEn
	}
	return a.TitleMn
}

func (a *Article) Excerpt(lang string) string {
	if lang == "en" {
		return a.ExcerptEn
	}
	return a.ExcerptMn
}

func (a *Article) Content(lang string) string {
	if lang == "en" {
		return a.ContentEn
	}
	return a.ContentMn
}
