package models

import "time"

// Image is the metadata record of an uploaded file. A nil ArticleID marks a
// library asset.
type Image struct {
	ID           string    `json:"id" gorm:"primaryKey;size:36"`
	Filename     string    `json:"filename" gorm:"size:255;not null;index"`
	OriginalName string    `json:"original_name" gorm:"size:255;not null"`
	MimeType     string    `json:"mime_type" gorm:"size:100;not null"`
	Size         int64     `json:"size" gorm:"not null"`
	URL          string    `json:"url" gorm:"not null"`
	Alt          *string   `json:"alt"`
	ArticleID    *string   `json:"article_id" gorm:"size:36;index"`
	UploadedBy   string    `json:"uploaded_by" gorm:"size:36;not null;index"`
	Uploader     *User     `json:"-" gorm:"foreignKey:UploadedBy;constraint:OnDelete:RESTRICT"`
	CreatedAt    time.Time `json:"created_at" gorm:"index"`
}
