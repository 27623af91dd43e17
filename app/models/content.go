package models

import "time"

// Subject, Chapter and Topic form the static learning-content catalog.
// Content is admin-seeded; the API only reads it.

type Subject struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(150);not null" json:"name"`
	Position  int       `gorm:"not null;default:0;index" json:"position"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type Chapter struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	SubjectID uint      `gorm:"not null;index" json:"subjectId"`
	Name      string    `gorm:"type:varchar(150);not null" json:"name"`
	Position  int       `gorm:"not null;default:0;index" json:"position"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type Topic struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ChapterID uint      `gorm:"not null;index" json:"chapterId"`
	Name      string    `gorm:"type:varchar(150);not null" json:"name"`
	Position  int       `gorm:"not null;default:0;index" json:"position"`
	Content   string    `gorm:"type:longtext" json:"content,omitempty"`
	IsPremium bool      `gorm:"not null;default:false;index" json:"isPremium"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
