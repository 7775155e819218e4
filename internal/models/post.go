// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// Post is an authored feed entry. ViewsBaseline is the view count as of the
// last successful sync. It only ever grows.
type Post struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	AuthorID      uint       `gorm:"not null;index" json:"author_id"`
	Author        *User      `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Content       string     `gorm:"type:text;not null" json:"content"`
	ViewsBaseline int64      `gorm:"column:views;not null;default:0" json:"-"`
	CreatedAt     time.Time  `gorm:"index" json:"created_at"`
	EditedAt      *time.Time `json:"edited_at,omitempty"`
}

// Baseline returns the pair the stats reader needs for this post.
func (p *Post) Baseline() PostBaseline {
	return PostBaseline{PostID: p.ID, Views: p.ViewsBaseline}
}

// PostBaseline is a post id together with its durable view baseline.
type PostBaseline struct {
	PostID uint
	Views  int64
}

// PostStats is the displayed counter triple for a post.
type PostStats struct {
	Likes    int64 `json:"likes"`
	Dislikes int64 `json:"dislikes"`
	Views    int64 `json:"views"`
}

// PostWithStats is the API shape of a post: the row plus its live counters.
type PostWithStats struct {
	Post
	PostStats
}
