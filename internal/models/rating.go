package models

import (
	"time"
)

// RatingType is the kind of a rating row. The empty value means "no rating".
type RatingType string

const (
	RatingNone    RatingType = ""
	RatingLike    RatingType = "Like"
	RatingDislike RatingType = "Dislike"
)

// Valid reports whether t is one of the known rating states, including none.
func (t RatingType) Valid() bool {
	switch t {
	case RatingNone, RatingLike, RatingDislike:
		return true
	}
	return false
}

// CounterField is the rating cache hash field counting this type.
func (t RatingType) CounterField() string {
	switch t {
	case RatingLike:
		return "likes"
	case RatingDislike:
		return "dislikes"
	}
	return ""
}

// PostRating records one user's rating of one post. At most one row exists
// per (post_id, user_id); no row means the user has not rated the post.
type PostRating struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	PostID    uint       `gorm:"not null;uniqueIndex:idx_post_ratings_post_user" json:"post_id"`
	Post      *Post      `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
	UserID    uint       `gorm:"not null;uniqueIndex:idx_post_ratings_post_user;index" json:"user_id"`
	Type      RatingType `gorm:"type:varchar(16);not null" json:"type"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// RatingCount is one row of the grouped (post_id, type) count aggregate.
type RatingCount struct {
	PostID uint
	Type   RatingType
	Count  int64
}
