package domain

import "time"

type Post struct {
	PostID        string          `json:"id" dynamodbav:"post_id"`
	AuthorID      string          `json:"user_id" dynamodbav:"author_id"`
	Content       string          `json:"content" dynamodbav:"content"`
	ImageURL      *string         `json:"image_url" dynamodbav:"image_url,omitempty"`
	ImageBase64   *string         `json:"image_base64" dynamodbav:"image_base64,omitempty"`
	LikesCount    int             `json:"likes_count" dynamodbav:"likes_count"`
	CommentsCount int             `json:"comments_count" dynamodbav:"comments_count"`
	Feed          string          `json:"-" dynamodbav:"feed"`
	CreatedAt     time.Time       `json:"created_at" dynamodbav:"created_at"`
	Author        *ProfileSummary `json:"author,omitempty" dynamodbav:"-"`
}

// FeedGlobal is the partition every post is indexed under for the feed GSI.
const FeedGlobal = "global"

type CreatePostRequest struct {
	Content string `json:"content" validate:"max=2000"`
	// Image is an optional data URI (data:image/...;base64,...).
	Image string `json:"image"`
}
