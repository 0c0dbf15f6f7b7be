package entity

import "time"

// Comment is authored by a User on a Post.
type Comment struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	PostID    string    `json:"postId"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}
