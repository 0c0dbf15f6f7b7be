package entity

import "time"

// User is the aggregate root for the account domain.
// Password always holds a bcrypt hash; plaintext is never persisted.
type User struct {
	ID           string    `json:"id"`
	Fullname     string    `json:"fullname"`
	Email        string    `json:"email"`
	Password     string    `json:"password"`
	ProfileImage string    `json:"profileImage,omitempty"`
	CoverImage   string    `json:"coverImage,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Profile is a User with its authored posts and comments expanded into full
// records rather than bare ids.
type Profile struct {
	User
	Posts    []Post    `json:"posts"`
	Comments []Comment `json:"comments"`
}
