package entity

import "time"

// Post is authored by a User. Ownership lives here; User only carries a
// back-reference resolved at query time.
type Post struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}
