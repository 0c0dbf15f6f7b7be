package main

import (
	"database/sql"
	"fmt"
	"log"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"github.com/inkpress/account-service/config"
	"github.com/inkpress/account-service/pkg/helpers"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := sql.Open("pgx", cfg.PostgresDSN())
	if err != nil {
		log.Fatalf("failed to open db: %v", err)
	}
	defer func() { _ = db.Close() }()

	email := "demo@inkpress.dev"
	password := "password123"
	fullname := "Demo Writer"
	hash, err := helpers.HashPassword(password)
	if err != nil {
		log.Fatalf("failed to hash password: %v", err)
	}

	var id string
	err = db.QueryRow(`
		INSERT INTO users (fullname, email, password)
		VALUES ($1, $2, $3)
		ON CONFLICT (email) DO UPDATE SET fullname = EXCLUDED.fullname
		RETURNING id
	`, fullname, email, hash).Scan(&id)
	if err != nil {
		log.Fatalf("failed to seed user: %v", err)
	}
	fmt.Printf("seeded user: id=%s email=%s password=%s\n", id, email, password)

	var postID string
	err = db.QueryRow(`
		INSERT INTO posts (user_id, title, description)
		VALUES ($1, 'Hello, Inkpress', 'A first post so profiles have something to show.')
		RETURNING id
	`, id).Scan(&postID)
	if err != nil {
		log.Fatalf("failed to seed post: %v", err)
	}

	if _, err := db.Exec(`
		INSERT INTO comments (user_id, post_id, message)
		VALUES ($1, $2, 'And a first comment to go with it.')
	`, id, postID); err != nil {
		log.Fatalf("failed to seed comment: %v", err)
	}
	fmt.Printf("seeded post %s with one comment\n", postID)
}
