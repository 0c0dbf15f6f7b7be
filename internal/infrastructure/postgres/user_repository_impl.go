package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inkpress/account-service/internal/domain/entity"
	"github.com/inkpress/account-service/internal/domain/repository"
)

const uniqueViolation = "23505"

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

const userColumns = `id, fullname, email, password,
	COALESCE(profile_image, ''), COALESCE(cover_image, ''), created_at, updated_at`

func scanUser(row pgx.Row) (*entity.User, error) {
	u := &entity.User{}
	err := row.Scan(&u.ID, &u.Fullname, &u.Email, &u.Password,
		&u.ProfileImage, &u.CoverImage, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

func (r *UserRepository) Create(ctx context.Context, u *entity.User) error {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (fullname, email, password)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`, u.Fullname, u.Email, u.Password)

	if err := row.Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return repository.ErrEmailTaken
		}
		return err
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	if uuid.Validate(id) != nil {
		return nil, repository.ErrNotFound
	}
	return scanUser(r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1
	`, id))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE email = $1
	`, email))
}

func (r *UserRepository) GetProfile(ctx context.Context, id string) (*entity.Profile, error) {
	u, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	p := &entity.Profile{User: *u, Posts: []entity.Post{}, Comments: []entity.Comment{}}

	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, title, description, created_at
		FROM posts
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var post entity.Post
		if err := rows.Scan(&post.ID, &post.UserID, &post.Title, &post.Description, &post.CreatedAt); err != nil {
			return nil, err
		}
		p.Posts = append(p.Posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	crows, err := r.pool.Query(ctx, `
		SELECT id, user_id, post_id, message, created_at
		FROM comments
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, id)
	if err != nil {
		return nil, err
	}
	defer crows.Close()
	for crows.Next() {
		var cm entity.Comment
		if err := crows.Scan(&cm.ID, &cm.UserID, &cm.PostID, &cm.Message, &cm.CreatedAt); err != nil {
			return nil, err
		}
		p.Comments = append(p.Comments, cm)
	}
	if err := crows.Err(); err != nil {
		return nil, err
	}

	return p, nil
}

func (r *UserRepository) UpdateFields(ctx context.Context, id string, patch repository.UserPatch) (*entity.User, error) {
	if uuid.Validate(id) != nil {
		return nil, repository.ErrNotFound
	}
	u, err := scanUser(r.pool.QueryRow(ctx, `
		UPDATE users
		SET fullname      = COALESCE($1, fullname),
		    email         = COALESCE($2, email),
		    password      = COALESCE($3, password),
		    profile_image = COALESCE($4, profile_image),
		    cover_image   = COALESCE($5, cover_image),
		    updated_at    = now()
		WHERE id = $6
		RETURNING `+userColumns+`
	`, patch.Fullname, patch.Email, patch.Password, patch.ProfileImage, patch.CoverImage, id))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, repository.ErrEmailTaken
		}
		return nil, err
	}
	return u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

var _ repository.UserRepository = (*UserRepository)(nil)
