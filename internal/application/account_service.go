package application

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/inkpress/account-service/internal/domain/entity"
	repo "github.com/inkpress/account-service/internal/domain/repository"
	"github.com/inkpress/account-service/pkg/apperr"
	"github.com/inkpress/account-service/pkg/helpers"
	"github.com/inkpress/account-service/pkg/mailer"
)

// Service implements the account operations. Redis, GCS, ES, and the
// publisher are optional collaborators; a nil value degrades the related
// feature, never the core operation.
type Service struct {
	Repo         repo.UserRepository
	JWT          *helpers.JWTManager
	GCS          *storage.Client
	GCSBucket    string
	Redis        *redis.Client
	Logger       *logrus.Logger
	ES           *elasticsearch.Client
	ESUsersIndex string
	Pub          *helpers.RabbitPublisher
	AppName      string
}

type TokenPair struct {
	AccessToken        string
	AccessTokenExpiry  time.Time
	RefreshToken       string
	RefreshTokenExpiry time.Time
}

func sessionKey(userID string) string {
	return "user:session:" + userID
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func NewService(r repo.UserRepository, jwt *helpers.JWTManager, gcs *storage.Client, gcsBucket string, rdb *redis.Client, logger *logrus.Logger, es *elasticsearch.Client, esUsersIndex string, pub *helpers.RabbitPublisher, appName string) *Service {
	return &Service{
		Repo:         r,
		JWT:          jwt,
		GCS:          gcs,
		GCSBucket:    gcsBucket,
		Redis:        rdb,
		Logger:       logger,
		ES:           es,
		ESUsersIndex: esUsersIndex,
		Pub:          pub,
		AppName:      appName,
	}
}

// Register creates a user with a bcrypt-hashed credential. The email
// pre-check is a fast path only; the unique constraint on the insert is the
// authoritative duplicate signal.
func (s *Service) Register(ctx context.Context, fullname, email, password string) (*entity.User, error) {
	if fullname == "" || email == "" || password == "" {
		return nil, apperr.Validation("all fields are required")
	}

	if existing, err := s.Repo.GetByEmail(ctx, email); err == nil && existing != nil {
		return nil, apperr.Conflict("user already exists")
	} else if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return nil, apperr.Internal("lookup user failed", err)
	}

	hash, err := helpers.HashPassword(password)
	if err != nil {
		return nil, apperr.Internal("hash password failed", err)
	}

	u := &entity.User{Fullname: fullname, Email: email, Password: hash}
	if err := s.Repo.Create(ctx, u); err != nil {
		if errors.Is(err, repo.ErrEmailTaken) {
			return nil, apperr.Conflict("user already exists")
		}
		return nil, apperr.Internal("create user failed", err)
	}

	s.enqueueWelcomeEmail(ctx, u)
	_ = s.indexUser(ctx, u)
	return u, nil
}

// Authenticate validates email/password and returns the user. Unknown email
// and wrong password are deliberately indistinguishable.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*entity.User, error) {
	if email == "" || password == "" {
		return nil, apperr.Validation("email and password fields are required")
	}
	u, err := s.Repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, apperr.Authentication("invalid login credentials")
		}
		return nil, apperr.Internal("lookup user failed", err)
	}
	if !helpers.CompareHashAndPassword(u.Password, password) {
		return nil, apperr.Authentication("invalid login credentials")
	}
	return u, nil
}

// Login authenticates and establishes a session bound to the user's id.
func (s *Service) Login(ctx context.Context, email, password string) (*entity.User, TokenPair, error) {
	u, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return nil, TokenPair{}, err
	}
	pair, err := s.IssueTokens(ctx, u)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return u, pair, nil
}

// IssueTokens generates the access/refresh pair and records a session hash in
// Redis under a fresh session id.
func (s *Service) IssueTokens(ctx context.Context, u *entity.User) (TokenPair, error) {
	sid := uuid.NewString()
	access, aexp, err := s.JWT.GenerateAccessToken(u.ID, sid)
	if err != nil {
		return TokenPair{}, apperr.Internal("generate access token failed", err)
	}
	refresh, rexp, err := s.JWT.GenerateRefreshToken(u.ID, sid)
	if err != nil {
		return TokenPair{}, apperr.Internal("generate refresh token failed", err)
	}

	if s.Redis != nil {
		key := sessionKey(u.ID)
		pipe := s.Redis.Pipeline()
		pipe.HSet(ctx, key, map[string]any{
			"user_id":       u.ID,
			"email":         u.Email,
			"fullname":      u.Fullname,
			"profile_image": u.ProfileImage,
			"sid":           sid,
			"logged_in":     true,
			"created_at":    nowRFC3339(),
		})
		pipe.Expire(ctx, key, 24*time.Hour)
		if _, rErr := pipe.Exec(ctx); rErr != nil && s.Logger != nil {
			s.Logger.WithError(rErr).WithField("key", key).Warn("redis pipeline failed")
		}
	}

	return TokenPair{AccessToken: access, AccessTokenExpiry: aexp, RefreshToken: refresh, RefreshTokenExpiry: rexp}, nil
}

// Refresh rotates the session id and token pair after validating the refresh
// token against the current session.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, string, error) {
	claims, err := s.JWT.ParseRefreshToken(refreshToken)
	if err != nil {
		return TokenPair{}, "", apperr.Authentication("invalid refresh token")
	}
	u, err := s.Repo.GetByID(ctx, claims.UserID)
	if err != nil {
		return TokenPair{}, "", apperr.Authentication("invalid refresh token")
	}
	if s.Redis != nil {
		data, rErr := s.Redis.HGetAll(ctx, sessionKey(u.ID)).Result()
		if rErr != nil || len(data) == 0 || data["sid"] != claims.SessionID {
			return TokenPair{}, "", apperr.Authentication("invalid refresh token")
		}
	}
	pair, err := s.IssueTokens(ctx, u)
	if err != nil {
		return TokenPair{}, "", err
	}
	return pair, u.ID, nil
}

// Logout removes the server-side session state for the user.
func (s *Service) Logout(ctx context.Context, userID string) error {
	if s.Redis == nil {
		return nil
	}
	if err := s.Redis.Del(ctx, sessionKey(userID)).Err(); err != nil && s.Logger != nil {
		s.Logger.WithError(err).WithField("user_id", userID).Warn("delete session failed")
	}
	return nil
}

// GetProfile returns the user with posts and comments expanded.
func (s *Service) GetProfile(ctx context.Context, userID string) (*entity.Profile, error) {
	p, err := s.Repo.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, apperr.Internal("load profile failed", err)
	}
	return p, nil
}

// GetUserByID returns a user without relation expansion.
func (s *Service) GetUserByID(ctx context.Context, id string) (*entity.User, error) {
	u, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, apperr.Internal("lookup user failed", err)
	}
	return u, nil
}

// ImageKind selects which image field an upload targets.
type ImageKind int

const (
	ProfileImage ImageKind = iota
	CoverImage
)

func (k ImageKind) prefix() string {
	if k == CoverImage {
		return "cover-images"
	}
	return "profile-images"
}

// UpdateImage uploads the file to object storage and stores the resulting
// URL on the user record.
func (s *Service) UpdateImage(ctx context.Context, userID string, kind ImageKind, r io.Reader, filename, contentType string) (*entity.User, error) {
	if _, err := s.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}
	url, err := s.uploadImage(ctx, userID, kind, r, filename, contentType)
	if err != nil {
		return nil, apperr.Internal("image upload failed", err)
	}

	patch := repo.UserPatch{}
	if kind == CoverImage {
		patch.CoverImage = &url
	} else {
		patch.ProfileImage = &url
	}
	u, err := s.Repo.UpdateFields(ctx, userID, patch)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, apperr.Internal("update user failed", err)
	}

	if s.Redis != nil && kind == ProfileImage {
		s.Redis.HSet(ctx, sessionKey(u.ID), map[string]any{
			"profile_image": u.ProfileImage,
			"updated_at":    nowRFC3339(),
		})
	}
	_ = s.indexUser(ctx, u)
	return u, nil
}

func (s *Service) uploadImage(ctx context.Context, userID string, kind ImageKind, r io.Reader, filename, contentType string) (string, error) {
	if s.GCS == nil || s.GCSBucket == "" {
		return "", errors.New("object storage not configured")
	}
	id := uuid.NewString()
	ext := strings.ToLower(filepath.Ext(filename))
	objectPath := filepath.ToSlash(filepath.Join(kind.prefix(), userID, id+ext))
	return helpers.UploadObject(ctx, s.GCS, s.GCSBucket, objectPath, contentType, r)
}

// UpdatePassword hashes and stores a new credential for the target user.
func (s *Service) UpdatePassword(ctx context.Context, targetUserID, newPassword string) (*entity.User, error) {
	if newPassword == "" {
		return nil, apperr.Validation("password field is required")
	}
	hash, err := helpers.HashPassword(newPassword)
	if err != nil {
		return nil, apperr.Internal("hash password failed", err)
	}
	u, err := s.Repo.UpdateFields(ctx, targetUserID, repo.UserPatch{Password: &hash})
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, apperr.Internal("update password failed", err)
	}
	return u, nil
}

// UpdateProfileInput carries optional profile changes; empty fields are left
// unchanged.
type UpdateProfileInput struct {
	Fullname string
	Email    string
}

// UpdateProfile applies whichever of fullname/email were supplied. A taken
// email belonging to another user is a conflict; the unique constraint on the
// write remains the authoritative check.
func (s *Service) UpdateProfile(ctx context.Context, targetUserID string, in UpdateProfileInput) (*entity.User, error) {
	if in.Fullname == "" && in.Email == "" {
		return nil, apperr.Validation("nothing to update")
	}

	patch := repo.UserPatch{}
	if in.Fullname != "" {
		patch.Fullname = &in.Fullname
	}
	if in.Email != "" {
		if other, err := s.Repo.GetByEmail(ctx, in.Email); err == nil && other != nil && other.ID != targetUserID {
			return nil, apperr.Conflict("email is taken")
		} else if err != nil && !errors.Is(err, repo.ErrNotFound) {
			return nil, apperr.Internal("lookup user failed", err)
		}
		patch.Email = &in.Email
	}

	u, err := s.Repo.UpdateFields(ctx, targetUserID, patch)
	if err != nil {
		switch {
		case errors.Is(err, repo.ErrNotFound):
			return nil, apperr.NotFound("user not found")
		case errors.Is(err, repo.ErrEmailTaken):
			return nil, apperr.Conflict("email is taken")
		}
		return nil, apperr.Internal("update user failed", err)
	}

	if s.Redis != nil {
		key := sessionKey(u.ID)
		pipe := s.Redis.Pipeline()
		pipe.HSet(ctx, key, map[string]any{
			"fullname":   u.Fullname,
			"email":      u.Email,
			"updated_at": nowRFC3339(),
		})
		if ttl, tErr := s.Redis.TTL(ctx, key).Result(); tErr == nil && ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		if _, pErr := pipe.Exec(ctx); pErr != nil && s.Logger != nil {
			s.Logger.WithError(pErr).WithField("key", key).Warn("redis pipeline failed")
		}
	}

	_ = s.indexUser(ctx, u)
	return u, nil
}

func (s *Service) enqueueWelcomeEmail(ctx context.Context, u *entity.User) {
	if s.Pub == nil {
		return
	}
	job := mailer.EmailJob{
		To:       u.Email,
		Template: mailer.TemplateWelcome,
		Data: map[string]any{
			"AppName":  s.AppName,
			"Fullname": u.Fullname,
			"Email":    u.Email,
		},
	}
	if err := s.Pub.PublishJSON(ctx, job); err != nil && s.Logger != nil {
		s.Logger.WithError(err).WithField("user_id", u.ID).Warn("enqueue welcome email failed")
	}
}

func (s *Service) indexUser(ctx context.Context, u *entity.User) error {
	if s.ES == nil || s.ESUsersIndex == "" {
		return nil
	}
	doc := map[string]any{
		"id":            u.ID,
		"email":         u.Email,
		"fullname":      u.Fullname,
		"profile_image": u.ProfileImage,
		"created_at":    u.CreatedAt.Format(time.RFC3339Nano),
		"updated_at":    u.UpdatedAt.Format(time.RFC3339Nano),
	}
	b, _ := json.Marshal(doc)
	req := esapi.IndexRequest{Index: s.ESUsersIndex, DocumentID: u.ID, Body: strings.NewReader(string(b)), Refresh: "false"}
	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := req.Do(c, s.ES)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", u.ID).Warn("es index failed")
		}
		return err
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() && s.Logger != nil {
		s.Logger.WithField("status", res.Status()).WithField("user_id", u.ID).Warn("es index response error")
	}
	return nil
}

// SearchUsers performs a multi_match search on email and fullname.
func (s *Service) SearchUsers(ctx context.Context, q string, size int) ([]map[string]any, error) {
	if s.ES == nil || s.ESUsersIndex == "" {
		return []map[string]any{}, nil
	}
	if size <= 0 || size > 50 {
		size = 10
	}
	query := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":  q,
				"fields": []string{"email^2", "fullname"},
			},
		},
		"size": size,
	}
	b, _ := json.Marshal(query)

	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := s.ES.Search(
		s.ES.Search.WithContext(c),
		s.ES.Search.WithIndex(s.ESUsersIndex),
		s.ES.Search.WithBody(strings.NewReader(string(b))),
	)
	if err != nil {
		return nil, apperr.Internal("search failed", err)
	}
	defer func() { _ = res.Body.Close() }()

	var parsed struct {
		Hits struct {
			Hits []struct {
				ID     string         `json:"_id"`
				Source map[string]any `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, apperr.Internal("decode search response failed", err)
	}

	out := make([]map[string]any, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		out = append(out, h.Source)
	}
	return out, nil
}
