package application_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/inkpress/account-service/internal/application"
	"github.com/inkpress/account-service/internal/domain/entity"
	"github.com/inkpress/account-service/internal/domain/repository"
	"github.com/inkpress/account-service/pkg/apperr"
	"github.com/inkpress/account-service/pkg/helpers"
)

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, u *entity.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *MockUserRepository) GetProfile(ctx context.Context, id string) (*entity.Profile, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Profile), args.Error(1)
}

func (m *MockUserRepository) UpdateFields(ctx context.Context, id string, patch repository.UserPatch) (*entity.User, error) {
	args := m.Called(ctx, id, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func newTestService(repo repository.UserRepository) *application.Service {
	jwt := helpers.NewJWTManager("test-access", "test-refresh", time.Hour, 24*time.Hour)
	return application.NewService(repo, jwt, nil, "", nil, nil, nil, "", nil, "inkpress-test")
}

func hashOf(t *testing.T, plain string) string {
	t.Helper()
	h, err := helpers.HashPassword(plain)
	require.NoError(t, err)
	return h
}

func TestRegister(t *testing.T) {
	tests := []struct {
		name         string
		fullname     string
		email        string
		password     string
		setupMock    func(*MockUserRepository)
		expectedKind apperr.Kind
		wantErr      bool
	}{
		{
			name:     "successful registration",
			fullname: "Ana",
			email:    "ana@x.com",
			password: "secret1",
			setupMock: func(m *MockUserRepository) {
				m.On("GetByEmail", mock.Anything, "ana@x.com").Return(nil, repository.ErrNotFound)
				m.On("Create", mock.Anything, mock.AnythingOfType("*entity.User")).
					Run(func(args mock.Arguments) {
						u := args.Get(1).(*entity.User)
						u.ID = "8d6f5b2e-0f55-4f2e-9f10-0a57a7a3a001"
						u.CreatedAt = time.Now()
						u.UpdatedAt = u.CreatedAt
					}).
					Return(nil)
			},
		},
		{
			name:         "missing fields",
			fullname:     "",
			email:        "ana@x.com",
			password:     "secret1",
			setupMock:    func(m *MockUserRepository) {},
			wantErr:      true,
			expectedKind: apperr.KindValidation,
		},
		{
			name:     "duplicate email caught by pre-check",
			fullname: "Ana",
			email:    "ana@x.com",
			password: "secret1",
			setupMock: func(m *MockUserRepository) {
				m.On("GetByEmail", mock.Anything, "ana@x.com").
					Return(&entity.User{ID: "existing", Email: "ana@x.com"}, nil)
			},
			wantErr:      true,
			expectedKind: apperr.KindConflict,
		},
		{
			name:     "duplicate email caught by constraint",
			fullname: "Ana",
			email:    "ana@x.com",
			password: "secret1",
			setupMock: func(m *MockUserRepository) {
				m.On("GetByEmail", mock.Anything, "ana@x.com").Return(nil, repository.ErrNotFound)
				m.On("Create", mock.Anything, mock.AnythingOfType("*entity.User")).
					Return(repository.ErrEmailTaken)
			},
			wantErr:      true,
			expectedKind: apperr.KindConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockUserRepository)
			tt.setupMock(mockRepo)
			svc := newTestService(mockRepo)

			u, err := svc.Register(context.Background(), tt.fullname, tt.email, tt.password)

			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperr.IsKind(err, tt.expectedKind))
				assert.Nil(t, u)
			} else {
				require.NoError(t, err)
				require.NotNil(t, u)
				assert.Equal(t, tt.fullname, u.Fullname)
				assert.Equal(t, tt.email, u.Email)
				assert.NotEqual(t, tt.password, u.Password)
				assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(tt.password)))
			}
			mockRepo.AssertExpectations(t)
		})
	}
}

func TestRegister_DuplicateCreatesNothing(t *testing.T) {
	mockRepo := new(MockUserRepository)
	mockRepo.On("GetByEmail", mock.Anything, "ana@x.com").
		Return(&entity.User{ID: "existing", Email: "ana@x.com"}, nil)
	svc := newTestService(mockRepo)

	_, err := svc.Register(context.Background(), "Ana", "ana@x.com", "secret1")
	require.Error(t, err)
	mockRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestLogin(t *testing.T) {
	stored := &entity.User{
		ID:       "8d6f5b2e-0f55-4f2e-9f10-0a57a7a3a001",
		Fullname: "Ana",
		Email:    "ana@x.com",
	}

	t.Run("correct password succeeds", func(t *testing.T) {
		u := *stored
		u.Password = hashOf(t, "secret1")
		mockRepo := new(MockUserRepository)
		mockRepo.On("GetByEmail", mock.Anything, "ana@x.com").Return(&u, nil)
		svc := newTestService(mockRepo)

		got, pair, err := svc.Login(context.Background(), "ana@x.com", "secret1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, stored.ID, got.ID)
		assert.NotEqual(t, "secret1", got.Password)
		assert.NotEmpty(t, pair.AccessToken)
		assert.NotEmpty(t, pair.RefreshToken)
		mockRepo.AssertExpectations(t)
	})

	t.Run("wrong password fails without mutation", func(t *testing.T) {
		u := *stored
		u.Password = hashOf(t, "secret1")
		mockRepo := new(MockUserRepository)
		mockRepo.On("GetByEmail", mock.Anything, "ana@x.com").Return(&u, nil)
		svc := newTestService(mockRepo)

		got, _, err := svc.Login(context.Background(), "ana@x.com", "wrong")
		require.Error(t, err)
		assert.True(t, apperr.IsKind(err, apperr.KindAuthentication))
		assert.Nil(t, got)
		mockRepo.AssertNotCalled(t, "UpdateFields", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown email is indistinguishable from wrong password", func(t *testing.T) {
		mockRepo := new(MockUserRepository)
		mockRepo.On("GetByEmail", mock.Anything, "nobody@x.com").Return(nil, repository.ErrNotFound)
		svc := newTestService(mockRepo)

		_, _, err := svc.Login(context.Background(), "nobody@x.com", "secret1")
		require.Error(t, err)
		assert.True(t, apperr.IsKind(err, apperr.KindAuthentication))
	})

	t.Run("missing fields rejected before lookup", func(t *testing.T) {
		mockRepo := new(MockUserRepository)
		svc := newTestService(mockRepo)

		_, _, err := svc.Login(context.Background(), "", "secret1")
		require.Error(t, err)
		assert.True(t, apperr.IsKind(err, apperr.KindValidation))
		mockRepo.AssertNotCalled(t, "GetByEmail", mock.Anything, mock.Anything)
	})
}

func TestUpdatePassword(t *testing.T) {
	const uid = "8d6f5b2e-0f55-4f2e-9f10-0a57a7a3a001"

	t.Run("empty password rejected before hashing or store access", func(t *testing.T) {
		mockRepo := new(MockUserRepository)
		svc := newTestService(mockRepo)

		_, err := svc.UpdatePassword(context.Background(), uid, "")
		require.Error(t, err)
		assert.True(t, apperr.IsKind(err, apperr.KindValidation))
		mockRepo.AssertNotCalled(t, "UpdateFields", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("new password usable for login, old one rejected", func(t *testing.T) {
		var storedHash string
		mockRepo := new(MockUserRepository)
		mockRepo.On("UpdateFields", mock.Anything, uid, mock.MatchedBy(func(p repository.UserPatch) bool {
			return p.Password != nil && p.Fullname == nil && p.Email == nil
		})).Run(func(args mock.Arguments) {
			storedHash = *args.Get(2).(repository.UserPatch).Password
		}).Return(&entity.User{ID: uid, Email: "ana@x.com"}, nil)
		svc := newTestService(mockRepo)

		u, err := svc.UpdatePassword(context.Background(), uid, "newsecret")
		require.NoError(t, err)
		require.NotNil(t, u)

		assert.True(t, helpers.CompareHashAndPassword(storedHash, "newsecret"))
		assert.False(t, helpers.CompareHashAndPassword(storedHash, "secret1"))
		mockRepo.AssertExpectations(t)
	})

	t.Run("unknown target id", func(t *testing.T) {
		mockRepo := new(MockUserRepository)
		mockRepo.On("UpdateFields", mock.Anything, "missing", mock.Anything).
			Return(nil, repository.ErrNotFound)
		svc := newTestService(mockRepo)

		_, err := svc.UpdatePassword(context.Background(), "missing", "newsecret")
		require.Error(t, err)
		assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
	})
}

func TestUpdateProfile(t *testing.T) {
	const uid = "8d6f5b2e-0f55-4f2e-9f10-0a57a7a3a001"

	t.Run("fullname only leaves email untouched", func(t *testing.T) {
		mockRepo := new(MockUserRepository)
		mockRepo.On("UpdateFields", mock.Anything, uid, mock.MatchedBy(func(p repository.UserPatch) bool {
			return p.Fullname != nil && *p.Fullname == "Ana Maria" && p.Email == nil
		})).Return(&entity.User{ID: uid, Fullname: "Ana Maria", Email: "ana@x.com"}, nil)
		svc := newTestService(mockRepo)

		u, err := svc.UpdateProfile(context.Background(), uid, application.UpdateProfileInput{Fullname: "Ana Maria"})
		require.NoError(t, err)
		assert.Equal(t, "ana@x.com", u.Email)
		mockRepo.AssertExpectations(t)
		mockRepo.AssertNotCalled(t, "GetByEmail", mock.Anything, mock.Anything)
	})

	t.Run("email taken by another user", func(t *testing.T) {
		mockRepo := new(MockUserRepository)
		mockRepo.On("GetByEmail", mock.Anything, "taken@x.com").
			Return(&entity.User{ID: "someone-else", Email: "taken@x.com"}, nil)
		svc := newTestService(mockRepo)

		_, err := svc.UpdateProfile(context.Background(), uid, application.UpdateProfileInput{Email: "taken@x.com"})
		require.Error(t, err)
		assert.True(t, apperr.IsKind(err, apperr.KindConflict))
		mockRepo.AssertNotCalled(t, "UpdateFields", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("own email is not a conflict", func(t *testing.T) {
		mockRepo := new(MockUserRepository)
		mockRepo.On("GetByEmail", mock.Anything, "ana@x.com").
			Return(&entity.User{ID: uid, Email: "ana@x.com"}, nil)
		mockRepo.On("UpdateFields", mock.Anything, uid, mock.Anything).
			Return(&entity.User{ID: uid, Email: "ana@x.com"}, nil)
		svc := newTestService(mockRepo)

		_, err := svc.UpdateProfile(context.Background(), uid, application.UpdateProfileInput{Email: "ana@x.com"})
		require.NoError(t, err)
	})

	t.Run("constraint violation on write maps to conflict", func(t *testing.T) {
		mockRepo := new(MockUserRepository)
		mockRepo.On("GetByEmail", mock.Anything, "racy@x.com").Return(nil, repository.ErrNotFound)
		mockRepo.On("UpdateFields", mock.Anything, uid, mock.Anything).
			Return(nil, repository.ErrEmailTaken)
		svc := newTestService(mockRepo)

		_, err := svc.UpdateProfile(context.Background(), uid, application.UpdateProfileInput{Email: "racy@x.com"})
		require.Error(t, err)
		assert.True(t, apperr.IsKind(err, apperr.KindConflict))
	})

	t.Run("nothing to update", func(t *testing.T) {
		svc := newTestService(new(MockUserRepository))
		_, err := svc.UpdateProfile(context.Background(), uid, application.UpdateProfileInput{})
		require.Error(t, err)
		assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	})
}

func TestGetUserByID(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		mockRepo := new(MockUserRepository)
		mockRepo.On("GetByID", mock.Anything, "some-id").
			Return(&entity.User{ID: "some-id", Email: "ana@x.com"}, nil)
		svc := newTestService(mockRepo)

		u, err := svc.GetUserByID(context.Background(), "some-id")
		require.NoError(t, err)
		assert.Equal(t, "some-id", u.ID)
	})

	t.Run("not found", func(t *testing.T) {
		mockRepo := new(MockUserRepository)
		mockRepo.On("GetByID", mock.Anything, "missing").Return(nil, repository.ErrNotFound)
		svc := newTestService(mockRepo)

		_, err := svc.GetUserByID(context.Background(), "missing")
		require.Error(t, err)
		assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
	})
}

func TestGetProfile_ExpandsRelations(t *testing.T) {
	mockRepo := new(MockUserRepository)
	mockRepo.On("GetProfile", mock.Anything, "some-id").Return(&entity.Profile{
		User: entity.User{ID: "some-id", Fullname: "Ana"},
		Posts: []entity.Post{
			{ID: "p1", UserID: "some-id", Title: "First"},
		},
		Comments: []entity.Comment{
			{ID: "c1", UserID: "some-id", PostID: "p1", Message: "hi"},
		},
	}, nil)
	svc := newTestService(mockRepo)

	p, err := svc.GetProfile(context.Background(), "some-id")
	require.NoError(t, err)
	require.Len(t, p.Posts, 1)
	require.Len(t, p.Comments, 1)
	assert.Equal(t, "First", p.Posts[0].Title)
}

func TestLogout_WithoutRedisIsNoop(t *testing.T) {
	svc := newTestService(new(MockUserRepository))
	require.NoError(t, svc.Logout(context.Background(), "some-id"))
}

func TestUpdateImage(t *testing.T) {
	const uid = "8d6f5b2e-0f55-4f2e-9f10-0a57a7a3a001"

	t.Run("unknown user rejected before any upload", func(t *testing.T) {
		mockRepo := new(MockUserRepository)
		mockRepo.On("GetByID", mock.Anything, "missing").Return(nil, repository.ErrNotFound)
		svc := newTestService(mockRepo)

		_, err := svc.UpdateImage(context.Background(), "missing", application.ProfileImage,
			strings.NewReader("png-bytes"), "avatar.png", "image/png")
		require.Error(t, err)
		assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
		mockRepo.AssertNotCalled(t, "UpdateFields", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unconfigured object storage is an internal failure", func(t *testing.T) {
		mockRepo := new(MockUserRepository)
		mockRepo.On("GetByID", mock.Anything, uid).Return(&entity.User{ID: uid, Email: "ana@x.com"}, nil)
		svc := newTestService(mockRepo)

		_, err := svc.UpdateImage(context.Background(), uid, application.CoverImage,
			strings.NewReader("png-bytes"), "cover.png", "image/png")
		require.Error(t, err)
		assert.True(t, apperr.IsKind(err, apperr.KindInternal))
		mockRepo.AssertNotCalled(t, "UpdateFields", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestRefresh(t *testing.T) {
	const uid = "8d6f5b2e-0f55-4f2e-9f10-0a57a7a3a001"

	t.Run("garbage token rejected without a lookup", func(t *testing.T) {
		mockRepo := new(MockUserRepository)
		svc := newTestService(mockRepo)

		_, _, err := svc.Refresh(context.Background(), "not-a-token")
		require.Error(t, err)
		assert.True(t, apperr.IsKind(err, apperr.KindAuthentication))
		mockRepo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	})

	t.Run("valid token rotates the pair", func(t *testing.T) {
		mockRepo := new(MockUserRepository)
		mockRepo.On("GetByID", mock.Anything, uid).
			Return(&entity.User{ID: uid, Email: "ana@x.com"}, nil)
		svc := newTestService(mockRepo)

		token, _, err := svc.JWT.GenerateRefreshToken(uid, "sess-1")
		require.NoError(t, err)

		pair, gotID, err := svc.Refresh(context.Background(), token)
		require.NoError(t, err)
		assert.Equal(t, uid, gotID)
		assert.NotEmpty(t, pair.AccessToken)
		assert.NotEmpty(t, pair.RefreshToken)
	})

	t.Run("token for a deleted user rejected", func(t *testing.T) {
		mockRepo := new(MockUserRepository)
		mockRepo.On("GetByID", mock.Anything, uid).Return(nil, repository.ErrNotFound)
		svc := newTestService(mockRepo)

		token, _, err := svc.JWT.GenerateRefreshToken(uid, "sess-1")
		require.NoError(t, err)

		_, _, err = svc.Refresh(context.Background(), token)
		require.Error(t, err)
		assert.True(t, apperr.IsKind(err, apperr.KindAuthentication))
	})
}

func TestSearchUsers_WithoutElasticsearch(t *testing.T) {
	svc := newTestService(new(MockUserRepository))

	hits, err := svc.SearchUsers(context.Background(), "ana", 10)
	require.NoError(t, err)
	assert.NotNil(t, hits)
	assert.Empty(t, hits)
}
