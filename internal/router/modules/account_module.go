package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/inkpress/account-service/internal/container"
	handlers "github.com/inkpress/account-service/internal/interface/http"
	"github.com/inkpress/account-service/internal/interface/middleware"
	"github.com/inkpress/account-service/pkg/helpers"
)

// AccountModule wires account HTTP handlers and auth middleware into routes.
// Public: POST /api/register, POST /api/login, POST /api/refresh, GET /api/users/:id
// Protected: POST /api/logout, GET /api/profile, PUT /api/users/:id,
// PUT /api/users/:id/password, PUT /api/profile/image, PUT /api/profile/cover,
// GET /api/users/search
type AccountModule struct {
	Handler *handlers.AccountHandler
	JWT     *helpers.JWTManager
}

func NewAccountModule(h *handlers.AccountHandler, jwt *helpers.JWTManager) *AccountModule {
	return &AccountModule{Handler: h, JWT: jwt}
}

func (m *AccountModule) Register(rg *gin.RouterGroup) {
	rdb := container.GetRedis()

	registerLimiter := middleware.RateLimit(rdb, 5, time.Minute, middleware.KeyByIPAndPath())
	loginLimiter := middleware.RateLimit(rdb, 10, time.Minute, middleware.KeyByIP())
	refreshLimiter := middleware.RateLimit(rdb, 60, time.Minute, middleware.KeyByIP())

	rg.POST("/register", registerLimiter, m.Handler.Register)
	rg.POST("/login", loginLimiter, m.Handler.Login)
	rg.POST("/refresh", refreshLimiter, m.Handler.Refresh)
	rg.GET("/users/:id", m.Handler.GetUserByID)

	auth := rg.Group("/")
	auth.Use(middleware.Auth(rdb, m.JWT))
	auth.Use(
		middleware.RateLimit(rdb, 300, time.Minute, middleware.KeyByIP()),
		middleware.RateLimit(rdb, 120, time.Minute, middleware.KeyByUserID()),
	)
	{
		auth.POST("/logout", m.Handler.Logout)
		auth.GET("/profile", m.Handler.GetProfile)
		auth.PUT("/profile/image", m.Handler.UploadProfileImage)
		auth.PUT("/profile/cover", m.Handler.UploadCoverImage)
		auth.PUT("/users/:id", m.Handler.UpdateProfile)
		auth.PUT("/users/:id/password", m.Handler.UpdatePassword)
		auth.GET("/users/search", m.Handler.Search)
	}
}
