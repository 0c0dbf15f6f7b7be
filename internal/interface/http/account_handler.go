package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/inkpress/account-service/internal/application"
	"github.com/inkpress/account-service/internal/interface/middleware"
	"github.com/inkpress/account-service/pkg/apperr"
	"github.com/inkpress/account-service/pkg/helpers"
	"github.com/inkpress/account-service/pkg/response"
	"github.com/inkpress/account-service/pkg/validation"
)

type AccountHandler struct {
	Svc     *application.Service
	Logger  *logrus.Logger
	Cookies *helpers.Manager
}

func NewAccountHandler(svc *application.Service, logger *logrus.Logger, cookieDomain string, cookieSecure bool) *AccountHandler {
	return &AccountHandler{Svc: svc, Logger: logger, Cookies: helpers.NewCookie(cookieDomain, cookieSecure)}
}

type registerRequest struct {
	Fullname string `json:"fullname" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,pwd"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type updatePasswordRequest struct {
	Password string `json:"password" binding:"required,pwd"`
}

type updateProfileRequest struct {
	Fullname string `json:"fullname"`
	Email    string `json:"email" binding:"omitempty,email"`
}

func (h *AccountHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Failed(c, http.StatusBadRequest, validation.Message(err))
		return
	}
	u, err := h.Svc.Register(c.Request.Context(), req.Fullname, req.Email, req.Password)
	if err != nil {
		if apperr.IsKind(err, apperr.KindInternal) {
			h.Logger.WithError(err).WithField("email", req.Email).Error("register failed")
		}
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, u)
}

func (h *AccountHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Failed(c, http.StatusBadRequest, validation.Message(err))
		return
	}
	u, pair, err := h.Svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		response.FromError(c, err)
		return
	}
	h.Cookies.SetPair(c, pair.AccessToken, pair.AccessTokenExpiry, pair.RefreshToken, pair.RefreshTokenExpiry)
	response.Success(c, http.StatusOK, u)
}

func (h *AccountHandler) Refresh(c *gin.Context) {
	refresh, err := c.Cookie("refresh_token")
	if err != nil || refresh == "" {
		response.FromError(c, apperr.Authentication("missing refresh token"))
		return
	}
	pair, _, err := h.Svc.Refresh(c.Request.Context(), refresh)
	if err != nil {
		h.Logger.WithError(err).Warn("token refresh rejected")
		response.FromError(c, err)
		return
	}
	h.Cookies.SetPair(c, pair.AccessToken, pair.AccessTokenExpiry, pair.RefreshToken, pair.RefreshTokenExpiry)
	response.Success(c, http.StatusOK, gin.H{"refreshed": true})
}

func (h *AccountHandler) Logout(c *gin.Context) {
	uid := c.GetString(middleware.CtxUserIDKey)
	if err := h.Svc.Logout(c.Request.Context(), uid); err != nil {
		response.FromError(c, err)
		return
	}
	h.Cookies.Clear(c)
	response.Success(c, http.StatusOK, "user logged out")
}

func (h *AccountHandler) GetProfile(c *gin.Context) {
	uid := c.GetString(middleware.CtxUserIDKey)
	p, err := h.Svc.GetProfile(c.Request.Context(), uid)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, p)
}

func (h *AccountHandler) GetUserByID(c *gin.Context) {
	u, err := h.Svc.GetUserByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, u)
}

func (h *AccountHandler) UploadProfileImage(c *gin.Context) {
	h.uploadImage(c, application.ProfileImage)
}

func (h *AccountHandler) UploadCoverImage(c *gin.Context) {
	h.uploadImage(c, application.CoverImage)
}

func (h *AccountHandler) uploadImage(c *gin.Context, kind application.ImageKind) {
	uid := c.GetString(middleware.CtxUserIDKey)

	fh, err := c.FormFile("image")
	if err != nil {
		response.FromError(c, apperr.Validation("image file is required"))
		return
	}
	f, err := fh.Open()
	if err != nil {
		h.Logger.WithError(err).WithField("filename", fh.Filename).Error("open uploaded file failed")
		response.FromError(c, apperr.Internal("open upload failed", err))
		return
	}
	defer func() { _ = f.Close() }()

	u, err := h.Svc.UpdateImage(c.Request.Context(), uid, kind, f, fh.Filename, fh.Header.Get("Content-Type"))
	if err != nil {
		if apperr.IsKind(err, apperr.KindInternal) {
			h.Logger.WithError(err).WithField("user_id", uid).Error("image update failed")
		}
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, u)
}

func (h *AccountHandler) UpdatePassword(c *gin.Context) {
	var req updatePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Failed(c, http.StatusBadRequest, validation.Message(err))
		return
	}
	u, err := h.Svc.UpdatePassword(c.Request.Context(), c.Param("id"), req.Password)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, u)
}

func (h *AccountHandler) UpdateProfile(c *gin.Context) {
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Failed(c, http.StatusBadRequest, validation.Message(err))
		return
	}
	u, err := h.Svc.UpdateProfile(c.Request.Context(), c.Param("id"), application.UpdateProfileInput{
		Fullname: req.Fullname,
		Email:    req.Email,
	})
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, u)
}

func (h *AccountHandler) Search(c *gin.Context) {
	q := c.Query("q")
	size, _ := strconv.Atoi(c.DefaultQuery("size", "10"))
	hits, err := h.Svc.SearchUsers(c.Request.Context(), q, size)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, hits)
}
