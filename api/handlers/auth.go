package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/BaSui01/envsync/internal/auth"
	"github.com/BaSui01/envsync/internal/store"
	"github.com/BaSui01/envsync/types"
)

// =============================================================================
// 🔐 用户与登录 Handler
// =============================================================================

// AuthHandler 注册、登录与当前用户
type AuthHandler struct {
	svc    *auth.Service
	logger *zap.Logger
}

// NewAuthHandler 创建处理器
func NewAuthHandler(svc *auth.Service, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		svc:    svc,
		logger: logger.With(zap.String("handler", "auth")),
	}
}

// UserPublic 对外暴露的用户信息
type UserPublic struct {
	ID          string  `json:"id"`
	Username    string  `json:"username"`
	Email       string  `json:"email"`
	IsActive    bool    `json:"is_active"`
	IsSuperuser bool    `json:"is_superuser"`
	Nickname    *string `json:"nickname"`
}

func toUserPublic(u *store.User) UserPublic {
	return UserPublic{
		ID:          u.ID.String(),
		Username:    u.Username,
		Email:       u.Email,
		IsActive:    u.IsActive,
		IsSuperuser: u.IsSuperuser,
		Nickname:    u.Nickname,
	}
}

// Register 挂载路由，/users/me 经 authed 包装
func (h *AuthHandler) Register(mux *http.ServeMux, authed func(http.Handler) http.Handler) {
	mux.HandleFunc("POST /users/signup", h.HandleSignup)
	mux.HandleFunc("POST /login/access-token", h.HandleLogin)
	mux.Handle("GET /users/me", authed(http.HandlerFunc(h.HandleMe)))
}

// HandleSignup POST /users/signup
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var in auth.RegisterInput
	if err := DecodeJSONBody(w, r, &in, h.logger); err != nil {
		return
	}

	user, err := h.svc.Register(r.Context(), in)
	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		WriteError(w, r, types.NewError(types.ErrValidation, err.Error()), h.logger)
		return
	case errors.Is(err, store.ErrAlreadyExists):
		WriteErrorMessage(w, r, types.ErrAlreadyExists, "the user with this username or email already exists", h.logger)
		return
	case err != nil:
		writeServiceError(w, r, err, h.logger)
		return
	}
	WriteSuccess(w, r, toUserPublic(user))
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// HandleLogin POST /login/access-token，接受 OAuth2 表单或 JSON
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
			return
		}
	} else {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := r.ParseForm(); err != nil {
			WriteError(w, r, types.NewError(types.ErrInvalidRequest, "invalid form body").WithCause(err), h.logger)
			return
		}
		req.Username = r.PostFormValue("username")
		req.Password = r.PostFormValue("password")
	}

	token, err := h.svc.Login(r.Context(), req.Username, req.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		WriteErrorMessage(w, r, types.ErrInvalidRequest, "incorrect username or password", h.logger)
		return
	case errors.Is(err, auth.ErrInactiveUser):
		WriteErrorMessage(w, r, types.ErrInvalidRequest, "inactive user", h.logger)
		return
	case err != nil:
		writeServiceError(w, r, err, h.logger)
		return
	}

	// OAuth2 客户端期望裸令牌对象
	w.Header().Set("Cache-Control", "no-store")
	WriteJSON(w, http.StatusOK, token)
}

// HandleMe GET /users/me
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := types.UserID(r.Context())
	if !ok {
		WriteErrorMessage(w, r, types.ErrUnauthorized, "not authenticated", h.logger)
		return
	}

	user, err := h.svc.CurrentUser(r.Context(), &auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: userID},
	})
	switch {
	case errors.Is(err, auth.ErrInvalidToken):
		WriteErrorMessage(w, r, types.ErrUnauthorized, "could not validate credentials", h.logger)
		return
	case errors.Is(err, auth.ErrInactiveUser):
		WriteErrorMessage(w, r, types.ErrForbidden, "inactive user", h.logger)
		return
	case err != nil:
		writeServiceError(w, r, err, h.logger)
		return
	}
	WriteSuccess(w, r, toUserPublic(user))
}

