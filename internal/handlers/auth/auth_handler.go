// internal/handlers/auth/auth_handler.go
package auth

import (
	"net/http"

	"wifipay-service/internal/domain/identity"
	"wifipay-service/internal/middleware"
	xerrors "wifipay-service/internal/pkg/errors"
	"wifipay-service/internal/pkg/jwt"
	"wifipay-service/internal/pkg/response"
	authUsecase "wifipay-service/internal/service/auth"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AuthHandler struct {
	authService *authUsecase.AuthService
	logger      *zap.Logger
}

func NewAuthHandler(authService *authUsecase.AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		logger:      logger,
	}
}

// Login authenticates a tenant owner or the platform operator.
func (h *AuthHandler) Login(c *gin.Context) {
	var req identity.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	loginResp, err := h.authService.Login(c.Request.Context(), &req,
		c.ClientIP(), c.GetHeader("User-Agent"))
	if err != nil {
		if xerrors.Is(err, xerrors.ErrUnauthorized) {
			response.Unauthorized(c, "invalid credentials")
			return
		}
		h.logger.Error("login failed", zap.String("email", req.Email), zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "login failed", err)
		return
	}

	response.Success(c, http.StatusOK, "login successful", loginResp)
}

// Logout revokes the caller's session. Requires auth.
func (h *AuthHandler) Logout(c *gin.Context) {
	id, okID := middleware.GetIdentityID(c)
	jti, okJTI := c.Get("jti")
	tokenID, _ := jti.(string)
	if !okID || !okJTI || tokenID == "" {
		response.Unauthorized(c, "authentication required")
		return
	}

	claims := &jwt.Claims{IdentityID: id}
	claims.ID = tokenID
	if err := h.authService.Logout(c.Request.Context(), claims); err != nil {
		h.logger.Error("logout failed", zap.Int64("identity_id", id), zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "logout failed", err)
		return
	}

	response.Success(c, http.StatusOK, "logged out", nil)
}
