package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/patchlens/patchlens/consts"
	"github.com/patchlens/patchlens/internal/config"
	"github.com/patchlens/patchlens/pkg/errors"
	"github.com/patchlens/patchlens/pkg/logger"
)

// operatorSubject is the JWT subject issued to the single operator
// identity. There are no per-user accounts.
const operatorSubject = "operator"

// AuthHandler exchanges the shared operator token for a JWT.
type AuthHandler struct {
	operator *config.OperatorConfig
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(cfg *config.Config) *AuthHandler {
	return &AuthHandler{operator: &cfg.Operator}
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Token string `json:"token" binding:"required"`
}

// LoginResponse carries the signed JWT and its expiry.
type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.Wrap(errors.KindMissingField, "token is required", err))
		return
	}

	if !h.operator.AuthEnabled() {
		logger.Warn("Login attempt while operator auth is not configured",
			zap.String("client_ip", c.ClientIP()))
		respondError(c, errors.ErrUnauthorized("operator authentication is not configured"))
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(h.operator.TokenHash), []byte(req.Token)); err != nil {
		logger.Warn("Invalid operator token", zap.String("client_ip", c.ClientIP()))
		respondError(c, errors.ErrUnauthorized("invalid operator token"))
		return
	}

	expiresAt := time.Now().Add(h.operator.TokenExpiry())
	claims := jwt.RegisteredClaims{
		Subject:   operatorSubject,
		Issuer:    consts.ServiceName,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(h.operator.JWTSecret))
	if err != nil {
		logger.Error("Failed to sign operator token", zap.Error(err))
		respondError(c, errors.ErrInternal("failed to generate token", err))
		return
	}

	logger.Info("Operator logged in", zap.String("client_ip", c.ClientIP()))
	c.JSON(http.StatusOK, LoginResponse{
		Token:     signed,
		ExpiresAt: expiresAt.Format(time.RFC3339),
	})
}

// ValidateToken verifies a JWT issued by Login and returns its subject.
// Implements middleware.TokenValidator.
func (h *AuthHandler) ValidateToken(tokenString string) (string, error) {
	if h.operator.JWTSecret == "" {
		return "", errors.ErrUnauthorized("jwt secret not configured")
	}

	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{},
		func(token *jwt.Token) (any, error) {
			return []byte(h.operator.JWTSecret), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid {
		return "", jwt.ErrSignatureInvalid
	}
	return claims.Subject, nil
}
