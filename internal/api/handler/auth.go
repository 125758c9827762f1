// Package handler exposes the anchor-log contract surface over HTTP.
// Mutating routes authenticate a principal token and thread the caller
// identity explicitly into the service layer; the services own all
// authorization decisions.
package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/siash1/bhulekh-chain/internal/anchorlog"
	"github.com/siash1/bhulekh-chain/internal/identity"
	"go.uber.org/zap"
)

// callerKey is the gin context key holding the authenticated principal.
const callerKey = "caller_principal"

// RequirePrincipal returns middleware that authenticates the Bearer token
// and stores the caller principal in the request context. Requests without
// a valid token are rejected with 401 before reaching the handler.
func RequirePrincipal(tokens *identity.TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		tokenStr, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims, err := tokens.Verify(tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(callerKey, anchorlog.Principal(claims.Address))
		c.Next()
	}
}

// CallerFrom returns the authenticated principal set by RequirePrincipal.
func CallerFrom(c *gin.Context) anchorlog.Principal {
	v, _ := c.Get(callerKey)
	p, _ := v.(anchorlog.Principal)
	return p
}

// AuthHandler exchanges the shared anchoring secret for a principal token.
// There are no user accounts: the middleware holding the secret declares
// which principal it acts as, and the anchor log decides what that principal
// may do.
type AuthHandler struct {
	tokens     *identity.TokenIssuer
	secretHash string // bcrypt hash of the token-exchange secret
	logger     *zap.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(tokens *identity.TokenIssuer, secretHash string, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{tokens: tokens, secretHash: secretHash, logger: logger}
}

// Register mounts the auth routes on the given router group.
func (h *AuthHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/auth/token", h.IssueToken)
}

type tokenRequest struct {
	Address string `json:"address" binding:"required"`
	Secret  string `json:"secret" binding:"required"`
}

// IssueToken handles POST /auth/token.
func (h *AuthHandler) IssueToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "address and secret are required"})
		return
	}

	if h.secretHash == "" || !identity.CheckSecret(h.secretHash, req.Secret) {
		h.logger.Warn("token exchange rejected", zap.String("address", req.Address))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid secret"})
		return
	}
	if !anchorlog.Principal(req.Address).Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed principal address"})
		return
	}

	token, err := h.tokens.Issue(req.Address)
	if err != nil {
		h.logger.Error("issue token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_in": int(h.tokens.TTL().Seconds()),
	})
}
