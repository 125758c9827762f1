package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/siash1/bhulekh-chain/internal/api/handler"
	"github.com/siash1/bhulekh-chain/internal/identity"
	"go.uber.org/zap"
)

const exchangeSecret = "anchoring-shared-secret"

func setupAuthRouter(t *testing.T) (*gin.Engine, *identity.TokenIssuer) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tokens := identity.NewTokenIssuer(signingKey(t), "https://bhulekh.test", time.Hour)
	hash, err := identity.HashSecret(exchangeSecret)
	if err != nil {
		t.Fatalf("hash secret: %v", err)
	}

	r := gin.New()
	v1 := r.Group("/api/v1")
	handler.NewAuthHandler(tokens, hash, zap.NewNop()).Register(v1)
	return r, tokens
}

func postToken(t *testing.T, router *gin.Engine, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		t.Fatalf("encode body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/token", &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestIssueToken_200(t *testing.T) {
	router, tokens := setupAuthRouter(t)

	w := postToken(t, router, gin.H{"address": "BRIDGE-NODE-1", "secret": exchangeSecret})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Token     string `json:"token"`
		ExpiresIn int    `json:"expires_in"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ExpiresIn != 3600 {
		t.Errorf("expected expires_in 3600, got %d", resp.ExpiresIn)
	}

	claims, err := tokens.Verify(resp.Token)
	if err != nil {
		t.Fatalf("issued token does not verify: %v", err)
	}
	if claims.Address != "BRIDGE-NODE-1" {
		t.Errorf("expected address BRIDGE-NODE-1, got %q", claims.Address)
	}
}

func TestIssueToken_401_wrongSecret(t *testing.T) {
	router, _ := setupAuthRouter(t)

	w := postToken(t, router, gin.H{"address": "BRIDGE-NODE-1", "secret": "wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", w.Code, w.Body.String())
	}
}

func TestIssueToken_400_missingFields(t *testing.T) {
	router, _ := setupAuthRouter(t)

	w := postToken(t, router, gin.H{"address": "BRIDGE-NODE-1"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestIssueToken_400_malformedAddress(t *testing.T) {
	router, _ := setupAuthRouter(t)

	w := postToken(t, router, gin.H{"address": "has space", "secret": exchangeSecret})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestRequirePrincipal_401_garbageToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tokens := identity.NewTokenIssuer(signingKey(t), "https://bhulekh.test", time.Hour)

	r := gin.New()
	r.GET("/protected", handler.RequirePrincipal(tokens), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"caller": handler.CallerFrom(c).String()})
	})

	for _, header := range []string{"", "Bearer ", "Bearer not.a.jwt", "Basic abc"} {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("header %q: expected 401, got %d", header, w.Code)
		}
	}
}
