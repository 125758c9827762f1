package handler_test

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/siash1/bhulekh-chain/internal/anchorjournal"
	"github.com/siash1/bhulekh-chain/internal/anchorlog"
	"github.com/siash1/bhulekh-chain/internal/api/handler"
	"github.com/siash1/bhulekh-chain/internal/identity"
	"go.uber.org/zap"
)

const (
	ownerAddr     = "BHULEKH-OWNER"
	authorityAddr = "BRIDGE-NODE-1"
	strangerAddr  = "SOME-OTHER-NODE"
)

var (
	testKeyOnce sync.Once
	testKey     *rsa.PrivateKey
)

// signingKey returns a process-wide RSA key so each test does not pay for
// key generation.
func signingKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	testKeyOnce.Do(func() {
		var err error
		testKey, err = rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			t.Fatalf("generate key: %v", err)
		}
	})
	return testKey
}

type anchorFixture struct {
	router *gin.Engine
	log    *anchorlog.Log
	tokens *identity.TokenIssuer
}

func setupAnchorRouter(t *testing.T) *anchorFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	journal := anchorjournal.New()
	log, err := anchorlog.Open(context.Background(), ownerAddr, journal, zap.NewNop())
	if err != nil {
		t.Fatalf("open log: %v", err)
	}

	tokens := identity.NewTokenIssuer(signingKey(t), "https://bhulekh.test", time.Hour)

	r := gin.New()
	v1 := r.Group("/api/v1")
	handler.NewAnchorHandler(log, zap.NewNop()).Register(v1, handler.RequirePrincipal(tokens))
	return &anchorFixture{router: r, log: log, tokens: tokens}
}

// doJSON performs a request with an optional principal token.
func (f *anchorFixture) doJSON(t *testing.T, method, path, as string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if as != "" {
		token, err := f.tokens.Issue(as)
		if err != nil {
			t.Fatalf("issue token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *anchorFixture) initialize(t *testing.T) {
	t.Helper()
	w := f.doJSON(t, http.MethodPost, "/api/v1/authority/initialize", ownerAddr,
		gin.H{"authority": authorityAddr})
	if w.Code != http.StatusOK {
		t.Fatalf("initialize: expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func validAnchor() gin.H {
	return gin.H{
		"source_namespace": "UP",
		"channel_id":       "land-registry-channel",
		"block_start":      100,
		"block_end":        199,
		"state_root":       "ab12cd34ab12cd34ab12cd34ab12cd34ab12cd34ab12cd34ab12cd34ab12cd34",
		"tx_count":         42,
	}
}

func TestInitialize_200_ownerOnly(t *testing.T) {
	f := setupAnchorRouter(t)
	f.initialize(t)

	w := f.doJSON(t, http.MethodGet, "/api/v1/authority", "", nil)
	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["initialized"] != true {
		t.Errorf("expected initialized=true, got %v", resp["initialized"])
	}
	if resp["authority"] != authorityAddr {
		t.Errorf("expected authority %q, got %v", authorityAddr, resp["authority"])
	}
}

func TestInitialize_403_notOwner(t *testing.T) {
	f := setupAnchorRouter(t)

	w := f.doJSON(t, http.MethodPost, "/api/v1/authority/initialize", strangerAddr,
		gin.H{"authority": authorityAddr})
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", w.Code, w.Body.String())
	}
}

func TestInitialize_409_secondCall(t *testing.T) {
	f := setupAnchorRouter(t)
	f.initialize(t)

	w := f.doJSON(t, http.MethodPost, "/api/v1/authority/initialize", ownerAddr,
		gin.H{"authority": strangerAddr})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}

	// First call still wins.
	authority, _ := f.log.Authority()
	if authority != authorityAddr {
		t.Errorf("authority changed to %q after rejected re-init", authority)
	}
}

func TestInitialize_401_noToken(t *testing.T) {
	f := setupAnchorRouter(t)

	w := f.doJSON(t, http.MethodPost, "/api/v1/authority/initialize", "",
		gin.H{"authority": authorityAddr})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestSubmitAnchor_201_assignsSequence(t *testing.T) {
	f := setupAnchorRouter(t)
	f.initialize(t)

	w := f.doJSON(t, http.MethodPost, "/api/v1/anchors", authorityAddr, validAnchor())
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var rec anchorlog.AnchorRecord
	if err := json.Unmarshal(w.Body.Bytes(), &rec); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if rec.Sequence != 1 {
		t.Errorf("expected sequence 1, got %d", rec.Sequence)
	}
	if rec.ChannelID != "land-registry-channel" {
		t.Errorf("unexpected channel %q", rec.ChannelID)
	}

	w = f.doJSON(t, http.MethodPost, "/api/v1/anchors", authorityAddr, validAnchor())
	json.Unmarshal(w.Body.Bytes(), &rec)
	if rec.Sequence != 2 {
		t.Errorf("expected sequence 2, got %d", rec.Sequence)
	}
}

func TestSubmitAnchor_403_notAuthority(t *testing.T) {
	f := setupAnchorRouter(t)
	f.initialize(t)

	for _, as := range []string{ownerAddr, strangerAddr} {
		w := f.doJSON(t, http.MethodPost, "/api/v1/anchors", as, validAnchor())
		if w.Code != http.StatusForbidden {
			t.Errorf("as %s: expected 403, got %d", as, w.Code)
		}
	}
}

func TestSubmitAnchor_403_beforeInitialize(t *testing.T) {
	f := setupAnchorRouter(t)

	w := f.doJSON(t, http.MethodPost, "/api/v1/anchors", authorityAddr, validAnchor())
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", w.Code, w.Body.String())
	}
}

func TestSubmitAnchor_400_invalidBlockRange(t *testing.T) {
	f := setupAnchorRouter(t)
	f.initialize(t)

	body := validAnchor()
	body["block_start"] = 200
	body["block_end"] = 100
	w := f.doJSON(t, http.MethodPost, "/api/v1/anchors", authorityAddr, body)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
	if n := f.log.AnchorCount(context.Background()); n != 0 {
		t.Errorf("rejected anchor advanced counter to %d", n)
	}
}

func TestSubmitAnchor_400_emptyStateRoot(t *testing.T) {
	f := setupAnchorRouter(t)
	f.initialize(t)

	body := validAnchor()
	body["state_root"] = ""
	w := f.doJSON(t, http.MethodPost, "/api/v1/anchors", authorityAddr, body)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestSubmitAnchor_400_badHex(t *testing.T) {
	f := setupAnchorRouter(t)
	f.initialize(t)

	body := validAnchor()
	body["state_root"] = "not-hex!"
	w := f.doJSON(t, http.MethodPost, "/api/v1/anchors", authorityAddr, body)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAnchorCount_public(t *testing.T) {
	f := setupAnchorRouter(t)
	f.initialize(t)

	// No token required.
	w := f.doJSON(t, http.MethodGet, "/api/v1/anchors/count", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	if int(resp["total_anchors"].(float64)) != 0 {
		t.Errorf("expected 0 anchors, got %v", resp["total_anchors"])
	}
	if _, ok := resp["last_anchor_marker"]; ok {
		t.Error("marker should be absent before the first anchor")
	}

	f.doJSON(t, http.MethodPost, "/api/v1/anchors", authorityAddr, validAnchor())

	w = f.doJSON(t, http.MethodGet, "/api/v1/anchors/count", "", nil)
	json.Unmarshal(w.Body.Bytes(), &resp)
	if int(resp["total_anchors"].(float64)) != 1 {
		t.Errorf("expected 1 anchor, got %v", resp["total_anchors"])
	}
	if _, ok := resp["last_anchor_marker"]; !ok {
		t.Error("expected marker after first anchor")
	}
}

func TestAnchorBySequence(t *testing.T) {
	f := setupAnchorRouter(t)
	f.initialize(t)
	f.doJSON(t, http.MethodPost, "/api/v1/anchors", authorityAddr, validAnchor())

	w := f.doJSON(t, http.MethodGet, "/api/v1/anchors/1", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = f.doJSON(t, http.MethodGet, "/api/v1/anchors/99", "", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for missing sequence, got %d", w.Code)
	}

	w = f.doJSON(t, http.MethodGet, "/api/v1/anchors/abc", "", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for non-numeric sequence, got %d", w.Code)
	}
}

func TestRotate_transfersRights(t *testing.T) {
	f := setupAnchorRouter(t)
	f.initialize(t)

	w := f.doJSON(t, http.MethodPost, "/api/v1/authority/rotate", authorityAddr,
		gin.H{"authority": strangerAddr})
	if w.Code != http.StatusOK {
		t.Fatalf("rotate: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	// Old authority is out, new one anchors.
	w = f.doJSON(t, http.MethodPost, "/api/v1/anchors", authorityAddr, validAnchor())
	if w.Code != http.StatusForbidden {
		t.Errorf("old authority: expected 403, got %d", w.Code)
	}
	w = f.doJSON(t, http.MethodPost, "/api/v1/anchors", strangerAddr, validAnchor())
	if w.Code != http.StatusCreated {
		t.Errorf("new authority: expected 201, got %d: %s", w.Code, w.Body.String())
	}
}

func TestRotate_403_notCurrentAuthority(t *testing.T) {
	f := setupAnchorRouter(t)
	f.initialize(t)

	// Owner role grants no rotation rights.
	w := f.doJSON(t, http.MethodPost, "/api/v1/authority/rotate", ownerAddr,
		gin.H{"authority": strangerAddr})
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", w.Code, w.Body.String())
	}
}
