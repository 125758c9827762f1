package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/siash1/bhulekh-chain/internal/title"
	"go.uber.org/zap"
)

// TitleHandler exposes the title-certificate endpoints.
type TitleHandler struct {
	svc    *title.Service
	logger *zap.Logger
}

// NewTitleHandler creates a TitleHandler.
func NewTitleHandler(svc *title.Service, logger *zap.Logger) *TitleHandler {
	return &TitleHandler{svc: svc, logger: logger}
}

// Register mounts the title routes. auth guards the mutating routes.
func (h *TitleHandler) Register(rg *gin.RouterGroup, auth gin.HandlerFunc) {
	t := rg.Group("/titles")
	{
		t.POST("", auth, h.Issue)
		t.GET("/:id", h.Get)
		t.GET("/:id/history", h.History)
		t.POST("/:id/transfer", auth, h.Transfer)
		t.POST("/:id/freeze", auth, h.Freeze)
		t.POST("/:id/unfreeze", auth, h.Unfreeze)
	}
	rg.GET("/properties/:property_id/title", h.GetByProperty)
}

type issueRequest struct {
	PropertyID   string `json:"property_id" binding:"required"`
	OwnerHash    string `json:"owner_hash" binding:"required"`
	FabricTxID   string `json:"fabric_tx_id" binding:"required"`
	DocumentHash string `json:"document_hash"`
}

// Issue handles POST /titles.
func (h *TitleHandler) Issue(c *gin.Context) {
	var req issueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "property_id, owner_hash, and fabric_tx_id are required"})
		return
	}

	cert, err := h.svc.Issue(c.Request.Context(), CallerFrom(c), title.IssueParams{
		PropertyID:   req.PropertyID,
		OwnerHash:    req.OwnerHash,
		FabricTxID:   req.FabricTxID,
		DocumentHash: req.DocumentHash,
	})
	if err != nil {
		h.fail(c, "issue title", err, http.StatusBadRequest)
		return
	}
	c.JSON(http.StatusCreated, cert)
}

type transferRequest struct {
	NewOwnerHash string `json:"new_owner_hash" binding:"required"`
	FabricTxID   string `json:"fabric_tx_id" binding:"required"`
}

// Transfer handles POST /titles/:id/transfer.
func (h *TitleHandler) Transfer(c *gin.Context) {
	id, ok := h.certID(c)
	if !ok {
		return
	}
	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "new_owner_hash and fabric_tx_id are required"})
		return
	}

	rec, err := h.svc.Transfer(c.Request.Context(), CallerFrom(c), id, req.NewOwnerHash, req.FabricTxID)
	if err != nil {
		h.fail(c, "transfer title", err, http.StatusBadRequest)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

type statusRequest struct {
	FabricTxID string `json:"fabric_tx_id" binding:"required"`
}

// Freeze handles POST /titles/:id/freeze.
func (h *TitleHandler) Freeze(c *gin.Context) { h.setStatus(c, true) }

// Unfreeze handles POST /titles/:id/unfreeze.
func (h *TitleHandler) Unfreeze(c *gin.Context) { h.setStatus(c, false) }

func (h *TitleHandler) setStatus(c *gin.Context, frozen bool) {
	id, ok := h.certID(c)
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "fabric_tx_id is required"})
		return
	}

	var err error
	if frozen {
		err = h.svc.Freeze(c.Request.Context(), CallerFrom(c), id, req.FabricTxID)
	} else {
		err = h.svc.Unfreeze(c.Request.Context(), CallerFrom(c), id, req.FabricTxID)
	}
	if err != nil {
		h.fail(c, "change title status", err, http.StatusBadRequest)
		return
	}
	c.JSON(http.StatusOK, gin.H{"frozen": frozen})
}

// Get handles GET /titles/:id. Public read.
func (h *TitleHandler) Get(c *gin.Context) {
	id, ok := h.certID(c)
	if !ok {
		return
	}
	cert, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "get title", err, http.StatusNotFound)
		return
	}
	c.JSON(http.StatusOK, cert)
}

// GetByProperty handles GET /properties/:property_id/title. Public read.
func (h *TitleHandler) GetByProperty(c *gin.Context) {
	cert, err := h.svc.GetByProperty(c.Request.Context(), c.Param("property_id"))
	if err != nil {
		h.fail(c, "get title by property", err, http.StatusNotFound)
		return
	}
	c.JSON(http.StatusOK, cert)
}

// History handles GET /titles/:id/history. Public read.
func (h *TitleHandler) History(c *gin.Context) {
	id, ok := h.certID(c)
	if !ok {
		return
	}
	records, err := h.svc.History(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "title history", err, http.StatusNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

func (h *TitleHandler) certID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be a UUID"})
		return uuid.Nil, false
	}
	return id, true
}

// fail maps domain errors to HTTP statuses; validation errors that are not
// sentinels fall back to fallback instead of 500.
func (h *TitleHandler) fail(c *gin.Context, op string, err error, fallback int) {
	status, msg := statusForError(err)
	if status == http.StatusInternalServerError {
		if fallback == http.StatusBadRequest {
			// Memo/schema validation errors are plain errors.
			c.JSON(fallback, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error(op, zap.Error(err))
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": msg})
}
