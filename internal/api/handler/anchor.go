package handler

import (
	"encoding/hex"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/siash1/bhulekh-chain/internal/anchorlog"
	"go.uber.org/zap"
)

// AnchorHandler exposes the anchor-log contract operations.
type AnchorHandler struct {
	log    *anchorlog.Log
	logger *zap.Logger
}

// NewAnchorHandler creates an AnchorHandler.
func NewAnchorHandler(log *anchorlog.Log, logger *zap.Logger) *AnchorHandler {
	return &AnchorHandler{log: log, logger: logger}
}

// Register mounts the anchor and authority routes. auth guards the mutating
// routes; reads are public.
func (h *AnchorHandler) Register(rg *gin.RouterGroup, auth gin.HandlerFunc) {
	a := rg.Group("/anchors")
	{
		a.POST("", auth, h.Submit)
		a.GET("/count", h.Count)
		a.GET("/:seq", h.GetBySequence)
	}
	au := rg.Group("/authority")
	{
		au.GET("", h.Authority)
		au.POST("/initialize", auth, h.Initialize)
		au.POST("/rotate", auth, h.Rotate)
	}
}

type anchorRequest struct {
	SourceNamespace string `json:"source_namespace" binding:"required"`
	ChannelID       string `json:"channel_id" binding:"required"`
	BlockStart      uint64 `json:"block_start"`
	BlockEnd        uint64 `json:"block_end"`
	StateRoot       string `json:"state_root"` // hex
	TxCount         uint64 `json:"tx_count"`
}

// Submit handles POST /anchors — the anchor_state operation.
func (h *AnchorHandler) Submit(c *gin.Context) {
	var req anchorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "source_namespace and channel_id are required"})
		return
	}

	root, err := hex.DecodeString(req.StateRoot)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "state_root must be hex-encoded"})
		return
	}

	caller := CallerFrom(c)
	rec, err := h.log.AnchorState(c.Request.Context(), caller, &anchorlog.AnchorRequest{
		SourceNamespace: req.SourceNamespace,
		ChannelID:       req.ChannelID,
		BlockStart:      req.BlockStart,
		BlockEnd:        req.BlockEnd,
		StateRoot:       root,
		TxCount:         req.TxCount,
	})
	if err != nil {
		RecordAnchorRejected(err)
		status, msg := statusForError(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("anchor submission failed", zap.Error(err))
			msg = "failed to record anchor"
		}
		c.JSON(status, gin.H{"error": msg})
		return
	}

	RecordAnchorAccepted()
	c.JSON(http.StatusCreated, rec)
}

// Count handles GET /anchors/count — the get_anchor_count operation.
// Public read, no authorization.
func (h *AnchorHandler) Count(c *gin.Context) {
	marker := h.log.LastMarker(c.Request.Context())
	resp := gin.H{"total_anchors": h.log.AnchorCount(c.Request.Context())}
	if marker.JournalIndex != 0 {
		resp["last_anchor_marker"] = marker
	}
	c.JSON(http.StatusOK, resp)
}

// GetBySequence handles GET /anchors/:seq.
func (h *AnchorHandler) GetBySequence(c *gin.Context) {
	seq, err := strconv.ParseUint(c.Param("seq"), 10, 64)
	if err != nil || seq == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "seq must be a positive integer"})
		return
	}

	rec, err := h.log.AnchorBySequence(c.Request.Context(), seq)
	if err != nil {
		h.logger.Error("anchor lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query anchors"})
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "anchor not found"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

// Authority handles GET /authority — the registry's public state.
func (h *AnchorHandler) Authority(c *gin.Context) {
	authority, initialized := h.log.Authority()
	resp := gin.H{"initialized": initialized}
	if initialized {
		resp["authority"] = authority.String()
	}
	c.JSON(http.StatusOK, resp)
}

type authorityRequest struct {
	Authority string `json:"authority" binding:"required"`
}

// Initialize handles POST /authority/initialize — the one-shot initialize
// operation. Only the deploying owner may call it, and only once ever.
func (h *AnchorHandler) Initialize(c *gin.Context) {
	var req authorityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "authority is required"})
		return
	}

	caller := CallerFrom(c)
	if err := h.log.Initialize(c.Request.Context(), caller, anchorlog.Principal(req.Authority)); err != nil {
		status, msg := statusForError(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("initialize failed", zap.Error(err))
			msg = "failed to initialize authority"
		}
		c.JSON(status, gin.H{"error": msg})
		return
	}
	c.JSON(http.StatusOK, gin.H{"authority": req.Authority})
}

// Rotate handles POST /authority/rotate — the rotate_authority operation.
func (h *AnchorHandler) Rotate(c *gin.Context) {
	var req authorityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "authority is required"})
		return
	}

	caller := CallerFrom(c)
	if err := h.log.RotateAuthority(c.Request.Context(), caller, anchorlog.Principal(req.Authority)); err != nil {
		status, msg := statusForError(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("rotate failed", zap.Error(err))
			msg = "failed to rotate authority"
		}
		c.JSON(status, gin.H{"error": msg})
		return
	}
	c.JSON(http.StatusOK, gin.H{"authority": req.Authority})
}
