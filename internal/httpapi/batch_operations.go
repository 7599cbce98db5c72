package httpapi

import (
	"net/http"

	"callout-engine/internal/apperrors"
	"callout-engine/internal/auth"
	"callout-engine/internal/batchops"
	"callout-engine/pkg/logger"

	"github.com/gin-gonic/gin"
)

type createBatchOperationRequest struct {
	Type       string         `json:"type" binding:"required"`
	Parameters map[string]any `json:"parameters"`
	Metadata   map[string]any `json:"metadata"`
}

func (h Handlers) CreateBatchOperation(c *gin.Context) {
	co, ok := h.ownCallout(c, c.Param("callout_id"))
	if !ok {
		return
	}
	var req createBatchOperationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "type required"})
		return
	}
	op, err := h.BatchOps.Create(c.Request.Context(), batchops.CreateRequest{
		AccountID:  auth.AccountFromGin(c),
		CalloutID:  co.ID,
		Type:       req.Type,
		Parameters: req.Parameters,
		Metadata:   req.Metadata,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, op)
}

func (h Handlers) ListBatchOperations(c *gin.Context) {
	co, ok := h.ownCallout(c, c.Param("callout_id"))
	if !ok {
		return
	}
	rows, err := h.BatchOps.ListByCallout(c.Request.Context(), co.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"batch_operations": rows})
}

func (h Handlers) ownBatchOperation(c *gin.Context, id string) (batchops.BatchOperation, bool) {
	op, err := h.BatchOps.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return batchops.BatchOperation{}, false
	}
	if op.AccountID != auth.AccountFromGin(c) {
		respondError(c, apperrors.ErrNotFound)
		return batchops.BatchOperation{}, false
	}
	return op, true
}

func (h Handlers) GetBatchOperation(c *gin.Context) {
	op, ok := h.ownBatchOperation(c, c.Param("batch_operation_id"))
	if !ok {
		return
	}
	c.JSON(http.StatusOK, op)
}

type updateBatchOperationRequest struct {
	Parameters map[string]any `json:"parameters"`
	Metadata   map[string]any `json:"metadata"`
}

func (h Handlers) UpdateBatchOperation(c *gin.Context) {
	op, ok := h.ownBatchOperation(c, c.Param("batch_operation_id"))
	if !ok {
		return
	}
	var req updateBatchOperationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	out, err := h.BatchOps.UpdateParameters(c.Request.Context(), op.ID, req.Parameters, req.Metadata)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) DeleteBatchOperation(c *gin.Context) {
	op, ok := h.ownBatchOperation(c, c.Param("batch_operation_id"))
	if !ok {
		return
	}
	if err := h.BatchOps.Delete(c.Request.Context(), op.ID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type batchOperationEventRequest struct {
	Event string `json:"event" binding:"required"`
}

// BatchOperationEvent accepts queue and requeue. The transition and the
// execution signal are persisted atomically; an invalid event is a conflict.
func (h Handlers) BatchOperationEvent(c *gin.Context) {
	op, ok := h.ownBatchOperation(c, c.Param("batch_operation_id"))
	if !ok {
		return
	}
	var req batchOperationEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "event required"})
		return
	}
	ev, ok := batchops.ParseEvent(req.Event)
	if !ok {
		respondError(c, apperrors.NewValidation("event", "must be queue or requeue"))
		return
	}
	out, err := h.BatchOps.ApplyEvent(c.Request.Context(), op.ID, ev)
	if err != nil {
		respondError(c, err)
		return
	}
	if h.Audit != nil {
		if err := h.Audit.LogBatchOperationEvent(c.Request.Context(), out.AccountID, out.CalloutID, out.ID, c.ClientIP(), req.Event); err != nil {
			logger.FromGin(c).Warn("audit append failed", "error", err)
		}
	}
	c.JSON(http.StatusCreated, out)
}

func (h Handlers) PreviewBatchOperation(c *gin.Context) {
	op, ok := h.ownBatchOperation(c, c.Param("batch_operation_id"))
	if !ok {
		return
	}
	sel, err := h.BatchOps.Preview(c.Request.Context(), op.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sel)
}

// PreviewParticipations narrows the preview to the participation-shaped part
// of the selection (population and phone_call_create variants).
func (h Handlers) PreviewParticipations(c *gin.Context) {
	op, ok := h.ownBatchOperation(c, c.Param("batch_operation_id"))
	if !ok {
		return
	}
	sel, err := h.BatchOps.Preview(c.Request.Context(), op.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"contact_ids":               sel.ContactIDs,
		"callout_participation_ids": sel.ParticipationIDs,
	})
}

// PreviewPhoneCalls narrows the preview to the calls the queue variants would
// dispatch.
func (h Handlers) PreviewPhoneCalls(c *gin.Context) {
	op, ok := h.ownBatchOperation(c, c.Param("batch_operation_id"))
	if !ok {
		return
	}
	sel, err := h.BatchOps.Preview(c.Request.Context(), op.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"phone_call_ids": sel.PhoneCallIDs})
}
