package httpapi

import (
	"errors"
	"net/http"
	"time"

	"callout-engine/internal/accounts"
	"callout-engine/internal/apperrors"
	"callout-engine/internal/audit"
	"callout-engine/internal/auth"
	"callout-engine/internal/batchops"
	"callout-engine/internal/callout"
	"callout-engine/internal/contacts"
	"callout-engine/internal/participation"
	"callout-engine/internal/reporting"
	"callout-engine/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Auth           *auth.Manager
	Accounts       accounts.Repository
	Contacts       contacts.Repository
	Callouts       *callout.Service
	Participations *participation.Service
	BatchOps       *batchops.Service
	Reporting      *reporting.Service

	// Audit is best-effort; failures are logged, never surfaced.
	Audit *audit.Service
}

// respondError maps domain failures onto HTTP statuses. Anything unmapped is
// an internal error and must not leak details.
func respondError(c *gin.Context, err error) {
	switch {
	case apperrors.IsValidation(err):
		var ve *apperrors.ValidationError
		errors.As(err, &ve)
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"errors": ve.Errors})
	case apperrors.IsConflict(err):
		var ce *apperrors.ConflictError
		errors.As(err, &ce)
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": ce.Error()})
	case apperrors.IsNotFound(err):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
	case apperrors.IsAuthorization(err):
		c.AbortWithStatus(http.StatusForbidden)
	default:
		logger.FromGin(c).Error("request failed", "error", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// --- Auth ---

type tokenRequest struct {
	AccountSID string `json:"account_sid" binding:"required"`
	AuthToken  string `json:"auth_token" binding:"required"`
}

// IssueToken exchanges platform credentials for a JWT pair scoped to the
// account.
func (h Handlers) IssueToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "account_sid and auth_token required"})
		return
	}

	account, err := h.Accounts.FindByPlatformSID(c.Request.Context(), req.AccountSID)
	if err != nil || account.PlatformAuthToken != req.AuthToken {
		// indistinguishable whether the sid or the token was wrong
		c.AbortWithStatus(http.StatusForbidden)
		return
	}

	pair, err := h.Auth.IssuePair(time.Now(), account.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// --- Contacts ---

type createContactRequest struct {
	Msisdn      string            `json:"msisdn" binding:"required"`
	Metadata    map[string]string `json:"metadata"`
	LocationIDs []string          `json:"location_ids"`
}

func (h Handlers) CreateContact(c *gin.Context) {
	var req createContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "msisdn required"})
		return
	}
	contact, err := h.Contacts.Create(c.Request.Context(), contacts.Contact{
		AccountID:   auth.AccountFromGin(c),
		Msisdn:      contacts.NormalizeMsisdn(req.Msisdn),
		Metadata:    req.Metadata,
		LocationIDs: req.LocationIDs,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, contact)
}

func (h Handlers) ListContacts(c *gin.Context) {
	rows, err := h.Contacts.List(c.Request.Context(), contacts.Filter{
		AccountID: auth.AccountFromGin(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"contacts": rows})
}

func (h Handlers) GetContact(c *gin.Context) {
	contact, err := h.Contacts.Find(c.Request.Context(), c.Param("contact_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if contact.AccountID != auth.AccountFromGin(c) {
		respondError(c, apperrors.ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, contact)
}

// DeleteContact removes a contact. Restricted while the contact is enrolled in
// any callout.
func (h Handlers) DeleteContact(c *gin.Context) {
	contact, err := h.Contacts.Find(c.Request.Context(), c.Param("contact_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if contact.AccountID != auth.AccountFromGin(c) {
		respondError(c, apperrors.ErrNotFound)
		return
	}
	enrolled, err := h.Participations.List(c.Request.Context(), participation.Filter{ContactID: contact.ID})
	if err != nil {
		respondError(c, err)
		return
	}
	if len(enrolled) > 0 {
		respondError(c, apperrors.Conflictf("contact has callout participations"))
		return
	}
	if err := h.Contacts.Delete(c.Request.Context(), contact.ID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
