package main

import (
	"database/sql"
	"net/http"

	"callout-engine/internal/httpapi"
	"callout-engine/internal/metrics"
	"callout-engine/internal/webhooks"
	"callout-engine/pkg/utils"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, db *sql.DB, h httpapi.Handlers, webhookSvc *webhooks.Service, authMW gin.HandlerFunc) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), db); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", metrics.Handler())

	// Provider callbacks authenticate via request signature, not JWT.
	r.POST("/webhooks/phone-call-events", webhooks.Handler(webhookSvc))

	r.POST("/auth/token", h.IssueToken)

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(authMW)
	{
		v1.POST("/contacts", h.CreateContact)
		v1.GET("/contacts", h.ListContacts)
		v1.GET("/contacts/:contact_id", h.GetContact)
		v1.DELETE("/contacts/:contact_id", h.DeleteContact)

		v1.POST("/callouts", h.CreateCallout)
		v1.GET("/callouts", h.ListCallouts)
		v1.GET("/callouts/:callout_id", h.GetCallout)
		v1.PATCH("/callouts/:callout_id", h.UpdateCallout)
		v1.DELETE("/callouts/:callout_id", h.DeleteCallout)
		v1.POST("/callouts/:callout_id/events", h.CalloutEvent)
		v1.GET("/callouts/:callout_id/calls_summary", h.CalloutCallsSummary)

		v1.POST("/callouts/:callout_id/participations", h.CreateParticipation)
		v1.GET("/callouts/:callout_id/participations", h.ListParticipations)
		v1.GET("/participations/:participation_id", h.GetParticipation)
		v1.DELETE("/participations/:participation_id", h.DeleteParticipation)

		v1.POST("/callouts/:callout_id/batch_operations", h.CreateBatchOperation)
		v1.GET("/callouts/:callout_id/batch_operations", h.ListBatchOperations)
		v1.GET("/batch_operations/:batch_operation_id", h.GetBatchOperation)
		v1.PATCH("/batch_operations/:batch_operation_id", h.UpdateBatchOperation)
		v1.DELETE("/batch_operations/:batch_operation_id", h.DeleteBatchOperation)
		v1.POST("/batch_operations/:batch_operation_id/events", h.BatchOperationEvent)
		v1.GET("/batch_operations/:batch_operation_id/preview", h.PreviewBatchOperation)
		v1.GET("/batch_operations/:batch_operation_id/preview/callout_participations", h.PreviewParticipations)
		v1.GET("/batch_operations/:batch_operation_id/preview/phone_calls", h.PreviewPhoneCalls)
	}
}
