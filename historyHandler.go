package main

import (
	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/retail_backend/models"
)

func registerHistoryRoutes(r gin.IRoutes) {
	r.GET("/histories", func(c *gin.Context) {
		result, err := models.GetHistories(c.Request.Context(), models.HistoryFilter{
			EntityType: c.Query("entity_type"),
			EntityId:   c.Query("entity_id"),
			ActorId:    c.Query("actor_id"),
			Action:     c.Query("action"),
			Limit:      queryInt(c, "limit"),
		})
		respondOK(c, "GetHistories", result, err)
	})
	r.GET("/ledger-events", func(c *gin.Context) {
		result, err := models.ListLedgerEvents(c.Request.Context(), models.LedgerEventFilter{
			ReferenceType: c.Query("reference_type"),
			ReferenceId:   c.Query("reference_id"),
			PublishStatus: c.Query("publish_status"),
			Limit:         queryInt(c, "limit"),
		})
		respondOK(c, "ListLedgerEvents", result, err)
	})
	r.GET("/reconciliation-reports", func(c *gin.Context) {
		result, err := models.ListReconciliationReports(c.Request.Context(), c.Query("check_type"), queryInt(c, "limit"))
		respondOK(c, "ListReconciliationReports", result, err)
	})
}
