package main

import (
	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/retail_backend/models"
	"github.com/mmdatafocus/retail_backend/utils"
)

type snapshotRequest struct {
	Notes string `json:"notes"`
}

func registerProductionRoutes(r gin.IRoutes) {
	r.POST("/models", func(c *gin.Context) {
		var input models.NewProductModel
		if !bindJSON(c, &input) {
			return
		}
		result, err := models.CreateModel(c.Request.Context(), &input)
		respondCreated(c, "CreateModel", result, err)
	})
	r.GET("/models/:id", func(c *gin.Context) {
		result, err := models.GetModel(c.Request.Context(), c.Param("id"))
		respondOK(c, "GetModel", result, err)
	})
	r.POST("/models/:id/bom-items", func(c *gin.Context) {
		var input models.NewBomItem
		if !bindJSON(c, &input) {
			return
		}
		result, err := models.AddBomItem(c.Request.Context(), c.Param("id"), &input)
		respondCreated(c, "AddBomItem", result, err)
	})
	r.DELETE("/models/:id/bom-items/:bomItemId", func(c *gin.Context) {
		result, err := models.RemoveBomItem(c.Request.Context(), c.Param("id"), c.Param("bomItemId"))
		respondOK(c, "RemoveBomItem", result, err)
	})
	r.GET("/models/:id/availability", func(c *gin.Context) {
		planned, err := utils.ParseDecimal(c.Query("planned_qty"))
		if err != nil {
			respondError(c, "CheckMaterialAvailability", utils.NewValidationError("planned_qty must be a decimal",
				map[string]string{"planned_qty": "decimal"}))
			return
		}
		result, err := models.CheckMaterialAvailability(c.Request.Context(), c.Param("id"), planned)
		respondOK(c, "CheckMaterialAvailability", result, err)
	})
	r.GET("/models/:id/cost-breakdown", func(c *gin.Context) {
		result, err := models.GetCostBreakdown(c.Request.Context(), c.Param("id"))
		respondOK(c, "GetCostBreakdown", result, err)
	})
	r.GET("/models/:id/cost-snapshots", func(c *gin.Context) {
		result, err := models.ListCostSnapshots(c.Request.Context(), c.Param("id"))
		respondOK(c, "ListCostSnapshots", result, err)
	})
	r.POST("/models/:id/cost-snapshots", func(c *gin.Context) {
		var input snapshotRequest
		if c.Request.ContentLength != 0 && !bindJSON(c, &input) {
			return
		}
		result, err := models.CreateCostSnapshot(c.Request.Context(), c.Param("id"), input.Notes)
		respondCreated(c, "CreateCostSnapshot", result, err)
	})

	r.POST("/charges", func(c *gin.Context) {
		var input models.NewCharge
		if !bindJSON(c, &input) {
			return
		}
		result, err := models.CreateCharge(c.Request.Context(), &input)
		respondCreated(c, "CreateCharge", result, err)
	})
	r.GET("/charges", func(c *gin.Context) {
		result, err := models.ListCharges(c.Request.Context(), c.Query("category"))
		respondOK(c, "ListCharges", result, err)
	})

	r.POST("/production-batches", func(c *gin.Context) {
		var input models.NewProductionBatch
		if !bindJSON(c, &input) {
			return
		}
		result, err := models.CreateProductionBatch(c.Request.Context(), &input)
		respondCreated(c, "CreateProductionBatch", result, err)
	})
	r.GET("/production-batches/:id", func(c *gin.Context) {
		result, err := models.GetProductionBatch(c.Request.Context(), c.Param("id"))
		respondOK(c, "GetProductionBatch", result, err)
	})
	r.POST("/production-batches/:id/consume", func(c *gin.Context) {
		var input models.ConsumeMaterialsInput
		if c.Request.ContentLength != 0 && !bindJSON(c, &input) {
			return
		}
		result, err := models.ConsumeMaterials(c.Request.Context(), c.Param("id"), &input)
		respondOK(c, "ConsumeMaterials", result, err)
	})
	r.POST("/production-batches/:id/complete", func(c *gin.Context) {
		var input models.CompleteBatchInput
		if !bindJSON(c, &input) {
			return
		}
		result, err := models.CompleteBatch(c.Request.Context(), c.Param("id"), &input)
		respondOK(c, "CompleteBatch", result, err)
	})
	r.POST("/production-batches/:id/hold", func(c *gin.Context) {
		result, err := models.HoldBatch(c.Request.Context(), c.Param("id"))
		respondOK(c, "HoldBatch", result, err)
	})
	r.POST("/production-batches/:id/resume", func(c *gin.Context) {
		result, err := models.ResumeBatch(c.Request.Context(), c.Param("id"))
		respondOK(c, "ResumeBatch", result, err)
	})
	r.POST("/production-batches/:id/cancel", func(c *gin.Context) {
		result, err := models.CancelBatch(c.Request.Context(), c.Param("id"))
		respondOK(c, "CancelBatch", result, err)
	})
}
