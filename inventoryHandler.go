package main

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/retail_backend/models"
	"github.com/mmdatafocus/retail_backend/models/reports"
	"github.com/shopspring/decimal"
)

type quantityRequest struct {
	Quantity decimal.Decimal `json:"quantity"`
}

type activeRequest struct {
	IsActive *bool `json:"is_active"`
}

func registerInventoryRoutes(r gin.IRoutes) {
	r.POST("/inventory-items", func(c *gin.Context) {
		var input models.NewInventoryItem
		if !bindJSON(c, &input) {
			return
		}
		result, err := models.CreateInventoryItem(c.Request.Context(), &input)
		respondCreated(c, "CreateInventoryItem", result, err)
	})
	r.GET("/inventory-items", func(c *gin.Context) {
		result, err := models.ListInventoryItems(c.Request.Context(), models.InventoryItemFilter{
			ItemType:   c.Query("item_type"),
			ActiveOnly: c.Query("active_only") == "true",
			LowStock:   c.Query("low_stock") == "true",
		})
		respondOK(c, "ListInventoryItems", result, err)
	})
	r.GET("/inventory-items/:id", func(c *gin.Context) {
		result, err := models.GetInventoryItem(c.Request.Context(), c.Param("id"))
		respondOK(c, "GetInventoryItem", result, err)
	})
	r.POST("/inventory-items/:id/adjust", func(c *gin.Context) {
		var input models.NewInventoryAdjustment
		if !bindJSON(c, &input) {
			return
		}
		item, entry, err := models.AdjustInventoryItem(c.Request.Context(), c.Param("id"), &input)
		respondOK(c, "AdjustInventoryItem", gin.H{"item": item, "transaction": entry}, err)
	})
	r.POST("/inventory-items/:id/reserve", func(c *gin.Context) {
		var input quantityRequest
		if !bindJSON(c, &input) {
			return
		}
		result, err := models.ReserveInventory(c.Request.Context(), c.Param("id"), input.Quantity)
		respondOK(c, "ReserveInventory", result, err)
	})
	r.POST("/inventory-items/:id/release", func(c *gin.Context) {
		var input quantityRequest
		if !bindJSON(c, &input) {
			return
		}
		result, err := models.ReleaseInventory(c.Request.Context(), c.Param("id"), input.Quantity)
		respondOK(c, "ReleaseInventory", result, err)
	})
	r.POST("/inventory-items/:id/active", func(c *gin.Context) {
		var input activeRequest
		if !bindJSON(c, &input) {
			return
		}
		if input.IsActive == nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": gin.H{
				"kind": "ValidationError", "message": "is_active is required",
			}})
			return
		}
		result, err := models.ToggleInventoryItemActive(c.Request.Context(), c.Param("id"), *input.IsActive)
		respondOK(c, "ToggleInventoryItemActive", result, err)
	})
	r.GET("/inventory-items/:id/transactions", func(c *gin.Context) {
		result, err := models.ListInventoryTransactions(c.Request.Context(), models.InventoryTransactionFilter{
			InventoryItemId: c.Param("id"),
			ReferenceType:   c.Query("reference_type"),
			ReferenceId:     c.Query("reference_id"),
			Limit:           queryInt(c, "limit"),
		})
		respondOK(c, "ListInventoryTransactions", result, err)
	})
	r.GET("/inventory-items/:id/reconcile", func(c *gin.Context) {
		result, err := models.ReplayInventoryItem(c.Request.Context(), c.Param("id"))
		respondOK(c, "ReplayInventoryItem", result, err)
	})
	r.GET("/inventory/valuation", func(c *gin.Context) {
		result, err := reports.GetInventoryValuationReport(c.Request.Context(), c.Query("item_type"), c.Query("include_inactive") == "true")
		respondOK(c, "GetInventoryValuationReport", result, err)
	})
	r.GET("/inventory/valuation/export", func(c *gin.Context) {
		report, err := reports.GetInventoryValuationReport(c.Request.Context(), c.Query("item_type"), c.Query("include_inactive") == "true")
		if err != nil {
			respondError(c, "ExportInventoryValuation", err)
			return
		}
		var buf bytes.Buffer
		if err := reports.WriteInventoryValuationExcel(&buf, report); err != nil {
			respondError(c, "ExportInventoryValuation", err)
			return
		}
		c.Header("Content-Disposition", "attachment; filename=inventory-valuation.xlsx")
		c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
	})
}
