package main

import (
	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/retail_backend/models"
)

func registerPurchaseRoutes(r gin.IRoutes) {
	r.POST("/purchases", func(c *gin.Context) {
		var input models.NewPurchase
		if !bindJSON(c, &input) {
			return
		}
		result, err := models.CreatePurchase(c.Request.Context(), &input)
		respondCreated(c, "CreatePurchase", result, err)
	})
	r.GET("/purchases", func(c *gin.Context) {
		result, err := models.ListPurchases(c.Request.Context(), models.PurchaseFilter{
			SupplierId: c.Query("supplier_id"),
			Status:     c.Query("status"),
		})
		respondOK(c, "ListPurchases", result, err)
	})
	r.GET("/purchases/:id", func(c *gin.Context) {
		result, err := models.GetPurchase(c.Request.Context(), c.Param("id"))
		respondOK(c, "GetPurchase", result, err)
	})
	r.PUT("/purchases/:id", func(c *gin.Context) {
		var input models.NewPurchase
		if !bindJSON(c, &input) {
			return
		}
		result, err := models.UpdatePurchase(c.Request.Context(), c.Param("id"), &input)
		respondOK(c, "UpdatePurchase", result, err)
	})
	r.DELETE("/purchases/:id", func(c *gin.Context) {
		result, err := models.DeletePurchase(c.Request.Context(), c.Param("id"))
		respondOK(c, "DeletePurchase", result, err)
	})
	r.POST("/purchases/:id/order", func(c *gin.Context) {
		result, err := models.MarkPurchaseOrdered(c.Request.Context(), c.Param("id"))
		respondOK(c, "MarkPurchaseOrdered", result, err)
	})
	r.POST("/purchases/:id/cancel", func(c *gin.Context) {
		result, err := models.CancelPurchase(c.Request.Context(), c.Param("id"))
		respondOK(c, "CancelPurchase", result, err)
	})
	r.POST("/purchases/:id/receive/preview", func(c *gin.Context) {
		var input models.ReceivePurchaseInput
		if !bindJSON(c, &input) {
			return
		}
		result, err := models.PreviewReceive(c.Request.Context(), c.Param("id"), &input)
		respondOK(c, "PreviewReceive", result, err)
	})
	r.POST("/purchases/:id/receive", func(c *gin.Context) {
		var input models.ReceivePurchaseInput
		if !bindJSON(c, &input) {
			return
		}
		result, err := models.ReceivePurchase(c.Request.Context(), c.Param("id"), &input)
		respondOK(c, "ReceivePurchase", result, err)
	})
	r.GET("/purchases/:id/advances", func(c *gin.Context) {
		result, err := models.ListPurchaseAdvances(c.Request.Context(), c.Param("id"))
		respondOK(c, "ListPurchaseAdvances", result, err)
	})
}
