package main

import (
	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/retail_backend/models"
)

func registerAdvanceRoutes(r gin.IRoutes) {
	r.POST("/advances", func(c *gin.Context) {
		var input models.NewSupplierAdvance
		if !bindJSON(c, &input) {
			return
		}
		result, err := models.CreateAdvance(c.Request.Context(), &input)
		respondCreated(c, "CreateAdvance", result, err)
	})
	r.GET("/advances", func(c *gin.Context) {
		result, err := models.ListAdvances(c.Request.Context(), models.SupplierAdvanceFilter{
			SupplierId: c.Query("supplier_id"),
			Status:     c.Query("status"),
		})
		respondOK(c, "ListAdvances", result, err)
	})
	r.GET("/advances/:id", func(c *gin.Context) {
		result, err := models.GetAdvance(c.Request.Context(), c.Param("id"))
		respondOK(c, "GetAdvance", result, err)
	})
	r.DELETE("/advances/:id", func(c *gin.Context) {
		result, err := models.DeleteAdvance(c.Request.Context(), c.Param("id"))
		respondOK(c, "DeleteAdvance", result, err)
	})
	r.POST("/advances/:id/apply", func(c *gin.Context) {
		var input models.ApplyAdvanceInput
		if !bindJSON(c, &input) {
			return
		}
		result, err := models.ApplyAdvance(c.Request.Context(), c.Param("id"), &input)
		respondOK(c, "ApplyAdvance", result, err)
	})
}
