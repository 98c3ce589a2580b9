package main

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/retail_backend/config"
	"github.com/mmdatafocus/retail_backend/utils"
)

// respondError writes err as {"error": {kind, message, details}}. Internal causes are logged, never returned.
func respondError(c *gin.Context, funcName string, err error) {
	appErr := utils.AsAppError(err)
	if appErr.Kind == utils.KindInternal {
		config.LogError(config.GetLogger(), "server", funcName, c.Request.Method+" "+c.FullPath(), nil, err)
		_ = c.Error(err)
	}
	body := gin.H{"kind": appErr.Kind, "message": appErr.Message}
	if len(appErr.Details) > 0 {
		body["details"] = appErr.Details
	}
	c.AbortWithStatusJSON(appErr.HTTPStatus(), gin.H{"error": body})
}

// bindJSON decodes the body into dest, answering 400 on malformed input.
func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		respondError(c, "bindJSON", utils.NewValidationError("malformed request body", map[string]string{"body": err.Error()}))
		return false
	}
	return true
}

func respond(c *gin.Context, status int, funcName string, result interface{}, err error) {
	if err != nil {
		respondError(c, funcName, err)
		return
	}
	c.JSON(status, result)
}

func respondOK(c *gin.Context, funcName string, result interface{}, err error) {
	respond(c, http.StatusOK, funcName, result, err)
}

func respondCreated(c *gin.Context, funcName string, result interface{}, err error) {
	respond(c, http.StatusCreated, funcName, result, err)
}

func queryInt(c *gin.Context, key string) int {
	n, _ := strconv.Atoi(c.Query(key))
	return n
}
