package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"bitbucket.org/mmdatafocus/stockflow_backend/models"
	"bitbucket.org/mmdatafocus/stockflow_backend/utils"
	"github.com/gin-gonic/gin"
)

// respondError maps the domain failure taxonomy onto HTTP status codes.
func respondError(c *gin.Context, err error) {
	var validation *models.ValidationError
	var insufficient *models.StockInsufficientError
	var notFound *models.NotFoundError

	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": validation.Reason})
	case errors.As(err, &insufficient):
		c.JSON(http.StatusConflict, gin.H{
			"error":     insufficient.Error(),
			"productId": insufficient.ProductId,
			"available": insufficient.Available,
			"requested": insufficient.Requested,
		})
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"error": notFound.Error()})
	case errors.Is(err, models.ErrAlreadyCancelled):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrNotDeletable):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, utils.ErrorRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func pathId(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
