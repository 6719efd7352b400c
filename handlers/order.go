package handlers

import (
	"net/http"

	"bitbucket.org/mmdatafocus/stockflow_backend/models"
	"github.com/gin-gonic/gin"
)

func CreateCustomerOrder(c *gin.Context) {
	var input models.NewCustomerOrder
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order payload"})
		return
	}

	order, alerts, err := models.CreateCustomerOrder(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"order":          order,
		"lowStockAlerts": alerts,
	})
}

func GetCustomerOrder(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	order, err := models.GetCustomerOrder(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func ListCustomerOrders(c *gin.Context) {
	status := models.CustomerOrderStatus(c.Query("status"))
	limit := queryInt(c, "limit", 0)
	offset := queryInt(c, "offset", 0)

	orders, err := models.ListCustomerOrders(c.Request.Context(), status, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func ValidateCustomerOrder(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	order, err := models.ValidateCustomerOrder(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func DeliverCustomerOrder(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	order, err := models.MarkCustomerOrderDelivered(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func PayCustomerOrder(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	order, err := models.MarkCustomerOrderPaid(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func CancelCustomerOrder(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	order, err := models.CancelCustomerOrder(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// RefreshCustomerOrderTotal re-derives the persisted total from the stored
// lines, for repairing rows after a manual data fix.
func RefreshCustomerOrderTotal(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	order, err := models.RefreshCustomerOrderTotal(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func CanDeleteCustomerOrder(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	deletable, err := models.CanDeleteCustomerOrder(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"canDelete": deletable})
}

func DeleteCustomerOrder(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	if err := models.DeleteCustomerOrder(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
