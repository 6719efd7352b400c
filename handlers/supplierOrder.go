package handlers

import (
	"net/http"

	"bitbucket.org/mmdatafocus/stockflow_backend/models"
	"github.com/gin-gonic/gin"
)

func CreateSupplierOrder(c *gin.Context) {
	var input models.NewSupplierOrder
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid supplier order payload"})
		return
	}

	order, err := models.CreateSupplierOrder(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func GetSupplierOrder(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	order, err := models.GetSupplierOrder(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func ValidateSupplierOrder(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	order, err := models.ValidateSupplierOrder(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func ReceiveSupplierOrder(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	order, err := models.ReceiveSupplierOrder(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func CancelSupplierOrder(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	order, err := models.CancelSupplierOrder(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}
