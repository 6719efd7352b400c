package handlers

import (
	"net/http"

	"bitbucket.org/mmdatafocus/stockflow_backend/models"
	"github.com/gin-gonic/gin"
)

func CreateProduct(c *gin.Context) {
	var input models.NewProduct
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product payload"})
		return
	}

	product, err := models.CreateProduct(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

func GetProduct(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	product, err := models.GetProduct(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func ListProducts(c *gin.Context) {
	activeOnly := c.Query("all") == ""
	products, err := models.ListProducts(c.Request.Context(), activeOnly)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func UpdateProduct(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	var input models.UpdateProductInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product payload"})
		return
	}
	product, err := models.UpdateProduct(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func ArchiveProduct(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	if err := models.ArchiveProduct(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func DeleteProduct(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	if err := models.DeleteProduct(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func AdjustProductStock(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	var input models.NewStockAdjustment
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid adjustment payload"})
		return
	}
	input.ProductId = id

	movement, err := models.CreateStockAdjustment(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, movement)
}

func LowStockProducts(c *gin.Context) {
	products, err := models.LowStockProducts(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func ListStockMovements(c *gin.Context) {
	productId := queryInt(c, "productId", 0)
	limit := queryInt(c, "limit", 50)
	movements, err := models.ListStockMovements(c.Request.Context(), productId, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, movements)
}

func ReconcileProductStock(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	result, err := models.ReconcileProductStock(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
