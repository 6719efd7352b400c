package handlers

import (
	"net/http"

	"bitbucket.org/mmdatafocus/stockflow_backend/models"
	"bitbucket.org/mmdatafocus/stockflow_backend/models/reports"
	"github.com/gin-gonic/gin"
)

func GetStatistics(c *gin.Context) {
	days := queryInt(c, "days", 7)
	stats, err := models.GetStatisticsRange(c.Request.Context(), days)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func RecomputeStatistics(c *gin.Context) {
	if err := models.UpdateDailyStatistics(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func ExportStatistics(c *gin.Context) {
	days := queryInt(c, "days", 30)
	if err := reports.WriteDailyStatisticsExcel(c.Request.Context(), c.Writer, days); err != nil {
		respondError(c, err)
		return
	}
}

func RecentActivity(c *gin.Context) {
	limit := queryInt(c, "limit", 20)
	entries, err := models.RecentActivity(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}
