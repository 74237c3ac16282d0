package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mroshb/pair_quiz/internal/middleware"
	"github.com/mroshb/pair_quiz/internal/services"
)

type StatisticsHandler struct {
	stats *services.StatisticsService
}

func NewStatisticsHandler(stats *services.StatisticsService) *StatisticsHandler {
	return &StatisticsHandler{stats: stats}
}

// MyStatistic handles GET /users/my-statistic.
func (h *StatisticsHandler) MyStatistic(c *gin.Context) {
	view, err := h.stats.MyStatistics(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Top handles GET /users/top.
func (h *StatisticsHandler) Top(c *gin.Context) {
	q, err := bindListQuery(c)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	page, err := h.stats.TopPlayers(c.Request.Context(), q.sortTerms(), q.params())
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}
