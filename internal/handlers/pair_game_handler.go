package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mroshb/pair_quiz/internal/middleware"
	"github.com/mroshb/pair_quiz/internal/services"
	"github.com/mroshb/pair_quiz/pkg/errors"
)

type PairGameHandler struct {
	games *services.PairGameService
}

func NewPairGameHandler(games *services.PairGameService) *PairGameHandler {
	return &PairGameHandler{games: games}
}

type submitAnswerRequest struct {
	Answer *string `json:"answer" binding:"required"`
}

// MyCurrent handles GET /pairs/my-current.
func (h *PairGameHandler) MyCurrent(c *gin.Context) {
	view, err := h.games.GetCurrentGame(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// MyGames handles GET /pairs/my.
func (h *PairGameHandler) MyGames(c *gin.Context) {
	q, err := bindListQuery(c)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	page, err := h.games.MyGames(c.Request.Context(), middleware.UserID(c), q.sortTerms(), q.params())
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// GetByID handles GET /pairs/:id.
func (h *PairGameHandler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		middleware.AbortWithError(c, errors.New(errors.ErrCodeValidation, "game id must be a UUID"))
		return
	}

	view, err := h.games.FindGameByID(c.Request.Context(), id.String(), middleware.UserID(c))
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Connect handles POST /pairs/connection.
func (h *PairGameHandler) Connect(c *gin.Context) {
	view, err := h.games.ConnectToGame(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// SubmitAnswer handles POST /pairs/my-current/answers.
func (h *PairGameHandler) SubmitAnswer(c *gin.Context) {
	var req submitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithError(c, errors.Wrap(err, errors.ErrCodeValidation, "body must be {\"answer\": string}"))
		return
	}

	answer, err := h.games.SubmitAnswer(c.Request.Context(), middleware.UserID(c), *req.Answer)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, answer)
}
