package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"booktrack/pkg/models"
)

type startTimerRequest struct {
	PlanID int64 `json:"plan_id"`
}

type stopTimerRequest struct {
	CurrentPage *int `json:"current_page"`
}

type createReadingLogRequest struct {
	ContentType string `json:"content_type"`
	Content     string `json:"content"`
	ImageURL    string `json:"image_url"`
}

func (s *Server) startTimer(c *gin.Context) {
	var req startTimerRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, err)
		return
	}
	if req.PlanID <= 0 {
		respondError(c, models.ErrFieldRequired.WithDetail("field", "plan_id"))
		return
	}

	record, err := s.deps.Timer.Start(c.Request.Context(), userID(c), req.PlanID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, record)
}

// stopTimer closes the running session and records the page reached
func (s *Server) stopTimer(c *gin.Context) {
	var req stopTimerRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, err)
		return
	}
	if req.CurrentPage == nil {
		respondError(c, models.ErrFieldRequired.WithDetail("field", "current_page"))
		return
	}

	result, err := s.deps.Timer.Stop(c.Request.Context(), userID(c), *req.CurrentPage)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, result)
}

func (s *Server) timeStats(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		respondError(c, err)
		return
	}

	stats, err := s.deps.Timer.TimeStats(c.Request.Context(), userID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, stats)
}

func (s *Server) timeDetails(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		respondError(c, err)
		return
	}
	date, err := pathDate(c)
	if err != nil {
		respondError(c, err)
		return
	}

	details, err := s.deps.Timer.Details(c.Request.Context(), userID(c), id, date)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, details)
}

func (s *Server) createReadingLog(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		respondError(c, err)
		return
	}

	var req createReadingLogRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, err)
		return
	}

	contentType := models.ContentType(strings.ToUpper(req.ContentType))
	result, err := s.deps.ReadingLogs.Create(c.Request.Context(), userID(c), id, contentType, req.Content, req.ImageURL)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, result)
}

func (s *Server) listReadingLogs(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		respondError(c, err)
		return
	}

	contentType := models.ContentType(strings.ToUpper(c.Query("type")))
	logs, err := s.deps.ReadingLogs.ListByPlan(c.Request.Context(), userID(c), id, contentType)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, logs)
}
