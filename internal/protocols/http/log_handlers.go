package http

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"booktrack/pkg/models"
)

type updateReadingLogRequest struct {
	Content string `json:"content"`
}

type deleteLogsRequest struct {
	LogIDs []int64 `json:"log_ids"`
}

func logID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid log id %q: %w", c.Param("id"), models.ErrInvalidInput)
	}
	return id, nil
}

func queryInt(c *gin.Context, key string, def int) int {
	if v, err := strconv.Atoi(c.Query(key)); err == nil {
		return v
	}
	return def
}

func (s *Server) getReadingLog(c *gin.Context) {
	id, err := logID(c)
	if err != nil {
		respondError(c, err)
		return
	}
	log, err := s.deps.ReadingLogs.Get(c.Request.Context(), userID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, log)
}

func (s *Server) updateReadingLog(c *gin.Context) {
	id, err := logID(c)
	if err != nil {
		respondError(c, err)
		return
	}

	var req updateReadingLogRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, err)
		return
	}

	log, err := s.deps.ReadingLogs.Update(c.Request.Context(), userID(c), id, req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, log)
}

func (s *Server) deleteReadingLog(c *gin.Context) {
	id, err := logID(c)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := s.deps.ReadingLogs.Delete(c.Request.Context(), userID(c), id); err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, "reading log deleted")
}

func (s *Server) deleteReadingLogs(c *gin.Context) {
	var req deleteLogsRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, err)
		return
	}

	deleted, err := s.deps.ReadingLogs.DeleteMany(c.Request.Context(), userID(c), req.LogIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"deleted": deleted})
}

// listScraps pages with ?page= (from 0) and ?size=
func (s *Server) listScraps(c *gin.Context) {
	scraps, err := s.deps.ReadingLogs.Scraps(c.Request.Context(), userID(c), queryInt(c, "page", 0), queryInt(c, "size", 0))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, scraps)
}

// scrapsByBook sorts with ?sort=latest|oldest|count
func (s *Server) scrapsByBook(c *gin.Context) {
	books, err := s.deps.ReadingLogs.ScrapsByBook(c.Request.Context(), userID(c), models.ParseScrapOrder(c.Query("sort")))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, books)
}

// readingStats buckets the caller's reading time; ?scope=day|week|month
func (s *Server) readingStats(c *gin.Context) {
	scope, err := models.ParseStatsScope(c.DefaultQuery("scope", string(models.StatsScopeDay)))
	if err != nil {
		respondError(c, err)
		return
	}
	stats, err := s.deps.Statistics.Reading(c.Request.Context(), userID(c), scope)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, stats)
}
