package http

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"booktrack/pkg/models"
)

const (
	defaultSearchLimit = 10
	maxSearchLimit     = 50
)

// rankingParams reads ?sort=&scope=, defaulting to time and month
func rankingParams(c *gin.Context) (models.RankingMetric, models.RankingScope, error) {
	metric, err := models.ParseMetric(strings.ToLower(c.DefaultQuery("sort", string(models.MetricTime))))
	if err != nil {
		return "", "", err
	}
	scope, err := models.ParseScope(strings.ToLower(c.DefaultQuery("scope", string(models.ScopeMonth))))
	if err != nil {
		return "", "", err
	}
	return metric, scope, nil
}

func (s *Server) leaderboard(c *gin.Context) {
	metric, scope, err := rankingParams(c)
	if err != nil {
		respondError(c, err)
		return
	}

	entries, err := s.deps.Rankings.Leaderboard(c.Request.Context(), metric, scope)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, entries)
}

func (s *Server) myRanking(c *gin.Context) {
	metric, scope, err := rankingParams(c)
	if err != nil {
		respondError(c, err)
		return
	}

	mine, err := s.deps.Rankings.MyRanking(c.Request.Context(), userID(c), metric, scope)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, mine)
}

// listBadges returns the catalog with the caller's acquisition status,
// optionally narrowed by ?type=
func (s *Server) listBadges(c *gin.Context) {
	ctx := c.Request.Context()

	if t := c.Query("type"); t != "" {
		badgeType := models.BadgeType(strings.ToUpper(t))
		if !badgeType.Valid() {
			respondError(c, fmt.Errorf("unknown badge type %q: %w", t, models.ErrInvalidInput))
			return
		}
		badges, err := s.deps.Badges.ByTypeWithStatus(ctx, userID(c), badgeType)
		if err != nil {
			respondError(c, err)
			return
		}
		respond(c, http.StatusOK, badges)
		return
	}

	badges, err := s.deps.Badges.AllWithStatus(ctx, userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, badges)
}

func (s *Server) myBadges(c *gin.Context) {
	badges, err := s.deps.Badges.Mine(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, badges)
}

func (s *Server) myStats(c *gin.Context) {
	stats, err := s.deps.Badges.Stats(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, stats)
}

// registerDevice stores a push token for the caller
func (s *Server) registerDevice(c *gin.Context) {
	var req struct {
		Token string `json:"token"`
	}
	if err := bindJSON(c, &req); err != nil {
		respondError(c, err)
		return
	}
	if err := s.deps.Users.RegisterDevice(c.Request.Context(), userID(c), req.Token); err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, "device registered")
}

// searchBooks proxies ?q= to the catalog
func (s *Server) searchBooks(c *gin.Context) {
	limit := defaultSearchLimit
	if l := c.Query("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= maxSearchLimit {
			limit = v
		}
	}

	books, err := s.deps.Books.Search(c.Request.Context(), c.Query("q"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, books)
}

// getBook returns a stored book, importing it from the catalog on first use
func (s *Server) getBook(c *gin.Context) {
	book, err := s.deps.Books.FetchOrCreate(c.Request.Context(), c.Param("isbn"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, book)
}
