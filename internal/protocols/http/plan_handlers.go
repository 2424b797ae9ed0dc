package http

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"booktrack/pkg/models"
)

type extendPlanRequest struct {
	EndDate models.Date `json:"end_date"`
}

type deletePlansRequest struct {
	PlanIDs []int64 `json:"plan_ids"`
}

// userID returns the authenticated caller. Routes are mounted behind
// AuthMiddleware, so a miss is a wiring bug.
func userID(c *gin.Context) string {
	id, _ := GetUserID(c)
	return id
}

func pathID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid plan id %q: %w", c.Param("id"), models.ErrInvalidInput)
	}
	return id, nil
}

func pathDate(c *gin.Context) (time.Time, error) {
	d, err := models.ParseDate(c.Param("date"))
	if err != nil {
		return time.Time{}, err
	}
	return d.Time, nil
}

func bindJSON(c *gin.Context, v interface{}) error {
	if err := c.ShouldBindJSON(v); err != nil {
		return fmt.Errorf("invalid request body: %v: %w", err, models.ErrInvalidInput)
	}
	return nil
}

// previewPlan computes a schedule and pacing without saving
func (s *Server) previewPlan(c *gin.Context) {
	var req models.PlanRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, err)
		return
	}

	preview, err := s.deps.Plans.Preview(c.Request.Context(), userID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, preview)
}

func (s *Server) createPlan(c *gin.Context) {
	var req models.PlanRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, err)
		return
	}

	plan, err := s.deps.Plans.Create(c.Request.Context(), userID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, plan)
}

// listPlans lists every plan, or only those in ?status=
func (s *Server) listPlans(c *gin.Context) {
	ctx := c.Request.Context()

	status := c.Query("status")
	if status == "" {
		plans, err := s.deps.Plans.List(ctx, userID(c))
		if err != nil {
			respondError(c, err)
			return
		}
		respond(c, http.StatusOK, plans)
		return
	}

	st := models.PlanStatus(strings.ToUpper(status))
	if !st.Valid() {
		respondError(c, fmt.Errorf("unknown plan status %q: %w", status, models.ErrInvalidInput))
		return
	}
	plans, err := s.deps.Plans.ListByStatus(ctx, userID(c), st)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, plans)
}

func (s *Server) todayPlans(c *gin.Context) {
	plans, err := s.deps.Plans.Today(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, plans)
}

// calendarPlans lists plans overlapping ?year=&month=, defaulting to the
// current month
func (s *Server) calendarPlans(c *gin.Context) {
	now := time.Now()
	year, month := now.Year(), int(now.Month())

	if v := c.Query("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1 {
			respondError(c, fmt.Errorf("invalid year %q: %w", v, models.ErrInvalidInput))
			return
		}
		year = y
	}
	if v := c.Query("month"); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			respondError(c, fmt.Errorf("invalid month %q: %w", v, models.ErrInvalidInput))
			return
		}
		month = m
	}

	plans, err := s.deps.Plans.Calendar(c.Request.Context(), userID(c), year, time.Month(month))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, plans)
}

func (s *Server) plansByDate(c *gin.Context) {
	date, err := pathDate(c)
	if err != nil {
		respondError(c, err)
		return
	}

	plans, err := s.deps.Plans.ByDate(c.Request.Context(), userID(c), date)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, plans)
}

func (s *Server) getPlan(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		respondError(c, err)
		return
	}

	detail, err := s.deps.Plans.Detail(c.Request.Context(), userID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, detail)
}

func (s *Server) abandonPlan(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		respondError(c, err)
		return
	}

	if err := s.deps.Plans.Abandon(c.Request.Context(), userID(c), id); err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, "plan abandoned")
}

func (s *Server) extendPlan(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		respondError(c, err)
		return
	}

	var req extendPlanRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, err)
		return
	}
	if req.EndDate.IsZero() {
		respondError(c, models.ErrFieldRequired.WithDetail("field", "end_date"))
		return
	}

	plan, err := s.deps.Plans.Extend(c.Request.Context(), userID(c), id, req.EndDate.Time)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, plan)
}

func (s *Server) deletePlan(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		respondError(c, err)
		return
	}

	if err := s.deps.Plans.Delete(c.Request.Context(), userID(c), id); err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, "plan deleted")
}

// deletePlans removes the caller's plans among plan_ids; unknown ids are
// ignored
func (s *Server) deletePlans(c *gin.Context) {
	var req deletePlansRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, err)
		return
	}

	deleted, err := s.deps.Plans.DeleteMany(c.Request.Context(), userID(c), req.PlanIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"deleted": deleted})
}

func (s *Server) addWishlist(c *gin.Context) {
	if err := s.deps.Plans.AddToWishlist(c.Request.Context(), userID(c), c.Param("isbn")); err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, "added to wishlist")
}

func (s *Server) removeWishlist(c *gin.Context) {
	if err := s.deps.Plans.RemoveFromWishlist(c.Request.Context(), userID(c), c.Param("isbn")); err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, "removed from wishlist")
}
