// Package apiclient is a thin client of the booktrack REST API used by the
// CLI and the TUI
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"booktrack/pkg/models"
)

// Client handles HTTP API communication
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

// Error is a non-success API response
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s, status %d)", e.Message, e.Code, e.Status)
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
}

// NewClient creates a client for baseURL, e.g. http://localhost:8080/api/v1
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, target interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	return decodeAPIResponse(resp, target)
}

type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	Code    string          `json:"code,omitempty"`
}

// decodeAPIResponse decodes the APIResponse envelope and unmarshals the data
// field into target
func decodeAPIResponse(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()

	var apiResp apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &Error{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !apiResp.Success {
		msg := apiResp.Error
		if msg == "" {
			msg = "request failed"
		}
		return &Error{Status: resp.StatusCode, Code: apiResp.Code, Message: msg}
	}

	if target != nil && len(apiResp.Data) > 0 {
		if err := json.Unmarshal(apiResp.Data, target); err != nil {
			return fmt.Errorf("failed to decode response data: %w", err)
		}
	}
	return nil
}

// Plans

func (c *Client) PreviewPlan(ctx context.Context, req models.PlanRequest) (*models.PlanPreview, error) {
	var preview models.PlanPreview
	if err := c.do(ctx, http.MethodPost, "/plans/preview", req, &preview); err != nil {
		return nil, err
	}
	return &preview, nil
}

func (c *Client) CreatePlan(ctx context.Context, req models.PlanRequest) (*models.Plan, error) {
	var plan models.Plan
	if err := c.do(ctx, http.MethodPost, "/plans", req, &plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

// ListPlans lists the caller's plans; an empty status lists all
func (c *Client) ListPlans(ctx context.Context, status models.PlanStatus) ([]models.PlanSummary, error) {
	path := "/plans"
	if status != "" {
		path += "?status=" + url.QueryEscape(string(status))
	}
	var plans []models.PlanSummary
	if err := c.do(ctx, http.MethodGet, path, nil, &plans); err != nil {
		return nil, err
	}
	return plans, nil
}

func (c *Client) TodayPlans(ctx context.Context) ([]models.PlanSummary, error) {
	var plans []models.PlanSummary
	if err := c.do(ctx, http.MethodGet, "/plans/today", nil, &plans); err != nil {
		return nil, err
	}
	return plans, nil
}

func (c *Client) AbandonPlan(ctx context.Context, planID int64) error {
	return c.do(ctx, http.MethodPatch, "/plans/"+strconv.FormatInt(planID, 10)+"/abandon", nil, nil)
}

// Timer

func (c *Client) StartTimer(ctx context.Context, planID int64) (*models.TimeRecord, error) {
	var rec models.TimeRecord
	if err := c.do(ctx, http.MethodPost, "/timer/start", map[string]int64{"plan_id": planID}, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *Client) StopTimer(ctx context.Context, currentPage int) (*models.TimerStopResult, error) {
	var result models.TimerStopResult
	if err := c.do(ctx, http.MethodPost, "/timer/stop", map[string]int{"current_page": currentPage}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Badges and rankings

// Badges lists the badge catalog with the caller's status. mine limits the
// list to acquired badges.
func (c *Client) Badges(ctx context.Context, mine bool) ([]models.BadgeStatus, error) {
	path := "/badges"
	if mine {
		path = "/badges/me"
	}
	var badges []models.BadgeStatus
	if err := c.do(ctx, http.MethodGet, path, nil, &badges); err != nil {
		return nil, err
	}
	return badges, nil
}

func (c *Client) Leaderboard(ctx context.Context, metric models.RankingMetric, scope models.RankingScope) ([]models.RankingEntry, error) {
	q := url.Values{"sort": {string(metric)}, "scope": {string(scope)}}
	var entries []models.RankingEntry
	if err := c.do(ctx, http.MethodGet, "/rankings?"+q.Encode(), nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (c *Client) MyRanking(ctx context.Context, metric models.RankingMetric, scope models.RankingScope) (*models.MyRanking, error) {
	q := url.Values{"sort": {string(metric)}, "scope": {string(scope)}}
	var mine models.MyRanking
	if err := c.do(ctx, http.MethodGet, "/rankings/me?"+q.Encode(), nil, &mine); err != nil {
		return nil, err
	}
	return &mine, nil
}
