package models

import "fmt"

// RankingMetric is the aggregate users are ranked by
type RankingMetric string

const (
	MetricTime  RankingMetric = "time"
	MetricCount RankingMetric = "count"
	MetricBadge RankingMetric = "badge"
)

// RankingScope is the window the aggregate covers
type RankingScope string

const (
	ScopeMonth RankingScope = "month"
	ScopeYear  RankingScope = "year"
)

// ParseMetric validates a sort parameter
func ParseMetric(s string) (RankingMetric, error) {
	switch m := RankingMetric(s); m {
	case MetricTime, MetricCount, MetricBadge:
		return m, nil
	}
	return "", ErrInvalidSortType
}

// ParseScope validates a scope parameter
func ParseScope(s string) (RankingScope, error) {
	switch sc := RankingScope(s); sc {
	case ScopeMonth, ScopeYear:
		return sc, nil
	}
	return "", ErrInvalidScopeType
}

// FormatValue renders a raw aggregate for display
func (m RankingMetric) FormatValue(v int64) string {
	switch m {
	case MetricTime:
		return fmt.Sprintf("%dh %dm", v/60, v%60)
	case MetricCount:
		return fmt.Sprintf("%d books", v)
	case MetricBadge:
		return fmt.Sprintf("%d badges", v)
	}
	return fmt.Sprint(v)
}

// RankingEntry is one leaderboard row
type RankingEntry struct {
	Rank         int    `json:"rank"`
	UserID       string `json:"user_id"`
	Nickname     string `json:"nickname"`
	ProfileImage string `json:"profile_image,omitempty"`
	Level        int    `json:"level"`
	RawValue     int64  `json:"raw_value"`
	Value        string `json:"value"`
}

// MyRanking is the caller's standing. Rank is -1 when the caller has no
// activity in the window.
type MyRanking struct {
	UserID       string  `json:"user_id"`
	Nickname     string  `json:"nickname"`
	ProfileImage string  `json:"profile_image,omitempty"`
	Level        int     `json:"level"`
	Rank         int     `json:"rank"`
	Total        int     `json:"total"`
	Value        string  `json:"value"`
	Percentile   float64 `json:"percentile"`
}

// NoRankValue is displayed for users without activity
const NoRankValue = "-"
