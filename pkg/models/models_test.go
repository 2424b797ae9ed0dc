package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTier(t *testing.T) {
	cases := map[string]Tier{
		"beginner":      TierBeginner,
		" Intermediate": TierIntermediate,
		"ADVANCED":      TierAdvanced,
		"초급":            TierBeginner,
		"중급":            TierIntermediate,
		"고급":            TierAdvanced,
	}
	for in, want := range cases {
		got, ok := ParseTier(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	_, ok := ParseTier("expert")
	assert.False(t, ok)
}

func TestTierSpeedFactor(t *testing.T) {
	assert.Equal(t, 2, TierBeginner.SpeedFactor())
	assert.Equal(t, 3, TierIntermediate.SpeedFactor())
	assert.Equal(t, 5, TierAdvanced.SpeedFactor())
	assert.Equal(t, 2, Tier("").SpeedFactor())
}

func TestLevelForBadges(t *testing.T) {
	for count, level := range map[int]int{0: 1, 1: 1, 2: 2, 3: 2, 4: 3, 11: 6} {
		assert.Equal(t, level, LevelForBadges(count), "badges=%d", count)
	}
}

func TestDateJSON(t *testing.T) {
	var req PlanRequest
	err := json.Unmarshal([]byte(`{"isbn":"9788936434120","start_date":"2024-01-01","exclude_dates":["2024-01-03"]}`), &req)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), req.StartDate.Time)
	require.Len(t, req.ExcludeDates, 1)
	assert.Equal(t, "2024-01-03", req.ExcludeDates[0].String())

	out, err := json.Marshal(NewDate(time.Date(2024, 2, 29, 15, 4, 5, 0, time.UTC)))
	require.NoError(t, err)
	assert.Equal(t, `"2024-02-29"`, string(out))

	err = json.Unmarshal([]byte(`{"start_date":"01/01/2024"}`), &req)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestPlanMarshalDates(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	plan := Plan{
		ID:           7,
		Status:       PlanStatusReading,
		StartDate:    &start,
		ReadingDates: []time.Time{start, start.AddDate(0, 0, 1)},
	}
	out, err := json.Marshal(plan)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, "2024-01-01", decoded["start_date"])
	assert.NotContains(t, decoded, "end_date")
	assert.Equal(t, []interface{}{"2024-01-01", "2024-01-02"}, decoded["reading_dates"])
	assert.Equal(t, []interface{}{}, decoded["excluded_weekdays"])

	var back Plan
	require.NoError(t, json.Unmarshal(out, &back))
	require.NotNil(t, back.StartDate)
	assert.True(t, start.Equal(*back.StartDate))
	assert.Nil(t, back.EndDate)
	assert.Len(t, back.ReadingDates, 2)
}

func TestRankingFormatValue(t *testing.T) {
	assert.Equal(t, "10h 30m", MetricTime.FormatValue(630))
	assert.Equal(t, "35 books", MetricCount.FormatValue(35))
	assert.Equal(t, "12 badges", MetricBadge.FormatValue(12))
}

func TestParseMetricAndScope(t *testing.T) {
	m, err := ParseMetric("time")
	require.NoError(t, err)
	assert.Equal(t, MetricTime, m)

	_, err = ParseMetric("pages")
	assert.ErrorIs(t, err, ErrInvalidSortType)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = ParseScope("week")
	assert.ErrorIs(t, err, ErrInvalidScopeType)
}

func TestProgressRateAndClock(t *testing.T) {
	assert.Equal(t, 33, ProgressRate(1, 3))
	assert.Equal(t, 67, ProgressRate(2, 3))
	assert.Equal(t, 0, ProgressRate(5, 0))
	assert.Equal(t, "01:01:05", FormatClock(3665))
	assert.Equal(t, "00:00:00", FormatClock(-3))
}
