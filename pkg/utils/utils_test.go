package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"booktrack/pkg/models"
)

func TestValidateISBN(t *testing.T) {
	assert.NoError(t, ValidateISBN("978-89-364-3412-0"))
	assert.NoError(t, ValidateISBN("89364341 2X"))
	assert.ErrorIs(t, ValidateISBN("97889364341"), models.ErrInvalidInput)
	assert.ErrorIs(t, ValidateISBN("97889364341AB"), models.ErrInvalidInput)
	assert.Equal(t, "9788936434120", NormalizeISBN("978-89-364 3412-0"))
}

func TestToday(t *testing.T) {
	seoul := time.FixedZone("KST", 9*3600)
	now := time.Date(2024, 3, 31, 16, 30, 0, 0, time.UTC) // 01:30 on Apr 1 in Seoul

	assert.Equal(t, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), Today(now, seoul))
	assert.Equal(t, time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), Today(now, nil))
}

func TestDayBounds(t *testing.T) {
	seoul := time.FixedZone("KST", 9*3600)
	start, end := DayBounds(time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), seoul)
	assert.Equal(t, time.Date(2024, 3, 31, 15, 0, 0, 0, time.UTC), start.UTC())
	assert.Equal(t, 24*time.Hour, end.Sub(start))
}

func TestTimeAgo(t *testing.T) {
	assert.Equal(t, "just now", TimeAgo(time.Now()))
	assert.Equal(t, "1 minute ago", TimeAgo(time.Now().Add(-90*time.Second)))
	assert.Equal(t, "3 hours ago", TimeAgo(time.Now().Add(-3*time.Hour-time.Minute)))
	assert.Equal(t, "yesterday", TimeAgo(time.Now().Add(-25*time.Hour)))
	assert.Equal(t, "2 weeks ago", TimeAgo(time.Now().Add(-15*24*time.Hour)))
}

func TestGenerateID(t *testing.T) {
	id := GenerateID("req")
	assert.Regexp(t, `^req-[0-9a-f]{8}$`, id)
	assert.NotEqual(t, id, GenerateID("req"))
	assert.Len(t, NewTraceID(), 36)
}

func TestContextHelpers(t *testing.T) {
	ctx, cancel := WithTimeout(context.Background())
	defer cancel()
	deadline, ok := ctx.Deadline()
	assert.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(DefaultTimeout), deadline, time.Second)

	assert.True(t, IsContextError(context.Canceled))
	assert.False(t, IsContextError(errors.New("other")))
}

func TestFormatTimestamp(t *testing.T) {
	now := time.Now()
	assert.Equal(t, now.Format("15:04"), FormatTimestamp(now))
	old := time.Date(2020, 3, 1, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, "2020-03-01", FormatTimestamp(old))
}
