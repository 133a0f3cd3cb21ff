package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claude/healthmerge/internal/models"
)

// 2024-01-07 is a Sunday, 2024-01-09 a Tuesday.
const (
	sunday  = "2024-01-07"
	tuesday = "2024-01-09"
	friday  = "2024-01-12"
)

func TestCalculateDayTypeStatsWeekendSet(t *testing.T) {
	steps := []models.StepData{
		{Date: sunday, Steps: 12000},
		{Date: tuesday, Steps: 4000},
	}
	weekend, err := NewWeekdaySet(0, 6)
	require.NoError(t, err)

	rows := CalculateDayTypeStats(steps, nil, weekend, MatFirst)
	require.Len(t, rows, 2)
	assert.Equal(t, WeekendID, rows[0].ID)
	assert.Equal(t, WeekdayID, rows[1].ID)
	require.NotNil(t, rows[0].Steps)
	assert.Equal(t, 12000.0, *rows[0].Steps)
	assert.Equal(t, 4000.0, *rows[1].Steps)
	assert.Equal(t, 1, rows[0].StepDays)
}

// TestCalculateDayTypeStatsCustomWeekend covers shift workers whose weekend
// is Friday and Saturday.
func TestCalculateDayTypeStatsCustomWeekend(t *testing.T) {
	steps := []models.StepData{
		{Date: sunday, Steps: 12000},
		{Date: friday, Steps: 2000},
		{Date: "not-a-date", Steps: 99999},
	}
	weekend, err := ParseWeekdaySet("5, 6")
	require.NoError(t, err)

	rows := CalculateDayTypeStats(steps, nil, weekend, MatFirst)
	require.Len(t, rows, 2)
	assert.Equal(t, 2000.0, *rows[0].Steps)
	assert.Equal(t, 12000.0, *rows[1].Steps)
}

func TestCalculateDayTypeStatsSleep(t *testing.T) {
	sleep := []models.SleepData{
		{Date: sunday, Duration: 32400, Device: models.DeviceBed},
		{Date: sunday, Duration: 30600, Device: models.DeviceTracker},
		{Date: tuesday, Duration: 25200, Device: models.DeviceTracker},
	}
	rows := CalculateDayTypeStats(nil, sleep, DefaultWeekend(), Average)
	require.Len(t, rows, 2)

	assert.Equal(t, 1, rows[0].Nights)
	assert.InDelta(t, 31500, *rows[0].Sleep, 1e-9)
	assert.InDelta(t, 25200, *rows[1].Sleep, 1e-9)
	assert.Nil(t, rows[0].Steps)
	assert.Nil(t, rows[0].WeightDelta)
}

func TestCalculateDayTypeStatsEmpty(t *testing.T) {
	rows := CalculateDayTypeStats(nil, nil, DefaultWeekend(), MatFirst)
	require.Len(t, rows, 2)
	assert.Equal(t, 0, rows[0].Days)
	assert.Nil(t, rows[1].Sleep)
}

func TestWeekdaySet(t *testing.T) {
	_, err := NewWeekdaySet(7)
	assert.Error(t, err)
	_, err = ParseWeekdaySet("sat")
	assert.Error(t, err)

	set, err := ParseWeekdaySet("6,0")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 6}, set.Days())
	assert.True(t, set[time.Sunday])
	assert.Equal(t, DefaultWeekend(), set)
}

func TestCalculateEventStats(t *testing.T) {
	data := models.HealthData{
		HealthMetrics: models.HealthMetrics{
			Steps: []models.StepData{
				{Date: "2024-01-01", Steps: 3000},
				{Date: "2024-01-02", Steps: 5000},
				{Date: "2024-01-10", Steps: 9000},
			},
			Weight: []models.WeightData{
				{Date: "2024-01-05", Weight: 79},
				{Date: "2024-01-01", Weight: 81},
				{Date: "2024-01-20", Weight: 70},
			},
		},
		Events: []models.PatternEvent{
			{ID: "trip", Title: "Trip", StartDate: "2024-01-01", EndDate: "2024-01-05"},
			{ID: "marker", StartDate: "2024-01-10"},
		},
	}

	rows := CalculateEventStats(data, MatFirst)
	require.Len(t, rows, 2)

	trip := rows[0]
	assert.Equal(t, "Trip", trip.Label)
	assert.Equal(t, "2024-01-05", trip.EndDate)
	assert.InDelta(t, 4000, *trip.Steps, 1e-9)
	require.NotNil(t, trip.WeightDelta)
	assert.InDelta(t, -2, *trip.WeightDelta, 1e-9)

	marker := rows[1]
	assert.Equal(t, "marker", marker.Label)
	assert.Equal(t, "2024-01-10", marker.EndDate)
	assert.Equal(t, 9000.0, *marker.Steps)
	assert.Nil(t, marker.WeightDelta)
}

func TestFilterDataBounds(t *testing.T) {
	d := models.HealthData{HealthMetrics: models.HealthMetrics{
		Steps: []models.StepData{{Date: "2024-01-01"}, {Date: "2024-01-05"}, {Date: "2024-01-09"}},
		Sleep: []models.SleepData{{Date: "2024-01-05"}},
	}}
	got := FilterData(d, "2024-01-02", "2024-01-05")
	assert.Len(t, got.Steps, 1)
	assert.Len(t, got.Sleep, 1)
	assert.Len(t, FilterData(d, "", "").Steps, 3)

	assert.NoError(t, ValidateRange("", "2024-01-01"))
	assert.Error(t, ValidateRange("2024-02-01", "2024-01-01"))
	assert.Error(t, ValidateRange("01/02/2024", ""))
}
