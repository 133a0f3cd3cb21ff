package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claude/healthmerge/internal/models"
)

func at(t *testing.T, s string) time.Time {
	t.Helper()
	v, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return v
}

// dualNight returns a bed and a tracker record for the night of 2024-01-02.
func dualNight(t *testing.T) []models.SleepData {
	return []models.SleepData{
		{
			Date:      "2024-01-02",
			Start:     at(t, "2024-01-01T23:00:00Z"),
			End:       at(t, "2024-01-02T07:00:00Z"),
			Duration:  28800,
			Deep:      Float(5400),
			HRAverage: Float(52),
			Device:    models.DeviceBed,
		},
		{
			Date:      "2024-01-02",
			Start:     at(t, "2024-01-02T00:30:00Z"),
			End:       at(t, "2024-01-02T08:00:00Z"),
			Duration:  27000,
			Deep:      Float(6000),
			REM:       Float(4000),
			HRAverage: Float(56),
			Device:    models.DeviceTracker,
		},
	}
}

func TestCountingModesDuration(t *testing.T) {
	tests := []struct {
		mode CountingMode
		want float64
	}{
		{MatFirst, 28800},
		{TrackerFirst, 27000},
		{Average, 27900},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			b := CalculateSleepStats(dualNight(t), tt.mode)
			require.NotNil(t, b.Duration)
			assert.InDelta(t, tt.want, *b.Duration, 1e-9)
			assert.Equal(t, 1, b.Nights)
			assert.Equal(t, 1, b.DualNights)
		})
	}
}

func TestReconcileNightPerField(t *testing.T) {
	pairs := PairNights(dualNight(t))
	require.Len(t, pairs, 1)
	p := pairs[0]
	require.NotNil(t, p.Bed)
	require.NotNil(t, p.Tracker)

	mat := ReconcileNight(p, MatFirst)
	assert.Equal(t, 5400.0, *mat.Deep)
	// Bed has no REM, so mat-first falls back to the tracker.
	require.NotNil(t, mat.REM)
	assert.Equal(t, 4000.0, *mat.REM)
	assert.Equal(t, []models.DeviceCategory{models.DeviceBed, models.DeviceTracker}, mat.Devices)

	tracker := ReconcileNight(p, TrackerFirst)
	assert.Equal(t, 6000.0, *tracker.Deep)
	assert.Equal(t, 56.0, *tracker.HRAverage)

	avg := ReconcileNight(p, Average)
	assert.InDelta(t, 5700, *avg.Deep, 1e-9)
	assert.InDelta(t, 4000, *avg.REM, 1e-9)
	assert.InDelta(t, 54, *avg.HRAverage, 1e-9)
	assert.Nil(t, avg.Score)
}

// TestReconcileClockAcrossMidnight checks that asleep times on both sides of
// midnight average cyclically.
func TestReconcileClockAcrossMidnight(t *testing.T) {
	pairs := PairNights(dualNight(t))
	avg := ReconcileNight(pairs[0], Average)

	// 23:00 and 00:30 average to 23:45, not 11:45.
	require.NotNil(t, avg.AsleepAt)
	assert.InDelta(t, 23*60+45, *avg.AsleepAt, 0.5)
	// 07:00 and 08:00 average to 07:30.
	require.NotNil(t, avg.WakeAt)
	assert.InDelta(t, 7*60+30, *avg.WakeAt, 0.5)

	mat := ReconcileNight(pairs[0], MatFirst)
	assert.InDelta(t, 23*60, *mat.AsleepAt, 1e-9)
}

func TestReconcileUsesLatencyFields(t *testing.T) {
	rec := models.SleepData{
		Date:        "2024-01-02",
		Start:       at(t, "2024-01-01T22:30:00Z"),
		End:         at(t, "2024-01-02T06:30:00Z"),
		Duration:    28800,
		TimeToSleep: Float(1800),
		TimeToWake:  Float(900),
		Device:      models.DeviceBed,
	}
	n := ReconcileSleep([]models.SleepData{rec}, Average)
	require.Len(t, n, 1)
	assert.InDelta(t, 23*60, *n[0].AsleepAt, 0.5)
	assert.InDelta(t, 6*60+15, *n[0].WakeAt, 0.5)
}

func TestPairNightsKeepsLongestPerCategory(t *testing.T) {
	records := []models.SleepData{
		{Date: "2024-01-03", Duration: 1200, Device: models.DeviceTracker},
		{Date: "2024-01-02", Duration: 25000, Device: models.DeviceTracker},
		{Date: "2024-01-03", Duration: 26000, Device: models.DeviceTracker},
		{Date: "2024-01-03", Duration: 3000},
		{Date: "", Duration: 3000},
	}
	pairs := PairNights(records)
	require.Len(t, pairs, 2)
	assert.Equal(t, "2024-01-03", pairs[0].Date)
	assert.Equal(t, 26000.0, pairs[0].Tracker.Duration)
	assert.Nil(t, pairs[0].Bed)
	assert.Equal(t, "2024-01-02", pairs[1].Date)
}

func TestCalculateSleepStatsEmpty(t *testing.T) {
	b := CalculateSleepStats(nil, Average)
	assert.Equal(t, 0, b.Nights)
	assert.Nil(t, b.Duration)
	assert.Nil(t, b.AsleepTime)
	assert.Nil(t, b.DeviceDelta)
}

func TestCalculateSleepStatsBundle(t *testing.T) {
	records := append(dualNight(t), models.SleepData{
		Date:     "2024-01-03",
		Start:    at(t, "2024-01-02T23:00:00Z"),
		End:      at(t, "2024-01-03T06:00:00Z"),
		Duration: 25200,
		HRMin:    Float(44),
		HRMax:    Float(90),
		Device:   models.DeviceTracker,
	})
	b := CalculateSleepStats(records, MatFirst)

	assert.Equal(t, 2, b.Nights)
	assert.Equal(t, 1, b.BedNights)
	assert.Equal(t, 2, b.TrackerNights)
	assert.InDelta(t, (28800+25200)/2.0, *b.Duration, 1e-9)
	assert.Equal(t, MinMax{Min: 25200, Max: 28800}, *b.DurationRange)
	assert.Equal(t, 44.0, *b.HRMin)
	assert.Equal(t, 90.0, *b.HRMax)
	require.NotNil(t, b.AsleepTime)
	assert.Equal(t, "23:00", b.AsleepTime.Label)

	require.NotNil(t, b.DeviceDelta)
	assert.Equal(t, 1, b.DeviceDelta.Nights)
	assert.InDelta(t, 1800, *b.DeviceDelta.Duration, 1e-9)
	assert.InDelta(t, -600, *b.DeviceDelta.Deep, 1e-9)
	assert.Nil(t, b.DeviceDelta.REM)
}

func TestParseCountingMode(t *testing.T) {
	m, err := ParseCountingMode("")
	require.NoError(t, err)
	assert.Equal(t, DefaultCountingMode, m)

	m, err = ParseCountingMode(" Tracker-First ")
	require.NoError(t, err)
	assert.Equal(t, TrackerFirst, m)

	_, err = ParseCountingMode("median")
	assert.ErrorIs(t, err, ErrUnknownMode)
}
