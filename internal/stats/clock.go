package stats

import (
	"fmt"
	"math"
	"time"
)

// ClockTime is a time of day. Minutes counts from midnight, in [0, 1440).
type ClockTime struct {
	Minutes float64 `json:"minutes"`
	Label   string  `json:"label"`
}

func newClockTime(hours float64) ClockTime {
	h := math.Mod(hours, 24)
	if h < 0 {
		h += 24
	}
	m := math.Round(h*60*100) / 100
	if m >= 1440 {
		m -= 1440
	}
	return ClockTime{Minutes: m, Label: hoursToHHMM(h)}
}

// minuteOfDay returns the wall-clock position of t in its own location.
func minuteOfDay(t time.Time) float64 {
	return float64(t.Hour()*60+t.Minute()) + float64(t.Second())/60.0
}

// AverageClock returns the circular mean of times of day given in minutes
// after midnight, so 23:00 and 01:00 average to 00:00. Nil when no value is
// finite.
func AverageClock(minutes []*float64) *ClockTime {
	hours := finiteHours(minutes)
	if len(hours) == 0 {
		return nil
	}
	mean, _ := circularMeanStd(hours)
	ct := newClockTime(mean)
	return &ct
}

// clockSpread returns the circular standard deviation in hours.
func clockSpread(minutes []*float64) *float64 {
	hours := finiteHours(minutes)
	if len(hours) < 2 {
		return nil
	}
	_, std := circularMeanStd(hours)
	std = math.Round(std*100) / 100
	return &std
}

func finiteHours(minutes []*float64) []float64 {
	hours := make([]float64, 0, len(minutes))
	for _, m := range minutes {
		if isFinite(m) {
			hours = append(hours, *m/60)
		}
	}
	return hours
}

// circularMeanStd computes the circular mean and standard deviation for times
// expressed as hours (0–24).
func circularMeanStd(hours []float64) (mean, std float64) {
	if len(hours) == 0 {
		return 0, 0
	}

	var sinSum, cosSum float64
	for _, h := range hours {
		rad := h / 24.0 * 2 * math.Pi
		sinSum += math.Sin(rad)
		cosSum += math.Cos(rad)
	}

	n := float64(len(hours))
	sinAvg := sinSum / n
	cosAvg := cosSum / n

	meanRad := math.Atan2(sinAvg, cosAvg)
	if meanRad < 0 {
		meanRad += 2 * math.Pi
	}
	mean = meanRad / (2 * math.Pi) * 24.0

	r := math.Min(math.Sqrt(sinAvg*sinAvg+cosAvg*cosAvg), 1)
	if r > 0 {
		std = math.Sqrt(-2*math.Log(r)) / (2 * math.Pi) * 24.0
	}
	return mean, std
}

// hoursToHHMM formats fractional hours (0–24) as "HH:MM".
func hoursToHHMM(h float64) string {
	h = math.Mod(h, 24)
	if h < 0 {
		h += 24
	}
	hours := int(h)
	minutes := int(math.Round((h - float64(hours)) * 60))
	if minutes == 60 {
		hours++
		minutes = 0
	}
	if hours >= 24 {
		hours -= 24
	}
	return fmt.Sprintf("%02d:%02d", hours, minutes)
}
