package withings

import "github.com/claude/healthmerge/internal/models"

var (
	sleepStartColumns  = []string{"from", "start", "start date", "startdate"}
	sleepEndColumns    = []string{"to", "end", "end date", "enddate"}
	sleepDeviceColumns = []string{"device", "device type", "model", "device model", "source"}
	sleepSnoreColumns  = []string{"snoring (s)", "snoring", "snoring duration (s)"}
)

// parseSleep emits one record per session. The night label is the calendar
// day the session ended on.
func parseSleep(a *archive) partial {
	var out partial
	t := a.open(sleepEntry, "sleep", &out.diag)
	if t == nil {
		return out
	}
	hasDevice := t.has(sleepDeviceColumns...)

	out.metrics.Sleep = []models.SleepData{}
	skipped := 0
	t.each(func(r row) {
		start, _ := parseTimestamp(r.text(sleepStartColumns...))
		end, hasEnd := parseTimestamp(r.text(sleepEndColumns...))

		var date string
		if hasEnd {
			date = end.Format(models.DateLayout)
		} else {
			date = normalizeDate(r.text("date", "night"))
		}

		s := models.SleepData{
			Date:            date,
			Start:           start,
			End:             end,
			Light:           r.optional("light (s)", "light", "light sleep (s)", "lightsleepduration"),
			Deep:            r.optional("deep (s)", "deep", "deep sleep (s)", "deepsleepduration"),
			REM:             r.optional("rem (s)", "rem", "rem sleep (s)", "remsleepduration"),
			Awake:           r.optional("awake (s)", "awake", "wakeupduration"),
			Score:           r.optional("sleep score", "score", "sleep_score"),
			HRAverage:       r.optional("average heart rate", "heart rate (avg)", "hr_average"),
			HRMin:           r.optional("heart rate (min)", "minimum heart rate", "hr_min"),
			HRMax:           r.optional("heart rate (max)", "maximum heart rate", "hr_max"),
			TimeToSleep:     r.optional("duration to sleep (s)", "time to sleep (s)", "durationtosleep"),
			TimeToWake:      r.optional("duration to wake up (s)", "time to wake (s)", "durationtowakeup"),
			Snoring:         r.optional(sleepSnoreColumns...),
			SnoringEpisodes: r.optional("snoring episodes", "snoringepisodecount"),
			WakeCount:       r.optional("wake up", "wake count", "wakeupcount"),
		}
		s.Duration = sleepDuration(r, s)
		s.Device = sleepDevice(r, hasDevice, s.Snoring)

		if s.Date == "" || s.Duration <= 0 {
			skipped++
			return
		}
		out.metrics.Sleep = append(out.metrics.Sleep, s)
	})
	out.diag.Skipped("sleep", skipped)
	return out
}

// sleepDuration prefers an explicit duration column, then the sum of the
// sleep phases, then the session span.
func sleepDuration(r row, s models.SleepData) float64 {
	if d := r.number("duration (s)", "duration", "total sleep (s)", "total_sleep_time"); d > 0 {
		return d
	}
	var phases float64
	for _, p := range []*float64{s.Light, s.Deep, s.REM} {
		if p != nil {
			phases += *p
		}
	}
	if phases > 0 {
		return phases
	}
	if !s.Start.IsZero() && !s.End.IsZero() {
		return s.End.Sub(s.Start).Seconds()
	}
	return 0
}

// sleepDevice resolves the device category from a device column when the
// export has one. Otherwise only the under-mattress mat reports snoring, so a
// session with any snoring value, zero included, is a mat session.
func sleepDevice(r row, hasDevice bool, snoring *float64) models.DeviceCategory {
	if hasDevice {
		if c, ok := models.NormalizeDeviceCategory(r.text(sleepDeviceColumns...)); ok {
			return c
		}
	}
	if snoring != nil {
		return models.DeviceBed
	}
	return models.DeviceTracker
}
