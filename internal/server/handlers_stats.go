package server

import (
	"net/http"
	"strconv"

	"github.com/claude/healthmerge/internal/models"
	"github.com/claude/healthmerge/internal/stats"
)

type sleepStatsResponse struct {
	Mode   stats.CountingMode     `json:"mode"`
	Start  string                 `json:"start,omitempty"`
	End    string                 `json:"end,omitempty"`
	Stats  stats.SleepStatsBundle `json:"stats"`
	Nights []stats.Night          `json:"nights,omitempty"`
}

type rangeStatsResponse struct {
	Mode    stats.CountingMode     `json:"mode"`
	Weekend []int                  `json:"weekend,omitempty"`
	Rows    []stats.RangeEventStat `json:"rows"`
	Ranges  stats.MagnitudeRanges  `json:"ranges"`
}

type rollingResponse struct {
	Metric string               `json:"metric"`
	Window int                  `json:"window"`
	Points []stats.RollingPoint `json:"points"`
}

// loadRange parses mode and date range and loads the filtered data. It
// writes the error response itself and reports ok=false when it did.
func (s *Server) loadRange(w http.ResponseWriter, r *http.Request) (data models.HealthData, mode stats.CountingMode, start, end string, ok bool) {
	mode = s.defaults.Mode
	if v := r.URL.Query().Get("mode"); v != "" {
		m, err := stats.ParseCountingMode(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return data, mode, "", "", false
		}
		mode = m
	}

	start, end, err := parseDateRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return data, mode, "", "", false
	}

	data, err = s.repo.LoadData(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return data, mode, "", "", false
	}
	return stats.FilterData(data, start, end), mode, start, end, true
}

func (s *Server) handleSleepStats(w http.ResponseWriter, r *http.Request) {
	data, mode, start, end, ok := s.loadRange(w, r)
	if !ok {
		return
	}
	resp := sleepStatsResponse{
		Mode:  mode,
		Start: start,
		End:   end,
		Stats: stats.CalculateSleepStats(data.Sleep, mode),
	}
	if r.URL.Query().Get("nights") == "true" {
		resp.Nights = stats.ReconcileSleep(data.Sleep, mode)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDayTypeStats(w http.ResponseWriter, r *http.Request) {
	weekend := s.defaults.Weekend
	if v := r.URL.Query().Get("weekend"); v != "" {
		set, err := stats.ParseWeekdaySet(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		weekend = set
	}

	data, mode, _, _, ok := s.loadRange(w, r)
	if !ok {
		return
	}
	rows := stats.CalculateDayTypeStats(data.Steps, data.Sleep, weekend, mode)
	writeJSON(w, http.StatusOK, rangeStatsResponse{
		Mode:    mode,
		Weekend: weekend.Days(),
		Rows:    rows,
		Ranges:  stats.BuildMagnitudeRanges(rows),
	})
}

func (s *Server) handleEventStats(w http.ResponseWriter, r *http.Request) {
	data, mode, _, _, ok := s.loadRange(w, r)
	if !ok {
		return
	}
	rows := stats.CalculateEventStats(data, mode)
	writeJSON(w, http.StatusOK, rangeStatsResponse{
		Mode:   mode,
		Rows:   rows,
		Ranges: stats.BuildMagnitudeRanges(rows),
	})
}

func (s *Server) handleRolling(w http.ResponseWriter, r *http.Request) {
	window := s.defaults.Window
	if v := r.URL.Query().Get("window"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "window must be a positive integer")
			return
		}
		window = n
	}
	metric := r.URL.Query().Get("metric")
	if metric == "" {
		metric = stats.MetricSteps
	}

	// Load unfiltered data so the first window of the range has lead days.
	mode := s.defaults.Mode
	if v := r.URL.Query().Get("mode"); v != "" {
		m, err := stats.ParseCountingMode(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		mode = m
	}
	start, end, err := parseDateRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	data, err := s.repo.LoadData(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	values, err := stats.MetricValues(data, metric, mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	points, err := stats.RollingSeries(values, window, start, end)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rollingResponse{Metric: metric, Window: window, Points: points})
}
