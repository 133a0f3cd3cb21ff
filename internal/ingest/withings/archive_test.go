package withings

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// buildArchive writes files into an in-memory zip.
func buildArchive(t *testing.T, files map[string]string) (*bytes.Reader, int64) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("creating %s: %v", name, err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("closing zip: %v", err)
	}
	return bytes.NewReader(buf.Bytes()), int64(buf.Len())
}

func parseFiles(t *testing.T, files map[string]string) *Result {
	t.Helper()
	r, n := buildArchive(t, files)
	res, err := Parse(context.Background(), r, n, testLogger())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return res
}

// TestParseStepsJoinsSideFiles checks the date join between the steps file
// and the distance file, including the meters to km conversion.
func TestParseStepsJoinsSideFiles(t *testing.T) {
	res := parseFiles(t, map[string]string{
		"aggregates_steps.csv":     "date,value\n2024-01-01,5000\n2024-01-02,0\n2024-01-03,7000\n",
		"aggregates_distance.csv":  "date,value\n2024-01-01,3000\n2024-01-05,9999\n",
		"aggregates_elevation.csv": "date,value\n2024-01-03,12\n",
	})

	steps := res.Metrics.Steps
	if len(steps) != 2 {
		t.Fatalf("steps = %d, want 2: %+v", len(steps), steps)
	}
	first := steps[0]
	if first.Date != "2024-01-01" || first.Steps != 5000 {
		t.Errorf("steps[0] = %+v, want 2024-01-01 / 5000", first)
	}
	if first.Distance == nil || *first.Distance != 3 {
		t.Errorf("steps[0].Distance = %v, want 3", first.Distance)
	}
	if first.Elevation != nil {
		t.Errorf("steps[0].Elevation = %v, want nil", *first.Elevation)
	}
	if steps[1].Date != "2024-01-03" || steps[1].Distance != nil {
		t.Errorf("steps[1] = %+v, want 2024-01-03 with no distance", steps[1])
	}
	if steps[1].Elevation == nil || *steps[1].Elevation != 12 {
		t.Errorf("steps[1].Elevation = %v, want 12", steps[1].Elevation)
	}
	if got := res.Diagnostics.SkippedRows["steps"]; got != 1 {
		t.Errorf("skipped steps rows = %d, want 1", got)
	}
}

// TestParseStepsKeepsFirstSeenOrder checks that a repeated date keeps its
// original position.
func TestParseStepsKeepsFirstSeenOrder(t *testing.T) {
	res := parseFiles(t, map[string]string{
		"aggregates_steps.csv": "date,value\n2024-01-03,10\n2024-01-01,20\n2024-01-03,30\n",
	})
	steps := res.Metrics.Steps
	if len(steps) != 2 {
		t.Fatalf("steps = %d, want 2", len(steps))
	}
	if steps[0].Date != "2024-01-03" || steps[0].Steps != 30 {
		t.Errorf("steps[0] = %+v, want 2024-01-03 / 30", steps[0])
	}
	if steps[1].Date != "2024-01-01" {
		t.Errorf("steps[1].Date = %s, want 2024-01-01", steps[1].Date)
	}
}

func TestParseActivitiesFilter(t *testing.T) {
	res := parseFiles(t, map[string]string{
		"activities.csv": "date,steps,activeTime\n2024-01-01,0,0\n2024-01-02,0,30\n2024-01-03,1200,0\n",
	})
	acts := res.Metrics.Activities
	if len(acts) != 2 {
		t.Fatalf("activities = %d, want 2: %+v", len(acts), acts)
	}
	if acts[0].Date != "2024-01-02" || acts[0].ActiveTime != 30 {
		t.Errorf("activities[0] = %+v, want 2024-01-02 / 30s", acts[0])
	}
	if acts[1].Steps != 1200 {
		t.Errorf("activities[1].Steps = %v, want 1200", acts[1].Steps)
	}
}

func TestParseActivitiesDataColumn(t *testing.T) {
	res := parseFiles(t, map[string]string{
		"raw/Activities.csv": "from,to,Activity type,Data\n" +
			`2024-02-01T08:00:00+01:00,2024-02-01T08:45:00+01:00,Walking,"{""steps"":4200,""distance"":3100,""calories"":180}"` + "\n",
	})
	acts := res.Metrics.Activities
	if len(acts) != 1 {
		t.Fatalf("activities = %d, want 1", len(acts))
	}
	a := acts[0]
	if a.Date != "2024-02-01" || a.Type != "Walking" {
		t.Errorf("activity = %+v", a)
	}
	if a.Steps != 4200 {
		t.Errorf("Steps = %v, want 4200", a.Steps)
	}
	if a.ActiveTime != 2700 {
		t.Errorf("ActiveTime = %v, want 2700", a.ActiveTime)
	}
	if a.Distance == nil || *a.Distance != 3.1 {
		t.Errorf("Distance = %v, want 3.1", a.Distance)
	}
	if a.Calories == nil || *a.Calories != 180 {
		t.Errorf("Calories = %v, want 180", a.Calories)
	}
}

func TestParseSleepDeviceAndDuration(t *testing.T) {
	res := parseFiles(t, map[string]string{
		"sleep.csv": "from,to,light (s),deep (s),rem (s),awake (s),Snoring (s),Average heart rate\n" +
			"2024-01-01T23:00:00+01:00,2024-01-02T07:00:00+01:00,14400,7200,5400,600,300,54\n" +
			"2024-01-02T23:30:00+01:00,2024-01-03T06:30:00+01:00,,,,,,\n" +
			",,,,,,,\n",
	})
	sleep := res.Metrics.Sleep
	if len(sleep) != 2 {
		t.Fatalf("sleep = %d, want 2", len(sleep))
	}

	bed := sleep[0]
	if bed.Date != "2024-01-02" {
		t.Errorf("Date = %s, want 2024-01-02 (wake day)", bed.Date)
	}
	if bed.Duration != 27000 {
		t.Errorf("Duration = %v, want 27000 (sum of phases)", bed.Duration)
	}
	if bed.Device != "bed" {
		t.Errorf("Device = %s, want bed (snoring reported)", bed.Device)
	}
	if bed.HRAverage == nil || *bed.HRAverage != 54 {
		t.Errorf("HRAverage = %v, want 54", bed.HRAverage)
	}

	tracker := sleep[1]
	if tracker.Duration != 25200 {
		t.Errorf("Duration = %v, want 25200 (session span)", tracker.Duration)
	}
	if tracker.Device != "tracker" {
		t.Errorf("Device = %s, want tracker", tracker.Device)
	}
	if tracker.Deep != nil {
		t.Errorf("Deep = %v, want nil", *tracker.Deep)
	}
}

// TestParseSleepQuietMatNight checks that a mat session reporting zero
// snoring stays a bed record and pairs with the tracker session of that night.
func TestParseSleepQuietMatNight(t *testing.T) {
	res := parseFiles(t, map[string]string{
		"sleep.csv": "from,to,Snoring (s),duration\n" +
			"2024-01-01T23:00:00Z,2024-01-02T07:00:00Z,0,28800\n" +
			"2024-01-01T23:10:00Z,2024-01-02T06:40:00Z,,27000\n",
	})
	sleep := res.Metrics.Sleep
	if len(sleep) != 2 {
		t.Fatalf("sleep = %d, want 2", len(sleep))
	}
	if sleep[0].Device != "bed" {
		t.Errorf("Device = %s, want bed (zero snoring reported)", sleep[0].Device)
	}
	if sleep[1].Device != "tracker" {
		t.Errorf("Device = %s, want tracker (no snoring value)", sleep[1].Device)
	}
}

func TestParseSleepDeviceColumn(t *testing.T) {
	res := parseFiles(t, map[string]string{
		"sleep.csv": "from,to,Device,duration\n" +
			"2024-01-01T23:00:00Z,2024-01-02T07:00:00Z,Sleep Analyzer,28800\n" +
			"2024-01-01T23:10:00Z,2024-01-02T06:40:00Z,ScanWatch,27000\n",
	})
	sleep := res.Metrics.Sleep
	if len(sleep) != 2 {
		t.Fatalf("sleep = %d, want 2", len(sleep))
	}
	if sleep[0].Device != "bed" || sleep[1].Device != "tracker" {
		t.Errorf("devices = %s, %s, want bed, tracker", sleep[0].Device, sleep[1].Device)
	}
	if sleep[0].Date != sleep[1].Date {
		t.Errorf("both sessions should label the same night: %s vs %s", sleep[0].Date, sleep[1].Date)
	}
}

func TestParseBodyMetrics(t *testing.T) {
	res := parseFiles(t, map[string]string{
		"weight.csv":  "Date,Weight (kg),Fat mass (kg),Comments\n2024-01-01 08:00:00,80.5,16.1,\n2024-01-02 08:00:00,,,\n",
		"bp.csv":      "Date,Heart rate,Systolic,Diastolic\n2024-01-01 09:00:00,62,121,79\n2024-01-02 09:00:00,60,0,80\n",
		"height.csv":  "Date,Height (m)\n2023-06-01,1.82\n",
		"spo2.csv":    "date,value\n2024-01-01,97\n",
		"notes/a.txt": "ignored",
	})
	m := res.Metrics
	if len(m.Weight) != 1 || m.Weight[0].Weight != 80.5 {
		t.Fatalf("weight = %+v, want one 80.5 entry", m.Weight)
	}
	if m.Weight[0].FatMass == nil || *m.Weight[0].FatMass != 16.1 {
		t.Errorf("FatMass = %v, want 16.1", m.Weight[0].FatMass)
	}
	if len(m.BloodPressure) != 1 || m.BloodPressure[0].Systolic != 121 {
		t.Errorf("blood pressure = %+v, want one 121/79 entry", m.BloodPressure)
	}
	if len(m.Height) != 1 || m.Height[0].Height != 1.82 {
		t.Errorf("height = %+v", m.Height)
	}
	if len(m.SpO2) != 1 || m.SpO2[0].Value != 97 {
		t.Errorf("spo2 = %+v", m.SpO2)
	}
}

// TestParseEntryNamesCaseInsensitive checks vendor naming drift across export
// versions.
func TestParseEntryNamesCaseInsensitive(t *testing.T) {
	res := parseFiles(t, map[string]string{
		"export/AGGREGATE_STEPS.CSV":           "Date,Steps\n2024-01-01,100\n",
		"export/Aggregate_Calories_Earned.csv": "date,value\n2024-01-01,2100\n",
		"export/blood_pressure.csv":            "date,systolic,diastolic\n2024-01-01,120,80\n",
		"export/oxygen_saturation.csv":         "date,SpO2\n2024-01-01,96\n",
		"export/my_steps.csv":                  "date,value\n2024-01-01,999999\n",
	})
	if len(res.Metrics.Steps) != 1 || res.Metrics.Steps[0].Steps != 100 {
		t.Fatalf("steps = %+v, want one entry of 100", res.Metrics.Steps)
	}
	if c := res.Metrics.Steps[0].Calories; c == nil || *c != 2100 {
		t.Errorf("Calories = %v, want 2100", c)
	}
	if len(res.Metrics.BloodPressure) != 1 {
		t.Errorf("blood pressure = %d, want 1", len(res.Metrics.BloodPressure))
	}
	if len(res.Metrics.SpO2) != 1 {
		t.Errorf("spo2 = %d, want 1", len(res.Metrics.SpO2))
	}
}

func TestParseMissingEntries(t *testing.T) {
	res := parseFiles(t, map[string]string{
		"weight.csv": "Date,Weight (kg)\n2024-01-01,80\n",
	})
	m := res.Metrics
	if m.Steps == nil || m.Sleep == nil || m.Activities == nil {
		t.Fatal("missing metrics must be empty lists, not nil")
	}
	if len(m.Weight) != 1 {
		t.Errorf("weight = %d, want 1", len(m.Weight))
	}
	want := map[string]bool{"steps": true, "sleep": true, "activities": true, "blood_pressure": true}
	got := map[string]bool{}
	for _, name := range res.Diagnostics.MissingEntries {
		got[name] = true
	}
	for name := range want {
		if !got[name] {
			t.Errorf("MissingEntries = %v, want it to contain %q", res.Diagnostics.MissingEntries, name)
		}
	}
	if got["weight"] {
		t.Errorf("weight reported missing: %v", res.Diagnostics.MissingEntries)
	}
}

func TestParseRejectsNonArchives(t *testing.T) {
	_, err := Parse(context.Background(), bytes.NewReader([]byte("not a zip")), 9, testLogger())
	if !errors.Is(err, ErrInvalidArchive) {
		t.Errorf("err = %v, want ErrInvalidArchive", err)
	}

	r, n := buildArchive(t, map[string]string{"readme.txt": "hello"})
	_, err = Parse(context.Background(), r, n, testLogger())
	if !errors.Is(err, ErrNotExport) {
		t.Errorf("err = %v, want ErrNotExport", err)
	}
}

func TestParseCanceledContext(t *testing.T) {
	r, n := buildArchive(t, map[string]string{"weight.csv": "Date,Weight (kg)\n2024-01-01,80\n"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Parse(ctx, r, n, testLogger()); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
