package withings

import "github.com/claude/healthmerge/internal/models"

func parseWeight(a *archive) partial {
	var out partial
	t := a.open(weightEntry, "weight", &out.diag)
	if t == nil {
		return out
	}

	out.metrics.Weight = []models.WeightData{}
	skipped := 0
	t.each(func(r row) {
		date := normalizeDate(r.text(dateColumns...))
		w := r.number("weight (kg)", "weight", "value")
		if date == "" || w <= 0 {
			skipped++
			return
		}
		out.metrics.Weight = append(out.metrics.Weight, models.WeightData{
			Date:       date,
			Weight:     w,
			FatMass:    r.optional("fat mass (kg)", "fat mass", "fat_mass_weight"),
			BoneMass:   r.optional("bone mass (kg)", "bone mass", "bone_mass"),
			MuscleMass: r.optional("muscle mass (kg)", "muscle mass", "muscle_mass"),
			Hydration:  r.optional("hydration (kg)", "hydration"),
		})
	})
	out.diag.Skipped("weight", skipped)
	return out
}

func parseBloodPressure(a *archive) partial {
	var out partial
	t := a.open(bpEntry, "blood_pressure", &out.diag)
	if t == nil {
		return out
	}

	out.metrics.BloodPressure = []models.BloodPressureData{}
	skipped := 0
	t.each(func(r row) {
		date := normalizeDate(r.text(dateColumns...))
		sys := r.number("systolic", "systolic (mmhg)", "sys")
		dia := r.number("diastolic", "diastolic (mmhg)", "dia")
		if date == "" || sys <= 0 || dia <= 0 {
			skipped++
			return
		}
		out.metrics.BloodPressure = append(out.metrics.BloodPressure, models.BloodPressureData{
			Date:      date,
			Systolic:  sys,
			Diastolic: dia,
			HeartRate: r.optional("heart rate", "heart rate (bpm)", "pulse"),
		})
	})
	out.diag.Skipped("blood_pressure", skipped)
	return out
}

func parseHeight(a *archive) partial {
	var out partial
	t := a.open(heightEntry, "height", &out.diag)
	if t == nil {
		return out
	}

	out.metrics.Height = []models.HeightData{}
	skipped := 0
	t.each(func(r row) {
		date := normalizeDate(r.text(dateColumns...))
		h := r.number("height (m)", "height", "value")
		if date == "" || h <= 0 {
			skipped++
			return
		}
		out.metrics.Height = append(out.metrics.Height, models.HeightData{Date: date, Height: h})
	})
	out.diag.Skipped("height", skipped)
	return out
}

func parseSpO2(a *archive) partial {
	var out partial
	t := a.open(spo2Entry, "spo2", &out.diag)
	if t == nil {
		return out
	}

	out.metrics.SpO2 = []models.SpO2Data{}
	skipped := 0
	t.each(func(r row) {
		date := normalizeDate(r.text(dateColumns...))
		v := r.number("spo2 (%)", "spo2", "oxygen saturation", "blood oxygen", "value")
		if date == "" || v <= 0 {
			skipped++
			return
		}
		out.metrics.SpO2 = append(out.metrics.SpO2, models.SpO2Data{Date: date, Value: v})
	})
	out.diag.Skipped("spo2", skipped)
	return out
}
