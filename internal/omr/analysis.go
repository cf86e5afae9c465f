package omr

import (
	"image"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// IntensityStats describes one population of bubble intensities.
type IntensityStats struct {
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"std_dev"`
}

// RowSample is the per-slot intensity of one analysed row.
type RowSample struct {
	Question    int       `json:"question"`
	Intensities []float64 `json:"intensities"`
	Darkest     string    `json:"darkest"`
}

// IntensityReport splits bubble intensities into a "filled" population (the
// darkest bubble of every row) and an "empty" one (all the others) and
// suggests a filled threshold between them.
type IntensityReport struct {
	Rows        int            `json:"rows"`
	Filled      IntensityStats `json:"filled"`
	Empty       IntensityStats `json:"empty"`
	Recommended float64        `json:"recommended_threshold"`
	Current     float64        `json:"current_threshold"`
	Samples     []RowSample    `json:"samples,omitempty"`
}

// sampleRows is how many rows AnalyzeIntensity echoes back in Samples.
const sampleRows = 5

// AnalyzeIntensity summarizes the intensities of classified rows. Rows with a
// placeholder slot are ignored. Recommended is (max filled + min empty) / 2,
// or zero when either population is empty.
func AnalyzeIntensity(outcomes []Outcome) IntensityReport {
	var filled, empty []float64
	var report IntensityReport

	for q, o := range outcomes {
		if len(o.Intensities) == 0 || floats.Min(o.Intensities) < 0 {
			continue
		}
		darkest := floats.MinIdx(o.Intensities)
		for i, v := range o.Intensities {
			if i == darkest {
				filled = append(filled, v)
			} else {
				empty = append(empty, v)
			}
		}
		if len(report.Samples) < sampleRows {
			report.Samples = append(report.Samples, RowSample{
				Question:    q + 1,
				Intensities: o.Intensities,
				Darkest:     OptionLetter(darkest),
			})
		}
		report.Rows++
	}

	report.Filled = intensityStats(filled)
	report.Empty = intensityStats(empty)
	if report.Filled.Count > 0 && report.Empty.Count > 0 {
		report.Recommended = (report.Filled.Max + report.Empty.Min) / 2
	}
	return report
}

func intensityStats(values []float64) IntensityStats {
	if len(values) == 0 {
		return IntensityStats{}
	}
	sorted := append([]float64(nil), values...)
	return IntensityStats{
		Count:  len(values),
		Min:    floats.Min(values),
		Max:    floats.Max(values),
		Mean:   stat.Mean(values, nil),
		Median: median(sorted),
		StdDev: math.Sqrt(stat.PopVariance(values, nil)),
	}
}

// Analyze detects and classifies every row of the page and reports the
// intensity populations. It needs no answer key.
func (g *Grader) Analyze(img image.Image, region *Region) (*IntensityReport, error) {
	d, err := g.detect(img, region)
	if err != nil {
		return nil, err
	}

	questions := d.questions(0)
	outcomes := make([]Outcome, len(questions))
	for i, q := range questions {
		outcomes[i] = Classify(d.frame.Gray, q.Row, d.params)
	}

	report := AnalyzeIntensity(outcomes)
	report.Current = d.params.FilledThreshold
	return &report, nil
}
