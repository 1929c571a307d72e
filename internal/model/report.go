package model

import "time"

// ReportWindow is the default span covered by one report.
const ReportWindow = 24 * time.Hour

// ReportPoint is one bar in a rendered report.
type ReportPoint struct {
	ElapsedMinutes float64
	Value          int64
	Label          string
}

// ReportTable is the aggregated input handed to a renderer.
type ReportTable struct {
	Title  string
	Date   string // UTC calendar date of the earliest roll, YYYY-MM-DD
	Points []ReportPoint
}

// Labels returns the distinct labels in first-seen order.
func (t *ReportTable) Labels() []string {
	seen := make(map[string]bool)
	var labels []string
	for _, p := range t.Points {
		if !seen[p.Label] {
			seen[p.Label] = true
			labels = append(labels, p.Label)
		}
	}
	return labels
}

// Report references a generated artifact.
type Report struct {
	Name        string    `json:"name"` // artifact file name, e.g. rolls_2024-08-10.html
	Path        string    `json:"path"` // URL path served by the report server
	Rolls       int       `json:"rolls"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
	GeneratedAt time.Time `json:"generated_at"`
}
