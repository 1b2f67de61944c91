package predictor

import (
	"github.com/hirelens/hirelens/pkg/dataset"
)

// Saturation status thresholds on the 0-100 score.
const (
	saturatedAbove = 70
	moderateAbove  = 40
)

// SaturationScore expresses how crowded a role's market is relative to the
// most frequent role.
type SaturationScore struct {
	Role            string  `json:"role"`
	SaturationScore float64 `json:"saturation_score"`
	JobCount        int     `json:"job_count"`
	Status          string  `json:"status"`
}

// saturationScores scores the top roles by posting count against the maximum
// observed role count, scaled to 0-100 and bucketed into status labels.
func (p *Predictor) saturationScores(ds *dataset.Dataset) []SaturationScore {
	counts := defaultRoleCounts
	if col, ok := ds.FirstColumn(fallbackRoleColumns...); ok {
		if found := countRoles(ds.Rows, col); len(found) > 0 {
			counts = found
		}
	}

	maxCount := 0
	for _, rc := range counts {
		if rc.count > maxCount {
			maxCount = rc.count
		}
	}

	ranked := rankRoleCounts(counts, TopRoles)

	scores := make([]SaturationScore, 0, len(ranked))
	for _, rc := range ranked {
		saturation := 0.0
		if maxCount > 0 {
			saturation = float64(rc.count) / float64(maxCount) * 100
			if saturation > 100 {
				saturation = 100
			}
		}

		status := "emerging"
		switch {
		case saturation > saturatedAbove:
			status = "saturated"
		case saturation > moderateAbove:
			status = "moderate"
		}

		scores = append(scores, SaturationScore{
			Role:            rc.role,
			SaturationScore: round2(saturation),
			JobCount:        rc.count,
			Status:          status,
		})
	}
	return scores
}
