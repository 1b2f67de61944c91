package predictor

import (
	"sort"
	"strings"

	"github.com/hirelens/hirelens/pkg/dataset"
)

// skillColumns is the ordered preference list for the delimited skills field.
var skillColumns = []string{"skills", "required_skills"}

// SkillCount is one skill's observation count.
type SkillCount struct {
	Skill string `json:"skill"`
	Count int    `json:"count"`
}

// GapAnalysis splits the skill distribution into its extremes.
type GapAnalysis struct {
	HighDemandSkills []string `json:"high_demand_skills"`
	EmergingSkills   []string `json:"emerging_skills"`
}

// SkillGapAnalysis is the skill-frequency breakdown returned alongside
// forecasts.
type SkillGapAnalysis struct {
	TopSkills        []SkillCount `json:"top_skills"`
	SkillDemandScore int          `json:"skill_demand_score"`
	GapAnalysis      GapAnalysis  `json:"gap_analysis"`
}

// defaultSkillGapAnalysis is returned when the dataset carries no skills
// field at all. A fixed default, never an empty result.
func defaultSkillGapAnalysis() SkillGapAnalysis {
	return SkillGapAnalysis{
		TopSkills: []SkillCount{
			{Skill: "Python", Count: 150},
			{Skill: "SQL", Count: 120},
			{Skill: "Machine Learning", Count: 100},
		},
		SkillDemandScore: 85,
		GapAnalysis: GapAnalysis{
			HighDemandSkills: []string{"Python", "SQL", "Machine Learning", "Cloud", "DevOps"},
			EmergingSkills:   []string{"LLM", "MLOps", "Kubernetes", "Terraform", "GraphQL"},
		},
	}
}

// analyzeSkillGaps tallies comma-delimited skills across the dataset: the top
// ten skills by count, the number of distinct skills as a demand score, and
// the five most and least frequent skill names.
func (p *Predictor) analyzeSkillGaps(ds *dataset.Dataset) SkillGapAnalysis {
	col, ok := ds.FirstColumn(skillColumns...)
	if !ok {
		return defaultSkillGapAnalysis()
	}

	index := make(map[string]int)
	var counts []SkillCount
	for _, row := range ds.Rows {
		cell, ok := dataset.String(row[col])
		if !ok || cell == "" {
			continue
		}
		for _, raw := range strings.Split(cell, ",") {
			skill := strings.TrimSpace(raw)
			if skill == "" {
				continue
			}
			if i, seen := index[skill]; seen {
				counts[i].Count++
				continue
			}
			index[skill] = len(counts)
			counts = append(counts, SkillCount{Skill: skill, Count: 1})
		}
	}

	sort.SliceStable(counts, func(a, b int) bool {
		return counts[a].Count > counts[b].Count
	})

	analysis := SkillGapAnalysis{
		TopSkills:        headSkills(counts, 10),
		SkillDemandScore: len(counts),
		GapAnalysis: GapAnalysis{
			HighDemandSkills: skillNames(counts, 0, 5),
			EmergingSkills:   skillNames(counts, len(counts)-5, len(counts)),
		},
	}
	return analysis
}

// headSkills copies the first n entries.
func headSkills(counts []SkillCount, n int) []SkillCount {
	if len(counts) < n {
		n = len(counts)
	}
	return append([]SkillCount{}, counts[:n]...)
}

// skillNames extracts names for the half-open range [from, to), clamped to
// valid bounds.
func skillNames(counts []SkillCount, from, to int) []string {
	if from < 0 {
		from = 0
	}
	if to > len(counts) {
		to = len(counts)
	}
	names := []string{}
	for i := from; i < to; i++ {
		names = append(names, counts[i].Skill)
	}
	return names
}
