package recommend

import (
	"encoding/json"

	"github.com/xhad/croprag/internal/models"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"

	// NoMatchMessage is reported when the search returns nothing.
	NoMatchMessage = "No matching rows found in the vector database."
)

// Recommendation is the aggregated answer to a SoilQuery. Its JSON form
// depends on Status: an error body carries only status, message and
// query_summary.
type Recommendation struct {
	Status          string
	Message         string
	QuerySummary    string
	BestCrop        string
	OtherCandidates []string
	Matches         []models.MatchResult
	// Explanation is set only when an explainer is configured and succeeds.
	Explanation string
}

type successBody struct {
	Status          string               `json:"status"`
	QuerySummary    string               `json:"query_summary"`
	BestCrop        string               `json:"best_crop"`
	OtherCandidates []string             `json:"other_candidates"`
	Matches         []models.MatchResult `json:"matches"`
	Explanation     string               `json:"explanation,omitempty"`
}

type errorBody struct {
	Status       string `json:"status"`
	Message      string `json:"message"`
	QuerySummary string `json:"query_summary"`
}

func (r Recommendation) MarshalJSON() ([]byte, error) {
	if r.Status == StatusError {
		return json.Marshal(errorBody{
			Status:       r.Status,
			Message:      r.Message,
			QuerySummary: r.QuerySummary,
		})
	}

	others := r.OtherCandidates
	if others == nil {
		others = []string{}
	}
	matches := r.Matches
	if matches == nil {
		matches = []models.MatchResult{}
	}

	return json.Marshal(successBody{
		Status:          r.Status,
		QuerySummary:    r.QuerySummary,
		BestCrop:        r.BestCrop,
		OtherCandidates: others,
		Matches:         matches,
		Explanation:     r.Explanation,
	})
}

// Aggregate turns ranked matches into a recommendation. The best crop is the
// top match's; other candidates are the distinct non-empty crops of the
// remaining matches in first-seen order, never repeating the best crop.
func Aggregate(summary string, matches []models.MatchResult) Recommendation {
	if len(matches) == 0 {
		return Recommendation{
			Status:       StatusError,
			Message:      NoMatchMessage,
			QuerySummary: summary,
		}
	}

	best := matches[0].RecommendedCrop
	seen := map[string]bool{best: true}
	others := []string{}
	for _, m := range matches[1:] {
		crop := m.RecommendedCrop
		if crop == "" || seen[crop] {
			continue
		}
		seen[crop] = true
		others = append(others, crop)
	}

	return Recommendation{
		Status:          StatusSuccess,
		QuerySummary:    summary,
		BestCrop:        best,
		OtherCandidates: others,
		Matches:         matches,
	}
}
