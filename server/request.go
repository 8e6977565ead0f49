package server

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/xhad/croprag/internal/models"
)

// recommendRequest mirrors models.SoilQuery with pointers so absent fields
// can be told apart from zero values.
type recommendRequest struct {
	Nitrogen    *float64 `json:"nitrogen"`
	Phosphorus  *float64 `json:"phosphorus"`
	Potassium   *float64 `json:"potassium"`
	PH          *float64 `json:"ph"`
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
	Question    *string  `json:"question"`
}

// fieldProblem is one entry of a 422 detail list.
type fieldProblem struct {
	Type string   `json:"type"`
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
}

func (p fieldProblem) String() string {
	return strings.Join(p.Loc, ".") + ": " + p.Msg
}

func decodeQuery(body []byte) (models.SoilQuery, []fieldProblem) {
	var req recommendRequest
	if err := json.Unmarshal(body, &req); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return models.SoilQuery{}, []fieldProblem{{
				Type: "type_error",
				Loc:  []string{"body", typeErr.Field},
				Msg:  "Input should be a valid " + typeErr.Type.Kind().String(),
			}}
		}
		return models.SoilQuery{}, []fieldProblem{{
			Type: "json_invalid",
			Loc:  []string{"body"},
			Msg:  "JSON decode error: " + err.Error(),
		}}
	}

	var problems []fieldProblem
	required := func(name string, v *float64) float64 {
		if v == nil {
			problems = append(problems, fieldProblem{
				Type: "missing",
				Loc:  []string{"body", name},
				Msg:  "Field required",
			})
			return 0
		}
		return *v
	}

	q := models.SoilQuery{
		Nitrogen:    required("nitrogen", req.Nitrogen),
		Phosphorus:  required("phosphorus", req.Phosphorus),
		Potassium:   required("potassium", req.Potassium),
		PH:          required("ph", req.PH),
		Temperature: required("temperature", req.Temperature),
		Humidity:    required("humidity", req.Humidity),
	}
	// An absent or null question gets the default; an empty one is kept.
	q.Question = models.DefaultQuestion
	if req.Question != nil {
		q.Question = *req.Question
	}
	return q, problems
}
