package describe_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/croprag/internal/models"
	"github.com/xhad/croprag/pkg/describe"
)

func TestQuery(t *testing.T) {
	q := models.SoilQuery{
		Nitrogen:    90,
		Phosphorus:  42,
		Potassium:   43,
		PH:          6.5,
		Temperature: 20.879744,
		Humidity:    82.002744,
		Question:    models.DefaultQuestion,
	}

	got := describe.Query(q)
	assert.Equal(t,
		"Soil: N=90 ppm, P=42 ppm, K=43 ppm, pH=6.5, Temp=20.879744C, Humidity=82.002744%. Question: Which crop is suitable for this soil?",
		got)
}

func TestQueryFieldOrder(t *testing.T) {
	q := models.SoilQuery{
		Nitrogen:    11,
		Phosphorus:  22,
		Potassium:   33,
		PH:          4.4,
		Temperature: 55,
		Humidity:    66,
		Question:    "what grows here?",
	}
	summary := describe.Query(q)

	parts := []string{"N=11 ppm", "P=22 ppm", "K=33 ppm", "pH=4.4", "Temp=55C", "Humidity=66%", "Question: what grows here?"}
	last := -1
	for _, part := range parts {
		assert.Equal(t, 1, strings.Count(summary, part), "expected %q exactly once", part)
		idx := strings.Index(summary, part)
		require.Greater(t, idx, last, "%q out of order", part)
		last = idx
	}
}

func TestRecord(t *testing.T) {
	r := models.CropRecord{
		Nitrogen:        90,
		Phosphorus:      42,
		Potassium:       43,
		PH:              6.5,
		Temperature:     21,
		Humidity:        82,
		RecommendedCrop: "rice",
		Disease:         "Blast",
		AffectedCrops:   "Rice, Wheat",
		Chemical:        "Nitrogen",
		Threshold:       "> 120 ppm",
	}

	assert.Equal(t,
		"Soil: N=90 ppm, P=42 ppm, K=43 ppm, pH=6.5, Temp=21C, Humidity=82%. "+
			"Recommended Crop: rice. Disease: Blast (Affected: Rice, Wheat). "+
			"Chemical Component: Nitrogen (Threshold: > 120 ppm).",
		describe.Record(r))
}

func TestRecordAndQueryShareSoilPortion(t *testing.T) {
	r := models.CropRecord{Nitrogen: 1.25, Phosphorus: 0, Potassium: 200, PH: 7, Temperature: -3.5, Humidity: 100}
	q := models.SoilQuery{Nitrogen: 1.25, Phosphorus: 0, Potassium: 200, PH: 7, Temperature: -3.5, Humidity: 100}

	soil := describe.Soil(r.Soil())
	assert.True(t, strings.HasPrefix(describe.Record(r), soil))
	assert.True(t, strings.HasPrefix(describe.Query(q), soil))
	assert.Equal(t, soil, describe.Soil(q.Soil()))
}

func TestNumber(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{90, "90"},
		{6.5, "6.5"},
		{0, "0"},
		{-3.25, "-3.25"},
		{1e-7, "0.0000001"},
		{202.935536, "202.935536"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, describe.Number(tt.in))
		})
	}
}
