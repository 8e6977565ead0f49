// Package describe renders crop records and soil queries as the text that is
// embedded. Ingestion and querying share Soil, so both sides of a search see
// the measurements in the same order and format.
package describe

import (
	"fmt"
	"strconv"

	"github.com/xhad/croprag/internal/models"
)

// Soil renders the six measurements. Field order is N, P, K, pH, Temp, Humidity.
func Soil(s models.Soil) string {
	return fmt.Sprintf("Soil: N=%s ppm, P=%s ppm, K=%s ppm, pH=%s, Temp=%sC, Humidity=%s%%.",
		Number(s.Nitrogen),
		Number(s.Phosphorus),
		Number(s.Potassium),
		Number(s.PH),
		Number(s.Temperature),
		Number(s.Humidity),
	)
}

// Record renders an ingested row: the soil portion followed by the
// recommendation, disease and chemical fields.
func Record(r models.CropRecord) string {
	return Soil(r.Soil()) + fmt.Sprintf(
		" Recommended Crop: %s. Disease: %s (Affected: %s). Chemical Component: %s (Threshold: %s).",
		r.RecommendedCrop, r.Disease, r.AffectedCrops, r.Chemical, r.Threshold,
	)
}

// Query renders a soil query; the result doubles as the query summary.
func Query(q models.SoilQuery) string {
	return Soil(q.Soil()) + " Question: " + q.Question
}

// Number formats v in its shortest round-trip decimal form, independent of
// locale: 90, 6.5, 20.879744.
func Number(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
