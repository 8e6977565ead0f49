package models

// DefaultQuestion is used when a query carries no question of its own.
const DefaultQuestion = "Which crop is suitable for this soil?"

// Soil holds the six measurements shared by stored records and queries.
type Soil struct {
	Nitrogen    float64
	Phosphorus  float64
	Potassium   float64
	PH          float64
	Temperature float64
	Humidity    float64
}

// CropRecord is one ingested row of the agronomic dataset.
type CropRecord struct {
	ID string

	Nitrogen    float64
	Phosphorus  float64
	Potassium   float64
	Temperature float64
	Humidity    float64
	PH          float64

	RecommendedCrop string
	Disease         string
	AffectedCrops   string
	Chemical        string
	Threshold       string

	// Description is the rendered text that was embedded.
	Description string
	Embedding   []float32
	// Model names the embedding model that produced Embedding.
	Model string
}

func (r CropRecord) Soil() Soil {
	return Soil{
		Nitrogen:    r.Nitrogen,
		Phosphorus:  r.Phosphorus,
		Potassium:   r.Potassium,
		PH:          r.PH,
		Temperature: r.Temperature,
		Humidity:    r.Humidity,
	}
}

// Match projects the record into a search result.
func (r CropRecord) Match(distance float64) MatchResult {
	return MatchResult{
		RecommendedCrop: r.RecommendedCrop,
		Nitrogen:        r.Nitrogen,
		Phosphorus:      r.Phosphorus,
		Potassium:       r.Potassium,
		Temperature:     r.Temperature,
		Humidity:        r.Humidity,
		PHValue:         r.PH,
		Disease:         r.Disease,
		AffectedCrops:   r.AffectedCrops,
		Chemical:        r.Chemical,
		Threshold:       r.Threshold,
		SourceText:      r.Description,
		Distance:        distance,
	}
}

// SoilQuery is a single recommendation request.
type SoilQuery struct {
	Nitrogen    float64 `json:"nitrogen"`
	Phosphorus  float64 `json:"phosphorus"`
	Potassium   float64 `json:"potassium"`
	PH          float64 `json:"ph"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	Question    string  `json:"question"`
}

func (q SoilQuery) Soil() Soil {
	return Soil{
		Nitrogen:    q.Nitrogen,
		Phosphorus:  q.Phosphorus,
		Potassium:   q.Potassium,
		PH:          q.PH,
		Temperature: q.Temperature,
		Humidity:    q.Humidity,
	}
}

// MatchResult is a stored record as returned by a nearest-neighbour search.
// Distance is the store-reported cosine distance; it orders results but is
// not part of the response body.
type MatchResult struct {
	RecommendedCrop string  `json:"recommended_crop"`
	Nitrogen        float64 `json:"nitrogen"`
	Phosphorus      float64 `json:"phosphorus"`
	Potassium       float64 `json:"potassium"`
	Temperature     float64 `json:"temperature"`
	Humidity        float64 `json:"humidity"`
	PHValue         float64 `json:"ph_value"`
	Disease         string  `json:"disease"`
	AffectedCrops   string  `json:"affected_crops"`
	Chemical        string  `json:"chemical"`
	Threshold       string  `json:"threshold"`
	SourceText      string  `json:"source_text"`

	Distance float64 `json:"-"`
}
