package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tsvData = "Nitrogen\tPhosphorus\tPotassium\tTemperature\tHumidity\tpH_Value\tRainfall\tRecommended_Crop\tDisease\tAffected Crops\tChemical/Component\tThreshold\n" +
	"90\t42\t43\t20.87974371\t82.00274423\t6.502985292\t202.9355362\trice\tBlast\tRice\tTricyclazole\t0.6 g/L\n" +
	"71\t54\t16\t22.61359953\t63.69070564\t5.749914421\t87.75953857\tmaize\t\t\t\t\n"

const htmlData = `<html><body>
<nav><table><tr><td>menu</td></tr></table></nav>
<main>
<table>
  <thead><tr><th>Nitrogen</th><th>Phosphorus</th><th>Potassium</th><th>Temperature</th><th>Humidity</th><th>pH_Value</th><th>Recommended_Crop</th><th>Disease</th><th>Affected Crops</th><th>Chemical/Component</th><th>Threshold</th></tr></thead>
  <tbody>
    <tr><td>90</td><td>42</td><td>43</td><td>20.8</td><td>82</td><td>6.5</td><td>rice</td><td>Blast</td><td>Rice</td><td>Tricyclazole</td><td>0.6 g/L</td></tr>
    <tr><td>40</td><td>72</td><td>77</td><td>17</td><td>16.9</td><td>7.4</td><td>chickpea</td><td>Wilt</td><td>Chickpea,  Lentil</td><td>Carbendazim</td><td>1 g/kg</td></tr>
  </tbody>
</table>
</main></body></html>`

func TestParseDelimited(t *testing.T) {
	records, err := ParseDelimited(strings.NewReader(tsvData), '\t')
	require.NoError(t, err)
	require.Len(t, records, 2)

	rice := records[0]
	assert.Equal(t, 90.0, rice.Nitrogen)
	assert.Equal(t, 42.0, rice.Phosphorus)
	assert.Equal(t, 43.0, rice.Potassium)
	assert.Equal(t, 20.87974371, rice.Temperature)
	assert.Equal(t, 82.00274423, rice.Humidity)
	assert.Equal(t, 6.502985292, rice.PH)
	assert.Equal(t, "rice", rice.RecommendedCrop)
	assert.Equal(t, "Blast", rice.Disease)
	assert.Equal(t, "Rice", rice.AffectedCrops)
	assert.Equal(t, "Tricyclazole", rice.Chemical)
	assert.Equal(t, "0.6 g/L", rice.Threshold)

	maize := records[1]
	assert.Equal(t, "maize", maize.RecommendedCrop)
	assert.Empty(t, maize.Disease)
	assert.Empty(t, maize.Threshold)
}

func TestParseDelimitedComma(t *testing.T) {
	data := strings.ReplaceAll(tsvData, "\t", ",")
	records, err := ParseDelimited(strings.NewReader(data), ',')
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestParseDelimitedMissingColumn(t *testing.T) {
	data := strings.Replace(tsvData, "\tThreshold", "", 1)

	_, err := ParseDelimited(strings.NewReader(data), '\t')
	require.ErrorIs(t, err, ErrMissingColumn)
	assert.Contains(t, err.Error(), "Threshold")
}

func TestParseDelimitedInvalidNumber(t *testing.T) {
	data := strings.Replace(tsvData, "\t43\t", "\tforty-three\t", 1)

	_, err := ParseDelimited(strings.NewReader(data), '\t')
	require.ErrorIs(t, err, ErrInvalidNumber)
	assert.Contains(t, err.Error(), "row 2 column Potassium")
}

func TestParseDelimitedEmpty(t *testing.T) {
	_, err := ParseDelimited(strings.NewReader(""), '\t')
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestParseHTML(t *testing.T) {
	records, err := ParseHTML(strings.NewReader(htmlData))
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "rice", records[0].RecommendedCrop)
	assert.Equal(t, 6.5, records[0].PH)
	assert.Equal(t, "chickpea", records[1].RecommendedCrop)
	assert.Equal(t, "Chickpea, Lentil", records[1].AffectedCrops)
}

func TestParseHTMLNoTable(t *testing.T) {
	_, err := ParseHTML(strings.NewReader("<html><body><p>nothing</p></body></html>"))
	assert.ErrorIs(t, err, ErrNoTable)
}

func TestParseDelimiter(t *testing.T) {
	tests := []struct {
		in      string
		want    rune
		wantErr bool
	}{
		{"", '\t', false},
		{"\t", '\t', false},
		{`\t`, '\t', false},
		{"tab", '\t', false},
		{"comma", ',', false},
		{",", ',', false},
		{";", ';', false},
		{"||", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDelimiter(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidDelimiter)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoaderFile(t *testing.T) {
	dir := t.TempDir()
	tsvPath := filepath.Join(dir, "crops.csv")
	htmlPath := filepath.Join(dir, "crops.html")
	require.NoError(t, os.WriteFile(tsvPath, []byte(tsvData), 0644))
	require.NoError(t, os.WriteFile(htmlPath, []byte(htmlData), 0644))

	l := New()

	records, err := l.Load(context.Background(), tsvPath)
	require.NoError(t, err)
	assert.Len(t, records, 2)

	records, err = l.Load(context.Background(), htmlPath)
	require.NoError(t, err)
	assert.Equal(t, "chickpea", records[1].RecommendedCrop)

	_, err = l.Load(context.Background(), filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)
}

func TestLoaderURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/crops.tsv":
			w.Header().Set("Content-Type", "text/tab-separated-values")
			w.Write([]byte(tsvData))
		case "/crops":
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte(htmlData))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	l := NewWithConfig(LoaderConfig{Delimiter: '\t'})

	records, err := l.Load(context.Background(), server.URL+"/crops.tsv")
	require.NoError(t, err)
	assert.Equal(t, "maize", records[1].RecommendedCrop)

	records, err = l.Load(context.Background(), server.URL+"/crops")
	require.NoError(t, err)
	assert.Equal(t, "rice", records[0].RecommendedCrop)

	_, err = l.Load(context.Background(), server.URL+"/missing")
	assert.ErrorContains(t, err, "received status code 404")
}
