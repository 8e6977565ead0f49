// Package source reads crop records from delimited files and HTML tables,
// either on disk or over HTTP.
package source

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/xhad/croprag/internal/models"
)

// Dataset column names.
const (
	ColNitrogen        = "Nitrogen"
	ColPhosphorus      = "Phosphorus"
	ColPotassium       = "Potassium"
	ColPH              = "pH_Value"
	ColTemperature     = "Temperature"
	ColHumidity        = "Humidity"
	ColRecommendedCrop = "Recommended_Crop"
	ColDisease         = "Disease"
	ColAffectedCrops   = "Affected Crops"
	ColChemical        = "Chemical/Component"
	ColThreshold       = "Threshold"
)

// RequiredColumns must all be present in the header row.
var RequiredColumns = []string{
	ColNitrogen,
	ColPhosphorus,
	ColPotassium,
	ColPH,
	ColTemperature,
	ColHumidity,
	ColRecommendedCrop,
	ColDisease,
	ColAffectedCrops,
	ColChemical,
	ColThreshold,
}

type LoaderConfig struct {
	Delimiter rune
	Timeout   time.Duration
}

// Loader reads a dataset from a file path or an http(s) URL.
type Loader struct {
	config LoaderConfig
	client *http.Client
}

func NewWithConfig(config LoaderConfig) *Loader {
	if config.Delimiter == 0 {
		config.Delimiter = '\t'
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	return &Loader{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

func New() *Loader {
	return NewWithConfig(LoaderConfig{})
}

// Load reads records from location. HTML documents are parsed for their
// first table; anything else is read as delimited text.
func (l *Loader) Load(ctx context.Context, location string) ([]models.CropRecord, error) {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		return l.fetch(ctx, location)
	}

	f, err := os.Open(location)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(location)) {
	case ".html", ".htm":
		return ParseHTML(f)
	default:
		return ParseDelimited(f, l.config.Delimiter)
	}
}

func (l *Loader) fetch(ctx context.Context, url string) ([]models.CropRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch dataset: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("received status code %d for URL: %s", resp.StatusCode, url)
	}

	body := bufio.NewReader(resp.Body)
	if isHTML(resp.Header.Get("Content-Type"), body) {
		return ParseHTML(body)
	}
	return ParseDelimited(body, l.config.Delimiter)
}

func isHTML(contentType string, body *bufio.Reader) bool {
	if strings.Contains(contentType, "html") {
		return true
	}
	head, _ := body.Peek(512)
	head = bytes.TrimSpace(head)
	return bytes.HasPrefix(head, []byte("<"))
}

// ParseDelimiter accepts a literal character or one of the names tab and comma.
func ParseDelimiter(s string) (rune, error) {
	switch strings.ToLower(s) {
	case "", "\t", `\t`, "tab":
		return '\t', nil
	case "comma":
		return ',', nil
	}
	if utf8.RuneCountInString(s) != 1 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDelimiter, s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r, nil
}

// ParseDelimited reads a header row followed by data rows.
func ParseDelimited(r io.Reader, delimiter rune) ([]models.CropRecord, error) {
	reader := csv.NewReader(r)
	reader.Comma = delimiter
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: empty dataset", ErrMissingColumn)
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	index, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	var records []models.CropRecord
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", line, err)
		}

		record, err := index.record(row, line)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	return records, nil
}

// ParseHTML reads the first table of an HTML document, preferring one inside
// the main content area.
func ParseHTML(r io.Reader) ([]models.CropRecord, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}

	table := findTable(doc)
	if table == nil {
		return nil, ErrNoTable
	}

	var rows [][]string
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		var cells []string
		tr.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
			cells = append(cells, strings.Join(strings.Fields(cell.Text()), " "))
		})
		if len(cells) > 0 {
			rows = append(rows, cells)
		}
	})
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: empty table", ErrMissingColumn)
	}

	index, err := columnIndex(rows[0])
	if err != nil {
		return nil, err
	}

	records := make([]models.CropRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		record, err := index.record(row, i+2)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

func findTable(doc *goquery.Document) *goquery.Selection {
	selectors := []string{
		"main table",
		"article table",
		".content table",
		"#content table",
		"table",
	}

	for _, selector := range selectors {
		if selected := doc.Find(selector); selected.Length() > 0 {
			return selected.First()
		}
	}
	return nil
}

type columns map[string]int

func columnIndex(header []string) (columns, error) {
	index := make(columns, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		index[strings.ToLower(name)] = i
	}

	for _, name := range RequiredColumns {
		if _, ok := index[strings.ToLower(name)]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
	}
	return index, nil
}

func (c columns) cell(row []string, name string) string {
	i := c[strings.ToLower(name)]
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func (c columns) number(row []string, name string, line int) (float64, error) {
	raw := c.cell(row, name)
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("row %d column %s: %w %q", line, name, ErrInvalidNumber, raw)
	}
	return v, nil
}

func (c columns) record(row []string, line int) (models.CropRecord, error) {
	var (
		r   models.CropRecord
		err error
	)

	numbers := []struct {
		name string
		dst  *float64
	}{
		{ColNitrogen, &r.Nitrogen},
		{ColPhosphorus, &r.Phosphorus},
		{ColPotassium, &r.Potassium},
		{ColPH, &r.PH},
		{ColTemperature, &r.Temperature},
		{ColHumidity, &r.Humidity},
	}
	for _, n := range numbers {
		if *n.dst, err = c.number(row, n.name, line); err != nil {
			return r, err
		}
	}

	r.RecommendedCrop = c.cell(row, ColRecommendedCrop)
	r.Disease = c.cell(row, ColDisease)
	r.AffectedCrops = c.cell(row, ColAffectedCrops)
	r.Chemical = c.cell(row, ColChemical)
	r.Threshold = c.cell(row, ColThreshold)
	return r, nil
}
