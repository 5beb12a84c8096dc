package sink

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/MaxiNavarro97/proyectAR/pkg/models"
)

// ReadCSV parses a series previously written by Write so that it can be served
// or previewed without rebuilding it. Lines that do not parse are skipped.
func ReadCSV(r io.Reader) (models.Series, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(bom)); err == nil && bytes.Equal(head, bom) {
		_, _ = br.Discard(len(bom))
	}

	cr := csv.NewReader(br)
	cr.Comma = ';'
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}

	start := 0
	if len(records) > 0 && len(records[0]) > 0 && strings.EqualFold(strings.TrimSpace(records[0][0]), Header[0]) {
		start = 1
	}

	series := make(models.Series, 0, len(records))
	for _, rec := range records[start:] {
		if len(rec) < 3 {
			continue
		}
		month, err := strconv.Atoi(strings.TrimSpace(rec[0]))
		if err != nil || month < 1 || month > 12 {
			continue
		}
		year, err := strconv.Atoi(strings.TrimSpace(rec[1]))
		if err != nil {
			continue
		}
		rate, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(rec[2]), ",", "."), 64)
		if err != nil {
			continue
		}
		e := models.NewEstimate(year, month, rate, "")
		if len(rec) > 3 && rec[3] != "" {
			e.Label = rec[3]
		}
		series = append(series, e)
	}
	return series, nil
}

// Read decodes a series written by Write in the given format.
func Read(r io.Reader, format Format) (models.Series, error) {
	if format == CSV {
		return ReadCSV(r)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read series: %w", err)
	}
	var recs []record
	switch format {
	case JSON:
		err = json.Unmarshal(data, &recs)
	case YAML:
		err = yaml.Unmarshal(data, &recs)
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s series: %w", format, err)
	}

	series := make(models.Series, 0, len(recs))
	for _, rec := range recs {
		if rec.Mes < 1 || rec.Mes > 12 {
			continue
		}
		e := models.NewEstimate(rec.Anio, rec.Mes, rec.ValorMensual, "")
		if rec.Periodo != "" {
			e.Label = rec.Periodo
		}
		series = append(series, e)
	}
	return series, nil
}

// Load reads a series from path, picking the format from its extension.
// Paths without a known extension are read as CSV, the way Save writes them.
func Load(path string) (models.Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f, FormatFromPath(path, CSV))
}

// ContentType is the media type a file written in format is served with.
func ContentType(format Format) string {
	switch format {
	case JSON:
		return "application/json"
	case YAML:
		return "application/yaml"
	}
	return "text/csv; charset=utf-8"
}
