// Package sink persists projection series in the formats the front end and
// downstream tooling read.
package sink

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/MaxiNavarro97/proyectAR/pkg/models"
)

type Format string

const (
	CSV  Format = "csv"
	JSON Format = "json"
	YAML Format = "yaml"
)

// Header is the column layout of the published CSV. The front end reads the
// first three columns by position.
var Header = []string{"mes", "año", "valor_mensual", "periodo"}

var bom = []byte("\xef\xbb\xbf")

// FilterFunc decides whether an estimate is written. A nil filter keeps everything.
type FilterFunc func(models.Estimate) bool

// record is the on-disk shape of an estimate for JSON and YAML.
type record struct {
	Mes          int     `json:"mes" yaml:"mes"`
	Anio         int     `json:"año" yaml:"año"`
	ValorMensual float64 `json:"valor_mensual" yaml:"valor_mensual"`
	Periodo      string  `json:"periodo" yaml:"periodo"`
}

// FormatFromPath picks the format from the file extension, falling back to def.
func FormatFromPath(path string, def Format) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return CSV
	case ".json":
		return JSON
	case ".yaml", ".yml":
		return YAML
	}
	return def
}

// Write encodes series to w in the given format, keeping series order.
func Write(w io.Writer, series models.Series, format Format, filter FilterFunc) error {
	var kept []models.Estimate
	for _, e := range series {
		if filter == nil || filter(e) {
			kept = append(kept, e)
		}
	}

	switch format {
	case CSV, "":
		return writeCSV(w, kept)
	case JSON:
		data, err := json.MarshalIndent(records(kept), "", "  ")
		if err != nil {
			return fmt.Errorf("error encoding json: %w", err)
		}
		_, err = w.Write(append(data, '\n'))
		return err
	case YAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(records(kept)); err != nil {
			return fmt.Errorf("error encoding yaml: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

// Save writes series to path, creating parent directories as needed. The file
// is written next to its destination and renamed into place so readers never
// see a partial series.
func Save(path string, series models.Series, format Format) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("error creating output directory: %w", err)
	}

	var buf bytes.Buffer
	if err := Write(&buf, series, format, nil); err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("error writing output file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("error replacing output file: %w", err)
	}
	return nil
}

func writeCSV(w io.Writer, series []models.Estimate) error {
	if _, err := w.Write(bom); err != nil {
		return err
	}

	csvWriter := csv.NewWriter(w)
	csvWriter.Comma = ';'

	if err := csvWriter.Write(Header); err != nil {
		return fmt.Errorf("error writing CSV header: %w", err)
	}
	for _, e := range series {
		rec := []string{
			strconv.Itoa(e.Month),
			strconv.Itoa(e.Year),
			FormatRate(e.MonthlyRate),
			e.Label,
		}
		if err := csvWriter.Write(rec); err != nil {
			return fmt.Errorf("error writing estimate: %w", err)
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}

// FormatRate renders a rate the way the published CSV always had it: shortest
// representation, with at least one decimal.
func FormatRate(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func records(series []models.Estimate) []record {
	out := make([]record, 0, len(series))
	for _, e := range series {
		out = append(out, record{Mes: e.Month, Anio: e.Year, ValorMensual: e.MonthlyRate, Periodo: e.Label})
	}
	return out
}
