// Package survey reads raw expectation-survey rows out of the files the BCRA
// publishes (and the formats we keep them in locally).
package survey

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/MaxiNavarro97/proyectAR/pkg/models"
)

type FileType string

const (
	XLSX FileType = "xlsx"
	XLS  FileType = "xls"
	CSV  FileType = "csv"
	YAML FileType = "yaml"
)

const DefaultSheet = "Cuadros de resultados"

var (
	ErrUnknownFormat  = errors.New("unknown survey file type")
	ErrHeaderNotFound = errors.New("survey header row not found")
)

// Options selects the part of a workbook that holds the survey table.
type Options struct {
	// Sheet is tried first; when missing every sheet is scanned for the header.
	Sheet string
	// MaxRows caps the data rows read after the header. Zero reads them all.
	MaxRows int
}

type Reader struct {
	logger *log.Logger
	opts   Options
}

func New(logger *log.Logger, opts Options) *Reader {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if opts.Sheet == "" {
		opts.Sheet = DefaultSheet
	}
	return &Reader{
		logger: logger,
		opts:   opts,
	}
}

// ReadFile reads path and hands its contents to ProcessBytes.
func (r *Reader) ReadFile(path string) ([]models.SurveyRow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read survey file %s: %w", path, err)
	}
	rows, err := r.ProcessBytes(data, filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("failed to process survey file %s: %w", path, err)
	}
	return rows, nil
}

func (r *Reader) ProcessBytes(data []byte, filename string) ([]models.SurveyRow, error) {
	fileType := DetectType(filename)
	r.logger.Debug("detected file type", "type", fileType, "filename", filename)

	switch fileType {
	case XLSX:
		return r.ParseXLSX(data)
	case XLS:
		return r.ParseXLS(data)
	case CSV:
		return r.ParseCSV(data)
	case YAML:
		return r.ParseYAML(data)
	default:
		r.logger.Debug("unknown file type", "filename", filename)
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, filename)
	}
}

func DetectType(filename string) FileType {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		return XLSX
	case ".xls":
		return XLS
	case ".csv", ".txt":
		return CSV
	case ".yaml", ".yml":
		return YAML
	}
	return ""
}
