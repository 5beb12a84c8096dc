// Package market fetches the reference prices shown next to the projection:
// the official dollar selling rate and the latest UVA index value.
package market

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/MaxiNavarro97/proyectAR/pkg/models"
)

const maxBodySize = 4 << 20

type Config struct {
	DolarURL string
	UVAURL   string
}

type Client struct {
	http   *http.Client
	cfg    Config
	logger *log.Logger
	now    func() time.Time
}

func New(client *http.Client, cfg Config, logger *log.Logger) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Client{http: client, cfg: cfg, logger: logger, now: time.Now}
}

type dolarQuote struct {
	Venta decimal.Decimal `json:"venta"`
}

type uvaPoint struct {
	Fecha string          `json:"fecha"`
	Valor decimal.Decimal `json:"valor"`
}

// Fetch queries both sources. A failing source leaves its fields at zero and
// does not stop the other one; the returned error joins every failure.
func (c *Client) Fetch(ctx context.Context) (models.MarketStatus, error) {
	status := models.MarketStatus{LastUpdate: c.now()}
	var errs []error

	var quote dolarQuote
	if err := c.getJSON(ctx, c.cfg.DolarURL, &quote); err != nil {
		errs = append(errs, fmt.Errorf("dolar: %w", err))
	} else {
		status.DolarOficial = quote.Venta
		c.logger.Info("official dollar", "venta", quote.Venta)
	}

	var points []uvaPoint
	if err := c.getJSON(ctx, c.cfg.UVAURL, &points); err != nil {
		errs = append(errs, fmt.Errorf("uva: %w", err))
	} else if len(points) > 0 {
		latest := points[len(points)-1]
		status.UVAValue = latest.Valor
		status.UVADate = latest.Fecha
		c.logger.Info("UVA index", "value", latest.Valor, "date", latest.Fecha)
	}

	return status, errors.Join(errs...)
}

func (c *Client) getJSON(ctx context.Context, rawURL string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// document is the market_status.json layout the front end reads. Prices are
// written as plain JSON numbers.
type document struct {
	LastUpdate   string      `json:"last_update"`
	DolarOficial json.Number `json:"dolar_oficial"`
	UVAValue     json.Number `json:"uva_value"`
	UVADate      string      `json:"uva_date"`
}

// Encode renders status as the indented market_status.json document.
func Encode(status models.MarketStatus) ([]byte, error) {
	doc := document{
		LastUpdate:   status.LastUpdate.Format("2006-01-02T15:04:05.000000"),
		DolarOficial: json.Number(status.DolarOficial.String()),
		UVAValue:     json.Number(status.UVAValue.String()),
		UVADate:      status.UVADate,
	}
	return json.MarshalIndent(doc, "", "    ")
}

// Decode parses a market_status.json document.
func Decode(data []byte) (models.MarketStatus, error) {
	var doc struct {
		LastUpdate   string          `json:"last_update"`
		DolarOficial decimal.Decimal `json:"dolar_oficial"`
		UVAValue     decimal.Decimal `json:"uva_value"`
		UVADate      string          `json:"uva_date"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return models.MarketStatus{}, fmt.Errorf("failed to decode market status: %w", err)
	}

	status := models.MarketStatus{
		DolarOficial: doc.DolarOficial,
		UVAValue:     doc.UVAValue,
		UVADate:      doc.UVADate,
	}
	for _, layout := range []string{"2006-01-02T15:04:05.999999", time.RFC3339Nano} {
		if t, err := time.Parse(layout, doc.LastUpdate); err == nil {
			status.LastUpdate = t
			break
		}
	}
	return status, nil
}

// Save writes status to path, creating parent directories.
func Save(path string, status models.MarketStatus) error {
	data, err := Encode(status)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("error creating directory: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("error writing market status: %w", err)
	}
	return nil
}

// Load reads a previously saved status.
func Load(path string) (models.MarketStatus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.MarketStatus{}, err
	}
	return Decode(bytes.TrimSpace(data))
}
