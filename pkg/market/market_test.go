package market

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MaxiNavarro97/proyectAR/pkg/models"
)

func newServer(t *testing.T, dolarStatus int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/dolares/oficial", func(w http.ResponseWriter, r *http.Request) {
		if dolarStatus != http.StatusOK {
			w.WriteHeader(dolarStatus)
			return
		}
		fmt.Fprint(w, `{"moneda":"USD","casa":"oficial","compra":1385,"venta":1435.5,"fechaActualizacion":"2026-10-15T13:00:00.000Z"}`)
	})
	mux.HandleFunc("/v1/finanzas/indices/uva", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"fecha":"2026-10-14","valor":1650.12},{"fecha":"2026-10-15","valor":1651.07}]`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newClient(srv *httptest.Server) *Client {
	c := New(srv.Client(), Config{
		DolarURL: srv.URL + "/v1/dolares/oficial",
		UVAURL:   srv.URL + "/v1/finanzas/indices/uva",
	}, nil)
	c.now = func() time.Time { return time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC) }
	return c
}

func TestFetch(t *testing.T) {
	status, err := newClient(newServer(t, http.StatusOK)).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if !status.DolarOficial.Equal(decimal.RequireFromString("1435.5")) {
		t.Errorf("expected dolar 1435.5, got %s", status.DolarOficial)
	}
	if !status.UVAValue.Equal(decimal.RequireFromString("1651.07")) {
		t.Errorf("expected latest UVA 1651.07, got %s", status.UVAValue)
	}
	if status.UVADate != "2026-10-15" {
		t.Errorf("expected UVA date 2026-10-15, got %q", status.UVADate)
	}
}

func TestFetchPartialFailure(t *testing.T) {
	status, err := newClient(newServer(t, http.StatusBadGateway)).Fetch(context.Background())
	if err == nil || !strings.Contains(err.Error(), "dolar") {
		t.Fatalf("expected dolar error, got %v", err)
	}
	if !status.DolarOficial.IsZero() {
		t.Errorf("dolar should stay zero, got %s", status.DolarOficial)
	}
	if status.UVADate != "2026-10-15" {
		t.Errorf("UVA should still be fetched, got %+v", status)
	}
}

func TestSaveAndLoad(t *testing.T) {
	status := models.MarketStatus{
		LastUpdate:   time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC),
		DolarOficial: decimal.RequireFromString("1435.5"),
		UVAValue:     decimal.RequireFromString("1651.07"),
		UVADate:      "2026-10-15",
	}

	data, err := Encode(status)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	for _, want := range []string{`"dolar_oficial": 1435.5`, `"uva_value": 1651.07`, `"last_update": "2026-10-15T09:30:00.000000"`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("encoded status %s missing %s", data, want)
		}
	}

	path := filepath.Join(t.TempDir(), "market", "market_status.json")
	if err := Save(path, status); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !got.LastUpdate.Equal(status.LastUpdate) || !got.DolarOficial.Equal(status.DolarOficial) ||
		!got.UVAValue.Equal(status.UVAValue) || got.UVADate != status.UVADate {
		t.Errorf("round trip mismatch:\nExpected: %+v\nGot: %+v", status, got)
	}
}
