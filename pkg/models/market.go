package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketStatus is the snapshot published next to the projection for the front end.
type MarketStatus struct {
	LastUpdate   time.Time       `json:"last_update"`
	DolarOficial decimal.Decimal `json:"dolar_oficial"`
	UVAValue     decimal.Decimal `json:"uva_value"`
	UVADate      string          `json:"uva_date"`
}
