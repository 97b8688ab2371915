package models

import "time"

// CurrencyDefinition is one denomination of the virtual economy. CurrentSupply
// is an aggregate bookkeeping counter, not the sum of user balances; the
// inflation adjustment rebases it at most once per rolling 24h.
type CurrencyDefinition struct {
	ID     string `gorm:"primaryKey;type:uuid" json:"id"`
	Symbol string `gorm:"uniqueIndex;not null;type:varchar(16)" json:"symbol"`
	Name   string `gorm:"not null" json:"name"`

	CurrentSupply int64   `json:"current_supply" gorm:"default:0"`
	InflationRate float64 `json:"inflation_rate" gorm:"default:0"` // annual
	DeflationRate float64 `json:"deflation_rate" gorm:"default:0"`

	// Exchange restrictions (catalog data; per-pair bounds live on ExchangeRate).
	MinExchange     int64 `json:"min_exchange" gorm:"default:1"`
	MaxExchange     int64 `json:"max_exchange" gorm:"default:0"` // 0 = unbounded
	DailyCap        int64 `json:"daily_cap" gorm:"default:0"`
	MonthlyCap      int64 `json:"monthly_cap" gorm:"default:0"`
	CooldownMinutes int   `json:"cooldown_minutes" gorm:"default:0"`

	LastAdjustedAt *time.Time `json:"last_adjusted_at,omitempty"`

	Version int64 `gorm:"default:0" json:"-"`

	Timestamps
}

// ExchangeRate is one directed edge of the conversion graph. Absence of an
// edge means the conversion is not offered; there is no multi-hop pathing.
type ExchangeRate struct {
	ID         string `gorm:"primaryKey;type:uuid" json:"id"`
	FromSymbol string `gorm:"not null;type:varchar(16);uniqueIndex:idx_rate_pair" json:"from_symbol"`
	ToSymbol   string `gorm:"not null;type:varchar(16);uniqueIndex:idx_rate_pair" json:"to_symbol"`

	Rate      float64 `json:"rate" gorm:"not null"`
	Fee       float64 `json:"fee" gorm:"default:0"` // fraction of gross, [0,1)
	MinAmount int64   `json:"min_amount" gorm:"default:1"`
	MaxAmount int64   `json:"max_amount" gorm:"not null"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// DefaultCurrencies seeds the economy on first boot.
var DefaultCurrencies = []CurrencyDefinition{
	{
		Symbol:        "coins",
		Name:          "Coins",
		InflationRate: 0.05,
		MinExchange:   10,
		MaxExchange:   100000,
	},
	{
		Symbol:        "gems",
		Name:          "Gems",
		InflationRate: 0.02,
		DeflationRate: 0.01,
		MinExchange:   1,
		MaxExchange:   10000,
	},
}

// DefaultExchangeRates seeds the conversion graph. The graph is directed and
// deliberately asymmetric: gems buy back fewer coins than they cost.
var DefaultExchangeRates = []ExchangeRate{
	{FromSymbol: "coins", ToSymbol: "gems", Rate: 0.01, Fee: 0.02, MinAmount: 100, MaxAmount: 100000},
	{FromSymbol: "gems", ToSymbol: "coins", Rate: 90, Fee: 0.05, MinAmount: 1, MaxAmount: 1000},
}
