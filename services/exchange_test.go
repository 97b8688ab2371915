package services

import (
	"errors"
	"testing"
	"time"

	"player-progression-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func seedExchange(t *testing.T, db *gorm.DB) {
	t.Helper()
	currencies := []models.CurrencyDefinition{
		{ID: uuid.NewString(), Symbol: "coins", Name: "Coins", CurrentSupply: 100000, InflationRate: 0.05},
		{ID: uuid.NewString(), Symbol: "gems", Name: "Gems", CurrentSupply: 5000, InflationRate: 0.02},
	}
	if err := db.Create(&currencies).Error; err != nil {
		t.Fatalf("seed currencies: %v", err)
	}
	rate := models.ExchangeRate{
		ID:         uuid.NewString(),
		FromSymbol: "coins",
		ToSymbol:   "gems",
		Rate:       10,
		Fee:        0.02,
		MinAmount:  10,
		MaxAmount:  100000,
	}
	if err := db.Create(&rate).Error; err != nil {
		t.Fatalf("seed rate: %v", err)
	}
}

func TestExchangeAppliesRateAndFeeAtomically(t *testing.T) {
	db := newTestDB(t)
	seedExchange(t, db)
	ledger := NewLedgerService(db)
	exchange := NewExchangeService(db)

	if err := ledger.AddCurrency("user-1", "coins", 50); err != nil { // seed 100 + 50
		t.Fatalf("fund user: %v", err)
	}

	ok, err := exchange.Exchange("user-1", "coins", "gems", 100)
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if !ok {
		t.Fatal("exchange refused")
	}

	prog := mustProgression(t, db, "user-1")
	if got := prog.Balances["coins"]; got != 50 {
		t.Errorf("coins = %d, want 50", got)
	}
	// 100 × 10 = 1000 gross, minus the 2 percent fee = 980
	if got := prog.Balances["gems"]; got != 980 {
		t.Errorf("gems = %d, want 980", got)
	}
	if got := prog.Stats["exchanges_completed"]; got != 1 {
		t.Errorf("exchanges_completed = %d, want 1", got)
	}

	// Aggregate supply follows the conversion.
	var coins, gems models.CurrencyDefinition
	if err := db.Where("symbol = ?", "coins").First(&coins).Error; err != nil {
		t.Fatalf("reload coins: %v", err)
	}
	if err := db.Where("symbol = ?", "gems").First(&gems).Error; err != nil {
		t.Fatalf("reload gems: %v", err)
	}
	if coins.CurrentSupply != 99900 {
		t.Errorf("coins supply = %d, want 99900", coins.CurrentSupply)
	}
	if gems.CurrentSupply != 5980 {
		t.Errorf("gems supply = %d, want 5980", gems.CurrentSupply)
	}
}

func TestExchangeBelowMinAmountNoMutation(t *testing.T) {
	db := newTestDB(t)
	seedExchange(t, db)
	ledger := NewLedgerService(db)
	exchange := NewExchangeService(db)

	if _, err := ledger.EnsureProgression("user-1"); err != nil {
		t.Fatalf("ensure: %v", err)
	}

	ok, err := exchange.Exchange("user-1", "coins", "gems", 5)
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if ok {
		t.Fatal("exchange below min amount accepted")
	}

	prog := mustProgression(t, db, "user-1")
	if got := prog.Balances["coins"]; got != SeedCoinGrant {
		t.Errorf("coins mutated on refused exchange: %d", got)
	}
	if got := prog.Balances["gems"]; got != 0 {
		t.Errorf("gems credited on refused exchange: %d", got)
	}
}

func TestExchangeMissingEdge(t *testing.T) {
	db := newTestDB(t)
	seedExchange(t, db)
	exchange := NewExchangeService(db)

	// Only coins→gems is seeded; the reverse direction does not exist.
	ok, err := exchange.Exchange("user-1", "gems", "coins", 10)
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if ok {
		t.Fatal("exchange along a missing edge accepted")
	}
}

func TestExchangeInsufficientBalance(t *testing.T) {
	db := newTestDB(t)
	seedExchange(t, db)
	ledger := NewLedgerService(db)
	exchange := NewExchangeService(db)

	if _, err := ledger.EnsureProgression("user-1"); err != nil {
		t.Fatalf("ensure: %v", err)
	}

	ok, err := exchange.Exchange("user-1", "coins", "gems", SeedCoinGrant+1)
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if ok {
		t.Fatal("exchange beyond balance accepted")
	}
}

func TestExchangeRejectsNonPositiveAmount(t *testing.T) {
	db := newTestDB(t)
	exchange := NewExchangeService(db)

	if _, err := exchange.Exchange("user-1", "coins", "gems", 0); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("error = %v, want ErrInvalidAmount", err)
	}
}

func TestInflationAdjustmentOncePerWindow(t *testing.T) {
	db := newTestDB(t)
	seedExchange(t, db)
	exchange := NewExchangeService(db)

	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	exchange.Now = fixedClock(start)

	// round(100000 × 0.05 / 365) = 14
	adj, err := exchange.ApplyInflationAdjustment("coins")
	if err != nil {
		t.Fatalf("first adjustment: %v", err)
	}
	if adj != 14 {
		t.Errorf("adjustment = %d, want 14", adj)
	}

	// Inside the 24h window the second call is a no-op.
	exchange.Now = fixedClock(start.Add(12 * time.Hour))
	adj, err = exchange.ApplyInflationAdjustment("coins")
	if err != nil {
		t.Fatalf("second adjustment: %v", err)
	}
	if adj != 0 {
		t.Errorf("adjustment inside window = %d, want 0", adj)
	}

	var def models.CurrencyDefinition
	if err := db.Where("symbol = ?", "coins").First(&def).Error; err != nil {
		t.Fatalf("reload currency: %v", err)
	}
	if def.CurrentSupply != 100014 {
		t.Errorf("supply = %d, want 100014", def.CurrentSupply)
	}

	// A full day later it applies again, against the new supply.
	exchange.Now = fixedClock(start.Add(25 * time.Hour))
	adj, err = exchange.ApplyInflationAdjustment("coins")
	if err != nil {
		t.Fatalf("third adjustment: %v", err)
	}
	if adj != 14 { // round(100014 × 0.05 / 365)
		t.Errorf("adjustment = %d, want 14", adj)
	}
}

func TestInflationUnknownCurrency(t *testing.T) {
	db := newTestDB(t)
	exchange := NewExchangeService(db)

	if _, err := exchange.ApplyInflationAdjustment("plutonium"); !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestCreateRateValidation(t *testing.T) {
	db := newTestDB(t)
	exchange := NewExchangeService(db)

	tests := []struct {
		name string
		rate models.ExchangeRate
	}{
		{"zero rate", models.ExchangeRate{FromSymbol: "a", ToSymbol: "b", Rate: 0, MinAmount: 1, MaxAmount: 10}},
		{"fee out of range", models.ExchangeRate{FromSymbol: "a", ToSymbol: "b", Rate: 1, Fee: 1, MinAmount: 1, MaxAmount: 10}},
		{"inverted bounds", models.ExchangeRate{FromSymbol: "a", ToSymbol: "b", Rate: 1, MinAmount: 10, MaxAmount: 5}},
	}
	for _, tt := range tests {
		if err := exchange.CreateRate(&tt.rate); err == nil {
			t.Errorf("%s: expected validation error", tt.name)
		}
	}
}
