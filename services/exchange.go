package services

import (
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"player-progression-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// inflationWindow is the minimum spacing between supply adjustments of one
// currency.
const inflationWindow = 24 * time.Hour

// ExchangeService converts balances along the directed rate graph and keeps
// the per-currency supply bookkeeping.
type ExchangeService struct {
	DB  *gorm.DB
	Now func() time.Time
}

func NewExchangeService(db *gorm.DB) *ExchangeService {
	return &ExchangeService{DB: db, Now: time.Now}
}

// GetRate looks up the direct edge from one symbol to another. Absence means
// the conversion is not offered; there is no multi-hop pathing.
func (s *ExchangeService) GetRate(from, to string) (*models.ExchangeRate, error) {
	var rate models.ExchangeRate
	err := s.DB.Where("from_symbol = ? AND to_symbol = ?", from, to).First(&rate).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: exchange pair %s->%s", ErrNotFound, from, to)
	}
	if err != nil {
		return nil, err
	}
	return &rate, nil
}

// Exchange debits the source currency and credits the target net of fee as one
// atomic write on the user's progression record. Preconditions are checked in
// order — edge exists, amount within the pair bounds, balance covers the
// amount — and the first failure returns false with nothing mutated.
func (s *ExchangeService) Exchange(externalUserID, from, to string, amount int64) (bool, error) {
	if amount <= 0 {
		return false, fmt.Errorf("%w: exchange amount %d", ErrInvalidAmount, amount)
	}

	rate, err := s.GetRate(from, to)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if amount < rate.MinAmount || amount > rate.MaxAmount {
		return false, nil
	}

	var credit int64
	_, err = mutateProgression(s.DB, externalUserID, func(prog *models.UserProgression) error {
		if prog.Balances[from] < amount {
			return errNoMutation
		}
		gross := float64(amount) * rate.Rate
		fee := gross * rate.Fee
		credit = int64(math.Round(gross - fee))
		prog.Balances[from] -= amount
		prog.Balances[to] += credit
		prog.Stats["exchanges_completed"]++
		return nil
	})
	if errors.Is(err, errNoMutation) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	// Supply bookkeeping after the balance write committed.
	s.adjustSupply(from, -amount)
	s.adjustSupply(to, credit)
	return true, nil
}

// adjustSupply applies a relative delta to a currency's aggregate supply. The
// version bump makes a concurrent inflation CAS retry instead of overwriting
// the delta. Failures are logged, not propagated; the supply counter is
// advisory and never rolls back a user's balance write.
func (s *ExchangeService) adjustSupply(symbol string, delta int64) {
	if err := s.DB.Model(&models.CurrencyDefinition{}).
		Where("symbol = ?", symbol).
		UpdateColumns(map[string]interface{}{
			"current_supply": gorm.Expr("current_supply + ?", delta),
			"version":        gorm.Expr("version + 1"),
		}).Error; err != nil {
		log.Printf("⚠️ Failed to adjust supply for currency %s by %d: %v", symbol, delta, err)
	}
}

// ApplyInflationAdjustment rebases the aggregate supply counter of one
// currency, at most once per rolling 24h. It touches no user balances.
// Returns the adjustment applied (0 when inside the window).
func (s *ExchangeService) ApplyInflationAdjustment(symbol string) (int64, error) {
	for attempt := 0; attempt < casRetries; attempt++ {
		var def models.CurrencyDefinition
		if err := s.DB.Where("symbol = ?", symbol).First(&def).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return 0, fmt.Errorf("%w: currency %s", ErrNotFound, symbol)
			}
			return 0, err
		}

		now := s.Now()
		if def.LastAdjustedAt != nil && now.Sub(*def.LastAdjustedAt) < inflationWindow {
			return 0, nil
		}

		adjustment := int64(math.Round(float64(def.CurrentSupply) * def.InflationRate / 365))
		res := s.DB.Model(&models.CurrencyDefinition{}).
			Where("id = ? AND version = ?", def.ID, def.Version).
			UpdateColumns(map[string]interface{}{
				"current_supply":   def.CurrentSupply + adjustment,
				"last_adjusted_at": now,
				"version":          def.Version + 1,
			})
		if res.Error != nil {
			return 0, res.Error
		}
		if res.RowsAffected == 1 {
			return adjustment, nil
		}
	}
	return 0, ErrConflict
}

// SweepInflation applies the adjustment across the whole catalog; each
// currency enforces its own window, so running the sweep often is harmless.
func (s *ExchangeService) SweepInflation() error {
	currencies, err := s.ListCurrencies()
	if err != nil {
		return err
	}
	for _, c := range currencies {
		if _, err := s.ApplyInflationAdjustment(c.Symbol); err != nil {
			return fmt.Errorf("inflation sweep %s: %w", c.Symbol, err)
		}
	}
	return nil
}

func (s *ExchangeService) ListCurrencies() ([]models.CurrencyDefinition, error) {
	var currencies []models.CurrencyDefinition
	err := s.DB.Order("symbol ASC").Find(&currencies).Error
	return currencies, err
}

func (s *ExchangeService) ListRates() ([]models.ExchangeRate, error) {
	var rates []models.ExchangeRate
	err := s.DB.Order("from_symbol ASC, to_symbol ASC").Find(&rates).Error
	return rates, err
}

// CreateRate publishes a directed edge after validating its bounds.
func (s *ExchangeService) CreateRate(rate *models.ExchangeRate) error {
	if rate.Rate <= 0 {
		return fmt.Errorf("rate must be positive")
	}
	if rate.Fee < 0 || rate.Fee >= 1 {
		return fmt.Errorf("fee must be in [0,1)")
	}
	if rate.MinAmount < 1 || rate.MaxAmount < rate.MinAmount {
		return fmt.Errorf("invalid amount bounds [%d, %d]", rate.MinAmount, rate.MaxAmount)
	}
	if rate.ID == "" {
		rate.ID = uuid.NewString()
	}
	return s.DB.Create(rate).Error
}
