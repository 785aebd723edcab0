package portfolio

import (
	"fmt"
	"strings"

	"github.com/wonny/hedgefund/internal/contracts"
)

// ValidateUpdate checks the holdings a client wants to store.
// ⭐ SSOT: 포트폴리오 제약조건은 여기서만
func ValidateUpdate(u contracts.PortfolioUpdate) error {
	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		return fmt.Errorf("%w: name must not be empty", contracts.ErrInvalid)
	}
	if u.Positions != nil {
		if err := validatePositions(*u.Positions); err != nil {
			return err
		}
	}
	if u.RealizedGains != nil {
		if err := validateRealized(*u.RealizedGains); err != nil {
			return err
		}
	}
	return nil
}

func validatePositions(positions []contracts.Position) error {
	seen := make(map[string]bool, len(positions))
	for _, pos := range positions {
		if err := checkTicker(pos.Ticker, seen); err != nil {
			return err
		}
		// 수량과 단가는 음수 불가 (숏은 Short 필드로 표현)
		if pos.Long.IsNegative() || pos.Short.IsNegative() {
			return fmt.Errorf("%w: %s quantities must not be negative", contracts.ErrInvalid, pos.Ticker)
		}
		if pos.LongCostBasis.IsNegative() || pos.ShortCostBasis.IsNegative() || pos.ShortMarginUsed.IsNegative() {
			return fmt.Errorf("%w: %s cost basis must not be negative", contracts.ErrInvalid, pos.Ticker)
		}
	}
	return nil
}

func validateRealized(gains []contracts.RealizedGain) error {
	seen := make(map[string]bool, len(gains))
	for _, g := range gains {
		if err := checkTicker(g.Ticker, seen); err != nil {
			return err
		}
	}
	return nil
}

func checkTicker(ticker string, seen map[string]bool) error {
	if strings.TrimSpace(ticker) == "" {
		return fmt.Errorf("%w: ticker is required", contracts.ErrInvalid)
	}
	if seen[ticker] {
		return fmt.Errorf("%w: duplicate ticker %s", contracts.ErrInvalid, ticker)
	}
	seen[ticker] = true
	return nil
}
