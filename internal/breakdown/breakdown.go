// Package breakdown converts a lump-sum estimate into a month-keyed
// spending plan.
//
// The generator is a pure function over its inputs. Persisting the result is
// up to the caller.
package breakdown

import (
	"errors"
	"math"
	"time"

	"github.com/ledgerplan/backend/internal/models"
	"github.com/ledgerplan/backend/internal/types"
	"github.com/shopspring/decimal"
)

var ErrUnknownCurveType = errors.New("the curve type is unknown")

// Band weight splits for the shaped curves. The month range is cut into
// three contiguous bands: the first ceil(months*0.3) months, the next months
// up to ceil(months*0.7), and the remainder.
var (
	frontLoadedBands = [3]decimal.Decimal{
		decimal.NewFromFloat(0.6),
		decimal.NewFromFloat(0.3),
		decimal.NewFromFloat(0.1),
	}
	backLoadedBands = [3]decimal.Decimal{
		decimal.NewFromFloat(0.1),
		decimal.NewFromFloat(0.3),
		decimal.NewFromFloat(0.6),
	}
)

// Generate distributes totalAmount over the months between startDate and
// endDate according to the curve type.
//
// Every monthly amount is rounded to two decimals and clamped to the
// remaining undistributed amount; the final month absorbs the rounding
// residue so that the sum of all months equals the input total exactly.
//
// The quantity is distributed with the same weights when totalQuantity is
// set and not zero, and skipped entirely otherwise.
func Generate(totalAmount decimal.Decimal, totalQuantity decimal.NullDecimal, startDate, endDate time.Time, curve models.CurveType) (models.Breakdown, error) {
	if !curve.Valid() {
		return nil, ErrUnknownCurveType
	}

	start := types.MonthOf(startDate)
	months := types.MonthsBetween(start, types.MonthOf(endDate))

	weights := monthWeights(months, curve)

	distributeQuantity := totalQuantity.Valid && !totalQuantity.Decimal.IsZero()

	result := make(models.Breakdown, months)

	remainingAmount := totalAmount
	remainingQuantity := decimal.Zero
	if distributeQuantity {
		remainingQuantity = totalQuantity.Decimal
	}

	for i := 0; i < months; i++ {
		month := start.AddDate(0, i)

		var amount decimal.Decimal
		if i == months-1 {
			// The final month absorbs the rounding residue
			amount = remainingAmount
		} else {
			amount = totalAmount.Mul(weights[i]).Round(2)
			if amount.GreaterThan(remainingAmount) {
				amount = remainingAmount
			}
		}
		remainingAmount = remainingAmount.Sub(amount)

		cell := models.BreakdownMonth{
			Amount: amount,
			Date:   month.Time(),
		}

		if distributeQuantity {
			var quantity decimal.Decimal
			if i == months-1 {
				quantity = remainingQuantity
			} else {
				quantity = totalQuantity.Decimal.Mul(weights[i]).Round(2)
				if quantity.GreaterThan(remainingQuantity) {
					quantity = remainingQuantity
				}
			}
			remainingQuantity = remainingQuantity.Sub(quantity)
			cell.Quantity = &quantity
		}

		result[month.String()] = cell
	}

	return result, nil
}

// monthWeights returns the fraction of the total that each month receives.
func monthWeights(months int, curve models.CurveType) []decimal.Decimal {
	weights := make([]decimal.Decimal, months)

	var bands [3]decimal.Decimal
	switch curve {
	case models.CurveFrontLoaded:
		bands = frontLoadedBands
	case models.CurveBackLoaded:
		bands = backLoadedBands
	default:
		// Linear distribution. Custom falls back to linear, callers are
		// expected to post-edit individual months.
		equal := decimal.NewFromInt(1).Div(decimal.NewFromInt(int64(months)))
		for i := range weights {
			weights[i] = equal
		}
		return weights
	}

	frontEnd := int(math.Ceil(float64(months) * 0.3))
	midEnd := int(math.Ceil(float64(months) * 0.7))

	bandSizes := [3]int{frontEnd, midEnd - frontEnd, months - midEnd}

	i := 0
	for band, size := range bandSizes {
		if size == 0 {
			continue
		}

		monthWeight := bands[band].Div(decimal.NewFromInt(int64(size)))
		for j := 0; j < size; j++ {
			weights[i] = monthWeight
			i++
		}
	}

	return weights
}
