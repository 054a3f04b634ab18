package postgres

import (
	"time"

	"github.com/shopspring/decimal"
)

// Column widths of the legacy schema. Values are truncated silently on
// the way in; the columns are non-nullable so blank strings become a
// single space and absent numbers become zero.
const (
	docNumberWidth     = 20
	docTypeWidth       = 4
	companyCodeWidth   = 10
	currencyWidth      = 3
	partyNameWidth     = 60
	lineIDWidth        = 10
	descriptionWidth   = 120
	taxCategoryWidth   = 4
	lifecycleMsgWidth  = 120
	findingSourceWidth = 40
	findingSevWidth    = 10
	findingRuleWidth   = 40
	findingMsgWidth    = 250
)

// dayEpoch is day zero of the legacy store's date encoding: dates live in
// INTEGER columns as a day-count offset from 1899-12-30.
var dayEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// dayNumber converts a calendar date to the legacy day-count encoding.
// The zero time maps to 0, matching the zero-for-absent numeric rule.
func dayNumber(t time.Time) int {
	if t.IsZero() {
		return 0
	}
	return int(t.UTC().Truncate(24*time.Hour).Sub(dayEpoch).Hours() / 24)
}

// scaleAmount pre-scales an amount by the configured factor and rounds
// half-up to two decimal places. Re-applying the rounding to its own
// output is a no-op.
func scaleAmount(d decimal.Decimal, factor int64) decimal.Decimal {
	return d.Mul(decimal.NewFromInt(factor)).Round(2)
}

func truncate(s string, width int) string {
	if len(s) > width {
		return s[:width]
	}
	return s
}

// orBlank substitutes a single blank for empty strings so the value fits
// the non-nullable legacy columns, truncating to the column width.
func orBlank(s string, width int) string {
	if s == "" {
		return " "
	}
	return truncate(s, width)
}
