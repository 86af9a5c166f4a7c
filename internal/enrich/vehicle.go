package enrich

import (
	"strings"
	"time"

	"cleanse/pkg/records"
)

// nowYear is a hook for tests; model-year validity depends on the wall clock.
var nowYear = func() int { return time.Now().Year() }

const earliestModelYear = 1950

func init() {
	Register("vehicle_sales",
		[]string{"profit_margin", "margin_pct", "model_year_valid", "vin_valid"},
		VehicleSales)
}

// VehicleSales derives sale-margin and plausibility indicators from a vehicle
// sale record (columns sellingprice, mmr, year, vin):
//
//	profit_margin    = sellingprice - mmr
//	margin_pct       = profit_margin / mmr * 100, nil when mmr <= 0
//	model_year_valid = year within [1950, current year + 1]
//	vin_valid        = 17 chars, alphanumeric, none of I/O/Q
func VehicleSales(r records.Record) map[string]any {
	out := map[string]any{
		"profit_margin":    nil,
		"margin_pct":       nil,
		"model_year_valid": false,
		"vin_valid":        false,
	}

	price, okP := number(r["sellingprice"])
	mmr, okM := number(r["mmr"])
	if okP && okM {
		margin := price - mmr
		out["profit_margin"] = margin
		if mmr > 0 {
			out["margin_pct"] = margin / mmr * 100
		}
	}

	if year, ok := number(r["year"]); ok {
		y := int(year)
		out["model_year_valid"] = y >= earliestModelYear && y <= nowYear()+1
	}

	if vin, ok := r["vin"].(string); ok {
		out["vin_valid"] = ValidVIN(vin)
	}
	return out
}

// ValidVIN reports whether s is a plausible vehicle identification number:
// exactly 17 characters, letters/digits only, excluding I, O and Q.
func ValidVIN(s string) bool {
	if len(s) != 17 {
		return false
	}
	for _, r := range strings.ToUpper(s) {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'A' && r <= 'Z':
			if r == 'I' || r == 'O' || r == 'Q' {
				return false
			}
		default:
			return false
		}
	}
	return true
}
