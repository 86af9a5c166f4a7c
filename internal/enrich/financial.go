package enrich

import "cleanse/pkg/records"

// Financial status bands on the savings rate.
const (
	statusHealthy = "healthy"
	statusStable  = "stable"
	statusAtRisk  = "at_risk"
	statusUnknown = "unknown"
)

func init() {
	Register("financial", []string{"savings_rate", "net_balance", "financial_status"}, Financial)
}

// Financial derives household financial indicators from annual income and
// expenses (columns revenu_annuel / depenses_annuelles):
//
//	savings_rate     = (income - expenses) / income, nil when income <= 0
//	net_balance      = income - expenses
//	financial_status = "healthy" (rate >= 0.2), "stable" (>= 0), "at_risk"
//	                   (< 0); "unknown" when the rate is undefined
func Financial(r records.Record) map[string]any {
	income, okI := number(r["revenu_annuel"])
	expenses, okE := number(r["depenses_annuelles"])

	out := map[string]any{
		"savings_rate":     nil,
		"net_balance":      nil,
		"financial_status": statusUnknown,
	}
	if !okI || !okE {
		return out
	}
	out["net_balance"] = income - expenses
	if income <= 0 {
		return out
	}
	rate := (income - expenses) / income
	out["savings_rate"] = rate
	switch {
	case rate >= 0.2:
		out["financial_status"] = statusHealthy
	case rate >= 0:
		out["financial_status"] = statusStable
	default:
		out["financial_status"] = statusAtRisk
	}
	return out
}
