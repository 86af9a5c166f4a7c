package enrich

import (
	"reflect"
	"testing"

	"cleanse/pkg/records"
)

func TestFinancial(t *testing.T) {
	tests := []struct {
		name string
		in   records.Record
		want map[string]any
	}{
		{
			name: "healthy",
			in:   records.Record{"revenu_annuel": 50000.0, "depenses_annuelles": 30000.0},
			want: map[string]any{
				"savings_rate":     0.4,
				"net_balance":      20000.0,
				"financial_status": "healthy",
			},
		},
		{
			name: "stable",
			in:   records.Record{"revenu_annuel": 40000.0, "depenses_annuelles": 38000.0},
			want: map[string]any{
				"savings_rate":     0.05,
				"net_balance":      2000.0,
				"financial_status": "stable",
			},
		},
		{
			name: "at_risk",
			in:   records.Record{"revenu_annuel": 30000.0, "depenses_annuelles": 36000.0},
			want: map[string]any{
				"savings_rate":     -0.2,
				"net_balance":      -6000.0,
				"financial_status": "at_risk",
			},
		},
		{
			name: "zero_income_no_division",
			in:   records.Record{"revenu_annuel": 0.0, "depenses_annuelles": 1000.0},
			want: map[string]any{
				"savings_rate":     nil,
				"net_balance":      -1000.0,
				"financial_status": "unknown",
			},
		},
		{
			name: "negative_income_no_division",
			in:   records.Record{"revenu_annuel": -5.0, "depenses_annuelles": 0.0},
			want: map[string]any{
				"savings_rate":     nil,
				"net_balance":      -5.0,
				"financial_status": "unknown",
			},
		},
		{
			name: "missing_inputs",
			in:   records.Record{"email": "a@b.fr"},
			want: map[string]any{
				"savings_rate":     nil,
				"net_balance":      nil,
				"financial_status": "unknown",
			},
		},
		{
			name: "int64_inputs_accepted",
			in:   records.Record{"revenu_annuel": int64(10000), "depenses_annuelles": int64(5000)},
			want: map[string]any{
				"savings_rate":     0.5,
				"net_balance":      5000.0,
				"financial_status": "healthy",
			},
		},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := Financial(tc.in)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("Financial() = %#v, want %#v", got, tc.want)
			}
		})
	}
}

func TestRegistry(t *testing.T) {
	for _, id := range []string{"financial", "vehicle_sales"} {
		if _, ok := Lookup(id); !ok {
			t.Errorf("Lookup(%q) not registered", id)
		}
		if len(Columns(id)) == 0 {
			t.Errorf("Columns(%q) empty", id)
		}
	}
	if _, ok := Lookup("nope"); ok {
		t.Error("Lookup(nope) found a calculator")
	}
	ids := IDs()
	if len(ids) < 2 {
		t.Errorf("IDs() = %v", ids)
	}
}
