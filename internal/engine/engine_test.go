package engine

import (
	"context"
	"reflect"
	"strings"
	"testing"
	"time"

	"cleanse/internal/config"
	"cleanse/internal/rules"
	"cleanse/pkg/records"
)

const testRules = `
default:
  rules:
    - field: "*"
      op: normalize
      params: { lower: true }
  dedup_key: ["*"]
  fill_value: "UNKNOWN"
  sensitive_patterns: [password, carte, iban]
tables:
  clients:
    aliases: [finances]
    rules:
      - field: revenu_annuel
        op: coerce
        params: { type: float, policy: "null" }
      - field: depenses_annuelles
        op: coerce
        params: { type: float, policy: "null" }
      - field: numero_carte
        op: mask
        params: { kind: fixed, suffix: 4 }
    dedup_key: [email]
    required: [email]
    checks:
      - field: email
        kind: email
    enrichment: financial
  vehicules:
    rules:
      - field: sellingprice
        op: coerce
        params: { type: float, policy: "null" }
      - field: mmr
        op: coerce
        params: { type: float, policy: "null" }
      - field: year
        op: coerce
        params: { type: int, policy: "null" }
    dedup_key: [vin, saledate]
    enrichment: vehicle_sales
quality:
  weights: { invalid: 40, duplicate: 30, nulls: 30 }
`

func testEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	doc, err := config.Parse([]byte(testRules))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	reg, err := rules.New(doc)
	if err != nil {
		t.Fatalf("rules.New() error = %v", err)
	}
	return New(reg, opts...)
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

/*
TestRunClients covers the specific path end to end: coercion, masking,
enrichment, required-field validation and the count identity
valid + invalid == total.
*/
func TestRunClients(t *testing.T) {
	at := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	e := testEngine(t, WithClock(fixedClock(at)))

	in := records.Table{
		Name:    "clients",
		Columns: []string{"email", "revenu_annuel", "depenses_annuelles", "numero_carte"},
		Rows: []records.Record{
			{"email": "a@x.fr", "revenu_annuel": "50000", "depenses_annuelles": "30000", "numero_carte": "4532015112830366"},
			{"email": nil, "revenu_annuel": "40000", "depenses_annuelles": "10000", "numero_carte": "4532015112830367"},
			{"email": "b@x.fr", "revenu_annuel": "30000", "depenses_annuelles": "36000", "numero_carte": "4532015112830368"},
		},
	}

	out, rep, err := e.Run(context.Background(), in)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if rep.TransformationType != "specific" {
		t.Errorf("TransformationType = %q, want specific", rep.TransformationType)
	}
	if rep.TotalRecords != 3 || rep.InvalidRecords != 1 || rep.ValidRecords != 2 {
		t.Errorf("counts = total=%d valid=%d invalid=%d, want 3/2/1",
			rep.TotalRecords, rep.ValidRecords, rep.InvalidRecords)
	}
	if rep.ValidRecords+rep.InvalidRecords != rep.TotalRecords {
		t.Errorf("valid+invalid != total: %+v", rep)
	}
	if rep.ExecutionTimestamp != at {
		t.Errorf("ExecutionTimestamp = %v, want %v", rep.ExecutionTimestamp, at)
	}

	if len(out.Rows) != 2 {
		t.Fatalf("kept %d rows, want 2", len(out.Rows))
	}
	first := out.Rows[0]
	if first["revenu_annuel"] != 50000.0 {
		t.Errorf("revenu_annuel = %#v, want coerced float64", first["revenu_annuel"])
	}
	if first["numero_carte"] != "************0366" {
		t.Errorf("numero_carte = %v, want masked", first["numero_carte"])
	}
	if first["financial_status"] != "healthy" || first["savings_rate"] != 0.4 || first["net_balance"] != 20000.0 {
		t.Errorf("enrichment = status=%v rate=%v net=%v", first["financial_status"], first["savings_rate"], first["net_balance"])
	}
	if second := out.Rows[1]; second["financial_status"] != "at_risk" {
		t.Errorf("second row status = %v, want at_risk", second["financial_status"])
	}

	for _, col := range []string{"savings_rate", "net_balance", "financial_status"} {
		found := false
		for _, c := range out.Columns {
			if c == col {
				found = true
			}
		}
		if !found {
			t.Errorf("column %q missing from output layout %v", col, out.Columns)
		}
	}

	// Input untouched.
	if in.Rows[0]["revenu_annuel"] != "50000" || in.Rows[0]["numero_carte"] != "4532015112830366" {
		t.Errorf("input table was mutated: %#v", in.Rows[0])
	}
}

/*
TestRunUnknownTable covers the default path: column-name canonicalization,
whole-row normalization and fill, no enrichment, and a perfect score when
nothing is defective.
*/
func TestRunUnknownTable(t *testing.T) {
	e := testEngine(t)
	in := records.Table{
		Name:    "mystery_extract",
		Columns: []string{"Prénom", "Ville De Naissance"},
		Rows: []records.Record{
			{"Prénom": "  Jean ", "Ville De Naissance": "Lyon"},
			{"Prénom": "Anne", "Ville De Naissance": nil},
		},
	}

	out, rep, err := e.Run(context.Background(), in)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if rep.TransformationType != "default" {
		t.Errorf("TransformationType = %q, want default", rep.TransformationType)
	}
	if !reflect.DeepEqual(out.Columns, []string{"prenom", "ville_de_naissance"}) {
		t.Errorf("columns = %v, want canonicalized", out.Columns)
	}
	if out.Rows[0]["prenom"] != "jean" {
		t.Errorf("prenom = %#v, want normalized lowercase", out.Rows[0]["prenom"])
	}
	if out.Rows[1]["ville_de_naissance"] != "UNKNOWN" {
		t.Errorf("nil cell = %#v, want fill value", out.Rows[1]["ville_de_naissance"])
	}
	for _, r := range out.Rows {
		if _, has := r["financial_status"]; has {
			t.Error("default path must not enrich")
		}
	}
	if rep.TotalRecords != 2 || rep.InvalidRecords != 0 || rep.DuplicateRecords != 0 {
		t.Errorf("counts = %+v", rep)
	}
	if rep.QualityScore != 100 {
		t.Errorf("QualityScore = %v, want exactly 100 with no defects", rep.QualityScore)
	}
}

/*
TestRunDefaultWholeRowDedup covers exact-duplicate removal on the default
path: the wildcard dedup key spans every column of the table at hand, so two
identical rows collapse to the first occurrence.
*/
func TestRunDefaultWholeRowDedup(t *testing.T) {
	e := testEngine(t)
	in := records.Table{
		Name:    "mystery_extract",
		Columns: []string{"Nom", "Ville"},
		Rows: []records.Record{
			{"Nom": "Jean", "Ville": "Lyon"},
			{"Nom": "Jean", "Ville": "Lyon"},
			{"Nom": "Anne", "Ville": "Paris"},
		},
	}

	out, rep, err := e.Run(context.Background(), in)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if rep.DuplicateRecords != 1 {
		t.Errorf("DuplicateRecords = %d, want 1", rep.DuplicateRecords)
	}
	if rep.InvalidRecords != 0 || rep.ValidRecords != 3 {
		t.Errorf("counts = %+v", rep)
	}
	if len(out.Rows) != 2 {
		t.Fatalf("kept %d rows, want 2", len(out.Rows))
	}
	if out.Rows[0]["nom"] != "jean" || out.Rows[1]["nom"] != "anne" {
		t.Errorf("kept rows = %#v", out.Rows)
	}
	if rep.QualityScore >= 100 {
		t.Errorf("QualityScore = %v, want below 100 with a duplicate", rep.QualityScore)
	}
}

/*
TestRunDefaultAutoDateCoercion covers the name-heuristic date conversion on
the default path: columns whose name mentions a date are coerced with the
null policy, and the fill value never lands in them.
*/
func TestRunDefaultAutoDateCoercion(t *testing.T) {
	e := testEngine(t)
	in := records.Table{
		Name:    "mystery_extract",
		Columns: []string{"site", "Date Inscription"},
		Rows: []records.Record{
			{"site": "Lyon", "Date Inscription": "2024-03-15"},
			{"site": nil, "Date Inscription": "pas une date"},
		},
	}

	out, _, err := e.Run(context.Background(), in)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !reflect.DeepEqual(out.Columns, []string{"site", "date_inscription"}) {
		t.Fatalf("columns = %v", out.Columns)
	}
	want := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	if out.Rows[0]["date_inscription"] != want {
		t.Errorf("date_inscription = %#v, want %v", out.Rows[0]["date_inscription"], want)
	}
	// Unparseable dates become nil and stay nil; the fill value is for text
	// columns only.
	if out.Rows[1]["date_inscription"] != nil {
		t.Errorf("unparseable date = %#v, want nil", out.Rows[1]["date_inscription"])
	}
	if out.Rows[1]["site"] != "UNKNOWN" {
		t.Errorf("site = %#v, want fill value", out.Rows[1]["site"])
	}
}

func TestRunMapsCountryCodes(t *testing.T) {
	doc, err := config.Parse([]byte(`
default:
  rules:
    - field: "*"
      op: normalize
tables:
  clients:
    rules:
      - field: pays
        op: map
        params:
          into: pays_code
          values: { France: FR, Allemagne: DE }
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	reg, err := rules.New(doc)
	if err != nil {
		t.Fatalf("rules.New() error = %v", err)
	}

	in := records.Table{
		Name:    "clients",
		Columns: []string{"email", "pays"},
		Rows: []records.Record{
			{"email": "a@x.fr", "pays": "France"},
			{"email": "b@x.fr", "pays": "Belgique"},
		},
	}
	out, _, err := New(reg).Run(context.Background(), in)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !reflect.DeepEqual(out.Columns, []string{"email", "pays", "pays_code"}) {
		t.Fatalf("columns = %v", out.Columns)
	}
	if out.Rows[0]["pays_code"] != "FR" {
		t.Errorf("pays_code = %#v, want FR", out.Rows[0]["pays_code"])
	}
	if out.Rows[0]["pays"] != "France" {
		t.Errorf("source column touched: %#v", out.Rows[0]["pays"])
	}
	if out.Rows[1]["pays_code"] != nil {
		t.Errorf("unmapped pays_code = %#v, want nil", out.Rows[1]["pays_code"])
	}
}

func TestRunDuplicateVINKeepsFirst(t *testing.T) {
	e := testEngine(t)
	in := records.Table{
		Name:    "vehicules",
		Columns: []string{"vin", "saledate", "sellingprice", "mmr", "year"},
		Rows: []records.Record{
			{"vin": "5XYKT3A17CG244283", "saledate": "2024-01-05", "sellingprice": "21500", "mmr": "20000", "year": "2015"},
			{"vin": "5XYKT3A17CG244283", "saledate": "2024-01-05", "sellingprice": "19000", "mmr": "20000", "year": "2015"},
			{"vin": "1FTFW1ET5DFC10312", "saledate": "2024-01-06", "sellingprice": "30000", "mmr": "28000", "year": "2013"},
		},
	}

	out, rep, err := e.Run(context.Background(), in)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if rep.DuplicateRecords != 1 {
		t.Errorf("DuplicateRecords = %d, want 1", rep.DuplicateRecords)
	}
	if len(out.Rows) != 2 {
		t.Fatalf("kept %d rows, want 2", len(out.Rows))
	}
	// First occurrence survives.
	if out.Rows[0]["sellingprice"] != 21500.0 {
		t.Errorf("surviving duplicate = %#v, want the first-seen row", out.Rows[0])
	}
	if out.Rows[0]["vin_valid"] != true || out.Rows[0]["profit_margin"] != 1500.0 {
		t.Errorf("enrichment = %#v", out.Rows[0])
	}
}

func TestRunDeterministic(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	in := records.Table{
		Name:    "clients",
		Columns: []string{"email", "revenu_annuel", "depenses_annuelles", "numero_carte"},
		Rows: []records.Record{
			{"email": "a@x.fr", "revenu_annuel": "50000", "depenses_annuelles": "30000", "numero_carte": "4532015112830366"},
			{"email": "a@x.fr", "revenu_annuel": "50000", "depenses_annuelles": "30000", "numero_carte": "4532015112830366"},
			{"email": "b@x.fr", "revenu_annuel": "1000", "depenses_annuelles": "2000", "numero_carte": "4532015112830368"},
		},
	}

	e1 := testEngine(t, WithClock(fixedClock(at)))
	out1, rep1, err := e1.Run(context.Background(), in)
	if err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	e2 := testEngine(t, WithClock(fixedClock(at.Add(time.Hour))))
	out2, rep2, err := e2.Run(context.Background(), in)
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}

	if !reflect.DeepEqual(out1, out2) {
		t.Errorf("outputs differ across runs:\n%#v\n%#v", out1, out2)
	}
	rep2.ExecutionTimestamp = rep1.ExecutionTimestamp
	if !reflect.DeepEqual(rep1, rep2) {
		t.Errorf("reports differ beyond timestamp:\n%+v\n%+v", rep1, rep2)
	}
}

func TestRunStrictCoercionFails(t *testing.T) {
	doc, err := config.Parse([]byte(`
default:
  rules:
    - field: amount
      op: coerce
      params: { type: float, policy: strict }
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	reg, err := rules.New(doc)
	if err != nil {
		t.Fatalf("rules.New() error = %v", err)
	}
	e := New(reg)

	in := records.Table{
		Name:    "anything",
		Columns: []string{"amount"},
		Rows:    []records.Record{{"amount": "not a number"}},
	}
	out, rep, err := e.Run(context.Background(), in)
	if err == nil {
		t.Fatal("Run() succeeded under strict coercion failure")
	}
	if !strings.Contains(err.Error(), "strict") {
		t.Errorf("error = %v", err)
	}
	if len(out.Rows) != 0 || rep.TotalRecords != 0 {
		t.Errorf("failed run leaked output: table=%+v report=%+v", out, rep)
	}
}

/*
TestCanonicalizeColumnsCollision covers two source columns folding onto the
same canonical name: both survive, the later one under a numeric suffix, and
neither column's values overwrite the other's.
*/
func TestCanonicalizeColumnsCollision(t *testing.T) {
	tbl := records.Table{
		Columns: []string{"Prénom", "prenom", "Ville"},
		Rows: []records.Record{
			{"Prénom": "Jean", "prenom": "jean-export", "Ville": "Lyon"},
		},
	}
	canonicalizeColumns(&tbl)

	if !reflect.DeepEqual(tbl.Columns, []string{"prenom", "prenom_2", "ville"}) {
		t.Fatalf("columns = %v", tbl.Columns)
	}
	r := tbl.Rows[0]
	if r["prenom"] != "Jean" || r["prenom_2"] != "jean-export" || r["ville"] != "Lyon" {
		t.Errorf("row = %#v", r)
	}
	if _, stale := r["Prénom"]; stale {
		t.Error("stale key left behind")
	}
}

func TestAutoDateColumns(t *testing.T) {
	got := autoDateColumns([]string{"nom", "date_inscription", "last_update_time", "saledate", "timestamp", "datum"})
	want := []string{"date_inscription", "last_update_time", "saledate", "timestamp"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("autoDateColumns() = %v, want %v", got, want)
	}
}

func TestSensitiveColumns(t *testing.T) {
	cols := []string{"email", "Numero_Carte", "mot_de_passe", "ville"}
	got := sensitiveColumns(cols, []string{"carte", "passe", "iban"})
	want := []string{"Numero_Carte", "mot_de_passe"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("sensitiveColumns() = %v, want %v", got, want)
	}
	if out := sensitiveColumns(cols, nil); len(out) != 0 {
		t.Errorf("sensitiveColumns(no patterns) = %v, want none", out)
	}
}

/*
TestRunParallelMatchesSerial verifies the sharded transform preserves row
order and counts against the single-threaded reference.
*/
func TestRunParallelMatchesSerial(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]records.Record, 0, 200)
	for i := 0; i < 200; i++ {
		r := records.Record{
			"email":              "u" + string(rune('a'+i%26)) + "@x.fr",
			"revenu_annuel":      "50000",
			"depenses_annuelles": "30000",
			"numero_carte":       "4532015112830366",
		}
		if i%7 == 0 {
			r["email"] = nil
		}
		rows = append(rows, r)
	}
	in := records.Table{
		Name:    "clients",
		Columns: []string{"email", "revenu_annuel", "depenses_annuelles", "numero_carte"},
		Rows:    rows,
	}

	serial := testEngine(t, WithClock(fixedClock(at)), WithWorkers(1))
	parallel := testEngine(t, WithClock(fixedClock(at)), WithWorkers(8))

	outS, repS, err := serial.Run(context.Background(), in)
	if err != nil {
		t.Fatalf("serial Run() error = %v", err)
	}
	outP, repP, err := parallel.Run(context.Background(), in)
	if err != nil {
		t.Fatalf("parallel Run() error = %v", err)
	}
	if !reflect.DeepEqual(outS, outP) {
		t.Error("parallel output differs from serial")
	}
	if !reflect.DeepEqual(repS, repP) {
		t.Errorf("parallel report differs from serial:\n%+v\n%+v", repS, repP)
	}
}
