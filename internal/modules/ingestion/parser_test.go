package ingestion

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aquaforge/pondops-backend/internal/platform/apierr"
)

func wantCode(tb testing.TB, err error, code string) {
	tb.Helper()
	var ae *apierr.Error
	if !errors.As(err, &ae) {
		tb.Fatalf("expected api error %q, got %v", code, err)
	}
	if ae.Code != code {
		tb.Fatalf("code=%q want %q", ae.Code, code)
	}
}

func TestParseCSV_SpanishSemicolonPlan(t *testing.T) {
	csvData := "\xef\xbb\xbf" +
		"Plan de crecimiento;;;;;;;;\n" +
		"Finca La Perla / Piscina A1;;;;;;;;\n" +
		"Semana;Fecha;Edad (días);PP (g);Inc (g/sem);Sob (%);Retiro (org/m2);Cosecha;Nota\n" +
		"1;03/03/2025;0;1,0;0;100;;;siembra\n" +
		"2;10/03/2025;7;2,5;1,5;97,5;;;\n" +
		"3;17/03/2025;14;4,2;1,7;95;1,5;Sí;raleo\n" +
		"4;24/03/2025;21;6,0;1,8;92,5;;;\n"

	tl, err := ParseCSV([]byte(csvData))
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if len(tl.Lines) != 4 {
		t.Fatalf("lines=%d want 4", len(tl.Lines))
	}
	if len(tl.Warnings) != 0 {
		t.Fatalf("warnings=%v want none", tl.Warnings)
	}

	first := tl.Lines[0]
	if !first.PlanDate.Equal(time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("first date=%v", first.PlanDate)
	}
	if first.WeightG != 1 || first.SurvivalPct != 100 {
		t.Fatalf("first line=%+v", first)
	}
	if first.Note != "siembra" {
		t.Fatalf("note=%q", first.Note)
	}

	// Day-first dates: row 3 lands on March 17th, not month 17.
	third := tl.Lines[2]
	if !third.PlanDate.Equal(time.Date(2025, 3, 17, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("third date=%v", third.PlanDate)
	}
	if third.WeightG != 4.2 || third.SurvivalPct != 95 {
		t.Fatalf("third line=%+v", third)
	}
	if !third.HarvestFlag {
		t.Fatalf("Sí should flag the harvest row")
	}
	if third.WithdrawalOrgM2 == nil || *third.WithdrawalOrgM2 != 1.5 {
		t.Fatalf("withdrawal=%v want 1.5", third.WithdrawalOrgM2)
	}
	if tl.Lines[1].HarvestFlag {
		t.Fatalf("rows without cosecha or retiro must stay unflagged")
	}

	if tl.FinalSurvivalPct == nil || *tl.FinalSurvivalPct != 92.5 {
		t.Fatalf("final survival=%v want 92.5", tl.FinalSurvivalPct)
	}
}

func TestParseCSV_FractionSurvivalConverted(t *testing.T) {
	csvData := "date,avg weight (g),survival\n" +
		"2025-03-03,1.0,1\n" +
		"2025-03-10,2.5,0.975\n" +
		"2025-03-17,4.0,0.95\n"

	tl, err := ParseCSV([]byte(csvData))
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	want := []float64{100, 97.5, 95}
	for i, ln := range tl.Lines {
		if ln.SurvivalPct != want[i] {
			t.Fatalf("line %d survival=%v want %v", i, ln.SurvivalPct, want[i])
		}
	}
	found := false
	for _, w := range tl.Warnings {
		if strings.Contains(w, "survival_scale=fraction") {
			found = true
		}
	}
	if !found {
		t.Fatalf("scale conversion should be reported, warnings=%v", tl.Warnings)
	}
	if tl.FinalSurvivalPct == nil || *tl.FinalSurvivalPct != 95 {
		t.Fatalf("final survival=%v want 95", tl.FinalSurvivalPct)
	}
}

func TestParseCSV_MissingRequiredColumns(t *testing.T) {
	csvData := "semana,fecha,pp\n1,2025-03-03,1.0\n"
	_, err := ParseCSV([]byte(csvData))
	wantCode(t, err, "missing_required_columns")

	var ae *apierr.Error
	if !errors.As(err, &ae) || ae.Status != 422 {
		t.Fatalf("err=%v want status 422", err)
	}
}

func TestParseCSV_RowTriage(t *testing.T) {
	t.Run("all dates bad", func(t *testing.T) {
		csvData := "fecha,pp,sob\nnot-a-date,1,100\n??,2,95\n"
		_, err := ParseCSV([]byte(csvData))
		wantCode(t, err, "date_parse_error")
	})

	t.Run("all numbers bad", func(t *testing.T) {
		csvData := "fecha,pp,sob\n2025-03-03,abc,100\n2025-03-10,-2,95\n"
		_, err := ParseCSV([]byte(csvData))
		wantCode(t, err, "type_error")
	})

	t.Run("header only", func(t *testing.T) {
		csvData := "fecha,pp,sob\n"
		_, err := ParseCSV([]byte(csvData))
		wantCode(t, err, "empty_series")
	})

	t.Run("bad rows dropped with warnings", func(t *testing.T) {
		csvData := "fecha,pp,sob\n" +
			"2025-03-03,1.0,100\n" +
			"garbage,2.0,98\n" +
			"2025-03-17,4.0,95\n"
		tl, err := ParseCSV([]byte(csvData))
		if err != nil {
			t.Fatalf("ParseCSV: %v", err)
		}
		if len(tl.Lines) != 2 {
			t.Fatalf("lines=%d want 2", len(tl.Lines))
		}
		if len(tl.Warnings) != 1 || !strings.Contains(tl.Warnings[0], "dropped") {
			t.Fatalf("warnings=%v", tl.Warnings)
		}
	})
}

func TestParseGrids_LargestParseableWins(t *testing.T) {
	legend := [][]string{
		{"Leyenda", "Descripción"},
		{"PP", "peso promedio"},
	}
	plan := [][]string{
		{"Fecha", "PP (g)", "Sob"},
		{"03/03/2025", "1,0", "100"},
		{"10/03/2025", "2,5", "97"},
	}

	tl, err := ParseGrids([][][]string{legend, plan})
	if err != nil {
		t.Fatalf("ParseGrids: %v", err)
	}
	if len(tl.Lines) != 2 || tl.Lines[1].WeightG != 2.5 {
		t.Fatalf("lines=%+v", tl.Lines)
	}

	// A big junk grid must not shadow a smaller valid one.
	junk := [][]string{
		{"Resumen", "Total"}, {"a", "b"}, {"c", "d"}, {"e", "f"}, {"g", "h"},
	}
	tl, err = ParseGrids([][][]string{junk, plan})
	if err != nil {
		t.Fatalf("ParseGrids with junk: %v", err)
	}
	if len(tl.Lines) != 2 {
		t.Fatalf("lines=%d want 2", len(tl.Lines))
	}

	_, err = ParseGrids(nil)
	wantCode(t, err, "no_tables_found")

	_, err = ParseGrids([][][]string{legend, junk})
	wantCode(t, err, "missing_required_columns")
}

func TestHeaderRole_Synonyms(t *testing.T) {
	cases := []struct {
		header string
		want   column
	}{
		{"Fecha_Plan", colDate},
		{"week_date", colDate},
		{"Peso Promedio (g)", colWeight},
		{"avg_weight_g", colWeight},
		{"PP", colWeight},
		{"Sobrevivencia (%)", colSurvival},
		{"survival_%", colSurvival},
		{"sob_pct_linea", colSurvival},
		{"sob_final", colNone},
		{"Survival Final (%)", colNone},
		{"is_harvest", colHarvest},
		{"Cosecha", colHarvest},
		{"harvest_density", colWithdrawal},
		{"retiro_org_m2", colWithdrawal},
		{"Raleo (org/m2)", colWithdrawal},
		{"Semana #", colWeek},
		{"Edad (días)", colAge},
		{"Inc (g/sem)", colIncrement},
		{"Comentario", colNote},
		{"densidad", colNone},
		{"", colNone},
	}
	for _, tc := range cases {
		if got := headerRole(tc.header); got != tc.want {
			t.Fatalf("headerRole(%q)=%v want %v", tc.header, got, tc.want)
		}
	}
}

func TestParseDateFormats(t *testing.T) {
	ok := []struct {
		in   string
		want time.Time
	}{
		{"2026-01-15", time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)},
		{"2026-1-5", time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)},
		{"15/01/2026", time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)},
		{"5/1/2026", time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)},
		{"15-1-2026", time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)},
		{"2026/1/5", time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)},
		{"15 Jan 2026", time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)},
		{"Jan 15, 2026", time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range ok {
		got, err := parseDate(tc.in)
		if err != nil {
			t.Fatalf("parseDate(%q): %v", tc.in, err)
		}
		if !got.Equal(tc.want) {
			t.Fatalf("parseDate(%q)=%v want %v", tc.in, got, tc.want)
		}
	}

	for _, in := range []string{"", "nope", "15.01.2026", "2026-13-40"} {
		if _, err := parseDate(in); err == nil {
			t.Fatalf("parseDate(%q) should fail", in)
		}
	}
}

func TestParseNumberFormats(t *testing.T) {
	ok := []struct {
		in   string
		want float64
	}{
		{"7", 7},
		{"12.5", 12.5},
		{"95,5", 95.5},
		{"85%", 85},
		{"1.234,56", 1234.56},
		{"1,234.56", 1234.56},
		{"1 250,5", 1250.5},
	}
	for _, tc := range ok {
		got, err := parseNumber(tc.in)
		if err != nil {
			t.Fatalf("parseNumber(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("parseNumber(%q)=%v want %v", tc.in, got, tc.want)
		}
	}

	for _, in := range []string{"", "abc", "1,2,3"} {
		if _, err := parseNumber(in); err == nil {
			t.Fatalf("parseNumber(%q) should fail", in)
		}
	}
}
