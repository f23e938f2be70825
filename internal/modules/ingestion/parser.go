package ingestion

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	types "github.com/aquaforge/pondops-backend/internal/domain"
	"github.com/aquaforge/pondops-backend/internal/platform/apierr"
)

// maxTimelineRows caps parsed plans; anything longer is a malformed
// export, not a projection.
const maxTimelineRows = 1000

// ParsedTimeline is the canonical output shared by the CSV and PDF
// paths. Week indexes, ages and increments are not derived here; the
// projection module renumbers the sorted rows itself.
type ParsedTimeline struct {
	Lines            []types.ProjectionLine
	Warnings         []string
	FinalSurvivalPct *float64
}

type column int

const (
	colNone column = iota
	colWeek
	colDate
	colAge
	colWeight
	colIncrement
	colSurvival
	colHarvest
	colWithdrawal
	colNote
)

// ParseCSV reads an uploaded plan sheet. Spanish exports commonly use
// semicolon separators and comma decimals; both are accepted.
func ParseCSV(data []byte) (*ParsedTimeline, error) {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = sniffDelimiter(data)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	rows, err := r.ReadAll()
	if err != nil {
		return nil, apierr.Validation("invalid_csv", err)
	}
	return parseTable(rows)
}

// ParseGrids turns Document AI table grids into a timeline. Projection
// PDFs often carry several tables (legends, totals); the largest grid
// that parses wins.
func ParseGrids(tables [][][]string) (*ParsedTimeline, error) {
	if len(tables) == 0 {
		return nil, apierr.Validation("no_tables_found", nil)
	}

	order := make([]int, len(tables))
	for i := range order {
		order[i] = i
	}
	for i := 1; i < len(order); i++ {
		for j := i; j > 0 && len(tables[order[j]]) > len(tables[order[j-1]]); j-- {
			order[j], order[j-1] = order[j-1], order[j]
		}
	}

	var firstErr error
	for _, idx := range order {
		tl, err := parseTable(tables[idx])
		if err == nil {
			return tl, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}

func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	if bytes.Count(line, []byte{';'}) > bytes.Count(line, []byte{','}) {
		return ';'
	}
	return ','
}

func parseTable(rows [][]string) (*ParsedTimeline, error) {
	headerIdx, colmap := findHeader(rows)
	if headerIdx < 0 {
		return nil, apierr.Validation("missing_required_columns",
			fmt.Errorf("no header row with fecha/pp/sob columns"))
	}
	at := map[column]int{}
	for pos, role := range colmap {
		at[role] = pos
	}

	out := &ParsedTimeline{}
	dateErrs := 0
	numErrs := 0

	for i := headerIdx + 1; i < len(rows); i++ {
		row := rows[i]
		if rowEmpty(row) {
			continue
		}

		cell := func(c column) string {
			pos, ok := at[c]
			if !ok || pos >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[pos])
		}

		date, err := parseDate(cell(colDate))
		if err != nil {
			dateErrs++
			out.Warnings = append(out.Warnings, fmt.Sprintf("row %d dropped: %v", i+1, err))
			continue
		}
		weight, err := parseNumber(cell(colWeight))
		if err != nil || weight < 0 {
			numErrs++
			out.Warnings = append(out.Warnings, fmt.Sprintf("row %d dropped: invalid weight %q", i+1, cell(colWeight)))
			continue
		}
		surv, err := parseNumber(cell(colSurvival))
		if err != nil || surv < 0 {
			numErrs++
			out.Warnings = append(out.Warnings, fmt.Sprintf("row %d dropped: invalid survival %q", i+1, cell(colSurvival)))
			continue
		}

		ln := types.ProjectionLine{
			PlanDate:    date,
			WeightG:     weight,
			SurvivalPct: surv,
			HarvestFlag: parseFlag(cell(colHarvest)),
			Note:        cell(colNote),
		}
		if raw := cell(colWithdrawal); raw != "" {
			if w, err := parseNumber(raw); err == nil && w > 0 {
				ln.WithdrawalOrgM2 = &w
				ln.HarvestFlag = true
			}
		}
		out.Lines = append(out.Lines, ln)
	}

	if len(out.Lines) == 0 {
		switch {
		case dateErrs > 0 && numErrs == 0:
			return nil, apierr.Validation("date_parse_error", fmt.Errorf("%d rows with unparseable dates", dateErrs))
		case numErrs > 0:
			return nil, apierr.Validation("type_error", fmt.Errorf("%d rows with non-numeric values", numErrs))
		default:
			return nil, apierr.Validation("empty_series", nil)
		}
	}
	if len(out.Lines) > maxTimelineRows {
		return nil, apierr.Validation("limits_exceeded", fmt.Errorf("%d rows", len(out.Lines)))
	}

	normalizeSurvivalScale(out)

	for i := len(out.Lines) - 1; i >= 0; i-- {
		if s := out.Lines[i].SurvivalPct; s > 0 {
			v := s
			out.FinalSurvivalPct = &v
			break
		}
	}
	return out, nil
}

// findHeader scans the leading rows for the one that names the
// required columns. Plan exports often stack a title and farm metadata
// above the real header.
func findHeader(rows [][]string) (int, map[int]column) {
	limit := len(rows)
	if limit > 10 {
		limit = 10
	}
	for i := 0; i < limit; i++ {
		colmap := mapColumns(rows[i])
		if colmap == nil {
			continue
		}
		return i, colmap
	}
	return -1, nil
}

// mapColumns requires the original's minimum trio: plan date, average
// weight and survival.
func mapColumns(row []string) map[int]column {
	colmap := map[int]column{}
	seen := map[column]bool{}
	for pos, cell := range row {
		role := headerRole(cell)
		if role == colNone || seen[role] {
			continue
		}
		colmap[pos] = role
		seen[role] = true
	}
	if !seen[colDate] || !seen[colWeight] || !seen[colSurvival] {
		return nil
	}
	return colmap
}

func headerRole(cell string) column {
	n := normalizeHeader(cell)
	if n == "" {
		return colNone
	}

	switch n {
	case "pp", "pp g":
		return colWeight
	case "sob", "sob pct", "sob pct linea", "sob linea":
		return colSurvival
	case "sem", "wk":
		return colWeek
	case "inc", "inc g sem":
		return colIncrement
	}

	switch {
	// The final-survival target is header metadata, never a line column.
	case strings.Contains(n, "final"):
		return colNone
	// "week date" is a date synonym; match it before the week prefix.
	case strings.HasPrefix(n, "fecha"), strings.HasPrefix(n, "date"), strings.HasPrefix(n, "plan date"), strings.HasPrefix(n, "week date"):
		return colDate
	case strings.HasPrefix(n, "semana"), strings.HasPrefix(n, "week"):
		return colWeek
	case strings.HasPrefix(n, "edad"), strings.HasPrefix(n, "age"):
		return colAge
	case strings.HasPrefix(n, "incremento"), strings.HasPrefix(n, "increment"):
		return colIncrement
	case strings.HasPrefix(n, "peso"), strings.HasPrefix(n, "weight"), strings.HasPrefix(n, "avg weight"):
		return colWeight
	case strings.HasPrefix(n, "sob"), strings.HasPrefix(n, "surviv"), strings.HasPrefix(n, "superviv"), strings.HasPrefix(n, "sobreviv"):
		return colSurvival
	case strings.HasPrefix(n, "cosecha"), strings.HasPrefix(n, "harvest flag"), n == "harvest", n == "is harvest":
		return colHarvest
	case strings.HasPrefix(n, "retiro"), strings.HasPrefix(n, "raleo"), strings.HasPrefix(n, "withdrawal"), strings.HasPrefix(n, "removal"), n == "harvest density":
		return colWithdrawal
	case strings.HasPrefix(n, "nota"), strings.HasPrefix(n, "note"), strings.HasPrefix(n, "comentario"), strings.HasPrefix(n, "comment"):
		return colNote
	default:
		return colNone
	}
}

func normalizeHeader(cell string) string {
	s := strings.ToLower(strings.TrimSpace(cell))
	repl := strings.NewReplacer("_", " ", "-", " ", ".", " ", "(", " ", ")", " ", "%", " ", "/", " ", "#", " ")
	s = repl.Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

func rowEmpty(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// parseDate accepts ISO dates plus the day-first forms common in the
// source spreadsheets.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range []string{"2006-1-2", "2/1/2006", "2-1-2006", "2006/1/2", "2 Jan 2006", "Jan 2, 2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("bad date %q", s)
}

// parseNumber handles percent signs, comma decimals and mixed
// thousands separators ("1.234,56").
func parseNumber(s string) (float64, error) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if s == "" {
		return 0, fmt.Errorf("empty number")
	}
	s = strings.ReplaceAll(s, " ", "")

	dot := strings.LastIndex(s, ".")
	comma := strings.LastIndex(s, ",")
	switch {
	case dot >= 0 && comma >= 0:
		if comma > dot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case comma >= 0:
		s = strings.Replace(s, ",", ".", 1)
	}
	return strconv.ParseFloat(s, 64)
}

func parseFlag(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "si", "sí", "x", "yes", "y", "true", "t", "1":
		return true
	default:
		return false
	}
}

// normalizeSurvivalScale converts fraction-form survival (0..1) to
// percent. The whole column decides: projections start near full
// survival, so a column whose maximum is at or below 1.5 is fractional.
func normalizeSurvivalScale(tl *ParsedTimeline) {
	maxSurv := 0.0
	for _, ln := range tl.Lines {
		if ln.SurvivalPct > maxSurv {
			maxSurv = ln.SurvivalPct
		}
	}
	if maxSurv <= 0 || maxSurv > 1.5 {
		return
	}
	for i := range tl.Lines {
		tl.Lines[i].SurvivalPct *= 100
	}
	tl.Warnings = append(tl.Warnings, "survival_scale=fraction converted to percent")
}
