package parser

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/FREDERICO23/gridflow-api/internal/domain"
)

// Column-name fragments used for auto-detection (lowercase).
var (
	timestampHints = []string{"time", "date", "ts", "datetime", "zeitstempel", "datum"}
	valueHints     = []string{"kw", "mw", "power", "load", "value", "leistung", "verbrauch", "energie"}
	// kWh/MWh columns need unit conversion
	energyHints = []string{"kwh", "mwh"}
)

// Timestamp layouts tried in order. Day-first interpretation is preferred,
// so 03/04/2021 reads as 3 April.
var tsLayouts = []string{
	"02.01.2006 15:04:05",
	"02.01.2006 15:04",
	"02.01.2006",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02/01/2006",
	"02-01-2006 15:04:05",
	"02-01-2006 15:04",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2.1.2006 15:04",
	"1/2/2006 15:04",
}

// Record is one parsed observation. Timestamps are naive instants carried in
// the UTC frame; localization happens later in the normalizer. Missing marks
// rows whose value could not be coerced to a number.
type Record struct {
	TS      time.Time
	ValueKW float64
	Missing bool
}

// Parser converts raw load-profile file bytes into ordered Records.
type Parser struct {
	logger *slog.Logger
}

// New creates a Parser.
func New(logger *slog.Logger) *Parser {
	return &Parser{logger: logger}
}

// Parse decodes a load-profile file into a timestamp-ascending, duplicate-free
// sequence of records. The format is chosen by file extension; kWh/MWh columns
// are converted to average kW.
func (p *Parser) Parse(data []byte, filename string) ([]Record, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: file is empty", domain.ErrParse)
	}

	var (
		rows [][]string
		err  error
	)
	switch ext(filename) {
	case "xlsx", "xls":
		rows, err = decodeExcel(data)
	default:
		rows, err = p.decodeDelimited(data)
	}
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("%w: parsed file %q is empty", domain.ErrParse, filename)
	}

	header := rows[0]
	body := rows[1:]

	tsCol := detectColumn(header, timestampHints)
	if tsCol < 0 {
		// Fallback: try the first column
		tsCol = 0
		p.logger.Warn("No timestamp column detected, using first column",
			slog.String("column", header[0]),
		)
	}

	valueCol := detectValueColumn(header, tsCol)
	if valueCol < 0 {
		remaining := len(header) - 1
		if remaining == 1 {
			for i := range header {
				if i != tsCol {
					valueCol = i
				}
			}
			p.logger.Warn("No value column detected, using the only remaining column",
				slog.String("column", header[valueCol]),
			)
		} else {
			return nil, fmt.Errorf(
				"%w: cannot detect value column in %v, expected a column containing: kw, mw, power, load, value, kwh, or mwh",
				domain.ErrParse, header,
			)
		}
	}

	records := make([]Record, 0, len(body))
	for _, row := range body {
		if tsCol >= len(row) {
			continue
		}
		ts, ok := parseTimestamp(row[tsCol])
		if !ok {
			// Unparseable timestamps drop the row, they are not fatal
			// unless every row fails.
			continue
		}
		rec := Record{TS: ts}
		if valueCol < len(row) {
			if v, ok := parseNumber(row[valueCol]); ok {
				rec.ValueKW = v
			} else {
				rec.Missing = true
			}
		} else {
			rec.Missing = true
		}
		records = append(records, rec)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("%w: could not parse any timestamps from column %q",
			domain.ErrParse, header[tsCol])
	}

	sort.SliceStable(records, func(i, j int) bool { return records[i].TS.Before(records[j].TS) })
	records = dedupe(records)

	if isEnergyColumn(header[valueCol]) {
		intervalHours := medianIntervalMinutes(records) / 60.0
		scale := 1.0 / intervalHours
		if strings.Contains(strings.ToLower(header[valueCol]), "mwh") {
			scale *= 1000.0
		}
		for i := range records {
			if !records[i].Missing {
				records[i].ValueKW *= scale
			}
		}
		p.logger.Info("Converted energy column to average kW",
			slog.String("column", header[valueCol]),
			slog.Float64("interval_hours", intervalHours),
		)
	}

	p.logger.Info("Parsed load profile",
		slog.String("filename", filename),
		slog.Int("records", len(records)),
		slog.String("value_column", header[valueCol]),
	)
	return records, nil
}

// decodeDelimited tries semicolon then comma separators, then falls back to
// sniffing the most frequent candidate separator on the first line.
func (p *Parser) decodeDelimited(data []byte) ([][]string, error) {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF}) // UTF-8 BOM

	for _, sep := range []rune{';', ','} {
		rows, err := readCSV(data, sep)
		if err == nil && len(rows) > 0 && len(rows[0]) >= 2 {
			return rows, nil
		}
	}

	// Last resort: sniff whichever candidate separator dominates the header.
	sep := sniffSeparator(data)
	rows, err := readCSV(data, sep)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrParse, err)
	}
	return rows, nil
}

func readCSV(data []byte, sep rune) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = sep
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	return r.ReadAll()
}

func sniffSeparator(data []byte) rune {
	line := data
	if idx := bytes.IndexByte(data, '\n'); idx >= 0 {
		line = data[:idx]
	}
	best, bestCount := ',', 0
	for _, cand := range []rune{';', ',', '\t', '|'} {
		if n := bytes.Count(line, []byte(string(cand))); n > bestCount {
			best, bestCount = cand, n
		}
	}
	return best
}

// decodeExcel returns the rows of the first sheet that holds at least a
// header and one data row with two columns.
func decodeExcel(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open spreadsheet: %v", domain.ErrParse, err)
	}
	defer f.Close()

	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			continue
		}
		if len(rows) >= 2 && len(rows[0]) >= 2 {
			return rows, nil
		}
	}
	return nil, fmt.Errorf("%w: no sheet with tabular data found", domain.ErrParse)
}

func ext(filename string) string {
	if idx := strings.LastIndex(filename, "."); idx >= 0 {
		return strings.ToLower(filename[idx+1:])
	}
	return "csv"
}

func detectColumn(header []string, hints []string) int {
	for i, col := range header {
		lower := strings.ToLower(col)
		for _, hint := range hints {
			if strings.Contains(lower, hint) {
				return i
			}
		}
	}
	return -1
}

func detectValueColumn(header []string, tsCol int) int {
	for i, col := range header {
		if i == tsCol {
			continue
		}
		lower := strings.ToLower(col)
		for _, hint := range valueHints {
			if strings.Contains(lower, hint) {
				return i
			}
		}
	}
	return -1
}

func isEnergyColumn(name string) bool {
	lower := strings.ToLower(name)
	for _, hint := range energyHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}

func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range tsLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseNumber coerces a cell to float64, accepting the decimal-comma
// convention ("1.234,56" and "1234,56").
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return 0, false
	}
	if strings.Contains(s, ",") {
		if strings.Contains(s, ".") {
			// "." is the thousands separator in decimal-comma locales
			s = strings.ReplaceAll(s, ".", "")
		}
		s = strings.ReplaceAll(s, ",", ".")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// dedupe removes records sharing a timestamp, keeping the first occurrence.
// Input must be sorted.
func dedupe(records []Record) []Record {
	out := records[:0]
	for i, rec := range records {
		if i > 0 && rec.TS.Equal(records[i-1].TS) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// medianIntervalMinutes returns the median gap between consecutive
// timestamps in minutes, floored at 1. Falls back to 60 for a single record.
func medianIntervalMinutes(records []Record) float64 {
	if len(records) < 2 {
		return 60.0
	}
	gaps := make([]float64, 0, len(records)-1)
	for i := 1; i < len(records); i++ {
		gaps = append(gaps, records[i].TS.Sub(records[i-1].TS).Minutes())
	}
	sort.Float64s(gaps)
	var median float64
	mid := len(gaps) / 2
	if len(gaps)%2 == 0 {
		median = (gaps[mid-1] + gaps[mid]) / 2
	} else {
		median = gaps[mid]
	}
	if median < 1.0 {
		return 1.0
	}
	return median
}
