package parser

import (
	"bytes"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/FREDERICO23/gridflow-api/internal/domain"
)

func newTestParser() *Parser {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestParse_SemicolonSeparatorAndDecimalComma(t *testing.T) {
	data := []byte("Zeitstempel;Leistung (kW)\n" +
		"01.01.2024 00:00;12,5\n" +
		"01.01.2024 01:00;1.234,5\n")

	records, err := newTestParser().Parse(data, "load.csv")
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), records[0].TS)
	assert.InDelta(t, 12.5, records[0].ValueKW, 1e-9)
	assert.InDelta(t, 1234.5, records[1].ValueKW, 1e-9)
}

func TestParse_CommaSeparator(t *testing.T) {
	data := []byte("timestamp,power_kw\n" +
		"2024-01-01 00:00:00,100.5\n" +
		"2024-01-01 01:00:00,101.25\n")

	records, err := newTestParser().Parse(data, "load.csv")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.InDelta(t, 100.5, records[0].ValueKW, 1e-9)
}

func TestParse_UTF8BOM(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("timestamp;load_kw\n2024-06-01 12:00;55,0\n")...)

	records, err := newTestParser().Parse(data, "load.csv")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.InDelta(t, 55.0, records[0].ValueKW, 1e-9)
}

func TestParse_DayFirstTimestamps(t *testing.T) {
	data := []byte("datum;verbrauch_kw\n03/04/2021 00:00;10\n")

	records, err := newTestParser().Parse(data, "load.csv")
	require.NoError(t, err)
	require.Len(t, records, 1)

	// 03/04/2021 is the 3rd of April, not the 4th of March.
	assert.Equal(t, time.April, records[0].TS.Month())
	assert.Equal(t, 3, records[0].TS.Day())
}

func TestParse_KWhConversionQuarterHourly(t *testing.T) {
	// 0.25 kWh per 15-minute interval is an average power of 1 kW.
	data := []byte("timestamp;energy_kwh\n" +
		"2024-01-01 00:00;0,25\n" +
		"2024-01-01 00:15;0,25\n" +
		"2024-01-01 00:30;0,25\n" +
		"2024-01-01 00:45;0,25\n")

	records, err := newTestParser().Parse(data, "load.csv")
	require.NoError(t, err)
	require.Len(t, records, 4)
	for _, rec := range records {
		assert.InDelta(t, 1.0, rec.ValueKW, 1e-9)
	}
}

func TestParse_MWhConversionHourly(t *testing.T) {
	data := []byte("timestamp;energy_mwh\n" +
		"2024-01-01 00:00;2\n" +
		"2024-01-01 01:00;2\n")

	records, err := newTestParser().Parse(data, "load.csv")
	require.NoError(t, err)
	require.Len(t, records, 2)
	// 2 MWh over one hour is 2000 kW.
	assert.InDelta(t, 2000.0, records[0].ValueKW, 1e-9)
}

func TestParse_SortsAndDeduplicates(t *testing.T) {
	data := []byte("timestamp;value_kw\n" +
		"2024-01-01 02:00;3\n" +
		"2024-01-01 00:00;1\n" +
		"2024-01-01 00:00;99\n" +
		"2024-01-01 01:00;2\n")

	records, err := newTestParser().Parse(data, "load.csv")
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.True(t, records[0].TS.Before(records[1].TS))
	assert.True(t, records[1].TS.Before(records[2].TS))
	// The first occurrence of a duplicated timestamp wins.
	assert.InDelta(t, 1.0, records[0].ValueKW, 1e-9)
}

func TestParse_UnparseableValueMarkedMissing(t *testing.T) {
	data := []byte("timestamp;value_kw\n" +
		"2024-01-01 00:00;n/a\n" +
		"2024-01-01 01:00;5\n")

	records, err := newTestParser().Parse(data, "load.csv")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.True(t, records[0].Missing)
	assert.False(t, records[1].Missing)
}

func TestParse_UnparseableTimestampsDropped(t *testing.T) {
	data := []byte("timestamp;value_kw\n" +
		"garbage;1\n" +
		"2024-01-01 00:00;5\n")

	records, err := newTestParser().Parse(data, "load.csv")
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "empty file", data: ""},
		{name: "header only", data: "timestamp;value_kw\n"},
		{name: "no timestamps parse", data: "timestamp;value_kw\nfoo;1\nbar;2\n"},
		{name: "ambiguous value column", data: "timestamp;a;b\n2024-01-01 00:00;1;2\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestParser().Parse([]byte(tt.data), "load.csv")
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrParse)
		})
	}
}

func TestParse_Excel(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "timestamp"))
	require.NoError(t, f.SetCellValue("Sheet1", "B1", "load_kw"))
	require.NoError(t, f.SetCellValue("Sheet1", "A2", "2024-01-01 00:00"))
	require.NoError(t, f.SetCellValue("Sheet1", "B2", 42.5))
	require.NoError(t, f.SetCellValue("Sheet1", "A3", "2024-01-01 01:00"))
	require.NoError(t, f.SetCellValue("Sheet1", "B3", 43.0))

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	records, err := newTestParser().Parse(buf.Bytes(), "load.xlsx")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.InDelta(t, 42.5, records[0].ValueKW, 1e-9)
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"12.5", 12.5, true},
		{"12,5", 12.5, true},
		{"1.234,56", 1234.56, true},
		{" 42 ", 42, true},
		{"", 0, false},
		{"abc", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := parseNumber(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.InDelta(t, tt.want, got, 1e-9)
			}
		})
	}
}

func TestMedianIntervalMinutes(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	records := []Record{
		{TS: base},
		{TS: base.Add(15 * time.Minute)},
		{TS: base.Add(30 * time.Minute)},
		{TS: base.Add(45 * time.Minute)},
		// One large gap must not skew the median.
		{TS: base.Add(6 * time.Hour)},
	}

	assert.InDelta(t, 15.0, medianIntervalMinutes(records), 1e-9)
	assert.InDelta(t, 60.0, medianIntervalMinutes([]Record{{TS: base}}), 1e-9)
}
