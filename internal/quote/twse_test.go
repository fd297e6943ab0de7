package quote

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseROCDate(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Time
		wantErr bool
	}{
		{"113/01/15", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), false},
		{"99/12/31", time.Date(2010, 12, 31, 0, 0, 0, 0, time.UTC), false},
		{" 113/02/29 ", time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), false},
		{"2024-01-15", time.Time{}, true},
		{"113/13/01", time.Time{}, true},
		{"113/01", time.Time{}, true},
		{"", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseROCDate(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		input string
		want  float64
		ok    bool
	}{
		{"15.36", 15.36, true},
		{"1,234.56", 1234.56, true},
		{" 2.85 ", 2.85, true},
		{"-", 0, false},
		{"--", 0, false},
		{"", 0, false},
		{"N/A", 0, false},
	}

	for _, tt := range tests {
		got, ok := parseNumber(tt.input)
		assert.Equal(t, tt.ok, ok, "input %q", tt.input)
		assert.Equal(t, tt.want, got, "input %q", tt.input)
	}
}

func TestParseRatioRows(t *testing.T) {
	// BWIBBU layout: 日期, 殖利率(%), 股利年度, 本益比, 股價淨值比, 財報年/季
	rows := [][]string{
		{"113/01/15", "2.10", "112", "15.36", "4.85", "112/3"},
		{"113/01/16", "2.08", "112", "-", "4.90", "112/3"},
		{"bad-date", "2.08", "112", "15.00", "4.90", "112/3"},
		{"113/01/17", "2.05"}, // too short
	}

	observations := parseRatioRows("2330", rows)
	require.Len(t, observations, 2)

	assert.Equal(t, "2330", observations[0].StockNo)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), observations[0].TradeDate)
	assert.Equal(t, 15.36, observations[0].PER)
	assert.Equal(t, 4.85, observations[0].PBR)

	// "-" PER parses to 0 so the estimator drops it downstream
	assert.Equal(t, 0.0, observations[1].PER)
	assert.Equal(t, 4.90, observations[1].PBR)
}

func TestParseCloseRows(t *testing.T) {
	// STOCK_DAY layout: 日期, 成交股數, 成交金額, 開盤價, 最高價, 最低價, 收盤價, ...
	rows := [][]string{
		{"113/01/15", "32,684,149", "19,345,051,444", "590.00", "595.00", "588.00", "593.00", "+3.00", "28,295"},
		{"113/01/16", "25,000,000", "14,000,000,000", "593.00", "594.00", "585.00", "-", "X", "20,000"},
		{"113/01/17", "25,000,000"},
	}

	closes := parseCloseRows(rows)
	require.Len(t, closes, 1)
	assert.Equal(t, 593.0, closes["2024-01-15"])
}
