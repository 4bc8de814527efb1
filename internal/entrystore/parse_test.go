package entrystore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRank(t *testing.T) {
	tests := []struct {
		raw  string
		want *int
	}{
		{"1", intPtr(1)},
		{" 12 ", intPtr(12)},
		{"3(降)", intPtr(3)},
		{"中止", nil},
		{"除外", nil},
		{"0", nil},
		{"", nil},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseRank(tt.raw))
		})
	}
}

func TestParseElapsed(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
		ok   bool
	}{
		{"1:34.5", 94.5, true},
		{"94.5", 94.5, true},
		{"2:01.0", 121.0, true},
		{"1:75.0", 0, false},
		{"abc", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got := ParseElapsed(tt.raw)
			if !tt.ok {
				assert.Nil(t, got)
				return
			}
			if assert.NotNil(t, got) {
				assert.InDelta(t, tt.want, *got, 1e-9)
			}
		})
	}
}

func TestParseDistance(t *testing.T) {
	assert.Equal(t, 1600, ParseDistance("1600"))
	assert.Equal(t, 1600, ParseDistance("1600m"))
	assert.Equal(t, 2400, ParseDistance("芝2400"))
	assert.Equal(t, 0, ParseDistance(""))
	assert.Equal(t, 0, ParseDistance("unknown"))
}

func TestParseDate(t *testing.T) {
	want := day("2024-05-05")
	assert.Equal(t, want, ParseDate("2024-05-05"))
	assert.Equal(t, want, ParseDate("2024/05/05"))
	assert.Equal(t, want, ParseDate("20240505"))
	assert.Equal(t, want, ParseDate("2024年5月5日"))
	assert.True(t, ParseDate("05-05").IsZero())
}

func TestParseMargin(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
	}{
		{"クビ", 0.25},
		{"nose", 0.05},
		{"3/4", 0.75},
		{"1.1/2", 1.5},
		{"2", 2},
		{"同着", 0},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got := ParseMargin(tt.raw)
			if assert.NotNil(t, got) {
				assert.InDelta(t, tt.want, *got, 1e-9)
			}
		})
	}
	assert.Nil(t, ParseMargin(""))
	assert.Nil(t, ParseMargin("1/0"))
}
