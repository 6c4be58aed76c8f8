package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{in: "2025-01-15", want: time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)},
		{in: " 2025-01-15 ", want: time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)},
		{in: "1/5/2025", want: time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)},
		{in: "12/31/2024", want: time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)},
		{in: "02/29/2024", want: time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)},
		{in: "13/01/2025", wantErr: true},
		{in: "01/32/2025", wantErr: true},
		{in: "2/30/2025", wantErr: true},
		{in: "2025-13-01", wantErr: true},
		{in: "yesterday", wantErr: true},
		{in: "1/2", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDate(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidDate)
				assert.ErrorIs(t, err, ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "want %s got %s", tt.want, got)
		})
	}
}

func TestParseMonth(t *testing.T) {
	m, err := ParseMonth("2025-03")
	require.NoError(t, err)
	assert.Equal(t, Month{Year: 2025, Month: time.March}, m)
	assert.Equal(t, "2025-03", m.String())

	start, end := m.Range()
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), end)

	for _, bad := range []string{"2025-3", "2025/03", "202503", "2025-00", "2025-13", ""} {
		_, err := ParseMonth(bad)
		assert.ErrorIs(t, err, ErrInvalidMonth, bad)
	}
}

func TestMonthOfDecemberRange(t *testing.T) {
	m := MonthOf(time.Date(2024, 12, 31, 23, 0, 0, 0, time.UTC))
	_, end := m.Range()
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), end)
}
