package period

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyAtWeekly(t *testing.T) {
	tests := []struct {
		name string
		date time.Time
		want string
	}{
		{
			name: "mid year",
			date: time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC),
			want: "2026-W24",
		},
		{
			name: "jan 1 belongs to previous iso year",
			// 2027-01-01 is a Friday of ISO week 2026-W53
			date: time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC),
			want: "2026-W53",
		},
		{
			name: "dec 29 belongs to next iso year",
			// 2025-12-29 is a Monday of ISO week 2026-W01
			date: time.Date(2025, 12, 29, 0, 0, 0, 0, time.UTC),
			want: "2026-W01",
		},
		{
			name: "single digit week is zero padded",
			date: time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC),
			want: "2026-W03",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Weekly.KeyAt(tt.date))
		})
	}
}

func TestKeyAtSameISOWeekAcrossYearBoundary(t *testing.T) {
	// Wednesday and Friday of the same ISO week, straddling the calendar year
	a := time.Date(2025, 12, 31, 10, 0, 0, 0, time.UTC)
	b := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, Weekly.KeyAt(a), Weekly.KeyAt(b))
}

func TestKeyAtMonthlyAndAllTime(t *testing.T) {
	d := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-03", Monthly.KeyAt(d))
	assert.Equal(t, "alltime", AllTime.KeyAt(d))
}

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Type
		wantErr bool
	}{
		{in: "weekly", want: Weekly},
		{in: "monthly", want: Monthly},
		{in: "all", want: AllTime},
		{in: "alltime", want: AllTime},
		{in: "WEEKLY", want: Weekly},
		{in: "daily", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExpires(t *testing.T) {
	assert.True(t, Weekly.Expires())
	assert.True(t, Monthly.Expires())
	assert.False(t, AllTime.Expires())
}
