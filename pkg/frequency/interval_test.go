package frequency_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esm-tools/cmorize/pkg/frequency"
)

func TestFromApproxInterval(t *testing.T) {
	tests := []struct {
		name     string
		interval float64
		want     string
	}{
		{"one hour", 1.0 / 24, "1h"},
		{"three hours", 3.0 / 24, "3h"},
		{"six hours", 6.0 / 24, "6h"},
		{"one day", 1.0, "1D"},
		{"week", 7.0, "7D"},
		{"short month", 28.0, "1MS"},
		{"february leap", 29.0, "1MS"},
		{"idealized month", 30.0, "1MS"},
		{"long month", 31.0, "1MS"},
		{"two months", 59.0, "2MS"},
		{"two long months", 60.0, "2MS"},
		{"quarter", 90.0, "3MS"},
		{"quarter plus a day", 91.0, "3MS1D"},
		{"four months", 120.0, "4MS"},
		{"five months", 151.0, "5MS"},
		{"year", 365.0, "1YS"},
		{"decade", 3650.0, "10YS"},
		{"subhourly", 0.017361, "25m"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := frequency.FromApproxInterval(tt.interval)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromApproxIntervalNegative(t *testing.T) {
	_, err := frequency.FromApproxInterval(-1)
	assert.Error(t, err)
}

func TestMethodForTable(t *testing.T) {
	assert.Equal(t, frequency.MethodInstantaneous, frequency.MethodForTable("6hrPlevPt"))
	assert.Equal(t, frequency.MethodClimatology, frequency.MethodForTable("monC"))
	assert.Equal(t, frequency.MethodClimatology, frequency.MethodForTable("1hrCM"))
	assert.Equal(t, frequency.MethodMean, frequency.MethodForTable("Amon"))
	assert.Equal(t, frequency.MethodMean, frequency.MethodForTable("day"))
}

func TestForName(t *testing.T) {
	f, err := frequency.ForName("mon")
	require.NoError(t, err)
	assert.Equal(t, 30.0, f.ApproxInterval)
	assert.Equal(t, frequency.MethodMean, f.TimeMethod)

	_, err = frequency.ForName("fortnightly")
	assert.Error(t, err)
}

func TestTimeRangeLabel(t *testing.T) {
	start := time.Date(1850, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(1949, time.December, 31, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		freq string
		want string
	}{
		{"yr", "1850-1949"},
		{"mon", "185001-194912"},
		{"day", "18500101-19491231"},
		{"fx", ""},
	}
	for _, tt := range tests {
		t.Run(tt.freq, func(t *testing.T) {
			got, err := frequency.TimeRangeLabel(tt.freq, start, end)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
