package airquality_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breatheroute/getaq/internal/airquality"
)

func TestEPAIAQIPM25(t *testing.T) {
	tests := []struct {
		name     string
		conc     float64
		expected int
	}{
		{"zero", 0, 0},
		{"good - mid", 6.0, 25},
		{"good - tie rounds to even down", 3.0, 12},
		{"good - tie rounds to even up", 9.0, 38},
		{"good - upper boundary", 12.0, 50},
		{"good - truncated to boundary", 12.09, 50},
		{"good - many nines truncated", 12.09999999, 50},
		{"moderate - many nines truncated", 35.49999999, 100},
		{"moderate - lower boundary", 12.1, 51},
		{"moderate - mid", 20.0, 68},
		{"moderate - upper boundary", 35.4, 100},
		{"usg - lower boundary", 35.5, 101},
		{"usg - upper boundary", 55.4, 150},
		{"unhealthy - lower boundary", 55.5, 151},
		{"unhealthy - mid", 100.0, 174},
		{"unhealthy - upper boundary", 150.4, 200},
		{"very unhealthy - lower boundary", 150.5, 201},
		{"very unhealthy - upper boundary", 250.4, 300},
		{"hazardous - lower boundary", 250.5, 301},
		{"hazardous - upper boundary", 350.4, 400},
		{"extended hazardous - lower boundary", 350.5, 401},
		{"extended hazardous - mid", 425.0, 450},
		{"extended hazardous - exactly 500", 500.0, 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			iaqi, ok := airquality.EPAIAQIPM25(tt.conc)
			require.True(t, ok)
			assert.Equal(t, tt.expected, iaqi)
		})
	}
}

func TestEPAIAQIPM25_Undefined(t *testing.T) {
	tests := []struct {
		name string
		conc float64
	}{
		{"just above 500", 500.01},
		{"top of table", 500.4},
		{"501", 501},
		{"far above table", 1200},
		{"negative", -0.5},
		{"NaN", math.NaN()},
		{"infinity", math.Inf(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := airquality.EPAIAQIPM25(tt.conc)
			assert.False(t, ok)
		})
	}
}

func TestEPAIAQIPM25_RangeAndMonotonic(t *testing.T) {
	ranges := map[airquality.Category][2]int{
		airquality.CategoryGood:                        {0, 50},
		airquality.CategoryModerate:                    {51, 100},
		airquality.CategoryUnhealthyForSensitiveGroups: {101, 150},
		airquality.CategoryUnhealthy:                   {151, 200},
		airquality.CategoryVeryUnhealthy:               {201, 300},
		airquality.CategoryHazardous:                   {301, 500},
	}

	prev := -1
	for tenths := 0; tenths <= 5000; tenths++ {
		conc := float64(tenths) / 10

		iaqi, ok := airquality.EPAIAQIPM25(conc)
		require.True(t, ok, "concentration %.1f", conc)

		category, ok := airquality.CategoryPM25(conc)
		require.True(t, ok, "concentration %.1f", conc)

		bounds := ranges[category]
		assert.GreaterOrEqual(t, iaqi, bounds[0], "concentration %.1f", conc)
		assert.LessOrEqual(t, iaqi, bounds[1], "concentration %.1f", conc)
		assert.GreaterOrEqual(t, iaqi, prev, "concentration %.1f", conc)
		prev = iaqi
	}
}

func TestCategoryPM25(t *testing.T) {
	tests := []struct {
		conc     float64
		expected airquality.Category
	}{
		{0, airquality.CategoryGood},
		{12.0, airquality.CategoryGood},
		{12.1, airquality.CategoryModerate},
		{40, airquality.CategoryUnhealthyForSensitiveGroups},
		{80, airquality.CategoryUnhealthy},
		{200, airquality.CategoryVeryUnhealthy},
		{300, airquality.CategoryHazardous},
		{450, airquality.CategoryHazardous},
	}

	for _, tt := range tests {
		category, ok := airquality.CategoryPM25(tt.conc)
		require.True(t, ok)
		assert.Equal(t, tt.expected, category, "concentration %v", tt.conc)
	}

	_, ok := airquality.CategoryPM25(501)
	assert.False(t, ok)
}
