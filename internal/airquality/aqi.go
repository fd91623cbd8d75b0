package airquality

import (
	"math"
	"strconv"
	"strings"
)

// Category is an EPA AQI band name.
type Category string

const (
	CategoryGood                        Category = "Good"
	CategoryModerate                    Category = "Moderate"
	CategoryUnhealthyForSensitiveGroups Category = "Unhealthy for Sensitive Groups"
	CategoryUnhealthy                   Category = "Unhealthy"
	CategoryVeryUnhealthy               Category = "Very Unhealthy"
	CategoryHazardous                   Category = "Hazardous"
)

// breakpoint maps a concentration range, in tenths of µg/m³, onto an index range.
type breakpoint struct {
	concLo, concHi   int
	indexLo, indexHi int
	category         Category
}

// pm25Breakpoints is the EPA PM2.5 (24-hour) table, including the two
// upper hazardous bands that extend the index to 500.
var pm25Breakpoints = []breakpoint{
	{0, 120, 0, 50, CategoryGood},
	{121, 354, 51, 100, CategoryModerate},
	{355, 554, 101, 150, CategoryUnhealthyForSensitiveGroups},
	{555, 1504, 151, 200, CategoryUnhealthy},
	{1505, 2504, 201, 300, CategoryVeryUnhealthy},
	{2505, 3504, 301, 400, CategoryHazardous},
	{3505, 5004, 401, 500, CategoryHazardous},
}

// MaxPM25 is the highest PM2.5 concentration with a defined index. The table
// runs to 500.4 but readings above 500 are reported as undefined.
const MaxPM25 = 500.0

// EPAIAQIPM25 returns the EPA individual AQI for a PM2.5 concentration in µg/m³.
// The concentration is truncated to one decimal place before lookup and the
// interpolated index is rounded half to even. ok is false when the index is
// undefined: above MaxPM25, below zero, or NaN.
func EPAIAQIPM25(concentration float64) (iaqi int, ok bool) {
	bp, c, ok := lookupPM25(concentration)
	if !ok {
		return 0, false
	}

	// IAQI = (Ihi-Ilo)/(BPhi-BPlo) * (C-BPlo) + Ilo, evaluated exactly in tenths.
	num := (bp.indexHi - bp.indexLo) * (c - bp.concLo)
	den := bp.concHi - bp.concLo
	return bp.indexLo + roundHalfEven(num, den), true
}

// CategoryPM25 returns the EPA band a PM2.5 concentration falls into.
func CategoryPM25(concentration float64) (Category, bool) {
	bp, _, ok := lookupPM25(concentration)
	if !ok {
		return "", false
	}
	return bp.category, true
}

func lookupPM25(concentration float64) (breakpoint, int, bool) {
	if math.IsNaN(concentration) || concentration < 0 || concentration > MaxPM25 {
		return breakpoint{}, 0, false
	}

	c := truncateTenths(concentration)
	for _, bp := range pm25Breakpoints {
		if c >= bp.concLo && c <= bp.concHi {
			return bp, c, true
		}
	}
	return breakpoint{}, 0, false
}

// truncateTenths converts a non-negative µg/m³ value to whole tenths, dropping
// further digits. It works on the shortest decimal form of v, so 35.4 is 354
// tenths and 12.09999999 is 120.
func truncateTenths(v float64) int {
	whole, frac, _ := strings.Cut(strconv.FormatFloat(v, 'f', -1, 64), ".")
	n, _ := strconv.Atoi(whole)
	tenths := n * 10
	if frac != "" {
		tenths += int(frac[0] - '0')
	}
	return tenths
}

// roundHalfEven divides num by den (both non-negative, den > 0) and rounds
// the quotient to the nearest integer, ties to even.
func roundHalfEven(num, den int) int {
	q, r := num/den, num%den
	switch {
	case 2*r > den:
		q++
	case 2*r == den && q%2 == 1:
		q++
	}
	return q
}
