package geo

import (
	"fmt"
	"math"
)

func FormatDistance(km float64) string {
	if m := int(math.Round(km * 1000)); m < 1000 {
		return fmt.Sprintf("%d m", m)
	}
	return fmt.Sprintf("%.1f km", km)
}

func FormatDuration(minutes float64) string {
	m := int(math.Round(minutes))
	if m < 60 {
		return fmt.Sprintf("%d min", m)
	}
	h, rest := m/60, m%60
	if rest == 0 {
		return fmt.Sprintf("%dh", h)
	}
	return fmt.Sprintf("%dh %dm", h, rest)
}
