package bib

import "strconv"

// Authoritative bib number range. Historically the local pipeline accepted
// up to 99999 while the shared validator accepted up to 999999; the wider
// 6-digit range is the documented contract everywhere in this module.
const (
	minBibValue = 1
	maxBibValue = 999999
	maxBibLen   = 6
)

// IsValidBibNumber reports whether token is an acceptable bib number:
// all digits, 1-6 characters, numeric value in [1, 999999]. Leading zeros
// are tolerated ("007" reads as 7).
func IsValidBibNumber(token string) bool {
	if len(token) == 0 || len(token) > maxBibLen {
		return false
	}
	for _, r := range token {
		if r < '0' || r > '9' {
			return false
		}
	}
	value, err := strconv.Atoi(token)
	if err != nil {
		return false
	}
	return value >= minBibValue && value <= maxBibValue
}
