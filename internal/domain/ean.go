package domain

import "strings"

// NormalizeEAN strips whitespace and dashes a scanner or user may add around a barcode
func NormalizeEAN(code string) string {
	code = strings.TrimSpace(code)
	code = strings.ReplaceAll(code, " ", "")
	return strings.ReplaceAll(code, "-", "")
}

// ValidEAN reports whether code is an EAN-8, UPC-A or EAN-13 with a correct GS1 check digit
func ValidEAN(code string) bool {
	switch len(code) {
	case 8, 12, 13:
	default:
		return false
	}

	sum := 0
	// Weights alternate 3,1 starting from the digit left of the check digit
	weight := 3
	for i := len(code) - 2; i >= 0; i-- {
		c := code[i]
		if c < '0' || c > '9' {
			return false
		}
		sum += int(c-'0') * weight
		weight = 4 - weight
	}

	last := code[len(code)-1]
	if last < '0' || last > '9' {
		return false
	}
	check := (10 - sum%10) % 10
	return int(last-'0') == check
}
