// internal/catalog/price.go
package catalog

import (
	"errors"
	"fmt"
	"math"
)

// ErrPriceParse is returned when price text holds no usable digits.
var ErrPriceParse = errors.New("unparsable price")

// ParsePrice extracts an integer price from localized text by keeping only
// ASCII digits. Grouping spaces of any kind and currency symbols are dropped,
// so "12 345 ₽", "12\u00a0345" and "12345" all yield 12345.
func ParsePrice(text string) (int, error) {
	n := 0
	digits := 0
	for _, r := range text {
		if r < '0' || r > '9' {
			continue
		}
		d := int(r - '0')
		if n > (math.MaxInt-d)/10 {
			return 0, fmt.Errorf("%w: %q overflows", ErrPriceParse, text)
		}
		n = n*10 + d
		digits++
	}
	if digits == 0 {
		return 0, fmt.Errorf("%w: %q has no digits", ErrPriceParse, text)
	}
	return n, nil
}
