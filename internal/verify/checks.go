// internal/verify/checks.go
package verify

import (
	"fmt"
	"strings"

	"github.com/xkilldash9x/marketcheck/internal/catalog"
)

// Run executes the presence, price range, brand and count checks against the
// snapshots taken before and after the search. Every check runs regardless
// of earlier failures.
func Run(before, after catalog.Snapshot, p catalog.FilterParams) *Result {
	r := &Result{}
	r.Add(CheckPresence(before, after, p.CheckedIndex))
	r.Add(CheckPriceRange(before, p.MinPrice, p.MaxPrice))
	r.Add(CheckBrands(before, p.Brands))
	r.Add(CheckCount(before, p.MinProducts))
	return r
}

// CheckPresence requires the product at index in before to reappear in after.
func CheckPresence(before, after catalog.Snapshot, index int) Outcome {
	if index < 0 || index >= len(before) {
		return Outcome{
			Check:   CheckNamePresence,
			Message: fmt.Sprintf("no product at index %d to look for: the listing had %d products", index, len(before)),
		}
	}
	want := before[index]
	if after.Contains(want) {
		return pass(CheckNamePresence)
	}
	return Outcome{
		Check:      CheckNamePresence,
		Message:    fmt.Sprintf("product %s not found after search (%d results)", want, len(after)),
		Violations: []string{want.String()},
	}
}

// CheckPriceRange requires every price to lie within [minPrice, maxPrice].
func CheckPriceRange(products catalog.Snapshot, minPrice, maxPrice int) Outcome {
	var violations []string
	for _, p := range products {
		if p.Price < minPrice || p.Price > maxPrice {
			violations = append(violations, p.String())
		}
	}
	if len(violations) == 0 {
		return pass(CheckNamePriceRange)
	}
	return Outcome{
		Check:      CheckNamePriceRange,
		Message:    fmt.Sprintf("%d products priced outside [%d, %d]", len(violations), minPrice, maxPrice),
		Violations: violations,
	}
}

// CheckBrands requires every titled product to name at least one of brands,
// compared case-insensitively. Products without a title are skipped. With no
// brands, every titled product is a violator.
func CheckBrands(products catalog.Snapshot, brands []string) Outcome {
	lowered := make([]string, len(brands))
	for i, b := range brands {
		lowered[i] = strings.ToLower(b)
	}

	var violations []string
	for _, p := range products {
		if p.Title == "" {
			continue
		}
		title := strings.ToLower(p.Title)
		matched := false
		for _, b := range lowered {
			if strings.Contains(title, b) {
				matched = true
				break
			}
		}
		if !matched {
			violations = append(violations, p.String())
		}
	}
	if len(violations) == 0 {
		return pass(CheckNameBrands)
	}
	return Outcome{
		Check:      CheckNameBrands,
		Message:    fmt.Sprintf("%d products match none of the brands [%s]", len(violations), strings.Join(brands, ", ")),
		Violations: violations,
	}
}

// CheckCount requires strictly more than threshold products.
func CheckCount(products catalog.Snapshot, threshold int) Outcome {
	if len(products) > threshold {
		return pass(CheckNameCount)
	}
	return Outcome{
		Check:   CheckNameCount,
		Message: fmt.Sprintf("found %d products, expected more than %d", len(products), threshold),
	}
}

// CheckTitle requires the page title to mention the subcategory, ignoring case.
func CheckTitle(title, subcategory string) Outcome {
	if strings.Contains(strings.ToLower(title), strings.ToLower(subcategory)) {
		return pass(CheckNameTitle)
	}
	return Outcome{
		Check:   CheckNameTitle,
		Message: fmt.Sprintf("page title %q does not mention %q", title, subcategory),
	}
}
