// internal/catalog/product.go
package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xkilldash9x/marketcheck/internal/config"
)

// Product is one catalog item as scraped from a product card. Two products
// with the same title and price are equal.
type Product struct {
	Title string `json:"title"`
	Price int    `json:"price"`
}

func (p Product) String() string {
	return fmt.Sprintf("%q (%d)", p.Title, p.Price)
}

// Snapshot is the ordered list of products scraped from one fully scrolled
// listing, in DOM order.
type Snapshot []Product

// Contains reports whether an equal product is present.
func (s Snapshot) Contains(p Product) bool {
	for _, q := range s {
		if q == p {
			return true
		}
	}
	return false
}

// Titles returns the product titles in order.
func (s Snapshot) Titles() []string {
	out := make([]string, len(s))
	for i, p := range s {
		out[i] = p.Title
	}
	return out
}

// FilterParams describes one test case: where to navigate, which filters to
// apply and what to verify afterwards.
type FilterParams struct {
	Name        string   `json:"name"`
	Category    string   `json:"category"`
	Subcategory string   `json:"subcategory"`
	MinPrice    int      `json:"min_price"`
	MaxPrice    int      `json:"max_price"`
	Brands      []string `json:"brands"`
	// CheckedIndex selects the product in the filtered listing that must be
	// found again by searching for its title.
	CheckedIndex int `json:"checked_index"`
	// MinProducts is the count the filtered listing must exceed.
	MinProducts int `json:"min_products"`
}

// ParamsFromConfig converts a configured case.
func ParamsFromConfig(c config.CaseConfig) FilterParams {
	return FilterParams{
		Name:         c.Name,
		Category:     c.Category,
		Subcategory:  c.Subcategory,
		MinPrice:     c.MinPrice,
		MaxPrice:     c.MaxPrice,
		Brands:       append([]string(nil), c.Brands...),
		CheckedIndex: c.CheckedIndex,
		MinProducts:  c.MinProducts,
	}
}

// DisplayName returns Name, or a name derived from the category path when
// Name is empty.
func (p FilterParams) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return fmt.Sprintf("%s/%s", p.Category, p.Subcategory)
}

// Validate rejects parameters that cannot describe a meaningful case.
func (p FilterParams) Validate() error {
	var problems []string
	if strings.TrimSpace(p.Category) == "" {
		problems = append(problems, "category is required")
	}
	if strings.TrimSpace(p.Subcategory) == "" {
		problems = append(problems, "subcategory is required")
	}
	if p.MinPrice < 0 || p.MaxPrice < 0 {
		problems = append(problems, "prices must not be negative")
	}
	if p.MinPrice > p.MaxPrice {
		problems = append(problems, fmt.Sprintf("min price %d exceeds max price %d", p.MinPrice, p.MaxPrice))
	}
	if p.CheckedIndex < 0 {
		problems = append(problems, "checked index must not be negative")
	}
	if p.MinProducts < 0 {
		problems = append(problems, "min products must not be negative")
	}
	for _, b := range p.Brands {
		if strings.TrimSpace(b) == "" {
			problems = append(problems, "brands must not be blank")
			break
		}
	}
	if len(problems) > 0 {
		return errors.New("invalid case " + p.DisplayName() + ": " + strings.Join(problems, "; "))
	}
	return nil
}
