// internal/locator/locator.go
package locator

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/antchfx/xpath"
)

// Locator keys used by the catalog workflow.
const (
	SearchInput        = "search_input"
	CatalogButton      = "catalog_button"
	CatalogCategory    = "catalog_category"
	CatalogSubcategory = "catalog_subcategory"
	FilterPriceMin     = "filter_price_min"
	FilterPriceMax     = "filter_price_max"
	FilterBrand        = "filter_brand"
	Card               = "card"
	CardTitle          = "card_title"
	CardPrice          = "card_price"
)

// RequiredKeys lists every key a Set must define before a run can start.
var RequiredKeys = []string{
	SearchInput,
	CatalogButton,
	CatalogCategory,
	CatalogSubcategory,
	FilterPriceMin,
	FilterPriceMax,
	FilterBrand,
	Card,
	CardTitle,
	CardPrice,
}

// ErrUnknownLocator is returned when a key has no template.
var ErrUnknownLocator = errors.New("unknown locator")

// placeholder matches tokens like *category* inside a template.
var placeholder = regexp.MustCompile(`\*[a-z_]+\*`)

// Set maps symbolic locator names to XPath templates.
type Set struct {
	templates map[string]string
}

// NewSet copies templates into a new Set. Keys are matched case-insensitively.
func NewSet(templates map[string]string) *Set {
	s := &Set{templates: make(map[string]string, len(templates))}
	for k, v := range templates {
		s.templates[strings.ToLower(k)] = v
	}
	return s
}

// Template returns the raw template for key.
func (s *Set) Template(key string) (string, error) {
	tmpl, ok := s.templates[strings.ToLower(key)]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownLocator, key)
	}
	return tmpl, nil
}

// Resolve substitutes value for every placeholder in the template for key.
// The value is inserted verbatim.
func (s *Set) Resolve(key, value string) (string, error) {
	tmpl, err := s.Template(key)
	if err != nil {
		return "", err
	}
	return placeholder.ReplaceAllLiteralString(tmpl, value), nil
}

// Placeholders reports the distinct placeholder tokens in the template for key.
func (s *Set) Placeholders(key string) ([]string, error) {
	tmpl, err := s.Template(key)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var out []string
	for _, tok := range placeholder.FindAllString(tmpl, -1) {
		if !seen[tok] {
			seen[tok] = true
			out = append(out, tok)
		}
	}
	return out, nil
}

// Keys returns the defined keys in sorted order.
func (s *Set) Keys() []string {
	keys := make([]string, 0, len(s.templates))
	for k := range s.templates {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Validate checks that every required key is present and that every template
// compiles as XPath once its placeholders are filled in.
func (s *Set) Validate() error {
	var missing []string
	for _, key := range RequiredKeys {
		if _, ok := s.templates[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing locators: %s", strings.Join(missing, ", "))
	}

	for _, key := range s.Keys() {
		expr, _ := s.Resolve(key, "sample")
		if _, err := xpath.Compile(expr); err != nil {
			return fmt.Errorf("locator %q is not a valid XPath expression %q: %w", key, expr, err)
		}
	}
	return nil
}
