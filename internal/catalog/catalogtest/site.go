// internal/catalog/catalogtest/site.go
package catalogtest

import (
	"strconv"
	"strings"
)

// Item is one product offered by a fixture site.
type Item struct {
	Title       string `json:"title"`
	Price       int    `json:"price"`
	PriceText   string `json:"priceText"`
	Brand       string `json:"brand"`
	Category    string `json:"category"`
	Subcategory string `json:"subcategory"`
}

// Site is an in-memory catalog shared by the fake page and the fixture server.
type Site struct {
	// Categories maps each category to its subcategories.
	Categories map[string][]string `json:"categories"`
	Items      []Item              `json:"items"`
}

// FormatPrice renders n the way the storefront does: digit groups separated
// by sep and a trailing ruble sign.
func FormatPrice(n int, sep string) string {
	s := strconv.Itoa(n)
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteString(sep)
		}
		b.WriteRune(r)
	}
	b.WriteString("\u00a0₽")
	return b.String()
}

// separators cycles through the whitespace variants seen on real listings.
var separators = []string{"\u00a0", " ", "\u2009", "\u202f"}

func item(title, brand, category, subcategory string, price int) Item {
	sep := separators[len(title)%len(separators)]
	return Item{
		Title:       title,
		Price:       price,
		PriceText:   FormatPrice(price, sep),
		Brand:       brand,
		Category:    category,
		Subcategory: subcategory,
	}
}

// LaptopCount is the number of Lenovo and HP laptops priced 10000..20000 in
// the site returned by Laptops.
const LaptopCount = 18

// Laptops returns a catalog whose Electronics/Laptops listing holds
// LaptopCount Lenovo and HP laptops between 10000 and 20000 plus decoys that
// the filters must hide.
func Laptops() Site {
	lap := func(title, brand string, price int) Item {
		return item(title, brand, "Electronics", "Laptops", price)
	}
	return Site{
		Categories: map[string][]string{
			"Electronics": {"Laptops", "Tablets"},
			"Home":        {"Kettles"},
		},
		Items: []Item{
			lap("Lenovo IdeaPad 1 15ALC7", "Lenovo", 18990),
			lap("HP 15s-fq5000", "HP", 17490),
			lap("ASUS VivoBook 15 X1504", "Asus", 15990),
			lap("Lenovo IdeaPad 3 14ITL6", "Lenovo", 19990),
			lap("HP 250 G9", "HP", 16990),
			lap("Lenovo V15 G3 IAP", "Lenovo", 14990),
			lap("Lenovo Legion 5 Pro 16ARH7H", "Lenovo", 89990),
			lap("HP 255 G10", "HP", 15490),
			lap("Lenovo V14 G4 AMN", "Lenovo", 13990),
			lap("HP Pavilion 15-eg3", "HP", 19490),
			lap("Lenovo ThinkPad E14 Gen 5", "Lenovo", 19890),
			lap("HP Stream 11-ak0", "HP", 8990),
			lap("HP ProBook 450 G10", "HP", 19790),
			lap("Lenovo IdeaPad Slim 3 15IRU8", "Lenovo", 17990),
			lap("HP 14s-dq5000", "HP", 12990),
			lap("Lenovo LOQ 15IAX9", "Lenovo", 19999),
			lap("HP Victus 15-fb0", "HP", 19900),
			lap("Acer Aspire 3 A315", "Acer", 12490),
			lap("Lenovo V17 G4 IRU", "Lenovo", 18490),
			lap("HP 470 G9", "HP", 10990),
			lap("lenovo Chromebook 3 11AST5", "Lenovo", 10000),
			lap("HP 15-fd0000", "HP", 20000),
			item("Lenovo Tab M10 TB328", "Lenovo", "Electronics", "Tablets", 12990),
			item("Xiaomi Smart Kettle 2", "Xiaomi", "Home", "Kettles", 3490),
		},
	}
}
