// internal/catalog/workflow.go
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/xkilldash9x/marketcheck/internal/browser"
	"github.com/xkilldash9x/marketcheck/internal/config"
	"github.com/xkilldash9x/marketcheck/internal/locator"
)

// Page is the part of a browser session the workflow drives. Selectors are
// XPath expressions. *browser.Session satisfies it.
type Page interface {
	Navigate(ctx context.Context, url string) error
	WaitVisible(ctx context.Context, xpath string) (browser.Element, error)
	FindAll(ctx context.Context, xpath string) ([]browser.Element, error)
	Evaluate(ctx context.Context, script string, res interface{}) error
	Title(ctx context.Context) (string, error)
	// Screenshot attaches a labeled capture to the report. It never fails.
	Screenshot(ctx context.Context, label string)
}

var _ Page = (*browser.Session)(nil)

// Workflow turns catalog intents (open a category, filter, collect products,
// search) into browser actions on a single page.
type Workflow struct {
	page     Page
	locators *locator.Set
	scroll   config.ScrollConfig
	logger   *zap.Logger
}

// NewWorkflow binds a workflow to page. Locators must already be validated.
func NewWorkflow(page Page, locators *locator.Set, scroll config.ScrollConfig, logger *zap.Logger) *Workflow {
	return &Workflow{
		page:     page,
		locators: locators,
		scroll:   scroll,
		logger:   logger.Named("workflow"),
	}
}

// OpenSite navigates to url.
func (w *Workflow) OpenSite(ctx context.Context, url string) error {
	w.logger.Info("Opening site.", zap.String("url", url))
	if err := w.page.Navigate(ctx, url); err != nil {
		return err
	}
	w.page.Screenshot(ctx, "Open site: "+url)
	return nil
}

// ChooseCategory opens the catalog menu, hovers the category so its panel
// renders and clicks the subcategory.
func (w *Workflow) ChooseCategory(ctx context.Context, category, subcategory string) error {
	w.logger.Info("Choosing category.", zap.String("category", category), zap.String("subcategory", subcategory))

	menu, err := w.waitFor(ctx, locator.CatalogButton, "")
	if err != nil {
		return err
	}
	if err := menu.Click(ctx); err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}

	cat, err := w.waitFor(ctx, locator.CatalogCategory, category)
	if err != nil {
		return err
	}
	if err := cat.Hover(ctx); err != nil {
		return fmt.Errorf("failed to hover category %q: %w", category, err)
	}

	sub, err := w.waitFor(ctx, locator.CatalogSubcategory, subcategory)
	if err != nil {
		return err
	}
	if err := sub.Click(ctx); err != nil {
		return fmt.Errorf("failed to open subcategory %q: %w", subcategory, err)
	}
	return nil
}

// SetFilters fills the price bounds and ticks each brand in order. After
// every interaction it waits for a product card so the next action sees the
// re-rendered listing.
func (w *Workflow) SetFilters(ctx context.Context, minPrice, maxPrice int, brands []string) error {
	w.logger.Info("Setting filters.",
		zap.Int("min_price", minPrice),
		zap.Int("max_price", maxPrice),
		zap.Strings("brands", brands))

	if err := w.fill(ctx, locator.FilterPriceMin, strconv.Itoa(minPrice)); err != nil {
		return err
	}
	if err := w.fill(ctx, locator.FilterPriceMax, strconv.Itoa(maxPrice)); err != nil {
		return err
	}
	for _, brand := range brands {
		box, err := w.waitFor(ctx, locator.FilterBrand, brand)
		if err != nil {
			return err
		}
		if err := box.Click(ctx); err != nil {
			return fmt.Errorf("failed to select brand %q: %w", brand, err)
		}
		if err := w.waitListing(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (w *Workflow) fill(ctx context.Context, key, value string) error {
	field, err := w.waitFor(ctx, key, "")
	if err != nil {
		return err
	}
	if err := field.SendKeys(ctx, value); err != nil {
		return fmt.Errorf("failed to fill %s: %w", key, err)
	}
	return w.waitListing(ctx)
}

// Search types query into a freshly located search input and submits it.
func (w *Workflow) Search(ctx context.Context, query string) error {
	w.logger.Info("Searching.", zap.String("query", query))
	input, err := w.waitFor(ctx, locator.SearchInput, "")
	if err != nil {
		return err
	}
	if err := input.SendKeys(ctx, query); err != nil {
		return fmt.Errorf("failed to type search query: %w", err)
	}
	if err := input.Submit(ctx); err != nil {
		return fmt.Errorf("failed to submit search: %w", err)
	}
	return nil
}

// PageTitle returns the current document title.
func (w *Workflow) PageTitle(ctx context.Context) (string, error) {
	return w.page.Title(ctx)
}

// ScrollAndCollect scrolls to the bottom to load lazy cards, back to the top,
// and then scrapes every rendered card.
func (w *Workflow) ScrollAndCollect(ctx context.Context) (Snapshot, error) {
	if err := w.scrollDown(ctx); err != nil {
		return nil, err
	}
	if err := w.scrollUp(ctx); err != nil {
		return nil, err
	}
	return w.collect(ctx)
}

func (w *Workflow) collect(ctx context.Context) (Snapshot, error) {
	cardSel, err := w.locators.Resolve(locator.Card, "")
	if err != nil {
		return nil, err
	}
	cards, err := w.page.FindAll(ctx, cardSel)
	if err != nil {
		return nil, fmt.Errorf("failed to list product cards: %w", err)
	}

	snapshot := make(Snapshot, 0, len(cards))
	for i, card := range cards {
		p, err := w.extract(ctx, card)
		if err != nil {
			return nil, fmt.Errorf("product card %d: %w", i+1, err)
		}
		snapshot = append(snapshot, p)
	}
	w.logger.Info("Collected products.", zap.Int("count", len(snapshot)))
	return snapshot, nil
}

func (w *Workflow) extract(ctx context.Context, card browser.Element) (Product, error) {
	titleSel, err := w.locators.Resolve(locator.CardTitle, "")
	if err != nil {
		return Product{}, err
	}
	priceSel, err := w.locators.Resolve(locator.CardPrice, "")
	if err != nil {
		return Product{}, err
	}

	var title string
	titleEl, err := card.Find(ctx, titleSel)
	switch {
	case errors.Is(err, browser.ErrElementNotFound):
		w.logger.Debug("Card has no title.", zap.Stringer("card", card))
	case err != nil:
		return Product{}, err
	default:
		if title, err = titleEl.Text(ctx); err != nil {
			return Product{}, fmt.Errorf("failed to read title: %w", err)
		}
	}

	priceEl, err := card.Find(ctx, priceSel)
	if errors.Is(err, browser.ErrElementNotFound) {
		return Product{}, fmt.Errorf("%w: no price element in %s", ErrPriceParse, card)
	}
	if err != nil {
		return Product{}, err
	}
	text, err := priceEl.Text(ctx)
	if err != nil {
		return Product{}, fmt.Errorf("failed to read price: %w", err)
	}
	price, err := ParsePrice(text)
	if err != nil {
		return Product{}, err
	}
	return Product{Title: title, Price: price}, nil
}

// waitFor resolves key with value and waits for the element to be visible.
func (w *Workflow) waitFor(ctx context.Context, key, value string) (browser.Element, error) {
	sel, err := w.locators.Resolve(key, value)
	if err != nil {
		return nil, err
	}
	el, err := w.page.WaitVisible(ctx, sel)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return el, nil
}

func (w *Workflow) waitListing(ctx context.Context) error {
	_, err := w.waitFor(ctx, locator.Card, "")
	return err
}
