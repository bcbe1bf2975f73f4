// internal/catalog/catalogtest/fake.go
package catalogtest

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	json "github.com/json-iterator/go"

	"github.com/xkilldash9x/marketcheck/internal/browser"
	"github.com/xkilldash9x/marketcheck/internal/catalog"
	"github.com/xkilldash9x/marketcheck/internal/locator"
)

// ErrScripted is a ready-made error for Options.FailEvaluate.
var ErrScripted = errors.New("script evaluation failed")

// Options tune the behavior of a fake page.
type Options struct {
	// CardHeight and Viewport are in pixels. Defaults: 100 and 800.
	CardHeight int
	Viewport   int
	// PageSize is how many cards render initially and per lazy load.
	// Zero renders the whole listing at once.
	PageSize int
	// GrowForever keeps the document taller than the scroll position so the
	// bottom is never reached.
	GrowForever bool
	// IgnorePriceFilter and IgnoreBrandFilter make the storefront ignore the
	// corresponding filters, simulating a broken backend.
	IgnorePriceFilter bool
	IgnoreBrandFilter bool
	// FailEvaluate makes every script evaluation fail.
	FailEvaluate error
}

// Page is an in-memory storefront implementing catalog.Page. It interprets
// the selectors produced from a locator.Set, so workflows can be exercised
// without a browser. It is safe for concurrent use.
type Page struct {
	site     Site
	opts     Options
	matchers []matcher

	mu          sync.Mutex
	url         string
	menuOpen    bool
	hovered     string
	category    string
	subcategory string
	minPrice    int
	maxPrice    int
	hasMin      bool
	hasMax      bool
	brands      map[string]bool
	typed       string
	query       string
	rendered    int
	offset      int
	actions     []string
	screenshots []string
	closed      bool
}

var _ catalog.Page = (*Page)(nil)

type matcher struct {
	key      string
	prefix   string
	suffix   string
	template bool
}

// NewPage builds a fake page for site that understands the selectors of set.
func NewPage(site Site, set *locator.Set, opts Options) *Page {
	if opts.CardHeight <= 0 {
		opts.CardHeight = 100
	}
	if opts.Viewport <= 0 {
		opts.Viewport = 800
	}
	p := &Page{site: site, opts: opts, brands: map[string]bool{}}
	for _, key := range set.Keys() {
		tmpl, _ := set.Template(key)
		tokens, _ := set.Placeholders(key)
		m := matcher{key: key, prefix: tmpl}
		if len(tokens) > 0 {
			i := strings.Index(tmpl, tokens[0])
			m.prefix, m.suffix, m.template = tmpl[:i], tmpl[i+len(tokens[0]):], true
		}
		p.matchers = append(p.matchers, m)
	}
	return p
}

// match maps a concrete selector back to its locator key and substituted value.
func (p *Page) match(sel string) (key, value string, ok bool) {
	for _, m := range p.matchers {
		if !m.template {
			if sel == m.prefix {
				return m.key, "", true
			}
			continue
		}
		if len(sel) >= len(m.prefix)+len(m.suffix) && strings.HasPrefix(sel, m.prefix) && strings.HasSuffix(sel, m.suffix) {
			return m.key, sel[len(m.prefix) : len(sel)-len(m.suffix)], true
		}
	}
	return "", "", false
}

func (p *Page) record(format string, args ...interface{}) {
	p.actions = append(p.actions, fmt.Sprintf(format, args...))
}

// Actions returns every interaction performed so far, oldest first.
func (p *Page) Actions() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.actions...)
}

// Screenshots returns the labels of every screenshot taken.
func (p *Page) Screenshots() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.screenshots...)
}

// Offset returns the current vertical scroll position.
func (p *Page) Offset() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.offset
}

// Close marks the page closed; later calls fail with browser.ErrSessionClosed.
func (p *Page) Close(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Closed reports whether Close was called.
func (p *Page) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Page) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.closed {
		return browser.ErrSessionClosed
	}
	return nil
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(ctx); err != nil {
		return err
	}
	p.record("navigate %s", url)
	p.url = url
	p.menuOpen, p.hovered, p.category, p.subcategory, p.query, p.typed = false, "", "", "", "", ""
	p.resetFilters()
	return nil
}

func (p *Page) resetFilters() {
	p.hasMin, p.hasMax = false, false
	p.brands = map[string]bool{}
	p.resetListing()
}

func (p *Page) resetListing() {
	p.offset = 0
	p.rendered = p.opts.PageSize
}

// listing returns every product the storefront would currently show.
func (p *Page) listing() []Item {
	var out []Item
	if p.query != "" {
		q := strings.ToLower(p.query)
		for _, it := range p.site.Items {
			if strings.Contains(strings.ToLower(it.Title), q) {
				out = append(out, it)
			}
		}
		return out
	}
	if p.subcategory == "" {
		return nil
	}
	for _, it := range p.site.Items {
		if it.Category != p.category || it.Subcategory != p.subcategory {
			continue
		}
		if !p.opts.IgnorePriceFilter {
			if p.hasMin && it.Price < p.minPrice {
				continue
			}
			if p.hasMax && it.Price > p.maxPrice {
				continue
			}
		}
		if !p.opts.IgnoreBrandFilter && len(p.brands) > 0 && !p.brands[strings.ToLower(it.Brand)] {
			continue
		}
		out = append(out, it)
	}
	return out
}

// cards returns the rendered part of the listing.
func (p *Page) cards() []Item {
	all := p.listing()
	if p.opts.PageSize > 0 && p.rendered < len(all) {
		return all[:p.rendered]
	}
	return all
}

func (p *Page) height() int {
	if p.opts.GrowForever {
		return p.offset + p.opts.Viewport + p.opts.CardHeight
	}
	h := len(p.cards()) * p.opts.CardHeight
	if h < p.opts.Viewport {
		return p.opts.Viewport
	}
	return h
}

func (p *Page) visible(key, value string) bool {
	if p.url == "" {
		return false
	}
	switch key {
	case locator.SearchInput, locator.CatalogButton:
		return true
	case locator.CatalogCategory:
		_, ok := p.site.Categories[value]
		return p.menuOpen && ok
	case locator.CatalogSubcategory:
		return p.menuOpen && p.hovered != "" && contains(p.site.Categories[p.hovered], value)
	case locator.FilterPriceMin, locator.FilterPriceMax:
		return p.subcategory != "" && p.query == ""
	case locator.FilterBrand:
		if p.subcategory == "" || p.query != "" {
			return false
		}
		for _, it := range p.site.Items {
			if it.Category == p.category && it.Subcategory == p.subcategory && strings.EqualFold(it.Brand, value) {
				return true
			}
		}
		return false
	case locator.Card:
		return len(p.cards()) > 0
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (p *Page) WaitVisible(ctx context.Context, sel string) (browser.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(ctx); err != nil {
		return nil, err
	}
	key, value, ok := p.match(sel)
	if !ok || !p.visible(key, value) {
		return nil, fmt.Errorf("%w: %s", browser.ErrElementNotFound, sel)
	}
	if key == locator.Card {
		return &element{page: p, key: key, item: p.cards()[0], index: 0}, nil
	}
	return &element{page: p, key: key, value: value}, nil
}

func (p *Page) FindAll(ctx context.Context, sel string) ([]browser.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(ctx); err != nil {
		return nil, err
	}
	key, _, ok := p.match(sel)
	if !ok || key != locator.Card {
		return nil, nil
	}
	p.record("collect %d cards", len(p.cards()))
	var out []browser.Element
	for i, it := range p.cards() {
		out = append(out, &element{page: p, key: key, item: it, index: i})
	}
	return out, nil
}

func (p *Page) Evaluate(ctx context.Context, script string, res interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(ctx); err != nil {
		return err
	}
	if p.opts.FailEvaluate != nil {
		return p.opts.FailEvaluate
	}

	var dy int
	if _, err := fmt.Sscanf(script, catalog.ScrollByScript, &dy); err == nil {
		p.scrollBy(dy)
		return nil
	}
	if script == catalog.MetricsScript {
		data, err := json.Marshal(catalog.ScrollMetrics{
			Offset:   float64(p.offset),
			Viewport: float64(p.opts.Viewport),
			Height:   float64(p.height()),
		})
		if err != nil {
			return err
		}
		if res == nil {
			return nil
		}
		return json.Unmarshal(data, res)
	}
	return fmt.Errorf("unsupported script: %s", script)
}

func (p *Page) scrollBy(dy int) {
	p.record("scroll %d", dy)
	p.offset += dy
	if p.offset < 0 {
		p.offset = 0
	}
	if limit := p.height() - p.opts.Viewport; !p.opts.GrowForever && p.offset > limit {
		p.offset = limit
	}
	// Nearing the bottom loads the next page of cards.
	if p.opts.PageSize > 0 && p.offset+p.opts.Viewport >= p.height()-p.opts.CardHeight/2 && p.rendered < len(p.listing()) {
		p.rendered += p.opts.PageSize
	}
}

func (p *Page) Title(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(ctx); err != nil {
		return "", err
	}
	switch {
	case p.query != "":
		return "Search results: " + p.query + " | Fixture Market", nil
	case p.subcategory != "":
		return p.subcategory + " in " + p.category + " | Fixture Market", nil
	default:
		return "Fixture Market", nil
	}
}

func (p *Page) Screenshot(_ context.Context, label string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.screenshots = append(p.screenshots, label)
}

// element is a handle to a node of the fake page.
type element struct {
	page  *Page
	key   string
	value string
	// item and index identify cards; field is set for a card's title or price.
	item  Item
	index int
	field string
}

func (e *element) String() string {
	if e.key == locator.Card {
		if e.field != "" {
			return fmt.Sprintf("%s[%d]/%s", e.key, e.index+1, e.field)
		}
		return fmt.Sprintf("%s[%d]", e.key, e.index+1)
	}
	if e.value != "" {
		return e.key + "=" + e.value
	}
	return e.key
}

func (e *element) Click(ctx context.Context) error {
	p := e.page
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(ctx); err != nil {
		return err
	}
	p.record("click %s", e)
	switch e.key {
	case locator.CatalogButton:
		p.menuOpen = !p.menuOpen
	case locator.CatalogSubcategory:
		p.category, p.subcategory = p.hovered, e.value
		p.menuOpen, p.query = false, ""
		p.resetFilters()
	case locator.FilterBrand:
		b := strings.ToLower(e.value)
		if p.brands[b] {
			delete(p.brands, b)
		} else {
			p.brands[b] = true
		}
		p.resetListing()
	}
	return nil
}

func (e *element) Hover(ctx context.Context) error {
	p := e.page
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(ctx); err != nil {
		return err
	}
	p.record("hover %s", e)
	if e.key == locator.CatalogCategory {
		p.hovered = e.value
	}
	return nil
}

func (e *element) SendKeys(ctx context.Context, text string) error {
	p := e.page
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(ctx); err != nil {
		return err
	}
	p.record("keys %s=%s", e, text)
	switch e.key {
	case locator.SearchInput:
		p.typed += text
	case locator.FilterPriceMin, locator.FilterPriceMax:
		n, err := strconv.Atoi(text)
		if err != nil {
			return fmt.Errorf("price field rejects %q", text)
		}
		if e.key == locator.FilterPriceMin {
			p.minPrice, p.hasMin = n, true
		} else {
			p.maxPrice, p.hasMax = n, true
		}
		p.resetListing()
	}
	return nil
}

func (e *element) Submit(ctx context.Context) error {
	p := e.page
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(ctx); err != nil {
		return err
	}
	p.record("submit %s", e)
	if e.key == locator.SearchInput {
		p.query, p.typed = p.typed, ""
		p.resetListing()
	}
	return nil
}

func (e *element) Text(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	switch e.field {
	case locator.CardTitle:
		return e.item.Title, nil
	case locator.CardPrice:
		return e.item.PriceText, nil
	}
	if e.key == locator.Card {
		return strings.TrimSpace(e.item.Title + " " + e.item.PriceText), nil
	}
	return e.value, nil
}

func (e *element) Find(ctx context.Context, sel string) (browser.Element, error) {
	p := e.page
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(ctx); err != nil {
		return nil, err
	}
	key, _, ok := p.match(sel)
	if !ok || e.key != locator.Card || e.field != "" {
		return nil, fmt.Errorf("%w: %s", browser.ErrElementNotFound, sel)
	}
	switch {
	case key == locator.CardTitle && e.item.Title != "":
	case key == locator.CardPrice && e.item.PriceText != "":
	default:
		return nil, fmt.Errorf("%w: %s", browser.ErrElementNotFound, sel)
	}
	return &element{page: p, key: e.key, item: e.item, index: e.index, field: key}, nil
}
