// internal/catalog/catalogtest/server.go
package catalogtest

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	json "github.com/json-iterator/go"
)

// NewServer serves site as a single-page storefront whose markup matches
// config.DefaultLocators. Cards load lazily pageSize at a time while
// scrolling. The server is closed when the test ends.
func NewServer(t testing.TB, site Site, pageSize int) *httptest.Server {
	t.Helper()
	data, err := json.Marshal(site)
	if err != nil {
		t.Fatalf("failed to encode fixture site: %v", err)
	}
	page := strings.NewReplacer(
		"{{DATA}}", string(data),
		"{{PAGE}}", strconv.Itoa(pageSize),
	).Replace(storefrontHTML)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(page))
	}))
	t.Cleanup(srv.Close)
	return srv
}

const storefrontHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Fixture Market</title>
<style>
  body { margin: 0; font-family: sans-serif; }
  header { height: 60px; display: flex; gap: 16px; align-items: center; padding: 0 16px; }
  #menu { display: none; position: absolute; top: 60px; left: 0; width: 640px; height: 400px; background: #fff; z-index: 10; }
  #menu.open { display: flex; }
  #categories { width: 220px; }
  .category { padding: 12px; cursor: pointer; }
  .panel { display: none; padding: 12px; }
  .panel.active { display: block; }
  .panel a { display: block; padding: 8px; }
  #filters { display: none; position: fixed; top: 60px; left: 0; width: 220px; padding: 8px; }
  #filters.active { display: block; }
  #filters label { display: block; padding: 6px 0; }
  #listing { margin-left: 240px; }
  article { height: 180px; box-sizing: border-box; border-bottom: 1px solid #ccc; padding: 8px; }
</style>
</head>
<body>
<header>
  <button data-testid="catalog-button" id="catalog-button">Catalog</button>
  <input name="text" id="search" placeholder="Search" autocomplete="off">
</header>
<div id="menu"><div id="categories"></div><div id="panels"></div></div>
<aside id="filters">
  <input data-testid="filter-price-min" id="min" placeholder="from">
  <input data-testid="filter-price-max" id="max" placeholder="to">
  <div id="brands"></div>
</aside>
<main id="listing"></main>
<script>
const DATA = {{DATA}};
const PAGE = {{PAGE}};
const state = { category: '', subcategory: '', min: null, max: null, brands: new Set(), query: '', shown: PAGE };
const menu = document.getElementById('menu');
const listing = document.getElementById('listing');

function el(tag, attrs, text) {
  const e = document.createElement(tag);
  for (const [k, v] of Object.entries(attrs || {})) e.setAttribute(k, v);
  if (text !== undefined) e.textContent = text;
  return e;
}

function matches() {
  if (state.query) {
    const q = state.query.toLowerCase();
    return DATA.items.filter(i => i.title.toLowerCase().includes(q));
  }
  if (!state.subcategory) return [];
  return DATA.items.filter(i =>
    i.category === state.category && i.subcategory === state.subcategory &&
    (state.min === null || i.price >= state.min) &&
    (state.max === null || i.price <= state.max) &&
    (state.brands.size === 0 || state.brands.has(i.brand.toLowerCase())));
}

function render(reset) {
  if (reset) { state.shown = PAGE; window.scrollTo(0, 0); }
  listing.innerHTML = '';
  for (const i of matches().slice(0, state.shown)) {
    const card = el('article', { 'data-testid': 'product-card' });
    if (i.title) card.appendChild(el('h3', { 'data-testid': 'product-title' }, i.title));
    if (i.priceText) card.appendChild(el('span', { 'data-testid': 'product-price' }, i.priceText));
    listing.appendChild(card);
  }
}

function showFilters() {
  const filters = document.getElementById('filters');
  filters.classList.toggle('active', !!state.subcategory && !state.query);
  const brands = document.getElementById('brands');
  brands.innerHTML = '';
  const seen = new Set();
  for (const i of DATA.items) {
    if (i.category !== state.category || i.subcategory !== state.subcategory || seen.has(i.brand)) continue;
    seen.add(i.brand);
    const label = el('label', { 'data-testid': 'filter-brand' });
    const box = el('input', { type: 'checkbox' });
    box.addEventListener('change', () => {
      const b = i.brand.toLowerCase();
      if (box.checked) state.brands.add(b); else state.brands.delete(b);
      render(true);
    });
    label.appendChild(box);
    label.appendChild(document.createTextNode(' ' + i.brand));
    brands.appendChild(label);
  }
}

for (const [category, subs] of Object.entries(DATA.categories)) {
  const item = el('div', { 'data-testid': 'catalog-category', 'class': 'category' }, category);
  const panel = el('div', { 'class': 'panel' });
  for (const sub of subs) {
    const link = el('a', { 'data-testid': 'catalog-subcategory', href: '#' }, sub);
    link.addEventListener('click', ev => {
      ev.preventDefault();
      Object.assign(state, { category, subcategory: sub, min: null, max: null, query: '' });
      state.brands.clear();
      document.getElementById('min').value = '';
      document.getElementById('max').value = '';
      menu.classList.remove('open');
      document.title = sub + ' in ' + category + ' | Fixture Market';
      showFilters();
      render(true);
    });
    panel.appendChild(link);
  }
  item.addEventListener('mouseenter', () => {
    for (const p of document.querySelectorAll('.panel')) p.classList.remove('active');
    panel.classList.add('active');
  });
  document.getElementById('categories').appendChild(item);
  document.getElementById('panels').appendChild(panel);
}

document.getElementById('catalog-button').addEventListener('click', () => menu.classList.toggle('open'));

for (const id of ['min', 'max']) {
  document.getElementById(id).addEventListener('input', ev => {
    const n = parseInt(ev.target.value.replace(/\D/g, ''), 10);
    state[id] = isNaN(n) ? null : n;
    render(true);
  });
}

document.getElementById('search').addEventListener('keydown', ev => {
  if (ev.key !== 'Enter') return;
  state.query = ev.target.value;
  ev.target.value = '';
  document.title = 'Search results: ' + state.query + ' | Fixture Market';
  showFilters();
  render(true);
});

window.addEventListener('scroll', () => {
  const bottom = window.pageYOffset + window.innerHeight;
  if (bottom >= document.documentElement.scrollHeight - 200 && state.shown < matches().length) {
    state.shown += PAGE;
    render(false);
  }
});
</script>
</body>
</html>`
