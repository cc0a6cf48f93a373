package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const defaultOpenFoodFactsURL = "https://world.openfoodfacts.org"

// openFoodFacts is a small client for the Open Food Facts product API.
type openFoodFacts struct {
	BaseURL    string
	HTTPClient *http.Client
}

type offResponse struct {
	Status  int        `json:"status"`
	Product offProduct `json:"product"`
}

type offSearchResponse struct {
	Products []offProduct `json:"products"`
}

type offProduct struct {
	Code           string         `json:"code"`
	ProductName    string         `json:"product_name"`
	Brands         string         `json:"brands"`
	Quantity       string         `json:"quantity"`
	ServingSize    string         `json:"serving_size"`
	ServingQty     float64        `json:"serving_quantity"`
	CategoriesTags []string       `json:"categories_tags"`
	Nutriments     map[string]any `json:"nutriments"`
}

func (c *openFoodFacts) base() string {
	base := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if base == "" {
		base = defaultOpenFoodFactsURL
	}
	return base
}

func (c *openFoodFacts) client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 12 * time.Second}
}

// get fetches u and decodes the JSON body into out.
func (c *openFoodFacts) get(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create openfoodfacts request: %w", err)
	}
	req.Header.Set("User-Agent", "nutrivision-api/1.0")

	resp, err := c.client().Do(req)
	if err != nil {
		return fmt.Errorf("execute openfoodfacts request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read openfoodfacts response: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("openfoodfacts request failed with status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode openfoodfacts response: %w", err)
	}
	return nil
}

// LookupBarcode returns the product as a FoodItem. Per-serving values are
// preferred over per-100g values. Unknown barcodes return errNotFound.
func (c *openFoodFacts) LookupBarcode(ctx context.Context, barcode string) (FoodItem, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return FoodItem{}, invalid("input", "barcode is required")
	}
	var parsed offResponse
	if err := c.get(ctx, fmt.Sprintf("%s/api/v2/product/%s.json", c.base(), url.PathEscape(barcode)), &parsed); err != nil {
		return FoodItem{}, err
	}
	if parsed.Status != 1 || strings.TrimSpace(parsed.Product.ProductName) == "" {
		return FoodItem{}, fmt.Errorf("barcode %q: %w", barcode, errNotFound)
	}
	return productToFood(parsed.Product, true), nil
}

// Search returns up to limit products matching query, per 100 g. Products
// with no energy value are skipped.
func (c *openFoodFacts) Search(ctx context.Context, query string, limit int) ([]FoodItem, error) {
	if limit <= 0 {
		limit = 10
	}
	u := fmt.Sprintf("%s/cgi/search.pl?search_terms=%s&search_simple=1&action=process&json=1&page_size=%d",
		c.base(), url.QueryEscape(strings.TrimSpace(query)), limit)

	var parsed offSearchResponse
	if err := c.get(ctx, u, &parsed); err != nil {
		return nil, err
	}
	foods := []FoodItem{}
	for _, p := range parsed.Products {
		if strings.TrimSpace(p.ProductName) == "" {
			continue
		}
		f := productToFood(p, false)
		if f.Calories <= 0 {
			continue
		}
		foods = append(foods, f)
	}
	return foods, nil
}

// productToFood maps a product. With preferServing the *_serving nutriments
// win over *_100g and the portion is the product's serving size.
func productToFood(p offProduct, preferServing bool) FoodItem {
	suffixes := []string{"_100g"}
	portion := "100g"
	if preferServing {
		suffixes = []string{"_serving", "_100g"}
		switch {
		case strings.TrimSpace(p.ServingSize) != "":
			portion = strings.TrimSpace(p.ServingSize)
		case strings.TrimSpace(p.Quantity) != "":
			portion = strings.TrimSpace(p.Quantity)
		}
	}

	name := strings.TrimSpace(p.ProductName)
	if brand := strings.TrimSpace(p.Brands); brand != "" {
		name = name + " - " + brand
	}

	f := FoodItem{
		ID:       uuid.NewString(),
		Name:     name,
		Calories: nutrientValue(p.Nutriments, "energy-kcal", suffixes),
		ProteinG: nutrientValue(p.Nutriments, "proteins", suffixes),
		CarbsG:   nutrientValue(p.Nutriments, "carbohydrates", suffixes),
		FatG:     nutrientValue(p.Nutriments, "fat", suffixes),
		Portion:  portion,
	}
	if v, ok := nutrientLookup(p.Nutriments, "fiber", suffixes); ok {
		f.FiberG = &v
	}
	// Open Food Facts reports sodium in grams.
	if v, ok := nutrientLookup(p.Nutriments, "sodium", suffixes); ok {
		mg := v * 1000
		f.SodiumMG = &mg
	}
	if preferServing && p.ServingQty > 0 {
		w := p.ServingQty
		f.PortionWeight = &w
	}
	cat := categoryFromTags(p.CategoriesTags)
	f.Category = &cat
	return f
}

func nutrientValue(n map[string]any, base string, suffixes []string) float64 {
	v, _ := nutrientLookup(n, base, suffixes)
	return v
}

func nutrientLookup(n map[string]any, base string, suffixes []string) (float64, bool) {
	for _, s := range suffixes {
		if v, ok := parseFloatAny(n[base+s]); ok {
			return v, true
		}
	}
	return 0, false
}

func parseFloatAny(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// categoryFromTags maps Open Food Facts category tags to a food category.
// The first matching rule wins; anything else is processed.
func categoryFromTags(tags []string) FoodCategory {
	rules := []struct {
		needles []string
		cat     FoodCategory
	}{
		{[]string{"beverages", "drinks", "waters", "juices", "sodas"}, "beverages"},
		{[]string{"dairies", "milks", "cheeses", "yogurts"}, "dairy"},
		{[]string{"fruits"}, "fruits"},
		{[]string{"vegetables", "salads"}, "vegetables"},
		{[]string{"meats", "fishes", "seafood", "eggs", "poultry", "legumes"}, "protein"},
		{[]string{"fats", "oils", "butters", "nuts"}, "fats"},
		{[]string{"snacks", "sweets", "biscuits", "chocolates"}, "snacks"},
		{[]string{"cereals", "breads", "pastas", "rices", "starches"}, "carbs"},
	}
	for _, r := range rules {
		for _, tag := range tags {
			for _, needle := range r.needles {
				if strings.Contains(tag, needle) {
					return r.cat
				}
			}
		}
	}
	return "processed"
}
