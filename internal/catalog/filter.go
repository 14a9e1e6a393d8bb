// Package catalog filters, sorts and pages the storefront product grid.
package catalog

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"storefront/internal/models"
)

// Sort orders
const (
	SortFeatured  = ""
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
	SortNewest    = "newest"
)

// Availability values
const (
	AvailabilityAny        = ""
	AvailabilityInStock    = "in_stock"
	AvailabilityOutOfStock = "out_of_stock"
)

// DefaultVisible is the grid size before the first "load more".
const DefaultVisible = 12

// Filter describes one view of the product grid.
type Filter struct {
	Category     string
	PriceBracket string
	Finish       string
	Availability string
	Attributes   map[string]string
	Sort         string
	Visible      int
}

// Page is the visible slice of a filtered, sorted grid.
type Page struct {
	Items   []models.Product `json:"items"`
	Total   int              `json:"total"`
	Visible int              `json:"visible"`
	HasMore bool             `json:"has_more"`
}

// PriceRange is an inclusive price range. Max of zero means unbounded.
type PriceRange struct {
	Min int64
	Max int64
}

// Contains reports whether price falls inside the range.
func (r PriceRange) Contains(price int64) bool {
	if price < r.Min {
		return false
	}
	return r.Max == 0 || price <= r.Max
}

// ParsePriceBracket reads labels like "₹3000 – ₹7999", "3000-7999",
// "Under ₹3000" or "₹15000+". Digit grouping commas are ignored.
func ParsePriceBracket(label string) (PriceRange, error) {
	var nums []int64
	var cur strings.Builder
	flush := func() error {
		if cur.Len() == 0 {
			return nil
		}
		n, err := strconv.ParseInt(cur.String(), 10, 64)
		if err != nil {
			return err
		}
		nums = append(nums, n)
		cur.Reset()
		return nil
	}
	for _, r := range label {
		switch {
		case unicode.IsDigit(r):
			cur.WriteRune(r)
		case r == ',':
		default:
			if err := flush(); err != nil {
				return PriceRange{}, err
			}
		}
	}
	if err := flush(); err != nil {
		return PriceRange{}, err
	}

	lower := strings.ToLower(label)
	switch len(nums) {
	case 1:
		if strings.Contains(lower, "under") || strings.Contains(lower, "below") {
			return PriceRange{Min: 0, Max: nums[0] - 1}, nil
		}
		return PriceRange{Min: nums[0]}, nil
	case 2:
		if nums[1] < nums[0] {
			return PriceRange{}, fmt.Errorf("price bracket %q: upper bound below lower bound", label)
		}
		return PriceRange{Min: nums[0], Max: nums[1]}, nil
	default:
		return PriceRange{}, fmt.Errorf("price bracket %q: expected one or two amounts", label)
	}
}

// Apply filters, sorts and slices products. The input slice is not modified.
func Apply(products []models.Product, f Filter) (Page, error) {
	var bracket *PriceRange
	if f.PriceBracket != "" {
		r, err := ParsePriceBracket(f.PriceBracket)
		if err != nil {
			return Page{}, err
		}
		bracket = &r
	}

	matched := make([]models.Product, 0, len(products))
	for _, p := range products {
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		if bracket != nil && !bracket.Contains(p.Price) {
			continue
		}
		if f.Finish != "" && p.Finish != f.Finish {
			continue
		}
		switch f.Availability {
		case AvailabilityInStock:
			if p.StockQuantity <= 0 {
				continue
			}
		case AvailabilityOutOfStock:
			if p.StockQuantity > 0 {
				continue
			}
		}
		if !matchAttributes(p.Attributes, f.Attributes) {
			continue
		}
		matched = append(matched, p)
	}

	switch f.Sort {
	case SortPriceAsc:
		sort.SliceStable(matched, func(i, j int) bool { return matched[i].Price < matched[j].Price })
	case SortPriceDesc:
		sort.SliceStable(matched, func(i, j int) bool { return matched[i].Price > matched[j].Price })
	case SortNewest:
		sort.SliceStable(matched, func(i, j int) bool { return matched[i].IsNew && !matched[j].IsNew })
	}

	visible := f.Visible
	if visible <= 0 {
		visible = DefaultVisible
	}
	end := visible
	if end > len(matched) {
		end = len(matched)
	}

	return Page{
		Items:   matched[:end],
		Total:   len(matched),
		Visible: end,
		HasMore: end < len(matched),
	}, nil
}

func matchAttributes(have models.Attributes, want map[string]string) bool {
	for k, v := range want {
		if v == "" {
			continue
		}
		if have[k] != v {
			return false
		}
	}
	return true
}

// StockLabel derives the display label for a stock quantity.
func StockLabel(qty, lowThreshold int) string {
	switch {
	case qty <= 0:
		return "Out of Stock"
	case qty <= lowThreshold:
		return fmt.Sprintf("Only %d Left", qty)
	default:
		return "In Stock"
	}
}
