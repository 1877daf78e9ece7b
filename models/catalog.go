package models

import (
	"strconv"
	"strings"
)

const (
	AllCategories = "all"
	PriceOnQuote  = "Sur devis"
)

type ServiceCategory struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Slug         string  `json:"slug"`
	Description  *string `json:"description"`
	Icon         string  `json:"icon"`
	DisplayOrder int     `json:"display_order"`
	IsActive     bool    `json:"is_active"`
}

// Service is a row of the services_by_category view.
type Service struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Slug             string   `json:"slug"`
	ShortDescription string   `json:"short_description"`
	PriceMin         *float64 `json:"price_min"`
	PriceMax         *float64 `json:"price_max"`
	PriceLabel       *string  `json:"price_label"`
	Duration         *string  `json:"duration"`
	Difficulty       *string  `json:"difficulty"`
	Includes         []string `json:"includes"`
	IsPopular        bool     `json:"is_popular"`
	IsFeatured       bool     `json:"is_featured"`
	Badge            *string  `json:"badge"`
	CategoryName     string   `json:"category_name"`
	CategorySlug     string   `json:"category_slug"`
	Icon             string   `json:"icon"`
	PriceDisplay     string   `json:"price_display,omitempty"`
}

// FormatPrice renders the price range shown on the service cards.
func (s Service) FormatPrice() string {
	if s.PriceMin == nil || *s.PriceMin == 0 {
		return PriceOnQuote
	}
	low := strconv.FormatFloat(*s.PriceMin, 'f', -1, 64) + "€"
	if s.PriceMax == nil || *s.PriceMax == *s.PriceMin {
		return low
	}
	return low + " - " + strconv.FormatFloat(*s.PriceMax, 'f', -1, 64) + "€"
}

// FilterServices keeps the services of a category slug ("all" or empty keeps
// every category) whose name or short description contains query, ignoring case.
func FilterServices(services []Service, category, query string) []Service {
	query = strings.ToLower(strings.TrimSpace(query))
	filtered := make([]Service, 0, len(services))
	for _, s := range services {
		if category != "" && category != AllCategories && s.CategorySlug != category {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(s.Name), query) &&
			!strings.Contains(strings.ToLower(s.ShortDescription), query) {
			continue
		}
		filtered = append(filtered, s)
	}
	return filtered
}
