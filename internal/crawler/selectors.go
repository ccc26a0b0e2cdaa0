package crawler

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Selectors holds the CSS selectors for the search result pages and the
// listing detail pages.
type Selectors struct {
	// Search result pages
	Pagination  string `yaml:"pagination"`
	PageAttr    string `yaml:"page_attr"`
	ListingLink string `yaml:"listing_link"`

	// Detail pages
	Price         string `yaml:"price"`
	Title         string `yaml:"title"`
	Address       string `yaml:"address"`
	Suburb        string `yaml:"suburb"`
	Bedrooms      string `yaml:"bedrooms"`
	Bathrooms     string `yaml:"bathrooms"`
	Parking       string `yaml:"parking"`
	ErfSize       string `yaml:"erf_size"`
	FloorSize     string `yaml:"floor_size"`
	ListingNumber string `yaml:"listing_number"`
	ListingDate   string `yaml:"listing_date"`

	// Overview table
	OverviewRow   string `yaml:"overview_row"`
	OverviewLabel string `yaml:"overview_label"`
	OverviewValue string `yaml:"overview_value"`
}

// DefaultSelectors returns the selectors of the property24 page layout
func DefaultSelectors() Selectors {
	return Selectors{
		Pagination:  "ul.pagination li a",
		PageAttr:    "data-pagenumber",
		ListingLink: "div.p24_tileContainer a[href*='/for-sale/']",

		Price:         ".p24_price",
		Title:         "h1",
		Address:       ".p24_address",
		Suburb:        ".p24_location",
		Bedrooms:      ".p24_featureDetails[title='Bedrooms'] span",
		Bathrooms:     ".p24_featureDetails[title='Bathrooms'] span",
		Parking:       ".p24_featureDetails[title='Parking Spaces'] span",
		ErfSize:       ".p24_featureDetails[title='Erf Size'] span",
		FloorSize:     ".p24_featureDetails[title='Floor Size'] span",
		ListingNumber: ".p24_listingNumber",
		ListingDate:   ".p24_listingDate",

		OverviewRow:   ".p24_propertyOverviewRow",
		OverviewLabel: ".p24_propertyOverviewKey",
		OverviewValue: ".p24_info",
	}
}

// LoadSelectors reads a YAML file of selector overrides. Selectors the file
// does not name keep their default.
func LoadSelectors(path string) (Selectors, error) {
	sel := DefaultSelectors()
	if path == "" {
		return sel, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return sel, fmt.Errorf("read selectors file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &sel); err != nil {
		return sel, fmt.Errorf("parse selectors file %s: %w", path, err)
	}
	return sel, nil
}
