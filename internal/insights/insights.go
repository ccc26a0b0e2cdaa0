// Package insights ranks stored listings by plot size for the report and
// the HTTP API.
package insights

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"sjsage522/propertyworker/internal/property"
)

// Listing is a stored listing with its sizes cleaned to square metres
type Listing struct {
	ListingNumber    string  `json:"listing_number"`
	URL              string  `json:"url"`
	Address          string  `json:"address"`
	Price            float64 `json:"price"`
	ErfSize          float64 `json:"erf_size"`
	FloorSize        float64 `json:"floor_size"`
	ErfToFloorRatio  float64 `json:"erf_to_floor_ratio,omitempty"`
	SubdividableArea float64 `json:"subdividable_area"`
}

var sizeReplacer = strings.NewReplacer("m²", "", "r", "", ",", "")

// CleanSize converts a displayed size or price to a number. Hectare values are
// converted to square metres; placeholders and unparsable values give 0.
func CleanSize(raw string) float64 {
	v := strings.ToLower(raw)
	v = sizeReplacer.Replace(v)
	v = strings.Join(strings.Fields(v), "")

	switch v {
	case "", "poa", property.NotAvailable, "n/a":
		return 0
	}

	hectares := strings.Contains(v, "ha")
	if hectares {
		v = strings.ReplaceAll(v, "ha", "")
	}

	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	if hectares {
		n *= 10000
	}
	return n
}

// FromEntry cleans one stored entry
func FromEntry(e property.CurrentEntry) Listing {
	l := Listing{
		ListingNumber: e.Get(property.FieldListingNumber),
		URL:           e.URL,
		Address:       e.Get(property.FieldAddress),
		Price:         CleanSize(e.Get(property.FieldPrice)),
		ErfSize:       CleanSize(e.Get(property.FieldErfSize)),
		FloorSize:     CleanSize(e.Get(property.FieldFloorSize)),
	}
	l.SubdividableArea = l.ErfSize - l.FloorSize
	return l
}

// TopByErfRatio returns up to limit listings with the largest erf-to-floor
// ratio. Lifestyle estates, apartments and listings without a floor size are
// left out; each listing number appears once.
func TopByErfRatio(entries []property.CurrentEntry, limit int) []Listing {
	var ranked []Listing
	for _, e := range entries {
		if strings.ToLower(e.Get(property.FieldLifestyle)) != property.NotAvailable {
			continue
		}
		if strings.ToLower(e.Get(property.FieldTypeOfProperty)) == "apartment / flat" {
			continue
		}

		l := FromEntry(e)
		if l.FloorSize == 0 {
			continue
		}
		l.ErfToFloorRatio = math.Round(l.ErfSize/l.FloorSize*10000) / 10000
		ranked = append(ranked, l)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].ErfToFloorRatio > ranked[j].ErfToFloorRatio
	})
	return head(uniqueByListingNumber(ranked), limit)
}

// LargestPlots returns up to limit listings with the largest erf size
func LargestPlots(entries []property.CurrentEntry, limit int) []Listing {
	ranked := make([]Listing, 0, len(entries))
	for _, e := range entries {
		ranked = append(ranked, FromEntry(e))
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].ErfSize > ranked[j].ErfSize
	})
	return head(ranked, limit)
}

// Lookup finds a listing by its listing number and returns its URL. When the
// stored entry has no URL the portal's listing permalink is used.
func Lookup(entries []property.CurrentEntry, listingNumber, portalBaseURL string) (property.CurrentEntry, string, bool) {
	listingNumber = strings.TrimSpace(listingNumber)
	if listingNumber == "" {
		return property.CurrentEntry{}, "", false
	}

	for _, e := range entries {
		if e.Get(property.FieldListingNumber) != listingNumber {
			continue
		}
		if e.URL != "" && e.URL != property.NotAvailable {
			return e, e.URL, true
		}
		return e, ListingPermalink(portalBaseURL, listingNumber), true
	}
	return property.CurrentEntry{}, "", false
}

// ListingPermalink returns the portal URL of a listing number
func ListingPermalink(portalBaseURL, listingNumber string) string {
	return strings.TrimRight(portalBaseURL, "/") + "/Listing/" + listingNumber
}

func uniqueByListingNumber(listings []Listing) []Listing {
	seen := make(map[string]struct{}, len(listings))
	out := listings[:0]
	for _, l := range listings {
		if _, ok := seen[l.ListingNumber]; ok {
			continue
		}
		seen[l.ListingNumber] = struct{}{}
		out = append(out, l)
	}
	return out
}

func head(listings []Listing, limit int) []Listing {
	if limit > 0 && len(listings) > limit {
		return listings[:limit]
	}
	return listings
}
