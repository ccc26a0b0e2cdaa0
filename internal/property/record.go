// Package property holds the listing record model shared by the extractor,
// the change detector and the persistence sinks.
package property

import (
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// NotAvailable is written for any field that could not be extracted
const NotAvailable = "na"

// Column names of the persisted record, also used as field names
const (
	FieldURL            = "url"
	FieldPrice          = "price"
	FieldTitle          = "title"
	FieldAddress        = "address"
	FieldSuburb         = "suburb"
	FieldBedrooms       = "bedrooms"
	FieldBathrooms      = "bathrooms"
	FieldParking        = "parking"
	FieldGarages        = "garages"
	FieldErfSize        = "erf_size"
	FieldFloorSize      = "floor_size"
	FieldListingNumber  = "listing_number"
	FieldListingDate    = "listing_date"
	FieldTypeOfProperty = "type_of_property"
	FieldLifestyle      = "lifestyle"
	FieldLevies         = "levies"
	FieldRatesAndTaxes  = "rates_and_taxes"
	FieldPetsAllowed    = "pets_allowed"
	FieldExtras         = "extras"
)

// Columns is the fixed, ordered column set every emitted row carries.
var Columns = []string{
	FieldURL,
	FieldPrice,
	FieldTitle,
	FieldAddress,
	FieldSuburb,
	FieldBedrooms,
	FieldBathrooms,
	FieldParking,
	FieldGarages,
	FieldErfSize,
	FieldFloorSize,
	FieldListingNumber,
	FieldListingDate,
	FieldTypeOfProperty,
	FieldLifestyle,
	FieldLevies,
	FieldRatesAndTaxes,
	FieldPetsAllowed,
	FieldExtras,
}

// labelAliases maps normalized overview labels that name a target column
// differently on some listings.
var labelAliases = map[string]string{
	"parking_bays":     FieldParking,
	"parking_spaces":   FieldParking,
	"garage":           FieldGarages,
	"erf":              FieldErfSize,
	"land_size":        FieldErfSize,
	"floor_area":       FieldFloorSize,
	"property_type":    FieldTypeOfProperty,
	"pets":             FieldPetsAllowed,
	"rates_&_taxes":    FieldRatesAndTaxes,
	"rates_and_levies": FieldRatesAndTaxes,
	"bedroom":          FieldBedrooms,
	"bathroom":         FieldBathrooms,
}

var columnSet = func() map[string]struct{} {
	set := make(map[string]struct{}, len(Columns))
	for _, c := range Columns {
		set[c] = struct{}{}
	}
	return set
}()

// Record is the structured extraction of one listing detail page.
// URL is always set; every other field may hold NotAvailable. Overview holds
// the label/value pairs of the page's overview table under normalized labels.
type Record struct {
	URL           string            `json:"url"`
	Price         string            `json:"price"`
	Title         string            `json:"title"`
	Address       string            `json:"address"`
	Suburb        string            `json:"suburb"`
	Bedrooms      string            `json:"bedrooms"`
	Bathrooms     string            `json:"bathrooms"`
	Parking       string            `json:"parking"`
	ErfSize       string            `json:"erf_size"`
	FloorSize     string            `json:"floor_size"`
	ListingNumber string            `json:"listing_number"`
	ListingDate   string            `json:"listing_date"`
	Overview      map[string]string `json:"overview,omitempty"`
}

// HistoryEntry is one append-only scrape observation
type HistoryEntry struct {
	Record
	CapturedAt time.Time `json:"captured_at"`
	RunID      string    `json:"run_id"`
}

// CurrentEntry is the latest known record for a URL
type CurrentEntry struct {
	Record
	LastUpdated time.Time `json:"last_updated"`
}

// NormalizeLabel lower-cases an overview label and joins its words with underscores
func NormalizeLabel(label string) string {
	return strings.Join(strings.Fields(strings.ToLower(label)), "_")
}

// CanonicalField returns the target column a normalized label maps to, or the
// label itself when it has no alias.
func CanonicalField(label string) string {
	if field, ok := labelAliases[label]; ok {
		return field
	}
	return label
}

// Get returns the value of a column, falling back to the overview table and
// finally to NotAvailable.
func (r Record) Get(field string) string {
	var v string
	switch field {
	case FieldURL:
		v = r.URL
	case FieldPrice:
		v = r.Price
	case FieldTitle:
		v = r.Title
	case FieldAddress:
		v = r.Address
	case FieldSuburb:
		v = r.Suburb
	case FieldBedrooms:
		v = r.Bedrooms
	case FieldBathrooms:
		v = r.Bathrooms
	case FieldParking:
		v = r.Parking
	case FieldErfSize:
		v = r.ErfSize
	case FieldFloorSize:
		v = r.FloorSize
	case FieldListingNumber:
		v = r.ListingNumber
	case FieldListingDate:
		v = r.ListingDate
	case FieldExtras:
		return r.extrasJSON()
	}

	if available(v) {
		return v
	}
	if ov := r.overviewValue(field); available(ov) {
		return ov
	}
	return NotAvailable
}

func (r Record) overviewValue(field string) string {
	if v, ok := r.Overview[field]; ok {
		return v
	}
	keys := make([]string, 0, len(r.Overview))
	for k := range r.Overview {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if CanonicalField(k) == field {
			return r.Overview[k]
		}
	}
	return ""
}

// Extras returns the overview entries that do not map to any target column
func (r Record) Extras() map[string]string {
	extras := make(map[string]string)
	for k, v := range r.Overview {
		if _, ok := columnSet[CanonicalField(k)]; ok {
			continue
		}
		extras[k] = v
	}
	return extras
}

func (r Record) extrasJSON() string {
	extras := r.Extras()
	if len(extras) == 0 {
		return NotAvailable
	}
	data, err := json.Marshal(extras)
	if err != nil {
		return NotAvailable
	}
	return string(data)
}

// Row returns the record's values in Columns order; no value is ever empty.
func (r Record) Row() []string {
	row := make([]string, len(Columns))
	for i, c := range Columns {
		row[i] = r.Get(c)
	}
	return row
}

// Values returns the record as a column -> value map
func (r Record) Values() map[string]string {
	values := make(map[string]string, len(Columns))
	for _, c := range Columns {
		values[c] = r.Get(c)
	}
	return values
}

// FromValues rebuilds a record from persisted column values
func FromValues(values map[string]string) Record {
	r := Record{
		URL:           values[FieldURL],
		Price:         values[FieldPrice],
		Title:         values[FieldTitle],
		Address:       values[FieldAddress],
		Suburb:        values[FieldSuburb],
		Bedrooms:      values[FieldBedrooms],
		Bathrooms:     values[FieldBathrooms],
		Parking:       values[FieldParking],
		ErfSize:       values[FieldErfSize],
		FloorSize:     values[FieldFloorSize],
		ListingNumber: values[FieldListingNumber],
		ListingDate:   values[FieldListingDate],
		Overview:      make(map[string]string),
	}

	for _, c := range []string{FieldGarages, FieldTypeOfProperty, FieldLifestyle, FieldLevies, FieldRatesAndTaxes, FieldPetsAllowed} {
		if v := values[c]; available(v) {
			r.Overview[c] = v
		}
	}

	if extras := values[FieldExtras]; available(extras) {
		var m map[string]string
		if err := json.Unmarshal([]byte(extras), &m); err == nil {
			for k, v := range m {
				r.Overview[k] = v
			}
		}
	}
	return r
}

// FromRow rebuilds a record from a row in Columns order
func FromRow(row []string) Record {
	values := make(map[string]string, len(Columns))
	for i, c := range Columns {
		if i < len(row) {
			values[c] = row[i]
		}
	}
	return FromValues(values)
}

func available(v string) bool {
	return v != "" && v != NotAvailable
}
