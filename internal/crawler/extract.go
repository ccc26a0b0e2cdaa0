package crawler

import (
	"strings"

	"sjsage522/propertyworker/helpers"
	"sjsage522/propertyworker/internal/property"
	"sjsage522/propertyworker/logger"
	pkgerrors "sjsage522/propertyworker/pkg/errors"

	"github.com/PuerkitoBio/goquery"
)

// Extractor turns a listing detail page into a property.Record. It never
// performs network I/O.
type Extractor struct {
	sel   Selectors
	rules property.Rules
	log   *logger.Logger
}

// NewExtractor creates an extractor. A nil rules table uses property.DefaultRules.
func NewExtractor(sel Selectors, rules property.Rules) *Extractor {
	if rules == nil {
		rules = property.DefaultRules
	}
	return &Extractor{
		sel:   sel,
		rules: rules,
		log:   logger.ForExtractor(),
	}
}

// Extract parses html fetched from pageURL. A missing element yields
// property.NotAvailable for its field; only an empty URL or unparsable
// document is an error.
func (e *Extractor) Extract(html, pageURL string) (property.Record, error) {
	if strings.TrimSpace(pageURL) == "" {
		return property.Record{}, pkgerrors.NewValidation(pageURL, "record URL is empty")
	}

	doc, err := createDocument(html)
	if err != nil {
		return property.Record{}, pkgerrors.NewExtraction(pageURL, "failed to parse detail page", err)
	}

	rec := property.Record{
		URL:      e.rules.Apply(property.FieldURL, pageURL),
		Overview: e.overview(doc),
	}

	fields := []struct {
		name     string
		selector string
		dst      *string
	}{
		{property.FieldPrice, e.sel.Price, &rec.Price},
		{property.FieldTitle, e.sel.Title, &rec.Title},
		{property.FieldAddress, e.sel.Address, &rec.Address},
		{property.FieldSuburb, e.sel.Suburb, &rec.Suburb},
		{property.FieldBedrooms, e.sel.Bedrooms, &rec.Bedrooms},
		{property.FieldBathrooms, e.sel.Bathrooms, &rec.Bathrooms},
		{property.FieldParking, e.sel.Parking, &rec.Parking},
		{property.FieldErfSize, e.sel.ErfSize, &rec.ErfSize},
		{property.FieldFloorSize, e.sel.FloorSize, &rec.FloorSize},
		{property.FieldListingNumber, e.sel.ListingNumber, &rec.ListingNumber},
		{property.FieldListingDate, e.sel.ListingDate, &rec.ListingDate},
	}

	missing := 0
	for _, f := range fields {
		*f.dst = e.field(doc, f.name, f.selector)
		if *f.dst == property.NotAvailable {
			// Fall back to the overview row of the same name
			if v := rec.Get(f.name); v != property.NotAvailable {
				*f.dst = e.rules.Apply(f.name, v)
			} else {
				missing++
			}
		}
	}

	if rec.ListingNumber == property.NotAvailable {
		if seg, err := helpers.LastPathSegment(pageURL); err == nil && isDigits(seg) {
			rec.ListingNumber = seg
			missing--
		}
	}

	e.log.Debug().
		Str("url", rec.URL).
		Int("overview_rows", len(rec.Overview)).
		Int("missing_fields", missing).
		Msg("Extracted listing")

	return rec, nil
}

func (e *Extractor) field(doc *goquery.Document, name, selector string) string {
	if selector == "" {
		return property.NotAvailable
	}
	return e.rules.Apply(name, selectionText(doc.Find(selector)))
}

// overview harvests the label/value rows of the overview table under
// normalized labels. Unknown labels are kept.
func (e *Extractor) overview(doc *goquery.Document) map[string]string {
	rows := make(map[string]string)
	if e.sel.OverviewRow == "" {
		return rows
	}

	doc.Find(e.sel.OverviewRow).Each(func(_ int, s *goquery.Selection) {
		label := property.NormalizeLabel(selectionText(s.Find(e.sel.OverviewLabel)))
		if label == "" {
			return
		}
		rows[label] = e.rules.Apply(property.CanonicalField(label), selectionText(s.Find(e.sel.OverviewValue)))
	})
	return rows
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
