package crawler

import (
	"testing"

	"sjsage522/propertyworker/internal/property"
	pkgerrors "sjsage522/propertyworker/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const detailURL = "https://www.property24.com/for-sale/Paarl/western-cape/344/115063421"

const detailHTML = `<html><body>
<h1>  3 Bedroom House for sale in   PAARL  </h1>
<div class="p24_price"> R 2 450 000 </div>
<div class="p24_address">12 Main Road</div>
<div class="p24_location">Paarl Central</div>
<div class="p24_featureDetails" title="Bedrooms"><span>3</span></div>
<div class="p24_featureDetails" title="Bathrooms"><span>2</span></div>
<div class="p24_propertyOverview">
  <div class="p24_propertyOverviewRow"><div class="p24_propertyOverviewKey">Listing Number</div><div class="p24_info">P24-115063421</div></div>
  <div class="p24_propertyOverviewRow"><div class="p24_propertyOverviewKey">Type of Property</div><div class="p24_info">House</div></div>
  <div class="p24_propertyOverviewRow"><div class="p24_propertyOverviewKey">Erf Size</div><div class="p24_info">595 m²</div></div>
  <div class="p24_propertyOverviewRow"><div class="p24_propertyOverviewKey">Floor Size</div><div class="p24_info">180 m²</div></div>
  <div class="p24_propertyOverviewRow"><div class="p24_propertyOverviewKey">Rates and Taxes</div><div class="p24_info">R 1 200</div></div>
  <div class="p24_propertyOverviewRow"><div class="p24_propertyOverviewKey">Parking Spaces</div><div class="p24_info">2</div></div>
  <div class="p24_propertyOverviewRow"><div class="p24_propertyOverviewKey">Solar Panels</div><div class="p24_info">Yes</div></div>
</div>
</body></html>`

func TestExtract(t *testing.T) {
	e := NewExtractor(DefaultSelectors(), nil)

	rec, err := e.Extract(detailHTML, detailURL)
	require.NoError(t, err)

	// Identity-like fields are case-folded, display fields keep their casing
	assert.Equal(t, "https://www.property24.com/for-sale/paarl/western-cape/344/115063421", rec.URL)
	assert.Equal(t, "3 bedroom house for sale in paarl", rec.Title)
	assert.Equal(t, "paarl central", rec.Suburb)
	assert.Equal(t, "R 2 450 000", rec.Price)
	assert.Equal(t, "12 Main Road", rec.Address)
	assert.Equal(t, "3", rec.Bedrooms)
	assert.Equal(t, "2", rec.Bathrooms)

	// Dedicated fields fall back to the overview table
	assert.Equal(t, "595 m²", rec.ErfSize)
	assert.Equal(t, "180 m²", rec.FloorSize)
	assert.Equal(t, "P24-115063421", rec.ListingNumber)
	assert.Equal(t, "2", rec.Parking)

	// Missing everywhere
	assert.Equal(t, property.NotAvailable, rec.ListingDate)

	// Open schema overview
	assert.Equal(t, "House", rec.Overview["type_of_property"])
	assert.Equal(t, "Yes", rec.Overview["solar_panels"])
	assert.Equal(t, "R 1 200", rec.Get(property.FieldRatesAndTaxes))
	assert.Equal(t, `{"solar_panels":"Yes"}`, rec.Get(property.FieldExtras))
}

func TestExtractMissingSelectorsYieldSentinel(t *testing.T) {
	e := NewExtractor(DefaultSelectors(), nil)

	rec, err := e.Extract(`<html><body><div class="p24_price">R 990 000</div></body></html>`, detailURL)
	require.NoError(t, err)

	assert.Equal(t, "R 990 000", rec.Price)
	assert.Equal(t, property.NotAvailable, rec.Title)
	assert.Equal(t, property.NotAvailable, rec.Address)
	assert.Equal(t, property.NotAvailable, rec.Bedrooms)
	assert.Empty(t, rec.Overview)

	// Listing number comes from the URL
	assert.Equal(t, "115063421", rec.ListingNumber)

	// Every column is present
	row := rec.Row()
	require.Len(t, row, len(property.Columns))
	for i, v := range row {
		assert.NotEmpty(t, v, property.Columns[i])
	}
}

func TestExtractEmptyURL(t *testing.T) {
	e := NewExtractor(DefaultSelectors(), nil)
	_, err := e.Extract(detailHTML, "  ")
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeValidation))
}

func TestExtractCustomSelectors(t *testing.T) {
	sel := DefaultSelectors()
	sel.Price = "span.amount"
	sel.OverviewRow = ""

	rec, err := NewExtractor(sel, nil).Extract(detailHTML+`<span class="amount">R 1</span>`, detailURL)
	require.NoError(t, err)
	assert.Equal(t, "R 1", rec.Price)
	assert.Empty(t, rec.Overview)
	assert.Equal(t, property.NotAvailable, rec.ErfSize)
}
