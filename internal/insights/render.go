package insights

import (
	"io"

	"sjsage522/propertyworker/internal/property"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// RenderRatioTable writes the erf-to-floor ranking as a table
func RenderRatioTable(w io.Writer, listings []Listing) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Top Properties by ERF to Floor Size Ratio")

	t.AppendHeader(table.Row{"Listing Number", "ERF Size", "Floor Size", "ERF to Floor Ratio"})
	for _, l := range listings {
		t.AppendRow(table.Row{l.ListingNumber, int(l.ErfSize), int(l.FloorSize), l.ErfToFloorRatio})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
	})
	t.Render()
}

// RenderLargestTable writes the largest plots with their floor sizes
func RenderLargestTable(w io.Writer, listings []Listing) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("ERF vs Floor Size for the Largest Properties")

	t.AppendHeader(table.Row{"Address", "Listing Number", "ERF Size", "Floor Size"})
	for _, l := range listings {
		t.AppendRow(table.Row{l.Address, l.ListingNumber, int(l.ErfSize), int(l.FloorSize)})
	}
	t.Render()
}

// RenderEntry writes one listing's columns as a two-column table
func RenderEntry(w io.Writer, e property.CurrentEntry) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	t.AppendHeader(table.Row{"Field", "Value"})
	for _, c := range property.Columns {
		t.AppendRow(table.Row{c, e.Get(c)})
	}
	t.AppendRow(table.Row{"last_updated", e.LastUpdated.Format("2006-01-02 15:04:05")})
	t.Render()
}

// RenderSummary writes a one-row count of the stored listings
func RenderSummary(w io.Writer, entries []property.CurrentEntry) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	t.AppendHeader(table.Row{"Stored Listings"})
	t.AppendRow(table.Row{len(entries)})
	t.Render()
}
