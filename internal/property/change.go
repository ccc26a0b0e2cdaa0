package property

// Classification is the outcome of comparing a scraped record to the stored state
type Classification int

const (
	// New means the URL has no stored entry
	New Classification = iota
	// Changed means at least one compared field differs from the stored entry
	Changed
	// Unchanged means every compared field matches; nothing is written
	Unchanged
)

func (c Classification) String() string {
	switch c {
	case New:
		return "new"
	case Changed:
		return "changed"
	case Unchanged:
		return "unchanged"
	default:
		return "unknown"
	}
}

// Dedup collapses records by URL. When a URL appears more than once the last
// record in iteration order wins.
func Dedup(records []Record) map[string]Record {
	out := make(map[string]Record, len(records))
	for _, r := range records {
		out[r.URL] = r
	}
	return out
}

// Comparer classifies records by comparing a configurable set of fields
type Comparer struct {
	Fields []string
}

// DefaultComparer compares price only
var DefaultComparer = Comparer{Fields: []string{FieldPrice}}

// NewComparer returns a comparer over fields, or DefaultComparer when empty
func NewComparer(fields []string) Comparer {
	if len(fields) == 0 {
		return DefaultComparer
	}
	return Comparer{Fields: append([]string(nil), fields...)}
}

// Diff returns the compared fields whose values differ between a and b
func (c Comparer) Diff(a, b Record) []string {
	var changed []string
	for _, f := range c.Fields {
		if a.Get(f) != b.Get(f) {
			changed = append(changed, f)
		}
	}
	return changed
}

// Classify compares rec against the stored entry for its URL in known
func (c Comparer) Classify(rec Record, known map[string]Record) Classification {
	prev, ok := known[rec.URL]
	if !ok {
		return New
	}
	if len(c.Diff(prev, rec)) > 0 {
		return Changed
	}
	return Unchanged
}

// Classify classifies rec with DefaultComparer
func Classify(rec Record, known map[string]Record) Classification {
	return DefaultComparer.Classify(rec, known)
}
