package taxi

import "github.com/Aman-CERP/taxidx/internal/store"

// Build projects a record onto an indexable document.
// Numeric and time fields are emitted twice, as a range point and as a
// stored value; geo fields as a range point only; text fields once as
// searchable stored text. The caller assigns the document ID.
func Build(r *Record) store.Document {
	entries := make([]store.FieldEntry, 0, 2*int(numFields))
	for i := range fieldTable {
		f := Field(i)
		v := f.Value(r)
		switch f.Kind() {
		case store.KindFloat, store.KindInt:
			entries = append(entries,
				store.FieldEntry{Name: f.Name(), Kind: store.EntryRange, Value: v},
				store.FieldEntry{Name: f.Name(), Kind: store.EntryStored, Value: v})
		case store.KindGeo:
			entries = append(entries, store.FieldEntry{Name: f.Name(), Kind: store.EntryRange, Value: v})
		case store.KindText:
			entries = append(entries, store.FieldEntry{Name: f.Name(), Kind: store.EntryText, Value: v})
		}
	}
	return store.Document{Entries: entries}
}
