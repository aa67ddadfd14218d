package model

// WorkingSet is the collection of records a single view currently holds,
// populated by that view's own fetch. It is owned by one goroutine per the
// single-fetch-per-view discipline; it does no locking of its own.
type WorkingSet struct {
	records []AccessRecord
	index   map[string]int
}

// NewWorkingSet builds a working set from a fetched record list. Records
// with a duplicate ID are dropped, keeping the first occurrence, so the
// uniqueness invariant holds regardless of what the store returned.
func NewWorkingSet(records []AccessRecord) *WorkingSet {
	ws := &WorkingSet{
		records: make([]AccessRecord, 0, len(records)),
		index:   make(map[string]int, len(records)),
	}
	for _, rec := range records {
		if _, exists := ws.index[rec.ID]; exists {
			continue
		}
		ws.index[rec.ID] = len(ws.records)
		ws.records = append(ws.records, rec)
	}
	return ws
}

// Len returns the number of records held.
func (ws *WorkingSet) Len() int {
	return len(ws.records)
}

// Get returns the record with the given ID, or nil if absent.
func (ws *WorkingSet) Get(id string) *AccessRecord {
	i, ok := ws.index[id]
	if !ok {
		return nil
	}
	rec := ws.records[i]
	return &rec
}

// Replace swaps the stored record for rec.ID wholesale with rec. It returns
// false when no record with that ID is present; the set is then unchanged.
func (ws *WorkingSet) Replace(rec AccessRecord) bool {
	i, ok := ws.index[rec.ID]
	if !ok {
		return false
	}
	ws.records[i] = rec
	return true
}

// Remove deletes the record with the given ID, preserving the order of the
// remaining records. It returns false when the ID is absent.
func (ws *WorkingSet) Remove(id string) bool {
	i, ok := ws.index[id]
	if !ok {
		return false
	}
	ws.records = append(ws.records[:i], ws.records[i+1:]...)
	delete(ws.index, id)
	for j := i; j < len(ws.records); j++ {
		ws.index[ws.records[j].ID] = j
	}
	return true
}

// Records returns a copy of the held records, in insertion order. Mutating
// the copy does not affect the set.
func (ws *WorkingSet) Records() []AccessRecord {
	out := make([]AccessRecord, len(ws.records))
	copy(out, ws.records)
	return out
}
