package store

import (
	"sort"
	"time"

	"belgian-housing-api/models"
)

// Snapshot is an immutable view of the dataset. Accessors hand out deep
// copies, so callers may modify what they receive.
type Snapshot struct {
	dataset  string
	version  uint64
	source   string
	loadedAt time.Time
	records  []models.Municipality
	byCode   map[string]int
}

// NewSnapshot deep-copies records, sorts them by code and derives densities.
func NewSnapshot(version uint64, source string, records []models.Municipality) *Snapshot {
	sorted := make([]models.Municipality, len(records))
	for i, m := range records {
		sorted[i] = m.Clone()
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Code < sorted[j].Code })

	byCode := make(map[string]int, len(sorted))
	for i := range sorted {
		sorted[i].ComputeDensity()
		byCode[sorted[i].Code] = i
	}
	return &Snapshot{
		version:  version,
		source:   source,
		loadedAt: time.Now().UTC(),
		records:  sorted,
		byCode:   byCode,
	}
}

func (s *Snapshot) DatasetID() string  { return s.dataset }
func (s *Snapshot) Version() uint64     { return s.version }
func (s *Snapshot) Source() string      { return s.source }
func (s *Snapshot) LoadedAt() time.Time { return s.loadedAt }
func (s *Snapshot) Len() int            { return len(s.records) }

// Get returns a deep copy of the record with code.
func (s *Snapshot) Get(code string) (models.Municipality, bool) {
	i, ok := s.byCode[code]
	if !ok {
		return models.Municipality{}, false
	}
	return s.records[i].Clone(), true
}

// All returns deep copies of the records ordered by code.
func (s *Snapshot) All() []models.Municipality {
	out := make([]models.Municipality, len(s.records))
	for i, m := range s.records {
		out[i] = m.Clone()
	}
	return out
}

// Range calls fn with a deep copy of each record in code order until fn
// returns false.
func (s *Snapshot) Range(fn func(m models.Municipality) bool) {
	for _, m := range s.records {
		if !fn(m.Clone()) {
			return
		}
	}
}
