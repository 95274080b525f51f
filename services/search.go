package services

import (
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"unicode"
	"unicode/utf8"

	"belgian-housing-api/models"
	"belgian-housing-api/store"
)

// MaxQueryLength is the longest accepted search query, in characters.
const MaxQueryLength = 64

// SnapshotSource is the read side of the dataset store.
type SnapshotSource interface {
	Snapshot() *store.Snapshot
}

type ListOrder string

const (
	OrderByCode       ListOrder = "code"
	OrderByPopulation ListOrder = "population"
)

// ParseListOrder accepts "" (code order), "code" or "population".
func ParseListOrder(s string) (ListOrder, error) {
	switch ListOrder(strings.ToLower(strings.TrimSpace(s))) {
	case "", OrderByCode:
		return OrderByCode, nil
	case OrderByPopulation:
		return OrderByPopulation, nil
	}
	return "", fmt.Errorf("%w: unknown sort %q", models.ErrInvalidQuery, s)
}

const (
	rankExact = iota
	rankPrefix
	rankSubstring
	noMatch
)

// searchIndex holds the folded names of one snapshot.
type searchIndex struct {
	snap    *store.Snapshot
	records []models.Municipality
	names   [][]string
}

type SearchService struct {
	source SnapshotSource
	index  atomic.Pointer[searchIndex]
}

func NewSearchService(source SnapshotSource) *SearchService {
	return &SearchService{source: source}
}

func (s *SearchService) FindByCode(code string) (models.Municipality, error) {
	code = strings.TrimSpace(code)
	m, ok := s.source.Snapshot().Get(code)
	if !ok {
		return models.Municipality{}, fmt.Errorf("%w: %s", models.ErrNotFound, code)
	}
	return m, nil
}

// Search matches query against all name variants, ignoring case and accents.
// Exact matches come first, then prefix, then substring matches; ties are
// ordered by code. An empty query returns no results.
func (s *SearchService) Search(query string) ([]models.Municipality, error) {
	query = strings.TrimSpace(query)
	if err := validateQuery(query); err != nil {
		return nil, err
	}
	if query == "" {
		return []models.Municipality{}, nil
	}

	needle := fold(query)
	idx := s.currentIndex()

	type hit struct {
		rank int
		m    models.Municipality
	}
	var hits []hit
	for i, names := range idx.names {
		best := noMatch
		for _, name := range names {
			if r := matchRank(name, needle); r < best {
				best = r
			}
		}
		if best != noMatch {
			hits = append(hits, hit{rank: best, m: idx.records[i]})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].rank != hits[j].rank {
			return hits[i].rank < hits[j].rank
		}
		return hits[i].m.Code < hits[j].m.Code
	})

	out := make([]models.Municipality, len(hits))
	for i, h := range hits {
		out[i] = h.m.Clone()
	}
	return out, nil
}

// List returns every record in the requested order.
func (s *SearchService) List(order ListOrder) []models.Municipality {
	all, _ := s.ListVersioned(order)
	return all
}

// ListVersioned is List plus the snapshot it was read from.
func (s *SearchService) ListVersioned(order ListOrder) ([]models.Municipality, *store.Snapshot) {
	snap := s.source.Snapshot()
	all := snap.All()
	if order == OrderByPopulation {
		sort.SliceStable(all, func(i, j int) bool { return lessByPopulation(all[i], all[j]) })
	}
	return all, snap
}

// lessByPopulation orders by population descending, missing populations
// last, ties by code.
func lessByPopulation(a, b models.Municipality) bool {
	switch {
	case a.Population == nil && b.Population == nil:
		return a.Code < b.Code
	case a.Population == nil:
		return false
	case b.Population == nil:
		return true
	case *a.Population != *b.Population:
		return *a.Population > *b.Population
	}
	return a.Code < b.Code
}

func validateQuery(q string) error {
	if !utf8.ValidString(q) {
		return fmt.Errorf("%w: query is not valid UTF-8", models.ErrInvalidQuery)
	}
	if n := utf8.RuneCountInString(q); n > MaxQueryLength {
		return fmt.Errorf("%w: query is %d characters, the maximum is %d", models.ErrInvalidQuery, n, MaxQueryLength)
	}
	for _, r := range q {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: query contains control characters", models.ErrInvalidQuery)
		}
	}
	return nil
}

func matchRank(name, needle string) int {
	switch {
	case name == needle:
		return rankExact
	case strings.HasPrefix(name, needle):
		return rankPrefix
	case strings.Contains(name, needle):
		return rankSubstring
	}
	return noMatch
}

// currentIndex returns the folded names for the current snapshot, rebuilding
// them after a swap. Concurrent rebuilds are harmless.
func (s *SearchService) currentIndex() *searchIndex {
	snap := s.source.Snapshot()
	if idx := s.index.Load(); idx != nil && idx.snap == snap {
		return idx
	}

	records := snap.All()
	names := make([][]string, len(records))
	for i, m := range records {
		variants := m.Names()
		folded := make([]string, len(variants))
		for j, v := range variants {
			folded[j] = fold(v)
		}
		names[i] = folded
	}
	idx := &searchIndex{snap: snap, records: records, names: names}
	s.index.Store(idx)
	return idx
}
