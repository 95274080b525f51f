package services

import (
	"strings"
	"testing"

	"belgian-housing-api/models"
	"belgian-housing-api/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedSource struct {
	snap *store.Snapshot
}

func (f *fixedSource) Snapshot() *store.Snapshot { return f.snap }

func int64Ptr(v int64) *int64       { return &v }
func float64Ptr(v float64) *float64 { return &v }

func city(code, name, nameFR, region string, population int64, area float64) models.Municipality {
	return models.Municipality{
		Code:       code,
		Name:       name,
		NameFR:     nameFR,
		Region:     region,
		Population: int64Ptr(population),
		AreaKm2:    float64Ptr(area),
	}
}

func testCities() []models.Municipality {
	return []models.Municipality{
		city("21004", "Brussel", "Bruxelles", "Brussels", 185000, 32.6),
		city("31005", "Brugge", "Bruges", "Vlaanderen", 118656, 138.40),
		city("62063", "Luik", "Liège", "Wallonië", 197355, 69.39),
		city("11002", "Antwerpen", "Anvers", "Vlaanderen", 530504, 204.51),
		city("24062", "Leuven", "Louvain", "Vlaanderen", 102275, 56.63),
		city("44021", "Gent", "Gand", "Vlaanderen", 264689, 156.18),
		{Code: "99001", Name: "Nergens", Region: "Vlaanderen"},
	}
}

func newTestSearch(records []models.Municipality) (*SearchService, *fixedSource) {
	src := &fixedSource{snap: store.NewSnapshot(1, "test", records)}
	return NewSearchService(src), src
}

func codes(ms []models.Municipality) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Code
	}
	return out
}

func TestFindByCode(t *testing.T) {
	svc, _ := newTestSearch(testCities())

	m, err := svc.FindByCode("62063")
	require.NoError(t, err)
	assert.Equal(t, "62063", m.Code)

	m, err = svc.FindByCode(" 21004 ")
	require.NoError(t, err)
	assert.Equal(t, "Brussel", m.Name)

	_, err = svc.FindByCode("00000")
	assert.True(t, models.IsNotFound(err))
}

func TestSearch(t *testing.T) {
	svc, _ := newTestSearch(testCities())

	tests := []struct {
		query string
		want  []string
	}{
		{"brux", []string{"21004"}},
		{"BRU", []string{"21004", "31005"}},
		{"bruges", []string{"31005"}},
		{"liege", []string{"62063"}},
		{"LIÈGE", []string{"62063"}},
		{"an", []string{"11002", "44021"}},
		{"  gent  ", []string{"44021"}},
		{"xyz", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, err := svc.Search(tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, codes(got))
		})
	}
}

func TestSearchRanking(t *testing.T) {
	svc, _ := newTestSearch([]models.Municipality{
		{Code: "10003", Name: "Oud-Heverlee"},
		{Code: "10002", Name: "Heverlee"},
		{Code: "10001", Name: "Heverlee-Zuid"},
	})

	got, err := svc.Search("heverlee")
	require.NoError(t, err)
	// exact, then prefix, then substring
	assert.Equal(t, []string{"10002", "10001", "10003"}, codes(got))
}

func TestSearchResultsContainQuery(t *testing.T) {
	svc, _ := newTestSearch(testCities())

	for _, q := range []string{"e", "Br", "uv", "ANT"} {
		got, err := svc.Search(q)
		require.NoError(t, err)
		for _, m := range got {
			found := false
			for _, name := range m.Names() {
				if strings.Contains(strings.ToLower(name), strings.ToLower(q)) {
					found = true
				}
			}
			assert.True(t, found, "%s does not contain %q", m.Name, q)
		}
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	svc, _ := newTestSearch(testCities())

	for _, q := range []string{"", "   "} {
		got, err := svc.Search(q)
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	}
}

func TestSearchInvalidQuery(t *testing.T) {
	svc, _ := newTestSearch(testCities())

	for _, q := range []string{
		strings.Repeat("a", MaxQueryLength+1),
		"bru\x00",
		"a\tb",
		"\xff\xfe",
	} {
		_, err := svc.Search(q)
		assert.True(t, models.IsInvalidQuery(err), "query %q", q)
	}

	_, err := svc.Search(strings.Repeat("é", MaxQueryLength))
	assert.NoError(t, err)
}

func TestSearchFollowsSnapshotSwap(t *testing.T) {
	svc, src := newTestSearch(testCities())

	got, _ := svc.Search("leuven")
	assert.Len(t, got, 1)

	src.snap = store.NewSnapshot(2, "test", []models.Municipality{city("24062", "Löwen", "", "", 1, 1)})
	got, _ = svc.Search("leuven")
	assert.Empty(t, got)
	got, _ = svc.Search("lowen")
	assert.Len(t, got, 1)
}

func TestList(t *testing.T) {
	svc, _ := newTestSearch(testCities())

	byCode := svc.List(OrderByCode)
	assert.Equal(t, []string{"11002", "21004", "24062", "31005", "44021", "62063", "99001"}, codes(byCode))

	byPop := svc.List(OrderByPopulation)
	assert.Equal(t, []string{"11002", "44021", "62063", "21004", "31005", "24062", "99001"}, codes(byPop))
}

func TestParseListOrder(t *testing.T) {
	for in, want := range map[string]ListOrder{"": OrderByCode, "code": OrderByCode, "Population": OrderByPopulation} {
		got, err := ParseListOrder(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseListOrder("name")
	assert.True(t, models.IsInvalidQuery(err))
}
