package models

import "time"

// MaxMunicipalities is the number of Belgian municipalities; a dataset never holds more.
const MaxMunicipalities = 581

type Municipality struct {
	Code          string    `gorm:"column:nis_code;primaryKey;size:10" json:"nis_code" validate:"required,len=5,numeric"`
	Name          string    `gorm:"column:name_nl;size:100;not null" json:"name" validate:"required,max=100"`
	NameFR        string    `gorm:"column:name_fr;size:100" json:"name_fr,omitempty"`
	NameDE        string    `gorm:"column:name_de;size:100" json:"name_de,omitempty"`
	Province      string    `gorm:"column:province;size:50" json:"province,omitempty"`
	Region        string    `gorm:"column:region;size:20;index" json:"region,omitempty"`
	Population    *int64    `gorm:"column:population" json:"population" validate:"omitempty,min=0"`
	AreaKm2       *float64  `gorm:"column:area_km2" json:"area_km2" validate:"omitempty,gt=0"`
	Households    *int64    `gorm:"column:households" json:"households,omitempty" validate:"omitempty,min=0"`
	Age0To17      *int64    `gorm:"column:age_0_17" json:"age_0_17,omitempty" validate:"omitempty,min=0"`
	Age18To64     *int64    `gorm:"column:age_18_64" json:"age_18_64,omitempty" validate:"omitempty,min=0"`
	Age65Plus     *int64    `gorm:"column:age_65_plus" json:"age_65_plus,omitempty" validate:"omitempty,min=0"`
	GrowthRatePct *float64  `gorm:"column:growth_rate_pct" json:"growth_rate_pct,omitempty"`
	LastUpdated   time.Time `gorm:"column:last_updated" json:"last_updated"`

	// Density is derived from Population and AreaKm2 and is never persisted.
	Density *float64 `gorm:"-" json:"density"`
}

func (Municipality) TableName() string { return "municipalities" }

// ComputeDensity recomputes Density from the source fields. It is nil when
// either input is missing or the area is not positive.
func (m *Municipality) ComputeDensity() {
	m.Density = nil
	if m.Population == nil || m.AreaKm2 == nil || *m.AreaKm2 <= 0 {
		return
	}
	d := float64(*m.Population) / *m.AreaKm2
	m.Density = &d
}

// Clone returns a copy that shares no pointers with m.
func (m Municipality) Clone() Municipality {
	m.Population = clonePtr(m.Population)
	m.AreaKm2 = clonePtr(m.AreaKm2)
	m.Households = clonePtr(m.Households)
	m.Age0To17 = clonePtr(m.Age0To17)
	m.Age18To64 = clonePtr(m.Age18To64)
	m.Age65Plus = clonePtr(m.Age65Plus)
	m.GrowthRatePct = clonePtr(m.GrowthRatePct)
	m.Density = clonePtr(m.Density)
	return m
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// OptionalFieldsPresent counts the optional demographic attributes that are set.
func (m Municipality) OptionalFieldsPresent() int {
	n := 0
	for _, set := range []bool{
		m.Households != nil,
		m.Age0To17 != nil,
		m.Age18To64 != nil,
		m.Age65Plus != nil,
		m.GrowthRatePct != nil,
	} {
		if set {
			n++
		}
	}
	return n
}

// OptionalFieldCount is the number of attributes OptionalFieldsPresent inspects.
const OptionalFieldCount = 5

// Names returns the display name followed by the non-empty locale variants.
func (m Municipality) Names() []string {
	names := []string{m.Name}
	if m.NameFR != "" && m.NameFR != m.Name {
		names = append(names, m.NameFR)
	}
	if m.NameDE != "" && m.NameDE != m.Name {
		names = append(names, m.NameDE)
	}
	return names
}

type MunicipalitySummary struct {
	Code       string   `json:"nis_code"`
	Name       string   `json:"name"`
	NameFR     string   `json:"name_fr,omitempty"`
	Province   string   `json:"province,omitempty"`
	Region     string   `json:"region,omitempty"`
	Population *int64   `json:"population"`
	Density    *float64 `json:"density"`
}

func (m Municipality) Summary() MunicipalitySummary {
	return MunicipalitySummary{
		Code:       m.Code,
		Name:       m.Name,
		NameFR:     m.NameFR,
		Province:   m.Province,
		Region:     m.Region,
		Population: m.Population,
		Density:    m.Density,
	}
}
