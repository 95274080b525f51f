package ingest

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"belgian-housing-api/models"

	"github.com/xuri/excelize/v2"
)

const (
	colCode       = "nis_code"
	colName       = "name_nl"
	colNameFR     = "name_fr"
	colNameDE     = "name_de"
	colProvince   = "province"
	colRegion     = "region"
	colPopulation = "population"
	colArea       = "area_km2"
	colHouseholds = "households"
	colAge0To17   = "age_0_17"
	colAge18To64  = "age_18_64"
	colAge65Plus  = "age_65_plus"
	colGrowth     = "growth_rate_pct"
)

var requiredColumns = []string{colCode, colName, colPopulation, colArea}

// columnAliases maps normalised source headers to canonical columns. Statbel
// open data uses the CD_/TX_/MS_ prefixed names.
var columnAliases = map[string]string{
	"nis_code":         colCode,
	"nis":              colCode,
	"code":             colCode,
	"refnis":           colCode,
	"cd_refnis":        colCode,
	"name_nl":          colName,
	"name":             colName,
	"tx_descr_nl":      colName,
	"name_fr":          colNameFR,
	"tx_descr_fr":      colNameFR,
	"name_de":          colNameDE,
	"tx_descr_de":      colNameDE,
	"province":         colProvince,
	"tx_prov_descr_nl": colProvince,
	"region":           colRegion,
	"tx_rgn_descr_nl":  colRegion,
	"population":       colPopulation,
	"ms_population":    colPopulation,
	"pop":              colPopulation,
	"area_km2":         colArea,
	"ms_area_km2":      colArea,
	"area":             colArea,
	"households":       colHouseholds,
	"ms_households":    colHouseholds,
	"age_0_17":         colAge0To17,
	"age_18_64":        colAge18To64,
	"age_65_plus":      colAge65Plus,
	"growth_rate_pct":  colGrowth,
	"growth_pct":       colGrowth,
}

var nisCodePattern = regexp.MustCompile(`^[0-9]{5}$`)

var headerReplacer = strings.NewReplacer(" ", "_", "-", "_", ".", "_", "(", "", ")", "", "\ufeff", "")

func normalizeHeader(h string) string {
	return headerReplacer.Replace(strings.ToLower(strings.TrimSpace(h)))
}

// ParseCSV reads a comma or semicolon separated table with a header row.
func ParseCSV(source string, r io.Reader) ([]models.Municipality, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, &models.LoadError{Source: source, Reason: "read failed", Err: err}
	}

	reader := csv.NewReader(bytes.NewReader(raw))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	if firstLine, _, _ := bytes.Cut(raw, []byte("\n")); bytes.Count(firstLine, []byte(";")) > bytes.Count(firstLine, []byte(",")) {
		reader.Comma = ';'
	}

	rows, err := reader.ReadAll()
	if err != nil {
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			return nil, &models.LoadError{Source: source, Row: perr.Line - 1, Reason: "malformed csv", Err: perr.Err}
		}
		return nil, &models.LoadError{Source: source, Reason: "malformed csv", Err: err}
	}
	return parseTable(source, rows)
}

// ParseXLSX reads the first sheet of a workbook.
func ParseXLSX(source string, r io.Reader) ([]models.Municipality, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &models.LoadError{Source: source, Reason: "malformed workbook", Err: err}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, models.NewLoadError(source, 0, "", "workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, &models.LoadError{Source: source, Reason: "reading sheet " + sheets[0], Err: err}
	}
	return parseTable(source, rows)
}

// ParseJSON accepts an array of objects or an object wrapping that array in
// a "data" field, which is what the list endpoint of this API returns.
func ParseJSON(source string, r io.Reader) ([]models.Municipality, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, &models.LoadError{Source: source, Reason: "read failed", Err: err}
	}

	var objects []map[string]any
	if err := json.Unmarshal(raw, &objects); err != nil {
		var wrapped struct {
			Data []map[string]any `json:"data"`
		}
		if werr := json.Unmarshal(raw, &wrapped); werr != nil || wrapped.Data == nil {
			return nil, &models.LoadError{Source: source, Reason: "malformed json", Err: err}
		}
		objects = wrapped.Data
	}

	var rows []map[string]string
	present := make(map[string]bool)
	for _, obj := range objects {
		row := make(map[string]string, len(obj))
		for k, v := range obj {
			col, ok := columnAliases[normalizeHeader(k)]
			if !ok {
				continue
			}
			present[col] = true
			row[col] = jsonCell(v)
		}
		rows = append(rows, row)
	}
	if err := checkRequired(source, present); err != nil {
		return nil, err
	}
	return buildRecords(source, rows)
}

func jsonCell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}

func parseTable(source string, rows [][]string) ([]models.Municipality, error) {
	for len(rows) > 0 && blankRow(rows[0]) {
		rows = rows[1:]
	}
	if len(rows) == 0 {
		return nil, models.NewLoadError(source, 0, "", "source is empty")
	}

	header := rows[0]
	index := make(map[string]int)
	for i, h := range header {
		col, ok := columnAliases[normalizeHeader(h)]
		if !ok {
			continue
		}
		if _, dup := index[col]; dup {
			return nil, models.NewLoadError(source, 0, col, "column appears more than once")
		}
		index[col] = i
	}
	present := make(map[string]bool, len(index))
	for col := range index {
		present[col] = true
	}
	if err := checkRequired(source, present); err != nil {
		return nil, err
	}

	mapped := make([]map[string]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		m := make(map[string]string, len(index))
		for col, i := range index {
			if i < len(row) {
				m[col] = row[i]
			}
		}
		mapped = append(mapped, m)
	}
	return buildRecords(source, mapped)
}

func checkRequired(source string, present map[string]bool) error {
	for _, col := range requiredColumns {
		if !present[col] {
			return models.NewLoadError(source, 0, col, "missing required column")
		}
	}
	return nil
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func blankMap(row map[string]string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func buildRecords(source string, rows []map[string]string) ([]models.Municipality, error) {
	records := make([]models.Municipality, 0, len(rows))
	seen := make(map[string]int, len(rows))

	for i, row := range rows {
		rowNum := i + 1
		if blankMap(row) {
			continue
		}
		m, err := buildRecord(source, rowNum, row)
		if err != nil {
			return nil, err
		}
		if first, dup := seen[m.Code]; dup {
			return nil, models.NewLoadError(source, rowNum, colCode, fmt.Sprintf("duplicate code %s (first seen at row %d)", m.Code, first))
		}
		seen[m.Code] = rowNum
		records = append(records, m)
	}

	if len(records) == 0 {
		return nil, models.NewLoadError(source, 0, "", "source contains no records")
	}
	if len(records) > models.MaxMunicipalities {
		return nil, models.NewLoadError(source, 0, "", fmt.Sprintf("%d records exceeds the maximum of %d", len(records), models.MaxMunicipalities))
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Code < records[j].Code })
	return records, nil
}

func buildRecord(source string, row int, cells map[string]string) (models.Municipality, error) {
	var m models.Municipality
	fail := func(col, reason string) (models.Municipality, error) {
		return models.Municipality{}, models.NewLoadError(source, row, col, reason)
	}

	m.Code = strings.TrimSpace(cells[colCode])
	if !nisCodePattern.MatchString(m.Code) {
		return fail(colCode, fmt.Sprintf("%q is not a 5-digit NIS code", m.Code))
	}
	m.Name = strings.TrimSpace(cells[colName])
	if m.Name == "" {
		return fail(colName, "name is empty")
	}
	m.NameFR = strings.TrimSpace(cells[colNameFR])
	m.NameDE = strings.TrimSpace(cells[colNameDE])
	m.Province = strings.TrimSpace(cells[colProvince])
	m.Region = strings.TrimSpace(cells[colRegion])

	var err error
	if m.Population, err = parseCount(cells[colPopulation]); err != nil {
		return fail(colPopulation, err.Error())
	}
	if m.AreaKm2, err = parseReal(cells[colArea]); err != nil {
		return fail(colArea, err.Error())
	}
	if m.AreaKm2 != nil && *m.AreaKm2 <= 0 {
		return fail(colArea, "area must be positive")
	}

	counts := []struct {
		col string
		dst **int64
	}{
		{colHouseholds, &m.Households},
		{colAge0To17, &m.Age0To17},
		{colAge18To64, &m.Age18To64},
		{colAge65Plus, &m.Age65Plus},
	}
	for _, c := range counts {
		if *c.dst, err = parseCount(cells[c.col]); err != nil {
			return fail(c.col, err.Error())
		}
	}
	if m.GrowthRatePct, err = parseReal(cells[colGrowth]); err != nil {
		return fail(colGrowth, err.Error())
	}

	m.ComputeDensity()
	return m, nil
}

var numberCleaner = strings.NewReplacer(" ", "", "_", "", "\u00a0", "", "\u202f", "")

// parseReal reads an optional decimal. A lone comma is taken as the decimal
// separator, which is how Belgian spreadsheets export.
func parseReal(cell string) (*float64, error) {
	s := numberCleaner.Replace(strings.TrimSpace(cell))
	if s == "" {
		return nil, nil
	}
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("%q is not a number", cell)
	}
	return &v, nil
}

// parseCount reads an optional non-negative integer. Integral decimals such
// as "530504.0" (spreadsheet exports) are accepted.
func parseCount(cell string) (*int64, error) {
	s := numberCleaner.Replace(strings.TrimSpace(cell))
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt64/2 {
			return nil, fmt.Errorf("%q is not a whole number", cell)
		}
		v = int64(f)
	}
	if v < 0 {
		return nil, fmt.Errorf("%d is negative", v)
	}
	return &v, nil
}
