package seed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// medicineHeader lists the recognised CSV columns. Only sku, name and
// unit_price are required; the rest may be absent.
var medicineHeader = []string{"sku", "name", "generic_name", "category", "unit", "unit_price", "stock_qty", "reorder_level"}

// LoadMedicinesFile reads a medicine catalog CSV from path.
func LoadMedicinesFile(path string) ([]Medicine, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("seed: open %s: %w", path, err)
	}
	defer f.Close()
	return LoadMedicines(f)
}

// LoadMedicines parses a CSV whose first row names the columns. Rows that
// cannot be read are logged and skipped, as are repeated SKUs.
func LoadMedicines(r io.Reader) ([]Medicine, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("seed: read medicine header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, required := range []string{"sku", "name", "unit_price"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("seed: medicine csv is missing column %q", required)
		}
	}

	var out []Medicine
	seen := make(map[string]bool)
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			log.Warn().Err(err).Int("line", line).Msg("skip unreadable medicine row")
			continue
		}
		m, err := parseMedicine(record, cols)
		if err != nil {
			log.Warn().Err(err).Int("line", line).Msg("skip medicine row")
			continue
		}
		if seen[m.SKU] {
			continue
		}
		seen[m.SKU] = true
		out = append(out, m)
	}
	log.Info().Int("rows", len(out)).Msg("medicine catalog loaded")
	return out, nil
}

func parseMedicine(record []string, cols map[string]int) (Medicine, error) {
	field := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	m := Medicine{
		SKU:         strings.ToUpper(field("sku")),
		Name:        field("name"),
		GenericName: field("generic_name"),
		Category:    field("category"),
		Unit:        field("unit"),
	}
	if m.SKU == "" || m.Name == "" {
		return Medicine{}, errors.New("sku and name are required")
	}
	if m.Unit == "" {
		m.Unit = "tablet"
	}
	p, err := decimal.NewFromString(field("unit_price"))
	if err != nil || p.IsNegative() {
		return Medicine{}, fmt.Errorf("invalid unit_price %q", field("unit_price"))
	}
	m.UnitPrice = p

	for name, dst := range map[string]*int{"stock_qty": &m.Stock, "reorder_level": &m.ReorderLevel} {
		v := field(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return Medicine{}, fmt.Errorf("invalid %s %q", name, v)
		}
		*dst = n
	}
	return m, nil
}
