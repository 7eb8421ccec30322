package seed

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog_Consistent(t *testing.T) {
	skus := map[string]bool{}
	for _, m := range Medicines() {
		assert.False(t, skus[m.SKU], "duplicate sku %s", m.SKU)
		skus[m.SKU] = true
		assert.False(t, m.UnitPrice.IsNegative(), m.SKU)
	}
	for _, d := range Doctors() {
		assert.Less(t, d.Clinic, len(Clinics()), d.Name)
	}
	codes := map[string]bool{}
	for _, p := range Plans() {
		assert.False(t, codes[p.Code], "duplicate plan %s", p.Code)
		codes[p.Code] = true
	}
	assert.NotEmpty(t, Patients())
}

func TestLoadMedicines(t *testing.T) {
	csv := "\ufeffSKU,Name,Unit_Price,Stock_Qty,Category\n" +
		"napa-500,Napa 500,1.20,100,Analgesic\n" +
		"seclo,Seclo 20,6,,\n" +
		"NAPA-500,Napa again,1.00,1,\n" +
		",Nameless,1,1,\n" +
		"bad,Bad price,abc,1,\n" +
		"neg,Negative stock,1,-4,\n"

	got, err := LoadMedicines(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "NAPA-500", got[0].SKU)
	assert.Equal(t, "Analgesic", got[0].Category)
	assert.Equal(t, 100, got[0].Stock)
	assert.Equal(t, "tablet", got[0].Unit)
	assert.True(t, got[0].UnitPrice.Equal(price("1.20")))

	assert.Equal(t, "SECLO", got[1].SKU)
	assert.Zero(t, got[1].Stock)
}

func TestLoadMedicines_MissingColumn(t *testing.T) {
	_, err := LoadMedicines(strings.NewReader("sku,name\nA,B\n"))
	assert.ErrorContains(t, err, "unit_price")

	_, err = LoadMedicines(strings.NewReader(""))
	assert.Error(t, err)
}

func TestLoadMedicinesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "medicines.csv")
	require.NoError(t, os.WriteFile(path, []byte("sku,name,unit_price\nA,Alpha,2\n"), 0o600))

	got, err := LoadMedicinesFile(path)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	_, err = LoadMedicinesFile(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}
