package exporter

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWriteWorkbook(t *testing.T) {
	tbl := sampleTable(t, "date,amount,note\n2024-01-01,10.5,first\n2024-01-02,,second\n")

	var buf bytes.Buffer
	require.NoError(t, WriteWorkbook(&buf, tbl, ""))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{DefaultSheet}, f.GetSheetList())

	rows, err := f.GetRows(DefaultSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"date", "amount", "note"}, rows[0])
	assert.Equal(t, []string{"2024-01-01", "10.5", "first"}, rows[1])
	assert.Equal(t, []string{"2024-01-02", "", "second"}, rows[2])

	cellType, err := f.GetCellType(DefaultSheet, "B2")
	require.NoError(t, err)
	assert.NotEqual(t, excelize.CellTypeSharedString, cellType)
}

func TestWriteWorkbookCustomSheet(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteWorkbook(&buf, sampleTable(t, "a\n1\n"), "market"))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"market"}, f.GetSheetList())
}
