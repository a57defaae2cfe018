package exporter

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scscodes/flsd/internal/shared/testutil"
	"github.com/scscodes/flsd/internal/table"
)

func sampleTable(t *testing.T, body string) *table.Table {
	t.Helper()
	tbl, err := table.Decode(strings.NewReader(body))
	require.NoError(t, err)
	return tbl
}

func TestWriteTable(t *testing.T) {
	tests := []struct {
		name    string
		options WriteOptions
		want    string
	}{
		{
			name: "plain",
			want: "date,amount\n2024-01-01,10\n",
		},
		{
			name:    "atomic",
			options: WriteOptions{Atomic: true},
			want:    "date,amount\n2024-01-01,10\n",
		},
		{
			name:    "exclusive new file",
			options: WriteOptions{Exclusive: true},
			want:    "date,amount\n2024-01-01,10\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := testutil.NewTestLogger(t)
			dir := filepath.Join(t.TempDir(), "processed")
			path := filepath.Join(dir, "out.csv")

			w := NewCSVWriter(logger)
			require.NoError(t, w.WriteTable(path, sampleTable(t, "date,amount\n2024-01-01,10\n"), tt.options))

			assert.Equal(t, tt.want, testutil.ReadFile(t, path))
			assert.Equal(t, []string{"out.csv"}, testutil.ListDir(t, dir), "no temp files left behind")
		})
	}
}

func TestWriteTableReplaces(t *testing.T) {
	for _, atomic := range []bool{false, true} {
		dir := t.TempDir()
		path := filepath.Join(dir, "latest.csv")
		w := NewCSVWriter(nil)

		require.NoError(t, w.WriteTable(path, sampleTable(t, "a\n1\n2\n3\n"), WriteOptions{Atomic: atomic}))
		require.NoError(t, w.WriteTable(path, sampleTable(t, "b\n9\n"), WriteOptions{Atomic: atomic}))

		assert.Equal(t, "b\n9\n", testutil.ReadFile(t, path))
	}
}

func TestWriteTableExclusive(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "stamped.csv", "original\n")

	err := NewCSVWriter(nil).WriteTable(path, sampleTable(t, "a\n1\n"), WriteOptions{Exclusive: true})
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrExist))
	assert.Equal(t, "original\n", testutil.ReadFile(t, path))
	assert.Equal(t, []string{"stamped.csv"}, testutil.ListDir(t, dir))
}

func TestWriteTableAtomicConcurrentReaders(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "latest.csv")
	w := NewCSVWriter(nil)

	small := sampleTable(t, "v\n1\n")
	large := sampleTable(t, "v\n"+strings.Repeat("2\n", 5000))
	require.NoError(t, w.WriteTable(path, small, WriteOptions{Atomic: true}))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			tbl := small
			if i%2 == 0 {
				tbl = large
			}
			assert.NoError(t, w.WriteTable(path, tbl, WriteOptions{Atomic: true}))
		}
	}()

	for i := 0; i < 50; i++ {
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		content := string(data)
		assert.True(t, content == "v\n1\n" || content == "v\n"+strings.Repeat("2\n", 5000),
			"reader observed a partial file of %d bytes", len(content))
	}
	wg.Wait()
}
