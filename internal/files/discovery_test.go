package files

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scscodes/flsd/internal/shared/testutil"
)

func TestNewDiscovery(t *testing.T) {
	basePath := "/test/base"
	discovery := NewDiscovery(basePath)

	assert.NotNil(t, discovery)
	assert.Equal(t, basePath, discovery.basePath)
}

func TestFindCSVFiles(t *testing.T) {
	tests := []struct {
		name          string
		files         []string
		expectedNames []string
	}{
		{
			name:          "only CSV files",
			files:         []string{"financial_a_1.csv", "market_b_2.CSV"},
			expectedNames: []string{"financial_a_1.csv", "market_b_2.CSV"},
		},
		{
			name:          "mixed file types",
			files:         []string{"data.csv", "report.xlsx", "notes.txt"},
			expectedNames: []string{"data.csv"},
		},
		{
			name:  "no CSV files",
			files: []string{"report.xlsx"},
		},
		{
			name: "empty directory",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			rawDir := filepath.Join(tmpDir, "raw")
			require.NoError(t, os.MkdirAll(rawDir, 0755))

			for _, name := range tt.files {
				testutil.WriteFile(t, rawDir, name, "a\n1\n")
			}

			found, err := NewDiscovery(tmpDir).FindCSVFiles("raw")
			require.NoError(t, err)

			var names []string
			for _, f := range found {
				names = append(names, f.Name)
				assert.Equal(t, filepath.Join(rawDir, f.Name), f.Path)
			}
			assert.ElementsMatch(t, tt.expectedNames, names)
		})
	}
}

func TestFindCSVFilesNonRecursive(t *testing.T) {
	tmpDir := t.TempDir()
	testutil.WriteFile(t, tmpDir, "top.csv", "a\n")
	require.NoError(t, os.MkdirAll(filepath.Join(tmpDir, "nested"), 0755))
	testutil.WriteFile(t, filepath.Join(tmpDir, "nested"), "deep.csv", "a\n")

	found, err := NewDiscovery("/unused").FindCSVFiles(tmpDir)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "top.csv", found[0].Name)
}

func TestFindCSVFilesMissingDirectory(t *testing.T) {
	_, err := NewDiscovery(t.TempDir()).FindCSVFiles("missing")
	assert.Error(t, err)
}

func TestFindFilesByPattern(t *testing.T) {
	tmpDir := t.TempDir()
	testutil.WriteFile(t, tmpDir, "market_20240101_a.csv", "a\n")
	testutil.WriteFile(t, tmpDir, "market_20240102_b.csv", "a\n")
	testutil.WriteFile(t, tmpDir, "financial_20240101_c.csv", "a\n")
	require.NoError(t, os.MkdirAll(filepath.Join(tmpDir, "market_dir.csv"), 0755))

	found, err := NewDiscovery(tmpDir).FindFilesByPattern(".", "market_*.csv")
	require.NoError(t, err)
	assert.Len(t, found, 2)

	_, err = NewDiscovery(tmpDir).FindFilesByPattern(".", "[")
	assert.Error(t, err)
}

func TestFindByType(t *testing.T) {
	tmpDir := t.TempDir()
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	testutil.WriteFileAt(t, tmpDir, "market_old.csv", "a\n", base)
	testutil.WriteFileAt(t, tmpDir, "market_new.csv", "a\n", base.Add(time.Hour))
	testutil.WriteFileAt(t, tmpDir, "forecast_x.csv", "a\n", base.Add(2*time.Hour))

	found, err := NewDiscovery(tmpDir).FindByType(tmpDir, "market")
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "market_new.csv", found[0].Name)
}

func TestGetLatestFile(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	_, ok := GetLatestFile(nil)
	assert.False(t, ok)

	latest, ok := GetLatestFile([]FileInfo{
		{Name: "a", ModTime: base},
		{Name: "b", ModTime: base.Add(time.Minute)},
		{Name: "c", ModTime: base.Add(time.Second)},
	})
	require.True(t, ok)
	assert.Equal(t, "b", latest.Name)

	latest, _ = GetLatestFile([]FileInfo{{Name: "first", ModTime: base}, {Name: "second", ModTime: base}})
	assert.Equal(t, "first", latest.Name)
}
