package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	tempDir := t.TempDir()
	for path, content := range files {
		fullPath := filepath.Join(tempDir, path)
		require.NoError(t, os.MkdirAll(filepath.Dir(fullPath), 0o755))
		require.NoError(t, os.WriteFile(fullPath, []byte(content), 0o644))
	}
	return tempDir
}

func TestProjectScanner(t *testing.T) {
	t.Parallel()
	tempDir := writeTree(t, map[string]string{
		"file1.aui":          "module A is end module.",
		"file2.aum":          "module body A is end module body.",
		"file3.txt":          "This is a text file",
		"subdir/file4.aui":   "module B is end module.",
		".git/objects/x.aui": "not a source",
		"vendor/dep.aui":     "module C is end module.",
	})

	tests := []struct {
		name       string
		extensions []string
		skip       []string
		want       []string
	}{
		{
			name:       "dotted extensions",
			extensions: []string{".aui", ".aum"},
			want:       []string{"file1.aui", "file2.aum", "subdir/file4.aui", "vendor/dep.aui"},
		},
		{
			name:       "bare extensions",
			extensions: []string{"aui"},
			want:       []string{"file1.aui", "subdir/file4.aui", "vendor/dep.aui"},
		},
		{
			name:       "extra skipped dir",
			extensions: []string{"aui"},
			skip:       []string{"vendor"},
			want:       []string{"file1.aui", "subdir/file4.aui"},
		},
		{
			name: "every file",
			want: []string{"file1.aui", "file2.aum", "file3.txt", "subdir/file4.aui", "vendor/dep.aui"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			scannedFiles, err := New(tempDir, tc.extensions...).SkipDir(tc.skip...).Scan()
			require.NoError(t, err)

			var got []string
			for _, file := range scannedFiles {
				rel, err := filepath.Rel(tempDir, file.Path)
				require.NoError(t, err)
				got = append(got, filepath.ToSlash(rel))
				assert.Greater(t, file.Size, int64(0), "File size should be greater than 0")
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestScanMissingRoot(t *testing.T) {
	t.Parallel()
	_, err := New(filepath.Join(t.TempDir(), "missing"), ".aui").Scan()
	assert.Error(t, err)
}
