package platform

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindRoot(t *testing.T) {
	// /tmp/
	//   notes/ (.notecap)
	//     subdir/
	//       nested/
	//   yaml/ (notecap.yaml)
	//   empty/

	baseDir := t.TempDir()
	notesDir := filepath.Join(baseDir, "notes")
	subDir := filepath.Join(notesDir, "subdir")
	nestedDir := filepath.Join(subDir, "nested")
	yamlDir := filepath.Join(baseDir, "yaml")
	emptyDir := filepath.Join(baseDir, "empty")

	require.NoError(t, os.MkdirAll(nestedDir, 0755))
	require.NoError(t, os.MkdirAll(emptyDir, 0755))
	require.NoError(t, os.MkdirAll(yamlDir, 0755))
	require.NoError(t, os.Mkdir(filepath.Join(notesDir, ".notecap"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(yamlDir, "notecap.yaml"), nil, 0644))

	tests := []struct {
		name      string
		startPath string
		wantRoot  string
		wantErr   bool
	}{
		{name: "Start at Root", startPath: notesDir, wantRoot: notesDir},
		{name: "Start in Subdir", startPath: subDir, wantRoot: notesDir},
		{name: "Start Nested Deeply", startPath: nestedDir, wantRoot: notesDir},
		{name: "Config File Marker", startPath: yamlDir, wantRoot: yamlDir},
		{name: "No Root Found", startPath: emptyDir, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FindRoot(tt.startPath)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrRootNotFound)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, filepath.Clean(tt.wantRoot), filepath.Clean(got))
		})
	}
}
