package security

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePathWithinDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	outputs := filepath.Join(tmpDir, "outputs")
	secrets := filepath.Join(tmpDir, "secrets")
	require.NoError(t, os.MkdirAll(filepath.Join(outputs, "job-1"), 0o755))
	require.NoError(t, os.MkdirAll(secrets, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(secrets, "key"), []byte("k"), 0o600))
	require.NoError(t, os.Symlink(secrets, filepath.Join(outputs, "job-2")))

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"existing file location", filepath.Join(outputs, "job-1", "alarm_analysis.db"), false},
		{"directory itself", outputs, false},
		{"not yet created subtree", filepath.Join(outputs, "job-9", "a", "b.mp4"), false},
		{"dot dot escape", filepath.Join(outputs, "..", "secrets", "key"), true},
		{"sibling prefix", outputs + "-old/file", true},
		{"symlinked directory", filepath.Join(outputs, "job-2", "key"), true},
		{"symlinked parent of new file", filepath.Join(outputs, "job-2", "new", "file"), true},
		{"relative escape", "../../../etc/passwd", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePathWithinDirectory(tt.path, outputs)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	assert.Error(t, ValidatePathWithinDirectory(outputs, filepath.Join(tmpDir, "missing")))
}

func TestValidateExportPath(t *testing.T) {
	assert.NoError(t, ValidateExportPath(filepath.Join(t.TempDir(), "report.xlsx")))
	assert.NoError(t, ValidateExportPath("timeline.png"))
	assert.Error(t, ValidateExportPath("/proc/analyzer-report.html"))
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"clip.mp4":             "clip.mp4",
		"my video (1).mp4":     "my_video_1.mp4",
		"two  \tspaces.avi":    "two_spaces.avi",
		"../../etc/passwd.mp4": "passwd.mp4",
		`C:\Users\x\clip.avi`:  "clip.avi",
		".hidden.mov":          "hidden.mov",
		"çalışma.mp4":          "alma.mp4",
		"日本.mp4":               "mp4",
		"":                     "",
	}
	for in, want := range cases {
		assert.Equal(t, want, SanitizeFilename(in), in)
	}

	long := SanitizeFilename(strings.Repeat("a", 300) + ".webm")
	assert.Len(t, long, maxFilenameLen)
	assert.True(t, strings.HasSuffix(long, ".webm"))
}
