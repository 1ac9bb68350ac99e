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
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "events"), 0o755))

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"direct child", filepath.Join(dir, "a.png"), false},
		{"nested missing file", filepath.Join(dir, "events", "new", "b.html"), false},
		{"dir itself", dir, false},
		{"dot dot", filepath.Join(dir, "..", "escape.png"), true},
		{"dot dot inside", filepath.Join(dir, "events", "..", "c.png"), false},
		{"absolute elsewhere", filepath.Join(os.TempDir(), "other-dir", "x"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePathWithinDirectory(tt.path, dir)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrPathEscape)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatePathWithinDirectory_Symlink(t *testing.T) {
	dir := t.TempDir()
	outside := t.TempDir()
	link := filepath.Join(dir, "link")
	if err := os.Symlink(outside, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	err := ValidatePathWithinDirectory(filepath.Join(link, "new.png"), dir)
	assert.ErrorIs(t, err, ErrPathEscape)
}

func TestValidatePathWithinDirectory_MissingDir(t *testing.T) {
	err := ValidatePathWithinDirectory("x", filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrPathEscape)
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"ward 7/bed_event_0.png", "ward_7_bed_event_0.png"},
		{"../../etc/passwd", "etc_passwd"},
		{"a  ##  b", "a_b"},
		{"", "unknown"},
		{"...", "unknown"},
		{"ÉEG-01", "EG-01"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeFilename(tt.in))
		})
	}

	long := SanitizeFilename(strings.Repeat("a", 500))
	assert.Len(t, long, maxFilenameLen)
}

func TestOutputPath(t *testing.T) {
	dir := t.TempDir()
	got, err := OutputPath(dir, "../rec/event 1.png")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "rec_event_1.png"), got)
}
