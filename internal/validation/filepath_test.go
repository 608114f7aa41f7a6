package validation

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPathValidator_Clean(t *testing.T) {
	v := NewPathValidator()

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"absolute", "/tmp/likes.db", false},
		{"relative", "likes.db", false},
		{"empty", "", true},
		{"null byte", "/tmp/lik\x00es.db", true},
		{"control char", "/tmp/lik\x01es.db", true},
		{"too long", "/" + strings.Repeat("a", 5000), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.Clean(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Clean(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err == nil && !filepath.IsAbs(got) {
				t.Errorf("Clean(%q) = %q, want absolute path", tt.input, got)
			}
		})
	}
}

func TestPathValidator_HomeExpansion(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := NewPathValidator().Clean("~/likes/likes.db")
	if err != nil {
		t.Fatalf("Clean() error = %v", err)
	}
	if want := filepath.Join(home, "likes", "likes.db"); got != want {
		t.Errorf("Clean() = %q, want %q", got, want)
	}
}

func TestPathValidator_Directory(t *testing.T) {
	v := NewPathValidator()
	base := t.TempDir()

	missing := filepath.Join(base, "downloads", "alice")
	got, err := v.Directory(missing, false)
	if err != nil {
		t.Fatalf("Directory() error = %v", err)
	}
	if _, statErr := os.Stat(got); !os.IsNotExist(statErr) {
		t.Error("Directory(create=false) should not create the directory")
	}

	if _, err := v.Directory(missing, true); err != nil {
		t.Fatalf("Directory(create=true) error = %v", err)
	}
	if info, statErr := os.Stat(missing); statErr != nil || !info.IsDir() {
		t.Errorf("Directory(create=true) did not create %s", missing)
	}

	file := filepath.Join(base, "file.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := v.Directory(file, false); err == nil {
		t.Error("Directory() on a regular file should fail")
	}
}

func TestPathValidator_File(t *testing.T) {
	v := NewPathValidator()
	base := t.TempDir()

	if _, err := v.File(filepath.Join(base, "like_ids.txt")); err != nil {
		t.Errorf("File() on missing file error = %v", err)
	}
	if _, err := v.File(base); err == nil {
		t.Error("File() on a directory should fail")
	}
}
