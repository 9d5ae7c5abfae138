package pathutil_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/JamesPrial/tabtime/internal/pathutil"
)

func Test_DataDir_UsesXDGDataHome(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("XDG_DATA_HOME", tmp)

	got, err := pathutil.DataDir()
	if err != nil {
		t.Fatalf("DataDir() error = %v", err)
	}
	want := filepath.Join(tmp, pathutil.AppName)
	if got != want {
		t.Errorf("DataDir() = %q, want %q", got, want)
	}
}

func Test_DataDir_FallsBackToHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("XDG_DATA_HOME", "")
	t.Setenv("HOME", home)

	got, err := pathutil.DataDir()
	if err != nil {
		t.Fatalf("DataDir() error = %v", err)
	}
	want := filepath.Join(home, ".local", "share", pathutil.AppName)
	if got != want {
		t.Errorf("DataDir() = %q, want %q", got, want)
	}
}

func Test_ExpandHome_Cases(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home directory: %v", err)
	}

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "tilde prefix", in: "~/data", want: filepath.Join(home, "data")},
		{name: "absolute path untouched", in: "/var/lib/tabtime", want: "/var/lib/tabtime"},
		{name: "relative path untouched", in: "data", want: "data"},
		{name: "empty", in: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := pathutil.ExpandHome(tt.in)
			if err != nil {
				t.Fatalf("ExpandHome(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ExpandHome(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
