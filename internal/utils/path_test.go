package utils

import (
	"path/filepath"
	"runtime"
	"testing"
)

func TestResolvePath(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantError bool
	}{
		{
			name:      "empty path",
			input:     "",
			wantError: true,
		},
		{
			name:      "relative path",
			input:     "./test",
			wantError: false,
		},
		{
			name:      "absolute path",
			input:     "/tmp/test",
			wantError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ResolvePath(tt.input)
			if (err != nil) != tt.wantError {
				t.Errorf("ResolvePath(%q) error = %v, wantError %v", tt.input, err, tt.wantError)
			}
			if !tt.wantError && result == "" {
				t.Errorf("ResolvePath(%q) returned empty string", tt.input)
			}
		})
	}
}

func TestWindowsPathHandling(t *testing.T) {
	if runtime.GOOS != "windows" {
		t.Skip("Skipping Windows-specific tests on non-Windows platform")
	}

	// Test that Windows paths are handled correctly
	tests := []struct {
		name  string
		path  string
		isDir bool
	}{
		{
			name:  "Windows path with backslashes",
			path:  `C:\Windows\System32`,
			isDir: true,
		},
		{
			name:  "Windows path with forward slashes",
			path:  "C:/Windows/System32",
			isDir: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Just test that the path operations don't panic
			_ = filepath.Clean(tt.path)
			_ = filepath.Dir(tt.path)
			_ = filepath.Base(tt.path)
		})
	}
}

func TestWithinRoot(t *testing.T) {
	root := filepath.FromSlash("/home/user/project")
	tests := []struct {
		name string
		path string
		want bool
	}{
		{
			name: "root itself",
			path: filepath.FromSlash("/home/user/project"),
			want: true,
		},
		{
			name: "direct child",
			path: filepath.FromSlash("/home/user/project/input/data.csv"),
			want: true,
		},
		{
			name: "sibling directory",
			path: filepath.FromSlash("/home/user/other"),
			want: false,
		},
		{
			name: "parent escape",
			path: filepath.FromSlash("/home/user"),
			want: false,
		},
		{
			name: "prefix but not child",
			path: filepath.FromSlash("/home/user/projectx/file"),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WithinRoot(root, tt.path); got != tt.want {
				t.Errorf("WithinRoot(%q, %q) = %v, want %v", root, tt.path, got, tt.want)
			}
		})
	}
}

func TestSafeJoin(t *testing.T) {
	root := filepath.FromSlash("/home/user/project")
	tests := []struct {
		name      string
		rel       string
		wantError bool
	}{
		{
			name:      "simple relative",
			rel:       "input/data.csv",
			wantError: false,
		},
		{
			name:      "dot segments inside root",
			rel:       "input/./sub/../data.csv",
			wantError: false,
		},
		{
			name:      "escape via dotdot",
			rel:       "../secrets.txt",
			wantError: true,
		},
		{
			name:      "deep escape",
			rel:       "input/../../../etc/passwd",
			wantError: true,
		},
		{
			name:      "absolute inside root",
			rel:       filepath.FromSlash("/home/user/project/app/run.py"),
			wantError: false,
		},
		{
			name:      "absolute outside root",
			rel:       filepath.FromSlash("/etc/passwd"),
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SafeJoin(root, tt.rel)
			if (err != nil) != tt.wantError {
				t.Fatalf("SafeJoin(%q, %q) error = %v, wantError %v", root, tt.rel, err, tt.wantError)
			}
			if !tt.wantError && !WithinRoot(root, got) {
				t.Errorf("SafeJoin(%q, %q) = %q, not within root", root, tt.rel, got)
			}
		})
	}
}