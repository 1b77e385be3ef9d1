package index

import (
	"bytes"
	"testing"

	"github.com/abramin/cmodel/internal/config"
)

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"src/a.c":            ``,
		"src/a.h":            ``,
		"src/sub/b.cpp":      ``,
		"src/sub/B.HPP":      ``,
		"src/gen/x.pb.h":     ``,
		"vendor/lib.c":       ``,
		"build/out.c":        ``,
		"tests/test_a.c":     ``,
		"README.md":          ``,
		"tools/scratch/z.cc": ``,
	})

	tests := []struct {
		name   string
		modify func(*config.Config)
		want   []string
	}{
		{
			name: "defaults",
			want: []string{"src/a.c", "src/a.h", "src/sub/B.HPP", "src/sub/b.cpp", "tests/test_a.c", "tools/scratch/z.cc"},
		},
		{
			name:   "source folders",
			modify: func(c *config.Config) { c.SourceFolders = []string{"src", "tests"} },
			want:   []string{"src/a.c", "src/a.h", "src/sub/B.HPP", "src/sub/b.cpp", "tests/test_a.c"},
		},
		{
			name:   "overlapping folders",
			modify: func(c *config.Config) { c.SourceFolders = []string{".", "src"} },
			want:   []string{"src/a.c", "src/a.h", "src/sub/B.HPP", "src/sub/b.cpp", "tests/test_a.c", "tools/scratch/z.cc"},
		},
		{
			name:   "exclude filter",
			modify: func(c *config.Config) { c.FileFilters.Exclude = []string{`^tests/`, `scratch`} },
			want:   []string{"src/a.c", "src/a.h", "src/sub/B.HPP", "src/sub/b.cpp"},
		},
		{
			name:   "include filter",
			modify: func(c *config.Config) { c.FileFilters.Include = []string{`\.h$`, `\.HPP$`} },
			want:   []string{"src/a.h", "src/sub/B.HPP"},
		},
		{
			name:   "extensions",
			modify: func(c *config.Config) { c.FileExtensions = []string{".c"} },
			want:   []string{"src/a.c", "tests/test_a.c"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			if tt.modify != nil {
				tt.modify(cfg)
			}
			got, err := Discover(cfg, dir)
			if err != nil {
				t.Fatalf("Discover: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Discover() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Discover()[%d] = %s, want %s", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestDiscoverErrors(t *testing.T) {
	dir := t.TempDir()

	cfg := config.Default()
	cfg.SourceFolders = []string{"missing"}
	if _, err := Discover(cfg, dir); err == nil {
		t.Error("expected an error for a missing source folder")
	}

	cfg = config.Default()
	cfg.FileFilters.Include = []string{"("}
	if _, err := Discover(cfg, dir); err == nil {
		t.Error("expected an error for an invalid filter")
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want string
	}{
		{"utf8", []byte("int café;"), "int café;"},
		{"utf8 bom", []byte("\xEF\xBB\xBFint x;"), "int x;"},
		{"utf16le bom", []byte{0xFF, 0xFE, 'i', 0, 'n', 0, 't', 0}, "int"},
		{"utf16be bom", []byte{0xFE, 0xFF, 0, 'i', 0, 'n', 0, 't'}, "int"},
		{"windows-1252", []byte("// caf\xE9 \x93quoted\x94"), "// café “quoted”"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decode(tt.in)
			if !bytes.Equal(got, []byte(tt.want)) {
				t.Errorf("Decode(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
