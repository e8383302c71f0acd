package prompt

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRender(t *testing.T) {
	got, err := Render("Hello {{name}}, {{name}} uses {{tool}}.", map[string]string{"name": "Ada", "tool": "Go"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "Hello Ada, Ada uses Go." {
		t.Errorf("got %q", got)
	}

	_, err = Render("{{a}} {{b}} {{c}}", map[string]string{"b": ""})
	if err == nil || !strings.Contains(err.Error(), "a, c") {
		t.Errorf("err = %v, want missing a, c", err)
	}
}

func TestVariables(t *testing.T) {
	got := Variables("{{b}} {{a}} {{b}} {not} {{ spaced }}")
	if len(got) != 2 || got[0] != "b" || got[1] != "a" {
		t.Errorf("Variables = %v", got)
	}
}

func TestCompose(t *testing.T) {
	got, err := Compose("Make HTML.", "a red {{button}}")
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if got != "Make HTML.\n\na red {{button}}" {
		t.Errorf("got %q", got)
	}
}

func TestLibraryBuild(t *testing.T) {
	l := NewLibrary()

	img, err := l.Build(SourceImage, "", "ignored")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !strings.HasPrefix(img, "Convert this UI image") || strings.Contains(img, "ignored") {
		t.Errorf("image prompt = %q", img)
	}

	text, _ := l.Build(SourceText, "", "a login form")
	if !strings.HasPrefix(text, "Convert this Description") || !strings.HasSuffix(text, "\n\na login form") {
		t.Errorf("text prompt = %q", text)
	}

	custom, _ := l.Build(SourceVoice, "  Use Tailwind.  ", "a navbar")
	if custom != "Use Tailwind.\n\na navbar" {
		t.Errorf("override prompt = %q", custom)
	}

	for _, s := range Sources {
		if l.Instructions(s, "") == "" {
			t.Errorf("no default for %s", s)
		}
	}
}

func TestLibraryLoadDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "sketch.txt"), []byte("  Sketch rules.\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "text.txt"), []byte("   \n"), 0o644); err != nil {
		t.Fatal(err)
	}

	l := NewLibrary()
	if err := l.LoadDir(dir); err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if got := l.Instructions(SourceSketch, ""); got != "Sketch rules." {
		t.Errorf("sketch = %q", got)
	}
	if got := l.Instructions(SourceText, ""); got != defaults[SourceText] {
		t.Errorf("blank file replaced text prompt: %q", got)
	}
	if err := l.LoadDir(""); err != nil {
		t.Errorf("LoadDir(\"\") = %v", err)
	}
}
