package templates

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFromRepoDir(t *testing.T) {
	// Use the actual templates directory
	templatesDir := filepath.Join("..", "..", "templates")

	if _, err := os.Stat(templatesDir); os.IsNotExist(err) {
		t.Skip("templates directory not found, skipping")
	}

	loader := NewLoader()
	if err := loader.LoadFromDir(templatesDir); err != nil {
		t.Fatalf("LoadFromDir failed: %v", err)
	}

	if loader.Count() < 3 {
		t.Errorf("expected at least 3 templates, got %d", loader.Count())
	}

	tmpl := loader.Get("ai-ethics-bias-audit")
	if tmpl == nil {
		t.Fatal("ai-ethics-bias-audit template not found")
	}
	if tmpl.Title != "Bias Audit of a Hiring Model" {
		t.Errorf("unexpected title: %q", tmpl.Title)
	}
	if tmpl.FocusArea != "ai_ethics" {
		t.Errorf("unexpected focus area: %q", tmpl.FocusArea)
	}
	if len(tmpl.Questions) != 2 {
		t.Errorf("expected 2 questions, got %d", len(tmpl.Questions))
	}
	if tmpl.Questions[0].ID != "q-1" {
		t.Errorf("unexpected question id: %q", tmpl.Questions[0].ID)
	}

	ethics := loader.ListByFocusArea("ai_ethics")
	if len(ethics) < 1 {
		t.Error("expected at least one ai_ethics template")
	}

	// List is sorted by id
	all := loader.List()
	for i := 1; i < len(all); i++ {
		if all[i-1].ID > all[i].ID {
			t.Errorf("List not sorted: %q before %q", all[i-1].ID, all[i].ID)
		}
	}
}

func TestLoadFromDirValidation(t *testing.T) {
	dir := t.TempDir()

	write := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	write("good.yaml", "title: Good One\nfocus_area: communication\ndifficulty: easy\n")
	write("no-title.yaml", "focus_area: communication\n")
	write("bad-focus.yaml", "title: Bad Focus\nfocus_area: nonsense\n")
	write("bad-difficulty.yaml", "title: Bad Difficulty\ndifficulty: legendary\n")
	write("broken.yaml", "{{{not yaml\n")

	loader := NewLoader()
	if err := loader.LoadFromDir(dir); err != nil {
		t.Fatalf("LoadFromDir failed: %v", err)
	}

	// Only the valid file survives; invalid ones are skipped, not fatal
	if loader.Count() != 1 {
		t.Errorf("expected 1 loaded template, got %d", loader.Count())
	}

	// Missing id falls back to the file name
	if loader.Get("good") == nil {
		t.Error("template id should default to the file name")
	}
}

func TestLoadFromMissingDir(t *testing.T) {
	loader := NewLoader()
	if err := loader.LoadFromDir(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Error("expected error for directory without templates")
	}
}
