// Package templates loads the challenge-template catalog from YAML files.
// Templates are blueprints; instantiation happens in the challenge factory.
package templates

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/terra-clan/challenge-engine/internal/models"
)

// Loader manages the in-memory template catalog
type Loader struct {
	mu        sync.RWMutex
	templates map[string]*models.ChallengeTemplate
}

// NewLoader creates an empty loader
func NewLoader() *Loader {
	return &Loader{templates: make(map[string]*models.ChallengeTemplate)}
}

// LoadFromDir loads all YAML templates from a directory and its first
// level of subdirectories
func (l *Loader) LoadFromDir(dir string) error {
	slog.Info("loading challenge templates", "dir", dir)

	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err == nil {
			files = append(files, matches...)
		}
		subMatches, err := filepath.Glob(filepath.Join(dir, "*", pattern))
		if err == nil {
			files = append(files, subMatches...)
		}
	}

	if len(files) == 0 {
		return fmt.Errorf("no template files found in %s", dir)
	}

	loaded := 0
	for _, file := range files {
		tmpl, err := loadTemplateFile(file)
		if err != nil {
			slog.Warn("skipping invalid template", "file", file, "error", err)
			continue
		}

		l.mu.Lock()
		l.templates[tmpl.ID] = tmpl
		l.mu.Unlock()
		loaded++
	}

	slog.Info("challenge templates loaded", "count", loaded)
	return nil
}

func loadTemplateFile(path string) (*models.ChallengeTemplate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template: %w", err)
	}

	var tmpl models.ChallengeTemplate
	if err := yaml.Unmarshal(data, &tmpl); err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}

	if tmpl.ID == "" {
		// Fall back to the file name without extension
		base := filepath.Base(path)
		tmpl.ID = strings.TrimSuffix(base, filepath.Ext(base))
	}

	if tmpl.Title == "" {
		return nil, fmt.Errorf("template %s has no title", tmpl.ID)
	}

	if tmpl.FocusArea != "" {
		if _, err := models.ParseFocusArea(tmpl.FocusArea); err != nil {
			return nil, fmt.Errorf("template %s: %w", tmpl.ID, err)
		}
	}

	if tmpl.Difficulty != "" {
		if _, err := models.ParseDifficulty(tmpl.Difficulty); err != nil {
			return nil, fmt.Errorf("template %s: %w", tmpl.ID, err)
		}
	}

	return &tmpl, nil
}

// Get returns a template by id, or nil
func (l *Loader) Get(id string) *models.ChallengeTemplate {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.templates[id]
}

// List returns all templates sorted by id
func (l *Loader) List() []*models.ChallengeTemplate {
	l.mu.RLock()
	defer l.mu.RUnlock()

	all := make([]*models.ChallengeTemplate, 0, len(l.templates))
	for _, t := range l.templates {
		all = append(all, t)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return all
}

// ListByFocusArea returns templates tagged with the given focus area code
func (l *Loader) ListByFocusArea(code string) []*models.ChallengeTemplate {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var matched []*models.ChallengeTemplate
	for _, t := range l.templates {
		if t.FocusArea == code {
			matched = append(matched, t)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	return matched
}

// Add registers a template directly. Used by tests and seeding.
func (l *Loader) Add(tmpl *models.ChallengeTemplate) {
	l.mu.Lock()
	l.templates[tmpl.ID] = tmpl
	l.mu.Unlock()
}

// Count returns the number of loaded templates
func (l *Loader) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.templates)
}
