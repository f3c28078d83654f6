package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/propdesk/propdesk/internal/models"
)

// Loader holds firms and challenges read from a directory of YAML files.
// It serves as an offer source when no database is configured.
type Loader struct {
	mu         sync.RWMutex
	firms      map[string]*models.Firm
	challenges map[string]*models.Challenge
}

// NewLoader creates an empty catalog
func NewLoader() *Loader {
	return &Loader{
		firms:      make(map[string]*models.Firm),
		challenges: make(map[string]*models.Challenge),
	}
}

// firmFile is the YAML layout of one firm file
type firmFile struct {
	models.Firm `yaml:",inline"`
	Challenges  []models.Challenge `yaml:"challenges"`
}

// LoadFromDir loads every *.yaml / *.yml file in dir. Broken files are skipped with a warning.
func (l *Loader) LoadFromDir(dir string) error {
	slog.Info("loading catalog from directory", "dir", dir)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read catalog directory: %w", err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		if err := l.LoadFromFile(filepath.Join(dir, entry.Name())); err != nil {
			slog.Warn("failed to load catalog file", "file", entry.Name(), "error", err)
			continue
		}
		loaded++
	}

	slog.Info("catalog loaded", "files", loaded, "firms", len(l.firms), "challenges", len(l.challenges))
	return nil
}

// LoadFromFile loads a single firm with its challenges
func (l *Loader) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	var ff firmFile
	if err := yaml.Unmarshal(data, &ff); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	if ff.ID == "" {
		return fmt.Errorf("firm id is required")
	}
	if ff.Name == "" {
		return fmt.Errorf("firm name is required")
	}
	if ff.Status == "" {
		ff.Status = models.FirmStatusListed
	}

	firm := ff.Firm

	l.mu.Lock()
	defer l.mu.Unlock()

	l.firms[firm.ID] = &firm
	for i := range ff.Challenges {
		c := ff.Challenges[i]
		if c.ID == "" {
			c.ID = fmt.Sprintf("%s-%d", firm.ID, i+1)
		}
		c.PropFirmID = firm.ID
		l.challenges[c.ID] = &c
	}

	return nil
}

// Add registers a firm and its challenges programmatically
func (l *Loader) Add(firm *models.Firm, challenges ...*models.Challenge) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.firms[firm.ID] = firm
	for _, c := range challenges {
		c.PropFirmID = firm.ID
		l.challenges[c.ID] = c
	}
}

// GetFirm returns a firm by id
func (l *Loader) GetFirm(id string) *models.Firm {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.firms[id]
}

// ListListedFirms returns listed firms ordered by name
func (l *Loader) ListListedFirms(ctx context.Context) ([]*models.Firm, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]*models.Firm, 0, len(l.firms))
	for _, f := range l.firms {
		if f.IsListed() {
			result = append(result, f)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// ListChallenges returns every challenge ordered by id
func (l *Loader) ListChallenges(ctx context.Context) ([]*models.Challenge, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]*models.Challenge, 0, len(l.challenges))
	for _, c := range l.challenges {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}
