package words

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/models"
)

// ErrUnknownCategory is returned for a category key the catalog does not have
var ErrUnknownCategory = errors.New("unknown word category")

//go:embed data/words.json
var embedded []byte

// Catalog lists word categories and their words
type Catalog interface {
	Categories() ([]models.Category, error)
	Words(category string) ([]models.Word, error)
}

type document struct {
	Categories []models.Category `json:"categories"`
}

// Static is an in-memory catalog
type Static struct {
	order []string
	byKey map[string]models.Category
}

// NewStatic builds a catalog from categories, keeping their order
func NewStatic(categories []models.Category) *Static {
	s := &Static{byKey: make(map[string]models.Category, len(categories))}
	for _, c := range categories {
		words := make([]models.Word, len(c.Words))
		for i, w := range c.Words {
			w.Category = c.Key
			words[i] = w
		}
		c.Words = words
		if _, dup := s.byKey[c.Key]; !dup {
			s.order = append(s.order, c.Key)
		}
		s.byKey[c.Key] = c
	}
	return s
}

// LoadEmbedded returns the built-in catalog
func LoadEmbedded() (*Static, error) {
	return Parse(embedded)
}

// LoadFile reads a catalog JSON file
func LoadFile(path string) (*Static, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	raw, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes a catalog document
func Parse(raw []byte) (*Static, error) {
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse word catalog: %w", err)
	}
	if len(doc.Categories) == 0 {
		return nil, errors.New("word catalog has no categories")
	}
	return NewStatic(doc.Categories), nil
}

// Categories implements Catalog; word lists are included
func (s *Static) Categories() ([]models.Category, error) {
	out := make([]models.Category, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.byKey[key])
	}
	return out, nil
}

// Words implements Catalog
func (s *Static) Words(category string) ([]models.Word, error) {
	c, ok := s.byKey[category]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCategory, category)
	}
	return append([]models.Word(nil), c.Words...), nil
}
