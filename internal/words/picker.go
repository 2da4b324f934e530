package words

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/models"
)

const (
	// AllCategories selects every free category
	AllCategories = "all"
	// FallbackCategory is used when a selection names nothing playable
	FallbackCategory = "food"
	// MaxRecent is how many picked words are kept out of rotation
	MaxRecent = 20
)

// Picker draws words while avoiding recent repeats
type Picker struct {
	catalog Catalog

	mu     sync.Mutex
	recent []string
	limit  int
	rng    *rand.Rand
}

// NewPicker creates a Picker over catalog; rng may be nil
func NewPicker(catalog Catalog, rng *rand.Rand) *Picker {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Picker{catalog: catalog, limit: MaxRecent, rng: rng}
}

// Recent returns the words currently held out of rotation
func (p *Picker) Recent() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.recent...)
}

// Pick returns a word from the selected categories
func (p *Picker) Pick(categories []string) (models.Word, error) {
	keys, err := p.resolve(categories)
	if err != nil {
		return models.Word{}, err
	}

	var pool []models.Word
	for _, key := range keys {
		words, err := p.catalog.Words(key)
		if err != nil {
			return models.Word{}, err
		}
		pool = append(pool, words...)
	}
	if len(pool) == 0 {
		return models.Word{}, fmt.Errorf("no words in categories %v", keys)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	fresh := make([]models.Word, 0, len(pool))
	for _, w := range pool {
		if !p.isRecent(w.Word) {
			fresh = append(fresh, w)
		}
	}
	if len(fresh) == 0 {
		p.recent = p.recent[:0]
		fresh = pool
	}

	word := fresh[p.rng.Intn(len(fresh))]
	p.recent = append(p.recent, word.Word)
	if len(p.recent) > p.limit {
		p.recent = p.recent[len(p.recent)-p.limit:]
	}
	return word, nil
}

func (p *Picker) isRecent(word string) bool {
	for _, r := range p.recent {
		if r == word {
			return true
		}
	}
	return false
}

// resolve expands "all" to the free categories and drops unknown keys
func (p *Picker) resolve(categories []string) ([]string, error) {
	all, err := p.catalog.Categories()
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(all))
	for _, c := range all {
		known[c.Key] = true
	}

	var keys []string
	seen := make(map[string]bool)
	add := func(key string) {
		if known[key] && !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	for _, key := range categories {
		if key == AllCategories {
			for _, c := range all {
				if !c.Premium {
					add(c.Key)
				}
			}
			continue
		}
		add(key)
	}
	if len(categories) == 0 {
		for _, c := range all {
			if !c.Premium {
				add(c.Key)
			}
		}
	}
	if len(keys) == 0 {
		add(FallbackCategory)
	}
	if len(keys) == 0 {
		return nil, errors.New("word catalog has no playable category")
	}
	return keys, nil
}
