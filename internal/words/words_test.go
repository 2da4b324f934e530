package words

import (
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/models"
)

func tiny() *Static {
	return NewStatic([]models.Category{
		{Key: "food", Label: "Food", Words: []models.Word{{Word: "Pizza"}, {Word: "Sushi"}}},
		{Key: "tech", Label: "Tech", Premium: true, Words: []models.Word{{Word: "Robot"}}},
	})
}

func TestLoadEmbedded(t *testing.T) {
	c, err := LoadEmbedded()
	require.NoError(t, err)

	cats, err := c.Categories()
	require.NoError(t, err)
	require.NotEmpty(t, cats)
	assert.Equal(t, "places", cats[0].Key)

	premium := map[string]bool{}
	for _, cat := range cats {
		premium[cat.Key] = cat.Premium
		assert.NotEmpty(t, cat.Words, cat.Key)
	}
	assert.False(t, premium["food"])
	assert.True(t, premium["movies"])

	words, err := c.Words("places")
	require.NoError(t, err)
	assert.Equal(t, "places", words[0].Category)
	assert.NotEmpty(t, words[0].ImpostorHint)

	_, err = c.Words("nope")
	assert.ErrorIs(t, err, ErrUnknownCategory)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "words.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"categories":[{"key":"food","label":"Food","words":[{"word":"Taco","hint":"Folded"}]}]}`), 0o644))

	c, err := LoadFile(path)
	require.NoError(t, err)
	words, err := c.Words("food")
	require.NoError(t, err)
	assert.Equal(t, []models.Word{{Word: "Taco", Hint: "Folded", Category: "food"}}, words)

	_, err = Parse([]byte(`{"categories":[]}`))
	assert.Error(t, err)
}

func TestPickerAllSkipsPremium(t *testing.T) {
	p := NewPicker(tiny(), rand.New(rand.NewSource(1)))
	for i := 0; i < 10; i++ {
		w, err := p.Pick([]string{AllCategories})
		require.NoError(t, err)
		assert.Equal(t, "food", w.Category)
	}
}

func TestPickerFallsBackToFood(t *testing.T) {
	p := NewPicker(tiny(), rand.New(rand.NewSource(1)))
	w, err := p.Pick([]string{"castles"})
	require.NoError(t, err)
	assert.Equal(t, "food", w.Category)

	w, err = p.Pick([]string{"tech"})
	require.NoError(t, err)
	assert.Equal(t, "Robot", w.Word)
}

func TestPickerAvoidsRecentWords(t *testing.T) {
	c, err := LoadEmbedded()
	require.NoError(t, err)
	pool, err := c.Words("food")
	require.NoError(t, err)
	require.Greater(t, len(pool), MaxRecent)

	p := NewPicker(c, rand.New(rand.NewSource(42)))
	seen := map[string]bool{}
	for i := 0; i < MaxRecent; i++ {
		w, err := p.Pick([]string{"food"})
		require.NoError(t, err)
		assert.False(t, seen[w.Word], "repeated %s", w.Word)
		seen[w.Word] = true
	}
	assert.Len(t, p.Recent(), MaxRecent)

	p.Pick([]string{"food"})
	assert.Len(t, p.Recent(), MaxRecent, "memory is capped")
}

func TestPickerResetsWhenExhausted(t *testing.T) {
	p := NewPicker(tiny(), rand.New(rand.NewSource(3)))
	a, _ := p.Pick([]string{"food"})
	b, _ := p.Pick([]string{"food"})
	assert.NotEqual(t, a.Word, b.Word)

	c, err := p.Pick([]string{"food"})
	require.NoError(t, err)
	assert.Contains(t, []string{"Pizza", "Sushi"}, c.Word)
	assert.Equal(t, []string{c.Word}, p.Recent())
}

func TestSQLCatalog(t *testing.T) {
	ctx := context.Background()
	db, err := OpenSQL("sqlite", filepath.Join(t.TempDir(), "words.db"), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Seed(ctx, tiny()))
	// seeding twice is an upsert
	require.NoError(t, db.Seed(ctx, tiny()))

	cats, err := db.Categories()
	require.NoError(t, err)
	require.Len(t, cats, 2)
	assert.Equal(t, models.Category{Key: "food", Label: "Food"}, cats[0])
	assert.True(t, cats[1].Premium)

	words, err := db.Words("food")
	require.NoError(t, err)
	assert.Equal(t, []models.Word{{Word: "Pizza", Category: "food"}, {Word: "Sushi", Category: "food"}}, words)

	_, err = db.Words("castles")
	assert.ErrorIs(t, err, ErrUnknownCategory)

	p := NewPicker(db, rand.New(rand.NewSource(1)))
	w, err := p.Pick([]string{AllCategories})
	require.NoError(t, err)
	assert.Equal(t, "food", w.Category)
}

func TestOpenSQLUnknownDriver(t *testing.T) {
	_, err := OpenSQL("oracle", "", nil)
	assert.Error(t, err)
}
