package listing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchMonth3NarrowsLanguageMask(t *testing.T) {
	month, mask, ok := matchMonth3("May", AllLanguages)
	assert.True(t, ok)
	assert.Equal(t, 5, month)
	assert.Equal(t, LangEnglish, mask) // only English spells May "may"

	month, mask, ok = matchMonth3("Maj", mask)
	// mask from previous call was English-only, so this call's candidate
	// set is narrowed already; "Maj" isn't English, so it fails under a
	// pure-English mask and nothing survives.
	assert.False(t, ok)
	_ = month
	_ = mask
}

func TestMatchMonth3UnknownTokenFails(t *testing.T) {
	_, _, ok := matchMonth3("Xyz", AllLanguages)
	assert.False(t, ok)
}

func TestMatchMonth3AmbiguousAcrossLanguages(t *testing.T) {
	month, mask, ok := matchMonth3("Jan", AllLanguages)
	assert.True(t, ok)
	assert.Equal(t, 1, month)
	assert.Equal(t, AllLanguages, mask) // every supported language spells January "jan"
}
