package eval

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevenshteinIdenticalIsZero(t *testing.T) {
	r := levenshtein([]string{"a", "b"}, []string{"a", "b"})
	assert.Equal(t, EditResult{}, r)
}

func TestLevenshteinSubstitutionDeletionInsertionSumsToDistance(t *testing.T) {
	r := levenshtein([]string{"the", "quick", "brown", "fox"}, []string{"the", "quik", "brown", "fox", "jumps"})
	assert.Equal(t, 2, r.Distance)
	assert.Equal(t, 1, r.Substitutions)
	assert.Equal(t, 0, r.Deletions)
	assert.Equal(t, 1, r.Insertions)
	assert.Equal(t, r.Distance, r.Substitutions+r.Deletions+r.Insertions)
}

func TestLevenshteinPrefersDeletionOverInsertion(t *testing.T) {
	r := levenshtein([]string{"a", "b", "c"}, []string{"a", "c"})
	assert.Equal(t, 1, r.Distance)
	assert.Equal(t, 0, r.Substitutions)
	assert.Equal(t, 1, r.Deletions)
	assert.Equal(t, 0, r.Insertions)
}

func TestLevenshteinEmptyRefIsAllInsertions(t *testing.T) {
	r := levenshtein([]string{}, []string{"a", "b"})
	assert.Equal(t, 2, r.Distance)
	assert.Equal(t, 0, r.Deletions)
	assert.Equal(t, 2, r.Insertions)
}

func TestLevenshteinOverRunes(t *testing.T) {
	r := levenshtein([]rune("kitten"), []rune("sitting"))
	assert.Equal(t, 3, r.Distance)
	assert.Equal(t, r.Distance, r.Substitutions+r.Deletions+r.Insertions)
}
