package openedfiles

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReadReadDoesNotConflict(t *testing.T) {
	r := New()

	_, ok1 := r.Open("s1", "/a", "f.txt", Read)
	_, ok2 := r.Open("s1", "/a", "f.txt", Read)

	assert.True(t, ok1)
	assert.True(t, ok2)
}

func TestWriteWriteConflicts(t *testing.T) {
	r := New()

	uid1, ok1 := r.Open("s1", "/a", "f.txt", Write)
	_, ok2 := r.Open("s1", "/a", "f.txt", Write)

	assert.True(t, ok1)
	assert.False(t, ok2)

	r.Close(uid1)

	_, ok3 := r.Open("s1", "/a", "f.txt", Write)
	assert.True(t, ok3)
}

func TestDifferentAccessTypesConflict(t *testing.T) {
	r := New()

	_, ok1 := r.Open("s1", "/a", "f.txt", Read)
	_, ok2 := r.Open("s1", "/a", "f.txt", Write)

	assert.True(t, ok1)
	assert.False(t, ok2)
}

func TestDifferentPathsDoNotConflict(t *testing.T) {
	r := New()

	_, ok1 := r.Open("s1", "/a", "f.txt", Write)
	_, ok2 := r.Open("s1", "/b", "f.txt", Write)

	assert.True(t, ok1)
	assert.True(t, ok2)
}

func TestDifferentSessionsDoNotConflict(t *testing.T) {
	r := New()

	_, ok1 := r.Open("s1", "/a", "f.txt", Write)
	_, ok2 := r.Open("s2", "/a", "f.txt", Write)

	assert.True(t, ok1)
	assert.True(t, ok2)
}

func TestCloseUnknownUIDIsNoOp(t *testing.T) {
	r := New()
	assert.NotPanics(t, func() { r.Close(UID(999)) })
}

func TestDeleteDeleteDoesNotConflictPerSpec(t *testing.T) {
	// Spec: conflict iff access types differ OR both are Write. Two
	// Delete registrations are neither, so they're allowed concurrently.
	r := New()

	_, ok1 := r.Open("s1", "/a", "f.txt", Delete)
	_, ok2 := r.Open("s1", "/a", "f.txt", Delete)

	assert.True(t, ok1)
	assert.True(t, ok2)
}
