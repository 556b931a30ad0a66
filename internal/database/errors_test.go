package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindSentinelMatching(t *testing.T) {
	assert.ErrorIs(t, ErrKeyNotFound, ErrNotFound)
	assert.ErrorIs(t, ErrInvocationNotFound, ErrNotFound)
	assert.ErrorIs(t, ErrAlreadyRegistered, ErrConflict)
	assert.ErrorIs(t, ErrBlockContentMismatch, ErrConflict)
	assert.ErrorIs(t, ErrNotPrimary, ErrForbidden)
	assert.ErrorIs(t, ErrKeyDecommissioned, ErrForbidden)
	assert.ErrorIs(t, ErrPoolTimeout, ErrTransient)
	assert.ErrorIs(t, ErrTwoPrimaries, ErrCorrupt)

	// kinds do not bleed into each other
	assert.NotErrorIs(t, ErrKeyNotFound, ErrConflict)
	assert.NotErrorIs(t, ErrNotPrimary, ErrNotFound)
}

func TestSpecificErrorsStayDistinct(t *testing.T) {
	assert.ErrorIs(t, ErrKeyNotFound, ErrKeyNotFound)
	assert.NotErrorIs(t, ErrKeyNotFound, ErrInvocationNotFound)
}

func TestWrapKeepsKindAndCause(t *testing.T) {
	cause := errors.New("disk on fire")
	err := Wrap(KindTransient, "commit failed", cause)

	assert.ErrorIs(t, err, ErrTransient)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "commit failed")
	assert.Contains(t, err.Error(), "disk on fire")
}

func TestWrappedSpecificError(t *testing.T) {
	err := fmt.Errorf("add block data: %w", ErrBlockContentMismatch)
	assert.ErrorIs(t, err, ErrBlockContentMismatch)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestErrorfCarriesKind(t *testing.T) {
	err := Errorf(KindCorrupt, "undecodable record at %x", []byte{0x01})
	assert.ErrorIs(t, err, ErrCorrupt)

	var kinded *Error
	assert.ErrorAs(t, err, &kinded)
	assert.Equal(t, KindCorrupt, kinded.Kind())
}
