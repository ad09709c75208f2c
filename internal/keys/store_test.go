package keys

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectEmpty(t *testing.T) {
	got, err := Collect(func(yield func(string, error) bool) {})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestCollectStopsAtError(t *testing.T) {
	boom := errors.New("boom")
	seq := func(yield func(string, error) bool) {
		if !yield("a", nil) {
			return
		}
		if !yield("", boom) {
			return
		}
		yield("never", nil)
	}

	got, err := Collect(seq)
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, got)
}

func TestFailed(t *testing.T) {
	boom := errors.New("boom")
	_, err := Collect(Failed(boom))
	assert.ErrorIs(t, err, boom)
}
