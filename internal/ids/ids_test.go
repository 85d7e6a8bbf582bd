package ids

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratorSortsWithinSameMillisecond(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	gen := NewGenerator(func() time.Time { return fixed })

	got := make([]string, 0, 100)
	for i := 0; i < 100; i++ {
		got = append(got, gen.New())
	}
	assert.True(t, sort.StringsAreSorted(got), "ids minted in one millisecond must stay ordered")
}

func TestValid(t *testing.T) {
	id := New()
	require.Len(t, id, 26)
	assert.True(t, Valid(id))
	assert.False(t, Valid(""))
	assert.False(t, Valid("not-a-ulid"))
	assert.False(t, Valid(id+"0"))
}
