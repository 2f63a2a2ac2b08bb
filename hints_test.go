package dns

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sequentialRand(seq ...uint32) func() uint32 {
	i := 0
	return func() uint32 {
		v := seq[i%len(seq)]
		i++
		return v
	}
}

func TestHintsIteratorOrdersByAscendingPriority(t *testing.T) {
	ht := NewHintsTable(WithRand(sequentialRand(0)))
	ht.Insert("example.com.", "10.0.0.1", 5)
	ht.Insert("example.com.", "10.0.0.2", 1)
	ht.Insert("example.com.", "10.0.0.3", 3)

	it := ht.NewIterator("example.com.")
	var got []string
	for {
		addr, ok := it.Next()
		if !ok {
			break
		}
		got = append(got, addr)
	}
	assert.Equal(t, []string{"10.0.0.2", "10.0.0.3", "10.0.0.1"}, got)
}

func TestHintsIteratorIsCaseInsensitiveOnZone(t *testing.T) {
	ht := NewHintsTable(WithRand(sequentialRand(0)))
	ht.Insert("Example.COM.", "10.0.0.1", 1)

	it := ht.NewIterator("example.com.")
	addr, ok := it.Next()
	require.True(t, ok)
	assert.Equal(t, "10.0.0.1", addr)
}

func TestZeroValueIteratorIsImmediatelyExhausted(t *testing.T) {
	var it HintIterator
	_, ok := it.Next()
	assert.False(t, ok)
}

func TestUnknownZoneIteratorIsExhausted(t *testing.T) {
	ht := NewHintsTable()
	it := ht.NewIterator("nowhere.example.")
	_, ok := it.Next()
	assert.False(t, ok)
}

func TestUpdateNegativeNiceDemotesEntry(t *testing.T) {
	clock := NewFixedClock(time.Unix(1000, 0))
	ht := NewHintsTable(WithClock(clock), WithRand(sequentialRand(0)))
	ht.Insert("example.com.", "10.0.0.1", 1)
	ht.Insert("example.com.", "10.0.0.2", 1)

	ht.Update("example.com.", "10.0.0.1", -1)

	it := ht.NewIterator("example.com.")
	addr, ok := it.Next()
	require.True(t, ok)
	assert.Equal(t, "10.0.0.2", addr, "the demoted entry must not appear before the penalty expires")
}

func TestDemotedEntryIsRestoredAfterPenaltyExpires(t *testing.T) {
	clock := NewFixedClock(time.Unix(1000, 0))
	ht := NewHintsTable(WithClock(clock), WithRand(sequentialRand(0)))
	ht.Insert("example.com.", "10.0.0.1", 2)

	ht.Update("example.com.", "10.0.0.1", -1)

	it := ht.NewIterator("example.com.")
	_, ok := it.Next()
	assert.False(t, ok, "the only entry is penalized and should yield nothing yet")

	clock.Advance(10 * time.Second)
	it2 := ht.NewIterator("example.com.")
	addr, ok := it2.Next()
	require.True(t, ok)
	assert.Equal(t, "10.0.0.1", addr)
}

func TestPositiveNiceClearsLossCountAndRestoresSavedPriority(t *testing.T) {
	clock := NewFixedClock(time.Unix(1000, 0))
	ht := NewHintsTable(WithClock(clock), WithRand(sequentialRand(0)))
	ht.Insert("example.com.", "10.0.0.1", 4)

	ht.Update("example.com.", "10.0.0.1", -1)
	ht.Update("example.com.", "10.0.0.1", 1)

	it := ht.NewIterator("example.com.")
	addr, ok := it.Next()
	require.True(t, ok)
	assert.Equal(t, "10.0.0.1", addr)
}

func TestInsertOverwritesExistingEntryPriority(t *testing.T) {
	ht := NewHintsTable(WithRand(sequentialRand(0)))
	ht.Insert("example.com.", "10.0.0.1", 5)
	ht.Insert("example.com.", "10.0.0.1", 1)
	ht.Insert("example.com.", "10.0.0.2", 3)

	it := ht.NewIterator("example.com.")
	addr, ok := it.Next()
	require.True(t, ok)
	assert.Equal(t, "10.0.0.1", addr, "re-inserting the same address updates its priority in place")
}

func TestInsertBeyondCapacityOverwritesOldestRingSlot(t *testing.T) {
	ht := NewHintsTable(WithRand(sequentialRand(0)))
	for i := 0; i < maxHintsPerZone; i++ {
		ht.Insert("example.com.", hostIP(i), 10)
	}
	// This insert should overwrite slot 0 (addr for i==0).
	ht.Insert("example.com.", "10.0.0.99", 1)

	it := ht.NewIterator("example.com.")
	addr, ok := it.Next()
	require.True(t, ok)
	assert.Equal(t, "10.0.0.99", addr)

	count := 0
	for {
		_, ok := it.Next()
		if !ok {
			break
		}
		count++
	}
	assert.Equal(t, maxHintsPerZone-1, count)
}

func hostIP(i int) string {
	return "10.0.1." + itoaHelper(i)
}

func TestUpdateOnUnknownZoneOrAddrIsNoop(t *testing.T) {
	ht := NewHintsTable()
	assert.NotPanics(t, func() {
		ht.Update("nowhere.example.", "10.0.0.1", -1)
	})
	ht.Insert("example.com.", "10.0.0.1", 1)
	assert.NotPanics(t, func() {
		ht.Update("example.com.", "10.0.0.2", -1)
	})
}
