package session

import (
	"fmt"
	"sync"
	"testing"

	"matchpoint/internal/types"

	"github.com/stretchr/testify/assert"
)

func TestGetEffectiveMissIsBaseline(t *testing.T) {
	store := NewStore()

	_, ok := store.GetEffective("seeker-a", "g1")
	assert.False(t, ok, "no overlay means baseline is authoritative")
}

func TestSetAndGetEffective(t *testing.T) {
	store := NewStore()

	store.SetEffective("seeker-a", "g1", types.WorkingState{
		MatchPercentage: 85,
		ResumeText:      "improved",
		Suggestions:     "",
	})

	state, ok := store.GetEffective("seeker-a", "g1")
	assert.True(t, ok)
	assert.Equal(t, 85, state.MatchPercentage)
	assert.Equal(t, "improved", state.ResumeText)
}

func TestExactKeyLookupOnly(t *testing.T) {
	store := NewStore()
	store.SetEffective("seeker-a", "g1", types.WorkingState{MatchPercentage: 85})

	// Different job key, same identity.
	_, ok := store.GetEffective("seeker-a", "g2")
	assert.False(t, ok)

	// Same job key, different identity.
	_, ok = store.GetEffective("seeker-b", "g1")
	assert.False(t, ok)
}

func TestReset(t *testing.T) {
	store := NewStore()
	store.SetEffective("seeker-a", "g1", types.WorkingState{MatchPercentage: 85})
	store.SetEffective("seeker-a", "g2", types.WorkingState{MatchPercentage: 70})

	store.Reset("seeker-a", "g1")

	_, ok := store.GetEffective("seeker-a", "g1")
	assert.False(t, ok)
	_, ok = store.GetEffective("seeker-a", "g2")
	assert.True(t, ok, "resetting one job must not touch others")
}

func TestResetAllScopedToIdentity(t *testing.T) {
	store := NewStore()
	store.SetEffective("seeker-a", "g1", types.WorkingState{MatchPercentage: 85})
	store.SetEffective("seeker-a", "g2", types.WorkingState{MatchPercentage: 70})
	store.SetEffective("seeker-b", "g1", types.WorkingState{MatchPercentage: 50})

	store.ResetAll("seeker-a")

	_, ok := store.GetEffective("seeker-a", "g1")
	assert.False(t, ok)
	_, ok = store.GetEffective("seeker-a", "g2")
	assert.False(t, ok)
	_, ok = store.GetEffective("seeker-b", "g1")
	assert.True(t, ok, "other identities keep their overlays")
}

func TestConcurrentAccess(t *testing.T) {
	store := NewStore()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			jobKey := fmt.Sprintf("g%d", n)
			store.SetEffective("seeker-a", jobKey, types.WorkingState{MatchPercentage: n})
			state, ok := store.GetEffective("seeker-a", jobKey)
			assert.True(t, ok)
			assert.Equal(t, n, state.MatchPercentage)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, store.Len())
}
