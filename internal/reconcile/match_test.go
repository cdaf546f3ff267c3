package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradereport/internal/domain"
)

func openLong(id string, at time.Time) ClassifiedRecord {
	return ClassifiedRecord{Record: buyRecord(id, 1, 100, 0, at), Role: domain.RoleOpenLong}
}

func closeLong(id string, at time.Time) ClassifiedRecord {
	return ClassifiedRecord{Record: sellRecord(id, 1, 100, 0, at, true), Role: domain.RoleCloseLong}
}

func TestMatchPoolPicksNearestFutureClose(t *testing.T) {
	e := newTestEngine(t, Config{})

	opens := []ClassifiedRecord{openLong("o1", baseTime)}
	closes := []ClassifiedRecord{
		closeLong("far", baseTime.Add(2*time.Hour)),
		closeLong("near", baseTime.Add(time.Hour)),
	}

	pairs, unmatched := e.matchPool(domain.Long, opens, closes)

	require.Len(t, pairs, 1)
	assert.Equal(t, "near", pairs[0].exit.Record.ID)
	assert.Empty(t, unmatched)
}

func TestMatchPoolIgnoresClosesAtOrBeforeEntry(t *testing.T) {
	e := newTestEngine(t, Config{})

	opens := []ClassifiedRecord{openLong("o1", baseTime)}
	closes := []ClassifiedRecord{
		closeLong("before", baseTime.Add(-time.Hour)),
		closeLong("same", baseTime),
	}

	pairs, unmatched := e.matchPool(domain.Long, opens, closes)

	assert.Empty(t, pairs)
	require.Len(t, unmatched, 1)
	assert.Equal(t, "o1", unmatched[0].Record.ID)
}

func TestMatchPoolRespectsWindow(t *testing.T) {
	e := newTestEngine(t, Config{MatchWindow: time.Hour})

	opens := []ClassifiedRecord{openLong("o1", baseTime)}
	closes := []ClassifiedRecord{
		closeLong("inside", baseTime.Add(59*time.Minute)),
		closeLong("outside", baseTime.Add(61*time.Minute)),
	}

	pairs, _ := e.matchPool(domain.Long, opens, closes)

	require.Len(t, pairs, 1)
	assert.Equal(t, "inside", pairs[0].exit.Record.ID)
}

func TestMatchPoolBreaksTimestampTiesByID(t *testing.T) {
	e := newTestEngine(t, Config{})

	at := baseTime.Add(time.Hour)
	opens := []ClassifiedRecord{openLong("o1", baseTime)}
	closes := []ClassifiedRecord{
		closeLong("b", at),
		closeLong("a", at),
	}

	pairs, _ := e.matchPool(domain.Long, opens, closes)

	require.Len(t, pairs, 1)
	assert.Equal(t, "a", pairs[0].exit.Record.ID)
}

func TestMatchPoolConsumesEachCloseOnce(t *testing.T) {
	e := newTestEngine(t, Config{})

	opens := []ClassifiedRecord{
		openLong("o2", baseTime.Add(time.Hour)),
		openLong("o1", baseTime),
	}
	closes := []ClassifiedRecord{closeLong("c1", baseTime.Add(2*time.Hour))}

	pairs, unmatched := e.matchPool(domain.Long, opens, closes)

	// Opens are walked in time order, so the earliest entry claims the
	// single close.
	require.Len(t, pairs, 1)
	assert.Equal(t, "o1", pairs[0].entry.Record.ID)
	require.Len(t, unmatched, 1)
	assert.Equal(t, "o2", unmatched[0].Record.ID)
}

func TestMatchKeepsPoolsIndependent(t *testing.T) {
	e := newTestEngine(t, Config{})

	classified := []ClassifiedRecord{
		openLong("o1", baseTime),
		{Record: sellRecord("s1", 1, 100, 0, baseTime.Add(time.Minute), false), Role: domain.RoleOpenShort},
		{Record: buyRecord("c2", 1, 100, 0, baseTime.Add(time.Hour)), Role: domain.RoleCloseShort},
		closeLong("c1", baseTime.Add(2*time.Hour)),
	}

	pairs, unmatched := e.match(context.Background(), classified)

	require.Len(t, pairs, 2)
	assert.Empty(t, unmatched)

	bySide := map[domain.PositionSide]pairedTrade{}
	for _, p := range pairs {
		bySide[p.side] = p
	}
	assert.Equal(t, "o1", bySide[domain.Long].entry.Record.ID)
	assert.Equal(t, "c1", bySide[domain.Long].exit.Record.ID)
	assert.Equal(t, "s1", bySide[domain.Short].entry.Record.ID)
	assert.Equal(t, "c2", bySide[domain.Short].exit.Record.ID)
}
