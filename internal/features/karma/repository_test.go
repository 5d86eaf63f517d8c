package karma

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rubbergod.cz/discord-bot/internal/db/postgres/pgtest"
	"rubbergod.cz/discord-bot/internal/db/sqlite"
)

func newTestStore(t *testing.T) *SQLiteRepository {
	t.Helper()
	db, err := sqlite.Memory(uuid.NewString(), SQLiteModels()...)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return NewSQLiteRepository(db)
}

// forEachStore runs test against the SQLite store and, when a test
// database is configured, against the PostgreSQL one.
func forEachStore(t *testing.T, test func(t *testing.T, store Store)) {
	t.Run("sqlite", func(t *testing.T) {
		test(t, newTestStore(t))
	})
	t.Run("postgres", func(t *testing.T) {
		test(t, NewRepository(pgtest.Pool(t)))
	})
}

func vote(message, author, voter string, value int) Vote {
	return Vote{MessageID: message, ChannelID: "c1", AuthorID: author, VoterID: voter, Value: value}
}

func TestCastInsertsAndReplaces(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		previous, changed, err := store.Cast(ctx, vote("m1", "author", "voter", 1))
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, 0, previous)

		previous, changed, err = store.Cast(ctx, vote("m1", "author", "voter", 1))
		require.NoError(t, err)
		assert.False(t, changed, "same value is a no-op")
		assert.Equal(t, 1, previous)

		previous, changed, err = store.Cast(ctx, vote("m1", "author", "voter", -1))
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, 1, previous)

		author, err := store.Totals(ctx, "author")
		require.NoError(t, err)
		assert.Equal(t, -1, author.Received, "replaced, not accumulated")
		assert.Equal(t, 0, author.Given)

		voter, err := store.Totals(ctx, "voter")
		require.NoError(t, err)
		assert.Equal(t, -1, voter.Given)

		tally, err := store.Tally(ctx, "m1")
		require.NoError(t, err)
		assert.Equal(t, Tally{MessageID: "m1", Negative: 1, Total: -1, Voters: 1}, tally)
	})
}

func TestRetractOnlyMatchingValue(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		_, _, err := store.Cast(ctx, vote("m1", "author", "voter", 1))
		require.NoError(t, err)

		removed, err := store.Retract(ctx, "m1", "voter", -1)
		require.NoError(t, err)
		assert.False(t, removed)

		removed, err = store.Retract(ctx, "m1", "nobody", 1)
		require.NoError(t, err)
		assert.False(t, removed)

		removed, err = store.Retract(ctx, "m1", "voter", 1)
		require.NoError(t, err)
		assert.True(t, removed)

		author, err := store.Totals(ctx, "author")
		require.NoError(t, err)
		assert.Equal(t, 0, author.Received)
	})
}

func TestClearMessageReversesAggregates(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		for _, v := range []Vote{
			vote("m1", "author", "a", 1),
			vote("m1", "author", "b", 1),
			vote("m1", "author", "c", -1),
			vote("m2", "author", "a", 1),
		} {
			_, _, err := store.Cast(ctx, v)
			require.NoError(t, err)
		}

		n, err := store.ClearMessage(ctx, "m1")
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		author, err := store.Totals(ctx, "author")
		require.NoError(t, err)
		assert.Equal(t, 1, author.Received, "only m2 remains")

		b, err := store.Totals(ctx, "b")
		require.NoError(t, err)
		assert.Equal(t, 0, b.Given)
	})
}

func TestLeaderboardTotalOrder(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		require.NoError(t, store.Give(ctx, "30", 5))
		require.NoError(t, store.Give(ctx, "10", 5))
		require.NoError(t, store.Give(ctx, "20", 7))
		require.NoError(t, store.Give(ctx, "40", -2))

		desc, err := store.Leaderboard(ctx, ColumnReceived, Desc, 0, 10)
		require.NoError(t, err)
		require.Len(t, desc, 4)
		assert.Equal(t, []string{"20", "10", "30", "40"}, userIDs(desc))
		for i := 1; i < len(desc); i++ {
			assert.GreaterOrEqual(t, desc[i-1].Value, desc[i].Value)
		}

		asc, err := store.Leaderboard(ctx, ColumnReceived, Asc, 0, 10)
		require.NoError(t, err)
		assert.Equal(t, []string{"40", "10", "30", "20"}, userIDs(asc))

		page, err := store.Leaderboard(ctx, ColumnReceived, Desc, 1, 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"10", "30"}, userIDs(page))
		assert.Equal(t, 2, page[0].Rank)

		again, err := store.Leaderboard(ctx, ColumnReceived, Desc, 0, 10)
		require.NoError(t, err)
		assert.Equal(t, desc, again)

		totals, err := store.Totals(ctx, "30")
		require.NoError(t, err)
		assert.Equal(t, 3, totals.ReceivedRank)
	})
}

func TestOpenMessage(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		open, err := store.IsOpen(ctx, "m1")
		require.NoError(t, err)
		assert.False(t, open)

		require.NoError(t, store.OpenMessage(ctx, "m1", "c1", "author", "admin"))
		require.NoError(t, store.OpenMessage(ctx, "m1", "c1", "author", "admin"))

		open, err = store.IsOpen(ctx, "m1")
		require.NoError(t, err)
		assert.True(t, open)
	})
}

func TestTotalsUnknownUser(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		totals, err := store.Totals(context.Background(), "ghost")
		require.NoError(t, err)
		assert.Equal(t, Totals{UserID: "ghost"}, totals)
	})
}

func userIDs(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.UserID
	}
	return out
}
