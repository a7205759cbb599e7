package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/weatherstation/internal/infrastructure/config"
)

func openJournal(t *testing.T) *Journal {
	t.Helper()
	j, db, err := Open(context.Background(), config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "journal.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return j
}

func TestRecordAndRecent(t *testing.T) {
	j := openJournal(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	_, err := j.Record(ctx, Entry{Kind: KindReading, Topic: "st", Payload: []byte(`{"a":1}`), Published: true, RecordedAt: base})
	require.NoError(t, err)
	id, err := j.Record(ctx, Entry{Kind: KindStatus, Topic: "st/status", Payload: []byte(`{}`), RecordedAt: base.Add(time.Minute)})
	require.NoError(t, err)
	assert.Positive(t, id)

	entries, err := j.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, KindStatus, entries[0].Kind, "newest first")
	assert.False(t, entries[0].Published)
	assert.Equal(t, base.Add(time.Minute), entries[0].RecordedAt)
	assert.Equal(t, `{"a":1}`, string(entries[1].Payload))
	assert.True(t, entries[1].Published)

	limited, err := j.Recent(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestRecord_DefaultsAndValidation(t *testing.T) {
	j := openJournal(t)
	fixed := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	j.now = func() time.Time { return fixed }
	ctx := context.Background()

	_, err := j.Record(ctx, Entry{Topic: "st"})
	assert.ErrorIs(t, err, ErrInvalidEntry)
	_, err = j.Record(ctx, Entry{Kind: KindReading})
	assert.ErrorIs(t, err, ErrInvalidEntry)

	_, err = j.Record(ctx, Entry{Kind: KindReading, Topic: "st"})
	require.NoError(t, err)

	entries, err := j.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, fixed, entries[0].RecordedAt)
	assert.Empty(t, entries[0].Payload)
}

func TestCountAndPrune(t *testing.T) {
	j := openJournal(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		_, err := j.Record(ctx, Entry{
			Kind:       KindReading,
			Topic:      "st",
			Published:  i%2 == 0,
			RecordedAt: base.Add(time.Duration(i) * 24 * time.Hour),
		})
		require.NoError(t, err)
	}

	c, err := j.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, Counts{Total: 4, Published: 2, Failed: 2}, c)

	removed, err := j.Prune(ctx, base.Add(48*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	c, err = j.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), c.Total)
}

func TestCount_Empty(t *testing.T) {
	j := openJournal(t)

	c, err := j.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Counts{}, c)
}

func TestRetain_PrunesOnStart(t *testing.T) {
	j := openJournal(t)
	now := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	j.now = func() time.Time { return now }
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := j.Record(ctx, Entry{Kind: KindReading, Topic: "st", RecordedAt: now.Add(-72 * time.Hour)})
	require.NoError(t, err)
	_, err = j.Record(ctx, Entry{Kind: KindReading, Topic: "st", RecordedAt: now.Add(-time.Hour)})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		j.Retain(ctx, 48*time.Hour, time.Hour, func(err error) { t.Errorf("prune: %v", err) })
		close(done)
	}()

	require.Eventually(t, func() bool {
		c, err := j.Count(context.Background())
		return err == nil && c.Total == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Retain did not return after cancel")
	}
}
