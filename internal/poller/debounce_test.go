package poller

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"
)

func TestDebounceTracker_ConfirmsAfterNReadings(t *testing.T) {
	tr, err := NewDebounceTracker(nil)
	require.NoError(t, err)

	confirmed, _ := tr.Observe("sm-1#Temperature", 10.0, 3)
	assert.False(t, confirmed)
	confirmed, _ = tr.Observe("sm-1#Temperature", 10.0, 3)
	assert.False(t, confirmed)
	confirmed, v := tr.Observe("sm-1#Temperature", 10.0, 3)
	assert.True(t, confirmed)
	assert.Equal(t, 10.0, v)
}

func TestDebounceTracker_ResetsWindowOnDifferingReading(t *testing.T) {
	tr, err := NewDebounceTracker(nil)
	require.NoError(t, err)

	tr.Observe("k", 1.0, 3)
	tr.Observe("k", 1.0, 3)
	confirmed, _ := tr.Observe("k", 2.0, 3)
	assert.False(t, confirmed, "differing reading should reset the window")

	confirmed, _ = tr.Observe("k", 2.0, 3)
	assert.False(t, confirmed)
	confirmed, v := tr.Observe("k", 2.0, 3)
	assert.True(t, confirmed)
	assert.Equal(t, 2.0, v)
}

func TestDebounceTracker_DoesNotReconfirmSameValue(t *testing.T) {
	tr, err := NewDebounceTracker(nil)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		tr.Observe("k", 1.0, 2)
	}
	confirmed, _ := tr.Observe("k", 1.0, 2)
	assert.False(t, confirmed, "already-confirmed value should not re-fire")
}

func TestDebounceTracker_PersistsAndReloadsFromBbolt(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "poller.db")

	db, err := bolt.Open(path, 0600, nil)
	require.NoError(t, err)

	tr, err := NewDebounceTracker(db)
	require.NoError(t, err)
	tr.Observe("sm-1#Temperature", 10.0, 2)
	tr.Observe("sm-1#Temperature", 10.0, 2)

	require.NoError(t, db.Close())

	reopened, err := bolt.Open(path, 0600, nil)
	require.NoError(t, err)
	defer reopened.Close()

	tr2, err := NewDebounceTracker(reopened)
	require.NoError(t, err)

	// The window was already fully confirmed before restart, so the next
	// matching reading should not re-fire (state survived the reload).
	confirmed, _ := tr2.Observe("sm-1#Temperature", 10.0, 2)
	assert.False(t, confirmed)
}

func TestDebounceTracker_SkipsCorruptPersistedEntries(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "poller.db")

	db, err := bolt.Open(path, 0600, nil)
	require.NoError(t, err)
	require.NoError(t, db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(debounceBucket))
		if err != nil {
			return err
		}
		return bucket.Put([]byte("corrupt-key"), []byte("not json"))
	}))
	require.NoError(t, db.Close())

	db2, err := bolt.Open(path, 0600, nil)
	require.NoError(t, err)
	defer db2.Close()

	_, err = NewDebounceTracker(db2)
	assert.NoError(t, err)
}

func TestMappingKey(t *testing.T) {
	assert.Equal(t, "sm-1#Temperature", MappingKey("sm-1", "Temperature"))
}
