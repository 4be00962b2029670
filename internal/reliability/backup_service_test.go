package reliability

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/tradingdesk/internal/database"
	testutil "github.com/aristath/tradingdesk/internal/testing"
)

type memoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	times   map[string]time.Time
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: map[string][]byte{}, times: map[string]time.Time{}}
}

func (m *memoryStore) Upload(_ context.Context, key string, body io.Reader) error {
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = b
	m.times[key] = time.Now()
	return nil
}

func (m *memoryStore) List(_ context.Context, prefix string) ([]StoredObject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []StoredObject
	for k, v := range m.objects {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			out = append(out, StoredObject{Key: k, Size: int64(len(v)), LastModified: m.times[k]})
		}
	}
	return out, nil
}

func (m *memoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func TestBackupService_CreateAndUpload(t *testing.T) {
	desk := testutil.NewTestDB(t, "desk")
	_, err := desk.Conn().Exec(`INSERT INTO activity_log (action, created_at) VALUES ('BACKUP_TEST', 'now')`)
	require.NoError(t, err)

	store := newMemoryStore()
	svc := NewBackupService(store, map[string]*database.DB{"desk": desk}, t.TempDir(), "", zerolog.Nop())

	key, err := svc.CreateAndUpload(context.Background())
	require.NoError(t, err)
	assert.Contains(t, key, "tradingdesk-backup-")

	archive := store.objects[key]
	require.NotEmpty(t, archive)

	gz, err := gzip.NewReader(bytes.NewReader(archive))
	require.NoError(t, err)
	tr := tar.NewReader(gz)

	names := map[string][]byte{}
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		b, err := io.ReadAll(tr)
		require.NoError(t, err)
		names[hdr.Name] = b
	}

	assert.Contains(t, names, "desk.db")
	require.Contains(t, names, metadataFilename)

	var meta BackupMetadata
	require.NoError(t, json.Unmarshal(names[metadataFilename], &meta))
	require.Len(t, meta.Databases, 1)
	assert.Equal(t, "desk", meta.Databases[0].Name)
	assert.Contains(t, meta.Databases[0].Checksum, "sha256:")
}

func TestBackupService_ListAndRotate(t *testing.T) {
	store := newMemoryStore()
	svc := NewBackupService(store, nil, t.TempDir(), "desk-", zerolog.Nop())

	now := time.Now().UTC()
	for _, age := range []int{0, 1, 2, 20, 40} {
		key := "desk-" + now.AddDate(0, 0, -age).Format(backupTimeLayout) + backupArchiveExt
		require.NoError(t, store.Upload(context.Background(), key, bytes.NewReader([]byte("x"))))
	}
	require.NoError(t, store.Upload(context.Background(), "desk-garbage.tar.gz", bytes.NewReader([]byte("x"))))

	backups, err := svc.ListBackups(context.Background())
	require.NoError(t, err)
	require.Len(t, backups, 5)
	assert.True(t, backups[0].Timestamp.After(backups[1].Timestamp))

	deleted, err := svc.RotateOldBackups(context.Background(), 14)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	backups, err = svc.ListBackups(context.Background())
	require.NoError(t, err)
	assert.Len(t, backups, 3)
}

func TestBackupService_RotateKeepsEverythingWithoutRetention(t *testing.T) {
	svc := NewBackupService(newMemoryStore(), nil, t.TempDir(), "", zerolog.Nop())
	deleted, err := svc.RotateOldBackups(context.Background(), 0)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}
