package backup

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/splitbook/internal/database"
)

type storedObject struct {
	data     []byte
	modified time.Time
}

// mockS3Client keeps objects in memory.
type mockS3Client struct {
	mu      sync.Mutex
	objects map[string]storedObject
	now     func() time.Time
	putErr  error
}

func newMockS3(now func() time.Time) *mockS3Client {
	return &mockS3Client{objects: make(map[string]storedObject), now: now}
}

func (m *mockS3Client) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	data, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[*input.Key] = storedObject{data: data, modified: m.now()}
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) GetObject(_ context.Context, input *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.objects[*input.Key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(o.data))}, nil
}

func (m *mockS3Client) DeleteObject(_ context.Context, input *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, *input.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (m *mockS3Client) ListObjectsV2(_ context.Context, input *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		if strings.HasPrefix(k, aws.ToString(input.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for _, k := range keys {
		modified := m.objects[k].modified
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k), LastModified: &modified})
	}
	return out, nil
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func setupManager(t *testing.T) (*Manager, *mockS3Client, *clock, *sql.DB) {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "live.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	c := &clock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	mock := newMockS3(c.now)
	m := NewManager(Config{
		S3:         S3Config{Bucket: "ledger", AccessKey: "key", SecretKey: "secret"},
		Prefix:     "prod/",
		Passphrase: "open sesame",
		Retention:  48 * time.Hour,
	}, db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	m.client = mock
	m.now = c.now
	return m, mock, c, db
}

func TestManagerDisabledWithoutConfig(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	m := NewManager(Config{}, nil, logger)
	assert.Equal(t, StateDisabled, m.Status().State)
	_, err := m.RunNow(context.Background())
	assert.ErrorIs(t, err, ErrDisabled)

	m = NewManager(Config{S3: S3Config{Bucket: "b", AccessKey: "k", SecretKey: "s"}}, nil, logger)
	assert.False(t, m.Enabled(), "a passphrase is required")

	m = NewManager(Config{S3: S3Config{Bucket: "b", AccessKey: "k", SecretKey: "s"}, Passphrase: "p"}, nil, logger)
	assert.Equal(t, StateIdle, m.Status().State)
}

func TestRunNowAndRestore(t *testing.T) {
	m, mock, _, db := setupManager(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx,
		`INSERT INTO accounts (id, email, name, member_id, password_hash) VALUES ('a1', 'ann@example.com', 'Ann', 'ann', 'x')`)
	require.NoError(t, err)

	key, err := m.RunNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, "prod/splitbook-20240301T120000Z.db.enc", key)
	assert.Equal(t, StateIdle, m.Status().State)
	assert.Equal(t, key, m.Status().LastKey)
	assert.NotContains(t, string(mock.objects[key].data), "ann@example.com", "snapshot is encrypted")

	dst := filepath.Join(t.TempDir(), "restored.db")
	require.NoError(t, m.Restore(ctx, key, dst))

	restored, err := sql.Open("sqlite", dst)
	require.NoError(t, err)
	defer restored.Close()
	var email string
	require.NoError(t, restored.QueryRow(`SELECT email FROM accounts WHERE id = 'a1'`).Scan(&email))
	assert.Equal(t, "ann@example.com", email)

	assert.Error(t, m.Restore(ctx, key, dst), "existing target is never overwritten")
}

func TestRestoreWrongPassphrase(t *testing.T) {
	m, _, _, _ := setupManager(t)
	ctx := context.Background()
	key, err := m.RunNow(ctx)
	require.NoError(t, err)

	m.cfg.Passphrase = "guess"
	dst := filepath.Join(t.TempDir(), "restored.db")
	assert.Error(t, m.Restore(ctx, key, dst))
	assert.NoFileExists(t, dst)
}

func TestRunNowUploadError(t *testing.T) {
	m, mock, _, _ := setupManager(t)
	mock.putErr = errors.New("bucket gone")

	_, err := m.RunNow(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateError, m.Status().State)
	assert.Contains(t, m.Status().Error, "bucket gone")
}

func TestCleanupKeepsRecentAndNewest(t *testing.T) {
	m, _, c, _ := setupManager(t)
	ctx := context.Background()

	var keys []string
	for i := 0; i < 4; i++ {
		key, err := m.RunNow(ctx)
		require.NoError(t, err)
		keys = append(keys, key)
		c.t = c.t.Add(24 * time.Hour)
	}
	// Snapshots are now 4, 3, 2 and 1 days old.
	n, err := m.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	left, err := m.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, keys[2:], left)

	// Far in the future only the newest survives.
	c.t = c.t.Add(365 * 24 * time.Hour)
	_, err = m.Cleanup(ctx)
	require.NoError(t, err)
	left, err = m.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, keys[3:], left)
}

func TestSealOpen(t *testing.T) {
	sealed, err := seal([]byte("ledger"), "pass")
	require.NoError(t, err)

	other, err := seal([]byte("ledger"), "pass")
	require.NoError(t, err)
	assert.NotEqual(t, sealed, other, "salt and nonce are fresh per snapshot")

	plain, err := open(sealed, "pass")
	require.NoError(t, err)
	assert.Equal(t, "ledger", string(plain))

	_, err = open(sealed, "wrong")
	assert.Error(t, err)
	_, err = open([]byte("short"), "pass")
	assert.ErrorIs(t, err, ErrCorruptSnapshot)
}
