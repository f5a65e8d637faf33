package backup

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/chantastic/oomph/internal/clock"
	"github.com/chantastic/oomph/internal/database"
	"github.com/chantastic/oomph/internal/store"
)

// mockS3Client implements s3Client for testing.
type mockS3Client struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newMockS3() *mockS3Client {
	return &mockS3Client{objects: make(map[string][]byte)}
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
	m.objects[*input.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) GetObject(_ context.Context, input *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[*input.Key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (m *mockS3Client) DeleteObject(_ context.Context, input *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, *input.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (m *mockS3Client) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seededDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if _, err := store.NewAssigneeStore(db).Create("Alex"); err != nil {
		t.Fatalf("create assignee: %v", err)
	}
	return db
}

func newTestManager(t *testing.T, db *sql.DB) (*Manager, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC))
	cfg := Config{Dir: filepath.Join(t.TempDir(), "backups"), Passphrase: "hunter2"}
	return NewManager(cfg, db, clk, quietLogger()), clk
}

func assigneeNames(t *testing.T, path string) []string {
	t.Helper()
	db, err := database.Open(path)
	if err != nil {
		t.Fatalf("open restored db: %v", err)
	}
	defer db.Close()
	list, err := store.NewAssigneeStore(db).List()
	if err != nil {
		t.Fatalf("list assignees: %v", err)
	}
	var names []string
	for _, a := range list {
		names = append(names, a.Name)
	}
	return names
}

func TestRunAndRestore(t *testing.T) {
	m, _ := newTestManager(t, seededDB(t))

	b, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if b.Name != "oomph-2024-06-10T080000.000Z.db.enc" || b.SizeBytes == 0 || b.Key != "" {
		t.Errorf("backup = %+v", b)
	}

	list, err := m.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Name != b.Name || !list[0].CreatedAt.Equal(b.CreatedAt) {
		t.Fatalf("list = %+v", list)
	}

	dst := filepath.Join(t.TempDir(), "restored.db")
	if err := m.Restore(context.Background(), b.Name, dst); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if names := assigneeNames(t, dst); len(names) != 1 || names[0] != "Alex" {
		t.Errorf("restored assignees = %v", names)
	}
}

func TestRunRequiresPassphrase(t *testing.T) {
	m := NewManager(Config{Dir: t.TempDir()}, seededDB(t), clock.Real(), quietLogger())
	if _, err := m.Run(context.Background()); !errors.Is(err, ErrNoPassphrase) {
		t.Errorf("err = %v, want ErrNoPassphrase", err)
	}
	if err := m.Restore(context.Background(), "x", "y"); !errors.Is(err, ErrNoPassphrase) {
		t.Errorf("restore err = %v, want ErrNoPassphrase", err)
	}
}

func TestRestoreFailures(t *testing.T) {
	m, _ := newTestManager(t, seededDB(t))
	b, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := os.WriteFile(filepath.Join(m.cfg.Dir, "oomph-plain.db.enc"), []byte("SQLite format 3\x00"), 0600); err != nil {
		t.Fatalf("write plain file: %v", err)
	}
	wrong := NewManager(Config{Dir: m.cfg.Dir, Passphrase: "hunter3"}, nil, clock.Real(), quietLogger())

	tests := []struct {
		name string
		m    *Manager
		file string
		want error
	}{
		{"wrong passphrase", wrong, b.Name, ErrBadPassphrase},
		{"not a backup", m, "oomph-plain.db.enc", ErrNotBackup},
		{"missing", m, "oomph-none.db.enc", os.ErrNotExist},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst := filepath.Join(t.TempDir(), "restored.db")
			if err := tt.m.Restore(context.Background(), tt.file, dst); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
			if _, err := os.Stat(dst); !errors.Is(err, os.ErrNotExist) {
				t.Errorf("database written despite failure: %v", err)
			}
		})
	}
}

func TestUploadAndRemoteRestore(t *testing.T) {
	m, _ := newTestManager(t, seededDB(t))
	m.cfg.S3 = S3Config{Bucket: "chores", AccessKey: "key", SecretKey: "secret"}
	mock := newMockS3()
	m.client = mock

	b, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if b.Key != "oomph/"+b.Name || mock.len() != 1 {
		t.Fatalf("backup = %+v, objects = %d", b, mock.len())
	}

	// Lose the local copy; restore falls back to the bucket.
	if err := os.Remove(b.Path); err != nil {
		t.Fatalf("remove local: %v", err)
	}
	dst := filepath.Join(t.TempDir(), "restored.db")
	if err := m.Restore(context.Background(), b.Name, dst); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if names := assigneeNames(t, dst); len(names) != 1 {
		t.Errorf("restored assignees = %v", names)
	}
}

func TestUploadFailureKeepsLocalCopy(t *testing.T) {
	m, _ := newTestManager(t, seededDB(t))
	mock := newMockS3()
	mock.putErr = errors.New("connection refused")
	m.client = mock

	b, err := m.Run(context.Background())
	if err == nil {
		t.Fatal("want upload error")
	}
	if b == nil || b.Key != "" {
		t.Fatalf("backup = %+v", b)
	}
	if _, err := os.Stat(b.Path); err != nil {
		t.Errorf("local copy missing: %v", err)
	}
}

func TestPrune(t *testing.T) {
	m, clk := newTestManager(t, seededDB(t))
	mock := newMockS3()
	m.client = mock

	var names []string
	for i := 0; i < 3; i++ {
		b, err := m.Run(context.Background())
		if err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		names = append(names, b.Name)
		clk.Advance(24 * time.Hour)
	}

	removed, err := m.Prune(context.Background(), 1)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}
	list, err := m.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Name != names[2] {
		t.Errorf("kept = %+v, want %s", list, names[2])
	}
	if mock.len() != 1 {
		t.Errorf("remote objects = %d, want 1", mock.len())
	}

	if removed, err := m.Prune(context.Background(), 5); err != nil || removed != 0 {
		t.Errorf("second prune = %d, %v", removed, err)
	}
}

func TestListMissingDir(t *testing.T) {
	m := NewManager(Config{Dir: filepath.Join(t.TempDir(), "nope")}, nil, clock.Real(), quietLogger())
	list, err := m.List()
	if err != nil || len(list) != 0 {
		t.Errorf("list = %+v, %v", list, err)
	}
}

func TestS3ConfigEnabled(t *testing.T) {
	if (S3Config{Bucket: "b", AccessKey: "k"}).Enabled() {
		t.Error("enabled without secret")
	}
	if !(S3Config{Bucket: "b", AccessKey: "k", SecretKey: "s"}).Enabled() {
		t.Error("not enabled with full credentials")
	}
	m := NewManager(Config{S3: S3Config{Bucket: "b", AccessKey: "k", SecretKey: "s", Region: "auto"}}, nil, clock.Real(), nil)
	if m.client == nil {
		t.Error("client not created")
	}
}
