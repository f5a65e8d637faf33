// Package backup writes encrypted snapshots of the store and restores them.
package backup

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dustin/go-humanize"
	_ "modernc.org/sqlite"

	"github.com/chantastic/oomph/internal/clock"
)

const (
	filePrefix = "oomph-"
	fileSuffix = ".db.enc"
	keyPrefix  = "oomph/"
)

var ErrNoPassphrase = errors.New("backup passphrase not configured")

// s3Client is the subset of *s3.Client the manager uses.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

func (c S3Config) Enabled() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

type Config struct {
	Dir        string
	Passphrase string
	S3         S3Config
}

// Backup is one encrypted snapshot in the backup directory.
type Backup struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
	// Key is the object key when the snapshot was uploaded.
	Key string `json:"key,omitempty"`
}

// Manager takes snapshots of a live database. Snapshots always land in
// Dir; with S3 configured they are uploaded as well.
type Manager struct {
	mu     sync.Mutex
	cfg    Config
	db     *sql.DB
	client s3Client
	clock  clock.Clock
	logger *slog.Logger
}

// NewManager creates a manager. db may be nil when the manager is only
// used to restore.
func NewManager(cfg Config, db *sql.DB, clk clock.Clock, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		cfg:    cfg,
		db:     db,
		clock:  clk,
		logger: logger.With("component", "backup"),
	}
	if cfg.S3.Enabled() {
		m.client = newS3Client(cfg.S3)
	}
	return m
}

func newS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// Run snapshots the database with VACUUM INTO, encrypts the snapshot and
// uploads it when S3 is configured. Runs are serialized.
func (m *Manager) Run(ctx context.Context) (*Backup, error) {
	if m.cfg.Passphrase == "" {
		return nil, ErrNoPassphrase
	}
	if m.db == nil {
		return nil, errors.New("backup: no database")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.MkdirAll(m.cfg.Dir, 0o700); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}

	createdAt := m.clock.Now().UTC()
	name := filePrefix + createdAt.Format("2006-01-02T150405.000Z") + fileSuffix
	dst := filepath.Join(m.cfg.Dir, name)

	snapshot, err := os.CreateTemp(m.cfg.Dir, "snapshot-*.db")
	if err != nil {
		return nil, fmt.Errorf("create snapshot file: %w", err)
	}
	snapshotPath := snapshot.Name()
	snapshot.Close()
	// VACUUM INTO refuses to overwrite an existing file.
	os.Remove(snapshotPath)
	defer os.Remove(snapshotPath)

	if _, err := m.db.ExecContext(ctx, "VACUUM INTO ?", snapshotPath); err != nil {
		return nil, fmt.Errorf("snapshot database: %w", err)
	}
	if err := EncryptFile(snapshotPath, dst, m.cfg.Passphrase); err != nil {
		return nil, fmt.Errorf("encrypt snapshot: %w", err)
	}

	stat, err := os.Stat(dst)
	if err != nil {
		return nil, fmt.Errorf("stat backup: %w", err)
	}
	b := &Backup{Name: name, Path: dst, SizeBytes: stat.Size(), CreatedAt: createdAt}

	if m.client != nil {
		if err := m.upload(ctx, b); err != nil {
			return b, err
		}
	}

	m.logger.Info("backup written", "name", name, "size", humanize.Bytes(uint64(b.SizeBytes)), "uploaded", b.Key != "")
	return b, nil
}

func (m *Manager) upload(ctx context.Context, b *Backup) error {
	f, err := os.Open(b.Path)
	if err != nil {
		return fmt.Errorf("open backup: %w", err)
	}
	defer f.Close()

	key := keyPrefix + b.Name
	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.cfg.S3.Bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(b.SizeBytes),
	})
	if err != nil {
		return fmt.Errorf("upload to s3: %w", err)
	}
	b.Key = key
	return nil
}

// List returns the local backups, newest first.
func (m *Manager) List() ([]Backup, error) {
	entries, err := os.ReadDir(m.cfg.Dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read backup dir: %w", err)
	}

	var backups []Backup
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", name, err)
		}
		created, err := time.Parse("2006-01-02T150405.000Z", strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix))
		if err != nil {
			created = info.ModTime().UTC()
		}
		backups = append(backups, Backup{
			Name:      name,
			Path:      filepath.Join(m.cfg.Dir, name),
			SizeBytes: info.Size(),
			CreatedAt: created,
		})
	}
	sort.Slice(backups, func(i, j int) bool { return backups[i].CreatedAt.After(backups[j].CreatedAt) })
	return backups, nil
}

// Prune keeps the newest keep backups and deletes the rest, locally and
// from S3. Failed remote deletes are logged, not returned.
func (m *Manager) Prune(ctx context.Context, keep int) (int, error) {
	backups, err := m.List()
	if err != nil {
		return 0, err
	}
	if keep < 0 {
		keep = 0
	}
	if len(backups) <= keep {
		return 0, nil
	}

	removed := 0
	for _, b := range backups[keep:] {
		if err := os.Remove(b.Path); err != nil {
			return removed, fmt.Errorf("remove %s: %w", b.Name, err)
		}
		removed++
		if m.client == nil {
			continue
		}
		if _, err := m.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(m.cfg.S3.Bucket),
			Key:    aws.String(keyPrefix + b.Name),
		}); err != nil {
			m.logger.Warn("delete remote backup failed", "name", b.Name, "error", err)
		}
	}
	m.logger.Info("backups pruned", "removed", removed, "kept", keep)
	return removed, nil
}

// Restore decrypts the named backup, checks its integrity and writes it to
// dbPath. The backup is read from Dir, or downloaded from S3 when it is
// not there. The database at dbPath must not be open.
func (m *Manager) Restore(ctx context.Context, name, dbPath string) error {
	if m.cfg.Passphrase == "" {
		return ErrNoPassphrase
	}
	name = filepath.Base(name)

	data, err := os.ReadFile(filepath.Join(m.cfg.Dir, name))
	if errors.Is(err, os.ErrNotExist) && m.client != nil {
		data, err = m.download(ctx, name)
	}
	if err != nil {
		return fmt.Errorf("read backup %s: %w", name, err)
	}

	plaintext, err := Open(data, m.cfg.Passphrase)
	if err != nil {
		return fmt.Errorf("decrypt backup %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dbPath), ".restore-*.db")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)
	if _, err := tmp.Write(plaintext); err != nil {
		tmp.Close()
		return fmt.Errorf("write restored db: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write restored db: %w", err)
	}

	if err := checkIntegrity(ctx, tmpPath); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, dbPath); err != nil {
		return fmt.Errorf("replace database: %w", err)
	}
	os.Remove(dbPath + "-wal")
	os.Remove(dbPath + "-shm")

	m.logger.Info("backup restored", "name", name, "db_path", dbPath, "size", humanize.Bytes(uint64(len(plaintext))))
	return nil
}

func (m *Manager) download(ctx context.Context, name string) ([]byte, error) {
	out, err := m.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.cfg.S3.Bucket),
		Key:    aws.String(keyPrefix + name),
	})
	if err != nil {
		return nil, fmt.Errorf("download from s3: %w", err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func checkIntegrity(ctx context.Context, path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open restored db: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}
