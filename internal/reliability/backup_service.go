package reliability

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aristath/signalscope/internal/database"
	"github.com/rs/zerolog"
)

const (
	backupMarker     = "-backup-"
	backupTimeLayout = "2006-01-02-150405"
	backupSuffix     = ".db.gz"
	// Rotation never deletes below this many backup runs
	minBackupsToKeep = 3
)

// BackupInfo describes one uploaded database snapshot.
type BackupInfo struct {
	Key       string    `json:"key"`
	Database  string    `json:"database"`
	Timestamp time.Time `json:"timestamp"`
	SizeBytes int64     `json:"size_bytes"`
}

// BackupService snapshots databases with VACUUM INTO and uploads them gzipped.
type BackupService struct {
	databases     map[string]*database.DB
	store         ObjectStore
	stagingDir    string
	retentionDays int
	now           func() time.Time
	log           zerolog.Logger
}

// NewBackupService creates a backup service. stagingDir holds the temporary
// snapshot files and is created on demand.
func NewBackupService(
	databases map[string]*database.DB,
	store ObjectStore,
	stagingDir string,
	retentionDays int,
	log zerolog.Logger,
) *BackupService {
	return &BackupService{
		databases:     databases,
		store:         store,
		stagingDir:    stagingDir,
		retentionDays: retentionDays,
		now:           time.Now,
		log:           log.With().Str("service", "backup").Logger(),
	}
}

// CreateAndUpload snapshots every database and uploads the archives.
// It returns the uploaded backups in database name order.
func (s *BackupService) CreateAndUpload(ctx context.Context) ([]BackupInfo, error) {
	if err := os.MkdirAll(s.stagingDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}

	ts := s.now().UTC()
	names := make([]string, 0, len(s.databases))
	for name := range s.databases {
		names = append(names, name)
	}
	sort.Strings(names)

	var uploaded []BackupInfo
	for _, name := range names {
		info, err := s.backupOne(ctx, name, s.databases[name], ts)
		if err != nil {
			return uploaded, err
		}
		uploaded = append(uploaded, info)
	}

	s.log.Info().Int("databases", len(uploaded)).Time("timestamp", ts).Msg("Backup uploaded")
	return uploaded, nil
}

func (s *BackupService) backupOne(ctx context.Context, name string, db *database.DB, ts time.Time) (BackupInfo, error) {
	stamp := ts.Format(backupTimeLayout)
	snapshot := filepath.Join(s.stagingDir, fmt.Sprintf("%s-%s.db", name, stamp))
	archive := snapshot + ".gz"
	defer os.Remove(snapshot)
	defer os.Remove(archive)

	if err := db.VacuumInto(ctx, snapshot); err != nil {
		return BackupInfo{}, fmt.Errorf("failed to snapshot %s: %w", name, err)
	}

	size, err := gzipFile(snapshot, archive)
	if err != nil {
		return BackupInfo{}, fmt.Errorf("failed to compress %s: %w", name, err)
	}

	f, err := os.Open(archive)
	if err != nil {
		return BackupInfo{}, fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	key := backupKey(name, ts)
	if err := s.store.Upload(ctx, key, f, size); err != nil {
		return BackupInfo{}, err
	}

	s.log.Debug().Str("database", name).Str("key", key).Int64("size", size).Msg("Database backed up")
	return BackupInfo{Key: key, Database: name, Timestamp: ts, SizeBytes: size}, nil
}

// ListBackups returns uploaded backups, newest first.
func (s *BackupService) ListBackups(ctx context.Context) ([]BackupInfo, error) {
	objects, err := s.store.List(ctx, "")
	if err != nil {
		return nil, err
	}

	backups := make([]BackupInfo, 0, len(objects))
	for _, obj := range objects {
		info, ok := parseBackupKey(obj.Key)
		if !ok {
			continue
		}
		info.SizeBytes = obj.SizeBytes
		backups = append(backups, info)
	}

	sort.Slice(backups, func(i, j int) bool {
		if !backups[i].Timestamp.Equal(backups[j].Timestamp) {
			return backups[i].Timestamp.After(backups[j].Timestamp)
		}
		return backups[i].Database < backups[j].Database
	})
	return backups, nil
}

// RotateOldBackups deletes backups older than the retention window, always
// keeping the newest runs. It returns the number of deleted objects.
func (s *BackupService) RotateOldBackups(ctx context.Context) (int, error) {
	backups, err := s.ListBackups(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := s.now().UTC().AddDate(0, 0, -s.retentionDays)
	runs := 0
	var last time.Time
	deleted := 0

	for _, b := range backups {
		if !b.Timestamp.Equal(last) {
			runs++
			last = b.Timestamp
		}
		if runs <= minBackupsToKeep || !b.Timestamp.Before(cutoff) {
			continue
		}
		if err := s.store.Delete(ctx, b.Key); err != nil {
			s.log.Warn().Err(err).Str("key", b.Key).Msg("Failed to delete old backup")
			continue
		}
		deleted++
	}

	if deleted > 0 {
		s.log.Info().Int("deleted", deleted).Int("retention_days", s.retentionDays).Msg("Old backups rotated")
	}
	return deleted, nil
}

// backupKey names an archive "<database>-backup-<timestamp>.db.gz".
func backupKey(name string, ts time.Time) string {
	return name + backupMarker + ts.UTC().Format(backupTimeLayout) + backupSuffix
}

func parseBackupKey(key string) (BackupInfo, bool) {
	if !strings.HasSuffix(key, backupSuffix) {
		return BackupInfo{}, false
	}
	name, stamp, ok := strings.Cut(strings.TrimSuffix(key, backupSuffix), backupMarker)
	if !ok || name == "" {
		return BackupInfo{}, false
	}
	ts, err := time.Parse(backupTimeLayout, stamp)
	if err != nil {
		return BackupInfo{}, false
	}
	return BackupInfo{Key: key, Database: name, Timestamp: ts}, true
}

func gzipFile(src, dest string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return 0, err
	}

	zw := gzip.NewWriter(out)
	if _, err := io.Copy(zw, in); err != nil {
		out.Close()
		return 0, err
	}
	if err := zw.Close(); err != nil {
		out.Close()
		return 0, err
	}
	if err := out.Close(); err != nil {
		return 0, err
	}

	info, err := os.Stat(dest)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
