package sweep

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/natefinch/atomic"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TrackingStore is the durable record of sweep outcomes. The local copy is
// authoritative: every mutation lands in the local SQLite file first, and a
// sync republishes the whole file to shared storage. Readers of the shared
// copy only ever see a complete store, never a mid-write one.
type TrackingStore struct {
	db         *gorm.DB
	localPath  string
	sharedPath string
	logger     *zap.Logger

	// mu serializes mutations against sync serialization, so a published
	// snapshot never contains a half-applied decision.
	mu sync.Mutex
}

// OpenTrackingStore opens the store for a session. If the local copy is
// missing, or older than the shared copy, the shared copy is pulled down
// first. With neither copy present the store is unavailable and the caller
// must initialize one explicitly.
func OpenTrackingStore(logger *zap.Logger, localPath, sharedPath string) (*TrackingStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	localInfo, localErr := os.Stat(localPath)
	sharedInfo, sharedErr := os.Stat(sharedPath)
	localOK := localErr == nil && !localInfo.IsDir()
	sharedOK := sharedErr == nil && !sharedInfo.IsDir()

	switch {
	case !localOK && !sharedOK:
		return nil, fmt.Errorf("%w: no store at %s or %s", ErrStoreUnavailable, localPath, sharedPath)
	case sharedOK && (!localOK || localInfo.ModTime().Before(sharedInfo.ModTime())):
		if err := copyDown(sharedPath, localPath); err != nil {
			return nil, fmt.Errorf("pull shared store %s: %w", sharedPath, err)
		}
		logger.Info("pulled tracking store from shared storage",
			zap.String("shared", sharedPath), zap.String("local", localPath))
	}

	db, err := openStoreDB(localPath)
	if err != nil {
		return nil, err
	}
	return &TrackingStore{db: db, localPath: localPath, sharedPath: sharedPath, logger: logger}, nil
}

// InitTrackingStore creates a brand-new empty store at the local path. It
// refuses to run when either copy already exists.
func InitTrackingStore(logger *zap.Logger, localPath, sharedPath string) (*TrackingStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if _, err := os.Stat(localPath); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrStoreExists, localPath)
	}
	if _, err := os.Stat(sharedPath); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrStoreExists, sharedPath)
	}
	db, err := openStoreDB(localPath)
	if err != nil {
		return nil, err
	}
	logger.Info("initialized tracking store", zap.String("local", localPath))
	return &TrackingStore{db: db, localPath: localPath, sharedPath: sharedPath, logger: logger}, nil
}

func openStoreDB(path string) (*gorm.DB, error) {
	if err := ensureParentDir(path); err != nil {
		return nil, err
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&ProcessedLocation{}, &ProcessedFile{}, &DeletedFile{}, &ErrorRecord{}); err != nil {
		return nil, err
	}
	return db, nil
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func copyDown(src, dst string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := ensureParentDir(dst); err != nil {
		return err
	}
	// Write-then-rename so a crash mid-pull cannot leave a truncated local
	// file that looks newer than the shared copy.
	return atomic.WriteFile(dst, f)
}

// IsProcessed reports whether a decision has already been recorded for the
// file. Processed file IDs are never offered for review again.
func (s *TrackingStore) IsProcessed(fileID int64) (bool, error) {
	var pf ProcessedFile
	err := s.db.Where("file_id = ?", fileID).First(&pf).Error
	if err == nil {
		return true, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return false, err
}

// RecordKept marks a duplicate group as reviewed with every instance kept.
func (s *TrackingStore) RecordKept(fileID int64, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pf := ProcessedFile{
		FileID:      fileID,
		Decision:    DecisionKept,
		Note:        note,
		ProcessedAt: time.Now().UTC(),
	}
	return s.db.Create(&pf).Error
}

// RecordDeleted marks a duplicate group as reviewed with one or more
// instances deleted. The audit rows and the decision row commit together, so
// a crash cannot leave a deletion without its owning decision. Deletions must
// be non-empty: a group whose every requested deletion failed stays
// unrecorded.
func (s *TrackingStore) RecordDeleted(fileID int64, note string, deletions []Deletion) error {
	if len(deletions) == 0 {
		return ErrNoDeletions
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	return s.db.Transaction(func(tx *gorm.DB) error {
		for _, d := range deletions {
			row := DeletedFile{
				FileID:     fileID,
				Path:       d.Path,
				SizeBytes:  d.SizeBytes,
				GatewayRef: d.GatewayRef,
				DeletedAt:  now,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		pf := ProcessedFile{
			FileID:      fileID,
			Decision:    DecisionDeleted,
			Note:        note,
			ProcessedAt: now,
		}
		return tx.Create(&pf).Error
	})
}

// RecordLocationComplete notes that a sweep over a location ran every group
// to a decision. Sessions the operator quits early never write this row.
func (s *TrackingStore) RecordLocationComplete(path string, groupCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := ProcessedLocation{
		Path:        path,
		GroupCount:  groupCount,
		CompletedAt: time.Now().UTC(),
	}
	return s.db.Create(&row).Error
}

// RecordError appends a failure note. It never fails the caller: a session
// that cannot write an error record logs it and keeps going.
func (s *TrackingStore) RecordError(operation string, fileID *int64, message, context string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := ErrorRecord{
		Operation:  operation,
		FileID:     fileID,
		Message:    message,
		Context:    context,
		RecordedAt: time.Now().UTC(),
	}
	if err := s.db.Create(&row).Error; err != nil {
		s.logger.Warn("error record not written",
			zap.String("operation", operation), zap.String("message", message), zap.Error(err))
	}
}

// Sync publishes the local store to shared storage as a single atomic
// replace. No mutation can interleave with serialization, so the published
// file is always a complete snapshot. Rename atomicity on network filesystems
// varies by protocol; the shared path should live on a share with POSIX
// rename semantics.
func (s *TrackingStore) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Fold any WAL pages back into the main file before reading it.
	if err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)").Error; err != nil {
		return fmt.Errorf("%w: checkpoint: %v", ErrSyncFailed, err)
	}
	f, err := os.Open(s.localPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSyncFailed, err)
	}
	defer f.Close()
	if err := atomic.WriteFile(s.sharedPath, f); err != nil {
		return fmt.Errorf("%w: publish to %s: %v", ErrSyncFailed, s.sharedPath, err)
	}
	s.logger.Debug("tracking store published", zap.String("shared", s.sharedPath))
	return nil
}

// Close releases the underlying database handle.
func (s *TrackingStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
