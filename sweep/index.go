package sweep

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// FileInstance is one physical copy of an archived file. Directories is the
// canonical server-relative form; FileID ties instances of the same content
// together.
type FileInstance struct {
	FileID      int64
	Directories string
	Filename    string
	SizeBytes   int64
}

// DuplicateIndex answers which files have more than one instance. The sweep
// treats it as read-only and eventually consistent: an instance reported here
// may be gone by the time a deletion is requested.
type DuplicateIndex interface {
	// FindDuplicatesUnder returns the instances directly in serverDirs whose
	// file appears more than once anywhere in the archive.
	FindDuplicatesUnder(ctx context.Context, serverDirs string) ([]FileInstance, error)

	// FindAllLocations returns every instance of one file, wherever it
	// lives.
	FindAllLocations(ctx context.Context, fileID int64) ([]FileInstance, error)
}

// ArchiveQuerier is the slice of pgx the index needs. *pgxpool.Pool satisfies
// it.
type ArchiveQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// ArchiveIndex reads the archives app's Postgres database directly. Pure SQL
// through pgx; the sweep never writes to these tables.
type ArchiveIndex struct {
	db ArchiveQuerier
}

func NewArchiveIndex(db ArchiveQuerier) *ArchiveIndex {
	return &ArchiveIndex{db: db}
}

const duplicatesUnderSQL = `
WITH locs AS (
    SELECT fl.file_id,
           fl.file_server_directories,
           fl.filename,
           f.size,
           COUNT(*) OVER (PARTITION BY fl.file_id) AS loc_count
    FROM file_locations fl
    JOIN files f ON f.id = fl.file_id
)
SELECT file_id, file_server_directories, filename, size
FROM locs
WHERE file_server_directories = $1 AND loc_count > 1
ORDER BY filename, file_id`

const allLocationsSQL = `
SELECT fl.file_id, fl.file_server_directories, fl.filename, f.size
FROM file_locations fl
JOIN files f ON f.id = fl.file_id
WHERE fl.file_id = $1
ORDER BY fl.file_server_directories, fl.filename`

func (x *ArchiveIndex) FindDuplicatesUnder(ctx context.Context, serverDirs string) ([]FileInstance, error) {
	instances, err := x.query(ctx, duplicatesUnderSQL, serverDirs)
	if err != nil {
		return nil, fmt.Errorf("%w: duplicates under %q: %w", ErrQueryFailed, serverDirs, err)
	}
	return instances, nil
}

func (x *ArchiveIndex) FindAllLocations(ctx context.Context, fileID int64) ([]FileInstance, error) {
	instances, err := x.query(ctx, allLocationsSQL, fileID)
	if err != nil {
		return nil, fmt.Errorf("%w: locations of file %d: %w", ErrQueryFailed, fileID, err)
	}
	return instances, nil
}

func (x *ArchiveIndex) query(ctx context.Context, sql string, args ...any) ([]FileInstance, error) {
	rows, err := x.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var instances []FileInstance
	for rows.Next() {
		var inst FileInstance
		if err := rows.Scan(&inst.FileID, &inst.Directories, &inst.Filename, &inst.SizeBytes); err != nil {
			return nil, err
		}
		instances = append(instances, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return instances, nil
}
