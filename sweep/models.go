package sweep

import "time"

const (
	DecisionKept    = "kept"
	DecisionDeleted = "deleted"
)

// ProcessedLocation records a sweep that ran to normal completion over a
// location. It is written once per completed session, never for sessions the
// operator quit early.
type ProcessedLocation struct {
	ID          uint   `gorm:"primaryKey"`
	Path        string `gorm:"index;size:1024"`
	GroupCount  int
	CompletedAt time.Time `gorm:"index"`
}

// ProcessedFile records the operator's decision for one duplicate group.
// FileID is unique: a file decided once is never offered again, regardless of
// how many of its instances survived the decision.
type ProcessedFile struct {
	ID          uint      `gorm:"primaryKey"`
	FileID      int64     `gorm:"uniqueIndex:uniq_processed_file_id"`
	Decision    string    `gorm:"index;size:16"` // kept, deleted
	Note        string    `gorm:"type:text"`
	ProcessedAt time.Time `gorm:"index"`
}

// DeletedFile is an append-only audit row, one per instance the deletion
// gateway accepted. Rows are written in the same transaction as the owning
// ProcessedFile row.
type DeletedFile struct {
	ID         uint   `gorm:"primaryKey"`
	FileID     int64  `gorm:"index"`
	Path       string `gorm:"size:1024"`
	SizeBytes  int64
	GatewayRef string    `gorm:"size:64"`
	DeletedAt  time.Time `gorm:"index"`
}

// ErrorRecord is an append-only note of a failure the session survived
// (gateway refusal, sync failure, record failure). FileID is nil for errors
// not tied to a duplicate group.
type ErrorRecord struct {
	ID         uint      `gorm:"primaryKey"`
	Operation  string    `gorm:"index;size:32"` // delete, sync, record, query, sweep, open
	FileID     *int64    `gorm:"index"`
	Message    string    `gorm:"type:text"`
	Context    string    `gorm:"type:text"`
	RecordedAt time.Time `gorm:"index"`
}

// Deletion describes one successfully deleted instance, as accepted by the
// deletion gateway.
type Deletion struct {
	Path       string
	SizeBytes  int64
	GatewayRef string
}
