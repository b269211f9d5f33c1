package sweep

import "errors"

var (
	// ErrStoreUnavailable means no tracking store exists at either the local
	// or the shared path. Sessions cannot start without one; run init first.
	ErrStoreUnavailable = errors.New("tracking store unavailable")

	// ErrStoreExists guards initialization against clobbering a store that
	// other operators may already be publishing to.
	ErrStoreExists = errors.New("tracking store already exists")

	// ErrSyncFailed wraps a failure to publish the local store to shared
	// storage. Local state is intact; the session keeps running.
	ErrSyncFailed = errors.New("tracking store sync failed")

	// ErrQueryFailed wraps a duplicate index query failure. The session
	// cannot continue without index results.
	ErrQueryFailed = errors.New("duplicate index query failed")

	// ErrNoDeletions rejects a deleted-decision record with no successful
	// deletions behind it. Callers must record such groups as errors, not
	// outcomes.
	ErrNoDeletions = errors.New("no successful deletions to record")
)
