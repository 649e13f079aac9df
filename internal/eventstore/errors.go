package eventstore

// Sentinel errors for run history operations.

import (
	"git.home.luguber.info/inful/sitesnap/internal/foundation/errors"
)

var (
	// ErrDatabaseOpenFailed indicates the SQLite database could not be opened.
	ErrDatabaseOpenFailed = errors.EventStoreError("could not open run history database").Build()

	// ErrInitializeSchemaFailed indicates the database schema could not be initialized.
	ErrInitializeSchemaFailed = errors.EventStoreError("failed to initialize run history schema").Build()

	// ErrEventAppendFailed indicates appending an event failed.
	ErrEventAppendFailed = errors.EventStoreError("failed to append event to run history").Build()

	// ErrEventQueryFailed indicates querying events or runs failed.
	ErrEventQueryFailed = errors.EventStoreError("failed to query run history").Build()

	// ErrRunNotFound indicates FinishRun was called for an unknown run.
	ErrRunNotFound = errors.NewError(errors.CategoryNotFound, "run not found in history").Build()
)
