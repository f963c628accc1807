package types

import (
	"context"
	"errors"
	"fmt"

	"git.sr.ht/~rjarry/msglist/models"
)

// ErrStoreUnavailable is returned by stores whose backing folder is gone.
var ErrStoreUnavailable = errors.New("store unavailable")

// QueryError reports a malformed search expression.
type QueryError struct {
	Expr string
	Err  error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("invalid query %q: %v", e.Expr, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// Store is the record source of a folder. All methods may be called from
// any goroutine.
type Store interface {
	// Name identifies the folder, it is used to look up per folder
	// settings.
	Name() string
	// Uids returns the uids of every message of the folder.
	Uids(ctx context.Context) ([]models.UID, error)
	// Search returns the uids of the messages matching expr. A malformed
	// expression is reported as a *QueryError.
	Search(ctx context.Context, expr string) ([]models.UID, error)
	// Record returns a snapshot of the metadata of a message. A nil record
	// and a nil error mean that the message does not exist (anymore).
	Record(ctx context.Context, uid models.UID) (*models.Record, error)
	// Subscribe returns a channel on which changes are posted. The channel
	// is closed when ctx is done.
	Subscribe(ctx context.Context) <-chan models.ChangeSet
}
