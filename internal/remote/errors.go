package remote

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/avolkov/cardbinder/internal/common"
)

// Retryable classifies a remote-store failure. Retryable failures
// (connectivity, timeouts, server shutdown) may be queued and replayed later;
// non-retryable ones (constraint and data violations, missing rows) would
// fail identically on every replay and must be surfaced immediately instead
// of blocking the queue forever.
func Retryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, common.ErrNotFound) || errors.Is(err, common.ErrInvalidOperation) {
		return false
	}

	// A SQLSTATE from the server means the request arrived; only
	// availability-related classes are worth replaying.
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if len(pgErr.Code) < 2 {
			return false
		}
		switch pgErr.Code[:2] {
		case "08": // connection exception
			return true
		case "53": // insufficient resources
			return true
		case "57": // operator intervention (shutdown, crash)
			return true
		}
		return false
	}

	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	// Unknown failures default to retryable: the optimistic contract prefers
	// queueing over losing a write.
	return true
}
