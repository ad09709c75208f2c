package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"

	apperrors "github.com/grumpyguvner/mailkeys/internal/errors"
	"github.com/jackc/pgx/v5/pgconn"
)

func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var connectErr *pgconn.ConnectError

	switch {
	case errors.Is(err, context.Canceled) && !pgconn.Timeout(err):
		return fmt.Errorf("%s: %w", op, err)
	case errors.Is(err, context.DeadlineExceeded), pgconn.Timeout(err):
		return apperrors.StorageTimeout(op+": postgres did not respond in time", err)
	case errors.As(err, &connectErr),
		errors.Is(err, driver.ErrBadConn),
		errors.Is(err, sql.ErrConnDone):
		return apperrors.StorageUnavailable(op+": postgres unavailable", err)
	default:
		return apperrors.StorageError(op+": postgres request failed", err)
	}
}
