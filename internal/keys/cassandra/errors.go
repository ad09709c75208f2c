package cassandra

import (
	"context"
	"errors"
	"fmt"

	"github.com/gocql/gocql"
	apperrors "github.com/grumpyguvner/mailkeys/internal/errors"
)

// classify maps driver failures onto the storage error taxonomy. The
// driver error stays in the chain. A canceled context is not a storage
// failure and is returned with op added.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var (
		readTimeout  *gocql.RequestErrReadTimeout
		writeTimeout *gocql.RequestErrWriteTimeout
		unavailable  *gocql.RequestErrUnavailable
	)

	switch {
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%s: %w", op, err)
	case errors.Is(err, gocql.ErrTimeoutNoResponse),
		errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &readTimeout),
		errors.As(err, &writeTimeout):
		return apperrors.StorageTimeout(op+": cassandra did not respond in time", err)
	case errors.Is(err, gocql.ErrNoConnections),
		errors.Is(err, gocql.ErrConnectionClosed),
		errors.Is(err, gocql.ErrSessionClosed),
		errors.Is(err, gocql.ErrUnavailable),
		errors.As(err, &unavailable):
		return apperrors.StorageUnavailable(op+": cassandra unavailable", err)
	default:
		return apperrors.StorageError(op+": cassandra request failed", err)
	}
}
