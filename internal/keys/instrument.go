package keys

import (
	"context"
	"iter"
	"time"

	apperrors "github.com/grumpyguvner/mailkeys/internal/errors"
	"github.com/grumpyguvner/mailkeys/internal/metrics"
	"go.uber.org/zap"
)

type instrumented struct {
	next    Store
	backend string
	logger  *zap.Logger
}

// Instrument records Prometheus metrics and logs for every call made
// through the returned Store. Results and errors pass through unchanged.
func Instrument(next Store, backend string, logger *zap.Logger) Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &instrumented{
		next:    next,
		backend: backend,
		logger:  logger.With(zap.String("backend", backend)),
	}
}

func (s *instrumented) Store(ctx context.Context, repository, key string) error {
	start := time.Now()
	err := s.next.Store(ctx, repository, key)
	s.observe("store", repository, key, start, err)
	return err
}

func (s *instrumented) List(ctx context.Context, repository string) iter.Seq2[string, error] {
	inner := s.next.List(ctx, repository)
	return func(yield func(string, error) bool) {
		start := time.Now()
		count := 0
		var failure error
		for key, err := range inner {
			if err != nil {
				failure = err
				yield("", err)
				break
			}
			count++
			if !yield(key, nil) {
				break
			}
		}
		s.observe("list", repository, "", start, failure)
		if failure == nil {
			metrics.RecordKeysListed(s.backend, count)
		}
	}
}

func (s *instrumented) Remove(ctx context.Context, repository, key string) error {
	start := time.Now()
	err := s.next.Remove(ctx, repository, key)
	s.observe("remove", repository, key, start, err)
	return err
}

func (s *instrumented) observe(operation, repository, key string, start time.Time, err error) {
	elapsed := time.Since(start)
	metrics.RecordKeyIndexOperation(s.backend, operation, err, elapsed.Seconds())

	fields := []zap.Field{
		zap.String("operation", operation),
		zap.String("repository", repository),
		zap.Duration("duration", elapsed),
	}
	if key != "" {
		fields = append(fields, zap.String("key", key))
	}

	switch {
	case err == nil:
		s.logger.Debug("key index operation", fields...)
	case apperrors.IsCanceled(err):
		s.logger.Debug("key index operation canceled", fields...)
	default:
		s.logger.Error("key index operation failed", append(fields, zap.Error(err))...)
	}
}
