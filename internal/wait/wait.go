// Package wait implements bounded polling: evaluate a condition against a
// subject until it holds or a timeout elapses.
package wait

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/phuslu/log"
)

const (
	DefaultPolling = 500 * time.Millisecond
	DefaultTimeout = 120 * time.Second
)

// ErrTimeout matches every *TimeoutError via errors.Is.
var ErrTimeout = errors.New("timed out")

// TimeoutError is returned when a condition did not hold before the deadline.
type TimeoutError struct {
	Message   string
	Timeout   time.Duration
	Last      error
	Diagnosis string
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("timed out after %s waiting for %s", e.Timeout, e.Message)
	if e.Last != nil {
		msg += ": " + e.Last.Error()
	}
	if e.Diagnosis != "" {
		msg += "\n" + e.Diagnosis
	}
	return msg
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

func (e *TimeoutError) Unwrap() error { return e.Last }

// Wait polls a condition against a subject. Build one with New and adjust it
// with the chained setters before calling Until.
type Wait[T any] struct {
	subject  T
	elastic  ElasticTime
	polling  time.Duration
	timeout  time.Duration
	message  string
	ignored  []error
	diagnose func(last error, message string) string
}

func New[T any](subject T, elastic ElasticTime) *Wait[T] {
	return &Wait[T]{
		subject: subject,
		elastic: elastic,
		polling: DefaultPolling,
		timeout: elastic.Scale(DefaultTimeout),
		message: "condition",
	}
}

func (w *Wait[T]) PollingEvery(d time.Duration) *Wait[T] {
	w.polling = d
	return w
}

// WithTimeout sets the timeout; the elastic factor is applied.
func (w *Wait[T]) WithTimeout(d time.Duration) *Wait[T] {
	w.timeout = w.elastic.Scale(d)
	return w
}

func (w *Wait[T]) WithMessage(format string, args ...any) *Wait[T] {
	w.message = fmt.Sprintf(format, args...)
	return w
}

// Ignoring lists errors that mean "not yet" rather than "failed".
func (w *Wait[T]) Ignoring(errs ...error) *Wait[T] {
	w.ignored = append(w.ignored, errs...)
	return w
}

// Diagnose attaches extra context to the timeout error, e.g. a log excerpt.
func (w *Wait[T]) Diagnose(fn func(last error, message string) string) *Wait[T] {
	w.diagnose = fn
	return w
}

func (w *Wait[T]) Subject() T { return w.subject }

func (w *Wait[T]) Timeout() time.Duration { return w.timeout }

func (w *Wait[T]) Message() string { return w.message }

// Until polls cond until it reports true.
func (w *Wait[T]) Until(ctx context.Context, cond func(ctx context.Context, subject T) (bool, error)) error {
	_, err := UntilValue(ctx, w, func(ctx context.Context, subject T) (bool, error) {
		return cond(ctx, subject)
	})
	return err
}

// UntilValue polls fn until it returns a non-zero value without error.
// Zero values (false, nil, "", 0) mean the condition does not hold yet.
func UntilValue[T, R any](ctx context.Context, w *Wait[T], fn func(ctx context.Context, subject T) (R, error)) (R, error) {
	var zero R
	deadline := time.Now().Add(w.timeout)
	var last error

	ticker := time.NewTicker(w.polling)
	defer ticker.Stop()

	for {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		v, err := fn(ctx, w.subject)
		switch {
		case err == nil && !isZero(v):
			return v, nil
		case err == nil:
			last = nil
		case w.isIgnored(err):
			last = err
		default:
			return zero, err
		}

		if !time.Now().Before(deadline) {
			break
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-ticker.C:
		}
	}

	te := &TimeoutError{Message: w.message, Timeout: w.timeout, Last: last}
	if w.diagnose != nil {
		te.Diagnosis = w.diagnose(last, w.message)
	}
	log.Debug().Str("wait", w.message).Dur("timeout", w.timeout).Msg("wait timed out")
	return zero, te
}

func (w *Wait[T]) isIgnored(err error) bool {
	for _, ig := range w.ignored {
		if errors.Is(err, ig) {
			return true
		}
	}
	return false
}

func isZero[R any](v R) bool {
	rv := reflect.ValueOf(&v).Elem()
	switch rv.Kind() {
	case reflect.Interface, reflect.Pointer, reflect.Func, reflect.Chan:
		return rv.IsNil()
	case reflect.Map, reflect.Slice:
		return rv.Len() == 0
	}
	return rv.IsZero()
}
