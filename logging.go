package jobsched

import (
	"context"
	"log/slog"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
)

// slogEvent adapts logiface's Event contract to a slog.Record, so that a
// Manager's structured logging rides on the standard library's log/slog
// rather than a bespoke format. Every field set on the event is accumulated
// as a slog.Attr, and flushed to the configured slog.Handler on Write.
type slogEvent struct {
	logiface.UnimplementedEvent
	level logiface.Level
	msg   string
	attrs []slog.Attr
}

func (e *slogEvent) Level() logiface.Level { return e.level }

func (e *slogEvent) AddField(key string, val any) {
	e.attrs = append(e.attrs, slog.Any(key, val))
}

func (e *slogEvent) AddMessage(msg string) bool {
	e.msg = msg
	return true
}

func (e *slogEvent) AddString(key string, val string) bool {
	e.attrs = append(e.attrs, slog.String(key, val))
	return true
}

func (e *slogEvent) AddInt(key string, val int) bool {
	e.attrs = append(e.attrs, slog.Int(key, val))
	return true
}

func (e *slogEvent) AddInt64(key string, val int64) bool {
	e.attrs = append(e.attrs, slog.Int64(key, val))
	return true
}

func (e *slogEvent) AddUint64(key string, val uint64) bool {
	e.attrs = append(e.attrs, slog.Uint64(key, val))
	return true
}

func (e *slogEvent) AddBool(key string, val bool) bool {
	e.attrs = append(e.attrs, slog.Bool(key, val))
	return true
}

func (e *slogEvent) AddDuration(key string, val time.Duration) bool {
	e.attrs = append(e.attrs, slog.Duration(key, val))
	return true
}

func (e *slogEvent) AddTime(key string, val time.Time) bool {
	e.attrs = append(e.attrs, slog.Time(key, val))
	return true
}

func (e *slogEvent) AddError(err error) bool {
	e.attrs = append(e.attrs, slog.Any("error", err))
	return true
}

func slogLevel(level logiface.Level) slog.Level {
	switch {
	case level >= logiface.LevelDebug:
		return slog.LevelDebug
	case level >= logiface.LevelInformational:
		return slog.LevelInfo
	case level >= logiface.LevelWarning:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

// slogEventFactory and slogEventReleaser implement logiface.EventFactory and
// logiface.EventReleaser for *slogEvent. The factory allocates a fresh event
// on every call; the releaser only clears the released event's message and
// attributes (events are not pooled).
var slogEventFactory = logiface.NewEventFactoryFunc(func(level logiface.Level) *slogEvent {
	return &slogEvent{level: level}
})

var slogEventReleaser = logiface.NewEventReleaserFunc(func(e *slogEvent) {
	e.msg = ""
	e.attrs = e.attrs[:0]
})

// slogWriter implements logiface.Writer[*slogEvent], handing completed
// events to an underlying slog.Handler.
type slogWriter struct {
	handler slog.Handler
}

func (w *slogWriter) Write(event *slogEvent) error {
	if !w.handler.Enabled(context.Background(), slogLevel(event.level)) {
		return nil
	}
	record := slog.NewRecord(time.Now(), slogLevel(event.level), event.msg, 0)
	record.AddAttrs(event.attrs...)
	return w.handler.Handle(context.Background(), record)
}

// newSlogLogger builds a *logiface.Logger[*slogEvent] backed by handler, at
// the given level. A nil handler yields the package's disabled default (see
// logiface.New's no-writer-configured behavior), matching eventloop's
// zero-overhead NewNoOpLogger convention.
func newSlogLogger(handler slog.Handler, level logiface.Level) *logiface.Logger[*slogEvent] {
	opts := []logiface.Option[*slogEvent]{
		logiface.WithEventFactory[*slogEvent](slogEventFactory),
		logiface.WithEventReleaser[*slogEvent](slogEventReleaser),
		logiface.WithLevel[*slogEvent](level),
	}
	if handler != nil {
		opts = append(opts, logiface.WithWriter[*slogEvent](&slogWriter{handler: handler}))
	}
	return logiface.New[*slogEvent](opts...)
}

// diagLogger wraps the structured logger with an optional catrate limiter,
// so that recurring diagnostic lines (e.g. repeated free-list exhaustion on
// a saturated pool) are suppressed under sustained load instead of flooding
// the configured handler. Categories are scoped by the manager's name.
type diagLogger struct {
	log  *logiface.Logger[*slogEvent]
	name string
	rate *catrate.Limiter
}

func newDiagLogger(handler slog.Handler, level logiface.Level, name string, rates map[time.Duration]int) *diagLogger {
	d := &diagLogger{log: newSlogLogger(handler, level), name: name}
	if len(rates) > 0 {
		d.rate = catrate.NewLimiter(rates)
	}
	return d
}

// allow reports whether a diagnostic line in the given category should be
// emitted right now. With no configured limiter, every call is allowed.
func (d *diagLogger) allow(category string) bool {
	if d == nil || d.rate == nil {
		return true
	}
	_, ok := d.rate.Allow(d.name + ":" + category)
	return ok
}

func (d *diagLogger) trace() *logiface.Builder[*slogEvent] { return d.log.Trace().Str("manager", d.name) }
func (d *diagLogger) debug() *logiface.Builder[*slogEvent] { return d.log.Debug().Str("manager", d.name) }
func (d *diagLogger) info() *logiface.Builder[*slogEvent]  { return d.log.Info().Str("manager", d.name) }
func (d *diagLogger) err() *logiface.Builder[*slogEvent]   { return d.log.Err().Str("manager", d.name) }

// diagRateLimited logs at Debug level under the given category, subject to
// rate limiting; its call site is free-list exhaustion in Manager.popFree,
// a condition expected to recur rapidly.
func (d *diagLogger) diagRateLimited(category, msg string) {
	if d == nil || !d.allow(category) {
		return
	}
	d.debug().Str("category", category).Log(msg)
}
