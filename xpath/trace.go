package xpath

import (
	"io"
	"log/slog"
	"os"
)

type Tracer interface {
	Enter(string)
	Leave(string)
	Error(string, error)
}

type discardTracer struct{}

func (_ discardTracer) Enter(_ string)          {}
func (_ discardTracer) Leave(_ string)          {}
func (_ discardTracer) Error(_ string, _ error) {}

type stdioTracer struct {
	logger   *slog.Logger
	depth    int
	errcount int
}

func TraceStdout() Tracer {
	return TraceWriter(os.Stdout)
}

func TraceStderr() Tracer {
	return TraceWriter(os.Stderr)
}

func TraceWriter(w io.Writer) Tracer {
	tracer := stdioTracer{
		logger: stdioLogger(w),
	}
	return &tracer
}

func stdioLogger(w io.Writer) *slog.Logger {
	opts := slog.HandlerOptions{
		Level: slog.LevelDebug,
	}
	return slog.New(slog.NewTextHandler(w, &opts))
}

// withID tags every message of a tracer with the id of a compilation.
func withID(tracer Tracer, id string) Tracer {
	t, ok := tracer.(*stdioTracer)
	if !ok {
		return tracer
	}
	x := stdioTracer{
		logger: t.logger.With("id", id),
	}
	return &x
}

func (t *stdioTracer) Enter(rule string) {
	t.depth++
	args := []any{
		"expression",
		rule,
		"depth",
		t.depth,
	}
	t.logger.Debug("start compile expr", args...)
}

func (t *stdioTracer) Leave(rule string) {
	t.depth--
	args := []any{
		"expression",
		rule,
		"depth",
		t.depth,
	}
	t.logger.Debug("done compile expr", args...)
}

func (t *stdioTracer) Error(rule string, err error) {
	t.errcount++
	args := []any{
		"expression",
		rule,
		"depth",
		t.depth,
		"errors",
		t.errcount,
		"err",
		err,
	}
	t.logger.Error("fail compile expr", args...)
}
