// Package logger implements the logger service spec.md §7 describes:
// "a normal service subscribed to PTYPE_TEXT", not a core runtime
// component. It is built the same way any other module would be —
// through the modhost.Module ABI — and wired as the node's default
// `start` target's sibling rather than given any special-cased path
// through the scheduler.
package logger

import (
	"fmt"
	"log/slog"

	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"github.com/webitel/actor-runtime/internal/domain/message"
	"github.com/webitel/actor-runtime/internal/domain/modhost"
	"github.com/webitel/actor-runtime/internal/domain/registry"
)

// Config is parsed from the `logger` environment key (spec.md §6): empty
// means log through the base logger the module was built with, otherwise
// it names a file lumberjack rotates.
type Config struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

const (
	defaultMaxSizeMB  = 100
	defaultMaxBackups = 7
	defaultMaxAgeDays = 28
)

// ParseConfig turns the raw `logger` argument string into a Config. An
// empty string means "no file, use the base logger"; otherwise the
// argument is the rotated file's path.
func ParseConfig(arg string) Config {
	return Config{
		Path:       arg,
		MaxSizeMB:  defaultMaxSizeMB,
		MaxBackups: defaultMaxBackups,
		MaxAgeDays: defaultMaxAgeDays,
	}
}

type state struct {
	logger *slog.Logger
	writer *lumberjack.Logger // nil when logging through the base logger
}

// NewModule builds the logger service's modhost.Module, ready to hand to
// modhost.NewRegistry alongside a node's other service modules.
func NewModule(base *slog.Logger) *modhost.Module {
	return &modhost.Module{
		Name:   "logger",
		Create: func() any { return &state{} },
		Init:   func(ctx *registry.Context, inst any, params string) error { return initLogger(ctx, inst, params, base) },
		Release: func(inst any) {
			if st, ok := inst.(*state); ok && st.writer != nil {
				st.writer.Close()
			}
		},
	}
}

func initLogger(ctx *registry.Context, inst any, params string, base *slog.Logger) error {
	st, ok := inst.(*state)
	if !ok {
		return fmt.Errorf("logger: unexpected instance type %T", inst)
	}

	cfg := ParseConfig(params)
	if cfg.Path == "" {
		st.logger = base
	} else {
		st.writer = &lumberjack.Logger{
			Filename:   cfg.Path,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		}
		st.logger = slog.New(slog.NewTextHandler(st.writer, nil))
	}

	ctx.SetCallback(handleText, st)
	return nil
}

// handleText is the PTYPE_TEXT callback (spec.md §7): every other
// service's error/log text funnels here instead of crossing goroutine
// boundaries as a Go error value.
func handleText(_ *registry.Context, ud any, typ message.Type, _ int32, source uint32, payload []byte) bool {
	st := ud.(*state)
	if typ != message.TypeText {
		return false
	}
	st.logger.Info(string(payload), slog.Uint64("source", uint64(source)))
	return false
}
