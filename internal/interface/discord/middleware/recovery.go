package middleware

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECOVERY
// Catches panics in command handlers and menu callbacks. The user only sees
// a short notice; the stack goes to the log and the operator channel.
// ══════════════════════════════════════════════════════════════════════════════

// ErrPanic is returned in place of a recovered panic.
var ErrPanic = errors.New("handler panicked")

// PanicInfo describes a recovered panic.
type PanicInfo struct {
	Value      any
	StackTrace string
	Command    string
	UserID     string
	GuildID    string
	Timestamp  time.Time
}

// String formats the panic for the operator channel.
func (p *PanicInfo) String() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Command `%s` by `%s` in `%s` panicked: %v\n", p.Command, p.UserID, p.GuildID, p.Value)
	if p.StackTrace != "" {
		buf.WriteString("```\n")
		buf.WriteString(p.StackTrace)
		buf.WriteString("\n```")
	}
	return buf.String()
}

// RecoveryConfig holds configuration for the recovery middleware.
type RecoveryConfig struct {
	// StackTraceDepth caps the number of stack lines kept.
	StackTraceDepth int

	// OnPanic is called after a panic has been logged.
	OnPanic func(ctx context.Context, info *PanicInfo)

	Logger *slog.Logger
}

// Recovery converts handler panics into errors.
type Recovery struct {
	config RecoveryConfig
	logger *slog.Logger
}

// NewRecovery creates the middleware.
func NewRecovery(config RecoveryConfig) *Recovery {
	if config.StackTraceDepth <= 0 {
		config.StackTraceDepth = 40
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Recovery{config: config, logger: config.Logger.With("component", "recovery")}
}

// Call runs fn and turns a panic into an error wrapping ErrPanic.
func (r *Recovery) Call(ctx context.Context, command, userID, guildID string, fn func() error) (err error) {
	defer func() {
		v := recover()
		if v == nil {
			return
		}

		info := &PanicInfo{
			Value:      v,
			StackTrace: trimStack(debug.Stack(), r.config.StackTraceDepth),
			Command:    command,
			UserID:     userID,
			GuildID:    guildID,
			Timestamp:  time.Now(),
		}
		r.logger.Error("panic recovered",
			"command", command,
			"user_id", userID,
			"guild_id", guildID,
			"panic", v,
			"stack", info.StackTrace,
		)
		if r.config.OnPanic != nil {
			r.config.OnPanic(ctx, info)
		}
		err = fmt.Errorf("%w: %v", ErrPanic, v)
	}()

	return fn()
}

func trimStack(stack []byte, depth int) string {
	lines := bytes.Split(bytes.TrimSpace(stack), []byte("\n"))
	if len(lines) > depth {
		lines = lines[:depth]
	}
	return string(bytes.Join(lines, []byte("\n")))
}
