// Package corelog defines the structured logging contract used across the
// scheduling core. It mirrors the teacher framework's Logger interface so any
// structured backend (zap, slog, logrus) can be substituted without touching
// call sites; the default implementation wraps a zap.SugaredLogger.
package corelog

import "go.uber.org/zap"

// Logger is the structured logging contract used throughout the core.
//
// Example:
//
//	logger.Info("job due", "identifier", job.Identifier, "dueAt", dueAt)
type Logger interface {
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Error(msg string, kv ...any)
	Debug(msg string, kv ...any)
}

// zapLogger adapts *zap.SugaredLogger to Logger.
type zapLogger struct {
	s *zap.SugaredLogger
}

// NewZap builds a Logger backed by zap. verbose enables debug-level output.
func NewZap(verbose bool) (Logger, error) {
	var cfg zap.Config
	if verbose {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	z, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &zapLogger{s: z.Sugar()}, nil
}

func (l *zapLogger) Info(msg string, kv ...any)  { l.s.Infow(msg, kv...) }
func (l *zapLogger) Warn(msg string, kv ...any)  { l.s.Warnw(msg, kv...) }
func (l *zapLogger) Error(msg string, kv ...any) { l.s.Errorw(msg, kv...) }
func (l *zapLogger) Debug(msg string, kv ...any) { l.s.Debugw(msg, kv...) }

// Nop is a Logger that discards everything; useful in tests.
type Nop struct{}

func (Nop) Info(string, ...any)  {}
func (Nop) Warn(string, ...any)  {}
func (Nop) Error(string, ...any) {}
func (Nop) Debug(string, ...any) {}
