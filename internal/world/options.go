package world

import (
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Option configures a World at Init.
type Option func(*World)

func WithLogger(log *zap.Logger) Option {
	return func(w *World) {
		if log != nil {
			w.log = log
		}
	}
}

func WithID(id uuid.UUID) Option {
	return func(w *World) { w.id = id }
}

// App is a configuration unit applied by AppInit: it registers component
// types and systems.
type App interface {
	Setup(w *World) error
}

// AppFunc adapts a function to App.
type AppFunc func(w *World) error

func (f AppFunc) Setup(w *World) error { return f(w) }
