package engine

// Option configures an Engine at construction.
type Option func(*Engine)

// WithObserver installs an event observer. A nil observer is ignored.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}
