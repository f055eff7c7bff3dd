package logger

// Logger is the structured logging surface used across the library.
// Implementations must be safe for concurrent use.
type Logger interface {
	Debugw(string, ...any)
	Infow(string, ...any)
	Warnw(string, ...any)
	Errorw(string, ...any)

	With(...any) Logger
	SafeSync()
}
