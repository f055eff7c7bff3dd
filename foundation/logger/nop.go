package logger

// Nop returns a logger that discards everything. It is the default sink
// for library components when the caller does not wire a real logger.
func Nop() Logger { return nopLogger{} }

type nopLogger struct{}

func (nopLogger) Debugw(string, ...any) {}
func (nopLogger) Infow(string, ...any)  {}
func (nopLogger) Warnw(string, ...any)  {}
func (nopLogger) Errorw(string, ...any) {}
func (nopLogger) With(...any) Logger    { return nopLogger{} }
func (nopLogger) SafeSync()             {}
