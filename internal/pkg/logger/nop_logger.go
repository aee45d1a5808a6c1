package logger

// NopLogger discards everything (tests, tools).
type NopLogger struct{}

var _ ILogger = NopLogger{}

func (NopLogger) Debug(module, message string, details map[string]interface{})    {}
func (NopLogger) Info(module, message string, details map[string]interface{})     {}
func (NopLogger) Warn(module, message string, details map[string]interface{})     {}
func (NopLogger) Error(module, message string, details map[string]interface{})    {}
func (NopLogger) Critical(module, message string, details map[string]interface{}) {}
func (NopLogger) Sync() error                                                     { return nil }
