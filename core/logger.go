package core

// Logger is any service that can log messages.
// args may contain errors, a map[string]interface{} of extra data and a LogPerson.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// LogPerson identifies the user on whose behalf a message is logged.
type LogPerson struct {
	ID       string
	Username string
	Email    string
}
