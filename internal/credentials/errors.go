package credentials

// StoreError reports a failed mirror write to a Backend. The in-memory
// credential is already updated when a StoreError is returned.
type StoreError struct {
	Operation string // "get", "set", "remove"
	Key       string
	Backend   string
	Cause     error
}

func (e *StoreError) Error() string {
	msg := e.Operation + " " + e.Key
	if e.Backend != "" {
		msg += " on " + e.Backend
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *StoreError) Unwrap() error {
	return e.Cause
}
