package status

import "sync"

// diagnostic is the process-wide "last error" channel described in spec
// §6. A real thread-local has no idiomatic Go equivalent without abusing
// goroutine IDs, so this is scoped to the process and guarded by a mutex;
// every exported engine/dispatch call resets it via Begin() before doing
// any work and populates it via Fail() on the way out through a non-OK
// return. Callers that need per-goroutine isolation should serialize
// their own access to a given engine, which the engine already requires
// for writers (spec §5).
var diagnostic struct {
	mu  sync.Mutex
	msg string
}

// Begin resets the diagnostic message. Call at the start of every public
// operation, mirroring the C++ core's "reset at call start" discipline.
func Begin() {
	diagnostic.mu.Lock()
	diagnostic.msg = ""
	diagnostic.mu.Unlock()
}

// Fail records a diagnostic message for the most recent failure and
// returns the supplied status unchanged, so call sites can write
// `return status.Fail(status.InvalidArgument, "key too long")`.
func Fail(s Status, msg string) Status {
	diagnostic.mu.Lock()
	diagnostic.msg = msg
	diagnostic.mu.Unlock()
	return s
}

// LastError returns the diagnostic recorded by the most recent failing
// call, or "" if the last call succeeded or none has run yet.
func LastError() string {
	diagnostic.mu.Lock()
	defer diagnostic.mu.Unlock()
	return diagnostic.msg
}
