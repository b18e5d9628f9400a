package main

// Process exit codes.
const (
	exitOK          = 0
	exitParameter   = 1
	exitOutput      = 2
	exitContext     = 3
	exitFunctions   = 4
	exitFramebuffer = 5
	exitShader      = 6
	exitStream      = 7
	exitRender      = 8
)

// exitError carries the exit code of a failure out of the command.
type exitError struct {
	code int
	msg  string
	err  error
}

func fail(code int, msg string, err error) *exitError {
	return &exitError{code: code, msg: msg, err: err}
}

func (e *exitError) Error() string {
	if e.err == nil {
		return e.msg
	}
	return e.msg + ": " + e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }
