package cerr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime"

	"github.com/kazz187/mysh/pkg/clog"
)

// Error wraps an underlying error with a Code and the message a user
// should see, capturing a stack trace for anything severe enough to log
// at error level.
type Error struct {
	Code  Code
	Msg   string
	Err   error
	Stack string
}

func NewError(code Code, msg string, underlying error) *Error {
	err := &Error{
		Code: code,
		Msg:  msg,
		Err:  underlying,
	}
	if levelOf(code) == clog.LevelError {
		stackTrace := make([]byte, 2048)
		n := runtime.Stack(stackTrace, false)
		err.Stack = string(stackTrace[0:n])
	}
	return err
}

func levelOf(code Code) clog.Level {
	switch code {
	case OK, BuiltinUsage, NotFound, JobNotFound, PersistenceFailure:
		return clog.LevelWarn
	default:
		return clog.LevelError
	}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("[%s] %s", e.Code, e.Msg)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Msg, e.Err.Error())
}

func (e *Error) Unwrap() error {
	return e.Err
}

func IsCode(err error, code Code) bool {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Code == code
	}
	return false
}

type httpError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteJSONError renders err as a JSON error body on rw, logging its
// stack (if any) to ctx's attribute set first.
func WriteJSONError(ctx context.Context, rw http.ResponseWriter, err error) {
	var cErr *Error
	if !errors.As(err, &cErr) {
		cErr = NewError(Internal, "internal error", err)
	}
	if cErr.Stack != "" {
		clog.AddStack(ctx, cErr.Stack)
	}
	clog.AddError(ctx, cErr)

	rw.Header().Set("Content-Type", "application/json; charset=utf-8")
	rw.WriteHeader(cErr.Code.HTTPCode())
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(true)
	if encErr := enc.Encode(httpError{Code: cErr.Code.String(), Message: cErr.Msg}); encErr != nil {
		buf = bytes.NewBufferString(`{"code":"internal","message":"server error"}`)
	}
	_, _ = rw.Write(buf.Bytes())
}
