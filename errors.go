package matchbatch

import (
	"fmt"

	"github.com/pkg/errors"
)

// error codes
const (
	ErrCodeGeneral       = "matchbatch.general"
	ErrCodeDbFail        = "matchbatch.db_fail"
	ErrCodeMissingColumn = "matchbatch.missing_column"
	ErrCodeEmptySource   = "matchbatch.empty_source"
	ErrCodeConfig        = "matchbatch.config"
	ErrCodeStopped       = "matchbatch.stopped"
	ErrCodeLockBusy      = "matchbatch.lock_busy"
	ErrCodeIO            = "matchbatch.io"
)

// BatchError is the error type returned by steps, jobs and repositories.
type BatchError interface {
	error
	Code() string
	Message() string
	Cause() error
	StackTrace() string
}

type batchError struct {
	code string
	msg  string
	err  error
}

// NewBatchError builds a BatchError. msg is a format string; when the last
// element of args is an error it becomes the cause of the BatchError.
func NewBatchError(code string, msg string, args ...interface{}) BatchError {
	var cause error
	if len(args) > 0 {
		if e, ok := args[len(args)-1].(error); ok {
			cause = e
			args = args[:len(args)-1]
		}
	}
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	var err error
	if cause != nil {
		err = errors.Wrap(cause, msg)
	} else {
		err = errors.New(msg)
	}
	return &batchError{code: code, msg: msg, err: err}
}

func (e *batchError) Error() string {
	return fmt.Sprintf("BatchError[%s]: %s", e.code, e.err.Error())
}

func (e *batchError) Code() string {
	return e.code
}

func (e *batchError) Message() string {
	return e.msg
}

func (e *batchError) Cause() error {
	return errors.Cause(e.err)
}

func (e *batchError) Unwrap() error {
	return e.err
}

func (e *batchError) StackTrace() string {
	return fmt.Sprintf("%+v", e.err)
}

// IsCode reports whether err is a BatchError carrying code.
func IsCode(err error, code string) bool {
	var be BatchError
	if errors.As(err, &be) {
		return be.Code() == code
	}
	return false
}

// AsBatchError converts any error into a BatchError, keeping BatchErrors as they are.
func AsBatchError(err error, code string, msg string, args ...interface{}) BatchError {
	if err == nil {
		return nil
	}
	if be, ok := err.(BatchError); ok {
		return be
	}
	return NewBatchError(code, msg, append(args, err)...)
}
