package xerr

import (
	"errors"
	"fmt"
	"net/http"
)

// Business codes. The first three digits follow HTTP so handlers can map
// them without a table.
const (
	OK                 = 200
	RequestParamsError = 400
	RecordNotFound     = 404
	Conflict           = 409
	Rejected           = 422
	TooManyRequests    = 429
	ServerCommonError  = 500
	DbError            = 501
	Unavailable        = 503
)

type CodeError struct {
	Code  int    `json:"code"`
	Msg   string `json:"msg"`
	Cause error  `json:"-"`
}

func (e *CodeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("ErrCode:%d, Msg:%s, Cause:%v", e.Code, e.Msg, e.Cause)
	}
	return fmt.Sprintf("ErrCode:%d, Msg:%s", e.Code, e.Msg)
}

func (e *CodeError) Unwrap() error { return e.Cause }

// Is matches another *CodeError with the same code, so sentinels built with
// NewErrCode work with errors.Is.
func (e *CodeError) Is(target error) bool {
	t, ok := target.(*CodeError)
	return ok && t.Code == e.Code && (t.Msg == "" || t.Msg == e.Msg)
}

func New(code int, msg string) error {
	return &CodeError{Code: code, Msg: msg}
}

func NewErrCode(code int) error {
	return &CodeError{Code: code, Msg: MapErrMsg(code)}
}

// Wrap attaches a code and message to cause. A nil cause stays nil.
func Wrap(cause error, code int, msg string) error {
	if cause == nil {
		return nil
	}
	return &CodeError{Code: code, Msg: msg, Cause: cause}
}

// As returns the outermost *CodeError in err's chain.
func As(err error) (*CodeError, bool) {
	var ce *CodeError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// CodeOf returns err's code, ServerCommonError for uncoded errors and OK for nil.
func CodeOf(err error) int {
	if err == nil {
		return OK
	}
	if ce, ok := As(err); ok {
		return ce.Code
	}
	return ServerCommonError
}

// HTTPStatus maps a business code to the status the gateway answers with.
func HTTPStatus(code int) int {
	switch code {
	case OK:
		return http.StatusOK
	case RequestParamsError:
		return http.StatusBadRequest
	case RecordNotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	case Rejected:
		return http.StatusUnprocessableEntity
	case TooManyRequests:
		return http.StatusTooManyRequests
	case Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func MapErrMsg(code int) string {
	switch code {
	case RequestParamsError:
		return "invalid parameters"
	case RecordNotFound:
		return "record not found"
	case Conflict:
		return "already exists"
	case Rejected:
		return "rejected"
	case TooManyRequests:
		return "too many requests"
	case ServerCommonError:
		return "internal error"
	case DbError:
		return "database busy"
	case Unavailable:
		return "service unavailable"
	default:
		return "unknown error"
	}
}
