package service

import (
	"errors"
	"fmt"
)

// ErrorKind 错误分类，handler 据此决定 HTTP 状态码
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindValidation
	KindDecode
	KindComposite
	KindStorage
	KindNetwork
	KindNotFound
	KindConflict
	KindUnauthorized
	KindQueueFull
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindDecode:
		return "decode"
	case KindComposite:
		return "composite"
	case KindStorage:
		return "storage"
	case KindNetwork:
		return "network"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUnauthorized:
		return "unauthorized"
	case KindQueueFull:
		return "queue_full"
	}
	return "unknown"
}

// Error 带分类的错误
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is 同类错误相等，使 errors.Is(err, ErrDecode) 成立
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Err == nil && t.Kind == e.Kind
}

var (
	ErrValidation   = &Error{Kind: KindValidation}
	ErrDecode       = &Error{Kind: KindDecode}
	ErrComposite    = &Error{Kind: KindComposite}
	ErrStorage      = &Error{Kind: KindStorage}
	ErrNetwork      = &Error{Kind: KindNetwork}
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrConflict     = &Error{Kind: KindConflict}
	ErrUnauthorized = &Error{Kind: KindUnauthorized}
	ErrQueueFull    = &Error{Kind: KindQueueFull}
)

func newError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func validationError(op, format string, args ...any) *Error {
	return newError(KindValidation, op, fmt.Errorf(format, args...))
}

// KindOf 返回错误链上第一个 *Error 的分类
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
