package service

import (
	"fmt"

	"github.com/pkg/errors"

	"support_chat/internal/repository"
)

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = repository.ErrNotFound
	ErrInvalidInput    = errors.New("invalid input")
)

// ErrCursorNotFound cursor 指向的訊息在主表與封存表都不存在（可能已被刪除），
// 呼叫端可以改用下一則較舊的訊息重試
var ErrCursorNotFound = &InputError{Reason: "invalid cursor", Code: CodeCursorNotFound}

const CodeCursorNotFound = "cursor_not_found"

// InputError 攜帶可以直接回給呼叫端的錯誤原因，errors.Is(err, ErrInvalidInput) 成立
type InputError struct {
	Reason string
	// Code 給程式判斷用，可為空
	Code string
}

func (e *InputError) Error() string {
	return e.Reason
}

func (e *InputError) Is(target error) bool {
	return target == ErrInvalidInput
}

func invalidInput(format string, args ...interface{}) error {
	return &InputError{Reason: fmt.Sprintf(format, args...)}
}
