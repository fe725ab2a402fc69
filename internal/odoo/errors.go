package odoo

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrAccessDenied = errors.New("odoo: access denied")
	ErrCircuitOpen  = errors.New("odoo: circuit breaker open")
)

// FaultError — ошибка, которую вернул сам сервер Odoo (исключение на стороне ERP).
type FaultError struct {
	Model   string
	Method  string
	Message string
	denied  bool
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("odoo fault in %s.%s: %s", e.Model, e.Method, lastLine(e.Message))
}

func (e *FaultError) Unwrap() error {
	if e.denied {
		return ErrAccessDenied
	}
	return nil
}

func newFault(model, method, msg string) *FaultError {
	return &FaultError{Model: model, Method: method, Message: msg, denied: isAccessDenied(msg)}
}

func isAccessDenied(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "accessdenied") ||
		strings.Contains(m, "access denied") ||
		strings.Contains(m, "session expired") ||
		strings.Contains(m, "invalid uid")
}

// lastLine режет traceback Odoo до последней строки, где лежит само исключение.
func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}
