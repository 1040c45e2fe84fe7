package endpoint

import (
	"fmt"
	"strings"
)

// Method is the closed set of HTTP methods an endpoint permission can cover.
type Method string

const (
	MethodGet     Method = "GET"
	MethodPost    Method = "POST"
	MethodPut     Method = "PUT"
	MethodPatch   Method = "PATCH"
	MethodDelete  Method = "DELETE"
	MethodHead    Method = "HEAD"
	MethodOptions Method = "OPTIONS"
)

// ParseMethod converts a request or stored method string into a Method.
func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.ToUpper(strings.TrimSpace(s))); m {
	case MethodGet, MethodPost, MethodPut, MethodPatch, MethodDelete, MethodHead, MethodOptions:
		return m, nil
	default:
		return "", fmt.Errorf("%w: unknown http method %q", ErrInvalidInput, s)
	}
}

// IsReadOnly reports whether the method never mutates server state.
func (m Method) IsReadOnly() bool {
	switch m {
	case MethodGet, MethodHead, MethodOptions:
		return true
	default:
		return false
	}
}

// IsWrite reports whether the method is a mutating operation.
func (m Method) IsWrite() bool {
	switch m {
	case MethodPost, MethodPut, MethodPatch, MethodDelete:
		return true
	default:
		return false
	}
}

func (m Method) valid() bool {
	switch m {
	case MethodGet, MethodPost, MethodPut, MethodPatch, MethodDelete, MethodHead, MethodOptions:
		return true
	default:
		return false
	}
}
