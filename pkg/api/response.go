package api

import "errors"

// Response is the uniform request/response envelope:
//
//	{"ok": true, "data": ...}
//	{"ok": false, "error": {"code": "...", "message": "..."}}
type Response struct {
	OK    bool   `json:"ok"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// Respond wraps a successful result.
func Respond(data any) Response {
	return Response{OK: true, Data: data}
}

// Fail wraps an error. Errors that are not *Error are reported as INTERNAL.
func Fail(err error) Response {
	var e *Error
	if !errors.As(err, &e) {
		e = Internal(err)
	}
	return Response{OK: false, Error: e}
}
