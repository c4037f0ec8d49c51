package modules

import "net/http"

const (
	codeInvalidParams = -32021
	codeNotFound      = -32022
	codeServerError   = -32025
)

type ModuleError struct {
	HTTPStatus int
	Code       int
	Message    string
	Data       interface{}
}

func (e *ModuleError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

var errModuleOffline = &ModuleError{HTTPStatus: http.StatusServiceUnavailable, Code: codeServerError, Message: "internal_error", Data: "module unavailable"}

func invalidParams(err error) *ModuleError {
	return &ModuleError{HTTPStatus: http.StatusBadRequest, Code: codeInvalidParams, Message: "invalid_params", Data: err.Error()}
}
