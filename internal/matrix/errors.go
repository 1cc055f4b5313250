package matrix

import (
	"errors"
	"fmt"
)

const (
	baseURLMissingMessageConstant         = "repository base url must be provided"
	statusErrorTemplateConstant           = "%s returned status %d"
	statusErrorWithBodyTemplateConstant   = "%s returned status %d: %s"
	operationErrorTemplateConstant        = "%s operation failed: %s"
	responseDecodingErrorTemplateConstant = "%s response decoding failed: %s"
	invalidInputErrorTemplateConstant     = "%s: %s"
)

// OperationName identifies a repository API call.
type OperationName string

// Operations supported by Client.
const (
	OperationGetProject      OperationName = "GetProject"
	OperationGetTree         OperationName = "GetTree"
	OperationGetItem         OperationName = "GetItem"
	OperationUploadFile      OperationName = "UploadFile"
	OperationUpdateItemField OperationName = "UpdateItemField"
)

// ErrBaseURLMissing indicates the client was built without a repository URL.
var ErrBaseURLMissing = errors.New(baseURLMissingMessageConstant)

// InvalidInputError surfaces validation issues for operation inputs.
type InvalidInputError struct {
	FieldName string
	Message   string
}

// Error describes the invalid input.
func (inputError InvalidInputError) Error() string {
	return fmt.Sprintf(invalidInputErrorTemplateConstant, inputError.FieldName, inputError.Message)
}

// OperationError wraps transport failures.
type OperationError struct {
	Operation OperationName
	Cause     error
}

// Error describes the operation failure.
func (operationError OperationError) Error() string {
	return fmt.Sprintf(operationErrorTemplateConstant, operationError.Operation, operationError.Cause)
}

// Unwrap exposes the underlying cause.
func (operationError OperationError) Unwrap() error {
	return operationError.Cause
}

// StatusError reports a non-success HTTP status returned by the repository.
type StatusError struct {
	Operation  OperationName
	StatusCode int
	Body       string
}

// Error describes the unexpected status.
func (statusError StatusError) Error() string {
	if len(statusError.Body) == 0 {
		return fmt.Sprintf(statusErrorTemplateConstant, statusError.Operation, statusError.StatusCode)
	}
	return fmt.Sprintf(statusErrorWithBodyTemplateConstant, statusError.Operation, statusError.StatusCode, statusError.Body)
}

// ResponseDecodingError indicates JSON decoding failures.
type ResponseDecodingError struct {
	Operation OperationName
	Cause     error
}

// Error describes the decoding failure.
func (decodingError ResponseDecodingError) Error() string {
	return fmt.Sprintf(responseDecodingErrorTemplateConstant, decodingError.Operation, decodingError.Cause)
}

// Unwrap exposes the underlying JSON error.
func (decodingError ResponseDecodingError) Unwrap() error {
	return decodingError.Cause
}
