package provider

import (
	"errors"
	"fmt"

	"github.com/aws/smithy-go"
)

// ServiceError is a failure reported by the remote service: a vendor error
// code such as "ThrottlingException" plus its message.
type ServiceError struct {
	Code    string
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// AsServiceError converts an SDK API error into a *ServiceError. Errors that
// do not carry a service error code are returned unchanged.
func AsServiceError(err error) error {
	if err == nil {
		return nil
	}
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return err
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return &ServiceError{
			Code:    apiErr.ErrorCode(),
			Message: apiErr.ErrorMessage(),
			Err:     err,
		}
	}
	return err
}
