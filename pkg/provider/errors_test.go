package provider

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aws/smithy-go"
)

func TestAsServiceError(t *testing.T) {
	apiErr := &smithy.GenericAPIError{Code: "ThrottlingException", Message: "Rate exceeded"}
	wrapped := &smithy.OperationError{ServiceID: "Bedrock Runtime", OperationName: "InvokeModel", Err: apiErr}

	err := AsServiceError(wrapped)

	var svcErr *ServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("AsServiceError() = %T, want *ServiceError", err)
	}
	if svcErr.Code != "ThrottlingException" || svcErr.Message != "Rate exceeded" {
		t.Errorf("ServiceError = %+v", svcErr)
	}
	if !errors.Is(err, wrapped) {
		t.Error("ServiceError should unwrap to the original error")
	}
	if svcErr.Error() != "ThrottlingException: Rate exceeded" {
		t.Errorf("Error() = %q", svcErr.Error())
	}
}

func TestAsServiceError_Passthrough(t *testing.T) {
	plain := errors.New("connection reset")
	if got := AsServiceError(plain); got != plain {
		t.Errorf("AsServiceError() = %v, want unchanged error", got)
	}
	if AsServiceError(nil) != nil {
		t.Error("AsServiceError(nil) should be nil")
	}

	existing := fmt.Errorf("wrapped: %w", &ServiceError{Code: "X", Message: "y"})
	if got := AsServiceError(existing); got != existing {
		t.Errorf("AsServiceError() should not rewrap an existing ServiceError")
	}
}
