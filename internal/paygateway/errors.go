package paygateway

import (
	"errors"
	"fmt"
)

var ErrNotConfigured = errors.New("pay gateway secret key is not configured")

// GatewayError is any non-success answer from the provider
type GatewayError struct {
	Operation  string
	StatusCode int
	Code       int
	Message    string
	Extras     map[string]interface{}
}

func (e *GatewayError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("pay gateway %s failed with status %d", e.Operation, e.StatusCode)
	}
	return fmt.Sprintf("pay gateway %s failed with status %d (code %d): %s", e.Operation, e.StatusCode, e.Code, e.Message)
}

// AsGatewayError unwraps err into a *GatewayError if there is one
func AsGatewayError(err error) (*GatewayError, bool) {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr, true
	}
	return nil, false
}

type errorBody struct {
	ErrorCode    int                    `json:"error_code"`
	ErrorMessage string                 `json:"error_message"`
	Extras       map[string]interface{} `json:"extras"`
}
