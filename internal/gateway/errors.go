package gateway

import (
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"

	"hangoutsync/internal/domain"
	"hangoutsync/internal/functions"
)

func transportError(op string, err error) error {
	return &domain.RemoteError{Op: op, Code: "transport", Message: err.Error(), Err: err}
}

func responseError(op string, resp *resty.Response) *domain.RemoteError {
	rerr := &domain.RemoteError{Op: op, Code: fmt.Sprintf("http_%d", resp.StatusCode()), Message: resp.Status()}
	if env, ok := resp.Error().(*errorEnvelope); ok && env.Error.Code != "" {
		rerr.Code = env.Error.Code
		rerr.Message = env.Error.Message
	}
	switch resp.StatusCode() {
	case http.StatusUnauthorized:
		rerr.Err = domain.ErrUnauthorized
	case http.StatusForbidden:
		rerr.Err = domain.ErrForbidden
	case http.StatusNotFound:
		rerr.Err = domain.ErrNotFound
	case http.StatusConflict:
		rerr.Err = domain.ErrAlreadyExists
	}
	return rerr
}

func badResponse(op, msg string) error {
	return &domain.RemoteError{Op: op, Code: "bad_response", Message: msg}
}

func requireSuccess(op string, res functions.SuccessResponse) error {
	if !res.Success {
		return &domain.RemoteError{Op: op, Code: "unsuccessful", Message: "server reported failure"}
	}
	return nil
}
