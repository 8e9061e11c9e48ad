package shared

import "errors"

var (
	// ErrObjectDoesNotExist indicates the target resource is absent or not
	// visible to the requester.
	ErrObjectDoesNotExist = errors.New("the object does not exist")
	// ErrNoPermission indicates the caller is authenticated but not entitled.
	ErrNoPermission = errors.New("you have no permission to access the required object")
	// ErrInvalidCredentials indicates a missing, malformed or expired credential.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrObjectAlreadyExists indicates a uniqueness conflict on create.
	ErrObjectAlreadyExists = errors.New("the object does exist already")
	// ErrInvalidData indicates the payload fails a structural expectation.
	ErrInvalidData = errors.New("the data sent is not valid")
	// ErrInvalidPatch indicates a malformed partial-update document.
	ErrInvalidPatch = errors.New("the json patch sent is not valid")
	// ErrEndpointNotImplemented indicates the operation is intentionally
	// unsupported for this resource/mode combination.
	ErrEndpointNotImplemented = errors.New("endpoint not implemented")
)
