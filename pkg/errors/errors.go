package errors

import (
	"errors"
	"fmt"
)

// Kind classifies storage failures by how callers are expected to react to them.
type Kind string

const (
	// KindConfiguration is fatal and surfaced at construction.
	KindConfiguration Kind = "configuration"
	// KindConnection is fatal and surfaced at construction.
	KindConnection Kind = "connection"
	// KindTransfer is recoverable per call.
	KindTransfer Kind = "transfer"
	// KindDirectory is recoverable per call; the remote tree may be partially created.
	KindDirectory Kind = "directory"
	// KindThumbnail only affects derived variants.
	KindThumbnail Kind = "thumbnail"
	// KindClosed is returned once the adapter has been torn down.
	KindClosed Kind = "closed"
	// KindInvalid marks a malformed request to the HTTP API.
	KindInvalid Kind = "invalid"
	// KindNotFound marks an unknown HTTP route.
	KindNotFound Kind = "not_found"
	// KindInternal covers everything else.
	KindInternal Kind = "internal"
)

// StorageError provides a structured error carrying a stable code and failure kind.
type StorageError struct {
	Code     string
	Message  string
	Kind     Kind
	Internal error
}

func (e *StorageError) Error() string {
	if e == nil {
		return "<nil>"
	}

	if e.Internal != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	}

	return e.Message
}

// Unwrap exposes the internal error for errors.Is / errors.As compatibility.
func (e *StorageError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Internal
}

// Is reports a match when target is a StorageError of the same kind and code,
// so wrapped copies still match the package sentinels.
func (e *StorageError) Is(target error) bool {
	if e == nil {
		return false
	}
	var other *StorageError
	if !errors.As(target, &other) || other == nil {
		return false
	}
	return e.Kind == other.Kind && e.Code == other.Code
}

// WithInternal returns a copy of the StorageError with an attached internal error.
func (e *StorageError) WithInternal(err error) *StorageError {
	if e == nil {
		return nil
	}

	cpy := *e
	cpy.Internal = err
	return &cpy
}

// WithMessage returns a copy of the StorageError with a more specific message.
func (e *StorageError) WithMessage(format string, args ...any) *StorageError {
	if e == nil {
		return nil
	}

	cpy := *e
	cpy.Message = fmt.Sprintf(format, args...)
	return &cpy
}

// Sentinel errors shared by the storage packages.
var (
	ErrConfiguration = &StorageError{
		Code:    "CONFIGURATION_ERROR",
		Message: "Storage configuration is invalid",
		Kind:    KindConfiguration,
	}

	ErrConnection = &StorageError{
		Code:    "CONNECTION_ERROR",
		Message: "Unable to establish remote session",
		Kind:    KindConnection,
	}

	ErrTransfer = &StorageError{
		Code:    "TRANSFER_ERROR",
		Message: "Remote transfer failed",
		Kind:    KindTransfer,
	}

	ErrDirectory = &StorageError{
		Code:    "DIRECTORY_ERROR",
		Message: "Remote directory could not be provisioned",
		Kind:    KindDirectory,
	}

	ErrThumbnail = &StorageError{
		Code:    "THUMBNAIL_ERROR",
		Message: "Thumbnail variant could not be stored",
		Kind:    KindThumbnail,
	}

	ErrClosed = &StorageError{
		Code:    "STORAGE_CLOSED",
		Message: "Storage adapter is closed",
		Kind:    KindClosed,
	}

	ErrInvalidRequest = &StorageError{
		Code:    "INVALID_REQUEST",
		Message: "Request is invalid",
		Kind:    KindInvalid,
	}

	ErrRouteNotFound = &StorageError{
		Code:    "ROUTE_NOT_FOUND",
		Message: "Route not found",
		Kind:    KindNotFound,
	}

	ErrInternal = &StorageError{
		Code:    "INTERNAL_ERROR",
		Message: "Internal storage error",
		Kind:    KindInternal,
	}
)

// New builds a new storage error with the provided metadata.
func New(code, message string, kind Kind) *StorageError {
	return &StorageError{
		Code:    code,
		Message: message,
		Kind:    kind,
	}
}

// NewBadRequest returns an ErrInvalidRequest carrying message.
func NewBadRequest(message string) *StorageError {
	return ErrInvalidRequest.WithMessage("%s", message)
}

// Wrap turns any error into an internal StorageError while keeping the original error.
func Wrap(err error, message string) *StorageError {
	return &StorageError{
		Code:     ErrInternal.Code,
		Message:  message,
		Kind:     KindInternal,
		Internal: err,
	}
}

// FromError converts a generic error into a StorageError, defaulting to ErrInternal.
func FromError(err error) *StorageError {
	if err == nil {
		return nil
	}

	var storageErr *StorageError
	if errors.As(err, &storageErr) {
		return storageErr
	}

	return ErrInternal.WithInternal(err)
}

// KindOf returns the kind of the first StorageError in err's chain, or KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return FromError(err).Kind
}
