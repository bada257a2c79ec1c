package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/charlesng35/ftpstore/pkg/errors"
)

// Response defines the base API payload.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
}

// ErrorInfo holds error details to send to clients.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
}

// Success writes a JSON success response.
func Success(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, Response{
		Success: true,
		Data:    data,
	})
}

// Failure writes a JSON response flagged unsuccessful that still carries data, such
// as a write result whose original upload failed.
func Failure(c *gin.Context, err error, data interface{}) {
	storageErr := apperrors.FromError(orInternal(err))
	c.JSON(StatusFor(storageErr.Kind), Response{
		Success: false,
		Data:    data,
		Error:   infoFor(storageErr),
	})
}

// Error writes a JSON error response derived from a StorageError.
func Error(c *gin.Context, err error) {
	storageErr := apperrors.FromError(orInternal(err))
	c.JSON(StatusFor(storageErr.Kind), Response{
		Success: false,
		Error:   infoFor(storageErr),
	})
}

// StatusFor maps an error kind to the HTTP status reported to clients.
func StatusFor(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindConfiguration, apperrors.KindInvalid:
		return http.StatusBadRequest
	case apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindConnection, apperrors.KindClosed:
		return http.StatusServiceUnavailable
	case apperrors.KindTransfer, apperrors.KindDirectory, apperrors.KindThumbnail:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func infoFor(err *apperrors.StorageError) *ErrorInfo {
	return &ErrorInfo{
		Code:    err.Code,
		Message: err.Message,
		Kind:    string(err.Kind),
	}
}

func orInternal(err error) error {
	if err == nil {
		return apperrors.ErrInternal
	}
	return err
}
