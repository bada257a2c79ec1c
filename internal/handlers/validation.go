package handlers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "github.com/charlesng35/ftpstore/pkg/errors"
	"github.com/charlesng35/ftpstore/pkg/response"
	"github.com/charlesng35/ftpstore/pkg/validator"
)

// bindQuery decodes and validates the query string into dest. On failure it has
// already answered 400 and returns false.
func bindQuery[T any](c *gin.Context, dest *T) bool {
	err := c.ShouldBindQuery(dest)
	if err == nil {
		err = validator.ValidateStruct(dest)
	}
	if err == nil {
		return true
	}
	response.Error(c, apperrors.NewBadRequest(describeInvalid(err)))
	return false
}

// describeInvalid turns validation failures into a client message naming each
// query parameter. Binding errors get a generic message.
func describeInvalid(err error) string {
	var failures validator.ValidationErrors
	if !errors.As(err, &failures) || len(failures) == 0 {
		return "invalid query parameters"
	}

	msgs := make([]string, len(failures))
	for i, f := range failures {
		// dive reports list elements as "size[0]".
		param, _, _ := strings.Cut(f.Field, "[")
		switch f.Tag {
		case "required":
			msgs[i] = fmt.Sprintf("%s must not be empty", param)
		default:
			msgs[i] = fmt.Sprintf("%s is invalid (%s)", param, strings.TrimSuffix(f.Tag+"="+f.Param, "="))
		}
	}
	return strings.Join(msgs, "; ")
}
