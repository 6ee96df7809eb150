package handler

import (
	"errors"
	"net/http"
	"reflect"

	"github.com/printertechn/filaops-sub000/internal/apierror"
	"github.com/printertechn/filaops-sub000/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var validate = validator.New()

func init() {
	// Register decimal.Decimal as a numeric type so that validator tags like
	// min=0, gt=0, required work without panicking ("Bad field type decimal.Decimal").
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if v, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := v.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
}

// bindAndValidate binds JSON body and runs go-playground/validator tags.
// Returns false and writes the error response if validation fails —
// the caller should return immediately without writing another response.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid JSON: "+err.Error()))
		return false
	}
	if err := validate.Struct(req); err != nil {
		fields := make(map[string]string)
		for _, fe := range err.(validator.ValidationErrors) {
			fields[fe.Field()] = fe.Tag()
		}
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(fields))
		return false
	}
	return true
}

// pathUUID parses a :param as UUID, writing the 400 response itself on failure.
func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid id"))
		return uuid.Nil, false
	}
	return id, true
}

// respondServiceError maps the domain error taxonomy onto HTTP statuses.
// Conflict-class errors (stock, state machine, reservation lifecycle) are 409
// so clients know to re-read and retry; planning data errors are 422;
// anything unrecognized falls back to 400 with the service message.
func respondServiceError(c *gin.Context, err error) {
	var (
		insufficient *service.InsufficientStockError
		cyclic       *service.CyclicBomError
		missingBom   *service.MissingBomError
		consumed     *service.AlreadyConsumedError
		released     *service.AlreadyReleasedError
		invariant    *service.InvariantViolationError
		stale        *service.StaleStateError
		illegal      *service.InvalidTransitionError
		shortage     *service.ComponentShortageError
	)
	switch {
	case errors.As(err, &shortage):
		c.JSON(http.StatusConflict, gin.H{
			"detail":    shortage.Error(),
			"shortages": shortage.Shortages,
		})
	case errors.As(err, &insufficient),
		errors.As(err, &consumed),
		errors.As(err, &released),
		errors.As(err, &invariant),
		errors.As(err, &stale),
		errors.As(err, &illegal):
		c.JSON(http.StatusConflict, apierror.New(err.Error()))
	case errors.As(err, &cyclic), errors.As(err, &missingBom):
		c.JSON(http.StatusUnprocessableEntity, apierror.New(err.Error()))
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, apierror.New("not found"))
	default:
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
	}
}
