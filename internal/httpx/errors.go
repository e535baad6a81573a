package httpx

import (
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"

	"github.com/MikeMC777/ecom-points/internal/apperr"
)

// ErrorBody represents a standard error in JSON.
type ErrorBody struct {
	Error string `json:"error"`
}

// ValidationBody lists every invalid field of a request.
type ValidationBody struct {
	Errors []apperr.Issue `json:"errors"`
}

// WriteError maps an engine error to its status code and body. Unknown errors
// are logged and hidden behind a generic 500.
func WriteError(c *gin.Context, err error) {
	var (
		verr  *apperr.ValidationError
		nerr  *apperr.NotFoundError
		serr  *apperr.InsufficientStockError
		perr  *apperr.InsufficientPointsError
		cerr  *apperr.ConflictError
		vErrs validator.ValidationErrors
	)
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, ValidationBody{Errors: verr.Issues})
	case errors.As(err, &vErrs):
		c.JSON(http.StatusBadRequest, ValidationBody{Errors: issuesFrom(vErrs)})
	case errors.As(err, &nerr):
		c.JSON(http.StatusNotFound, ErrorBody{Error: nerr.Error()})
	case errors.As(err, &serr):
		c.JSON(http.StatusBadRequest, ErrorBody{Error: serr.Error()})
	case errors.As(err, &perr):
		c.JSON(http.StatusBadRequest, ErrorBody{Error: perr.Error()})
	case errors.As(err, &cerr):
		c.JSON(http.StatusConflict, ErrorBody{Error: cerr.Error()})
	default:
		rid, _ := c.Get(ctxRequestID)
		log.WithError(err).WithField("rid", rid).Error("[http] unexpected error")
		c.JSON(http.StatusInternalServerError, ErrorBody{Error: "internal server error"})
	}
}

// BindJSON decodes and validates the request body into dst. On failure it
// writes the 400 response and returns false.
func BindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		var vErrs validator.ValidationErrors
		if errors.As(err, &vErrs) {
			c.JSON(http.StatusBadRequest, ValidationBody{Errors: issuesFrom(vErrs)})
			return false
		}
		c.JSON(http.StatusBadRequest, ValidationBody{Errors: []apperr.Issue{{Path: "body", Msg: "invalid JSON: " + err.Error()}}})
		return false
	}
	return true
}

// BindQuery decodes and validates query parameters into dst. On failure it
// writes the 400 response and returns false.
func BindQuery(c *gin.Context, dst any) bool {
	if err := c.ShouldBindQuery(dst); err != nil {
		var vErrs validator.ValidationErrors
		if errors.As(err, &vErrs) {
			c.JSON(http.StatusBadRequest, ValidationBody{Errors: issuesFrom(vErrs)})
			return false
		}
		c.JSON(http.StatusBadRequest, ValidationBody{Errors: []apperr.Issue{{Path: "query", Msg: err.Error()}}})
		return false
	}
	return true
}

// PathID parses a positive integer path parameter.
func PathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, ValidationBody{Errors: []apperr.Issue{{Path: name, Msg: "must be a positive integer"}}})
		return 0, false
	}
	return id, true
}

func issuesFrom(errs validator.ValidationErrors) []apperr.Issue {
	out := make([]apperr.Issue, 0, len(errs))
	for _, fe := range errs {
		out = append(out, apperr.Issue{Path: fieldPath(fe.Namespace()), Msg: message(fe)})
	}
	return out
}

// fieldPath drops the struct name: "PlaceOrderRequest.items[0].quantity" -> "items[0].quantity".
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "gt":
		return "must be greater than " + fe.Param()
	case "min":
		if fe.Kind() == reflect.Slice {
			return "must contain at least " + fe.Param() + " item(s)"
		}
		if fe.Kind() == reflect.String {
			return "must be at least " + fe.Param() + " characters"
		}
		return "must be greater than or equal to " + fe.Param()
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "max":
		if fe.Kind() == reflect.String {
			return "must be at most " + fe.Param() + " characters"
		}
		return "must be less than or equal to " + fe.Param()
	default:
		return "failed on " + fe.Tag()
	}
}

var registerOnce sync.Once

// UseJSONFieldNames makes validation paths use json tag names.
func UseJSONFieldNames() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "" {
				name = strings.SplitN(f.Tag.Get("form"), ",", 2)[0]
			}
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})
	})
}
