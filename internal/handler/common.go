package handler

import (
	"errors"
	"fmt"
	"strings"

	"garmentflow/internal/middleware"
	"garmentflow/internal/model"
	"garmentflow/internal/service"
	"garmentflow/pkg/apperror"
	"garmentflow/pkg/pagination"
	"garmentflow/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// RegisterValidators adds the domain tags used in request bindings
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("unexpected validator engine")
	}
	rules := map[string]validator.Func{
		"process_name": func(fl validator.FieldLevel) bool {
			return model.ProcessName(fl.Field().String()).IsValid()
		},
		"stock_tx_type": func(fl validator.FieldLevel) bool {
			return model.ValidTxType(fl.Field().String())
		},
		"stock_kind": func(fl validator.FieldLevel) bool {
			return model.StockItemKind(fl.Field().String()).Valid()
		},
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("register %s: %w", tag, err)
		}
	}
	return nil
}

// bindJSON binds the body and writes the error envelope on failure. Missing
// required fields are reported as MISSING_FIELD, anything else as INVALID_INPUT.
func bindJSON(c *gin.Context, req interface{}) bool {
	err := c.ShouldBindJSON(req)
	if err == nil {
		return true
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		missing := make([]string, 0)
		invalid := make([]string, 0)
		for _, fe := range verrs {
			if fe.Tag() == "required" {
				missing = append(missing, fe.Field())
			} else {
				invalid = append(invalid, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
			}
		}
		if len(missing) > 0 {
			response.Fail(c, apperror.Validation(apperror.CodeMissingField, "missing required fields: %s", strings.Join(missing, ", ")))
			return false
		}
		response.Fail(c, apperror.Validation(apperror.CodeInvalidInput, "invalid fields: %s", strings.Join(invalid, ", ")))
		return false
	}

	response.BadRequest(c, "Invalid request payload: "+err.Error())
	return false
}

// actorFrom reads the caller stored by the auth middleware
func actorFrom(c *gin.Context) service.Actor {
	return service.Actor{
		UserID:   c.GetString(middleware.CtxUserID),
		Username: c.GetString(middleware.CtxUsername),
		Role:     c.GetString(middleware.CtxUserRole),
	}
}

// orActor falls back to the caller's username when a body omits who acted
func orActor(c *gin.Context, name string) string {
	if strings.TrimSpace(name) != "" {
		return name
	}
	return c.GetString(middleware.CtxUsername)
}

// paged writes a list page in the shared envelope
func paged(c *gin.Context, key string, items interface{}, total int64, p pagination.Params) {
	response.OK(c, map[string]interface{}{
		key:     items,
		"total": total,
		"page":  p.Page,
		"limit": p.Limit,
	})
}
