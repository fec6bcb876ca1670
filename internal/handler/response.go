package handler

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"budget-tracker-backend/internal/database"
	"budget-tracker-backend/internal/extract"
	"budget-tracker-backend/internal/kv"
	"budget-tracker-backend/internal/logging"
	"budget-tracker-backend/internal/middleware"
	"budget-tracker-backend/internal/models"
)

// success writes a 200 envelope with the given payload fields.
func success(c *gin.Context, payload gin.H) {
	body := gin.H{"success": true}
	for k, v := range payload {
		body[k] = v
	}
	c.JSON(http.StatusOK, body)
}

func message(c *gin.Context, msg string) {
	success(c, gin.H{"message": msg})
}

// fail writes an error envelope. extra fields are merged into the body.
func fail(c *gin.Context, status int, msg string, extra gin.H) {
	body := gin.H{
		"success":    false,
		"error":      msg,
		"request_id": middleware.GetRequestID(c),
	}
	for k, v := range extra {
		body[k] = v
	}
	c.AbortWithStatusJSON(status, body)
}

// respondError maps err onto a status and envelope. what names the entity
// for not-found messages.
func (h *Handler) respondError(c *gin.Context, err error, what string) {
	var (
		verr  *models.ValidationError
		xerr  *extract.Error
		batch *database.BatchError
	)
	switch {
	case errors.As(err, &verr):
		fail(c, http.StatusBadRequest, verr.Message, nil)
		return
	case errors.Is(err, database.ErrNotFound):
		fail(c, http.StatusNotFound, what+" not found", nil)
		return
	case errors.As(err, &xerr):
		if xerr.Status >= http.StatusInternalServerError {
			h.logger.ErrorContext(c.Request.Context(), "extraction failed", "kind", xerr.Kind, logging.FieldError, err)
		}
		fail(c, xerr.Status, xerr.Error(), gin.H{"kind": xerr.Kind})
		return
	}

	_ = c.Error(err)
	h.logger.ErrorContext(c.Request.Context(), "request failed",
		logging.FieldMethod, c.Request.Method,
		logging.FieldPath, c.Request.URL.Path,
		logging.FieldError, err,
	)
	switch {
	case errors.As(err, &batch):
		ids := batch.IDs
		if ids == nil {
			ids = []int64{}
		}
		fail(c, http.StatusInternalServerError,
			fmt.Sprintf("batch insert stopped after %d of the transactions", len(ids)),
			gin.H{"transaction_ids": ids})
	case errors.Is(err, kv.ErrUnavailable):
		fail(c, http.StatusInternalServerError, "storage unavailable", nil)
	default:
		fail(c, http.StatusInternalServerError, "internal server error", nil)
	}
}

// pathID parses the :id parameter.
func pathID(c *gin.Context, what string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		fail(c, http.StatusBadRequest, "invalid "+what+" id", nil)
		return 0, false
	}
	return id, true
}

var registerTagName sync.Once

// useJSONFieldNames makes validator report fields by their JSON names.
func useJSONFieldNames() {
	registerTagName.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
}

// bindJSON decodes and validates the body, writing a 400 on failure.
func bindJSON(c *gin.Context, dst any) bool {
	useJSONFieldNames()
	if err := c.ShouldBindJSON(dst); err != nil {
		fail(c, http.StatusBadRequest, bindingMessage(err), nil)
		return false
	}
	return true
}

func bindingMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid JSON body: " + err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of %s", field, strings.ReplaceAll(fe.Param(), " ", ", ")))
		case "gte":
			msgs = append(msgs, field+" must not be negative")
		case "min":
			msgs = append(msgs, field+" must contain at least one item")
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s validation", field, fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}
