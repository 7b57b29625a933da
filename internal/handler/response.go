package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"library-lending/internal/middleware"
	"library-lending/internal/model"
	"library-lending/pkg/apierror"
)

func writeSuccess(w http.ResponseWriter, status int, data any, meta *model.Meta) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: true,
		Data:    data,
		Meta:    meta,
	})
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	body := &model.APIError{
		Code:    "INTERNAL_ERROR",
		Message: "Unexpected server error",
	}

	var (
		apiErr   *apierror.APIError
		tokenErr *model.TokenError
		notFound *model.NotFoundError
		conflict *model.ConflictError
		authzErr *model.AuthorizationError
	)

	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatus
		body.Code = apiErr.Code
		body.Message = apiErr.Message
		body.Details = apiErr.Details
	case errors.As(err, &tokenErr):
		status = http.StatusUnauthorized
		body.Code = "INVALID_TOKEN"
		body.Message = "Invalid or expired token"
		body.Details = string(tokenErr.Reason)
	case errors.Is(err, model.ErrInvalidCredentials):
		status = http.StatusUnauthorized
		body.Code = "UNAUTHORIZED"
		body.Message = "Invalid credentials"
	case errors.As(err, &authzErr):
		if authzErr.Reason == model.InsufficientRole {
			status = http.StatusForbidden
			body.Code = "FORBIDDEN"
			body.Message = "Access denied"
		} else {
			status = http.StatusUnauthorized
			body.Code = "UNAUTHORIZED"
			body.Message = "Authentication required"
		}
	case errors.As(err, &notFound):
		status = http.StatusNotFound
		body.Code = "NOT_FOUND"
		body.Message = notFound.Error()
	case errors.As(err, &conflict):
		status = http.StatusConflict
		body.Code = "CONFLICT"
		body.Message = conflict.Error()
		body.Details = string(conflict.Reason)
	case errors.Is(err, model.ErrDuplicate):
		status = http.StatusConflict
		body.Code = "ALREADY_EXISTS"
		body.Message = "Resource already exists"
		body.Details = err.Error()
	case errors.Is(err, model.ErrInvalidInput):
		status = http.StatusBadRequest
		body.Code = "BAD_REQUEST"
		body.Message = "Invalid input"
		body.Details = err.Error()
	default:
		// Log unclassified errors so they are visible in container logs.
		slog.Error("unhandled error in writeError",
			"request_id", middleware.RequestIDFromContext(r.Context()),
			"error", err.Error(),
		)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: false,
		Error:   body,
	})
}
