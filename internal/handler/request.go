package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"library-lending/internal/model"
	"library-lending/pkg/apierror"
)

const maxBodyBytes = 1 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

// decodeJSON reads a single JSON object into dst and runs its validate tags.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	defer r.Body.Close()

	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apierror.BadRequest("request body is required", "")
		}
		return apierror.BadRequest("invalid JSON body", "")
	}

	if err := validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			return apierror.Validation(describeValidation(fieldErrs))
		}
		return apierror.Validation(err.Error())
	}
	return nil
}

func describeValidation(errs validator.ValidationErrors) string {
	parts := make([]string, 0, len(errs))
	for _, fe := range errs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			parts = append(parts, field+" is required")
		case "email":
			parts = append(parts, field+" must be a valid email")
		default:
			parts = append(parts, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apierror.BadRequest(name+" must be a positive integer", raw)
	}
	return id, nil
}

func queryID(r *http.Request, name string) (int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, apierror.BadRequest(name+" is required", name)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apierror.BadRequest(name+" must be a positive integer", raw)
	}
	return id, nil
}

// pageFromQuery reads page, limit and sort. sort takes "field" or "field,desc".
func pageFromQuery(r *http.Request) model.Page {
	query := r.URL.Query()
	page := model.Page{}
	page.Number, _ = strconv.Atoi(query.Get("page"))
	page.Limit, _ = strconv.Atoi(query.Get("limit"))

	sort, direction, _ := strings.Cut(query.Get("sort"), ",")
	page.Sort = strings.TrimSpace(sort)
	page.Desc = strings.EqualFold(strings.TrimSpace(direction), "desc")
	return page.Normalize()
}
