package validator

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/errors"
	"go.vocdoni.io/dvote/log"
)

// maxBodyBytes bounds the JSON bodies read by InputValidator.
const maxBodyBytes = 1 << 20

// keys for storing models in context
type (
	ModelKey          struct{}
	ValidatedModelKey struct{}
)

// AddModelMiddleware adds the provided model to the request context.
func (v *Validator) AddModelMiddleware(model any) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), ModelKey{}, model)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// InputValidator validates the JSON request body against the model stored in
// the context. If successful, a pointer to the decoded instance is added to
// the context for downstream handlers.
func (v *Validator) InputValidator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// only validate for methods that may have a body
		if r.Method == http.MethodGet || r.Method == http.MethodHead ||
			r.Method == http.MethodOptions || r.Method == http.MethodDelete {
			next.ServeHTTP(w, r)
			return
		}
		if ct := r.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
			next.ServeHTTP(w, r)
			return
		}
		model := r.Context().Value(ModelKey{})
		if model == nil {
			next.ServeHTTP(w, r)
			return
		}
		instance := reflect.New(reflect.TypeOf(model)).Interface()

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			errors.ErrMalformedBody.WithErr(err).Write(w)
			return
		}
		if err := json.Unmarshal(body, instance); err != nil {
			errors.ErrMalformedBody.WithErr(err).Write(w)
			return
		}
		if err := v.Check(instance); err != nil {
			log.Debugw("validation errors", "errors", err.Error())
			errors.ErrInvalidData.WithErr(err).WithData(err).Write(w)
			return
		}

		ctx := context.WithValue(r.Context(), ValidatedModelKey{}, instance)
		// restore the body for downstream use
		r.Body = io.NopCloser(bytes.NewBuffer(body))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetValidatedModel retrieves the validated model from the context.
func GetValidatedModel(ctx context.Context) (any, bool) {
	model := ctx.Value(ValidatedModelKey{})
	return model, model != nil
}
