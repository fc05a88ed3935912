package server

import (
	"context"
	"io"
	"net/http"

	"github.com/elnormous/contenttype"
	"github.com/goccy/go-json"
	"github.com/invopop/jsonschema"
	"github.com/labstack/echo/v4"

	"github.com/reoring/ccv"
	"github.com/reoring/ccv/schema"
	"github.com/reoring/ccv/source"
	"github.com/reoring/ccv/validator"
)

// ValidateRequest is the body of the validate endpoints.
type ValidateRequest struct {
	Format  ccv.Format `json:"format" jsonschema:"enum=yaml,enum=json"`
	Payload string     `json:"payload" jsonschema:"description=The document to validate"`
}

// RequestSchema returns the JSON Schema of ValidateRequest reflected from the
// Go type.
func RequestSchema() ([]byte, error) {
	return json.Marshal(jsonschema.Reflect(&ValidateRequest{}))
}

// compileRequestSchema runs the reflected request schema through the same
// resolver and compiler as the served schemas.
func compileRequestSchema() (*schema.Node, error) {
	raw, err := RequestSchema()
	if err != nil {
		return nil, err
	}
	res, err := schema.Load(raw)
	if err != nil {
		return nil, err
	}
	return res.Root, nil
}

var jsonMediaType = contenttype.NewMediaType("application/json")

// ctxKeyRequest is a typed context key for storing the decoded request.
type ctxKeyRequest struct{}

// ContextWithRequest attaches a decoded ValidateRequest to the context.
func ContextWithRequest(ctx context.Context, req ValidateRequest) context.Context {
	return context.WithValue(ctx, ctxKeyRequest{}, req)
}

// RequestFromContext retrieves the ValidateRequest stored by
// ValidateEnvelope.
func RequestFromContext(ctx context.Context) (ValidateRequest, bool) {
	v, ok := ctx.Value(ctxKeyRequest{}).(ValidateRequest)
	return v, ok
}

// ErrorPayload shapes messages for JSON error responses.
func ErrorPayload(msgs ...string) map[string][]string {
	return map[string][]string{"errors": msgs}
}

// ValidateEnvelope checks that the request is JSON and that its body
// conforms to root, then stores the decoded ValidateRequest in the context.
// Violations answer 415 or 400 without calling next.
func ValidateEnvelope(root *schema.Node) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctype, err := contenttype.GetMediaType(c.Request())
			if err != nil || !ctype.Matches(jsonMediaType) {
				return c.JSON(http.StatusUnsupportedMediaType, ErrorPayload("content-type must be application/json"))
			}
			body, err := io.ReadAll(c.Request().Body)
			if err != nil {
				return err
			}
			res, err := source.Parse(body, source.FormatJSON)
			if err != nil {
				return c.JSON(http.StatusBadRequest, ErrorPayload(err.Error()))
			}
			if r := validator.Validate(res.Value, root); !r.Valid() {
				msgs := make([]string, len(r.Errors))
				for i, d := range r.Errors {
					msgs[i] = d.String()
				}
				return c.JSON(http.StatusBadRequest, ErrorPayload(msgs...))
			}
			var req ValidateRequest
			if err := json.Unmarshal(body, &req); err != nil {
				return c.JSON(http.StatusBadRequest, ErrorPayload(err.Error()))
			}
			ctx := ContextWithRequest(c.Request().Context(), req)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}
