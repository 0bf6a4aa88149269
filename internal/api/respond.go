package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"ratefeed/internal/broadcast"
	"ratefeed/internal/power"
	"ratefeed/internal/provider"
)

// validate checks decoded DTOs. Decimals are compared as float64 so
// numeric tags like gte=0 apply to them.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterCustomTypeFunc(func(f reflect.Value) any {
		if d, ok := f.Interface().(decimal.Decimal); ok {
			n, _ := d.Float64()
			return n
		}
		return nil
	}, decimal.Decimal{})
	return v
}

type errorResponse struct {
	Error string `json:"error"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// decodeBody reads one JSON object into dst and validates it.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return fmt.Errorf("request body exceeds %d bytes", mbe.Limit)
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return validate.Struct(dst)
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case provider.IsInvalidSymbol(err),
		errors.Is(err, power.ErrGroupExists),
		errors.Is(err, power.ErrInvalidPower),
		errors.Is(err, power.ErrEmptyGroup),
		errors.Is(err, broadcast.ErrBadInterval),
		errors.Is(err, provider.ErrUnknownSource):
		return http.StatusBadRequest
	case errors.Is(err, power.ErrNotFound),
		errors.Is(err, broadcast.ErrTemplateNotFound),
		errors.Is(err, broadcast.ErrJobNotFound):
		return http.StatusNotFound
	case provider.IsUnavailable(err), isParseError(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func isParseError(err error) bool {
	var pe *provider.QuoteParseError
	return errors.As(err, &pe)
}

func num(d decimal.Decimal) json.Number { return json.Number(d.String()) }

func fixed(d decimal.Decimal) json.Number { return json.Number(d.StringFixed(2)) }
