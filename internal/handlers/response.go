package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"companion-backend/internal/services"

	"go.uber.org/zap"
)

// Caller-visible error codes
const (
	CodeOK               = "00"
	CodeMalformedRequest = "10"
	CodeMissingParameter = "11"
	CodeInvalidValue     = "12"
	CodeNotFound         = "20"
	CodeDuplicateID      = "21"
	CodeUnauthorized     = "22"
	CodePersistence      = "100"
	CodeUpstream         = "101"
	CodeParse            = "102"
)

const (
	resultSuccess = "success"
	resultError   = "error"
	resultEnd     = "end"

	msgMissingJSON = "missing json in request"
)

const defaultMaxBodyBytes = 1 << 20

var errMalformed = errors.New(msgMissingJSON)

// envelope is embedded in every response body
type envelope struct {
	Result  string `json:"result"`
	Msg     string `json:"msg"`
	ErrCode string `json:"err_code"`
}

func ok(msg string) envelope {
	return envelope{Result: resultSuccess, Msg: msg, ErrCode: CodeOK}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// errorStatus maps a service error to its HTTP status and err_code
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, errMalformed):
		return http.StatusBadRequest, CodeMalformedRequest
	case errors.Is(err, services.ErrMissingParameter):
		return http.StatusBadRequest, CodeMissingParameter
	case errors.Is(err, services.ErrInvalidValue):
		return http.StatusBadRequest, CodeInvalidValue
	case errors.Is(err, services.ErrNotFound):
		return http.StatusUnauthorized, CodeNotFound
	case errors.Is(err, services.ErrDuplicateID):
		return http.StatusUnauthorized, CodeDuplicateID
	case errors.Is(err, services.ErrUnauthorized):
		return http.StatusUnauthorized, CodeUnauthorized
	case errors.Is(err, services.ErrUpstream):
		return http.StatusBadGateway, CodeUpstream
	case errors.Is(err, services.ErrParse):
		return http.StatusBadGateway, CodeParse
	default:
		return http.StatusInternalServerError, CodePersistence
	}
}

func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	status, code := errorStatus(err)

	msg := services.Message(err)
	var se *services.Error
	if code == CodePersistence && !errors.As(err, &se) {
		logger.Error("unhandled error", zap.Error(err))
		msg = "Error during commit"
	}

	writeJSON(w, status, envelope{Result: resultError, Msg: msg, ErrCode: code})
}

func missing(field string) error {
	return &services.Error{Kind: services.ErrMissingParameter, Msg: fmt.Sprintf("missing %s parameter", field)}
}

func invalid(msg string) error {
	return &services.Error{Kind: services.ErrInvalidValue, Msg: msg}
}

// decodeJSON reads a JSON object body into dest and checks that every
// required field is present and truthy. A missing field is reported by the
// first name in required order.
func decodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, dest any, required ...string) error {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return errMalformed
	}

	if maxBytes <= 0 {
		maxBytes = defaultMaxBodyBytes
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBytes))
	if err != nil {
		return errMalformed
	}

	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		return errMalformed
	}
	for _, name := range required {
		if !truthy(fields[name]) {
			return missing(name)
		}
	}

	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(dest); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return invalid(fmt.Sprintf("invalid %s value", typeErr.Field))
		}
		return invalid("invalid request body")
	}
	return nil
}

// truthy reports whether a decoded JSON value counts as supplied
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case float64:
		return t != 0
	case bool:
		return t
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	}
	return true
}

// flexInt accepts a JSON number or a numeric string that fits an INTEGER column
type flexInt int

func (n *flexInt) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		num = json.Number(strings.TrimSpace(s))
	}
	v, err := strconv.ParseInt(num.String(), 10, 32)
	if err != nil {
		return fmt.Errorf("not a 32-bit integer: %s", data)
	}
	*n = flexInt(v)
	return nil
}

func loggerOrNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
