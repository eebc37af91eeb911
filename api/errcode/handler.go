package errcode

import (
	"encoding/json"
	"net/http"
)

// ServeJSON attempts to serve err in a JSON envelope. It sets the
// response status code from the error's descriptor (defaulting to 500)
// and writes the envelope body.
func ServeJSON(w http.ResponseWriter, err error) error {
	w.Header().Set("Content-Type", "application/json")
	var sc int

	switch errs := err.(type) {
	case Errors:
		if len(errs) < 1 {
			break
		}
		if coder, ok := errs[0].(ErrorCoder); ok {
			sc = coder.ErrorCode().Descriptor().HTTPStatusCode
		}
	case ErrorCoder:
		sc = errs.ErrorCode().Descriptor().HTTPStatusCode
		err = Errors{err}
	default:
		err = Errors{ErrorCodeUnknown.WithDetail(err.Error())}
	}

	if sc == 0 {
		sc = http.StatusInternalServerError
	}

	w.WriteHeader(sc)
	return json.NewEncoder(w).Encode(err)
}
