package session

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/dalemusser/tripsync/internal/app/system/limits"
)

func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, limits.MaxSignInBody)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
