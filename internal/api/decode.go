package api

import (
	"io"
	"net/http"

	"github.com/CarbonNeuron/carbon-files-sub000/internal/xlog"
)

func decodeJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	err := jsonc.NewDecoder(r.Body).Decode(v)
	if err == io.EOF {
		return nil
	}
	return err
}

func logZipErr(err error) {
	xlog.Warningf("api: zip stream aborted: %v", err)
}
