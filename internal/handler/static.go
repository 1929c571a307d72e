package handler

import (
	"net/http"

	"github.com/klauspost/compress/gzhttp"
)

// Static serves files from dir, gzip-compressed when the client accepts it.
func Static(dir string) http.Handler {
	return gzhttp.GzipHandler(http.FileServer(http.Dir(dir)))
}
