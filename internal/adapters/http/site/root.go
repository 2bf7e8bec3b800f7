// Package site serves the embedded browser upload page.
package site

import (
	"context"
	"net/http"
)

// Register attaches the upload page to mux at exactly "/". Other unmatched
// paths keep the mux's 404.
func Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	mux.Handle("GET /{$}", http.FileServer(FS()))
}
