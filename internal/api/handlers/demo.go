package handlers

import (
	_ "embed"
	"net/http"
)

//go:embed demo.html
var demoHTML []byte

// Demo serves the self-contained test page for the chat endpoint.
func Demo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(demoHTML)
}
