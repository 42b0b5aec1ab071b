// Package httputil holds the JSON plumbing shared by the billing API
// handlers: response writers with a uniform error envelope, body decoding,
// and path/query parameter parsing.
package httputil

import (
	"encoding/json"
	"net/http"
)

// errorBody is the envelope every error response uses. Success responses
// carry the resource itself with no wrapper.
type errorBody struct {
	Error string `json:"error"`
}

// WriteJSON writes data as a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a 200 OK JSON response
func WriteSuccess(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, data)
}

// WriteCreated writes a 201 Created JSON response
func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusCreated, data)
}

// WriteNoContent writes a 204 No Content response
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func writeError(w http.ResponseWriter, status int, message string) {
	// encode errors into the body even when WriteJSON's own encode fails;
	// the status line has already been committed either way
	_ = WriteJSON(w, status, errorBody{Error: message})
}

// WriteBadRequest writes a 400 error response
func WriteBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, message)
}

// WriteUnauthorized writes a 401 error response
func WriteUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, message)
}

// WriteForbidden writes a 403 error response
func WriteForbidden(w http.ResponseWriter, message string) {
	writeError(w, http.StatusForbidden, message)
}

// WriteNotFoundError writes a 404 error response
func WriteNotFoundError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, message)
}

// WriteConflict writes a 409 error response
func WriteConflict(w http.ResponseWriter, message string) {
	writeError(w, http.StatusConflict, message)
}

// WriteInternalError writes a 500 error response carrying err's message
func WriteInternalError(w http.ResponseWriter, err error) {
	writeError(w, http.StatusInternalServerError, err.Error())
}
