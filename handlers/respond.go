package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"kyoolAPI/middleware"
	"kyoolAPI/services"
)

const requestTimeout = 5 * time.Second

var validate = validator.New(validator.WithRequiredStructEnabled())

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// respondWithServiceError maps a service error kind onto a status code. Store
// failures are logged and reported without their details.
func respondWithServiceError(w http.ResponseWriter, op string, err error) {
	var svcErr *services.Error
	if !errors.As(err, &svcErr) {
		log.Printf("%s: unexpected error: %v", op, err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	switch {
	case errors.Is(err, services.ErrNotFound):
		respondWithJSON(w, http.StatusNotFound, errorResponse{Error: svcErr.Message, Code: svcErr.Code})
	case errors.Is(err, services.ErrValidation), errors.Is(err, services.ErrConflict):
		log.Printf("%s: rejected: %v", op, err)
		respondWithJSON(w, http.StatusBadRequest, errorResponse{Error: svcErr.Message, Code: svcErr.Code})
	default:
		log.Printf("%s: %v", op, err)
		respondWithJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal server error", Code: svcErr.Code})
	}
}

// decodeAndValidate reads a JSON body into dst and checks its validate tags.
// On failure it writes a 400 and returns false.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := dec.Decode(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			respondWithError(w, http.StatusBadRequest, "Invalid field: "+verrs[0].Field())
			return false
		}
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// authedContext returns a timeout context and the authenticated user id. It
// writes a 401 and returns ok=false when there is no user.
func authedContext(w http.ResponseWriter, r *http.Request) (ctx context.Context, cancel context.CancelFunc, userID string, ok bool) {
	ctx, cancel = context.WithTimeout(r.Context(), requestTimeout)
	userID, ok = middleware.GetUserID(ctx)
	if !ok {
		cancel()
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return nil, nil, "", false
	}
	return ctx, cancel, userID, true
}

// queryInt parses an optional integer query parameter. Missing means def.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func respondOK(w http.ResponseWriter, message string) {
	respondWithJSON(w, http.StatusOK, map[string]string{"message": message})
}
