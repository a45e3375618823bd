package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytlearn/internal/shared"
	"github.com/desertthunder/ytlearn/internal/tasks"
	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 64 << 10

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type completeRequest struct {
	UserID    string `json:"userId" validate:"required,max=128"`
	VideoID   string `json:"videoId" validate:"required,max=64"`
	Completed *bool  `json:"completed" validate:"required"`
}

type positionRequest struct {
	VideoID     string   `json:"videoId" validate:"required,max=64"`
	CurrentTime *float64 `json:"currentTime" validate:"required,gte=0"`
}

type playlistRequest struct {
	PlaylistID string `json:"playlistId" validate:"required,max=128"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error  string   `json:"error"`
	Fields []string `json:"fields,omitempty"`
}

// API holds the HTTP handlers.
type API struct {
	engine *tasks.Engine
	logger *log.Logger
}

// CompleteVideo handles POST /api/video/complete.
func (a *API) CompleteVideo(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if !a.decode(w, r, &req) {
		return
	}

	record, err := a.engine.Completion.CompleteVideo(r.Context(), principal(r), req.UserID, req.VideoID, *req.Completed)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// SavePosition handles POST /api/video/position.
func (a *API) SavePosition(w http.ResponseWriter, r *http.Request) {
	var req positionRequest
	if !a.decode(w, r, &req) {
		return
	}

	record, err := a.engine.Playlists.SavePosition(r.Context(), principal(r), req.VideoID, *req.CurrentTime)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// LinkPlaylist handles POST /api/setup/playlist.
func (a *API) LinkPlaylist(w http.ResponseWriter, r *http.Request) {
	var req playlistRequest
	if !a.decode(w, r, &req) {
		return
	}

	result, err := a.engine.Playlists.LinkPlaylist(r.Context(), principal(r), req.PlaylistID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Dashboard handles GET /api/dashboard.
func (a *API) Dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := a.engine.Dashboard.Load(r.Context(), principal(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// Ledger handles GET /api/ledger. The optional userId query parameter must match the principal.
func (a *API) Ledger(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	if p == "" {
		a.fail(w, r, shared.ErrUnauthorized)
		return
	}

	userID := r.URL.Query().Get("userId")
	if userID == "" {
		d, err := a.engine.Dashboard.Load(r.Context(), p)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, d.User)
		return
	}

	user, err := a.engine.Inactivity.CheckInactivityDecay(r.Context(), p, userID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Health handles GET /health.
func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func principal(r *http.Request) string {
	return PrincipalFrom(r.Context()).OrElse("")
}

// decode reads and validates a JSON body, writing a 400 and returning false on failure.
func (a *API) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("malformed request body: %v", err))
		return false
	}

	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fieldMessage(fe))
			}
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: shared.ErrInvalidInput.Error(), Fields: fields})
			return false
		}
		a.fail(w, r, err)
		return false
	}
	return true
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "max":
		return fe.Field() + " must be at most " + fe.Param() + " characters"
	case "gte":
		return fe.Field() + " must be at least " + fe.Param()
	default:
		return fe.Field() + " is invalid"
	}
}

// fail maps err onto a status code. Unexpected failures are logged and hidden from the client.
func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		a.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}

	msg := err.Error()
	switch status {
	case http.StatusUnauthorized:
		msg = shared.ErrUnauthorized.Error()
	case http.StatusServiceUnavailable:
		msg = shared.ErrTransientStore.Error()
	case http.StatusInternalServerError:
		msg = "internal server error"
	}
	writeError(w, status, msg)
}

// StatusFor returns the HTTP status for an error of the taxonomy.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, shared.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrNotFound), errors.Is(err, shared.ErrPlaylistNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrSourceRequest):
		return http.StatusBadGateway
	case errors.Is(err, shared.ErrTransientStore):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
