package issue

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/k1networth/issuetracker-lite/internal/shared/httpx"
	"github.com/k1networth/issuetracker-lite/internal/shared/requestid"
)

const (
	maxBodyBytes = 1 << 20
	routeIssues  = "/api/issues/{project}"
)

type Handler struct {
	Log     *slog.Logger
	Service *Service
}

// Register mounts the issue collection routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.Handle("GET "+routeIssues, httpx.WithRoute(routeIssues, http.HandlerFunc(h.ListIssues)))
	mux.Handle("POST "+routeIssues, httpx.WithRoute(routeIssues, http.HandlerFunc(h.CreateIssue)))
	mux.Handle("PUT "+routeIssues, httpx.WithRoute(routeIssues, http.HandlerFunc(h.UpdateIssue)))
	mux.Handle("DELETE "+routeIssues, httpx.WithRoute(routeIssues, http.HandlerFunc(h.DeleteIssue)))
	mux.Handle(routeIssues, httpx.WithRoute(routeIssues, http.HandlerFunc(h.methodNotAllowed)))
}

func (h *Handler) ListIssues(w http.ResponseWriter, r *http.Request) {
	project := r.PathValue("project")

	out, err := h.Service.List(r.Context(), project, FilterFromQuery(r.URL.Query()))
	if err != nil {
		h.writeServiceError(w, r, err, "", "issue not found")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) CreateIssue(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := decodeBody(w, r, &req, func(v url.Values) {
		req = CreateRequest{
			Title:      v.Get("issue_title"),
			Text:       v.Get("issue_text"),
			CreatedBy:  v.Get("created_by"),
			AssignedTo: v.Get("assigned_to"),
			StatusText: v.Get("status_text"),
		}
	}); err != nil {
		writeBodyError(w, r, err)
		return
	}

	created, err := h.Service.Create(r.Context(), r.PathValue("project"), req)
	if err != nil {
		h.writeServiceError(w, r, err, "", "issue not found")
		return
	}
	writeJSON(w, http.StatusOK, created)
}

func (h *Handler) UpdateIssue(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if err := decodeBody(w, r, &req, func(v url.Values) {
		req = UpdateRequest{
			ID:         v.Get("_id"),
			Title:      formValue(v, "issue_title"),
			Text:       formValue(v, "issue_text"),
			CreatedBy:  formValue(v, "created_by"),
			AssignedTo: formValue(v, "assigned_to"),
			StatusText: formValue(v, "status_text"),
		}
		if s := formValue(v, "open"); s != nil {
			req.Open = &OpenValue{Raw: *s}
		}
	}); err != nil {
		writeBodyError(w, r, err)
		return
	}

	conf, err := h.Service.Update(r.Context(), r.PathValue("project"), req)
	if err != nil {
		h.writeServiceError(w, r, err, req.ID, "could not update")
		return
	}
	writeJSON(w, http.StatusOK, conf)
}

func (h *Handler) DeleteIssue(w http.ResponseWriter, r *http.Request) {
	var req DeleteRequest
	if err := decodeBody(w, r, &req, func(v url.Values) {
		req = DeleteRequest{ID: v.Get("_id")}
	}); err != nil {
		writeBodyError(w, r, err)
		return
	}

	conf, err := h.Service.Delete(r.Context(), r.PathValue("project"), req)
	if err != nil {
		h.writeServiceError(w, r, err, req.ID, "could not delete")
		return
	}
	writeJSON(w, http.StatusOK, conf)
}

func (h *Handler) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Allow", "GET, POST, PUT, DELETE")
	WriteError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error, id, notFoundMsg string) {
	status, e := errorFor(err, notFoundMsg)
	e.ID = strings.TrimSpace(id)
	e.RequestID = requestid.Get(r.Context())
	if status >= 500 && h.Log != nil {
		h.Log.Error("issue_request_failed",
			slog.String("request_id", e.RequestID),
			slog.String("method", r.Method),
			slog.String("err", err.Error()),
		)
	}
	writeAPIError(w, status, e)
}

var errBodyTooLarge = errors.New("request body too large")

func writeBodyError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, errBodyTooLarge) {
		WriteError(w, r, http.StatusRequestEntityTooLarge, "body_too_large", err.Error())
		return
	}
	WriteError(w, r, http.StatusBadRequest, "invalid_body", err.Error())
}

// decodeBody reads a JSON or urlencoded body. An empty body leaves dst at its
// zero value so the service reports the missing fields.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any, fromForm func(url.Values)) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	b, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errBodyTooLarge
		}
		return errors.New("unreadable body")
	}
	if len(strings.TrimSpace(string(b))) == 0 {
		return nil
	}

	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt == "application/x-www-form-urlencoded" {
		v, err := url.ParseQuery(string(b))
		if err != nil {
			return errors.New("invalid form body")
		}
		fromForm(v)
		return nil
	}

	if err := json.Unmarshal(b, dst); err != nil {
		return errors.New("invalid json")
	}
	return nil
}

func formValue(v url.Values, key string) *string {
	vs, ok := v[key]
	if !ok || len(vs) == 0 {
		return nil
	}
	s := vs[0]
	return &s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
