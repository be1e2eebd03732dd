package admin

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/muaviaUsmani/courier/internal/job"
	"github.com/muaviaUsmani/courier/internal/message"
	"github.com/muaviaUsmani/courier/internal/service"
	"github.com/muaviaUsmani/courier/internal/store"
)

// Handler exposes the command surface over HTTP:
//
//	POST /submit                     submit a message
//	GET  /stats                      queue depths
//	GET  /metrics                    delivery counters for this process
//	GET  /jobs?state=&offset=&limit= list main-queue jobs
//	GET  /dead-letter?offset=&limit= list dead letter entries
//	GET  /jobs/{id}                  fetch one job
//	POST /jobs/{id}/requeue          requeue a dead-lettered or failed job
func Handler(dispatcher *Dispatcher) http.Handler {
	mux := http.NewServeMux()
	h := &httpAdapter{dispatcher: dispatcher}

	mux.HandleFunc("/submit", h.submit)
	mux.HandleFunc("/stats", h.stats)
	mux.HandleFunc("/metrics", h.metrics)
	mux.HandleFunc("/jobs", h.listMain)
	mux.HandleFunc("/jobs/", h.jobByID)
	mux.HandleFunc("/dead-letter", h.listDeadLetter)

	return mux
}

type httpAdapter struct {
	dispatcher *Dispatcher
}

func (h *httpAdapter) submit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		httpError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	result, err := h.dispatcher.Dispatch(r.Context(), Command{Verb: VerbSubmit, Args: raw})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, result)
}

func (h *httpAdapter) stats(w http.ResponseWriter, r *http.Request) {
	result, err := h.dispatcher.Dispatch(r.Context(), Command{Verb: VerbStats})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *httpAdapter) metrics(w http.ResponseWriter, r *http.Request) {
	result, err := h.dispatcher.Dispatch(r.Context(), Command{Verb: VerbMetrics})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *httpAdapter) listMain(w http.ResponseWriter, r *http.Request) {
	args, _ := json.Marshal(listArgs{
		State:  job.State(r.URL.Query().Get("state")),
		Offset: queryInt(r, "offset", 0),
		Limit:  queryInt(r, "limit", 50),
	})

	result, err := h.dispatcher.Dispatch(r.Context(), Command{Verb: VerbListMain, Args: args})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *httpAdapter) listDeadLetter(w http.ResponseWriter, r *http.Request) {
	args, _ := json.Marshal(listArgs{
		Offset: queryInt(r, "offset", 0),
		Limit:  queryInt(r, "limit", 50),
	})

	result, err := h.dispatcher.Dispatch(r.Context(), Command{Verb: VerbListDeadLetter, Args: args})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *httpAdapter) jobByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/jobs/")
	jobID, action, _ := strings.Cut(rest, "/")
	if jobID == "" {
		httpError(w, http.StatusNotFound, "missing job id")
		return
	}

	args, _ := json.Marshal(jobArgs{JobID: jobID})

	switch {
	case action == "" && r.Method == http.MethodGet:
		result, err := h.dispatcher.Dispatch(r.Context(), Command{Verb: VerbGet, Args: args})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)

	case action == "requeue" && r.Method == http.MethodPost:
		result, err := h.dispatcher.Dispatch(r.Context(), Command{Verb: VerbRequeue, Args: args})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, result)

	default:
		httpError(w, http.StatusNotFound, "unknown action")
	}
}

// writeServiceError maps the service error taxonomy to HTTP status codes
func writeServiceError(w http.ResponseWriter, err error) {
	var validationErr *message.ValidationError
	var notRequeueable *service.NotRequeueableError

	switch {
	case errors.As(err, &validationErr):
		httpError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		httpError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &notRequeueable):
		httpError(w, http.StatusConflict, err.Error())
	default:
		httpError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Encoding errors past this point cannot be reported to the client
	_ = json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
