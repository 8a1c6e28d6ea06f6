package backend

import (
	"context"
	"io"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"github.com/relabs-tech/jsonserver/core/document"
	"github.com/relabs-tech/jsonserver/core/logger"
	"github.com/relabs-tech/jsonserver/core/service"
)

// mutation is a document operation which can fail to persist
type mutation func(ctx context.Context) (service.Outcome, error)

func (b *Backend) handleResources(router *mux.Router) {
	nillog := logger.FromContext(nil)
	listRoute := b.prefix + "/{name}"
	itemRoute := b.prefix + "/{name}/{id}"

	nillog.Debugln("resources")
	nillog.Debugln("  handle resource route:", listRoute, "GET")
	router.HandleFunc(listRoute, func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
		name := mux.Vars(r)["name"]
		b.writeOutcome(w, r, b.service.Find(name, service.NewQuery(r.URL.Query())))
	}).Methods(http.MethodOptions, http.MethodGet)

	nillog.Debugln("  handle resource route:", listRoute, "POST")
	router.HandleFunc(listRoute, func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
		name := mux.Vars(r)["name"]
		body, ok := readBody(w, r)
		if !ok {
			return
		}
		b.mutate(w, r, "Error 4710", func(ctx context.Context) (service.Outcome, error) {
			return b.service.Create(ctx, name, body)
		})
	}).Methods(http.MethodOptions, http.MethodPost)

	nillog.Debugln("  handle resource route:", listRoute, "PUT")
	router.HandleFunc(listRoute, func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
		name := mux.Vars(r)["name"]
		body, ok := readBody(w, r)
		if !ok {
			return
		}
		b.mutate(w, r, "Error 4711", func(ctx context.Context) (service.Outcome, error) {
			return b.service.Update(ctx, name, body)
		})
	}).Methods(http.MethodOptions, http.MethodPut)

	nillog.Debugln("  handle resource route:", listRoute, "PATCH")
	router.HandleFunc(listRoute, func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
		name := mux.Vars(r)["name"]
		body, ok := readBody(w, r)
		if !ok {
			return
		}
		b.mutate(w, r, "Error 4712", func(ctx context.Context) (service.Outcome, error) {
			return b.service.Patch(ctx, name, body)
		})
	}).Methods(http.MethodOptions, http.MethodPatch)

	nillog.Debugln("  handle resource route:", listRoute, "DELETE")
	router.HandleFunc(listRoute, func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
		name := mux.Vars(r)["name"]
		b.mutate(w, r, "Error 4713", func(ctx context.Context) (service.Outcome, error) {
			return b.service.DestroyObject(ctx, name)
		})
	}).Methods(http.MethodOptions, http.MethodDelete)

	nillog.Debugln("  handle resource route:", itemRoute, "GET")
	router.HandleFunc(itemRoute, func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
		vars := mux.Vars(r)
		b.writeOutcome(w, r, b.service.FindByID(vars["name"], vars["id"], service.NewQuery(r.URL.Query())))
	}).Methods(http.MethodOptions, http.MethodGet)

	nillog.Debugln("  handle resource route:", itemRoute, "PUT")
	router.HandleFunc(itemRoute, func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
		vars := mux.Vars(r)
		body, ok := readBody(w, r)
		if !ok {
			return
		}
		b.mutate(w, r, "Error 4714", func(ctx context.Context) (service.Outcome, error) {
			return b.service.UpdateByID(ctx, vars["name"], vars["id"], body)
		})
	}).Methods(http.MethodOptions, http.MethodPut)

	nillog.Debugln("  handle resource route:", itemRoute, "PATCH")
	router.HandleFunc(itemRoute, func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
		vars := mux.Vars(r)
		body, ok := readBody(w, r)
		if !ok {
			return
		}
		b.mutate(w, r, "Error 4715", func(ctx context.Context) (service.Outcome, error) {
			return b.service.PatchByID(ctx, vars["name"], vars["id"], body)
		})
	}).Methods(http.MethodOptions, http.MethodPatch)

	nillog.Debugln("  handle resource route:", itemRoute, "DELETE")
	router.HandleFunc(itemRoute, func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
		vars := mux.Vars(r)
		dependents := service.Dependents(r.URL.Query())
		b.mutate(w, r, "Error 4716", func(ctx context.Context) (service.Outcome, error) {
			return b.service.DestroyByID(ctx, vars["name"], vars["id"], dependents)
		})
	}).Methods(http.MethodOptions, http.MethodDelete)
}

// mutate runs a mutation and writes its outcome. A persistence fault is logged
// with errorCode and answered with http.StatusInternalServerError.
func (b *Backend) mutate(w http.ResponseWriter, r *http.Request, errorCode string, m mutation) {
	outcome, err := m(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).Errorf("%s: cannot persist %s %s", errorCode, r.Method, r.URL.Path)
		http.Error(w, errorCode, http.StatusInternalServerError)
		return
	}
	b.writeOutcome(w, r, outcome)
}

// readBody reads a JSON object from the request body. Anything else is answered with
// http.StatusBadRequest.
func readBody(w http.ResponseWriter, r *http.Request) (document.Record, bool) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "cannot read body", http.StatusBadRequest)
		return nil, false
	}
	var body interface{}
	if err := json.Unmarshal(data, &body); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return nil, false
	}
	record, ok := body.(map[string]interface{})
	if !ok {
		http.Error(w, "body must be a json object", http.StatusBadRequest)
		return nil, false
	}
	return record, true
}
