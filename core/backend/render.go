package backend

import (
	"crypto/md5"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/relabs-tech/jsonserver/core/logger"
	"github.com/relabs-tech/jsonserver/core/service"
)

// writeOutcome writes the outcome of a document operation. Paginated outcomes and all
// outcomes in return-object mode are written as they are. Otherwise a successful outcome
// writes its data and a failed one its message.
func (b *Backend) writeOutcome(w http.ResponseWriter, r *http.Request, outcome service.Outcome) {
	if outcome.Paginated() || b.returnObject {
		b.writeJSON(w, r, outcome.Code, outcome)
		return
	}
	if !outcome.Success() {
		http.Error(w, outcome.Message, outcome.Code)
		return
	}
	b.writeJSON(w, r, outcome.Code, outcome.Data)
}

// writeJSON writes body as JSON. Successful GET responses carry an Etag and are answered
// with http.StatusNotModified if the client has the current version already.
func (b *Backend) writeJSON(w http.ResponseWriter, r *http.Request, status int, body interface{}) {
	jsonData, err := json.MarshalWithOption(body, json.DisableHTMLEscape())
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).Errorf("Error 4701: cannot marshal response")
		http.Error(w, "Error 4701", http.StatusInternalServerError)
		return
	}
	if r.Method == http.MethodGet && status == http.StatusOK {
		etag := bytesToEtag(jsonData)
		w.Header().Set("Etag", etag)
		if ifNoneMatchFound(r.Header.Get("If-None-Match"), etag) {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(jsonData)
}

func bytesToEtag(data []byte) string {
	sum := md5.Sum(data)
	return "\"" + hex.EncodeToString(sum[:]) + "\""
}

func ifNoneMatchFound(ifNoneMatch, etag string) bool {
	ifNoneMatch = strings.Trim(ifNoneMatch, " ")
	if len(ifNoneMatch) == 0 {
		return false
	}
	if ifNoneMatch == "*" {
		return true
	}
	for _, s := range strings.Split(ifNoneMatch, ",") {
		s = strings.Trim(s, " \"")
		t := strings.Trim(etag, " \"")
		if s == t {
			return true
		}
	}
	return false
}
