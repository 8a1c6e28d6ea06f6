package backend

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/relabs-tech/jsonserver/core/logger"
	"github.com/relabs-tech/jsonserver/core/service"
)

//go:embed templates
var templatesFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templatesFS, "templates/index.html"))

type indexData struct {
	Prefix    string
	Auth      bool
	Version   string
	Resources []service.ResourceStatistics
}

func (b *Backend) handleIndex(router *mux.Router) {
	logger.Default().Debugln("index")
	logger.Default().Debugln("  handle index route: / GET")
	router.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		rlog := logger.FromContext(r.Context())
		rlog.Infoln("called route for", r.URL, r.Method)
		data := indexData{
			Prefix:    b.prefix,
			Auth:      b.auth != nil,
			Version:   Version,
			Resources: b.service.Statistics(),
		}
		var buf bytes.Buffer
		if err := indexTemplate.Execute(&buf, data); err != nil {
			rlog.WithError(err).Errorf("Error 4702: cannot render index page")
			http.Error(w, "Error 4702", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(buf.Bytes())
	}).Methods(http.MethodOptions, http.MethodGet)
}
