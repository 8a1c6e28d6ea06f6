package backend

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/relabs-tech/jsonserver/core/logger"
	"github.com/relabs-tech/jsonserver/core/service"
)

// StatisticsDetails represents information about the resources of the document
type StatisticsDetails struct {
	Resources []service.ResourceStatistics `json:"resources"`
	Lists     int                          `json:"lists"`
	Objects   int                          `json:"objects"`
	Records   int                          `json:"records"`
}

func (b *Backend) handleStatistics(router *mux.Router) {
	logger.Default().Debugln("statistics")
	logger.Default().Debugln("  handle statistics route: /_statistics GET")
	router.HandleFunc("/_statistics", func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
		b.writeJSON(w, r, http.StatusOK, b.statistics())
	}).Methods(http.MethodOptions, http.MethodGet)
}

func (b *Backend) statistics() StatisticsDetails {
	s := StatisticsDetails{Resources: b.service.Statistics()}
	for _, rs := range s.Resources {
		if rs.Kind == "list" {
			s.Lists++
			s.Records += rs.Count
		} else {
			s.Objects++
		}
	}
	return s
}
