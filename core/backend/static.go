package backend

import (
	"net/http"
	"os"
	"path"
	"path/filepath"

	"github.com/gorilla/mux"

	"github.com/relabs-tech/jsonserver/core/logger"
)

// handleStatic serves files of the static directories. A file only matches if it exists,
// otherwise the request falls through to the other routes. The first directory which has
// the file wins.
func (b *Backend) handleStatic(router *mux.Router) {
	if len(b.staticDirs) == 0 {
		return
	}
	nillog := logger.FromContext(nil)
	nillog.Debugln("static files")
	for _, dir := range b.staticDirs {
		nillog.Debugln("  serve directory:", dir)
	}
	fileServers := make(map[string]http.Handler, len(b.staticDirs))
	for _, dir := range b.staticDirs {
		fileServers[dir] = http.FileServer(http.Dir(dir))
	}

	router.MatcherFunc(func(r *http.Request, rm *mux.RouteMatch) bool {
		return b.staticDir(r.URL.Path) != ""
	}).Methods(http.MethodGet, http.MethodHead).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method, "(static)")
		dir := b.staticDir(r.URL.Path)
		if dir == "" {
			http.NotFound(w, r)
			return
		}
		fileServers[dir].ServeHTTP(w, r)
	})
}

// staticDir returns the first static directory which has a file for urlPath. A
// directory matches if it holds an index.html.
func (b *Backend) staticDir(urlPath string) string {
	name := filepath.FromSlash(path.Clean("/" + urlPath))
	for _, dir := range b.staticDirs {
		full := filepath.Join(dir, name)
		info, err := os.Stat(full)
		if err != nil {
			continue
		}
		if info.IsDir() {
			if _, err := os.Stat(filepath.Join(full, "index.html")); err != nil {
				continue
			}
		}
		return dir
	}
	return ""
}
