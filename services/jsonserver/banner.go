package main

import (
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"sync"

	"github.com/relabs-tech/jsonserver/core/access"
)

// banner prints the startup message and the endpoints
type banner struct {
	host   string
	port   int
	prefix string
	auth   bool
	file   string

	mutex sync.Mutex
	out   io.Writer
}

func (b *banner) writer() io.Writer {
	if b.out == nil {
		return os.Stdout
	}
	return b.out
}

func (b *banner) baseURL() string {
	return "http://" + net.JoinHostPort(b.host, strconv.Itoa(b.port))
}

func (b *banner) printStarted(watching bool) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	w := b.writer()
	successColor.Fprintf(w, "jsonserver started on PORT :%d\n", b.port)
	if b.auth {
		hintColor.Fprintln(w, "Using auth...")
	}
	hintColor.Fprintln(w, "Press CTRL-C to stop")
	if watching {
		hintColor.Fprintf(w, "Watching %s...\n", b.file)
	}
	fmt.Fprintln(w)
	boldColor.Fprintln(w, "Index:")
	hintColor.Fprintln(w, b.baseURL()+"/")
	fmt.Fprintln(w)
	boldColor.Fprintln(w, "Static files:")
	hintColor.Fprintf(w, "Serving ./%s directory if it exists\n", publicDir)
	fmt.Fprintln(w)
}

// printEndpoints prints one URL per endpoint, and the login route with auth
func (b *banner) printEndpoints(endpoints []string) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	w := b.writer()
	boldColor.Fprintln(w, "Endpoints:")
	if len(endpoints) == 0 {
		hintColor.Fprintf(w, "No endpoints found, try adding some data to %s\n", b.file)
		return
	}
	if b.auth {
		fmt.Fprint(w, "POST ")
		hintColor.Fprint(w, b.baseURL()+b.prefix)
		routeColor.Fprintln(w, access.LoginRoute)
	}
	for _, endpoint := range endpoints {
		hintColor.Fprint(w, b.baseURL()+b.prefix+"/")
		routeColor.Fprintln(w, endpoint[len(b.prefix)+1:])
	}
}
