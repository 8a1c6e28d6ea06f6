package backend_test

import (
	"context"

	"github.com/gorilla/mux"

	"github.com/relabs-tech/jsonserver/core/backend"
	"github.com/relabs-tech/jsonserver/core/client"
	"github.com/relabs-tech/jsonserver/core/service"
	"github.com/relabs-tech/jsonserver/core/storage"
)

// TestService is a backend over an in-memory document
type TestService struct {
	Service *service.Service
	Driver  *storage.Memory
	Router  *mux.Router
	backend *backend.Backend
	client  client.Client
}

// CreateTestService creates a new backend for the document. Service and Router of the
// builder are filled in.
func CreateTestService(data string, builder backend.Builder) *TestService {
	doc, err := storage.Decode([]byte(data))
	if err != nil {
		panic(err)
	}
	s := TestService{Driver: storage.NewMemory(doc), Router: mux.NewRouter()}
	s.Service, err = service.New(context.Background(), &service.Builder{Driver: s.Driver})
	if err != nil {
		panic(err)
	}
	builder.Service = s.Service
	builder.Router = s.Router
	s.backend = backend.New(&builder)
	s.client = client.NewWithRouter(s.Router).WithPrefix(builder.Prefix)
	return &s
}

const documentJSON = `{
	"posts": [
		{"id": "1", "title": "a", "views": 100, "author": {"name": "foo"}},
		{"id": "2", "title": "b", "views": 200, "author": {"name": "bar"}},
		{"id": "3", "title": "c", "views": 300, "author": {"name": "baz"}}
	],
	"comments": [
		{"id": "1", "text": "first", "postId": "1"},
		{"id": "2", "text": "second", "postId": "1"},
		{"id": "3", "text": "third", "postId": "2"}
	],
	"users": [
		{"id": "1", "username": "User1", "password": "UserPass1", "token": "3604ab439517b1bc0161a8debd461d8461863b99"}
	],
	"profile": {"name": "typicode"}
}`
