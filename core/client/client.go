/*
Package client provides easy and fast in-process access to the REST api

Instead of marshalling HTTP, the client talks directly to the mux router. It is
perfectly suited for unit tests. With NewWithURL the same client talks to a
running server over HTTP.
*/
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
)

// Client provides easy access to the REST API.
type Client struct {
	router     *mux.Router
	httpClient *http.Client
	url        string
	prefix     string
	token      string
	ctx        context.Context

	defaultHeaders map[string]string
}

// NewWithRouter creates a client to make pseudo-REST requests to the backend,
// through the mux router
func NewWithRouter(router *mux.Router) Client {
	return Client{
		router:         router,
		defaultHeaders: map[string]string{},
	}
}

// NewWithURL creates a client to make REST requests to the backend
//
// WithToken adds an authorization token to the request header.
func NewWithURL(url string) Client {
	return Client{
		url:            strings.TrimSuffix(url, "/"),
		httpClient:     &http.Client{Timeout: 20 * time.Second},
		defaultHeaders: map[string]string{},
	}
}

// WithHeader returns a new client with a default header added
func (c Client) WithHeader(key string, value string) Client {
	headers := map[string]string{key: value}
	for k, v := range c.defaultHeaders {
		if k != key {
			headers[k] = v
		}
	}
	c.defaultHeaders = headers
	return c
}

// WithToken returns a new client which sends the token as bearer token
func (c Client) WithToken(token string) Client {
	c.token = token
	return c
}

// WithPrefix returns a new client for a server which serves the resources under
// a path prefix
func (c Client) WithPrefix(prefix string) Client {
	c.prefix = strings.TrimSuffix(prefix, "/")
	return c
}

// WithContext returns a new client with specific request context
func (c Client) WithContext(ctx context.Context) Client {
	c.ctx = ctx
	return c
}

// Context returns the request context of the client
func (c Client) Context() context.Context {
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

// Resource represents one resource of the document
type Resource struct {
	client     *Client
	name       string
	parameters url.Values
}

// Resource returns a new resource client
func (c Client) Resource(name string) Resource {
	return Resource{client: &c, name: name, parameters: url.Values{}}
}

// WithParameter returns a new resource client with a query parameter added
func (r Resource) WithParameter(key string, value string) Resource {
	// we want a true copy to avoid side effects
	parameters := url.Values{}
	for k, v := range r.parameters {
		parameters[k] = append([]string{}, v...)
	}
	parameters.Add(key, value)
	r.parameters = parameters
	return r
}

// WithEmbed returns a new resource client which embeds the related resources
func (r Resource) WithEmbed(related ...string) Resource {
	for _, rel := range related {
		r = r.WithParameter("_embed", rel)
	}
	return r
}

// Path returns the path of the resource, including all parameters
func (r Resource) Path() string {
	return withQuery(r.client.prefix+"/"+r.name, r.parameters)
}

// List reads the resource. For a list resource, this applies all parameters.
func (r Resource) List(result interface{}) (int, error) {
	return r.client.RawGet(r.Path(), result)
}

// Create creates a new record
func (r Resource) Create(body interface{}, result interface{}) (int, error) {
	return r.client.RawPost(r.Path(), body, result)
}

// Update replaces an object resource
func (r Resource) Update(body interface{}, result interface{}) (int, error) {
	return r.client.RawPut(r.Path(), body, result)
}

// Patch merges the body into an object resource
func (r Resource) Patch(body interface{}, result interface{}) (int, error) {
	return r.client.RawPatch(r.Path(), body, result)
}

// Delete deletes an object resource
func (r Resource) Delete() (int, error) {
	return r.client.RawDelete(r.Path())
}

// Item represents one record of a list resource
type Item struct {
	resource Resource
	id       string
}

// Item returns a new item client
func (r Resource) Item(id string) Item {
	return Item{resource: r, id: id}
}

// WithParameter returns a new item client with a query parameter added
func (i Item) WithParameter(key string, value string) Item {
	i.resource = i.resource.WithParameter(key, value)
	return i
}

// Path returns the path of the record, including all parameters
func (i Item) Path() string {
	r := i.resource
	return withQuery(r.client.prefix+"/"+r.name+"/"+url.PathEscape(i.id), r.parameters)
}

// Read reads the record
func (i Item) Read(result interface{}) (int, error) {
	return i.resource.client.RawGet(i.Path(), result)
}

// Update replaces the record
func (i Item) Update(body interface{}, result interface{}) (int, error) {
	return i.resource.client.RawPut(i.Path(), body, result)
}

// Patch merges the body into the record
func (i Item) Patch(body interface{}, result interface{}) (int, error) {
	return i.resource.client.RawPatch(i.Path(), body, result)
}

// Delete deletes the record together with the named dependents
func (i Item) Delete(dependents ...string) (int, error) {
	item := i
	for _, dependent := range dependents {
		item = item.WithParameter("_dependent", dependent)
	}
	return item.resource.client.RawDelete(item.Path())
}

func withQuery(path string, parameters url.Values) string {
	if len(parameters) == 0 {
		return path
	}
	// keep the order of the parameters stable for readable paths
	keys := make([]string, 0, len(parameters))
	for key := range parameters {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	var parts []string
	for _, key := range keys {
		for _, value := range parameters[key] {
			parts = append(parts, url.QueryEscape(key)+"="+url.QueryEscape(value))
		}
	}
	return path + "?" + strings.Join(parts, "&")
}

// Response is a raw response
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Do executes a request and returns the raw response. A body of type []byte is sent
// as is, everything else is marshalled to JSON.
func (c Client) Do(method string, path string, headers map[string]string, body interface{}) (*Response, error) {
	var reader io.Reader
	if body != nil {
		j, ok := body.([]byte)
		if !ok {
			var err error
			j, err = json.Marshal(body)
			if err != nil {
				return nil, fmt.Errorf("%s to %s: %w", method, path, err)
			}
		}
		reader = bytes.NewReader(j)
	}

	r, err := http.NewRequestWithContext(c.Context(), method, c.url+path, reader)
	if err != nil {
		return nil, fmt.Errorf("%s to %s: %w", method, path, err)
	}
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	for key, value := range c.defaultHeaders {
		r.Header.Add(key, value)
	}
	for key, value := range headers {
		r.Header.Add(key, value)
	}
	if c.token != "" {
		r.Header.Add("Authorization", "Bearer "+c.token)
	}

	if c.router != nil {
		rec := httptest.NewRecorder()
		c.router.ServeHTTP(rec, r)
		res := rec.Result()
		return &Response{StatusCode: res.StatusCode, Header: res.Header, Body: rec.Body.Bytes()}, nil
	}

	res, err := c.httpClient.Do(r)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	return &Response{StatusCode: res.StatusCode, Header: res.Header, Body: resBody}, nil
}

// raw executes a request and unmarshals the response into result if the status
// is one of the expected ones.
func (c Client) raw(method string, path string, body interface{}, result interface{}, expected ...int) (int, error) {
	res, err := c.Do(method, path, nil, body)
	if err != nil {
		return http.StatusInternalServerError, err
	}
	status := res.StatusCode
	ok := false
	for _, e := range expected {
		ok = ok || status == e
	}
	if !ok {
		return status, fmt.Errorf("handler returned wrong status code: got %v want %v. Error: %s",
			status, expected[0], strings.TrimSpace(string(res.Body)))
	}
	if len(res.Body) > 0 && result != nil {
		if raw, ok := result.(*[]byte); ok {
			*raw = res.Body
		} else {
			err = json.Unmarshal(res.Body, result)
		}
	}
	return status, err
}

// RawGet is a convenience function to make GET requests
func (c Client) RawGet(path string, result interface{}) (int, error) {
	return c.raw(http.MethodGet, path, nil, result, http.StatusOK)
}

// RawPost is a convenience function to make POST requests. It expects http.StatusCreated
// or http.StatusOK.
func (c Client) RawPost(path string, body interface{}, result interface{}) (int, error) {
	return c.raw(http.MethodPost, path, body, result, http.StatusCreated, http.StatusOK)
}

// RawPut is a convenience function to make PUT requests
func (c Client) RawPut(path string, body interface{}, result interface{}) (int, error) {
	return c.raw(http.MethodPut, path, body, result, http.StatusOK)
}

// RawPatch is a convenience function to make PATCH requests
func (c Client) RawPatch(path string, body interface{}, result interface{}) (int, error) {
	return c.raw(http.MethodPatch, path, body, result, http.StatusOK)
}

// RawDelete is a convenience function to make DELETE requests
func (c Client) RawDelete(path string) (int, error) {
	return c.raw(http.MethodDelete, path, nil, nil, http.StatusOK, http.StatusNoContent)
}
