package service

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Outcome is the result of a document operation. Request faults like unknown
// resources or invalid bodies are outcomes too, only persistence faults are errors.
type Outcome struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	*Pagination
	Data interface{} `json:"data"`
}

// Pagination describes one page of a paginated list
type Pagination struct {
	First int  `json:"first"`
	Prev  *int `json:"prev"`
	Next  *int `json:"next"`
	Last  int  `json:"last"`
	Pages int  `json:"pages"`
	Items int  `json:"items"`
}

// Success returns true if the outcome carries a 2xx status code
func (o Outcome) Success() bool {
	return o.Code >= 200 && o.Code < 300
}

// Paginated returns true if the outcome is a page of a paginated list
func (o Outcome) Paginated() bool {
	return o.Pagination != nil
}

// outcome messages
const (
	messageFound        = "Found"
	messageSuccess      = "Success"
	messageNotFound     = "Not found"
	messageCreated      = "Record created."
	messageUpdated      = "Update success"
	messageDeleted      = "Delete success"
	messageNotForObject = "not for an object"
	messageIDExists     = "id exists"
	messageEmptyBody    = "empty body"
	messageInvalidID    = "invalid id"
)

func success(message string, data interface{}) Outcome {
	return Outcome{Code: http.StatusOK, Message: message, Data: data}
}

func created(data interface{}) Outcome {
	return Outcome{Code: http.StatusCreated, Message: messageCreated, Data: data}
}

func notFound() Outcome {
	return Outcome{Code: http.StatusNotFound, Message: messageNotFound}
}

func badRequest(message string) Outcome {
	return Outcome{Code: http.StatusBadRequest, Message: message}
}

// invalidRelations returns a bad request outcome which names every invalid field.
// The data maps each field to its offending value.
func invalidRelations(invalid map[string]interface{}) Outcome {
	fields := make([]string, 0, len(invalid))
	for field := range invalid {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return Outcome{
		Code:    http.StatusBadRequest,
		Message: fmt.Sprintf("invalid relations: %s", strings.Join(fields, ", ")),
		Data:    invalid,
	}
}
