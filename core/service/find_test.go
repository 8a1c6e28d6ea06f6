package service

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	post1    = `{"id": "1", "title": "a", "views": 100, "author": {"name": "foo"}, "tags": ["foo", "bar"]}`
	post2    = `{"id": "2", "title": "b", "views": 200, "author": {"name": "bar"}, "tags": ["bar"]}`
	post3    = `{"id": "3", "title": "c", "views": 300, "author": {"name": "baz"}, "tags": ["foo"]}`
	comment1 = `{"id": "1", "title": "a", "postId": "1"}`

	contact1 = `{"id": "1", "name": "Bill", "mobile": "(555)1234-5678"}`
	contact2 = `{"id": "2", "name": "Tracy", "mobile": "(555)1234-1123"}`
	contact3 = `{"id": "3", "name": "Tina", "mobile": "(555)1234-9627"}`
	contact4 = `{"id": "4", "name": "Ben", "mobile": "(555)1234-2389"}`
	contact5 = `{"id": "5", "name": "Jack", "mobile": "(555)1234-6145"}`
	group1   = `{"id": "1", "name": "Collegue"}`
	group2   = `{"id": "2", "name": "Friend"}`
	group3   = `{"id": "3", "name": "Family"}`
	club1    = `{"id": "1", "name": "Tennis"}`
	club2    = `{"id": "2", "name": "Swiming"}`
	club3    = `{"id": "3", "name": "Yuga"}`
)

func list(items ...string) string {
	return "[" + strings.Join(items, ",") + "]"
}

// with adds a property to a JSON object literal
func with(object, key, value string) string {
	return strings.TrimSuffix(object, "}") + `, "` + key + `": ` + value + "}"
}

func TestFind(t *testing.T) {
	unsorted := `{"posts": ` + list(post3, post1, post2) + `}`

	testCases := []struct {
		data     string
		name     string
		query    string
		code     int
		expected string
	}{
		{name: "posts", expected: list(post1, post2, post3)},
		{name: "posts", query: "id=1", expected: list(post1)},
		{name: "posts", query: "id=xxx", expected: list()},
		{name: "posts", query: "views=100", expected: list(post1)},
		{name: "posts", query: "author.name=foo", expected: list(post1)},
		{name: "posts", query: "tags[0]=foo", expected: list(post1, post3)},
		{name: "posts", query: "id=xxx&views=100", expected: list()},
		{name: "posts", query: "views_ne=100", expected: list(post2, post3)},
		{name: "posts", query: "views_lt=101", expected: list(post1)},
		{name: "posts", query: "views_lt=100", expected: list()},
		{name: "posts", query: "views_lte=100", expected: list(post1)},
		{name: "posts", query: "views_gt=100", expected: list(post2, post3)},
		{name: "posts", query: "views_gt=99", expected: list(post1, post2, post3)},
		{name: "posts", query: "views_gte=100", expected: list(post1, post2, post3)},
		{name: "posts", query: "views_gte=100&views_lt=300", expected: list(post1, post2)},
		{name: "posts", query: "title_gt=a", expected: list()},
		{name: "posts", query: "views_gt=abc", expected: list()},
		{name: "posts", query: "title=", expected: list(post1, post2, post3)},
		{name: "posts", query: "title=a&title=b", expected: list(post1, post2, post3)},
		{data: unsorted, name: "posts", query: "_sort=views", expected: list(post1, post2, post3)},
		{data: unsorted, name: "posts", query: "_sort=-views", expected: list(post3, post2, post1)},
		{data: unsorted, name: "posts", query: "_sort=-views,id", expected: list(post3, post2, post1)},
		{data: unsorted, name: "posts", query: "_sort=author.name", expected: list(post2, post3, post1)},
		{name: "posts", query: "_start=0&_end=2", expected: list(post1, post2)},
		{name: "posts", query: "_start=1&_end=3", expected: list(post2, post3)},
		{name: "posts", query: "_start=0&_limit=2", expected: list(post1, post2)},
		{name: "posts", query: "_start=1&_limit=2", expected: list(post2, post3)},
		{name: "posts", query: "_start=1", expected: list()},
		{name: "posts", query: "_limit=2", expected: list(post1, post2)},
		{name: "posts", query: "_start=-1&_end=3", expected: list(post3)},
		{name: "posts", query: "_start=abc&_limit=1", expected: list(post1)},
		{name: "posts", query: "_start=1&_end=3&_page=1", expected: list(post2, post3)},
		{name: "posts", query: "_embed=comments", expected: list(
			with(post1, "comments", list(comment1)),
			with(post2, "comments", list()),
			with(post3, "comments", list()),
		)},
		{name: "posts", query: "_embed=comments&comments.0.id=1", expected: list(
			with(post1, "comments", list(comment1)),
		)},
		{name: "comments", query: "_embed=post", expected: list(with(comment1, "post", post1))},
		{name: "xxx", code: http.StatusNotFound, expected: "null"},
		{name: "object", expected: `{"f1": "foo"}`},
		{name: "object", query: "f1=bar", expected: `{"f1": "foo"}`},
		{data: `{"posts": []}`, name: "posts", query: "id=1", expected: list()},
		{name: "contacts", query: "_embed=groups", expected: list(
			with(contact1, "groups", list(group1, group2)),
			with(contact2, "groups", list(group2)),
			with(contact3, "groups", list()),
			with(contact4, "groups", list(group1)),
			with(contact5, "groups", list(group2)),
		)},
		{name: "groups", query: "_embed=contacts", expected: list(
			with(group1, "contacts", list(contact1, contact4)),
			with(group2, "contacts", list(contact1, contact2, contact5)),
			with(group3, "contacts", list()),
		)},
		{name: "members", query: "_embed=clubs", expected: list(
			`{"id": "1", "name": "Jackie", "clubs": `+list(club1, club3)+`}`,
			`{"id": "2", "name": "Lexi", "clubs": `+list(club2)+`}`,
			`{"id": "3", "name": "Michael", "clubs": `+list(club2, club3)+`}`,
			`{"id": "4", "name": "Billy", "clubs": `+list(club1, club2)+`}`,
			`{"id": "5", "name": "Jane", "clubs": `+list(club1)+`}`,
		)},
		{name: "clubs", query: "_embed=members", expected: list(
			with(club1, "members", list(`{"id": "1", "name": "Jackie"}`, `{"id": "4", "name": "Billy"}`, `{"id": "5", "name": "Jane"}`)),
			with(club2, "members", list(`{"id": "2", "name": "Lexi"}`, `{"id": "3", "name": "Michael"}`, `{"id": "4", "name": "Billy"}`)),
			with(club3, "members", list(`{"id": "1", "name": "Jackie"}`, `{"id": "3", "name": "Michael"}`)),
		)},
	}

	for _, tc := range testCases {
		t.Run(fmt.Sprintf("%s?%s", tc.name, tc.query), func(t *testing.T) {
			data := tc.data
			if data == "" {
				data = fixture
			}
			ts := newTestService(t, data)
			outcome := ts.Find(tc.name, query(t, tc.query))
			code := tc.code
			if code == 0 {
				code = http.StatusOK
			}
			assert.Equal(t, code, outcome.Code)
			assert.False(t, outcome.Paginated())
			assertJSON(t, tc.expected, outcome.Data)
		})
	}
}

func TestFindPaginated(t *testing.T) {
	testCases := []struct {
		query    string
		expected string
	}{
		{"_page=1&_per_page=2", `{"code": 200, "message": "Success", "first": 1, "prev": null, "next": 2, "last": 2, "pages": 2, "items": 3, "data": ` + list(post1, post2) + `}`},
		{"_page=2&_per_page=2", `{"code": 200, "message": "Success", "first": 1, "prev": 1, "next": null, "last": 2, "pages": 2, "items": 3, "data": ` + list(post3) + `}`},
		{"_page=3&_per_page=2", `{"code": 200, "message": "Success", "first": 1, "prev": 1, "next": null, "last": 2, "pages": 2, "items": 3, "data": ` + list(post3) + `}`},
		{"_page=2&_per_page=1", `{"code": 200, "message": "Success", "first": 1, "prev": 1, "next": 3, "last": 3, "pages": 3, "items": 3, "data": ` + list(post2) + `}`},
		{"_page=0&_per_page=2", `{"code": 200, "message": "Success", "first": 1, "prev": null, "next": 2, "last": 2, "pages": 2, "items": 3, "data": ` + list(post1, post2) + `}`},
		{"_page=1", `{"code": 200, "message": "Success", "first": 1, "prev": null, "next": null, "last": 1, "pages": 1, "items": 3, "data": ` + list(post1, post2, post3) + `}`},
		{"_page=1&_per_page=0", `{"code": 200, "message": "Success", "first": 1, "prev": null, "next": null, "last": 1, "pages": 1, "items": 3, "data": ` + list(post1, post2, post3) + `}`},
		{"_page=1&id=xxx", `{"code": 200, "message": "Success", "first": 1, "prev": null, "next": null, "last": 0, "pages": 0, "items": 0, "data": []}`},
	}
	ts := newTestService(t, fixture)
	for _, tc := range testCases {
		t.Run(tc.query, func(t *testing.T) {
			outcome := ts.Find("posts", query(t, tc.query))
			assert.True(t, outcome.Paginated())
			assertJSON(t, tc.expected, outcome)
		})
	}
}

func TestFindByID(t *testing.T) {
	ts := newTestService(t, fixture)

	outcome := ts.FindByID("posts", "1", Query{})
	assert.Equal(t, http.StatusOK, outcome.Code)
	assert.Equal(t, "Found", outcome.Message)
	assertJSON(t, post1, outcome.Data)

	outcome = ts.FindByID("posts", "xxx", Query{})
	assert.Equal(t, http.StatusNotFound, outcome.Code)
	assert.Nil(t, outcome.Data)

	outcome = ts.FindByID("posts", "1", query(t, "_embed=comments"))
	assertJSON(t, with(post1, "comments", list(comment1)), outcome.Data)

	outcome = ts.FindByID("comments", "1", query(t, "_embed=post"))
	assertJSON(t, with(comment1, "post", post1), outcome.Data)

	outcome = ts.FindByID("xxx", "1", Query{})
	assert.Equal(t, http.StatusNotFound, outcome.Code)

	outcome = ts.FindByID("object", "1", Query{})
	assert.Equal(t, http.StatusNotFound, outcome.Code, "objects have no records")

	// embedding never changes the stored document
	stored, _ := ts.Snapshot().List("posts")
	_, has := stored[0].(map[string]interface{})["comments"]
	assert.False(t, has)
}

func TestFilterCorrectness(t *testing.T) {
	var records []string
	for i := 0; i < 20; i++ {
		records = append(records, fmt.Sprintf(`{"id": "%d", "score": %d, "label": "l%d"}`, i, (i*7)%11, i%3))
	}
	ts := newTestService(t, `{"items": `+list(records...)+`}`)

	for v := -1; v <= 11; v++ {
		outcome := ts.Find("items", query(t, "score_gt="+strconv.Itoa(v)))
		for _, item := range outcome.Data.([]interface{}) {
			assert.Greater(t, item.(map[string]interface{})["score"].(float64), float64(v))
		}
		expected := 0
		for i := 0; i < 20; i++ {
			if (i*7)%11 > v {
				expected++
			}
		}
		assert.Len(t, outcome.Data, expected, "score_gt=%d", v)

		outcome = ts.Find("items", query(t, "score="+strconv.Itoa(v)))
		expected = 0
		for i := 0; i < 20; i++ {
			if (i*7)%11 == v {
				expected++
			}
		}
		assert.Len(t, outcome.Data, expected, "score=%d", v)
	}

	outcome := ts.Find("items", query(t, "label=l1"))
	for _, item := range outcome.Data.([]interface{}) {
		assert.Equal(t, "l1", item.(map[string]interface{})["label"])
	}
	assert.Len(t, outcome.Data, 7)
}

func TestSortStability(t *testing.T) {
	ts := newTestService(t, `{"items": [
		{"id": "a", "rank": 2}, {"id": "b", "rank": 1}, {"id": "c", "rank": 2},
		{"id": "d", "rank": 1}, {"id": "e"}, {"id": "f", "rank": "x"}
	]}`)

	ids := func(outcome Outcome) string {
		var result []string
		for _, item := range outcome.Data.([]interface{}) {
			result = append(result, item.(map[string]interface{})["id"].(string))
		}
		return strings.Join(result, "")
	}

	assert.Equal(t, "bdacfe", ids(ts.Find("items", query(t, "_sort=rank"))), "ties keep their order, nil sorts last")
	assert.Equal(t, "efacbd", ids(ts.Find("items", query(t, "_sort=-rank"))), "ties keep their order")
	assert.Equal(t, "abcdef", ids(ts.Find("items", query(t, ""))))

	ts = newTestService(t, `{"items": [{"id": "1", "v": 3}, {"id": "2", "v": 1}, {"id": "3", "v": 2}]}`)
	ascending := ids(ts.Find("items", query(t, "_sort=v")))
	descending := ids(ts.Find("items", query(t, "_sort=-v")))
	reversed := []byte(ascending)
	for i, j := 0, len(reversed)-1; i < j; i, j = i+1, j-1 {
		reversed[i], reversed[j] = reversed[j], reversed[i]
	}
	assert.Equal(t, string(reversed), descending)
}

func TestPaginationReconstruction(t *testing.T) {
	for items := 1; items <= 23; items++ {
		var records []string
		for i := 0; i < items; i++ {
			records = append(records, fmt.Sprintf(`{"id": "%d"}`, i))
		}
		ts := newTestService(t, `{"items": `+list(records...)+`}`)
		full := ts.Find("items", Query{}).Data

		for perPage := 1; perPage <= 7; perPage++ {
			first := ts.Find("items", query(t, fmt.Sprintf("_page=1&_per_page=%d", perPage)))
			require.True(t, first.Paginated())
			pages := first.Pages
			assert.Equal(t, (items+perPage-1)/perPage, pages)
			assert.Equal(t, items, first.Items)
			assert.Equal(t, pages, first.Last)
			assert.Equal(t, 1, first.First)

			var all []interface{}
			for page := 1; page <= pages; page++ {
				outcome := ts.Find("items", query(t, fmt.Sprintf("_page=%d&_per_page=%d", page, perPage)))
				if page == 1 {
					assert.Nil(t, outcome.Prev)
				} else {
					require.NotNil(t, outcome.Prev)
					assert.Equal(t, page-1, *outcome.Prev)
				}
				if page == pages {
					assert.Nil(t, outcome.Next)
				} else {
					require.NotNil(t, outcome.Next)
					assert.Equal(t, page+1, *outcome.Next)
				}
				all = append(all, outcome.Data.([]interface{})...)
			}
			assert.Equal(t, full, all, "items=%d per_page=%d", items, perPage)
		}
	}
}
