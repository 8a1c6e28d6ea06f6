package service

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/jsonserver/core/document"
)

func TestCreate(t *testing.T) {
	ctx := context.Background()
	ts := newTestService(t, fixture)

	outcome, err := ts.Create(ctx, "posts", document.Record{"title": "new post"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, outcome.Code)
	assert.Equal(t, "Record created.", outcome.Message)
	created := outcome.Data.(document.Record)
	assert.Equal(t, "new post", created["title"])
	id, ok := created["id"].(string)
	require.True(t, ok, "id should be a string")
	assert.NotEmpty(t, id)

	posts, _ := ts.stored(t).List("posts")
	assert.Len(t, posts, 4)
	assert.Equal(t, 1, ts.driver.Saves())

	// caller supplied ids are kept in their string form
	outcome, err = ts.Create(ctx, "posts", document.Record{"id": float64(42), "title": "x"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, outcome.Code)
	assert.Equal(t, "42", outcome.Data.(document.Record)["id"])

	testCases := []struct {
		name    string
		body    document.Record
		code    int
		message string
	}{
		{"xxx", document.Record{"title": "x"}, http.StatusNotFound, "Not found"},
		{"object", document.Record{"title": "x"}, http.StatusBadRequest, "not for an object"},
		{"posts", document.Record{"id": "1"}, http.StatusBadRequest, "id exists"},
		{"posts", document.Record{"id": float64(1)}, http.StatusBadRequest, "id exists"},
		{"posts", document.Record{"id": true}, http.StatusBadRequest, "invalid id"},
		{"comments", document.Record{"postId": "xxx"}, http.StatusBadRequest, "invalid relations: postId"},
		{"contacts", document.Record{"groups": []interface{}{"1", "9"}, "userId": "7"}, http.StatusBadRequest, "invalid relations: groups, userId"},
	}
	for _, tc := range testCases {
		t.Run(tc.message, func(t *testing.T) {
			before := ts.Snapshot()
			saves := ts.driver.Saves()
			outcome, err := ts.Create(ctx, tc.name, tc.body)
			require.NoError(t, err)
			assert.Equal(t, tc.code, outcome.Code)
			assert.Equal(t, tc.message, outcome.Message)
			assert.Equal(t, before, ts.Snapshot(), "rejected creates leave the document unchanged")
			assert.Equal(t, saves, ts.driver.Saves())
		})
	}

	// the body is copied
	body := document.Record{"title": "copy"}
	outcome, err = ts.Create(ctx, "comments", body)
	require.NoError(t, err)
	body["title"] = "changed"
	assert.Equal(t, "copy", outcome.Data.(document.Record)["title"])
}

func TestIntegrityGate(t *testing.T) {
	ctx := context.Background()
	ts := newTestService(t, fixture)

	outcome, err := ts.Create(ctx, "comments", document.Record{"postId": "1", "title": "valid"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, outcome.Code)

	outcome, err = ts.Create(ctx, "comments", document.Record{"postId": nil, "title": "unset is valid"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, outcome.Code)

	outcome, err = ts.Create(ctx, "contacts_groups", document.Record{"contactId": "3", "groupId": "3"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, outcome.Code)

	before := ts.Snapshot()
	saves := ts.driver.Saves()

	outcome, err = ts.UpdateByID(ctx, "comments", "1", document.Record{"postId": "9"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, outcome.Code)
	assert.Equal(t, map[string]interface{}{"postId": "9"}, outcome.Data)

	outcome, err = ts.PatchByID(ctx, "members", "1", document.Record{"clubs": []interface{}{"1", "7", "8"}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, outcome.Code)
	assert.Equal(t, map[string]interface{}{"clubs": []interface{}{"7", "8"}}, outcome.Data)

	assert.Equal(t, before, ts.Snapshot())
	assert.Equal(t, saves, ts.driver.Saves())
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	ts := newTestService(t, fixture)

	outcome, err := ts.Update(ctx, "object", document.Record{"f2": "bar"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, outcome.Code)
	assert.Equal(t, "Update success", outcome.Message)
	assertJSON(t, `{"f2": "bar"}`, outcome.Data)
	object, _ := ts.stored(t).Object("object")
	assert.Equal(t, document.Record{"f2": "bar"}, object)

	outcome, err = ts.Patch(ctx, "object", document.Record{"f3": "baz"})
	require.NoError(t, err)
	assertJSON(t, `{"f2": "bar", "f3": "baz"}`, outcome.Data)

	outcome, err = ts.Patch(ctx, "object", document.Record{})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, outcome.Code)

	outcome, err = ts.Update(ctx, "xxx", document.Record{})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, outcome.Code, "unknown resources are not found")

	outcome, err = ts.Update(ctx, "posts", document.Record{})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, outcome.Code, "lists are not objects")

	outcome, err = ts.Patch(ctx, "posts", document.Record{"a": "b"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, outcome.Code)
}

func TestUpdateByID(t *testing.T) {
	ctx := context.Background()
	ts := newTestService(t, fixture)

	outcome, err := ts.UpdateByID(ctx, "posts", "1", document.Record{"id": "xxx", "title": "updated post"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, outcome.Code)
	assertJSON(t, `{"id": "1", "title": "updated post"}`, outcome.Data)

	posts, _ := ts.stored(t).List("posts")
	assertJSON(t, `{"id": "1", "title": "updated post"}`, posts[0])
	assert.Len(t, posts, 3, "records are replaced in place")

	outcome, err = ts.UpdateByID(ctx, "xxx", "1", document.Record{})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, outcome.Code)

	outcome, err = ts.UpdateByID(ctx, "posts", "xxx", document.Record{})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, outcome.Code)

	outcome, err = ts.UpdateByID(ctx, "object", "1", document.Record{})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, outcome.Code)
	assert.Equal(t, "not for an object", outcome.Message)
}

func TestPatchByID(t *testing.T) {
	ctx := context.Background()
	ts := newTestService(t, fixture)

	outcome, err := ts.PatchByID(ctx, "posts", "2", document.Record{"id": "xxx", "title": "patched"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, outcome.Code)
	assertJSON(t, `{"id": "2", "title": "patched", "views": 200, "author": {"name": "bar"}, "tags": ["bar"]}`, outcome.Data)

	posts, _ := ts.stored(t).List("posts")
	assert.Equal(t, "patched", posts[1].(map[string]interface{})["title"])

	outcome, err = ts.PatchByID(ctx, "posts", "2", document.Record{})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, outcome.Code, "empty patches are rejected")

	outcome, err = ts.PatchByID(ctx, "xxx", "1", document.Record{"a": "b"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, outcome.Code)

	outcome, err = ts.PatchByID(ctx, "posts", "xxx", document.Record{"a": "b"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, outcome.Code)
}

func TestDestroyByID(t *testing.T) {
	ctx := context.Background()

	t.Run("nullify", func(t *testing.T) {
		ts := newTestService(t, fixture)
		outcome, err := ts.DestroyByID(ctx, "posts", "1", nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, outcome.Code)
		assert.Equal(t, "Delete success", outcome.Message)
		assertJSON(t, post1, outcome.Data)

		doc := ts.stored(t)
		posts, _ := doc.List("posts")
		assert.Len(t, posts, 2)
		comments, _ := doc.List("comments")
		assertJSON(t, `[{"id": "1", "title": "a", "postId": null}]`, comments)
	})

	t.Run("dependents", func(t *testing.T) {
		ts := newTestService(t, fixture)
		_, err := ts.DestroyByID(ctx, "posts", "1", []string{"comments"})
		require.NoError(t, err)
		doc := ts.stored(t)
		posts, _ := doc.List("posts")
		assert.Len(t, posts, 2)
		comments, _ := doc.List("comments")
		assert.Len(t, comments, 0)
	})

	t.Run("dependents with absent foreign key are kept", func(t *testing.T) {
		ts := newTestService(t, `{"posts": [{"id": "1"}], "comments": [{"id": "1", "postId": "1"}, {"id": "2"}]}`)
		_, err := ts.DestroyByID(ctx, "posts", "1", []string{"comments"})
		require.NoError(t, err)
		comments, _ := ts.stored(t).List("comments")
		assertJSON(t, `[{"id": "2"}]`, comments)
	})

	t.Run("numeric foreign keys", func(t *testing.T) {
		ts := newTestService(t, `{"posts": [{"id": 1}], "comments": [{"id": "1", "postId": 1}]}`)
		_, err := ts.DestroyByID(ctx, "posts", "1", nil)
		require.NoError(t, err)
		comments, _ := ts.stored(t).List("comments")
		assertJSON(t, `[{"id": "1", "postId": null}]`, comments)
	})

	t.Run("join table", func(t *testing.T) {
		ts := newTestService(t, fixture)
		_, err := ts.DestroyByID(ctx, "contacts", "1", nil)
		require.NoError(t, err)
		doc := ts.stored(t)
		contacts, _ := doc.List("contacts")
		assert.Len(t, contacts, 4)
		rows, _ := doc.List("contacts_groups")
		assert.Len(t, rows, 3)
		for _, row := range rows {
			assert.NotEqual(t, "1", row.(map[string]interface{})["contactId"])
		}

		_, err = ts.DestroyByID(ctx, "groups", "1", nil)
		require.NoError(t, err)
		rows, _ = ts.stored(t).List("contacts_groups")
		assert.Len(t, rows, 2)
		for _, row := range rows {
			assert.NotEqual(t, "1", row.(map[string]interface{})["groupId"])
		}
	})

	t.Run("inline lists", func(t *testing.T) {
		ts := newTestService(t, fixture)
		_, err := ts.DestroyByID(ctx, "clubs", "1", nil)
		require.NoError(t, err)
		members, _ := ts.stored(t).List("members")
		for _, member := range members {
			assert.NotContains(t, member.(map[string]interface{})["clubs"], "1")
		}
		assertJSON(t, `["3"]`, members[0].(map[string]interface{})["clubs"])
		assertJSON(t, `[]`, members[4].(map[string]interface{})["clubs"])
	})

	t.Run("not found", func(t *testing.T) {
		ts := newTestService(t, fixture)
		outcome, err := ts.DestroyByID(ctx, "xxx", "1", nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, outcome.Code)
		outcome, err = ts.DestroyByID(ctx, "posts", "xxx", nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, outcome.Code)
		outcome, err = ts.DestroyByID(ctx, "object", "1", nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, outcome.Code)
		assert.Equal(t, 0, ts.driver.Saves())
	})

	t.Run("read values stay unchanged", func(t *testing.T) {
		ts := newTestService(t, fixture)
		comments := ts.Find("comments", Query{}).Data
		_, err := ts.DestroyByID(ctx, "posts", "1", nil)
		require.NoError(t, err)
		assertJSON(t, list(comment1), comments)
	})
}

func TestDestroyObject(t *testing.T) {
	ctx := context.Background()
	ts := newTestService(t, fixture)

	outcome, err := ts.DestroyObject(ctx, "object")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, outcome.Code)
	assertJSON(t, `{"f1": "foo"}`, outcome.Data)
	assert.False(t, ts.stored(t).Has("object"))

	outcome, err = ts.DestroyObject(ctx, "object")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, outcome.Code)

	outcome, err = ts.DestroyObject(ctx, "posts")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, outcome.Code)
}

func TestPostsAndComments(t *testing.T) {
	ctx := context.Background()
	ts := newTestService(t, `{"posts": [{"id": "1", "title": "a", "views": 100}], "comments": [{"id": "1", "postId": "1"}]}`)

	outcome := ts.Find("posts", query(t, "_embed=comments"))
	assertJSON(t, `[{"id": "1", "title": "a", "views": 100, "comments": [{"id": "1", "postId": "1"}]}]`, outcome.Data)

	_, err := ts.DestroyByID(ctx, "posts", "1", nil)
	require.NoError(t, err)
	assertJSON(t, `[{"id": "1", "postId": null}]`, ts.Find("comments", Query{}).Data)
}
