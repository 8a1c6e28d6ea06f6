package service

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/jsonserver/core"
	"github.com/relabs-tech/jsonserver/core/document"
	"github.com/relabs-tech/jsonserver/core/storage"
)

const fixture = `{
	"posts": [
		{"id": "1", "title": "a", "views": 100, "author": {"name": "foo"}, "tags": ["foo", "bar"]},
		{"id": "2", "title": "b", "views": 200, "author": {"name": "bar"}, "tags": ["bar"]},
		{"id": "3", "title": "c", "views": 300, "author": {"name": "baz"}, "tags": ["foo"]}
	],
	"comments": [{"id": "1", "title": "a", "postId": "1"}],
	"contacts": [
		{"id": "1", "name": "Bill", "mobile": "(555)1234-5678"},
		{"id": "2", "name": "Tracy", "mobile": "(555)1234-1123"},
		{"id": "3", "name": "Tina", "mobile": "(555)1234-9627"},
		{"id": "4", "name": "Ben", "mobile": "(555)1234-2389"},
		{"id": "5", "name": "Jack", "mobile": "(555)1234-6145"}
	],
	"groups": [
		{"id": "1", "name": "Collegue"},
		{"id": "2", "name": "Friend"},
		{"id": "3", "name": "Family"}
	],
	"contacts_groups": [
		{"id": "1", "contactId": "1", "groupId": "1"},
		{"id": "2", "contactId": "1", "groupId": "2"},
		{"id": "3", "contactId": "2", "groupId": "2"},
		{"id": "4", "contactId": "4", "groupId": "1"},
		{"id": "5", "contactId": "5", "groupId": "2"}
	],
	"members": [
		{"id": "1", "name": "Jackie", "clubs": ["1", "3"]},
		{"id": "2", "name": "Lexi", "clubs": ["2"]},
		{"id": "3", "name": "Michael", "clubs": ["2", "3"]},
		{"id": "4", "name": "Billy", "clubs": ["1", "2"]},
		{"id": "5", "name": "Jane", "clubs": ["1"]}
	],
	"clubs": [
		{"id": "1", "name": "Tennis"},
		{"id": "2", "name": "Swiming"},
		{"id": "3", "name": "Yuga"}
	],
	"users": [
		{"id": "1", "username": "User1", "password": "UserPass1", "token": "3604ab439517b1bc0161a8debd461d8461863b99"}
	],
	"object": {"f1": "foo"}
}`

type notification struct {
	resource  string
	operation core.Operation
	payload   string
}

type recordingNotifier struct {
	mutex         sync.Mutex
	notifications []notification
}

func (n *recordingNotifier) Notify(ctx context.Context, resource string, operation core.Operation, payload []byte) {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	n.notifications = append(n.notifications, notification{resource, operation, string(payload)})
}

func (n *recordingNotifier) all() []notification {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	return append([]notification{}, n.notifications...)
}

type testService struct {
	*Service
	driver   *storage.Memory
	notifier *recordingNotifier
}

func decodeDocument(t *testing.T, data string) document.Document {
	t.Helper()
	doc, err := storage.Decode([]byte(data))
	require.NoError(t, err)
	return doc
}

func newTestService(t *testing.T, data string) testService {
	t.Helper()
	driver := storage.NewMemory(decodeDocument(t, data))
	notifier := &recordingNotifier{}
	s, err := New(context.Background(), &Builder{Driver: driver, Notifier: notifier})
	require.NoError(t, err)
	return testService{Service: s, driver: driver, notifier: notifier}
}

func query(t *testing.T, raw string) Query {
	t.Helper()
	values, err := url.ParseQuery(raw)
	require.NoError(t, err)
	return NewQuery(values)
}

func assertJSON(t *testing.T, expected string, actual interface{}) {
	t.Helper()
	data, err := json.Marshal(actual)
	require.NoError(t, err)
	assert.JSONEq(t, expected, string(data))
}

// stored returns the document as it was last saved
func (ts testService) stored(t *testing.T) document.Document {
	t.Helper()
	doc, err := ts.driver.Load(context.Background())
	require.NoError(t, err)
	return doc
}

func TestNewNormalizesAndSaves(t *testing.T) {
	ts := newTestService(t, `{"posts": [{"id": 1}, {"title": "no id"}], "object": {}}`)
	assert.Equal(t, 1, ts.driver.Saves(), "normalized ids are saved")

	posts, _ := ts.stored(t).List("posts")
	assert.Equal(t, "1", posts[0].(map[string]interface{})["id"])
	generated, ok := posts[1].(map[string]interface{})["id"].(string)
	assert.True(t, ok)
	assert.NotEmpty(t, generated)

	ts = newTestService(t, `{"posts": [{"id": "1"}]}`)
	assert.Equal(t, 0, ts.driver.Saves(), "nothing to normalize")
}

func TestNewWithoutDriver(t *testing.T) {
	_, err := New(context.Background(), &Builder{})
	assert.Error(t, err)
}

type failingDriver struct {
	*storage.Memory
	loadErr error
}

func (d *failingDriver) Load(ctx context.Context) (document.Document, error) {
	if d.loadErr != nil {
		return nil, d.loadErr
	}
	return d.Memory.Load(ctx)
}

func TestReload(t *testing.T) {
	ctx := context.Background()
	driver := &failingDriver{Memory: storage.NewMemory(decodeDocument(t, `{"posts": [{"id": "1"}]}`))}
	s, err := New(ctx, &Builder{Driver: driver})
	require.NoError(t, err)

	// external change
	require.NoError(t, driver.Memory.Save(ctx, decodeDocument(t, `{"users": [{"name": "new"}]}`)))
	changed, err := s.Reload(ctx)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []string{"users"}, s.Resources())
	users, _ := s.Snapshot().List("users")
	assert.NotEmpty(t, users[0].(map[string]interface{})["id"], "reloaded documents are normalized")

	// a broken document keeps the last good one
	driver.loadErr = storage.ErrMalformed
	changed, err = s.Reload(ctx)
	assert.ErrorIs(t, err, storage.ErrMalformed)
	assert.False(t, changed)
	assert.Equal(t, []string{"users"}, s.Resources())

	// own writes are not a change
	driver.loadErr = storage.ErrUnchanged
	changed, err = s.Reload(ctx)
	assert.NoError(t, err)
	assert.False(t, changed)
}

func TestStatistics(t *testing.T) {
	ts := newTestService(t, `{"posts": [{"id": "1"}, {"id": "2"}], "profile": {"name": "x"}}`)
	assert.Equal(t, []ResourceStatistics{
		{Resource: "posts", Kind: "list", Count: 2},
		{Resource: "profile", Kind: "object", Count: 1},
	}, ts.Statistics())
}

func TestUsers(t *testing.T) {
	ts := newTestService(t, fixture)

	user, ok := ts.Login("User1", "UserPass1")
	require.True(t, ok)
	assert.Equal(t, "1", user["id"])
	_, ok = ts.Login("User1", "wrong")
	assert.False(t, ok)

	user, ok = ts.UserByToken("3604ab439517b1bc0161a8debd461d8461863b99")
	require.True(t, ok)
	assert.Equal(t, "User1", user["username"])
	_, ok = ts.UserByToken("")
	assert.False(t, ok)
	_, ok = ts.UserByToken("unknown")
	assert.False(t, ok)

	_, ok = ts.UserByID("1")
	assert.True(t, ok)
	_, ok = ts.UserByID("2")
	assert.False(t, ok)

	ts = newTestService(t, `{"posts": []}`)
	_, ok = ts.Login("User1", "UserPass1")
	assert.False(t, ok, "no users resource")
}

func TestPersistenceFaultKeepsDocument(t *testing.T) {
	ctx := context.Background()
	ts := newTestService(t, fixture)
	before := ts.Snapshot()
	failure := errors.New("disk full")
	ts.driver.FailWith(failure)

	_, err := ts.Create(ctx, "posts", document.Record{"title": "d"})
	assert.ErrorIs(t, err, failure)
	_, err = ts.DestroyByID(ctx, "posts", "1", nil)
	assert.ErrorIs(t, err, failure)
	_, err = ts.Update(ctx, "object", document.Record{"f1": "bar"})
	assert.ErrorIs(t, err, failure)

	assert.Equal(t, before, ts.Snapshot())
	assert.Empty(t, ts.notifier.all(), "failed mutations are not notified")
}

func TestNotifications(t *testing.T) {
	ctx := context.Background()
	ts := newTestService(t, fixture)

	_, err := ts.Create(ctx, "groups", document.Record{"id": "9", "name": "Club"})
	require.NoError(t, err)
	_, err = ts.PatchByID(ctx, "groups", "9", document.Record{"name": "Clubs"})
	require.NoError(t, err)
	_, err = ts.DestroyByID(ctx, "groups", "9", nil)
	require.NoError(t, err)
	// outcomes which are not successful do not notify
	_, err = ts.DestroyByID(ctx, "groups", "9", nil)
	require.NoError(t, err)

	notifications := ts.notifier.all()
	require.Len(t, notifications, 3)
	assert.Equal(t, core.OperationCreate, notifications[0].operation)
	assert.Equal(t, core.OperationUpdate, notifications[1].operation)
	assert.Equal(t, core.OperationDelete, notifications[2].operation)
	assert.Equal(t, "groups", notifications[2].resource)
	assert.JSONEq(t, `{"id": "9", "name": "Clubs"}`, notifications[2].payload)
}

func TestConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	ts := newTestService(t, `{"posts": [], "comments": []}`)

	const workers = 8
	const perWorker = 25
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				outcome, err := ts.Create(ctx, "posts", document.Record{"views": float64(i)})
				assert.NoError(t, err)
				assert.Equal(t, 201, outcome.Code)
				ts.Find("posts", Query{Sort: []string{"-views"}})
				ts.Find("posts", Query{Embed: []string{"comments"}})
			}
		}()
	}
	wg.Wait()

	outcome := ts.Find("posts", Query{})
	assert.Len(t, outcome.Data, workers*perWorker)
	posts, _ := ts.stored(t).List("posts")
	assert.Len(t, posts, workers*perWorker)
}
