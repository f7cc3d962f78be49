package apollo

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKeepsSourceOrder(t *testing.T) {
	t.Parallel()

	raw := `{
		"ROOT_QUERY": {"__typename": "Query"},
		"Book:b": {"title": "Second"},
		"Contributor:c": {"name": "Someone"},
		"Book:a": {"title": "First"}
	}`
	store, err := Parse([]byte(raw))
	require.NoError(t, err)
	key, node, ok := store.First("Book:", func(n Node) bool { return n.String("title") != "" })
	require.True(t, ok)
	assert.Equal(t, "Book:b", key)
	assert.Equal(t, "Second", node.String("title"))
}

func TestParseRepeatedKeyKeepsFirstPositionLastValue(t *testing.T) {
	t.Parallel()

	raw := `{
		"Book:a": {"title": "Early"},
		"Book:b": {"title": "Middle"},
		"Book:a": {"title": "Late", "title": "Latest"}
	}`
	store, err := Parse([]byte(raw))
	require.NoError(t, err)

	key, node, ok := store.First("Book:", func(n Node) bool { return n.String("title") != "" })
	require.True(t, ok)
	assert.Equal(t, "Book:a", key)
	assert.Equal(t, "Latest", node.String("title"))
}

func TestParseLoneSurrogateBecomesReplacement(t *testing.T) {
	t.Parallel()

	store, err := Parse([]byte(`{"Book:1": {"title": "cut \ud83d"}}`))
	require.NoError(t, err)
	assert.Equal(t, "cut \uFFFD", store.Get("Book:1").String("title"))
}

func TestParseRejectsNonObject(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte(`[1,2,3]`))
	assert.True(t, errors.Is(err, ErrNotObject))

	_, err = Parse([]byte(`null`))
	assert.True(t, errors.Is(err, ErrNotObject))

	_, err = Parse([]byte(`{"Book:1": {"title": `))
	assert.Error(t, err)
}

func TestParseNonObjectEntryBecomesEmptyNode(t *testing.T) {
	t.Parallel()

	store, err := Parse([]byte(`{"weird": 42, "Book:1": {"title": "x"}}`))
	require.NoError(t, err)
	node, ok := store.Lookup("weird")
	require.True(t, ok)
	assert.True(t, node.IsEmpty())
}

func TestResolve(t *testing.T) {
	t.Parallel()

	store, err := Parse([]byte(`{
		"Details:1": {"numPages": 412},
		"Work:1": {"details": {"__ref": "Details:1"}}
	}`))
	require.NoError(t, err)

	inline := store.Resolve(map[string]any{"numPages": float64(10)})
	assert.Equal(t, int64(10), inline.Int("numPages"))

	viaRef := store.Resolve(map[string]any{"__ref": "Details:1"})
	assert.Equal(t, int64(412), viaRef.Int("numPages"))

	work := store.Get("Work:1")
	assert.Equal(t, int64(412), store.ResolveField(work, "details").Int("numPages"))

	assert.True(t, store.Resolve(map[string]any{"__ref": "Missing:1"}).IsEmpty())
	assert.True(t, store.Resolve(nil).IsEmpty())
	assert.True(t, store.Resolve("scalar").IsEmpty())
	assert.True(t, store.ResolveField(work, "stats").IsEmpty())
}

func TestNodeAccessorsDefaults(t *testing.T) {
	t.Parallel()

	n := Node{
		"title":  "Dune",
		"rating": 4.25,
		"count":  float64(1000000),
		"tags":   []any{"a", "b"},
		"nested": map[string]any{"name": "x"},
		"wrong":  true,
	}
	assert.Equal(t, "Dune", n.String("title"))
	assert.Equal(t, "", n.String("missing"))
	assert.Equal(t, "", n.String("rating"))

	f, ok := n.Float("rating")
	assert.True(t, ok)
	assert.InDelta(t, 4.25, f, 1e-9)
	_, ok = n.Float("wrong")
	assert.False(t, ok)

	assert.Equal(t, int64(1000000), n.Int("count"))
	assert.Equal(t, int64(0), n.Int("missing"))
	assert.Len(t, n.List("tags"), 2)
	assert.Nil(t, n.List("title"))
	assert.Equal(t, "x", n.Object("nested").String("name"))
	assert.True(t, n.Object("title").IsEmpty())

	_, isRef := n.Ref()
	assert.False(t, isRef)
	_, isRef = Node{"__ref": ""}.Ref()
	assert.False(t, isRef)
}

func TestNilStoreIsSafe(t *testing.T) {
	t.Parallel()

	var s *Store
	assert.True(t, s.Get("Book:1").IsEmpty())
	_, _, ok := s.First("Book:", nil)
	assert.False(t, ok)
}

func TestFromNextData(t *testing.T) {
	t.Parallel()

	raw := `{"props":{"pageProps":{"apolloState":{"Book:1":{"title":"Dune"}}}},"page":"/book/show/[book_id]"}`
	store, err := FromNextData([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "Dune", store.Get("Book:1").String("title"))

	_, err = FromNextData([]byte(`{"props":{"pageProps":{}}}`))
	assert.True(t, errors.Is(err, ErrNoState))

	_, err = FromNextData([]byte(`{"props":{"pageProps":{"apolloState":"nope"}}}`))
	assert.True(t, errors.Is(err, ErrNotObject))

	_, err = FromNextData([]byte(`not json`))
	assert.Error(t, err)
}
