package writeback

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/config"
	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/logging"
	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/models"
)

type fakeGlide struct {
	mu        sync.Mutex
	pages     [][]map[string]any
	queries   []query
	mutations []mutation
	fail      bool
}

func (f *fakeGlide) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r.Header.Get("Authorization") != "Bearer gk" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	switch r.URL.Path {
	case "/queryTables":
		var body struct {
			Queries []query `json:"queries"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		q := body.Queries[0]
		f.queries = append(f.queries, q)
		page := 0
		if q.StartAt != "" {
			page = int(q.StartAt[0] - '0')
		}
		res := queryResult{Rows: f.pages[page]}
		if page+1 < len(f.pages) {
			res.Next = string(rune('0' + page + 1))
		}
		_ = json.NewEncoder(w).Encode([]queryResult{res})
	case "/mutateTables":
		if f.fail {
			http.Error(w, "bad column", http.StatusBadRequest)
			return
		}
		var body struct {
			AppID     string     `json:"appID"`
			Mutations []mutation `json:"mutations"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mutations = append(f.mutations, body.Mutations...)
		_, _ = w.Write([]byte(`[{}]`))
	default:
		http.NotFound(w, r)
	}
}

func newGlide(t *testing.T, fake *fakeGlide) *Glide {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	g, err := NewGlide(config.Glide{
		APIKey:         "gk",
		AppID:          "app",
		BaseURL:        srv.URL,
		ResponsesTable: "native-table-zai",
		ColRFQID:       "usIzP",
	}, srv.Client(), logging.Discard())
	require.NoError(t, err)
	return g
}

func TestGlideUpdatesExistingRowOnLaterPage(t *testing.T) {
	fake := &fakeGlide{pages: [][]map[string]any{
		{{"$rowID": "g-1", "usIzP": "rfq-1"}},
		{{"$rowID": "g-2", "usIzP": "rfq-2"}},
	}}
	g := newGlide(t, fake)

	require.NoError(t, g.Upsert(context.Background(), "rfq-2", map[string]string{"hK56D": "summary"}))

	assert.Len(t, fake.queries, 2)
	assert.Equal(t, "1", fake.queries[1].StartAt)
	require.Len(t, fake.mutations, 1)
	assert.Equal(t, mutation{
		Kind:         "set-columns-in-row",
		TableName:    "native-table-zai",
		RowID:        "g-2",
		ColumnValues: map[string]string{"hK56D": "summary"},
	}, fake.mutations[0])
}

func TestGlideAddsRowWhenKeyIsNew(t *testing.T) {
	fake := &fakeGlide{pages: [][]map[string]any{{{"$rowID": "g-1", "usIzP": "rfq-1"}}}}
	g := newGlide(t, fake)

	cols := map[string]string{"dwtEW": "INR 120"}
	require.NoError(t, g.Upsert(context.Background(), "rfq-9", cols))

	require.Len(t, fake.mutations, 1)
	m := fake.mutations[0]
	assert.Equal(t, "add-row-to-table", m.Kind)
	assert.Empty(t, m.RowID)
	assert.Equal(t, map[string]string{"dwtEW": "INR 120", "usIzP": "rfq-9"}, m.ColumnValues)
	assert.NotContains(t, cols, "usIzP")
}

func TestGlideSurfacesErrors(t *testing.T) {
	fake := &fakeGlide{pages: [][]map[string]any{{}}, fail: true}
	g := newGlide(t, fake)

	err := g.Upsert(context.Background(), "rfq-1", map[string]string{"x": "y"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestNewGlideRequiresCredentials(t *testing.T) {
	_, err := NewGlide(config.Glide{AppID: "app"}, nil, nil)
	assert.ErrorIs(t, err, models.ErrAuth)
}
