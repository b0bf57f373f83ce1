package hosted

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// fakeRest — минимальный PostgREST-подобный сервер в памяти для тестов адаптера.
// Поддерживает ровно то, чем пользуется адаптер: select/order/limit, id=eq.*,
// Prefer: return=representation, проверку ключа, 22P02 для id не в формате UUID
// и принудительные ошибки.
type fakeRest struct {
	t   *testing.T
	key string

	mu     sync.Mutex
	tables map[string][]map[string]any
	clock  time.Time
	// failNext — если задан, следующий запрос получит этот статус.
	failNext int
	requests []string
}

const tsLayout = "2006-01-02T15:04:05.000000Z07:00"

const preferRepresentation = "return=representation"

func newFakeRest(t *testing.T, key string) (*fakeRest, *httptest.Server) {
	t.Helper()

	f := &fakeRest{
		t:      t,
		key:    key,
		tables: map[string][]map[string]any{},
		clock:  time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}

	r := chi.NewRouter()
	r.Route("/rest/v1/{table}", func(r chi.Router) {
		r.Use(f.auth)
		r.Get("/", f.list)
		r.Post("/", f.insert)
		r.Patch("/", f.update)
		r.Delete("/", f.delete)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return f, srv
}

func (f *fakeRest) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.requests = append(f.requests, r.Method+" "+chi.URLParam(r, "table"))
		fail := f.failNext
		f.failNext = 0
		f.mu.Unlock()

		if r.Header.Get("apikey") != f.key || r.Header.Get("Authorization") != "Bearer "+f.key {
			writeErr(w, http.StatusUnauthorized, "PGRST301", "Invalid API key")
			return
		}
		if fail != 0 {
			writeErr(w, fail, "XX000", "forced failure")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeErr(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"code": code, "message": msg, "details": nil, "hint": nil})
}

func writeRows(w http.ResponseWriter, status int, rows []map[string]any) {
	if rows == nil {
		rows = []map[string]any{}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(rows)
}

func (f *fakeRest) tick() string {
	f.clock = f.clock.Add(time.Second)
	return f.clock.Format(tsLayout)
}

func (f *fakeRest) list(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")

	f.mu.Lock()
	rows := append([]map[string]any(nil), f.tables[table]...)
	f.mu.Unlock()

	if order := r.URL.Query().Get("order"); order != "" {
		field, dir, _ := strings.Cut(order, ".")
		sort.SliceStable(rows, func(i, j int) bool {
			a, _ := rows[i][field].(string)
			b, _ := rows[j][field].(string)
			if strings.HasPrefix(dir, "desc") {
				return a > b
			}
			return a < b
		})
	}
	if l := r.URL.Query().Get("limit"); l != "" {
		n, _ := strconv.Atoi(l)
		if n < len(rows) {
			rows = rows[:n]
		}
	}

	writeRows(w, http.StatusOK, rows)
}

func (f *fakeRest) insert(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")

	var batch []map[string]any
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		writeErr(w, http.StatusBadRequest, "PGRST102", "invalid body")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]map[string]any, 0, len(batch))
	for _, row := range batch {
		row["id"] = uuid.NewString()
		ts := f.tick()
		if table == "incident_reports" {
			row["date_reported"] = ts
		} else {
			row["created_at"] = ts
		}
		row["updated_at"] = ts
		f.tables[table] = append(f.tables[table], row)
		out = append(out, row)
	}

	if r.Header.Get("Prefer") != preferRepresentation {
		w.WriteHeader(http.StatusCreated)
		return
	}
	writeRows(w, http.StatusCreated, out)
}

// idFilter достаёт id из фильтра id=eq.<id>. Как и колонка UUID в Postgres,
// отвечает 22P02 на id не в формате UUID.
func idFilter(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimPrefix(r.URL.Query().Get("id"), "eq.")
	if _, err := uuid.Parse(id); err != nil {
		writeErr(w, http.StatusBadRequest, "22P02", `invalid input syntax for type uuid: "`+id+`"`)
		return "", false
	}

	return id, true
}

func (f *fakeRest) update(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	id, ok := idFilter(w, r)
	if !ok {
		return
	}

	var patch map[string]any
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeErr(w, http.StatusBadRequest, "PGRST102", "invalid body")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	var out []map[string]any
	for _, row := range f.tables[table] {
		if row["id"] == id {
			for k, v := range patch {
				row[k] = v
			}
			out = append(out, row)
		}
	}

	writeRows(w, http.StatusOK, out)
}

func (f *fakeRest) delete(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	id, ok := idFilter(w, r)
	if !ok {
		return
	}

	f.mu.Lock()
	rows := f.tables[table][:0]
	for _, row := range f.tables[table] {
		if row["id"] != id {
			rows = append(rows, row)
		}
	}
	f.tables[table] = rows
	f.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func (f *fakeRest) failWith(status int) {
	f.mu.Lock()
	f.failNext = status
	f.mu.Unlock()
}

func (f *fakeRest) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeRest) rowCount(table string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tables[table])
}
