package drive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/custodia-labs/archivist/internal/connectors/google"
	"github.com/custodia-labs/archivist/internal/core/domain"
)

type fakeItem struct {
	file    drive.File
	content []byte
}

// fakeDrive is an in-memory Drive v3 API serving the subset the store uses.
type fakeDrive struct {
	mu       sync.Mutex
	items    map[string]*fakeItem
	nextID   int
	exports  map[string][]byte // id/mime -> body
	pending  map[string]int    // id -> empty exports before the body appears
	fail     map[string]int    // method+route -> status to reply once
	ocrLangs []string
	requests int
}

func newFakeDrive() *fakeDrive {
	return &fakeDrive{
		items:   make(map[string]*fakeItem),
		exports: make(map[string][]byte),
		pending: make(map[string]int),
		fail:    make(map[string]int),
	}
}

func (f *fakeDrive) add(parent, name, mimeType string, content []byte) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addLocked(parent, name, mimeType, content)
}

func (f *fakeDrive) addLocked(parent, name, mimeType string, content []byte) string {
	f.nextID++
	id := fmt.Sprintf("id%03d", f.nextID)
	item := &fakeItem{
		file: drive.File{
			Id:           id,
			Name:         name,
			MimeType:     mimeType,
			Size:         int64(len(content)),
			ModifiedTime: "2025-03-04T05:06:07Z",
		},
		content: content,
	}
	if parent != "" {
		item.file.Parents = []string{parent}
	}
	f.items[id] = item
	return id
}

func (f *fakeDrive) item(id string) *fakeItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items[id]
}

func (f *fakeDrive) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests++

	path := r.URL.Path
	idx := strings.Index(path, "/files")
	if idx < 0 {
		http.NotFound(w, r)
		return
	}
	rest := strings.Trim(path[idx+len("/files"):], "/")
	parts := strings.Split(rest, "/")
	route := r.Method + " " + rest
	if len(parts) == 2 {
		route = r.Method + " " + parts[1]
	}
	if status, ok := f.fail[route]; ok {
		delete(f.fail, route)
		w.Header().Set("Retry-After", "1")
		writeError(w, status, "injected")
		return
	}

	switch {
	case strings.Contains(path, "/upload/") && r.Method == http.MethodPost:
		f.upload(w, r)
	case rest == "" && r.Method == http.MethodGet:
		f.list(w, r)
	case rest == "" && r.Method == http.MethodPost:
		var meta drive.File
		if err := json.NewDecoder(r.Body).Decode(&meta); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		f.create(w, &meta, nil)
	case len(parts) == 1 && r.Method == http.MethodGet:
		f.get(w, r, parts[0])
	case len(parts) == 1 && r.Method == http.MethodPatch:
		f.patch(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "copy" && r.Method == http.MethodPost:
		f.copy(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "export" && r.Method == http.MethodGet:
		f.export(w, r, parts[0])
	default:
		writeError(w, http.StatusNotImplemented, route)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"code": status, "message": msg},
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeDrive) list(w http.ResponseWriter, r *http.Request) {
	match, err := parseQuery(r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var hits []*drive.File
	for _, item := range f.items {
		if match(item) {
			file := item.file
			hits = append(hits, &file)
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Name < hits[j].Name })

	offset, _ := strconv.Atoi(r.URL.Query().Get("pageToken"))
	size, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))
	if size <= 0 {
		size = 100
	}
	end := min(offset+size, len(hits))
	page := &drive.FileList{Files: hits[offset:end]}
	if end < len(hits) {
		page.NextPageToken = strconv.Itoa(end)
	}
	writeJSON(w, page)
}

// parseQuery understands the clauses the store generates, joined by "and".
func parseQuery(q string) (func(*fakeItem) bool, error) {
	var preds []func(*fakeItem) bool
	for _, clause := range strings.Split(q, " and ") {
		clause = strings.TrimSpace(clause)
		switch {
		case strings.HasSuffix(clause, " in parents"):
			parent := unquote(strings.TrimSuffix(clause, " in parents"))
			preds = append(preds, func(it *fakeItem) bool {
				return len(it.file.Parents) > 0 && it.file.Parents[0] == parent
			})
		case clause == "trashed = false":
			preds = append(preds, func(it *fakeItem) bool { return !it.file.Trashed })
		case strings.HasPrefix(clause, "mimeType != "):
			m := unquote(strings.TrimPrefix(clause, "mimeType != "))
			preds = append(preds, func(it *fakeItem) bool { return it.file.MimeType != m })
		case strings.HasPrefix(clause, "mimeType = "):
			m := unquote(strings.TrimPrefix(clause, "mimeType = "))
			preds = append(preds, func(it *fakeItem) bool { return it.file.MimeType == m })
		case strings.HasPrefix(clause, "name = "):
			n := unquote(strings.TrimPrefix(clause, "name = "))
			preds = append(preds, func(it *fakeItem) bool { return it.file.Name == n })
		default:
			return nil, fmt.Errorf("unsupported clause %q", clause)
		}
	}
	return func(it *fakeItem) bool {
		for _, p := range preds {
			if !p(it) {
				return false
			}
		}
		return true
	}, nil
}

func unquote(s string) string {
	s = strings.TrimSuffix(strings.TrimPrefix(s, "'"), "'")
	return strings.NewReplacer(`\'`, `'`, `\\`, `\`).Replace(s)
}

func (f *fakeDrive) get(w http.ResponseWriter, r *http.Request, id string) {
	item, ok := f.items[id]
	if !ok {
		writeError(w, http.StatusNotFound, "File not found: "+id)
		return
	}
	if r.URL.Query().Get("alt") == "media" {
		_, _ = w.Write(item.content)
		return
	}
	writeJSON(w, &item.file)
}

func (f *fakeDrive) patch(w http.ResponseWriter, r *http.Request, id string) {
	item, ok := f.items[id]
	if !ok {
		writeError(w, http.StatusNotFound, "File not found: "+id)
		return
	}
	var patch map[string]any
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if v, ok := patch["trashed"].(bool); ok {
		item.file.Trashed = v
	}
	if v, ok := patch["description"].(string); ok {
		item.file.Description = v
	}
	writeJSON(w, &item.file)
}

func (f *fakeDrive) copy(w http.ResponseWriter, r *http.Request, id string) {
	src, ok := f.items[id]
	if !ok {
		writeError(w, http.StatusNotFound, "File not found: "+id)
		return
	}
	var meta drive.File
	if err := json.NewDecoder(r.Body).Decode(&meta); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	parent := ""
	if len(meta.Parents) > 0 {
		parent = meta.Parents[0]
	}
	newID := f.addLocked(parent, meta.Name, src.file.MimeType, src.content)
	writeJSON(w, &f.items[newID].file)
}

func (f *fakeDrive) export(w http.ResponseWriter, r *http.Request, id string) {
	item, ok := f.items[id]
	if !ok || item.file.Trashed {
		writeError(w, http.StatusNotFound, "File not found: "+id)
		return
	}
	if f.pending[id] > 0 {
		f.pending[id]--
		return
	}
	mimeType := r.URL.Query().Get("mimeType")
	if body, ok := f.exports[id+"/"+mimeType]; ok {
		_, _ = w.Write(body)
		return
	}
	if mimeType == ExportMimeText && item.file.MimeType == domain.MimeNativeDocument {
		_, _ = w.Write([]byte(utf8BOM))
		_, _ = w.Write(item.content)
		return
	}
	writeError(w, http.StatusBadRequest, "export not available")
}

func (f *fakeDrive) upload(w http.ResponseWriter, r *http.Request) {
	if lang := r.URL.Query().Get("ocrLanguage"); lang != "" {
		f.ocrLangs = append(f.ocrLangs, lang)
	}
	mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		writeError(w, http.StatusBadRequest, "expected multipart upload")
		return
	}
	mr := multipart.NewReader(r.Body, params["boundary"])

	var meta drive.File
	part, err := mr.NextPart()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := json.NewDecoder(part).Decode(&meta); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	part, err = mr.NextPart()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	content, err := io.ReadAll(part)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	f.create(w, &meta, content)
}

func (f *fakeDrive) create(w http.ResponseWriter, meta *drive.File, content []byte) {
	parent := ""
	if len(meta.Parents) > 0 {
		parent = meta.Parents[0]
	}
	id := f.addLocked(parent, meta.Name, meta.MimeType, content)
	writeJSON(w, &f.items[id].file)
}

// newTestService starts the fake and returns a Drive client pointed at it.
func newTestService(t *testing.T) (*fakeDrive, *drive.Service) {
	t.Helper()
	fake := newFakeDrive()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	svc, err := drive.NewService(context.Background(),
		option.WithHTTPClient(srv.Client()),
		option.WithEndpoint(srv.URL+"/drive/v3/"),
	)
	require.NoError(t, err)
	return fake, svc
}

func fastLimiter() *google.RateLimiter {
	return google.NewRateLimiterWithConfig(google.RateLimitConfig{RequestsPerSecond: 1000, BurstSize: 1000})
}
