package resource

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/deadlock-data/wikicache/internal/cache"
	"github.com/deadlock-data/wikicache/internal/logging"
)

const heroLocator = "https://deadlock.wiki/Data:HeroData.json?action=raw"

func TestGetFetchesThenServesFromCache(t *testing.T) {
	fetcher := newStubFetcher()
	fetcher.respond(heroLocator, `{"a": 1, "b": [2,3]}`)
	c, dir := newTestCache(t, fetcher)

	first, err := c.Get(context.Background(), "hero_data", heroLocator, false)
	if err != nil {
		t.Fatalf("first get error: %v", err)
	}
	want := map[string]any{
		"a": json.Number("1"),
		"b": []any{json.Number("2"), json.Number("3")},
	}
	if !reflect.DeepEqual(first, want) {
		t.Fatalf("unexpected data: %#v", first)
	}

	onDisk := readEntry(t, filepath.Join(dir, "hero_data.json"))
	if !reflect.DeepEqual(onDisk, want) {
		t.Fatalf("cache entry mismatch: %#v", onDisk)
	}

	fetcher.disconnect()
	second, err := c.Get(context.Background(), "hero_data", heroLocator, false)
	if err != nil {
		t.Fatalf("second get should be served from disk: %v", err)
	}
	if !reflect.DeepEqual(second, want) {
		t.Fatalf("cached data mismatch: %#v", second)
	}
	if fetcher.calls != 1 {
		t.Fatalf("expected exactly one network call, got %d", fetcher.calls)
	}
}

func TestGetCacheHitIsIdempotent(t *testing.T) {
	fetcher := newStubFetcher()
	fetcher.respond(heroLocator, `[{"name": "Abrams"}, {"name": "Bebop"}]`)
	c, _ := newTestCache(t, fetcher)

	first, err := c.Get(context.Background(), "hero_data", heroLocator, false)
	if err != nil {
		t.Fatalf("populate error: %v", err)
	}
	for i := 0; i < 5; i++ {
		got, err := c.Get(context.Background(), "hero_data", heroLocator, false)
		if err != nil {
			t.Fatalf("get #%d error: %v", i, err)
		}
		if !reflect.DeepEqual(got, first) {
			t.Fatalf("get #%d returned different data: %#v", i, got)
		}
	}
	if fetcher.calls != 1 {
		t.Fatalf("expected a single network call, got %d", fetcher.calls)
	}
}

func TestResolveReportsCacheHit(t *testing.T) {
	fetcher := newStubFetcher()
	fetcher.respond(heroLocator, `{"ok": true}`)
	c, _ := newTestCache(t, fetcher)

	miss, err := c.Resolve(context.Background(), "hero_data", heroLocator, false)
	if err != nil {
		t.Fatalf("resolve error: %v", err)
	}
	if miss.CacheHit {
		t.Fatalf("first resolve should be a miss")
	}
	hit, err := c.Resolve(context.Background(), "hero_data", heroLocator, false)
	if err != nil {
		t.Fatalf("resolve error: %v", err)
	}
	if !hit.CacheHit {
		t.Fatalf("second resolve should be a hit")
	}
	if !bytes.Equal(hit.Raw, miss.Raw) {
		t.Fatalf("raw bytes should match:\n%s\n%s", hit.Raw, miss.Raw)
	}
}

func TestGetForceRefreshBypassesCache(t *testing.T) {
	fetcher := newStubFetcher()
	fetcher.respond(heroLocator, `{"version": 1}`)
	c, dir := newTestCache(t, fetcher)

	if _, err := c.Get(context.Background(), "hero_data", heroLocator, false); err != nil {
		t.Fatalf("populate error: %v", err)
	}

	fetcher.respond(heroLocator, `{"version": 2}`)
	got, err := c.Get(context.Background(), "hero_data", heroLocator, true)
	if err != nil {
		t.Fatalf("refresh error: %v", err)
	}
	want := map[string]any{"version": json.Number("2")}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("refresh should return new data, got %#v", got)
	}
	if fetcher.calls != 2 {
		t.Fatalf("force refresh must hit the network, calls=%d", fetcher.calls)
	}
	if onDisk := readEntry(t, filepath.Join(dir, "hero_data.json")); !reflect.DeepEqual(onDisk, want) {
		t.Fatalf("cache entry should be replaced, got %#v", onDisk)
	}
}

func TestGetForceRefreshWithoutEntry(t *testing.T) {
	fetcher := newStubFetcher()
	fetcher.respond(heroLocator, `"scalar"`)
	c, _ := newTestCache(t, fetcher)

	got, err := c.Get(context.Background(), "hero_data", heroLocator, true)
	if err != nil {
		t.Fatalf("refresh error: %v", err)
	}
	if got != "scalar" {
		t.Fatalf("unexpected data %#v", got)
	}
}

func TestFetchFailureLeavesCacheUntouched(t *testing.T) {
	fetcher := newStubFetcher()
	fetcher.fail(heroLocator, errors.New("connection refused"))
	c, dir := newTestCache(t, fetcher)

	_, err := c.Get(context.Background(), "hero_data", heroLocator, false)
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fetchErr.Name != "hero_data" || fetchErr.Locator != heroLocator {
		t.Fatalf("FetchError should carry name and locator: %+v", fetchErr)
	}
	assertNoEntry(t, dir, "hero_data")

	fetcher.respond(heroLocator, `{"a": 1}`)
	if _, err := c.Get(context.Background(), "hero_data", heroLocator, false); err != nil {
		t.Fatalf("later get should succeed after a failed attempt: %v", err)
	}
}

func TestFetchFailureKeepsPreviousEntry(t *testing.T) {
	fetcher := newStubFetcher()
	fetcher.respond(heroLocator, `{"version": 1}`)
	c, dir := newTestCache(t, fetcher)

	if _, err := c.Get(context.Background(), "hero_data", heroLocator, false); err != nil {
		t.Fatalf("populate error: %v", err)
	}
	fetcher.fail(heroLocator, errors.New("timeout"))

	if _, err := c.Get(context.Background(), "hero_data", heroLocator, true); err == nil {
		t.Fatalf("expected refresh failure")
	}
	want := map[string]any{"version": json.Number("1")}
	if onDisk := readEntry(t, filepath.Join(dir, "hero_data.json")); !reflect.DeepEqual(onDisk, want) {
		t.Fatalf("failed refresh must keep old content, got %#v", onDisk)
	}
}

func TestMalformedPayloadIsRejected(t *testing.T) {
	testCases := []struct {
		name string
		body string
	}{
		{"html page", "<!DOCTYPE html><html></html>"},
		{"truncated", `{"a": [1, 2`},
		{"empty", ""},
		{"trailing data", `{"a": 1} {"b": 2}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fetcher := newStubFetcher()
			fetcher.respond(heroLocator, tc.body)
			c, dir := newTestCache(t, fetcher)

			_, err := c.Get(context.Background(), "hero_data", heroLocator, false)
			var malformed *MalformedDataError
			if !errors.As(err, &malformed) {
				t.Fatalf("expected MalformedDataError, got %v", err)
			}
			if malformed.Name != "hero_data" {
				t.Fatalf("error should carry the name: %+v", malformed)
			}
			assertNoEntry(t, dir, "hero_data")
		})
	}
}

func TestMalformedDataErrorCarriesOffset(t *testing.T) {
	fetcher := newStubFetcher()
	fetcher.respond(heroLocator, `{"a": x}`)
	c, _ := newTestCache(t, fetcher)

	_, err := c.Get(context.Background(), "hero_data", heroLocator, false)
	var malformed *MalformedDataError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedDataError, got %v", err)
	}
	if malformed.Offset <= 0 {
		t.Fatalf("expected a parse offset, got %d", malformed.Offset)
	}
}

func TestPersistenceFailureOnWrite(t *testing.T) {
	fetcher := newStubFetcher()
	fetcher.respond(heroLocator, `{"a": 1}`)
	store := &failingStore{putErr: errors.New("disk full")}
	c, err := NewCache(store, fetcher, discardLogger(t))
	if err != nil {
		t.Fatalf("NewCache error: %v", err)
	}

	_, err = c.Get(context.Background(), "hero_data", heroLocator, false)
	var persistErr *PersistenceError
	if !errors.As(err, &persistErr) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}
	if persistErr.Op != "write" {
		t.Fatalf("unexpected op %s", persistErr.Op)
	}
}

func TestPersistenceFailureOnDirectory(t *testing.T) {
	store := &failingStore{dirErr: errors.New("permission denied")}
	fetcher := newStubFetcher()
	c, err := NewCache(store, fetcher, discardLogger(t))
	if err != nil {
		t.Fatalf("NewCache error: %v", err)
	}

	_, err = c.Get(context.Background(), "hero_data", heroLocator, false)
	var persistErr *PersistenceError
	if !errors.As(err, &persistErr) || persistErr.Op != "mkdir" {
		t.Fatalf("expected mkdir PersistenceError, got %v", err)
	}
	if fetcher.calls != 0 {
		t.Fatalf("no fetch should happen when storage is unavailable")
	}
}

func TestFetchPathCreatesDirectoryOnce(t *testing.T) {
	fetcher := newStubFetcher()
	fetcher.respond(heroLocator, `{"a": 1}`)
	inner, err := cache.NewStore(filepath.Join(t.TempDir(), "cache"))
	if err != nil {
		t.Fatalf("store error: %v", err)
	}
	store := &countingStore{Store: inner}
	c, err := NewCache(store, fetcher, discardLogger(t))
	if err != nil {
		t.Fatalf("NewCache error: %v", err)
	}

	if _, err := c.Get(context.Background(), "hero_data", heroLocator, false); err != nil {
		t.Fatalf("get error: %v", err)
	}
	if store.ensureCalls != 1 || store.putCalls != 1 {
		t.Fatalf("expected one mkdir and one write, got mkdir=%d write=%d", store.ensureCalls, store.putCalls)
	}

	if _, err := c.Get(context.Background(), "hero_data", heroLocator, false); err != nil {
		t.Fatalf("second get error: %v", err)
	}
	if store.ensureCalls != 2 || store.putCalls != 1 {
		t.Fatalf("cache hit should not write, got mkdir=%d write=%d", store.ensureCalls, store.putCalls)
	}
}

func TestCorruptEntryIsPersistenceError(t *testing.T) {
	fetcher := newStubFetcher()
	c, dir := newTestCache(t, fetcher)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir error: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "hero_data.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write error: %v", err)
	}

	_, err := c.Get(context.Background(), "hero_data", heroLocator, false)
	var persistErr *PersistenceError
	if !errors.As(err, &persistErr) || persistErr.Op != "decode" {
		t.Fatalf("expected decode PersistenceError, got %v", err)
	}
	if fetcher.calls != 0 {
		t.Fatalf("a corrupt entry must not trigger an implicit fetch")
	}

	fetcher.respond(heroLocator, `{"fixed": true}`)
	if _, err := c.Get(context.Background(), "hero_data", heroLocator, true); err != nil {
		t.Fatalf("force refresh should repair a corrupt entry: %v", err)
	}
}

func TestGetRejectsInvalidInput(t *testing.T) {
	fetcher := newStubFetcher()
	c, _ := newTestCache(t, fetcher)

	if _, err := c.Get(context.Background(), "../escape", heroLocator, false); !errors.Is(err, cache.ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
	if _, err := c.Get(context.Background(), "hero_data", "", false); !errors.Is(err, ErrEmptyLocator) {
		t.Fatalf("expected ErrEmptyLocator, got %v", err)
	}
	if fetcher.calls != 0 {
		t.Fatalf("invalid input must not reach the network")
	}
}

func TestEntryFormatting(t *testing.T) {
	fetcher := newStubFetcher()
	fetcher.respond(heroLocator, `{"name":"Lady <Geist> & co","price":1.50,"big":12345678901234567890}`)
	c, dir := newTestCache(t, fetcher)

	if _, err := c.Get(context.Background(), "hero_data", heroLocator, false); err != nil {
		t.Fatalf("get error: %v", err)
	}
	body, err := os.ReadFile(filepath.Join(dir, "hero_data.json"))
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	want := "{\n  \"name\": \"Lady <Geist> & co\",\n  \"price\": 1.50,\n  \"big\": 12345678901234567890\n}\n"
	if string(body) != want {
		t.Fatalf("unexpected entry formatting:\n%s", body)
	}
}

func TestEntryKeepsRemoteKeyOrder(t *testing.T) {
	fetcher := newStubFetcher()
	fetcher.respond(heroLocator, "  {\"zeta\": 1, \"alpha\": {\"y\": [3, 1], \"b\": true}, \"mid\": null}\n\n")
	c, dir := newTestCache(t, fetcher)

	result, err := c.Resolve(context.Background(), "hero_data", heroLocator, false)
	if err != nil {
		t.Fatalf("resolve error: %v", err)
	}
	body, err := os.ReadFile(filepath.Join(dir, "hero_data.json"))
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	want := `{
  "zeta": 1,
  "alpha": {
    "y": [
      3,
      1
    ],
    "b": true
  },
  "mid": null
}
`
	if string(body) != want {
		t.Fatalf("entry should keep remote key order, got:\n%s", body)
	}
	if string(result.Raw) != want {
		t.Fatalf("Raw should match the entry on disk, got:\n%s", result.Raw)
	}

	decoded, err := Decode(body)
	if err != nil {
		t.Fatalf("entry should decode: %v", err)
	}
	if !reflect.DeepEqual(decoded, result.Data) {
		t.Fatalf("entry content differs from returned data: %#v vs %#v", decoded, result.Data)
	}
}

func TestNewCacheRequiresCollaborators(t *testing.T) {
	store, err := cache.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("store error: %v", err)
	}
	if _, err := NewCache(nil, newStubFetcher(), nil); err == nil {
		t.Fatalf("missing store should fail")
	}
	if _, err := NewCache(store, nil, nil); err == nil {
		t.Fatalf("missing fetcher should fail")
	}
}

// stubFetcher 按 locator 返回固定正文或错误，并记录调用次数。
type stubFetcher struct {
	bodies       map[string]string
	errs         map[string]error
	calls        int
	disconnected bool
}

func newStubFetcher() *stubFetcher {
	return &stubFetcher{
		bodies: map[string]string{},
		errs:   map[string]error{},
	}
}

func (f *stubFetcher) respond(locator, body string) {
	delete(f.errs, locator)
	f.bodies[locator] = body
}

func (f *stubFetcher) fail(locator string, err error) {
	delete(f.bodies, locator)
	f.errs[locator] = err
}

func (f *stubFetcher) disconnect() { f.disconnected = true }

func (f *stubFetcher) Fetch(_ context.Context, locator string) ([]byte, error) {
	f.calls++
	if f.disconnected {
		return nil, errors.New("network disconnected")
	}
	if err, ok := f.errs[locator]; ok {
		return nil, err
	}
	body, ok := f.bodies[locator]
	if !ok {
		return nil, errors.New("no stub for " + locator)
	}
	return []byte(body), nil
}

// failingStore 用于模拟磁盘不可写。
type failingStore struct {
	dirErr error
	putErr error
}

func (s *failingStore) EnsureDir() error { return s.dirErr }

func (s *failingStore) Get(context.Context, string) (*cache.ReadResult, error) {
	return nil, cache.ErrNotFound
}

func (s *failingStore) Stat(context.Context, string) (*cache.Entry, error) {
	return nil, cache.ErrNotFound
}

func (s *failingStore) Put(_ context.Context, _ string, body io.Reader) (*cache.Entry, error) {
	_, _ = io.Copy(io.Discard, body)
	return nil, s.putErr
}

// countingStore 统计目录创建与写入次数。
type countingStore struct {
	cache.Store
	ensureCalls int
	putCalls    int
}

func (s *countingStore) EnsureDir() error {
	s.ensureCalls++
	return s.Store.EnsureDir()
}

func (s *countingStore) Put(ctx context.Context, name string, body io.Reader) (*cache.Entry, error) {
	s.putCalls++
	return s.Store.Put(ctx, name, body)
}

func newTestCache(t *testing.T, fetcher Fetcher) (*Cache, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "cache")
	store, err := cache.NewStore(dir)
	if err != nil {
		t.Fatalf("store error: %v", err)
	}
	c, err := NewCache(store, fetcher, discardLogger(t))
	if err != nil {
		t.Fatalf("NewCache error: %v", err)
	}
	return c, dir
}

func discardLogger(t *testing.T) *logrus.Logger {
	t.Helper()
	logger, err := logging.NewWithWriter("debug", io.Discard)
	if err != nil {
		t.Fatalf("logger error: %v", err)
	}
	return logger
}

func readEntry(t *testing.T, path string) any {
	t.Helper()
	body, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read entry error: %v", err)
	}
	data, err := Decode(body)
	if err != nil {
		t.Fatalf("decode entry error: %v", err)
	}
	return data
}

func assertNoEntry(t *testing.T, dir, name string) {
	t.Helper()
	if _, err := os.Stat(filepath.Join(dir, name+".json")); !os.IsNotExist(err) {
		t.Fatalf("no cache entry expected for %s, stat err=%v", name, err)
	}
	files, _ := os.ReadDir(dir)
	for _, f := range files {
		if strings.HasPrefix(f.Name(), ".wikicache-") {
			t.Fatalf("temp file left behind: %s", f.Name())
		}
	}
}
