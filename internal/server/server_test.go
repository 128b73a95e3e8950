// Integration tests for the item service gRPC server
package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/nainya/itemstore/internal/logger"
	"github.com/nainya/itemstore/internal/metrics"
	"github.com/nainya/itemstore/pkg/index"
	"github.com/nainya/itemstore/pkg/item"
)

const bufSize = 1024 * 1024

func setupTestServer(t *testing.T, withIndex bool) (*Server, *ItemServiceClient, *metrics.Metrics, func()) {
	dir := t.TempDir()
	log := logger.NewLogger(logger.Config{Level: "error", Output: io.Discard})
	m := metrics.NewMetrics(prometheus.NewRegistry())

	opts := Options{
		Location:  filepath.Join(dir, "corpus"),
		CacheName: "people",
		Logger:    log,
		Metrics:   m,
	}
	if withIndex {
		idx, err := index.Open(context.Background(), filepath.Join(dir, "index.db"))
		if err != nil {
			t.Fatalf("Failed to open index: %v", err)
		}
		opts.Index = idx
	}

	server, err := NewServer(opts)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}

	// Create a new listener for this test
	lis := bufconn.Listen(bufSize)

	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(GrpcMetricsInterceptor(m, log)))
	RegisterItemServiceServer(grpcServer, server)

	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			// Server closed is expected during cleanup
		}
	}()

	bufDialer := func(context.Context, string) (net.Conn, error) {
		return lis.Dial()
	}

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(bufDialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("Failed to dial bufnet: %v", err)
	}

	cleanup := func() {
		conn.Close()
		grpcServer.Stop()
		lis.Close()
		server.Close()
	}

	return server, NewItemServiceClient(conn), m, cleanup
}

func mustStruct(t *testing.T, m map[string]interface{}) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	if err != nil {
		t.Fatalf("Failed to build struct: %v", err)
	}
	return s
}

func personWire(t *testing.T, name, age string) *structpb.Struct {
	t.Helper()
	b := item.NewAt(1000)
	b.SetText("name", name)
	b.SetText("age", age)
	b.SetComparators([]string{"name", "age"})
	s, err := BagToStruct(b)
	if err != nil {
		t.Fatalf("Failed to encode bag: %v", err)
	}
	return s
}

func persistPerson(t *testing.T, client *ItemServiceClient, name, age string) string {
	t.Helper()
	resp, err := client.Persist(context.Background(), &structpb.Struct{Fields: map[string]*structpb.Value{
		"bag": structpb.NewStructValue(personWire(t, name, age)),
	}})
	if err != nil {
		t.Fatalf("Failed to persist %s: %v", name, err)
	}
	id := resp.GetFields()["identifier"].GetStringValue()
	if id == "" {
		t.Fatalf("Expected identifier for %s", name)
	}
	return id
}

func TestPersistAndLoad(t *testing.T) {
	_, client, _, cleanup := setupTestServer(t, false)
	defer cleanup()

	id := persistPerson(t, client, "Alice", "30")

	resp, err := client.Load(context.Background(), mustStruct(t, map[string]interface{}{"identifier": id}))
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}

	b, err := BagFromStruct(resp.GetFields()["bag"].GetStructValue())
	if err != nil {
		t.Fatalf("Failed to decode bag: %v", err)
	}
	if b.CreatedAt() != 1000 {
		t.Errorf("Expected created 1000, got %d", b.CreatedAt())
	}
	v, ok := b.Get("people." + id + ".name")
	if !ok {
		t.Fatalf("Expected qualified name attribute, got %v", b.Names())
	}
	if s, _ := v.AsText(); s != "Alice" {
		t.Errorf("Expected Alice, got %s", s)
	}
	if _, err := b.ComparatorHash(); err != nil {
		t.Errorf("Expected comparator hash: %v", err)
	}
}

func TestLoadMissing(t *testing.T) {
	_, client, _, cleanup := setupTestServer(t, false)
	defer cleanup()

	_, err := client.Load(context.Background(), mustStruct(t, map[string]interface{}{"identifier": "nope"}))
	if status.Code(err) != codes.NotFound {
		t.Fatalf("Expected NotFound, got %v", err)
	}

	_, err = client.Load(context.Background(), mustStruct(t, nil))
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("Expected InvalidArgument, got %v", err)
	}
}

func TestPersistRejectsInvalidBag(t *testing.T) {
	_, client, _, cleanup := setupTestServer(t, false)
	defer cleanup()

	noComparators := mustStruct(t, map[string]interface{}{
		"attributes": map[string]interface{}{"name": "x"},
	})
	_, err := client.Persist(context.Background(), &structpb.Struct{Fields: map[string]*structpb.Value{
		"bag": structpb.NewStructValue(noComparators),
	}})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("Expected InvalidArgument, got %v", err)
	}

	_, err = client.Persist(context.Background(), mustStruct(t, nil))
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("Expected InvalidArgument for missing bag, got %v", err)
	}
}

func TestMatch(t *testing.T) {
	_, client, m, cleanup := setupTestServer(t, false)
	defer cleanup()

	alice := persistPerson(t, client, "Alice", "30")
	persistPerson(t, client, "Bob", "40")

	resp, err := client.Match(context.Background(), &structpb.Struct{Fields: map[string]*structpb.Value{
		"bag": structpb.NewStructValue(personWire(t, "Alice", "30")),
	}})
	if err != nil {
		t.Fatalf("Failed to match: %v", err)
	}

	ids := resp.GetFields()["identifiers"].GetListValue().GetValues()
	if len(ids) != 1 || ids[0].GetStringValue() != alice {
		t.Fatalf("Expected only %s, got %v", alice, ids)
	}
	if got := testutil.ToFloat64(m.MatchQueriesTotal); got != 1 {
		t.Errorf("Expected 1 match query, got %v", got)
	}
}

func TestDataDictionaryCache(t *testing.T) {
	server, client, _, cleanup := setupTestServer(t, false)
	defer cleanup()

	persistPerson(t, client, "Alice", "30")

	resp, err := client.DataDictionary(context.Background(), mustStruct(t, nil))
	if err != nil {
		t.Fatalf("Failed to build dictionary: %v", err)
	}
	fields := listStrings(resp.GetFields()["fields"])
	sort.Strings(fields)
	want := []string{"age", "comparator_hash", "hash_strategy", "name"}
	if strings.Join(fields, ",") != strings.Join(want, ",") {
		t.Fatalf("Expected fields %v, got %v", want, fields)
	}

	// A record written behind the server's back is only seen after refresh
	b := item.NewAt(1)
	b.SetText("people.manual.email", "x@example.com")
	b.AddComparator("email")
	if err := server.persister.Persist("manual", b, false); err != nil {
		t.Fatalf("Failed to persist manual record: %v", err)
	}

	resp, err = client.DataDictionary(context.Background(), mustStruct(t, nil))
	if err != nil {
		t.Fatalf("Failed to read dictionary: %v", err)
	}
	if len(listStrings(resp.GetFields()["fields"])) != 4 {
		t.Fatalf("Expected cached dictionary")
	}

	resp, err = client.DataDictionary(context.Background(), mustStruct(t, map[string]interface{}{"refresh": true}))
	if err != nil {
		t.Fatalf("Failed to refresh dictionary: %v", err)
	}
	if got := len(listStrings(resp.GetFields()["fields"])); got != 5 {
		t.Fatalf("Expected 5 fields after refresh, got %d", got)
	}
	if got := resp.GetFields()["records"].GetNumberValue(); got != 2 {
		t.Errorf("Expected 2 records, got %v", got)
	}
}

func TestSearchAndReport(t *testing.T) {
	_, client, _, cleanup := setupTestServer(t, true)
	defer cleanup()

	alice := persistPerson(t, client, "Alice", "30")
	persistPerson(t, client, "Bob", "40")

	resp, err := client.Search(context.Background(), mustStruct(t, map[string]interface{}{
		"field": "name",
		"term":  "Ali",
	}))
	if err != nil {
		t.Fatalf("Failed to search: %v", err)
	}
	hits := resp.GetFields()["hits"].GetListValue().GetValues()
	if len(hits) != 1 {
		t.Fatalf("Expected 1 hit, got %d", len(hits))
	}
	if got := hits[0].GetStructValue().GetFields()["identifier"].GetStringValue(); got != alice {
		t.Errorf("Expected %s, got %s", alice, got)
	}

	report, err := client.Report(context.Background(), mustStruct(t, nil))
	if err != nil {
		t.Fatalf("Failed to report: %v", err)
	}
	if got := report.GetFields()["file_count"].GetNumberValue(); got != 2 {
		t.Errorf("Expected 2 files, got %v", got)
	}
	if got := report.GetFields()["indexed_items"].GetNumberValue(); got != 2 {
		t.Errorf("Expected 2 indexed items, got %v", got)
	}
}

func TestSearchWithoutIndex(t *testing.T) {
	_, client, _, cleanup := setupTestServer(t, false)
	defer cleanup()

	_, err := client.Search(context.Background(), mustStruct(t, map[string]interface{}{"term": "x"}))
	if status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("Expected FailedPrecondition, got %v", err)
	}
}

func TestCorpusWatcherInvalidates(t *testing.T) {
	server, client, _, cleanup := setupTestServer(t, false)
	defer cleanup()

	persistPerson(t, client, "Alice", "30")
	if _, _, err := server.Dictionary().Get(context.Background(), false); err != nil {
		t.Fatalf("Failed to build dictionary: %v", err)
	}

	w, err := NewCorpusWatcher(server.persister.Location(), server.Dictionary(), server.log)
	if err != nil {
		t.Fatalf("Failed to create watcher: %v", err)
	}
	w.debouncePeriod = 10 * time.Millisecond
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	persistPerson(t, client, "Bob", "40")

	// Persist itself invalidates; rebuild, then let the watcher invalidate again
	if _, _, err := server.Dictionary().Get(context.Background(), false); err != nil {
		t.Fatalf("Failed to rebuild dictionary: %v", err)
	}
	path := filepath.Join(server.persister.Location(), "extra.elu")
	if err := os.WriteFile(path, []byte("CREATED:::1\nCOMPARITORS:::x\npeople.extra.x:::1\n"), 0o644); err != nil {
		t.Fatalf("Failed to write record: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		server.Dictionary().mu.Lock()
		stale := server.Dictionary().result == nil
		server.Dictionary().mu.Unlock()
		if stale {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("Expected watcher to invalidate the dictionary")
}

func TestObservabilityEndpoints(t *testing.T) {
	server, client, m, cleanup := setupTestServer(t, false)
	defer cleanup()
	persistPerson(t, client, "Alice", "30")

	reg := prometheus.NewRegistry()
	reg.MustRegister(m.GrpcRequestsTotal)

	ts := httptest.NewServer(NewObservabilityHandler(reg, server.ReadyWhenLocationExists))
	defer ts.Close()

	for path, want := range map[string]string{
		"/health":  "healthy",
		"/ready":   "ready",
		"/metrics": "itemstore_grpc_requests_total",
	} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("Failed to GET %s: %v", path, err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), want) {
			t.Errorf("GET %s: status %d body %s", path, resp.StatusCode, body)
		}
	}

	os.RemoveAll(server.persister.Location())
	resp, err := http.Get(ts.URL + "/ready")
	if err != nil {
		t.Fatalf("Failed to GET /ready: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 once the corpus is gone, got %d", resp.StatusCode)
	}
}

func listStrings(v *structpb.Value) []string {
	var out []string
	for _, e := range v.GetListValue().GetValues() {
		out = append(out, e.GetStringValue())
	}
	return out
}
