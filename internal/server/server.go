// Package server implements the gRPC item service
package server

import (
	"context"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/nainya/itemstore/internal/logger"
	"github.com/nainya/itemstore/internal/metrics"
	"github.com/nainya/itemstore/pkg/corpus"
	"github.com/nainya/itemstore/pkg/equality"
	"github.com/nainya/itemstore/pkg/hashing"
	"github.com/nainya/itemstore/pkg/index"
	"github.com/nainya/itemstore/pkg/item"
	"github.com/nainya/itemstore/pkg/naming"
	"github.com/nainya/itemstore/pkg/persist"
)

// Options configures a Server
type Options struct {
	// Location is the corpus directory; it is created if absent
	Location string
	// CacheName qualifies bags that arrive unqualified
	CacheName string
	// Strategy stamps the comparator hash; nil means the default strategy
	Strategy hashing.Strategy
	// Index is optional; without it Search is unavailable
	Index *index.SQLiteConnector
	// Engine compares bags in Match; nil means the default engine
	Engine  *equality.Engine
	Logger  *logger.Logger
	Metrics *metrics.Metrics
}

// Server implements ItemServiceServer
type Server struct {
	persister *persist.FilePersister
	scanner   *corpus.Scanner
	dict      *DictionaryCache
	engine    *equality.Engine
	index     *index.SQLiteConnector
	strategy  hashing.Strategy
	cacheName string

	log       *logger.Logger
	metrics   *metrics.Metrics
	startTime time.Time
}

// NewServer creates a server over opts.Location
func NewServer(opts Options) (*Server, error) {
	if opts.Logger == nil {
		opts.Logger = logger.NewLogger(logger.Config{Level: "error", Output: os.Stderr})
	}
	if opts.Engine == nil {
		opts.Engine = equality.NewEngine()
	}
	if opts.Strategy == nil {
		s, err := hashing.Lookup(hashing.Default)
		if err != nil {
			return nil, err
		}
		opts.Strategy = s
	}

	persistOpts := []persist.Option{persist.WithLogger(opts.Logger.Component("persist"))}
	scanOpts := []corpus.Option{corpus.WithLogger(opts.Logger.Component("corpus"))}
	if opts.Metrics != nil {
		persistOpts = append(persistOpts, persist.WithRecorder(opts.Metrics))
		scanOpts = append(scanOpts, corpus.WithRecorder(opts.Metrics))
	}

	p, err := persist.Open(opts.Location, persistOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "open record store")
	}
	scanner := corpus.NewScanner(scanOpts...)

	return &Server{
		persister: p,
		scanner:   scanner,
		dict:      NewDictionaryCache(scanner, opts.Location),
		engine:    opts.Engine,
		index:     opts.Index,
		strategy:  opts.Strategy,
		cacheName: opts.CacheName,
		log:       opts.Logger,
		metrics:   opts.Metrics,
		startTime: time.Now(),
	}, nil
}

// Dictionary exposes the dictionary cache so a watcher can invalidate it
func (s *Server) Dictionary() *DictionaryCache {
	return s.dict
}

// Close releases the index, if any
func (s *Server) Close() error {
	if s.index != nil {
		return s.index.Close()
	}
	return nil
}

// Persist qualifies (if needed), stamps, stores and indexes a bag.
// Request: {bag, overwrite, cache_name}. Response: {identifier}.
func (s *Server) Persist(ctx context.Context, req *structpb.Struct) (_ *structpb.Struct, err error) {
	start := time.Now()
	defer func() { s.log.LogStoreOperation("persist", time.Since(start), 1, err) }()

	fields := req.GetFields()
	b, err := BagFromStruct(fields["bag"].GetStructValue())
	if err != nil {
		return nil, toStatus(err)
	}
	overwrite := fields["overwrite"].GetBoolValue()

	id, err := naming.IdentifierOf(b)
	if err != nil || !allQualified(b) {
		cacheName := s.cacheName
		if c := fields["cache_name"].GetStringValue(); c != "" {
			cacheName = c
		}
		id = naming.GenerateIdentifier(true)
		b = naming.QualifyBag(b, cacheName, id)
	}

	if err := hashing.Stamp(b, s.strategy); err != nil {
		return nil, toStatus(err)
	}
	if err := s.persister.Persist(id, b, overwrite); err != nil {
		return nil, toStatus(err)
	}
	s.dict.Invalidate()

	if s.index != nil {
		if err := s.index.Submit(ctx, b, true); err != nil {
			s.log.StoreLogger("index").Warn("Record stored but not indexed").Str("identifier", id).Err(err).Send()
		}
	}

	return structpb.NewStruct(map[string]interface{}{"identifier": id})
}

// Load returns a stored bag. Request: {identifier}. Response: {bag}.
func (s *Server) Load(ctx context.Context, req *structpb.Struct) (_ *structpb.Struct, err error) {
	start := time.Now()
	defer func() { s.log.LogStoreOperation("load", time.Since(start), 1, err) }()

	id := req.GetFields()["identifier"].GetStringValue()
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "identifier is required")
	}

	ok, err := s.persister.ContainsID(id)
	if err != nil {
		return nil, toStatus(err)
	}
	if !ok {
		return nil, status.Errorf(codes.NotFound, "no record %s", id)
	}

	b, err := s.persister.Load(id)
	if err != nil {
		return nil, toStatus(err)
	}
	wire, err := BagToStruct(b)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode bag: %v", err)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"bag": structpb.NewStructValue(wire),
	}}, nil
}

// Match returns the identifiers of stored bags equal to the probe.
// Request: {bag}. Response: {identifiers, skipped}.
func (s *Server) Match(ctx context.Context, req *structpb.Struct) (_ *structpb.Struct, err error) {
	start := time.Now()
	scanned := 0
	defer func() { s.log.LogStoreOperation("match", time.Since(start), scanned, err) }()

	probe, err := BagFromStruct(req.GetFields()["bag"].GetStructValue())
	if err != nil {
		return nil, toStatus(err)
	}
	if s.metrics != nil {
		s.metrics.MatchQueriesTotal.Inc()
	}

	records, failures, err := s.scanner.Load(ctx, s.persister.Location())
	if err != nil {
		return nil, toStatus(err)
	}
	scanned = len(records)

	var ids []string
	for _, r := range records {
		if s.engine.IsEqual(r.Bag, probe) {
			ids = append(ids, corpus.IdentifierOf(r.Path))
		}
	}

	return structpb.NewStruct(map[string]interface{}{
		"identifiers": stringList(ids),
		"skipped":     float64(len(failures)),
	})
}

// DataDictionary lists every field path in the corpus.
// Request: {refresh}. Response: {fields, records, failures, built_at}.
func (s *Server) DataDictionary(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	refresh := req.GetFields()["refresh"].GetBoolValue()

	res, builtAt, err := s.dict.Get(ctx, refresh)
	if err != nil {
		return nil, toStatus(err)
	}

	return structpb.NewStruct(map[string]interface{}{
		"fields":   stringList(res.Dictionary.Paths()),
		"records":  float64(res.Records),
		"failures": float64(len(res.Failures)),
		"built_at": builtAt.UTC().Format(time.RFC3339Nano),
	})
}

// Search queries the index. Request: {field, term, limit}. Response: {hits}.
func (s *Server) Search(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.index == nil {
		return nil, status.Error(codes.FailedPrecondition, "no index configured")
	}
	fields := req.GetFields()
	term := fields["term"].GetStringValue()
	if term == "" {
		return nil, status.Error(codes.InvalidArgument, "term is required")
	}
	if s.metrics != nil {
		s.metrics.SearchQueriesTotal.Inc()
	}

	hits, err := s.index.Search(ctx, fields["field"].GetStringValue(), term, int(fields["limit"].GetNumberValue()))
	if err != nil {
		return nil, toStatus(err)
	}

	out := make([]interface{}, 0, len(hits))
	for _, h := range hits {
		out = append(out, map[string]interface{}{
			"identifier":     h.Identifier,
			"cache_name":     h.CacheName,
			"comparator_key": h.ComparatorKey,
			"created":        float64(h.CreatedAt),
		})
	}
	return structpb.NewStruct(map[string]interface{}{"hits": out})
}

// Report summarises the corpus and index
func (s *Server) Report(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	r, err := s.persister.Report()
	if err != nil {
		return nil, toStatus(err)
	}

	out := map[string]interface{}{
		"location":       r.Location,
		"file_count":     float64(r.FileCount),
		"last_modified":  r.LastModified.UTC().Format(time.RFC3339),
		"uptime_seconds": time.Since(s.startTime).Seconds(),
	}
	if s.index != nil {
		ir, err := s.index.Report(ctx)
		if err != nil {
			return nil, toStatus(err)
		}
		out["indexed_items"] = float64(ir.Items)
		out["indexed_fields"] = float64(ir.Fields)
	}
	return structpb.NewStruct(out)
}

func allQualified(b *item.Bag) bool {
	for _, name := range b.Names() {
		if !naming.IsQualified(name) {
			return false
		}
	}
	return b.Len() > 0
}

// toStatus maps domain errors onto gRPC status codes
func toStatus(err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, persist.ErrExists), errors.Is(err, index.ErrExists):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, os.ErrNotExist):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, item.ErrFormat),
		errors.Is(err, item.ErrNameFormat),
		errors.Is(err, item.ErrNumericFormat),
		errors.Is(err, item.ErrTypeMismatch),
		errors.Is(err, item.ErrNoSuchAttribute),
		errors.Is(err, hashing.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, item.ErrScan):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
