// Package server implements the gRPC VersionService over a version store
package server

import (
	"context"
	"math"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/nainya/grantdraft/internal/logger"
	"github.com/nainya/grantdraft/pkg/version"
)

// Server implements VersionServiceServer
type Server struct {
	store *version.Store
	log   *logger.Logger
}

// NewServer creates a gRPC server instance backed by store
func NewServer(store *version.Store, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	return &Server{store: store, log: log}
}

// Store returns the underlying version store
func (s *Server) Store() *version.Store {
	return s.store
}

// Close closes the version store
func (s *Server) Close() error {
	return s.store.Close()
}

func (s *Server) Save(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	proposal := req.GetFields()["proposal"].GetStructValue()
	if proposal == nil {
		return nil, status.Error(codes.InvalidArgument, "proposal is required")
	}
	rationale := req.GetFields()["rationale"].GetStringValue()

	n, err := s.store.Record(version.Snapshot(proposal.AsMap()), rationale)
	if err != nil {
		s.log.Warn("version saved in memory only").
			Err(err).
			Int("version", n).
			Send()
	}

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"version": structpb.NewNumberValue(float64(n)),
	}}, nil
}

func (s *Server) Get(ctx context.Context, req *wrapperspb.Int64Value) (*structpb.Struct, error) {
	n := req.GetValue()
	idx := 0
	if n >= 1 && n <= math.MaxInt32 {
		idx = int(n)
	}
	entry, ok := s.store.Get(idx)
	if !ok {
		return nil, status.Errorf(codes.NotFound, "version %d not found", n)
	}
	return entryStruct(entry)
}

func (s *Server) GetAll(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	entries := s.store.GetAll()
	list := &structpb.ListValue{Values: make([]*structpb.Value, 0, len(entries))}
	for _, e := range entries {
		st, err := entryStruct(e)
		if err != nil {
			return nil, err
		}
		list.Values = append(list.Values, structpb.NewStructValue(st))
	}
	return list, nil
}

func (s *Server) GetLatest(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	entry, ok := s.store.GetLatest()
	if !ok {
		return nil, status.Error(codes.NotFound, "no versions saved")
	}
	return entryStruct(entry)
}

func (s *Server) Compare(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	a := versionField(req, "version1")
	b := versionField(req, "version2")

	cmp, ok := s.store.Compare(a, b)
	if !ok {
		return nil, status.Errorf(codes.NotFound, "cannot compare versions %d and %d", a, b)
	}
	st, err := toStruct(cmp)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode comparison: %v", err)
	}
	return st, nil
}

// versionField reads a whole version number; anything else maps to 0, which never exists
func versionField(req *structpb.Struct, name string) int {
	v := req.GetFields()[name].GetNumberValue()
	if v != math.Trunc(v) || v < 1 || v > math.MaxInt32 {
		return 0
	}
	return int(v)
}

func entryStruct(e version.Entry) (*structpb.Struct, error) {
	st, err := toStruct(e)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode version: %v", err)
	}
	return st, nil
}
