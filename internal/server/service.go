// Service descriptor and typed client for grantdraft.v1.VersionService.
// Messages are protobuf well-known types, so no generated code is needed.
package server

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/nainya/grantdraft/pkg/version"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "grantdraft.v1.VersionService"

// VersionServiceServer is the server API for VersionService
type VersionServiceServer interface {
	Save(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Get(context.Context, *wrapperspb.Int64Value) (*structpb.Struct, error)
	GetAll(context.Context, *emptypb.Empty) (*structpb.ListValue, error)
	GetLatest(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Compare(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// VersionServiceDesc describes VersionService for grpc.Server.RegisterService
var VersionServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*VersionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Save", VersionServiceServer.Save),
		unary("Get", VersionServiceServer.Get),
		unary("GetAll", VersionServiceServer.GetAll),
		unary("GetLatest", VersionServiceServer.GetLatest),
		unary("Compare", VersionServiceServer.Compare),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "grantdraft/v1/version.proto",
}

// RegisterVersionServiceServer registers srv on s
func RegisterVersionServiceServer(s grpc.ServiceRegistrar, srv VersionServiceServer) {
	s.RegisterService(&VersionServiceDesc, srv)
}

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// unary builds the method handler the generated code would otherwise provide
func unary[Req any, Resp any](name string, call func(VersionServiceServer, context.Context, *Req) (Resp, error)) grpc.MethodDesc {
	method := fullMethod(name)
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(VersionServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(VersionServiceServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// Client is a typed VersionService client
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps a client connection
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Save records proposal remotely and returns its version number
func (c *Client) Save(ctx context.Context, proposal version.Snapshot, rationale string, opts ...grpc.CallOption) (int, error) {
	req := &structpb.Struct{Fields: map[string]*structpb.Value{
		"rationale": structpb.NewStringValue(rationale),
	}}
	if proposal != nil {
		body, err := toStruct(proposal)
		if err != nil {
			return 0, err
		}
		req.Fields["proposal"] = structpb.NewStructValue(body)
	}

	resp := &structpb.Struct{}
	if err := c.cc.Invoke(ctx, fullMethod("Save"), req, resp, opts...); err != nil {
		return 0, err
	}
	return int(resp.GetFields()["version"].GetNumberValue()), nil
}

// Get fetches version n
func (c *Client) Get(ctx context.Context, n int, opts ...grpc.CallOption) (version.Entry, error) {
	resp := &structpb.Struct{}
	if err := c.cc.Invoke(ctx, fullMethod("Get"), wrapperspb.Int64(int64(n)), resp, opts...); err != nil {
		return version.Entry{}, err
	}
	var entry version.Entry
	err := fromStruct(resp, &entry)
	return entry, err
}

// GetAll fetches the full history, oldest first
func (c *Client) GetAll(ctx context.Context, opts ...grpc.CallOption) ([]version.Entry, error) {
	resp := &structpb.ListValue{}
	if err := c.cc.Invoke(ctx, fullMethod("GetAll"), &emptypb.Empty{}, resp, opts...); err != nil {
		return nil, err
	}
	data, err := protojson.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("encode history: %w", err)
	}
	entries := []version.Entry{}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return entries, nil
}

// GetLatest fetches the most recent version
func (c *Client) GetLatest(ctx context.Context, opts ...grpc.CallOption) (version.Entry, error) {
	resp := &structpb.Struct{}
	if err := c.cc.Invoke(ctx, fullMethod("GetLatest"), &emptypb.Empty{}, resp, opts...); err != nil {
		return version.Entry{}, err
	}
	var entry version.Entry
	err := fromStruct(resp, &entry)
	return entry, err
}

// Compare fetches the metadata comparison of versions a and b
func (c *Client) Compare(ctx context.Context, a, b int, opts ...grpc.CallOption) (version.Comparison, error) {
	req := &structpb.Struct{Fields: map[string]*structpb.Value{
		"version1": structpb.NewNumberValue(float64(a)),
		"version2": structpb.NewNumberValue(float64(b)),
	}}
	resp := &structpb.Struct{}
	if err := c.cc.Invoke(ctx, fullMethod("Compare"), req, resp, opts...); err != nil {
		return version.Comparison{}, err
	}
	var cmp version.Comparison
	err := fromStruct(resp, &cmp)
	return cmp, err
}

// toStruct converts any JSON-encodable value into a Struct. Going through JSON
// accepts typed maps and slices that structpb.NewStruct rejects.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("convert message: %w", err)
	}
	return s, nil
}

func fromStruct(s *structpb.Struct, out any) error {
	data, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	return nil
}
