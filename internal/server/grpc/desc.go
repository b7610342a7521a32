package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Bridge service and method names.
const (
	ServiceName  = "sable.backup.v1.Backup"
	InvokeMethod = "/" + ServiceName + "/Invoke"
)

// BackupServer handles method-channel calls. The request is a Struct with a
// "method" string and optional "arguments"; the reply is any Value.
type BackupServer interface {
	Invoke(ctx context.Context, req *structpb.Struct) (*structpb.Value, error)
}

// BackupServiceDesc describes the bridge service for grpc.Server.RegisterService.
var BackupServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BackupServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Invoke", Handler: invokeHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "sable/backup/v1/backup.proto",
}

// RegisterBackupServer registers srv on s.
func RegisterBackupServer(s grpc.ServiceRegistrar, srv BackupServer) {
	s.RegisterService(&BackupServiceDesc, srv)
}

func invokeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BackupServer).Invoke(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: InvokeMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(BackupServer).Invoke(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// BackupClient calls the bridge.
type BackupClient struct {
	cc grpc.ClientConnInterface
}

// NewBackupClient wraps cc.
func NewBackupClient(cc grpc.ClientConnInterface) *BackupClient {
	return &BackupClient{cc: cc}
}

// Invoke calls method with args, which must be representable by structpb.NewValue
// after ToValue normalisation. A nil args sends no arguments.
func (c *BackupClient) Invoke(ctx context.Context, method string, args any, opts ...grpc.CallOption) (*structpb.Value, error) {
	req := &structpb.Struct{Fields: map[string]*structpb.Value{
		"method": structpb.NewStringValue(method),
	}}
	if args != nil {
		v, err := ToValue(args)
		if err != nil {
			return nil, err
		}
		req.Fields["arguments"] = v
	}
	out := new(structpb.Value)
	if err := c.cc.Invoke(ctx, InvokeMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
