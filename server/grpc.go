package server

import (
	"context"

	"tricount/bagel"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// CoordServer is the bagel.Coord gRPC service. Requests and responses are
// structpb.Struct encodings of bagel.Query and bagel.QueryResult.
type CoordServer interface {
	StartQuery(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func (s *Server) StartQuery(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error) {
	query, err := bagel.QueryFromStruct(request)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	response, err := s.RunQuery(ctx, query).ToStruct()
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return response, nil
}

func _Coord_StartQuery_Handler(
	srv interface{}, ctx context.Context, dec func(interface{}) error,
	interceptor grpc.UnaryServerInterceptor,
) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CoordServer).StartQuery(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: bagel.StartQueryMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(CoordServer).StartQuery(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

var Coord_ServiceDesc = grpc.ServiceDesc{
	ServiceName: bagel.CoordServiceName,
	HandlerType: (*CoordServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "StartQuery",
			Handler:    _Coord_StartQuery_Handler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "bagel/coord.proto",
}

func RegisterCoordServer(s grpc.ServiceRegistrar, srv CoordServer) {
	s.RegisterService(&Coord_ServiceDesc, srv)
}
