// Package userrpc exposes user validation and point balances to internal
// services over gRPC. Messages are protobuf well-known wrapper types, so the
// service needs no generated code.
package userrpc

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/MikeMC777/ecom-points/internal/user"
)

const (
	ServiceName = "ecom.user.UserService"

	methodValidateUser    = "/" + ServiceName + "/ValidateUser"
	methodGetPointBalance = "/" + ServiceName + "/GetPointBalance"
)

type UserServiceServer interface {
	ValidateUser(ctx context.Context, in *wrapperspb.Int64Value) (*wrapperspb.BoolValue, error)
	GetPointBalance(ctx context.Context, in *wrapperspb.Int64Value) (*wrapperspb.Int64Value, error)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*UserServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ValidateUser", Handler: validateUserHandler},
		{MethodName: "GetPointBalance", Handler: getPointBalanceHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ecom/user/user_service.proto",
}

func Register(s grpc.ServiceRegistrar, srv UserServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func validateUserHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.Int64Value)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(UserServiceServer).ValidateUser(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodValidateUser}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(UserServiceServer).ValidateUser(ctx, req.(*wrapperspb.Int64Value))
	}
	return interceptor(ctx, in, info, handler)
}

func getPointBalanceHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.Int64Value)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(UserServiceServer).GetPointBalance(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodGetPointBalance}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(UserServiceServer).GetPointBalance(ctx, req.(*wrapperspb.Int64Value))
	}
	return interceptor(ctx, in, info, handler)
}

type UserReader interface {
	GetByID(ctx context.Context, id int64) (*user.User, error)
}

type Service struct {
	users UserReader
}

func NewService(users UserReader) *Service {
	return &Service{users: users}
}

// ValidateUser reports whether the user exists.
func (s *Service) ValidateUser(ctx context.Context, in *wrapperspb.Int64Value) (*wrapperspb.BoolValue, error) {
	if in.GetValue() <= 0 {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}
	_, err := s.users.GetByID(ctx, in.GetValue())
	if errors.Is(err, user.ErrNotFound) {
		return wrapperspb.Bool(false), nil
	}
	if err != nil {
		return nil, status.Errorf(codes.Internal, "validate error: %v", err)
	}
	return wrapperspb.Bool(true), nil
}

// GetPointBalance returns the user's current loyalty point balance.
func (s *Service) GetPointBalance(ctx context.Context, in *wrapperspb.Int64Value) (*wrapperspb.Int64Value, error) {
	if in.GetValue() <= 0 {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}
	u, err := s.users.GetByID(ctx, in.GetValue())
	if errors.Is(err, user.ErrNotFound) {
		return nil, status.Error(codes.NotFound, "user not found")
	}
	if err != nil {
		return nil, status.Errorf(codes.Internal, "get error: %v", err)
	}
	return wrapperspb.Int64(u.Point), nil
}

// LoggingInterceptor logs every unary call with its code and duration.
func LoggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	log.WithFields(log.Fields{
		"method": info.FullMethod,
		"code":   status.Code(err).String(),
		"dur":    time.Since(start).String(),
	}).Info("[grpc] call")
	return resp, err
}
