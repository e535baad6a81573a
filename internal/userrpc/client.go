package userrpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) ValidateUser(ctx context.Context, id int64, opts ...grpc.CallOption) (bool, error) {
	out := new(wrapperspb.BoolValue)
	if err := c.cc.Invoke(ctx, methodValidateUser, wrapperspb.Int64(id), out, opts...); err != nil {
		return false, err
	}
	return out.GetValue(), nil
}

func (c *Client) GetPointBalance(ctx context.Context, id int64, opts ...grpc.CallOption) (int64, error) {
	out := new(wrapperspb.Int64Value)
	if err := c.cc.Invoke(ctx, methodGetPointBalance, wrapperspb.Int64(id), out, opts...); err != nil {
		return 0, err
	}
	return out.GetValue(), nil
}
