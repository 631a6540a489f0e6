// Copyright 2023 The CubeFS Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

package transport

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"

	apierrors "github.com/cubefs/mds/errors"
	"github.com/cubefs/mds/proto"
)

// jsonCodec is a hand-defined grpc.encoding.Codec so the monitor command
// channel can run over grpc without a committed .proto (spec.md §6: the
// wire messenger's own codec is out of scope, but the monitor command
// channel still needs a real transport).
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string { return "json" }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// AdminServer is the grpc service surface the monitor command channel
// dials into, backed by Daemon.HandleCommand.
type AdminServer interface {
	Command(ctx context.Context, req *proto.CommandRequest) (*proto.CommandResponse, error)
}

// AdminHandler adapts a Daemon-like HandleCommand method into an
// AdminServer, letting the mds package avoid importing this transport
// package's grpc plumbing directly.
type AdminHandler func(ctx context.Context, req *proto.CommandRequest) proto.CommandResponse

func (h AdminHandler) Command(ctx context.Context, req *proto.CommandRequest) (*proto.CommandResponse, error) {
	resp := h(ctx, req)
	if code := apierrors.Code(resp.Code); code != apierrors.CodeOK {
		return &resp, status.Error(codeToGRPC(code), resp.Text)
	}
	return &resp, nil
}

func codeToGRPC(code apierrors.Code) codes.Code {
	switch code {
	case apierrors.CodeOK:
		return codes.OK
	case apierrors.CodeNotFound:
		return codes.NotFound
	case apierrors.CodeInvalid:
		return codes.InvalidArgument
	case apierrors.CodeReadOnly:
		return codes.FailedPrecondition
	case apierrors.CodeExists:
		return codes.AlreadyExists
	case apierrors.CodeNotSupported:
		return codes.Unimplemented
	default:
		return codes.Internal
	}
}

func _Admin_Command_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(proto.CommandRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AdminServer).Command(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/mds.Admin/Command"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AdminServer).Command(ctx, req.(*proto.CommandRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var adminServiceDesc = grpc.ServiceDesc{
	ServiceName: "mds.Admin",
	HandlerType: (*AdminServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Command", Handler: _Admin_Command_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "mds/admin.go",
}

// RegisterAdminServer wires srv into s under the json content-subtype
// codec registered above; callers must dial with
// grpc.CallContentSubtype("json") to reach it.
func RegisterAdminServer(s *grpc.Server, srv AdminServer) {
	s.RegisterService(&adminServiceDesc, srv)
}
