package syncbus

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/md-rashed-zaman/ecochurch/services/attendance-service/internal/model"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// The sync service carries JSON snapshots inside protobuf well-known types:
//
//	service SyncService {
//	  rpc Publish(google.protobuf.BytesValue) returns (google.protobuf.Empty);
//	  rpc Watch(google.protobuf.Empty) returns (stream google.protobuf.BytesValue);
//	}
const (
	syncServiceName = "ecochurch.sync.v1.SyncService"
	publishMethod   = "/" + syncServiceName + "/Publish"
	watchMethod     = "/" + syncServiceName + "/Watch"
)

type syncServer interface {
	Publish(context.Context, *wrapperspb.BytesValue) (*emptypb.Empty, error)
	Watch(*emptypb.Empty, grpc.ServerStream) error
}

var syncServiceDesc = grpc.ServiceDesc{
	ServiceName: syncServiceName,
	HandlerType: (*syncServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Publish", Handler: publishHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Watch", Handler: watchHandler, ServerStreams: true},
	},
	Metadata: "ecochurch/sync/v1/sync.proto",
}

func publishHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(syncServer).Publish(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: publishMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(syncServer).Publish(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

func watchHandler(srv any, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(syncServer).Watch(in, stream)
}

// GRPCHub relays every published snapshot to all connected watchers.
// A watcher that falls behind loses snapshots rather than slowing the publisher.
type GRPCHub struct {
	mu       sync.Mutex
	watchers map[chan []byte]struct{}
	logger   *slog.Logger
}

func NewGRPCHub(logger *slog.Logger) *GRPCHub {
	return &GRPCHub{watchers: map[chan []byte]struct{}{}, logger: logger}
}

func RegisterGRPCHub(s *grpc.Server, hub *GRPCHub) {
	s.RegisterService(&syncServiceDesc, hub)
}

func (h *GRPCHub) Publish(_ context.Context, in *wrapperspb.BytesValue) (*emptypb.Empty, error) {
	if _, err := decodeSnapshot(in.GetValue()); err != nil {
		return nil, status.Error(codes.InvalidArgument, "malformed snapshot")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.watchers {
		select {
		case ch <- in.GetValue():
		default:
			h.logger.Warn("grpc sync watcher behind, snapshot dropped")
		}
	}
	return &emptypb.Empty{}, nil
}

func (h *GRPCHub) Watch(_ *emptypb.Empty, stream grpc.ServerStream) error {
	ch := make(chan []byte, 16)
	h.mu.Lock()
	h.watchers[ch] = struct{}{}
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.watchers, ch)
		h.mu.Unlock()
	}()

	for {
		select {
		case <-stream.Context().Done():
			return nil
		case raw := <-ch:
			if err := stream.SendMsg(&wrapperspb.BytesValue{Value: raw}); err != nil {
				return err
			}
		}
	}
}

// Watchers reports the number of connected watch streams.
func (h *GRPCHub) Watchers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.watchers)
}

// GRPCChannel publishes to and watches a GRPCHub.
type GRPCChannel struct {
	conn    *grpc.ClientConn
	logger  *slog.Logger
	stamper stamper
	subs    subscribers
}

func NewGRPCChannel(conn *grpc.ClientConn, origin string, logger *slog.Logger) *GRPCChannel {
	return &GRPCChannel{conn: conn, logger: logger, stamper: stamper{origin: origin}}
}

func (c *GRPCChannel) Publish(ctx context.Context, apps []model.Appointment) error {
	raw, err := encodeSnapshot(c.stamper.stamp(ctx, apps))
	if err != nil {
		return err
	}
	return c.conn.Invoke(ctx, publishMethod, &wrapperspb.BytesValue{Value: raw}, new(emptypb.Empty))
}

func (c *GRPCChannel) Subscribe(h Handler) func() {
	return c.subs.add(h)
}

// Run keeps a watch stream open until ctx is done, reconnecting after a pause on error.
func (c *GRPCChannel) Run(ctx context.Context) {
	for {
		err := c.watch(ctx)
		if ctx.Err() != nil {
			return
		}
		c.logger.Warn("grpc sync watch ended", "err", err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

func (c *GRPCChannel) watch(ctx context.Context) error {
	stream, err := c.conn.NewStream(ctx, &syncServiceDesc.Streams[0], watchMethod)
	if err != nil {
		return err
	}
	if err := stream.SendMsg(&emptypb.Empty{}); err != nil {
		return err
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}
	for {
		msg := new(wrapperspb.BytesValue)
		if err := stream.RecvMsg(msg); err != nil {
			return err
		}
		snap, err := decodeSnapshot(msg.GetValue())
		if err != nil {
			c.logger.Warn("grpc sync message dropped", "err", err)
			continue
		}
		if snap.Origin == c.stamper.origin {
			continue
		}
		c.subs.deliver(receiveContext(ctx, snap), snap)
	}
}

func (c *GRPCChannel) Close() error {
	if c.conn == nil {
		return errors.New("grpc sync: no connection")
	}
	return c.conn.Close()
}
