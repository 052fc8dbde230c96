// Package grpctransport implements a Transport over a bidirectional
// gRPC stream per ordered role pair, frames are length-delimited bytes
// messages so the payload format is still whatever codec.Codec (D5) the
// caller picked (§6.6's "delegated to the user-chosen serialization"
// applies here too — this package only moves opaque bytes).
//
// The wire service is described dynamically rather than from a
// generated .pb.go: jhump/protoreflect builds the descriptors and
// dynamic.NewMessage constructs requests against them directly, rather
// than linking in generated message types. Here the "schema" is a
// single fixed Envelope{bytes payload} message and a bidi-streaming
// Relay method, built in Go via the builder package (on each Dial)
// instead of parsed from source text, since the shape never varies
// across choreographies.
package grpctransport

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/desc/builder"
	"github.com/jhump/protoreflect/dynamic"
	"github.com/jhump/protoreflect/dynamic/grpcdynamic"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/klor-lang/klor/internal/transport"
	"github.com/klor-lang/klor/internal/types"
)

func newListener(addr string) (net.Listener, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("grpctransport: listen %s: %w", addr, err)
	}
	return lis, nil
}

const (
	packageName = "klor.transport"
	serviceName = "Relay"
	methodName  = "Stream"
	messageName = "Envelope"
	fieldName   = "payload"
)

// relayDescriptor builds the dynamic service/message descriptors
// for the fixed Envelope/Relay shape, yielding *desc.FileDescriptor
// values that dynamic.Message instances can be constructed against.
func relayDescriptor() (*desc.FileDescriptor, *desc.ServiceDescriptor, *desc.MessageDescriptor, error) {
	msg := builder.NewMessage(messageName).
		AddField(builder.NewField(fieldName, builder.FieldTypeBytes()).SetNumber(1))

	method := builder.NewMethod(methodName, builder.RpcTypeMessage(msg, true), builder.RpcTypeMessage(msg, true))

	svc := builder.NewService(serviceName).AddMethod(method)

	file := builder.NewFile(packageName + ".proto").SetPackageName(packageName).AddMessage(msg).AddService(svc)

	fd, err := file.Build()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("grpctransport: build relay descriptor: %w", err)
	}
	return fd, fd.GetServices()[0], fd.GetMessageTypes()[0], nil
}

// stream is one bidi pair of send/recv queues bridging a role pair over
// one gRPC stream, in whichever direction it was opened (client dial or
// server accept).
type stream struct {
	send func([]byte) error
	recv func() ([]byte, error)
	close func() error
}

// Endpoint is the Transport for one role process, holding one stream
// per peer role: peers whose role name sorts after self's are dialed as
// a client; the rest arrive as incoming streams once Serve is running.
type Endpoint struct {
	self    types.Role
	mu      sync.Mutex
	streams map[types.Role]*stream
	ready   map[types.Role]chan struct{}
	server  *grpc.Server
	md      *desc.MessageDescriptor
}

func newEndpoint(self types.Role) *Endpoint {
	return &Endpoint{self: self, streams: make(map[types.Role]*stream), ready: make(map[types.Role]chan struct{})}
}

func (e *Endpoint) waitReady(peer types.Role) chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	ch, ok := e.ready[peer]
	if !ok {
		ch = make(chan struct{})
		e.ready[peer] = ch
	}
	return ch
}

func (e *Endpoint) install(peer types.Role, s *stream) {
	e.mu.Lock()
	e.streams[peer] = s
	ch := e.ready[peer]
	e.mu.Unlock()
	if ch != nil {
		close(ch)
	}
}

// Dial connects self to every peer in locators, dialing peers whose
// names sort after self's and serving a Relay endpoint on listenAddr for
// the rest, mirroring tcptransport's half-dial/half-accept pairing so
// each ordered pair gets exactly one underlying stream.
func Dial(ctx context.Context, self types.Role, listenAddr string, locators transport.Locator) (*Endpoint, error) {
	fd, sd, md, err := relayDescriptor()
	if err != nil {
		return nil, err
	}
	ep := newEndpoint(self)
	ep.md = md

	srv := grpc.NewServer()
	handler := &relayHandler{ep: ep, md: md}
	srv.RegisterService(serviceDesc(sd, handler), handler)
	ep.server = srv

	lis, err := newListener(listenAddr)
	if err != nil {
		return nil, err
	}
	go func() { _ = srv.Serve(lis) }()

	for peer, addr := range locators {
		if peer == self || peer < self {
			continue
		}
		connConf, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return nil, fmt.Errorf("grpctransport: dial %s: %w", peer, err)
		}
		stub := grpcdynamic.NewStub(connConf)
		cs, err := stub.InvokeRpcBidiStream(ctx, sd.GetMethods()[0])
		if err != nil {
			return nil, fmt.Errorf("grpctransport: open stream to %s: %w", peer, err)
		}
		if err := sendEnvelope(cs, md, []byte(self)); err != nil {
			return nil, err
		}
		ep.install(peer, clientStream(cs, md, fd))
	}

	for peer := range locators {
		if peer == self {
			continue
		}
		if peer < self {
			<-ep.waitReady(peer)
		}
	}

	return ep, nil
}

func sendEnvelope(cs *grpcdynamic.BidiStreamingClientStream, md *desc.MessageDescriptor, payload []byte) error {
	msg := dynamic.NewMessage(md)
	msg.SetFieldByNumber(1, payload)
	return cs.SendMsg(msg)
}

func clientStream(cs *grpcdynamic.BidiStreamingClientStream, md *desc.MessageDescriptor, fd *desc.FileDescriptor) *stream {
	return &stream{
		send: func(payload []byte) error { return sendEnvelope(cs, md, payload) },
		recv: func() ([]byte, error) {
			m, err := cs.RecvMsg()
			if err != nil {
				return nil, err
			}
			return m.(*dynamic.Message).GetFieldByNumber(1).([]byte), nil
		},
		close: func() error { return cs.CloseSend() },
	}
}

func (e *Endpoint) Send(ctx context.Context, dst types.Role, payload []byte) error {
	e.mu.Lock()
	s, ok := e.streams[dst]
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("grpctransport: no stream to role %q", dst)
	}
	return s.send(payload)
}

func (e *Endpoint) Recv(ctx context.Context, src types.Role) ([]byte, error) {
	e.mu.Lock()
	s, ok := e.streams[src]
	e.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("grpctransport: no stream from role %q", src)
	}
	return s.recv()
}

func (e *Endpoint) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var firstErr error
	for _, s := range e.streams {
		if err := s.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if e.server != nil {
		e.server.GracefulStop()
	}
	return firstErr
}

// relayHandler implements the single bidi-streaming method as a
// grpc.StreamHandler: the first frame each accepted stream sends
// identifies its role (mirroring tcptransport's announce/identify
// handshake), after which it is installed into the owning Endpoint's
// stream map.
type relayHandler struct {
	ep *Endpoint
	md *desc.MessageDescriptor
}

func (h *relayHandler) Stream(srv interface{}, ss grpc.ServerStream) error {
	first := dynamic.NewMessage(h.md)
	if err := ss.RecvMsg(first); err != nil {
		return err
	}
	peer := types.Role(first.GetFieldByNumber(1).([]byte))

	h.ep.install(peer, &stream{
		send: func(payload []byte) error {
			msg := dynamic.NewMessage(h.md)
			msg.SetFieldByNumber(1, payload)
			return ss.SendMsg(msg)
		},
		recv: func() ([]byte, error) {
			m := dynamic.NewMessage(h.md)
			if err := ss.RecvMsg(m); err != nil {
				if err == io.EOF {
					return nil, io.EOF
				}
				return nil, err
			}
			return m.GetFieldByNumber(1).([]byte), nil
		},
		close: func() error { return nil },
	})
	<-ss.Context().Done()
	return ss.Context().Err()
}

func serviceDesc(sd *desc.ServiceDescriptor, handler *relayHandler) *grpc.ServiceDesc {
	return &grpc.ServiceDesc{
		ServiceName: packageName + "." + serviceName,
		HandlerType: (*interface{})(nil),
		Streams: []grpc.StreamDesc{{
			StreamName:    methodName,
			Handler:       func(srv interface{}, stream grpc.ServerStream) error { return handler.Stream(srv, stream) },
			ServerStreams: true,
			ClientStreams: true,
		}},
		Metadata: packageName + ".proto",
	}
}
