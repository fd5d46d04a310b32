package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hashicorp/go-plugin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"

	"cuckoohost/internal/platform/contract"
)

const (
	PluginMapKey  = "solver"
	serviceName   = "cuckoo.plugin.v1.SolverPlugin"
	jsonCodecName = "json"
)

const (
	methodEntryPoints          = "EntryPoints"
	methodInit                 = "Init"
	methodDescribe             = "Describe"
	methodParameterList        = "ParameterList"
	methodGetParameter         = "GetParameter"
	methodSetParameter         = "SetParameter"
	methodSolve                = "Solve"
	methodStartProcessing      = "StartProcessing"
	methodStopProcessing       = "StopProcessing"
	methodHasProcessingStopped = "HasProcessingStopped"
	methodResetProcessing      = "ResetProcessing"
	methodPushToInputQueue     = "PushToInputQueue"
	methodReadFromOutputQueue  = "ReadFromOutputQueue"
	methodClearQueues          = "ClearQueues"
	methodGetStats             = "GetStats"
)

var HandshakeConfig = plugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "CUCKOO_PLUGIN",
	MagicCookieValue: "cuckoo",
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return jsonCodecName
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type Empty struct{}

type EntryPointsResponse struct {
	Names []string `json:"names"`
}

type DescribeRequest struct {
	NameCapacity uint32 `json:"name_capacity"`
	DescCapacity uint32 `json:"desc_capacity"`
}

type DescribeResponse struct {
	Status      uint32 `json:"status"`
	Name        string `json:"name"`
	NameLength  uint32 `json:"name_length"`
	Description string `json:"description"`
	DescLength  uint32 `json:"desc_length"`
}

// TextRequest carries the capacity the caller declared for its buffer.
type TextRequest struct {
	Capacity uint32 `json:"capacity"`
}

type TextResponse struct {
	Status uint32 `json:"status"`
	Text   string `json:"text"`
	Length uint32 `json:"length"`
}

type ParameterRequest struct {
	Name  string `json:"name"`
	Value uint32 `json:"value"`
}

type ParameterResponse struct {
	Status uint32 `json:"status"`
	Value  uint32 `json:"value"`
}

type SolveRequest struct {
	Header []byte `json:"header"`
}

type SolutionResponse struct {
	Found bool           `json:"found"`
	Nonce contract.Nonce `json:"nonce"`
	Cycle contract.Proof `json:"cycle"`
}

type PushRequest struct {
	Header []byte         `json:"header"`
	Nonce  contract.Nonce `json:"nonce"`
}

type StatusResponse struct {
	Status uint32 `json:"status"`
}

type StoppedResponse struct {
	Stopped bool `json:"stopped"`
}

type SolverPluginServer interface {
	EntryPoints(ctx context.Context, in *Empty) (*EntryPointsResponse, error)
	Init(ctx context.Context, in *Empty) (*Empty, error)
	Describe(ctx context.Context, in *DescribeRequest) (*DescribeResponse, error)
	ParameterList(ctx context.Context, in *TextRequest) (*TextResponse, error)
	GetParameter(ctx context.Context, in *ParameterRequest) (*ParameterResponse, error)
	SetParameter(ctx context.Context, in *ParameterRequest) (*ParameterResponse, error)
	Solve(ctx context.Context, in *SolveRequest) (*SolutionResponse, error)
	StartProcessing(ctx context.Context, in *Empty) (*StatusResponse, error)
	StopProcessing(ctx context.Context, in *Empty) (*Empty, error)
	HasProcessingStopped(ctx context.Context, in *Empty) (*StoppedResponse, error)
	ResetProcessing(ctx context.Context, in *Empty) (*Empty, error)
	PushToInputQueue(ctx context.Context, in *PushRequest) (*StatusResponse, error)
	ReadFromOutputQueue(ctx context.Context, in *Empty) (*SolutionResponse, error)
	ClearQueues(ctx context.Context, in *Empty) (*Empty, error)
	GetStats(ctx context.Context, in *TextRequest) (*TextResponse, error)
}

func invoke(ctx context.Context, conn *grpc.ClientConn, method string, in, out any) error {
	return conn.Invoke(ctx, "/"+serviceName+"/"+method, in, out, grpc.CallContentSubtype(jsonCodecName))
}

func unary[Req, Resp any](name string, call func(context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + serviceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				typed, ok := req.(*Req)
				if !ok {
					return nil, fmt.Errorf("invalid request type")
				}
				return call(ctx, typed)
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func RegisterSolverPluginServer(server grpc.ServiceRegistrar, impl SolverPluginServer) {
	server.RegisterService(&grpc.ServiceDesc{
		ServiceName: serviceName,
		HandlerType: (*SolverPluginServer)(nil),
		Methods: []grpc.MethodDesc{
			unary(methodEntryPoints, impl.EntryPoints),
			unary(methodInit, impl.Init),
			unary(methodDescribe, impl.Describe),
			unary(methodParameterList, impl.ParameterList),
			unary(methodGetParameter, impl.GetParameter),
			unary(methodSetParameter, impl.SetParameter),
			unary(methodSolve, impl.Solve),
			unary(methodStartProcessing, impl.StartProcessing),
			unary(methodStopProcessing, impl.StopProcessing),
			unary(methodHasProcessingStopped, impl.HasProcessingStopped),
			unary(methodResetProcessing, impl.ResetProcessing),
			unary(methodPushToInputQueue, impl.PushToInputQueue),
			unary(methodReadFromOutputQueue, impl.ReadFromOutputQueue),
			unary(methodClearQueues, impl.ClearQueues),
			unary(methodGetStats, impl.GetStats),
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "schemas/solver-plugin-v1.proto",
	}, impl)
}

type GRPCPlugin struct {
	plugin.NetRPCUnsupportedPlugin
	Impl SolverPluginServer
}

func (p *GRPCPlugin) GRPCServer(_ *plugin.GRPCBroker, server *grpc.Server) error {
	RegisterSolverPluginServer(server, p.Impl)
	return nil
}

func (p *GRPCPlugin) GRPCClient(_ context.Context, _ *plugin.GRPCBroker, conn *grpc.ClientConn) (any, error) {
	return NewClient(conn), nil
}

func PluginMap(impl SolverPluginServer) map[string]plugin.Plugin {
	return map[string]plugin.Plugin{
		PluginMapKey: &GRPCPlugin{Impl: impl},
	}
}
