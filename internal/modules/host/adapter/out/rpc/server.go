package rpc

import (
	"context"

	"cuckoohost/internal/platform/buffer"
	"cuckoohost/internal/platform/contract"
)

// Server exposes a contract.Plugin over the wire. Text entry points run
// against a scratch buffer of the capacity the caller declared.
type Server struct {
	impl        contract.Plugin
	entryPoints []string
}

var _ SolverPluginServer = (*Server)(nil)

func NewServer(impl contract.Plugin, entryPoints []string) *Server {
	if entryPoints == nil {
		entryPoints = contract.RequiredEntryPoints
	}
	return &Server{impl: impl, entryPoints: entryPoints}
}

func (s *Server) EntryPoints(context.Context, *Empty) (*EntryPointsResponse, error) {
	return &EntryPointsResponse{Names: append([]string(nil), s.entryPoints...)}, nil
}

func (s *Server) Init(ctx context.Context, _ *Empty) (*Empty, error) {
	return &Empty{}, s.impl.Init(ctx)
}

func (s *Server) Describe(ctx context.Context, in *DescribeRequest) (*DescribeResponse, error) {
	name := make([]byte, buffer.ScratchSize(in.NameCapacity))
	desc := make([]byte, buffer.ScratchSize(in.DescCapacity))
	nameLen, descLen := uint32(len(name)), uint32(len(desc))
	status, err := s.impl.Description(ctx, name, &nameLen, desc, &descLen)
	if err != nil {
		return nil, err
	}
	return &DescribeResponse{
		Status:      uint32(status),
		Name:        string(name[:nameLen]),
		NameLength:  nameLen,
		Description: string(desc[:descLen]),
		DescLength:  descLen,
	}, nil
}

func (s *Server) ParameterList(ctx context.Context, in *TextRequest) (*TextResponse, error) {
	return s.text(ctx, in, s.impl.ParameterList)
}

func (s *Server) GetParameter(ctx context.Context, in *ParameterRequest) (*ParameterResponse, error) {
	value, status, err := s.impl.GetParameter(ctx, in.Name)
	if err != nil {
		return nil, err
	}
	return &ParameterResponse{Status: uint32(status), Value: value}, nil
}

func (s *Server) SetParameter(ctx context.Context, in *ParameterRequest) (*ParameterResponse, error) {
	status, err := s.impl.SetParameter(ctx, in.Name, in.Value)
	if err != nil {
		return nil, err
	}
	return &ParameterResponse{Status: uint32(status)}, nil
}

func (s *Server) Solve(ctx context.Context, in *SolveRequest) (*SolutionResponse, error) {
	sol, found, err := s.impl.Solve(ctx, in.Header)
	if err != nil {
		return nil, err
	}
	return solutionResponse(sol, found), nil
}

func (s *Server) StartProcessing(ctx context.Context, _ *Empty) (*StatusResponse, error) {
	status, err := s.impl.StartProcessing(ctx)
	if err != nil {
		return nil, err
	}
	return &StatusResponse{Status: uint32(status)}, nil
}

func (s *Server) StopProcessing(ctx context.Context, _ *Empty) (*Empty, error) {
	return &Empty{}, s.impl.StopProcessing(ctx)
}

func (s *Server) HasProcessingStopped(ctx context.Context, _ *Empty) (*StoppedResponse, error) {
	stopped, err := s.impl.HasProcessingStopped(ctx)
	if err != nil {
		return nil, err
	}
	return &StoppedResponse{Stopped: stopped}, nil
}

func (s *Server) ResetProcessing(ctx context.Context, _ *Empty) (*Empty, error) {
	return &Empty{}, s.impl.ResetProcessing(ctx)
}

func (s *Server) PushToInputQueue(ctx context.Context, in *PushRequest) (*StatusResponse, error) {
	status, err := s.impl.PushToInputQueue(ctx, in.Header, in.Nonce)
	if err != nil {
		return nil, err
	}
	return &StatusResponse{Status: uint32(status)}, nil
}

func (s *Server) ReadFromOutputQueue(ctx context.Context, _ *Empty) (*SolutionResponse, error) {
	sol, found, err := s.impl.ReadFromOutputQueue(ctx)
	if err != nil {
		return nil, err
	}
	return solutionResponse(sol, found), nil
}

func (s *Server) ClearQueues(ctx context.Context, _ *Empty) (*Empty, error) {
	return &Empty{}, s.impl.ClearQueues(ctx)
}

func (s *Server) GetStats(ctx context.Context, in *TextRequest) (*TextResponse, error) {
	return s.text(ctx, in, s.impl.Stats)
}

func (s *Server) text(ctx context.Context, in *TextRequest, call func(context.Context, []byte, *uint32) (contract.Status, error)) (*TextResponse, error) {
	buf := make([]byte, buffer.ScratchSize(in.Capacity))
	length := uint32(len(buf))
	status, err := call(ctx, buf, &length)
	if err != nil {
		return nil, err
	}
	return &TextResponse{Status: uint32(status), Text: string(buf[:length]), Length: length}, nil
}

func solutionResponse(sol contract.Solution, found bool) *SolutionResponse {
	if !found {
		return &SolutionResponse{}
	}
	return &SolutionResponse{Found: true, Nonce: sol.Nonce, Cycle: sol.Cycle}
}
