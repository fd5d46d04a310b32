package rpc

import (
	"context"

	"google.golang.org/grpc"

	"cuckoohost/internal/platform/buffer"
	"cuckoohost/internal/platform/contract"
)

// Client is the host side of the wire contract. Text results are replayed
// into the caller's buffer with buffer.WriteText, so a remote plugin obeys
// the same marshaling rule as an in-process one.
type Client struct {
	conn *grpc.ClientConn
}

var _ contract.Plugin = (*Client)(nil)

func NewClient(conn *grpc.ClientConn) *Client {
	return &Client{conn: conn}
}

func (c *Client) EntryPoints(ctx context.Context) ([]string, error) {
	out := &EntryPointsResponse{}
	if err := invoke(ctx, c.conn, methodEntryPoints, &Empty{}, out); err != nil {
		return nil, err
	}
	return out.Names, nil
}

func (c *Client) Init(ctx context.Context) error {
	return invoke(ctx, c.conn, methodInit, &Empty{}, &Empty{})
}

func (c *Client) Description(ctx context.Context, name []byte, nameLen *uint32, desc []byte, descLen *uint32) (contract.Status, error) {
	in := &DescribeRequest{
		NameCapacity: uint32(buffer.Capacity(name, *nameLen)),
		DescCapacity: uint32(buffer.Capacity(desc, *descLen)),
	}
	out := &DescribeResponse{}
	if err := invoke(ctx, c.conn, methodDescribe, in, out); err != nil {
		return 0, err
	}
	nameStatus := replayLength(name, nameLen, out.Name, out.NameLength)
	descStatus := replayLength(desc, descLen, out.Description, out.DescLength)
	if contract.Status(out.Status) != contract.StatusOK {
		return contract.Status(out.Status), nil
	}
	if nameStatus != contract.StatusOK {
		return nameStatus, nil
	}
	return descStatus, nil
}

func (c *Client) ParameterList(ctx context.Context, buf []byte, length *uint32) (contract.Status, error) {
	return c.text(ctx, methodParameterList, buf, length)
}

func (c *Client) GetParameter(ctx context.Context, name string) (uint32, contract.Status, error) {
	out := &ParameterResponse{}
	if err := invoke(ctx, c.conn, methodGetParameter, &ParameterRequest{Name: name}, out); err != nil {
		return 0, 0, err
	}
	return out.Value, contract.Status(out.Status), nil
}

func (c *Client) SetParameter(ctx context.Context, name string, value uint32) (contract.Status, error) {
	out := &ParameterResponse{}
	if err := invoke(ctx, c.conn, methodSetParameter, &ParameterRequest{Name: name, Value: value}, out); err != nil {
		return 0, err
	}
	return contract.Status(out.Status), nil
}

func (c *Client) Solve(ctx context.Context, header []byte) (contract.Solution, bool, error) {
	out := &SolutionResponse{}
	if err := invoke(ctx, c.conn, methodSolve, &SolveRequest{Header: header}, out); err != nil {
		return contract.Solution{}, false, err
	}
	return contract.Solution{Nonce: out.Nonce, Cycle: out.Cycle}, out.Found, nil
}

func (c *Client) StartProcessing(ctx context.Context) (contract.Status, error) {
	out := &StatusResponse{}
	if err := invoke(ctx, c.conn, methodStartProcessing, &Empty{}, out); err != nil {
		return 0, err
	}
	return contract.Status(out.Status), nil
}

func (c *Client) StopProcessing(ctx context.Context) error {
	return invoke(ctx, c.conn, methodStopProcessing, &Empty{}, &Empty{})
}

func (c *Client) HasProcessingStopped(ctx context.Context) (bool, error) {
	out := &StoppedResponse{}
	if err := invoke(ctx, c.conn, methodHasProcessingStopped, &Empty{}, out); err != nil {
		return false, err
	}
	return out.Stopped, nil
}

func (c *Client) ResetProcessing(ctx context.Context) error {
	return invoke(ctx, c.conn, methodResetProcessing, &Empty{}, &Empty{})
}

func (c *Client) PushToInputQueue(ctx context.Context, header []byte, nonce contract.Nonce) (contract.Status, error) {
	out := &StatusResponse{}
	if err := invoke(ctx, c.conn, methodPushToInputQueue, &PushRequest{Header: header, Nonce: nonce}, out); err != nil {
		return 0, err
	}
	return contract.Status(out.Status), nil
}

func (c *Client) ReadFromOutputQueue(ctx context.Context) (contract.Solution, bool, error) {
	out := &SolutionResponse{}
	if err := invoke(ctx, c.conn, methodReadFromOutputQueue, &Empty{}, out); err != nil {
		return contract.Solution{}, false, err
	}
	return contract.Solution{Nonce: out.Nonce, Cycle: out.Cycle}, out.Found, nil
}

func (c *Client) ClearQueues(ctx context.Context) error {
	return invoke(ctx, c.conn, methodClearQueues, &Empty{}, &Empty{})
}

func (c *Client) Stats(ctx context.Context, buf []byte, length *uint32) (contract.Status, error) {
	return c.text(ctx, methodGetStats, buf, length)
}

func (c *Client) text(ctx context.Context, method string, buf []byte, length *uint32) (contract.Status, error) {
	out := &TextResponse{}
	if err := invoke(ctx, c.conn, method, &TextRequest{Capacity: uint32(buffer.Capacity(buf, *length))}, out); err != nil {
		return 0, err
	}
	if status := contract.Status(out.Status); status != contract.StatusOK {
		*length = 0
		return status, nil
	}
	return buffer.WriteText(buf, length, out.Text), nil
}

// replayLength copies one describe output into the caller's buffer. A zero
// remote length means the plugin wrote nothing into that buffer.
func replayLength(dst []byte, length *uint32, text string, remoteLen uint32) contract.Status {
	if remoteLen == 0 {
		*length = 0
		return contract.StatusBufferTooSmall
	}
	return buffer.WriteText(dst, length, text)
}
