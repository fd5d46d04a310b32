package in

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"cuckoohost/internal/modules/host/dto"
	hostin "cuckoohost/internal/modules/host/port/in"
	apperrors "cuckoohost/internal/platform/errors"
)

type CLIHandler struct {
	usecase hostin.Usecase
}

func NewCLIHandler(usecase hostin.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) Plugins(ctx context.Context) ([]dto.PluginInfo, error) {
	return h.usecase.Plugins(ctx)
}

func (h CLIHandler) Describe(ctx context.Context, plugin string) (dto.Description, error) {
	if err := requirePlugin(plugin); err != nil {
		return dto.Description{}, err
	}
	return h.usecase.Describe(ctx, plugin)
}

func (h CLIHandler) Params(ctx context.Context, plugin string) ([]dto.Parameter, error) {
	if err := requirePlugin(plugin); err != nil {
		return nil, err
	}
	return h.usecase.Params(ctx, plugin)
}

// Solve decodes headerHex and runs a synchronous search.
func (h CLIHandler) Solve(ctx context.Context, plugin, headerHex string, attempts int) (dto.SolveOutput, error) {
	if err := requirePlugin(plugin); err != nil {
		return dto.SolveOutput{}, err
	}
	header, err := ParseHeader(headerHex)
	if err != nil {
		return dto.SolveOutput{}, err
	}
	return h.usecase.Solve(ctx, dto.SolveInput{Plugin: plugin, Header: header, Attempts: attempts})
}

func (h CLIHandler) Stats(ctx context.Context, plugin string) ([]dto.DeviceStat, error) {
	if err := requirePlugin(plugin); err != nil {
		return nil, err
	}
	return h.usecase.Stats(ctx, plugin)
}

func (h CLIHandler) Mine(ctx context.Context, input dto.MineInput) (dto.MineOutput, error) {
	if err := requirePlugin(input.Plugin); err != nil {
		return dto.MineOutput{}, err
	}
	return h.usecase.Mine(ctx, input)
}

func (h CLIHandler) Soak(ctx context.Context, input dto.SoakInput) (dto.SoakOutput, error) {
	if err := requirePlugin(input.Plugin); err != nil {
		return dto.SoakOutput{}, err
	}
	return h.usecase.Soak(ctx, input)
}

func (h CLIHandler) OpenSession(ctx context.Context, plugin string) (hostin.Session, error) {
	if err := requirePlugin(plugin); err != nil {
		return nil, err
	}
	return h.usecase.OpenSession(ctx, plugin)
}

// ParseHeader decodes a hex header. An optional 0x prefix is accepted.
func ParseHeader(text string) ([]byte, error) {
	text = strings.TrimPrefix(strings.TrimSpace(text), "0x")
	header, err := hex.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("%w: header is not hex: %v", apperrors.ErrInvalidInput, err)
	}
	return header, nil
}

func requirePlugin(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: plugin name is required", apperrors.ErrInvalidInput)
	}
	return nil
}
