package out

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"time"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-plugin"

	classifierrpc "tabtrail/internal/modules/classifier/adapter/out/rpc"
	"tabtrail/internal/modules/classifier/domain"
	classifierout "tabtrail/internal/modules/classifier/port/out"
)

const (
	defaultStartTimeout = 3 * time.Second
	defaultCallTimeout  = 5 * time.Second
)

// GRPCHost runs classifier binaries through go-plugin. Plugin process output
// goes to logOutput (discarded when nil).
type GRPCHost struct {
	logOutput io.Writer
	logLevel  hclog.Level
}

func NewGRPCHost(logOutput io.Writer) *GRPCHost {
	if logOutput == nil {
		return &GRPCHost{logOutput: io.Discard, logLevel: hclog.NoLevel}
	}
	return &GRPCHost{logOutput: logOutput, logLevel: hclog.Warn}
}

func (h *GRPCHost) CheckLifecycle(ctx context.Context, manifest domain.Manifest) error {
	_, err := h.GetMetadata(ctx, manifest)
	return err
}

func (h *GRPCHost) GetMetadata(ctx context.Context, manifest domain.Manifest) (domain.Metadata, error) {
	conn, err := h.dial(manifest)
	if err != nil {
		return domain.Metadata{}, err
	}
	defer conn.Close()

	callCtx, cancel := callContext(ctx, defaultCallTimeout)
	defer cancel()
	meta, err := conn.rpc.GetMetadata(callCtx)
	if err != nil {
		return domain.Metadata{}, fmt.Errorf("get metadata: %w", err)
	}
	capabilities := make([]domain.Capability, 0, len(meta.Capabilities))
	for _, capability := range meta.Capabilities {
		capabilities = append(capabilities, domain.Capability(capability))
	}
	return domain.Metadata{Name: meta.Name, Version: meta.Version, Capabilities: capabilities, Categories: meta.Categories}, nil
}

func (h *GRPCHost) Connect(ctx context.Context, manifest domain.Manifest) (classifierout.Conn, error) {
	conn, err := h.dial(manifest)
	if err != nil {
		return nil, err
	}
	callCtx, cancel := callContext(ctx, defaultCallTimeout)
	defer cancel()
	if _, err := conn.rpc.GetMetadata(callCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("get metadata: %w", err)
	}
	return conn, nil
}

type grpcConn struct {
	name   string
	client *plugin.Client
	rpc    classifierrpc.ClassifierClient
}

func (c *grpcConn) Classify(ctx context.Context, req domain.Request) (domain.Verdict, error) {
	if c.client.Exited() {
		return domain.Verdict{}, fmt.Errorf("classifier %s exited", c.name)
	}
	resp, err := c.rpc.Classify(ctx, &classifierrpc.ClassifyRequest{
		URL:   req.URL,
		Host:  req.Host,
		Path:  req.Path,
		Title: req.Title,
	})
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return domain.Verdict{}, fmt.Errorf("%w: %s", domain.ErrPluginTimeout, c.name)
		}
		return domain.Verdict{}, fmt.Errorf("classify: %w", err)
	}
	return domain.Verdict{Category: resp.Category, Confidence: resp.Confidence, Source: c.name}, nil
}

func (c *grpcConn) Close() error {
	c.client.Kill()
	return nil
}

func (h *GRPCHost) dial(manifest domain.Manifest) (*grpcConn, error) {
	client := plugin.NewClient(&plugin.ClientConfig{
		HandshakeConfig:  classifierrpc.HandshakeConfig,
		AllowedProtocols: []plugin.Protocol{plugin.ProtocolGRPC},
		Plugins:          classifierrpc.PluginMap(nil),
		Cmd:              exec.Command(manifest.Binary),
		Managed:          true,
		StartTimeout:     defaultStartTimeout,
		Logger: hclog.New(&hclog.LoggerOptions{
			Name:       "classifier." + manifest.Name,
			Output:     h.logOutput,
			Level:      h.logLevel,
			JSONFormat: true,
		}),
	})

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("start classifier %s: %w", manifest.Name, err)
	}
	raw, err := rpcClient.Dispense(classifierrpc.PluginMapKey)
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("dispense classifier %s: %w", manifest.Name, err)
	}
	typed, ok := raw.(classifierrpc.ClassifierClient)
	if !ok {
		client.Kill()
		return nil, fmt.Errorf("classifier %s rpc client type mismatch", manifest.Name)
	}
	return &grpcConn{name: manifest.Name, client: client, rpc: typed}, nil
}

func callContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := parent.Deadline(); ok {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, timeout)
}
