package rpc

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// DefaultPingInterval is how often an MCP session is pinged to check liveness.
const DefaultPingInterval = 15 * time.Second

// MCPDialer dials the dashboard MCP endpoint over SSE.
type MCPDialer struct {
	// URL of the SSE endpoint, e.g. http://localhost:3001/mcp.
	URL           string
	ClientName    string
	ClientVersion string
	// PingInterval defaults to DefaultPingInterval.
	PingInterval time.Duration
}

// Dial opens the SSE stream and performs the initialize handshake.
func (d MCPDialer) Dial(ctx context.Context) (Session, error) {
	cli, err := client.NewSSEMCPClient(d.URL)
	if err != nil {
		return nil, fmt.Errorf("create sse client: %w", err)
	}

	// The stream outlives ctx; ctx only bounds the handshake.
	life, cancel := context.WithCancel(context.Background())
	stop := context.AfterFunc(ctx, cancel)
	fail := func(err error) (Session, error) {
		stop()
		_ = cli.Close()
		cancel()
		return nil, err
	}

	if err := cli.Start(life); err != nil {
		return fail(fmt.Errorf("start sse transport: %w", err))
	}
	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcp.Implementation{
		Name:    orDefault(d.ClientName, "6G-Dashboard-Go-Client"),
		Version: orDefault(d.ClientVersion, "1.0.0"),
	}
	if _, err := cli.Initialize(ctx, req); err != nil {
		return fail(fmt.Errorf("initialize: %w", err))
	}
	if !stop() {
		return fail(ctx.Err())
	}

	interval := d.PingInterval
	if interval <= 0 {
		interval = DefaultPingInterval
	}
	s := &mcpSession{
		cli:    cli,
		cancel: cancel,
		done:   make(chan struct{}),
		closed: make(chan struct{}),
	}
	go s.keepalive(interval)
	return s, nil
}

type mcpSession struct {
	cli    *client.Client
	cancel context.CancelFunc

	doneOnce  sync.Once
	done      chan struct{}
	closeOnce sync.Once
	closed    chan struct{}
}

func (s *mcpSession) CallTool(ctx context.Context, name string, args map[string]any) ([]string, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	res, err := s.cli.CallTool(ctx, req)
	if err != nil {
		return nil, err
	}
	texts := textContents(res.Content)
	if res.IsError {
		return nil, fmt.Errorf("tool error: %s", strings.Join(texts, "; "))
	}
	return texts, nil
}

func (s *mcpSession) ReadResource(ctx context.Context, uri string) ([]string, error) {
	req := mcp.ReadResourceRequest{}
	req.Params.URI = uri
	res, err := s.cli.ReadResource(ctx, req)
	if err != nil {
		return nil, err
	}
	var texts []string
	for _, c := range res.Contents {
		switch v := c.(type) {
		case mcp.TextResourceContents:
			texts = append(texts, v.Text)
		case *mcp.TextResourceContents:
			texts = append(texts, v.Text)
		}
	}
	return texts, nil
}

func (s *mcpSession) Done() <-chan struct{} { return s.done }

func (s *mcpSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		err = s.cli.Close()
		s.cancel()
		s.markDone()
	})
	return err
}

func (s *mcpSession) markDone() {
	s.doneOnce.Do(func() { close(s.done) })
}

// keepalive pings the server until the session is closed; the first failed
// ping marks the session lost.
func (s *mcpSession) keepalive(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.closed:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			err := s.cli.Ping(ctx)
			cancel()
			if err != nil {
				s.markDone()
				return
			}
		}
	}
}

func textContents(content []mcp.Content) []string {
	var texts []string
	for _, c := range content {
		switch v := c.(type) {
		case mcp.TextContent:
			texts = append(texts, v.Text)
		case *mcp.TextContent:
			texts = append(texts, v.Text)
		}
	}
	return texts
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
