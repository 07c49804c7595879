package agent

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// ServeMCP exposes the memory tools over MCP stdio so external agent
// runtimes can call them. Blocks until stdin closes or ctx is cancelled.
func (s *Service) ServeMCP(ctx context.Context) error {
	mcpServer := server.NewMCPServer("kasal-memory", "1.0.0",
		server.WithToolCapabilities(false),
	)

	for _, tool := range s.Tools() {
		call := tool.Call

		mcpServer.AddTool(
			mcp.NewTool(tool.Name(),
				mcp.WithDescription(tool.Description()),
				mcp.WithString("input",
					mcp.Required(),
					mcp.Description("JSON input, see the tool description for the expected shape"),
				),
			),
			func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				input, err := request.RequireString("input")
				if err != nil {
					return mcp.NewToolResultError(err.Error()), nil
				}

				out, err := call(ctx, input)
				if err != nil {
					return mcp.NewToolResultError(err.Error()), nil
				}

				return mcp.NewToolResultText(out), nil
			},
		)
	}

	slog.Info("Serving memory tools over MCP stdio")

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ServeStdio(mcpServer)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}
