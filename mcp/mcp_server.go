package mcp

import (
	"log"

	"github.com/mark3labs/mcp-go/server"

	"github.com/Wxl-c137/BlindMarkerMaster/progress"
	"github.com/Wxl-c137/BlindMarkerMaster/services"
)

// MCPServer wraps the mcp-go server around the watermark engine.
type MCPServer struct {
	mcpServer *server.MCPServer
	jobs      *services.JobService
}

// NewMCPServer creates the MCP command surface.
func NewMCPServer(jobs *services.JobService) *MCPServer {
	mcpServer := server.NewMCPServer(
		"BlindMarker MCP Server",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	s := &MCPServer{
		mcpServer: mcpServer,
		jobs:      jobs,
	}
	s.registerTools()
	return s
}

// GetMCPServer returns the underlying MCP server for transport setup.
func (s *MCPServer) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *MCPServer) registerTools() {
	s.registerProcessArchiveTool()
	s.registerScanAllWatermarksTool()
	s.registerListImagesTool()
	s.registerGetCPUCountTool()
	s.registerReadExcelTool()
}

// logSink forwards progress events to the process log; over the stdio
// transport there is no event channel back to the client.
func logSink() *progress.Emitter {
	return progress.NewEmitter(progress.SinkFunc(func(topic string, payload any) {
		log.Printf("%s: %+v", topic, payload)
	}))
}
