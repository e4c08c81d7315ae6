package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Wxl-c137/BlindMarkerMaster/excel"
	"github.com/Wxl-c137/BlindMarkerMaster/models"
)

// registerProcessArchiveTool exposes the embed job.
func (s *MCPServer) registerProcessArchiveTool() {
	tool := mcp.NewTool("process_archive",
		mcp.WithDescription("Embed a blind watermark into every eligible file of an archive and repackage it"),
		mcp.WithString("archive_path", mcp.Required(), mcp.Description("Path to the ZIP/VAR/7Z/RAR archive")),
		mcp.WithNumber("strength", mcp.Description("Embed strength in [0.1, 1.0], default 0.5")),
		mcp.WithString("watermark_text", mcp.Description("Single payload text (mutually exclusive with excel_path)")),
		mcp.WithString("excel_path", mcp.Description("Spreadsheet with one payload per row in column A")),
		mcp.WithString("watermark_key", mcp.Description("Structured watermark field name, default \"_watermark\"")),
		mcp.WithString("watermark_mode", mcp.Description("Encoding mode: md5 (default), plaintext or aes")),
		mcp.WithString("aes_key", mcp.Description("Passphrase, required for aes mode")),
		mcp.WithBoolean("process_images", mcp.Description("Watermark PNG images (default true)")),
		mcp.WithBoolean("process_json", mcp.Description("Watermark .json files (default true)")),
		mcp.WithBoolean("process_vaj", mcp.Description("Watermark .vaj files (default true)")),
		mcp.WithBoolean("process_vmi", mcp.Description("Watermark .vmi files (default true)")),
		mcp.WithBoolean("obfuscate", mcp.Description("Disguise the watermark field with a randomized name")),
		mcp.WithBoolean("fast_mode", mcp.Description("Only mark the top-left 512x512 region of large images")),
		mcp.WithArray("selected_images", mcp.Description("Restrict marking to these PNG relative paths")),
		mcp.WithString("output_dir", mcp.Description("Output directory, default beside the archive")),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		archivePath, err := request.RequireString("archive_path")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		args := request.GetArguments()

		cfg := models.JobConfig{
			ArchivePath:   archivePath,
			Strength:      numberArg(args, "strength", 0.5),
			Mode:          models.ParseEncodingMode(stringArg(args, "watermark_mode")),
			AESKey:        stringArg(args, "aes_key"),
			FieldName:     stringArg(args, "watermark_key"),
			Obfuscate:     boolArg(args, "obfuscate", false),
			ProcessImages: boolArg(args, "process_images", true),
			ProcessJSON:   boolArg(args, "process_json", true),
			ProcessVAJ:    boolArg(args, "process_vaj", true),
			ProcessVMI:    boolArg(args, "process_vmi", true),
			FastMode:      boolArg(args, "fast_mode", false),
			OutputDir:     stringArg(args, "output_dir"),
		}
		if excelPath := stringArg(args, "excel_path"); excelPath != "" {
			cfg.Source = models.ExcelFile(excelPath)
		} else {
			cfg.Source = models.SingleText(stringArg(args, "watermark_text"))
		}
		if sel, ok := args["selected_images"].([]interface{}); ok {
			for _, item := range sel {
				if rel, ok := item.(string); ok {
					cfg.SelectedImages = append(cfg.SelectedImages, rel)
				}
			}
		}

		output, err := s.jobs.ProcessArchive(ctx, cfg, logSink())
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("process_archive failed: %v", err)), nil
		}
		return mcp.NewToolResultText(output), nil
	})
}

// registerScanAllWatermarksTool exposes the combined scan.
func (s *MCPServer) registerScanAllWatermarksTool() {
	tool := mcp.NewTool("scan_all_watermarks_in_archive",
		mcp.WithDescription("Recover every watermark from an archive: structured marks and PNG blind marks"),
		mcp.WithString("archive_path", mcp.Required(), mcp.Description("Path to the archive")),
		mcp.WithString("aes_key", mcp.Description("Passphrase for decrypting aes-mode marks")),
		mcp.WithBoolean("scan_images", mcp.Description("Also run blind extraction on PNG images (default true)")),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		archivePath, err := request.RequireString("archive_path")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		args := request.GetArguments()

		result, err := s.jobs.ScanAll(ctx, archivePath, stringArg(args, "aes_key"), boolArg(args, "scan_images", true))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("scan failed: %v", err)), nil
		}
		return jsonResult(result)
	})
}

// registerListImagesTool exposes image enumeration.
func (s *MCPServer) registerListImagesTool() {
	tool := mcp.NewTool("list_images_in_archive",
		mcp.WithDescription("List the relative paths of all PNG and JPEG entries in an archive"),
		mcp.WithString("archive_path", mcp.Required(), mcp.Description("Path to the archive")),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		archivePath, err := request.RequireString("archive_path")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		paths, err := s.jobs.ListImages(ctx, archivePath)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list images failed: %v", err)), nil
		}
		return jsonResult(paths)
	})
}

// registerGetCPUCountTool exposes the parallelism hint.
func (s *MCPServer) registerGetCPUCountTool() {
	tool := mcp.NewTool("get_cpu_count",
		mcp.WithDescription("Return the number of logical CPUs used for parallel processing"),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultText(fmt.Sprintf("%d", runtime.NumCPU())), nil
	})
}

// registerReadExcelTool exposes the spreadsheet preview.
func (s *MCPServer) registerReadExcelTool() {
	tool := mcp.NewTool("read_excel_watermarks",
		mcp.WithDescription("Read the payload texts a spreadsheet would contribute (column A, header skipped)"),
		mcp.WithString("excel_path", mcp.Required(), mcp.Description("Path to the spreadsheet")),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		excelPath, err := request.RequireString("excel_path")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		payloads, err := excel.ReadPayloadColumn(excelPath)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("read spreadsheet failed: %v", err)), nil
		}
		return jsonResult(payloads)
	})
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func stringArg(args map[string]interface{}, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func boolArg(args map[string]interface{}, key string, def bool) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return def
}

func numberArg(args map[string]interface{}, key string, def float64) float64 {
	if v, ok := args[key].(float64); ok {
		return v
	}
	return def
}
