package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"strings"

	"github.com/fatih/color"

	"github.com/Wxl-c137/BlindMarkerMaster/excel"
	"github.com/Wxl-c137/BlindMarkerMaster/models"
	"github.com/Wxl-c137/BlindMarkerMaster/progress"
	"github.com/Wxl-c137/BlindMarkerMaster/report"
	"github.com/Wxl-c137/BlindMarkerMaster/services"
)

// Exit codes of the CLI wrapper.
const (
	exitOK      = 0
	exitOther   = 1
	exitBadArgs = 2
	exitArchive = 3
	exitPayload = 4
	exitCrypto  = 5
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		usage()
		return exitBadArgs
	}

	if addr := os.Getenv("BM_METRICS_ADDR"); addr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", progress.MetricsHandler())
			_ = http.ListenAndServe(addr, mux)
		}()
	}

	switch args[0] {
	case "embed":
		return cmdEmbed(args[1:])
	case "scan":
		return cmdScan(args[1:])
	case "images":
		return cmdImages(args[1:])
	case "excel":
		return cmdExcel(args[1:])
	case "cpus":
		fmt.Println(runtime.NumCPU())
		return exitOK
	case "-h", "--help", "help":
		usage()
		return exitOK
	default:
		color.Red("unknown command: %s", args[0])
		usage()
		return exitBadArgs
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: blindmark <command> [flags]

commands:
  embed    watermark every eligible file in an archive and repackage it
  scan     recover all watermarks from an archive
  images   list PNG/JPEG entries of an archive
  excel    preview the payload texts of a spreadsheet
  cpus     print the logical CPU count`)
}

func cmdEmbed(args []string) int {
	fs := flag.NewFlagSet("embed", flag.ExitOnError)
	archivePath := fs.String("archive", "", "archive to process (zip/var/7z/rar)")
	text := fs.String("text", "", "single watermark payload text")
	excelPath := fs.String("excel", "", "spreadsheet with one payload per row (column A)")
	strength := fs.Float64("strength", 0.5, "embed strength in [0.1, 1.0]")
	mode := fs.String("mode", "md5", "encoding mode: md5 | plaintext | aes")
	aesKey := fs.String("key", "", "passphrase for aes mode")
	field := fs.String("field", "", "structured watermark field name (default \"_watermark\")")
	obfuscate := fs.Bool("obfuscate", false, "disguise the watermark field with a randomized name")
	doImages := fs.Bool("images", true, "process PNG images")
	doJSON := fs.Bool("json", true, "process .json files")
	doVAJ := fs.Bool("vaj", true, "process .vaj files")
	doVMI := fs.Bool("vmi", true, "process .vmi files")
	selected := fs.String("select", "", "comma-separated PNG relative paths to mark (default: all)")
	fastMode := fs.Bool("fast", false, "only mark the top-left 512x512 region of large images")
	outputDir := fs.String("out", "", "output directory (default: beside the archive)")
	fs.Parse(args)

	cfg := models.JobConfig{
		ArchivePath:   *archivePath,
		Strength:      *strength,
		Mode:          models.ParseEncodingMode(*mode),
		AESKey:        *aesKey,
		FieldName:     *field,
		Obfuscate:     *obfuscate,
		ProcessImages: *doImages,
		ProcessJSON:   *doJSON,
		ProcessVAJ:    *doVAJ,
		ProcessVMI:    *doVMI,
		FastMode:      *fastMode,
		OutputDir:     *outputDir,
	}
	if *excelPath != "" {
		cfg.Source = models.ExcelFile(*excelPath)
	} else {
		cfg.Source = models.SingleText(*text)
	}
	if *selected != "" {
		for _, rel := range strings.Split(*selected, ",") {
			if rel = strings.TrimSpace(rel); rel != "" {
				cfg.SelectedImages = append(cfg.SelectedImages, rel)
			}
		}
	}

	jobs := services.NewJobService(nil)
	output, err := jobs.ProcessArchive(context.Background(), cfg, consoleEmitter())
	if err != nil {
		color.Red("embed failed: %v", err)
		return exitCode(err)
	}
	color.Green("output: %s", output)
	return exitOK
}

func cmdScan(args []string) int {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	archivePath := fs.String("archive", "", "archive to scan")
	aesKey := fs.String("key", "", "passphrase for decrypting aes-mode marks")
	noImages := fs.Bool("no-images", false, "skip blind extraction on PNG images")
	qrDir := fs.String("qr", "", "also render each structured finding as a QR PNG into this directory")
	fs.Parse(args)

	if *archivePath == "" {
		color.Red("scan: -archive is required")
		return exitBadArgs
	}

	jobs := services.NewJobService(nil)
	result, err := jobs.ScanAll(context.Background(), *archivePath, *aesKey, !*noImages)
	if err != nil {
		color.Red("scan failed: %v", err)
		return exitCode(err)
	}

	out, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(out))

	if *qrDir != "" && len(result.JSONFindings) > 0 {
		written, err := report.ExportFindings(*qrDir, result.JSONFindings)
		if err != nil {
			color.Red("qr export failed: %v", err)
			return exitOther
		}
		for _, path := range written {
			color.Cyan("qr: %s", path)
		}
	}
	return exitOK
}

func cmdImages(args []string) int {
	fs := flag.NewFlagSet("images", flag.ExitOnError)
	archivePath := fs.String("archive", "", "archive to list")
	fs.Parse(args)

	if *archivePath == "" {
		color.Red("images: -archive is required")
		return exitBadArgs
	}

	jobs := services.NewJobService(nil)
	paths, err := jobs.ListImages(context.Background(), *archivePath)
	if err != nil {
		color.Red("list failed: %v", err)
		return exitCode(err)
	}
	for _, p := range paths {
		fmt.Println(p)
	}
	return exitOK
}

func cmdExcel(args []string) int {
	fs := flag.NewFlagSet("excel", flag.ExitOnError)
	path := fs.String("path", "", "spreadsheet to read")
	fs.Parse(args)

	if *path == "" {
		color.Red("excel: -path is required")
		return exitBadArgs
	}
	payloads, err := excel.ReadPayloadColumn(*path)
	if err != nil {
		color.Red("read failed: %v", err)
		return exitCode(err)
	}
	for _, p := range payloads {
		fmt.Println(p)
	}
	return exitOK
}

// consoleEmitter renders progress events for an interactive terminal.
func consoleEmitter() *progress.Emitter {
	return progress.NewEmitter(progress.SinkFunc(func(topic string, payload any) {
		switch ev := payload.(type) {
		case progress.StatusEvent:
			switch ev.Status {
			case progress.StatusError:
				color.Red("[%s] %s", ev.Status, ev.Message)
			case progress.StatusComplete:
				color.Green("[%s] %s", ev.Status, ev.Message)
				if ev.Summary != nil && ev.Summary.SkipCount > 0 {
					color.Yellow("skipped %d file(s): %v", ev.Summary.SkipCount, ev.Summary.Skips)
				}
			case progress.StatusWarning:
				color.Yellow("[%s] %s", ev.Status, ev.Message)
			default:
				fmt.Printf("[%s] %s\n", ev.Status, ev.Message)
			}
		case models.ScanSummary:
			fmt.Printf("found %d json, %d vaj, %d vmi, %d image file(s)\n",
				ev.JSONCount, ev.VAJCount, ev.VMICount, ev.ImageCount)
		case progress.DetailProgressEvent:
			fmt.Printf("  [%s %d/%d] %s\n", ev.FileType, ev.TypeCurrent, ev.TypeTotal, ev.Filename)
		}
	}))
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidConfig):
		return exitBadArgs
	case errors.Is(err, models.ErrArchive), errors.Is(err, models.ErrUnsupportedArchive):
		return exitArchive
	case errors.Is(err, models.ErrPayload), errors.Is(err, models.ErrExcel), errors.Is(err, models.ErrInvalidJSON):
		return exitPayload
	case errors.Is(err, models.ErrCrypto):
		return exitCrypto
	default:
		return exitOther
	}
}
