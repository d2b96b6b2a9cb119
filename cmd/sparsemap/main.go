package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/alecthomas/kingpin/v2"
	"github.com/dustin/go-humanize"
	"github.com/oklog/run"
	"github.com/sirupsen/logrus"

	"github.com/svenwiltink/sparsemap"
	"github.com/svenwiltink/sparsemap/format"
)

const (
	// LoggerTypeDefault is the logger default type.
	LoggerTypeDefault = "default"
	// LoggerTypeJSON is the logger json type.
	LoggerTypeJSON = "json"
)

// Version is the application version (set via ldflags).
var Version = "dev"

type rootConfig struct {
	Debug      bool
	NoLog      bool
	NoColor    bool
	LoggerType string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger *logrus.Entry
}

// Run runs the main application.
func Run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	app := kingpin.New("sparsemap", "Sparse file layout discovery and transfer tool.")
	app.DefaultEnvars()

	cfg := &rootConfig{Stdin: stdin, Stdout: stdout, Stderr: stderr}
	app.Flag("debug", "Enable debug mode.").BoolVar(&cfg.Debug)
	app.Flag("no-log", "Disable logger.").BoolVar(&cfg.NoLog)
	app.Flag("no-color", "Disable logger color.").BoolVar(&cfg.NoColor)
	app.Flag("logger", "Selects the logger type.").Default(LoggerTypeDefault).EnumVar(&cfg.LoggerType, LoggerTypeDefault, LoggerTypeJSON)

	mapCmd := app.Command("map", "Print the data/hole layout of files.")
	mapFiles := mapCmd.Arg("file", "Files to map.").Required().ExistingFiles()
	mapSegments := mapCmd.Flag("segments", "List every segment instead of a summary.").Bool()

	sendCmd := app.Command("send", "Stream a sparse file to stdout.")
	sendFile := sendCmd.Arg("file", "File to send.").Required().ExistingFile()
	sendFormat := sendCmd.Flag("format", "Wire format to use.").Default("rbd-diff-v1").Enum(format.Names()...)

	receiveCmd := app.Command("receive", "Receive a sparse stream from stdin into a file.")
	receiveFile := receiveCmd.Arg("file", "Target file.").Required().String()
	receiveFormat := receiveCmd.Flag("format", "Wire format to use.").Default("rbd-diff-v1").Enum(format.Names()...)

	cmdName, err := app.Parse(args[1:])
	if err != nil {
		return fmt.Errorf("invalid command configuration: %w", err)
	}

	cfg.Logger = getLogger(*cfg)

	var g run.Group

	// OS signals.
	{
		signalCtx, signalCancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer signalCancel()

		g.Add(
			func() error {
				<-signalCtx.Done()
				cfg.Logger.Debugf("Termination signal received")
				return nil
			},
			func(_ error) {
				signalCancel()
			},
		)
	}

	// Execute command.
	{
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		g.Add(
			func() error {
				var err error
				switch cmdName {
				case mapCmd.FullCommand():
					err = runMap(ctx, cfg, *mapFiles, *mapSegments)
				case sendCmd.FullCommand():
					err = runSend(cfg, *sendFile, *sendFormat)
				case receiveCmd.FullCommand():
					err = runReceive(cfg, *receiveFile, *receiveFormat)
				default:
					err = fmt.Errorf("unknown command %q", cmdName)
				}
				if err != nil {
					return fmt.Errorf("%q command failed: %w", cmdName, err)
				}
				return nil
			},
			func(_ error) {
				cancel()
			},
		)
	}

	return g.Run()
}

func runMap(ctx context.Context, cfg *rootConfig, paths []string, listSegments bool) error {
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := mapFile(cfg, path, listSegments); err != nil {
			return err
		}
	}

	return nil
}

func mapFile(cfg *rootConfig, path string, listSegments bool) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("unable to open file: %w", err)
	}
	defer file.Close()

	layout, err := sparsemap.ScanFile(file)
	if err != nil {
		return fmt.Errorf("unable to map %q: %w", path, err)
	}

	cfg.Logger.Debugf("%s: %d segments", path, len(layout.Segments()))

	fmt.Fprintf(cfg.Stdout, "%s:\n", path)
	w := tabwriter.NewWriter(cfg.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)

	if listSegments {
		fmt.Fprintln(w, "KIND\tSTART\tEND\tLENGTH\t")
		for _, seg := range layout.Segments() {
			fmt.Fprintf(w, "%s\t%d\t%d\t%s\t\n", seg.Kind, seg.Start, seg.End, humanize.IBytes(uint64(seg.Length())))
		}
		return w.Flush()
	}

	fmt.Fprintf(w, "Data:\t%s\t(%s B) in %d segments\n",
		humanize.IBytes(uint64(layout.DataBytes())), humanize.Comma(layout.DataBytes()), len(layout.Data()))
	fmt.Fprintf(w, "Holes:\t%s\t(%s B) in %d segments\n",
		humanize.IBytes(uint64(layout.HoleBytes())), humanize.Comma(layout.HoleBytes()), len(layout.Holes()))
	fmt.Fprintf(w, "Total:\t%s\t(%s B)\n",
		humanize.IBytes(uint64(layout.Size())), humanize.Comma(layout.Size()))

	return w.Flush()
}

func runSend(cfg *rootConfig, path string, formatName string) error {
	f, exists := format.GetByName(formatName)
	if !exists {
		return fmt.Errorf("unknown format %q", formatName)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("unable to open file: %w", err)
	}
	defer file.Close()

	return sparsemap.SendSparseFile(file, f, cfg.Stdout)
}

func runReceive(cfg *rootConfig, path string, formatName string) error {
	f, exists := format.GetByName(formatName)
	if !exists {
		return fmt.Errorf("unknown format %q", formatName)
	}

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("unable to open target file: %w", err)
	}
	defer file.Close()

	return sparsemap.ReceiveSparseFile(file, f, cfg.Stdin)
}

// getLogger returns the application logger.
func getLogger(cfg rootConfig) *logrus.Entry {
	logger := logrus.New()
	logger.Out = cfg.Stderr // Logger goes to stderr so it can't mix with stream output.

	if cfg.NoLog {
		logger.Out = io.Discard
	}

	if cfg.Debug {
		logger.SetLevel(logrus.DebugLevel)
	}

	switch cfg.LoggerType {
	case LoggerTypeJSON:
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		logger.SetFormatter(&logrus.TextFormatter{
			ForceColors:   !cfg.NoColor,
			DisableColors: cfg.NoColor,
		})
	}

	entry := logger.WithField("version", Version)
	entry.Debugf("Debug level is enabled") // Will log only when debug enabled.

	return entry
}

func main() {
	ctx := context.Background()
	err := Run(ctx, os.Args, os.Stdin, os.Stdout, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
