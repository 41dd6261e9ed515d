package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/bigbag/goslip/internal/config"
	"github.com/bigbag/goslip/internal/link"
	"github.com/bigbag/goslip/internal/logging"
	"github.com/bigbag/goslip/internal/serial"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	cfg        = config.Default()
	outputFlag string
	rawFlag    bool
	countFlag  int
)

type readWriter struct {
	io.Reader
	io.Writer
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "slipctl",
		Short: "Encode, decode and exchange SLIP frames",
		Long: `slipctl frames data with SLIP (RFC 1055) and moves it over serial links.

Payloads longer than the MTU are split into several frames.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Debug {
				logging.EnableDebug()
			}
			return cfg.Validate()
		},
	}
	rootCmd.PersistentFlags().IntVarP(&cfg.MTU, "mtu", "m", config.DefaultMTU, "Largest payload per frame")
	rootCmd.PersistentFlags().BoolVar(&cfg.Debug, "debug", false, "Enable debug logging")

	// Encode command
	encodeCmd := &cobra.Command{
		Use:   "encode [file]",
		Short: "Encode a file (or stdin) into SLIP frames",
		Long: `Encode a file (or stdin) into SLIP frames.

The input is cut into payloads of at most --mtu bytes and each payload is
written as its own frame. "slipctl decode --raw" with the same --mtu
restores the input.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runEncode,
	}
	encodeCmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Output file (default stdout)")

	// Decode command
	decodeCmd := &cobra.Command{
		Use:   "decode [file]",
		Short: "Decode SLIP frames from a file (or stdin)",
		Long: `Decode SLIP frames from a file (or stdin).

Each packet is printed as hex on its own line. With --raw the payloads are
written back to back, reversing "slipctl encode".`,
		Args: cobra.MaximumNArgs(1),
		RunE: runDecode,
	}
	decodeCmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Output file (default stdout)")
	decodeCmd.Flags().BoolVar(&rawFlag, "raw", false, "Write raw payload bytes instead of hex lines")

	// Send command
	sendCmd := &cobra.Command{
		Use:   "send <file>",
		Short: "Send a file over a serial port as SLIP frames",
		Args:  cobra.ExactArgs(1),
		RunE:  runSend,
	}
	addPortFlags(sendCmd)

	// Listen command
	listenCmd := &cobra.Command{
		Use:   "listen",
		Short: "Print packets received on a serial port",
		Args:  cobra.NoArgs,
		RunE:  runListen,
	}
	addPortFlags(listenCmd)
	listenCmd.Flags().IntVarP(&countFlag, "count", "n", 0, "Stop after this many packets (0 = until interrupted)")

	// List command
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available serial ports",
		Args:  cobra.NoArgs,
		RunE:  runList,
	}

	// Version command
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version info",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("slipctl %s\n", version)
			fmt.Printf("  commit: %s\n", commit)
			fmt.Printf("  built:  %s\n", date)
		},
	}

	rootCmd.AddCommand(encodeCmd, decodeCmd, sendCmd, listenCmd, listCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		logging.Error("%v", err)
		os.Exit(1)
	}
}

func addPortFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&cfg.Port, "port", "p", "", "Serial port")
	cmd.Flags().IntVarP(&cfg.BaudRate, "baud", "b", config.DefaultBaudRate, "Baud rate")
	cmd.Flags().DurationVar(&cfg.ReadTimeout, "read-timeout", config.DefaultReadTimeout, "Serial read timeout")
}

func runEncode(cmd *cobra.Command, args []string) error {
	data, err := readInput(args)
	if err != nil {
		return err
	}

	out, err := openOutput(outputFlag)
	if err != nil {
		return err
	}
	defer out.Close()

	stats, err := encodeFrames(out, data, cfg.MTU)
	if err != nil {
		return err
	}
	logging.Info("encoded %d bytes into %d frames (%d bytes)", len(data), stats.FramesSent, stats.BytesSent)
	return nil
}

// encodeFrames writes data to out as frames of at most mtu payload bytes.
func encodeFrames(out io.Writer, data []byte, mtu int) (link.Stats, error) {
	l := link.New(readWriter{Writer: out}, mtu)
	for i, chunk := range split(data, mtu) {
		if err := l.Send(chunk); err != nil {
			return l.Stats(), fmt.Errorf("frame %d: %w", i, err)
		}
	}
	return l.Stats(), nil
}

func runDecode(cmd *cobra.Command, args []string) error {
	in, err := openInput(args)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := openOutput(outputFlag)
	if err != nil {
		return err
	}
	defer out.Close()

	l := link.New(readWriter{Reader: in, Writer: io.Discard}, cfg.MTU)
	if err := printPackets(context.Background(), l, out, 0); err != nil {
		return err
	}

	stats := l.Stats()
	logging.Info("decoded %d packets, dropped %d frames", stats.FramesReceived, stats.FramesDropped)
	return nil
}

func runSend(cmd *cobra.Command, args []string) error {
	if err := cfg.RequirePort(); err != nil {
		return err
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	port, err := serial.Open(cfg.Port, cfg.BaudRate, cfg.ReadTimeout)
	if err != nil {
		return err
	}
	defer port.Close()

	fmt.Printf("Port: %s @ %d baud\n", port.PortName(), port.BaudRate())
	fmt.Printf("File: %s (%d bytes)\n", args[0], len(data))

	chunks := split(data, cfg.MTU)
	bar := progressbar.NewOptions(len(chunks),
		progressbar.OptionSetDescription("Sending"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionThrottle(100),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	l := link.New(port, cfg.MTU)
	for i, chunk := range chunks {
		if err := l.Send(chunk); err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		bar.Add(1)
	}
	bar.Finish()

	stats := l.Stats()
	fmt.Printf("\nSent %d frames (%d bytes on the wire)\n", stats.FramesSent, stats.BytesSent)
	return nil
}

func runListen(cmd *cobra.Command, args []string) error {
	if err := cfg.RequirePort(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	port, err := serial.Open(cfg.Port, cfg.BaudRate, cfg.ReadTimeout)
	if err != nil {
		return err
	}
	defer port.Close()

	if err := port.Flush(); err != nil {
		logging.Warn("failed to flush input: %v", err)
	}
	logging.Info("listening on %s @ %d baud", port.PortName(), port.BaudRate())

	l := link.New(port, cfg.MTU)
	err = printPackets(ctx, l, os.Stdout, countFlag)
	if errors.Is(err, context.Canceled) {
		err = nil
	}

	stats := l.Stats()
	logging.Info("received %d packets, dropped %d frames", stats.FramesReceived, stats.FramesDropped)
	return err
}

func runList(cmd *cobra.Command, args []string) error {
	ports, err := serial.ListDetailed()
	if err != nil {
		return err
	}

	if len(ports) == 0 {
		fmt.Println("No serial ports found")
		return nil
	}

	fmt.Println("Available serial ports:")
	for _, p := range ports {
		fmt.Printf("  %s\n", p)
	}

	return nil
}

// printPackets writes received packets to out until the stream ends, ctx
// is cancelled or limit packets were written (limit 0 means no limit).
func printPackets(ctx context.Context, l *link.Link, out io.Writer, limit int) error {
	for n := 0; limit == 0 || n < limit; n++ {
		packet, err := l.Receive(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		if rawFlag {
			_, err = out.Write(packet)
		} else {
			_, err = fmt.Fprintln(out, hex.EncodeToString(packet))
		}
		if err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

// split cuts data into pieces of at most size bytes.
func split(data []byte, size int) [][]byte {
	var chunks [][]byte
	for len(data) > size {
		chunks = append(chunks, data[:size])
		data = data[size:]
	}
	if len(data) > 0 {
		chunks = append(chunks, data)
	}
	return chunks
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

func readInput(args []string) ([]byte, error) {
	in, err := openInput(args)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	data, err := io.ReadAll(in)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return data, nil
}

func openInput(args []string) (io.ReadCloser, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(args[0])
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	return f, nil
}

func openOutput(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopCloser{os.Stdout}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output: %w", err)
	}
	return f, nil
}
