package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sourcegraph/jsonrpc2"
	"github.com/spf13/cobra"

	"github.com/lexcodex/yamlnav/internal/runtime"
	"github.com/lexcodex/yamlnav/server"
)

func newServeCmd() *cobra.Command {
	var logPath string
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the language server on stdin/stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if logPath != "" {
				cfg.LogPath = logPath
			}
			if metricsAddr != "" {
				cfg.MetricsAddr = metricsAddr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// stdout carries the protocol
			rt, err := runtime.New(ctx, cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer rt.Close()
			if rt.Config.MetricsAddr != "" {
				if _, err := rt.StartMetrics(ctx, ""); err != nil {
					return err
				}
			}
			srv := server.NewLSPServer(rt.Workers, rt.Classifier, server.Options{
				Tracker:    rt.TrackerOptions(),
				LocaleRule: rt.Config.LocaleRule(),
				Logger:     rt.Logger,
				Telemetry:  rt.Telemetry,
				Version:    version,
			})
			rt.Logger.Printf("serving LSP on stdio (classifier=%s quiet=%s)", rt.Config.Classifier, rt.Config.QuietPeriod)
			return serveStdio(ctx, srv, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&logPath, "log", "", "Append logs to this file")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	return cmd
}

func serveStdio(ctx context.Context, srv *server.LSPServer, in io.Reader, out io.Writer) error {
	rwc := &stdioReadWriteCloser{reader: io.NopCloser(in), writer: nopWriteCloser{out}}
	return srv.Serve(ctx, jsonrpc2.NewBufferedStream(rwc, jsonrpc2.VSCodeObjectCodec{}))
}

type stdioReadWriteCloser struct {
	reader io.ReadCloser
	writer io.WriteCloser
}

func (s *stdioReadWriteCloser) Read(p []byte) (int, error)  { return s.reader.Read(p) }
func (s *stdioReadWriteCloser) Write(p []byte) (int, error) { return s.writer.Write(p) }
func (s *stdioReadWriteCloser) Close() error {
	_ = s.reader.Close()
	return s.writer.Close()
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
