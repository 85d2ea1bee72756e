// Command mdcd controls MDC displays from the command line and bridges them to HTTP.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/speters/mdcd/link"
	"github.com/speters/mdcd/mdc"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// To be set via go build -ldflags "-X main.buildVersion=$(git describe --dirty) -X main.buildDate=$(date -u +%FT%TZ)"
var buildVersion = "unspecified"
var buildDate = "unknown"

var (
	connTo      = ""
	verbose     = false
	logFormat   = "text"
	logFile     = ""
	readTimeout = 5 * time.Second
	dialTimeout = 5 * time.Second
	baud        = link.DefaultBaud
	displayID   = 0
	broadcast   = false
)

func main() {
	cmd := &cobra.Command{
		Use:           "mdcd",
		Short:         "Control displays speaking the MDC protocol",
		Args:          cobra.ExactArgs(0),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return setupLogging(verbose, logFormat, logFile)
		},
	}

	f := cmd.PersistentFlags()
	f.StringVarP(&connTo, "connect", "c", connTo, "connection string, use tcp://[host]:[port] for TCP or [serialDevice] for direct serial connection")
	f.BoolVarP(&verbose, "verbose", "v", verbose, "verbose logging")
	f.StringVar(&logFormat, "log-format", logFormat, "log format, text or json")
	f.StringVar(&logFile, "log-file", logFile, "also write logs to `file`, rotated")
	f.DurationVar(&readTimeout, "read-timeout", readTimeout, "give up waiting for a reply after this long, 0 waits forever")
	f.DurationVar(&dialTimeout, "dial-timeout", dialTimeout, "TCP connect timeout")
	f.IntVar(&baud, "baud", baud, "serial line speed")

	cmd.AddCommand(powerCommand())
	cmd.AddCommand(panelCommand())
	cmd.AddCommand(statusCommand())
	cmd.AddCommand(blinkCommand())
	cmd.AddCommand(rawCommand())
	cmd.AddCommand(serveCommand())
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.ExactArgs(0),
		Run: func(*cobra.Command, []string) {
			fmt.Printf("mdcd %s (built %s)\n", buildVersion, buildDate)
		},
	})

	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

// addTargetFlags registers the addressing flags shared by the control commands
func addTargetFlags(cmd *cobra.Command, allowBroadcast bool) {
	cmd.Flags().IntVarP(&displayID, "display", "d", displayID, "display id to address")
	if allowBroadcast {
		cmd.Flags().BoolVar(&broadcast, "all", broadcast, "broadcast to all displays, no reply is awaited")
	}
}

// listenStop returns a context cancelled on SIGINT or SIGTERM. Call stop to
// restore default signal handling.
func listenStop() (ctx context.Context, stop context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func dialOptions() []link.Option {
	return []link.Option{
		link.WithDialTimeout(dialTimeout),
		link.WithReadTimeout(readTimeout),
		link.WithBaud(baud),
	}
}

// openSession connects to the configured link
func openSession(ctx context.Context) (*mdc.Session, io.Closer, error) {
	if connTo == "" {
		return nil, nil, fmt.Errorf("need connection string in -c option")
	}
	conn, err := link.Dial(ctx, connTo, dialOptions()...)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to %v: %w", connTo, err)
	}
	return mdc.NewSession(conn), conn, nil
}

func checkDisplayID(id int) (mdc.DisplayID, error) {
	if id < 0 || id > 0xFF || mdc.DisplayID(id) == mdc.Broadcast {
		return 0, fmt.Errorf("invalid display id %d", id)
	}
	return mdc.DisplayID(id), nil
}

// controller returns the addressed display or the broadcast group, depending on --all
func controller(s *mdc.Session) (mdc.DisplayControl, error) {
	if broadcast {
		return s.AllDisplays(), nil
	}
	id, err := checkDisplayID(displayID)
	if err != nil {
		return nil, err
	}
	return s.Display(id), nil
}
