// Command notelinkctl is a small interactive client for the transaction
// engine, grounded on the teacher's examples/fifo-hal/cdc-acm/host
// style of single-purpose flag-driven example programs, rewired here
// as a github.com/spf13/cobra command tree (spec.md's domain: a
// request/response transport, not a USB host, so the teacher's
// enumeration/hotplug loop has no analogue — only its "open a link,
// run one exchange, report the result" shape carries over).
package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ardnew/notelink"
	"github.com/ardnew/notelink/hal/i2cio"
	"github.com/ardnew/notelink/hal/serialio"
	"github.com/ardnew/notelink/hal/simhal"
	"github.com/ardnew/notelink/jobj"
	"github.com/ardnew/notelink/logx"
	"github.com/ardnew/notelink/transport/i2c"
	"github.com/ardnew/notelink/transport/serial"
)

var (
	portFlag    string
	i2cBusFlag  string
	i2cAddrFlag uint16
	baudFlag    int
	simFlag     bool
	debugFlag   bool
)

func main() {
	root := &cobra.Command{
		Use:   "notelinkctl",
		Short: "Send JSON requests to a Notecard-compatible device",
	}
	root.PersistentFlags().StringVar(&portFlag, "port", "", "serial port device path (e.g. /dev/ttyACM0)")
	root.PersistentFlags().StringVar(&i2cBusFlag, "i2c-bus", "", "I2C bus name (empty selects the default bus)")
	root.PersistentFlags().Uint16Var(&i2cAddrFlag, "i2c-addr", 0x17, "I2C device address")
	root.PersistentFlags().IntVar(&baudFlag, "baud", 9600, "serial baud rate")
	root.PersistentFlags().BoolVar(&simFlag, "sim", false, "use an in-memory simulated device instead of real hardware")
	root.PersistentFlags().BoolVar(&debugFlag, "debug", false, "enable debug logging")

	root.AddCommand(sendCmd(), resetCmd(), interactiveCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func sendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <json-request>",
		Short: "Send one JSON request and print the response",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, closeFn, err := openContext()
			if err != nil {
				return err
			}
			defer closeFn()

			req, err := jobj.Parse(args[0])
			if err != nil {
				return fmt.Errorf("parse request: %w", err)
			}
			resp := ctx.Transaction(req)
			fmt.Println(jobj.Print(resp))
			return nil
		},
	}
}

func resetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Reset the transport and print the card.status response",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, closeFn, err := openContext()
			if err != nil {
				return err
			}
			defer closeFn()
			resp := ctx.Transaction(jobj.Objectf("req:%s", "card.status"))
			fmt.Println(jobj.Print(resp))
			return nil
		},
	}
}

func interactiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Read JSON requests from stdin, one per line, printing each response",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, closeFn, err := openContext()
			if err != nil {
				return err
			}
			defer closeFn()

			scanner := bufio.NewScanner(os.Stdin)
			for scanner.Scan() {
				line := scanner.Text()
				if line == "" {
					continue
				}
				req, err := jobj.Parse(line)
				if err != nil {
					fmt.Fprintf(os.Stderr, "parse error: %v\n", err)
					continue
				}
				fmt.Println(jobj.Print(ctx.Transaction(req)))
			}
			return scanner.Err()
		},
	}
}

// openContext builds a Context over either the simulated device or
// real hardware, per the --sim/--port/--i2c-bus flags.
func openContext() (*notelink.Context, func(), error) {
	if debugFlag {
		logx.SetLevel(slog.LevelDebug)
	}

	if simFlag {
		dev := simhal.NewDevice(simhal.JSONHandler(map[string]func(*jobj.J) *jobj.J{
			"card.status": func(req *jobj.J) *jobj.J { return jobj.Objectf("status:%s version:%s", "{normal}", "notelinkctl-sim") },
		}))
		return notelink.New(serial.New(dev), dev), func() {}, nil
	}

	if portFlag != "" {
		p, err := serialio.Open(portFlag, serialio.Config{BaudRate: baudFlag})
		if err != nil {
			return nil, nil, fmt.Errorf("open serial port: %w", err)
		}
		bindings := struct {
			*serialio.Port
			notelink.Mutexes
		}{p, noopMutexes{}}
		return notelink.New(serial.New(bindings), bindings), func() { p.Close() }, nil
	}

	bus, err := i2cio.Open(i2cBusFlag, i2cAddrFlag)
	if err != nil {
		return nil, nil, fmt.Errorf("open i2c bus: %w", err)
	}
	bindings := struct {
		*i2cio.Bus
		notelink.Mutexes
	}{bus, noopMutexes{}}
	return notelink.New(i2c.New(bus), bindings), func() { bus.Close() }, nil
}

// noopMutexes is the single-process CLI's Mutexes implementation: one
// process, one device, no contention to arbitrate.
type noopMutexes struct{}

func (noopMutexes) LockBus()      {}
func (noopMutexes) UnlockBus()    {}
func (noopMutexes) LockDevice()   {}
func (noopMutexes) UnlockDevice() {}
