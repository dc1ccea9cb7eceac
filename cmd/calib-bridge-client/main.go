package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"calib-bridge/internal/client"
	"calib-bridge/internal/logging"
	"calib-bridge/internal/network"
)

var (
	serverAddr string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "calib-bridge-client",
	Short: "Talk to a calib-bridge server",
	Long: `calib-bridge-client sends lines to a calib-bridge server and prints its acknowledgments.

Use 'calibrate' to run the full corner handshake, 'send' for arbitrary lines,
or 'console' for an interactive session.`,
	SilenceUsage: true,
}

var sendCmd = &cobra.Command{
	Use:   "send <line>...",
	Short: "Send lines and wait for their acknowledgments",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendAndPrint(cmd.Context(), args)
	},
}

var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Send the corner/confirmation sequence that completes calibration",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(color.CyanString("Calibration script:"), network.CalibrationScript())
		return sendAndPrint(cmd.Context(), network.CalibrationScript())
	},
}

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Interactive terminal session",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Logs stay off the terminal UI.
		c := client.NewClient(serverAddr, zerolog.Nop())
		if err := c.Connect(cmd.Context()); err != nil {
			return err
		}
		defer c.CloseConnections()

		ui := client.NewTermboxUI(c)
		if err := ui.Init(); err != nil {
			return fmt.Errorf("initializing terminal: %w", err)
		}
		defer ui.Close()
		return ui.Run(cmd.Context())
	},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error:"), err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverAddr, "addr", client.DefaultServerAddress, "Server address (host:port)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		logging.Setup(logLevel, true)
	}

	rootCmd.AddCommand(sendCmd, calibrateCmd, consoleCmd)
}

func sendAndPrint(ctx context.Context, lines []string) error {
	c := client.NewClient(serverAddr, log.Logger)
	if err := c.Connect(ctx); err != nil {
		return err
	}
	defer c.CloseConnections()

	acked := 0
	err := c.SendLines(ctx, lines, func(line string) {
		acked++
		fmt.Printf("%s %s%s\n", color.GreenString("<-"), network.AckPrefix, line)
	})
	if err != nil {
		return err
	}
	fmt.Println(color.GreenString("OK"), fmt.Sprintf("%d line(s) acknowledged", acked))
	return nil
}
