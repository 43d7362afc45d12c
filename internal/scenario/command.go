package scenario

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"nts/internal/command"

	"github.com/spf13/cobra"
)

var cmd = &cobra.Command{
	Use:   "run <scenario.yaml>",
	Short: "Run a scenario of read, write and sleep steps",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sc, err := Load(args[0])
		if err != nil {
			return err
		}

		if iface, _ := cmd.Flags().GetString("iface"); iface != "" {
			sc.Session = SessionSpec{Kind: "raw", Iface: iface}
		}

		s, err := OpenSession(sc.Session)
		if err != nil {
			return err
		}
		defer s.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		release := context.AfterFunc(ctx, func() { s.Close() })
		defer release()

		_, err = NewRunner(sc, s, command.Config()).Run(ctx)
		return err
	},
}

func init() {
	cmd.Flags().StringP("iface", "i", "", "run on this interface instead of the scenario's session")
	command.Register(cmd)
}
