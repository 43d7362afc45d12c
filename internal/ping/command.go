package ping

import (
	"context"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nts/internal/command"
	"nts/internal/logging"
	"nts/pkg/config"
	"nts/pkg/message"
	"nts/pkg/messenger"
	"nts/pkg/operation"
	"nts/pkg/packet"
	"nts/pkg/session"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var cmd = &cobra.Command{
	Use:   "ping",
	Short: "Send ICMP echo requests on a raw interface and collect the replies",
	Long: "Send ICMP echo requests built from the configuration on a raw interface.\n" +
		"ICMP checksums are not computed, so use it against lab peers that accept them.",
	RunE: func(cmd *cobra.Command, args []string) error {
		iface, _ := cmd.Flags().GetString("iface")
		count, _ := cmd.Flags().GetInt("count")
		interval, _ := cmd.Flags().GetDuration("interval")
		wait, _ := cmd.Flags().GetDuration("wait")

		cfg := command.Config()
		if iface == "" {
			iface, _ = cfg.String(config.KeySessionInterface)
		}
		if iface == "" {
			return errors.New("missing interface")
		}
		if count <= 0 {
			return errors.New("count must be positive")
		}

		s, err := session.OpenRaw(iface, session.WithReceiveTimeout(100*time.Millisecond))
		if err != nil {
			return err
		}
		defer s.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		request := NewEchoRequest(cfg)
		id := request.Get(packet.TagIcmp).(*packet.Icmp).Identifier()
		tracker := NewTracker(id, count)
		log := logging.Named("ping").WithField("iface", iface).WithField("id", id)

		read := session.NewReadOperation(s,
			message.NewRegistry(message.WithStandardParsers(), message.WithRegistryLogger(logging.Named("registry"))),
			nil, tracker.Handle,
			operation.WithMethod(operation.Parallel),
			operation.WithCount(math.MaxInt),
			operation.WithTimeout(time.Duration(count-1)*interval+wait),
			operation.WithName("replies"),
			operation.WithLogger(log))
		write := session.NewWriteOperation(s, request, SetSequence,
			operation.WithCount(count),
			operation.WithInterval(interval),
			operation.WithName("requests"),
			operation.WithLogger(log))

		m := messenger.New(messenger.WithLogger(log))
		m.Push(read)
		m.Push(write)

		err = m.Run(ctx)
		if lost := tracker.Lost(); len(lost) > 0 {
			log.WithField("lost", lost).Warn("Missing replies")
		}
		log.Info(tracker.Report())
		if err != nil && !errors.Is(err, operation.ErrTimeout) {
			return err
		}
		return nil
	},
}

func init() {
	cmd.Flags().StringP("iface", "i", "", "network interface to send on (default Session.Interface)")
	cmd.Flags().IntP("count", "n", 4, "number of echo requests")
	cmd.Flags().Duration("interval", time.Second, "time between requests")
	cmd.Flags().Duration("wait", time.Second, "time to wait for replies after the last request")
	command.Register(cmd)
}
