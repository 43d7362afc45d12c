package dump

import (
	"context"
	"io"
	"math"
	"os"
	"os/signal"
	"syscall"

	"nts/internal/command"
	"nts/internal/logging"
	"nts/pkg/config"
	"nts/pkg/message"
	"nts/pkg/messenger"
	"nts/pkg/operation"
	"nts/pkg/session"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var cmd = &cobra.Command{
	Use:   "dump",
	Short: "Capture frames and print or forward them as parsed messages",
	RunE: func(cmd *cobra.Command, args []string) error {
		iface, _ := cmd.Flags().GetString("iface")
		read, _ := cmd.Flags().GetString("read")
		tcp, _ := cmd.Flags().GetString("tcp")
		file, _ := cmd.Flags().GetString("file")
		tun, _ := cmd.Flags().GetString("tun")
		noStdout, _ := cmd.Flags().GetBool("no-stdout")
		verbose, _ := cmd.Flags().GetBool("verbose")
		promisc, _ := cmd.Flags().GetBool("promisc")
		count, _ := cmd.Flags().GetInt("count")

		if iface == "" {
			iface, _ = command.Config().String(config.KeySessionInterface)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var s session.Session
		switch {
		case read != "":
			pcap, err := session.OpenPcap(read, "")
			if err != nil {
				return err
			}
			s = pcap
		case iface != "":
			raw, err := session.OpenRaw(iface, session.WithPromiscuous(promisc))
			if err != nil {
				return err
			}
			s = raw
		default:
			return errors.New("missing interface or capture file")
		}
		defer s.Close()

		sinks, err := openSinks(ctx, tcp, file, tun, !noStdout, verbose)
		if err != nil {
			return err
		}
		dumper := NewDumper(sinks...)
		defer dumper.Close()

		if count <= 0 {
			count = math.MaxInt
		}
		log := logging.Named("dump")
		capture := session.NewReadOperation(s,
			message.NewRegistry(message.WithStandardParsers(), message.WithRegistryLogger(logging.Named("registry"))),
			nil, dumper.Handle,
			operation.WithCount(count), operation.WithName("capture"), operation.WithLogger(log))

		m := messenger.New(messenger.WithLogger(log))
		m.Push(capture)

		release := context.AfterFunc(ctx, func() { s.Close() })
		defer release()

		err = m.Run(ctx)
		log.WithField("messages", dumper.Count()).Info("Dump finished")
		if err == nil || errors.Is(err, io.EOF) || errors.Is(err, session.ErrClosed) || ctx.Err() != nil {
			return nil
		}
		return err
	},
}

func openSinks(ctx context.Context, tcp, file, tun string, stdout, verbose bool) ([]Sink, error) {
	var sinks []Sink
	fail := func(err error) ([]Sink, error) {
		for _, s := range sinks {
			s.Close()
		}
		return nil, err
	}

	if tcp != "" {
		tcpS, err := NewTCPSink(ctx, tcp)
		if err != nil {
			return fail(err)
		}
		logrus.WithField("addr", tcp).Info("Connected")
		sinks = append(sinks, tcpS)
	}

	if file != "" {
		fileS, err := NewFileSink(file)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, fileS)
	}

	if tun != "" {
		tunS, err := NewTunSink(tun)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, tunS)
	}

	if stdout {
		sinks = append(sinks, NewStdoutSink(verbose))
	}
	return sinks, nil
}

func init() {
	cmd.Flags().StringP("iface", "i", "", "network interface to capture from (default Session.Interface)")
	cmd.Flags().StringP("read", "r", "", "read frames from a pcap file instead of an interface")
	cmd.Flags().StringP("file", "w", "", "save captured frames to a pcap file")
	cmd.Flags().String("tcp", "", "send captured frames to a remote server via TCP")
	cmd.Flags().String("tun", "", "write the IPv4 part of captured frames to a TUN device")
	cmd.Flags().Bool("no-stdout", false, "disable writing to stdout")
	cmd.Flags().BoolP("verbose", "v", false, "print every layer of each message")
	cmd.Flags().Bool("promisc", false, "put the interface into promiscuous mode")
	cmd.Flags().IntP("count", "n", 0, "stop after this many frames (0 means no limit)")
	command.Register(cmd)
}
