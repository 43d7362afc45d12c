package serve

import (
	"context"
	"io"
	"math"
	"net"
	"os"
	"os/signal"
	"syscall"

	"nts/internal/command"
	"nts/internal/logging"
	"nts/pkg/message"
	"nts/pkg/messenger"
	"nts/pkg/operation"
	"nts/pkg/session"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var cmd = &cobra.Command{
	Use:   "serve",
	Short: "Receive frames forwarded by dump --tcp and parse them",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		file, _ := cmd.Flags().GetString("file")

		if addr == "" {
			return errors.New("missing server address")
		}

		var out *session.PcapSession
		if file != "" {
			var err error
			out, err = session.OpenPcap("", file)
			if err != nil {
				return err
			}
			defer out.Close()
		}

		lis, err := net.Listen("tcp", addr)
		if err != nil {
			return errors.Wrap(err, "net.Listen")
		}
		logrus.WithField("addr", lis.Addr()).Info("Listen on")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		go func() {
			<-ctx.Done()
			lis.Close()
		}()

		srv := NewServer(out)
		for {
			conn, err := lis.Accept()
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			go srv.Handle(ctx, conn)
		}
	},
}

// Server parses the frames of each forwarded stream and optionally
// records them.
type Server struct {
	registry *message.Registry
	out      session.Session
	log      *logrus.Entry
}

// NewServer builds a server. out may be nil.
func NewServer(out *session.PcapSession) *Server {
	s := &Server{
		registry: message.NewRegistry(message.WithStandardParsers(), message.WithRegistryLogger(logging.Named("registry"))),
		log:      logging.Named("serve"),
	}
	if out != nil {
		s.out = out
	}
	return s
}

// Handle reads frames from conn until the peer disconnects or ctx is done.
// It returns the number of frames received.
func (s *Server) Handle(ctx context.Context, conn net.Conn) int {
	stream := session.NewStream(conn)
	defer stream.Close()

	log := s.log.WithField("addr", conn.RemoteAddr())
	log.Info("New conn")

	stop := context.AfterFunc(ctx, func() { stream.Close() })
	defer stop()

	received := 0
	read := session.NewReadOperation(stream, s.registry, nil, func(_ int, m *message.Message) error {
		received++
		s.record(log, m)
		return nil
	}, operation.WithCount(math.MaxInt), operation.WithName("stream"), operation.WithLogger(log))

	m := messenger.New(messenger.WithLogger(log))
	m.Push(read)
	err := m.Run(ctx)
	if err != nil && !errors.Is(err, io.EOF) && ctx.Err() == nil {
		log.WithError(err).Error("Fail to decode stream")
	}
	log.WithField("frames", received).Info("Conn closed")
	return received
}

func (s *Server) record(log *logrus.Entry, m *message.Message) {
	line, err := m.Summary()
	if err != nil {
		line = m.String()
	}
	log.WithField("datalen", m.Size()).Info(line)

	if s.out == nil {
		return
	}
	if _, err := session.SendMessage(s.out, m); err != nil {
		log.WithError(err).Warn("Fail to write")
	}
}

func init() {
	cmd.Flags().String("addr", "", "address to listen on")
	cmd.Flags().StringP("file", "w", "", "save received frames to a pcap file")
	command.Register(cmd)
}
