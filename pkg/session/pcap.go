package session

import (
	"os"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/pkg/errors"
)

var (
	ErrNoInput  = errors.New("pcap session has no input file")
	ErrNoOutput = errors.New("pcap session has no output file")
)

// PcapSession replays frames from a pcap file and records sent frames to
// another. Either side may be absent.
type PcapSession struct {
	mu     sync.Mutex
	in     *os.File
	reader *pcapgo.Reader
	out    *os.File
	writer *pcapgo.Writer
	closed bool
}

// OpenPcap opens readPath for Receive and writePath for Send. An empty path
// disables that direction. Frames are appended when writePath already holds
// a capture.
func OpenPcap(readPath, writePath string) (*PcapSession, error) {
	s := &PcapSession{}
	if readPath != "" {
		f, err := os.Open(readPath)
		if err != nil {
			return nil, errors.Wrap(err, "os.Open")
		}
		r, err := pcapgo.NewReader(f)
		if err != nil {
			f.Close()
			return nil, errors.Wrap(err, "pcapgo.NewReader")
		}
		s.in, s.reader = f, r
	}

	if writePath != "" {
		f, w, err := openPcapWriter(writePath)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.out, s.writer = f, w
	}
	return s, nil
}

func openPcapWriter(filename string) (*os.File, *pcapgo.Writer, error) {
	f, err := os.OpenFile(filename, os.O_APPEND|os.O_WRONLY, 0644)
	if os.IsNotExist(err) {
		f, err = os.OpenFile(filename, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0644)
	}
	if err != nil {
		return nil, nil, errors.Wrap(err, "os.OpenFile")
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, errors.Wrap(err, "file.Stat")
	}

	w := pcapgo.NewWriter(f)
	if info.Size() == 0 {
		if err = w.WriteFileHeader(FrameSize, layers.LinkTypeEthernet); err != nil {
			f.Close()
			return nil, nil, errors.Wrap(err, "pcapgo.WriteFileHeader")
		}
	}
	return f, w, nil
}

func (s *PcapSession) Send(frame []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	if s.writer == nil {
		return 0, ErrNoOutput
	}

	err := s.writer.WritePacket(gopacket.CaptureInfo{
		Timestamp:     time.Now(),
		Length:        len(frame),
		CaptureLength: len(frame),
	}, frame)
	if err != nil {
		return 0, errors.Wrap(err, "pcapgo.WritePacket")
	}
	return len(frame), nil
}

// Receive returns io.EOF once the input file is exhausted.
func (s *PcapSession) Receive(buf []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	if s.reader == nil {
		return 0, ErrNoInput
	}

	data, _, err := s.reader.ZeroCopyReadPacketData()
	if err != nil {
		return 0, err
	}
	return copy(buf, data), nil
}

func (s *PcapSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var err error
	if s.in != nil {
		err = s.in.Close()
	}
	if s.out != nil {
		if cerr := s.out.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
