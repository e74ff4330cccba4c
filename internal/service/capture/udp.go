package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"camnet/internal/logger"
)

var (
	jpegHeader = []byte{0xFF, 0xD8}
	jpegFooter = []byte{0xFF, 0xD9}
)

const (
	// maxPacketSize bounds a single camera datagram.
	maxPacketSize = 65535
	// senderIdleTimeout drops the partial frame of a sender that went quiet.
	senderIdleTimeout = 30 * time.Second
)

// UDPSource listens for UDP packets from cameras, reconstructs JPEG frames
// per sender and delivers complete frames to the delegate.
type UDPSource struct {
	Gate

	addr        string
	cameraNames map[string]string
	logger      *logger.Logger

	// maxFrameSize caps a reassembled frame, matching the HTTP upload limit.
	maxFrameSize int

	mu   sync.Mutex
	conn *net.UDPConn
	done chan struct{}
}

// NewUDPSource creates a source listening on addr (for example ":8081").
// cameraNames maps sender IPs to camera names; unknown senders are named
// "unknown_<ip>".
func NewUDPSource(addr string, cameraNames map[string]string, logger *logger.Logger) *UDPSource {
	return &UDPSource{
		addr:         addr,
		cameraNames:  cameraNames,
		logger:       logger,
		maxFrameSize: MaxUploadSize,
	}
}

// NewUDPSourceOnPort is NewUDPSource listening on every interface.
func NewUDPSourceOnPort(port int, cameraNames map[string]string, logger *logger.Logger) *UDPSource {
	return NewUDPSource(":"+strconv.Itoa(port), cameraNames, logger)
}

// Configure binds the UDP socket and starts the read loop. Packets are read
// and reassembled from here on but only delivered between Start and Stop.
func (s *UDPSource) Configure(ctx context.Context, frameRate int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		return fmt.Errorf("udp source already configured on %s", s.conn.LocalAddr())
	}

	addr, err := net.ResolveUDPAddr("udp", s.addr)
	if err != nil {
		return fmt.Errorf("resolve UDP address %s: %w", s.addr, err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("listen on UDP %s: %w", s.addr, err)
	}

	s.SetFrameRate(frameRate)
	s.conn = conn
	s.done = make(chan struct{})
	go s.readLoop(conn, s.done)

	s.logger.Info("UDP camera source listening on %s (%d fps)", conn.LocalAddr(), frameRate)
	return nil
}

// LocalAddr returns the bound address, nil before Configure.
func (s *UDPSource) LocalAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

// Start opens delivery.
func (s *UDPSource) Start() error {
	s.mu.Lock()
	configured := s.conn != nil
	s.mu.Unlock()
	if !configured {
		return ErrNotConfigured
	}
	s.Open()
	s.logger.Info("UDP camera source started")
	return nil
}

// Stop closes delivery; it returns once no delegate call is in progress.
func (s *UDPSource) Stop() {
	s.Shut()
	s.logger.Info("UDP camera source stopped")
}

// CapturePhoto delivers the next complete frame as a photo too.
func (s *UDPSource) CapturePhoto() {
	s.RequestPhoto()
}

// Close stops delivery and releases the socket.
func (s *UDPSource) Close() error {
	s.Shut()

	s.mu.Lock()
	conn, done := s.conn, s.done
	s.conn = nil
	s.mu.Unlock()

	if conn == nil {
		return nil
	}
	err := conn.Close()
	<-done
	return err
}

func (s *UDPSource) readLoop(conn *net.UDPConn, done chan struct{}) {
	defer close(done)

	buffer := make([]byte, maxPacketSize)
	frames := newReassembler(s.maxFrameSize, senderIdleTimeout)

	for {
		n, remoteAddr, err := conn.ReadFromUDP(buffer)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Error("Error reading UDP packet: %v", err)
			continue
		}

		cameraName := s.cameraName(remoteAddr)
		fullFrame, overflow := frames.add(cameraName, buffer[:n], time.Now())
		if overflow {
			s.logger.Warning("Frame from camera %s exceeds %d bytes, dropping it", cameraName, s.maxFrameSize)
			continue
		}
		if fullFrame != nil {
			s.Deliver(s, cameraName, fullFrame, time.Now())
		}
	}
}

type senderBuffer struct {
	bytes.Buffer
	seen time.Time
}

// reassembler joins the packets of each sender into JPEG frames. A sender's
// buffer never grows past maxFrame and is dropped after idle without packets.
type reassembler struct {
	maxFrame  int
	idle      time.Duration
	buffers   map[string]*senderBuffer
	lastSweep time.Time
}

func newReassembler(maxFrame int, idle time.Duration) *reassembler {
	return &reassembler{
		maxFrame: maxFrame,
		idle:     idle,
		buffers:  make(map[string]*senderBuffer),
	}
}

// add appends a packet to the sender's buffer. It returns a copy of the frame
// once the footer arrives, or overflow when the frame outgrew maxFrame and was
// discarded.
func (r *reassembler) add(sender string, data []byte, now time.Time) (frame []byte, overflow bool) {
	r.sweep(now)

	buf, ok := r.buffers[sender]
	if !ok {
		buf = new(senderBuffer)
		r.buffers[sender] = buf
	}
	buf.seen = now

	if bytes.HasPrefix(data, jpegHeader) {
		buf.Reset()
	}
	if buf.Len()+len(data) > r.maxFrame {
		buf.Reset()
		return nil, true
	}
	buf.Write(data)

	if !bytes.HasSuffix(data, jpegFooter) {
		return nil, false
	}
	defer buf.Reset()
	if !bytes.HasPrefix(buf.Bytes(), jpegHeader) {
		return nil, false
	}
	frame = make([]byte, buf.Len())
	copy(frame, buf.Bytes())
	return frame, false
}

func (r *reassembler) sweep(now time.Time) {
	if now.Sub(r.lastSweep) < r.idle {
		return
	}
	r.lastSweep = now
	for sender, buf := range r.buffers {
		if now.Sub(buf.seen) >= r.idle {
			delete(r.buffers, sender)
		}
	}
}

func (s *UDPSource) cameraName(addr *net.UDPAddr) string {
	ip := addr.IP.String()
	if name, ok := s.cameraNames[ip]; ok {
		return name
	}
	return "unknown_" + ip
}
