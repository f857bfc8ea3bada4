package server

import (
	"encoding/json"
	"errors"
	"log"
	"net"
	"sync"

	"tracker-go/feed"
	"tracker-go/measlog"
	"tracker-go/ukf"
	"tracker-go/web"
)

const (
	DefaultPort   = 44333
	MaxPacketSize = 65535
)

type wsEstimate struct {
	ID   uint32  `json:"id"`
	TS   int64   `json:"ts"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	V    float64 `json:"v"`
	Yaw  float64 `json:"yaw"`
	Yawd float64 `json:"yawd"`
	NIS  float64 `json:"nis"`
}

// UdpServer receives measurement packets over UDP and maintains one filter
// per object ID. Each object's packets must arrive time-ordered; packets of
// different objects are independent.
type UdpServer struct {
	conn    *net.UDPConn
	cfg     ukf.Config
	logW    *measlog.Writer
	sender  *feed.Sender
	webHub  *web.Hub
	running bool

	filters map[uint32]*ukf.Filter
	seq     map[uint32]uint16
	// last accepted estimate per object
	state map[uint32]*wsEstimate
	mu    sync.Mutex
}

func NewUdpServer(port int, cfg ukf.Config) (*UdpServer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if port == 0 {
		port = DefaultPort
	}
	addr := net.UDPAddr{
		Port: port,
		IP:   net.ParseIP("0.0.0.0"),
	}
	conn, err := net.ListenUDP("udp", &addr)
	if err != nil {
		return nil, err
	}
	conn.SetReadBuffer(256 * 1024)

	return &UdpServer{
		conn:    conn,
		cfg:     cfg,
		filters: make(map[uint32]*ukf.Filter),
		seq:     make(map[uint32]uint16),
		state:   make(map[uint32]*wsEstimate),
	}, nil
}

func (s *UdpServer) SetLogWriter(w *measlog.Writer) {
	s.logW = w
}

func (s *UdpServer) SetFeedSender(snd *feed.Sender) {
	s.sender = snd
}

func (s *UdpServer) SetWebHub(h *web.Hub) {
	s.webHub = h
}

// Tracks returns the last accepted estimate of every known object.
func (s *UdpServer) Tracks() interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	tracks := make([]*wsEstimate, 0, len(s.state))
	for _, t := range s.state {
		tracks = append(tracks, t)
	}
	return tracks
}

func (s *UdpServer) Start() {
	s.running = true
	buf := make([]byte, MaxPacketSize)
	log.Printf("UDP Server listening on %s", s.conn.LocalAddr().String())

	for s.running {
		n, _, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if s.running {
				log.Printf("Read error: %v", err)
			}
			continue
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		s.handleDatagram(data)
	}
}

func (s *UdpServer) Stop() {
	s.running = false
	s.conn.Close()
}

// handleDatagram walks all measurement packets concatenated in one datagram.
func (s *UdpServer) handleDatagram(data []byte) {
	offset := 0
	for offset < len(data) {
		m, n, err := ParseMeasurement(data[offset:])
		if err != nil {
			log.Printf("ParseMeasurement: %v", err)
			return
		}
		if s.logW != nil {
			_ = s.logW.WriteRecord(m.Packet.TimestampUs, data[offset:offset+n])
		}
		s.Ingest(m)
		offset += n
	}
}

// Ingest feeds one measurement into its object's filter and publishes the
// result. Rejected packets (precondition or numerical failures) are skipped:
// the filter keeps its prior state and the stream continues.
func (s *UdpServer) Ingest(m Measurement) {
	s.mu.Lock()
	f, ok := s.filters[m.ObjectID]
	if !ok {
		var err error
		f, err = ukf.NewFilter(s.cfg)
		if err != nil {
			s.mu.Unlock()
			log.Printf("object %08X: %v", m.ObjectID, err)
			return
		}
		s.filters[m.ObjectID] = f
	}
	s.mu.Unlock()

	if err := f.ProcessMeasurement(m.Packet); err != nil {
		switch {
		case errors.Is(err, ukf.ErrNotPositiveDefinite), errors.Is(err, ukf.ErrSingularInnovation):
			log.Printf("object %08X: numerical failure, skipping packet: %v", m.ObjectID, err)
			if s.sender != nil {
				s.sender.Send(feed.FormatWarning(m.ObjectID, m.Packet.TimestampUs, "numerical"), feed.FlagWarning)
			}
		default:
			log.Printf("object %08X: rejected packet: %v", m.ObjectID, err)
		}
		return
	}
	s.publish(m.ObjectID, f)
}

func (s *UdpServer) publish(id uint32, f *ukf.Filter) {
	x := f.State()
	nis, _, _ := f.LastNIS()
	est := &wsEstimate{
		ID:   id,
		TS:   f.TimeUs(),
		X:    x.AtVec(0),
		Y:    x.AtVec(1),
		V:    x.AtVec(2),
		Yaw:  x.AtVec(3),
		Yawd: x.AtVec(4),
		NIS:  nis,
	}

	s.mu.Lock()
	s.state[id] = est
	s.seq[id]++
	seq := s.seq[id]
	s.mu.Unlock()

	if s.sender != nil {
		msg := feed.FormatEstimate(id, est.TS, seq, est.X, est.Y, est.V, est.Yaw, est.Yawd)
		s.sender.Send(msg, feed.FlagEstimate)
	}
	if s.webHub != nil {
		b, _ := json.Marshal(est)
		s.webHub.Broadcast(b)
	}
}
