// Package feed delivers accepted state estimates to downstream consumers as
// line-oriented text records over UDP or TCP.
package feed

import (
	"log"
	"net"
	"sync"
	"time"
)

type Message struct {
	Data []byte
	Flag uint32
}

type udpTarget struct {
	addr *net.UDPAddr
	flag uint32
}

type tcpClient struct {
	addr    string
	flag    uint32
	queue   chan *Message
	running bool
	wg      sync.WaitGroup
}

// Sender fans messages out to all configured targets whose flag mask
// matches. UDP targets are fire-and-forget; TCP targets get a reconnecting
// background writer each.
type Sender struct {
	udpTargets []*udpTarget
	tcpClients []*tcpClient
	connUDP    *net.UDPConn
	running    bool
}

func NewSender() *Sender {
	return &Sender{
		udpTargets: make([]*udpTarget, 0),
		tcpClients: make([]*tcpClient, 0),
	}
}

func (s *Sender) AddUDPTarget(addr string, flag uint32) error {
	uaddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return err
	}
	s.udpTargets = append(s.udpTargets, &udpTarget{addr: uaddr, flag: flag})
	return nil
}

func (s *Sender) AddTCPTarget(addr string, flag uint32) {
	s.tcpClients = append(s.tcpClients, &tcpClient{
		addr:  addr,
		flag:  flag,
		queue: make(chan *Message, 256),
	})
}

func (s *Sender) Start() error {
	if len(s.udpTargets) > 0 {
		conn, err := net.ListenUDP("udp", &net.UDPAddr{})
		if err != nil {
			return err
		}
		s.connUDP = conn
	}
	for _, c := range s.tcpClients {
		c.running = true
		c.wg.Add(1)
		go c.run()
	}
	s.running = true
	return nil
}

func (s *Sender) Stop() {
	s.running = false
	for _, c := range s.tcpClients {
		c.running = false
		close(c.queue)
		c.wg.Wait()
	}
	if s.connUDP != nil {
		s.connUDP.Close()
	}
}

// Send delivers data to every target whose mask includes flag.
func (s *Sender) Send(data []byte, flag uint32) {
	if !s.running {
		return
	}
	for _, t := range s.udpTargets {
		if t.flag&flag == 0 {
			continue
		}
		if _, err := s.connUDP.WriteToUDP(data, t.addr); err != nil {
			log.Printf("feed udp %s: %v", t.addr, err)
		}
	}
	for _, c := range s.tcpClients {
		if c.flag&flag == 0 {
			continue
		}
		select {
		case c.queue <- &Message{Data: data, Flag: flag}:
		default:
			// consumer is stalled; drop rather than block the pipeline
		}
	}
}

func (c *tcpClient) run() {
	defer c.wg.Done()
	var conn net.Conn
	for msg := range c.queue {
		for conn == nil && c.running {
			var err error
			conn, err = net.DialTimeout("tcp", c.addr, 3*time.Second)
			if err != nil {
				log.Printf("feed tcp %s: %v", c.addr, err)
				time.Sleep(2 * time.Second)
			}
		}
		if conn == nil {
			return
		}
		conn.SetWriteDeadline(time.Now().Add(3 * time.Second))
		if _, err := conn.Write(msg.Data); err != nil {
			log.Printf("feed tcp %s write: %v", c.addr, err)
			conn.Close()
			conn = nil
		}
	}
	if conn != nil {
		conn.Close()
	}
}
