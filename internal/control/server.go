// Package control exposes the daemon's command surface over a unix
// socket. The protocol is newline-delimited JSON, one request and one
// response per line. Every connection gets explicit deadlines; a stuck
// client can never wedge the daemon.
package control

import (
	"bufio"
	"encoding/json"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"voxd/internal/action"
	"voxd/internal/logging"
)

// IOTimeout bounds every read and write on a control connection.
const IOTimeout = 2 * time.Second

// Request is one control command.
type Request struct {
	ID  string `json:"id,omitempty"`
	Op  string `json:"op"`
	Arg string `json:"arg,omitempty"`
}

// Response answers a request. Status is echoed only for the status op.
type Response struct {
	ID     string         `json:"id,omitempty"`
	OK     bool           `json:"ok"`
	Error  string         `json:"error,omitempty"`
	Status *action.Status `json:"status,omitempty"`
}

// Ops understood by the server.
const (
	OpStatus        = "status"
	OpExecuteAction = "execute"
	OpArmAutoReturn = "arm_auto_return"
	OpArmScheduled  = "arm_scheduled"
)

// Server serves the control socket.
type Server struct {
	path     string
	selector *action.Selector

	mu       sync.Mutex
	listener net.Listener
	running  bool
	doneCh   chan struct{}
}

// NewServer creates a control server bound to the selector.
func NewServer(path string, selector *action.Selector) *Server {
	return &Server{path: path, selector: selector, doneCh: make(chan struct{})}
}

// Start binds the socket and begins accepting. Non-blocking. A stale
// socket file from a dead daemon is removed first.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	_ = os.Remove(s.path)
	ln, err := net.Listen("unix", s.path)
	if err != nil {
		return err
	}
	s.listener = ln
	s.running = true

	go s.acceptLoop(ln)
	logging.Get(logging.CategoryControl).Info("control socket at %s", s.path)
	return nil
}

// Stop closes the listener and removes the socket file.
func (s *Server) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	ln := s.listener
	s.mu.Unlock()

	_ = ln.Close()
	<-s.doneCh
	_ = os.Remove(s.path)
}

func (s *Server) acceptLoop(ln net.Listener) {
	defer close(s.doneCh)
	for {
		conn, err := ln.Accept()
		if err != nil {
			return // listener closed
		}
		go s.handle(conn)
	}
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()
	log := logging.Get(logging.CategoryControl)

	_ = conn.SetReadDeadline(time.Now().Add(IOTimeout))
	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		return
	}

	var req Request
	resp := Response{}
	if err := json.Unmarshal(line, &req); err != nil {
		resp.Error = "malformed request"
	} else {
		resp = s.dispatch(req)
	}
	resp.ID = req.ID
	if resp.ID == "" {
		resp.ID = uuid.NewString()
	}

	out, err := json.Marshal(resp)
	if err != nil {
		log.Error("marshal response: %v", err)
		return
	}
	out = append(out, '\n')
	_ = conn.SetWriteDeadline(time.Now().Add(IOTimeout))
	if _, err := conn.Write(out); err != nil {
		log.Debug("write response: %v", err)
	}
}

func (s *Server) dispatch(req Request) Response {
	switch req.Op {
	case OpStatus:
		st := s.selector.GetStatus()
		return Response{OK: true, Status: &st}

	case OpExecuteAction:
		if err := s.selector.ExecuteActionByName(req.Arg); err != nil {
			return Response{Error: err.Error()}
		}
		return Response{OK: true}

	case OpArmAutoReturn:
		s.selector.ArmAutoReturn(req.Arg == "true" || req.Arg == "1" || req.Arg == "on")
		return Response{OK: true}

	case OpArmScheduled:
		if err := s.selector.ArmScheduledAction(req.Arg); err != nil {
			return Response{Error: err.Error()}
		}
		return Response{OK: true}

	default:
		return Response{Error: "unknown op " + req.Op}
	}
}
