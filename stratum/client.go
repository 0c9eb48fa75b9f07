// Package stratum implements the asynchronous JSON-line Stratum client used
// to talk to a RandomX mining pool: login, job intake, and share
// submission with response correlation.
package stratum

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

const methodJob = "job"
const methodSubmit = "submit"
const methodLogin = "login"

// Params configures a Session.
type Params struct {
	Host  string
	Port  string
	Login string
	Pass  string
	Agent string

	// OnNewJob fires once per pushed or embedded job.
	OnNewJob func(MiningJob)
	// OnShareAccepted fires once per accepted submit response.
	OnShareAccepted func()
	// OnShareRejected fires once per submit response carrying an error.
	OnShareRejected func()
}

// Session is an asynchronous line-oriented JSON-RPC client for a single
// pool connection. There is exactly one reader goroutine per Session,
// matching the "single reactor thread owns the socket" model. All writes
// go through a mutex-guarded writer and run on the calling goroutine, so
// Submit blocks until its write completes.
type Session struct {
	host, port      string
	login, pass     string
	agent           string
	onNewJob        func(MiningJob)
	onShareAccepted func()
	onShareRejected func()

	conn    net.Conn
	writeMu sync.Mutex

	nextID atomic.Uint64

	pendingMu sync.Mutex
	pending   map[uint64]struct{}

	loginID uint64

	subMu sync.RWMutex
	subID string
}

// NewSession constructs a Session. Connect must be called to actually dial.
func NewSession(p Params) *Session {
	return &Session{
		host:            p.Host,
		port:            p.Port,
		login:           p.Login,
		pass:            p.Pass,
		agent:           p.Agent,
		onNewJob:        p.OnNewJob,
		onShareAccepted: p.OnShareAccepted,
		onShareRejected: p.OnShareRejected,
		pending:         map[uint64]struct{}{},
	}
}

// Connect resolves the pool address, dials TCP, sends login, and starts
// the read loop in a background goroutine. It does not block waiting for
// the login response.
func (s *Session) Connect(ctx context.Context) error {
	addr := net.JoinHostPort(s.host, s.port)

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("stratum: dial %s: %w", addr, err)
	}
	s.conn = conn

	go s.readLoop()

	id := s.nextRequestID()
	s.loginID = id
	req := outboundRequest{
		ID:     id,
		Method: methodLogin,
		Params: loginParams{Login: s.login, Pass: s.pass, Agent: s.agent},
	}

	if err := s.write(req); err != nil {
		return fmt.Errorf("stratum: login: %w", err)
	}

	logrus.WithFields(logrus.Fields{"host": s.host, "port": s.port}).
		Info("stratum: connecting")
	return nil
}

// Submit serialises and sends a submit request for sol. The request id is
// recorded in pending-submits strictly before the write, so the response
// handler always finds it. The write runs synchronously under the
// session's write mutex: Submit blocks its caller until the request is
// written or the write fails.
func (s *Session) Submit(sol Solution) error {
	s.subMu.RLock()
	subID := s.subID
	s.subMu.RUnlock()

	id := s.nextRequestID()
	s.markPending(id)

	req := outboundRequest{
		ID:     id,
		Method: methodSubmit,
		Params: newShareParams(subID, sol),
	}

	if err := s.write(req); err != nil {
		logrus.WithError(err).Error("stratum: submit write failed")
		return err
	}
	return nil
}

func (s *Session) nextRequestID() uint64 {
	return s.nextID.Add(1)
}

func (s *Session) markPending(id uint64) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	s.pending[id] = struct{}{}
}

// clearPending removes id from pending-submits and reports whether it was
// present (property 5: every id is removed exactly once).
func (s *Session) clearPending(id uint64) bool {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	_, ok := s.pending[id]
	delete(s.pending, id)
	return ok
}

// terminate clears all pending submits on session termination, satisfying
// property 5's "removed exactly once... or by session termination" clause.
func (s *Session) terminate() {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	for id := range s.pending {
		delete(s.pending, id)
	}
}

func (s *Session) write(v interface{}) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	payload = append(payload, '\n')

	written := 0
	for written != len(payload) {
		n, err := s.conn.Write(payload[written:])
		if err != nil {
			return err
		}
		written += n
	}
	return nil
}

// readLoop is the session's single reader; it owns the socket for its
// entire lifetime and feeds complete lines to handleLine.
func (s *Session) readLoop() {
	scanner := bufio.NewScanner(s.conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := s.handleLine(line); err != nil {
			logrus.WithError(err).WithField("line", string(line)).
				Error("stratum: malformed line")
		}
	}

	if err := scanner.Err(); err != nil {
		logrus.WithError(err).Error("stratum: read error, terminating session")
	} else {
		logrus.Info("stratum: connection closed, terminating session")
	}
	s.terminate()
}

type envelope struct {
	ID     *uint64         `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type loginParams struct {
	Login string `json:"login"`
	Pass  string `json:"pass"`
	Agent string `json:"agent"`
}

type submitParams struct {
	ID     string `json:"id"`
	JobID  string `json:"job_id"`
	Nonce  string `json:"nonce"`
	Result string `json:"result"`
}

type outboundRequest struct {
	ID     uint64      `json:"id"`
	Method string      `json:"method"`
	Params interface{} `json:"params"`
}

type loginResult struct {
	ID  string   `json:"id"`
	Job *wireJob `json:"job,omitempty"`
}

type submitResult struct {
	Status string `json:"status"`
}

// handleLine recognises the three inbound shapes from spec.md §4.4: a
// pushed job, a login response (with an embedded subscription id and
// optional first job), or a submit response.
func (s *Session) handleLine(line []byte) error {
	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	switch {
	case env.Method == methodJob:
		var wj wireJob
		if err := json.Unmarshal(env.Params, &wj); err != nil {
			return fmt.Errorf("job params: %w", err)
		}
		return s.deliverJob(wj)

	case env.ID != nil:
		return s.handleResponse(*env.ID, env)

	default:
		if env.Error != nil {
			logrus.WithField("error", env.Error.Message).Error("stratum: pool error")
		}
		return nil
	}
}

func (s *Session) handleResponse(id uint64, env envelope) error {
	if id == s.loginID {
		if env.Error != nil {
			return errors.New("login error: " + env.Error.Message)
		}
		if len(env.Result) == 0 {
			return fmt.Errorf("login response %d carries no result", id)
		}

		var res loginResult
		if err := json.Unmarshal(env.Result, &res); err != nil {
			return fmt.Errorf("login result: %w", err)
		}

		s.subMu.Lock()
		s.subID = res.ID
		s.subMu.Unlock()

		logrus.WithField("subscription", res.ID).Info("stratum: logged in")

		if res.Job != nil {
			return s.deliverJob(*res.Job)
		}
		return nil
	}

	if !s.clearPending(id) {
		return fmt.Errorf("response to unknown id %d", id)
	}

	// A submit response: result non-null means accepted.
	if env.Error != nil || len(env.Result) == 0 || string(env.Result) == "null" {
		fields := logrus.Fields{"id": id}
		if env.Error != nil {
			fields["error"] = env.Error.Message
		}
		logrus.WithFields(fields).Warn("stratum: share rejected")
		if s.onShareRejected != nil {
			s.onShareRejected()
		}
		return nil
	}
	var res submitResult
	if len(env.Result) > 0 && string(env.Result) != "null" {
		_ = json.Unmarshal(env.Result, &res)
	}
	if s.onShareAccepted != nil {
		s.onShareAccepted()
	}
	return nil
}

func (s *Session) deliverJob(wj wireJob) error {
	job, err := decodeJob(wj)
	if err != nil {
		return err
	}
	if s.onNewJob != nil {
		s.onNewJob(job)
	}
	return nil
}
