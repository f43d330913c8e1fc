// Package transport implements the RPC transport contract §4.2 requires:
// location-transparent request/response between peers addressed by their
// logical "host:port" id, built on the standard library's net/rpc over
// TCP (gob-encoded, inherent to net/rpc rather than a separate dependency
// choice). There is no retry at this layer — a resolve or invoke failure
// is reported once and it is up to the Peer core to react.
package transport

import (
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"strconv"
	"strings"
	"sync"
)

// Failure modes surfaced to callers, per spec.md §4.2.
var (
	ErrUnreachable      = errors.New("transport: peer unreachable")
	ErrNotBound         = errors.New("transport: local object not published")
	ErrMalformedAddress = errors.New("transport: malformed peer address")
	ErrRemoteException  = errors.New("transport: remote exception")
)

// Handle is a resolved, reusable connection to one remote peer.
type Handle interface {
	// Call invokes serviceMethod ("Peer.ProposeMatch" etc.) on the remote
	// peer, blocking until it returns or the connection fails.
	Call(serviceMethod string, args, reply interface{}) error
	// ID is the logical id this handle was resolved for.
	ID() string
}

// Transport is the contract the Peer core depends on.
type Transport interface {
	// Resolve returns a reusable handle to id, dialing if necessary.
	Resolve(id string) (Handle, error)
	// Publish exposes service for inbound calls addressed to id. id must
	// be the "host:port" this process is reachable on.
	Publish(id string, service interface{}) error
	// Close stops accepting inbound calls and drops all cached handles.
	Close() error
}

// tcpTransport is the concrete Transport: an net/rpc server bound to the
// local id, plus a cache of dialed *rpc.Client handles to remote ids.
type tcpTransport struct {
	mu       sync.Mutex
	handles  map[string]*tcpHandle
	listener net.Listener
	server   *rpc.Server
	closed   bool
}

// New returns an empty transport. Callers must call Publish before any
// inbound call can be served, and may call Resolve at any time.
func New() Transport {
	return &tcpTransport{
		handles: make(map[string]*tcpHandle),
		server:  rpc.NewServer(),
	}
}

func validateAddress(id string) error {
	host, port, err := net.SplitHostPort(id)
	if err != nil || host == "" || port == "" {
		return fmt.Errorf("%w: %q", ErrMalformedAddress, id)
	}
	if _, err := strconv.Atoi(port); err != nil {
		return fmt.Errorf("%w: %q", ErrMalformedAddress, id)
	}
	return nil
}

func (t *tcpTransport) Resolve(id string) (Handle, error) {
	if err := validateAddress(id); err != nil {
		return nil, err
	}

	t.mu.Lock()
	if h, ok := t.handles[id]; ok {
		t.mu.Unlock()
		return h, nil
	}
	t.mu.Unlock()

	client, err := rpc.Dial("tcp", id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreachable, id, err)
	}

	h := &tcpHandle{id: id, client: client, owner: t}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		client.Close()
		return nil, fmt.Errorf("%w: transport closed", ErrUnreachable)
	}
	t.handles[id] = h
	t.mu.Unlock()

	return h, nil
}

func (t *tcpTransport) evict(id string) {
	t.mu.Lock()
	delete(t.handles, id)
	t.mu.Unlock()
}

func (t *tcpTransport) Publish(id string, service interface{}) error {
	if err := validateAddress(id); err != nil {
		return err
	}
	if err := t.server.Register(service); err != nil {
		return fmt.Errorf("%w: %v", ErrNotBound, err)
	}

	ln, err := net.Listen("tcp", id)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotBound, err)
	}
	t.listener = ln

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go t.server.ServeConn(conn)
		}
	}()
	return nil
}

func (t *tcpTransport) Close() error {
	t.mu.Lock()
	t.closed = true
	handles := t.handles
	t.handles = make(map[string]*tcpHandle)
	listener := t.listener
	t.mu.Unlock()

	var errs []string
	for _, h := range handles {
		if err := h.client.Close(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if listener != nil {
		if err := listener.Close(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

type tcpHandle struct {
	id     string
	client *rpc.Client
	owner  *tcpTransport
}

func (h *tcpHandle) ID() string { return h.id }

func (h *tcpHandle) Call(serviceMethod string, args, reply interface{}) error {
	err := h.client.Call(serviceMethod, args, reply)
	if err != nil {
		// Any failure here — dead connection, remote-side panic surfaced
		// as an error, EOF on a peer that exited — is terminal for the
		// handle: evict it so the next Resolve re-dials instead of
		// replaying a connection that is known bad.
		h.owner.evict(h.id)
		return fmt.Errorf("%w: %s.%s: %v", ErrRemoteException, h.id, serviceMethod, err)
	}
	return nil
}
