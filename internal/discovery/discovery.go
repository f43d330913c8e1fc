// Package discovery implements the multicast/gossip membership service of
// spec.md §4.3, ported from original_source/Discovery.java: a periodic
// multicast HELLO announces presence, an on-change unicast GOSSIP digest
// speeds up propagation, and a cleaner prunes stale entries.
package discovery

import (
	"fmt"
	"math/rand"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Config carries the timing/addressing knobs, normally sourced from
// internal/config.Discovery.
type Config struct {
	Group            string
	Port             int
	HelloPeriod      time.Duration
	GossipEnabled    bool
	GossipStaleness  time.Duration
	CleanerThreshold time.Duration
	CleanerPeriod    time.Duration
}

// Discovery maintains the eventually-consistent view of known peer ids.
// The self id is never present in the view. In gossip mode each entry
// additionally carries a "last seen" monotonic timestamp used for
// staleness eviction.
type Discovery struct {
	myID string
	cfg  Config
	log  *zap.Logger

	conn  *net.UDPConn
	group *net.UDPAddr

	mu       sync.RWMutex
	peers    map[string]struct{}
	lastSeen map[string]time.Time

	closeOnce sync.Once
	stop      chan struct{}
	wg        sync.WaitGroup
}

// New joins the configured multicast group and starts the sender,
// receiver and (in gossip mode) cleaner loops.
func New(myID string, cfg Config, log *zap.Logger) (*Discovery, error) {
	groupAddr := &net.UDPAddr{IP: net.ParseIP(cfg.Group), Port: cfg.Port}
	conn, err := net.ListenMulticastUDP("udp4", nil, groupAddr)
	if err != nil {
		return nil, fmt.Errorf("discovery: join %s:%d: %w", cfg.Group, cfg.Port, err)
	}

	d := &Discovery{
		myID:     myID,
		cfg:      cfg,
		log:      log,
		conn:     conn,
		group:    groupAddr,
		peers:    make(map[string]struct{}),
		lastSeen: make(map[string]time.Time),
		stop:     make(chan struct{}),
	}

	d.wg.Add(2)
	go d.receiveLoop()
	go d.senderLoop()
	if cfg.GossipEnabled {
		d.wg.Add(1)
		go d.cleanerLoop()
	}
	return d, nil
}

// Peers returns a snapshot of the currently known peer ids, excluding self.
func (d *Discovery) Peers() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.peers))
	for id := range d.peers {
		out = append(out, id)
	}
	return out
}

// Close stops all loops, leaves the multicast group and releases the
// socket. Safe to call more than once.
func (d *Discovery) Close() error {
	var err error
	d.closeOnce.Do(func() {
		close(d.stop)
		err = d.conn.Close()
		d.wg.Wait()
	})
	return err
}

// ---- sender: periodic HELLO ----

func (d *Discovery) senderLoop() {
	defer d.wg.Done()
	d.sendHello()
	ticker := time.NewTicker(d.cfg.HelloPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-d.stop:
			return
		case <-ticker.C:
			d.sendHello()
		}
	}
}

func (d *Discovery) sendHello() {
	msg := "HELLO " + d.myID
	if _, err := d.conn.WriteToUDP([]byte(msg), d.group); err != nil {
		d.log.Debug("discovery: hello send failed", zap.Error(err))
	}
}

// triggerGossip sends an epidemic digest of the current view, with
// timestamps, to one uniformly-random peer from that view. It is invoked
// only on a change to the view (a newly seen id via HELLO or GOSSIP), never
// periodically.
func (d *Discovery) triggerGossip() {
	if !d.cfg.GossipEnabled {
		return
	}

	d.mu.RLock()
	ids := make([]string, 0, len(d.peers))
	for id := range d.peers {
		ids = append(ids, id)
	}
	d.mu.RUnlock()
	if len(ids) == 0 {
		return
	}
	target := ids[rand.Intn(len(ids))]
	host, _, err := net.SplitHostPort(target)
	if err != nil {
		return
	}

	now := time.Now()
	var sb strings.Builder
	sb.WriteString(d.myID)
	sb.WriteByte(';')
	sb.WriteString(strconv.FormatInt(now.UnixMilli(), 10))

	d.mu.RLock()
	for id := range d.peers {
		ts, ok := d.lastSeen[id]
		if !ok {
			ts = now
		}
		sb.WriteByte(',')
		sb.WriteString(id)
		sb.WriteByte(';')
		sb.WriteString(strconv.FormatInt(ts.UnixMilli(), 10))
	}
	d.mu.RUnlock()

	payload := "GOSSIP " + sb.String()
	addr := &net.UDPAddr{IP: net.ParseIP(host), Port: d.cfg.Port}
	if _, err := d.conn.WriteToUDP([]byte(payload), addr); err != nil {
		d.log.Debug("discovery: gossip send failed", zap.Error(err), zap.String("target", target))
	}
}

// ---- receiver: HELLO / GOSSIP ----

func (d *Discovery) receiveLoop() {
	defer d.wg.Done()
	buf := make([]byte, 4096)
	for {
		n, _, err := d.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-d.stop:
				return
			default:
				continue
			}
		}
		msg := string(buf[:n])
		switch {
		case strings.HasPrefix(msg, "HELLO "):
			d.handleHello(strings.TrimSpace(msg[len("HELLO "):]))
		case d.cfg.GossipEnabled && strings.HasPrefix(msg, "GOSSIP "):
			d.mergeGossip(strings.TrimSpace(msg[len("GOSSIP "):]))
		}
	}
}

func (d *Discovery) handleHello(id string) {
	if id == "" || id == d.myID {
		return
	}

	now := time.Now()
	d.mu.Lock()
	_, existed := d.peers[id]
	d.peers[id] = struct{}{}
	if d.cfg.GossipEnabled {
		d.lastSeen[id] = now
	}
	d.mu.Unlock()

	if !existed {
		d.log.Info("discovery: new peer via hello", zap.String("peer", id))
		d.triggerGossip()
	}
}

// mergeGossip parses "<senderId>;<now>,<peerId>;<ts>,..." and merges each
// entry whose timestamp is both fresh enough and newer than what we have.
func (d *Discovery) mergeGossip(payload string) {
	entries := strings.Split(payload, ",")
	now := time.Now()
	addedAny := false

	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		parts := strings.SplitN(e, ";", 2)
		if len(parts) != 2 {
			continue
		}
		id := strings.TrimSpace(parts[0])
		if id == "" || id == d.myID {
			continue
		}
		millis, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
		if err != nil {
			continue
		}
		ts := time.UnixMilli(millis)
		if now.Sub(ts) > d.cfg.GossipStaleness {
			continue
		}

		d.mu.Lock()
		old, had := d.lastSeen[id]
		if !had || ts.After(old) {
			d.lastSeen[id] = ts
			_, existed := d.peers[id]
			d.peers[id] = struct{}{}
			if !existed {
				addedAny = true
			}
		}
		d.mu.Unlock()
	}

	if addedAny {
		d.triggerGossip()
	}
}

// ---- cleaner: prune stale entries (gossip mode only) ----

func (d *Discovery) cleanerLoop() {
	defer d.wg.Done()
	ticker := time.NewTicker(d.cfg.CleanerPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-d.stop:
			return
		case <-ticker.C:
			d.prune()
		}
	}
}

func (d *Discovery) prune() {
	now := time.Now()
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, ts := range d.lastSeen {
		if now.Sub(ts) >= d.cfg.CleanerThreshold {
			delete(d.peers, id)
			delete(d.lastSeen, id)
			d.log.Info("discovery: pruned stale peer", zap.String("peer", id))
		}
	}
}
