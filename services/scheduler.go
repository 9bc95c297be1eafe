package services

import (
	"math/rand"
	"sort"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// RBGate decides when a reliable broadcast is released to the network.
// Submit enqueues a broadcast; Ready returns the releasable ones.
// Atomic gates deliver a released broadcast to everyone in one step,
// non-atomic ones enqueue a separately scheduled copy per processor.
type RBGate interface {
	Submit(m *Message)
	Ready(players map[int]*Player) []*Message
	Atomic() bool
	Pending() int
}

// ImmediateGate releases every broadcast right away and delivers it to
// all processors in a single step. This is the plain random-order
// simulation: RB semantics are assumed, not enforced.
type ImmediateGate struct {
	pending []*Message
}

func NewImmediateGate() *ImmediateGate {
	return &ImmediateGate{}
}

func (g *ImmediateGate) Submit(m *Message) {
	g.pending = append(g.pending, m)
}

func (g *ImmediateGate) Ready(map[int]*Player) []*Message {
	out := g.pending
	g.pending = nil
	return out
}

func (g *ImmediateGate) Atomic() bool { return true }

func (g *ImmediateGate) Pending() int { return len(g.pending) }

// QuorumGate models the reliable-broadcast precondition: a broadcast is
// released only once n-t processors are willing to handle it, each of
// them in turn backed by n-t processors willing to hear from them. For a
// fully faithful simulation this willingness check would be iterated t+1
// times; released broadcasts are delivered per processor in random
// order.
type QuorumGate struct {
	n, t    int
	pending []*Message
}

func NewQuorumGate(n, t int) *QuorumGate {
	return &QuorumGate{n: n, t: t}
}

func (g *QuorumGate) Submit(m *Message) {
	g.pending = append(g.pending, m)
}

func (g *QuorumGate) Ready(players map[int]*Player) []*Message {
	ids := make([]int, 0, len(players))
	for id := range players {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var released []*Message
	var still []*Message
	for _, m := range g.pending {
		willing := 0
		for _, id := range ids {
			if players[id].ShouldDelay(m) {
				continue
			}
			probe := &Message{Tag: m.Tag, Sender: id, RB: true}
			backers := 0
			for _, second := range ids {
				if !players[second].ShouldDelay(probe) {
					backers++
				}
			}
			if backers >= g.n-g.t {
				willing++
			}
		}
		if willing >= g.n-g.t {
			released = append(released, m)
		} else {
			still = append(still, m)
		}
	}
	g.pending = still
	return released
}

func (g *QuorumGate) Atomic() bool { return false }

func (g *QuorumGate) Pending() int { return len(g.pending) }

// queued is one deliverable unit: a unicast to a single processor or an
// atomic broadcast (to == 0).
type queued struct {
	msg *Message
	to  int
}

// Scheduler is the simulated transport: it collects unicasts and
// broadcasts, advances simulated time, and delivers messages one random
// pick per step. Every delivery hands the recipient its own CBOR-decoded
// copy of the message, so processors never share mutable state.
type Scheduler struct {
	rng     *rand.Rand
	gate    RBGate
	players map[int]*Player
	order   []int
	queue   []queued
	clock   int64
	logger  zerolog.Logger
}

// NewScheduler creates a scheduler delivering in the random order driven
// by rng, with RB release controlled by gate.
func NewScheduler(rng *rand.Rand, gate RBGate, logLevel zerolog.Level) *Scheduler {
	logger := log.With().
		Str("layer", "SIM").
		Logger().
		Level(logLevel)

	return &Scheduler{
		rng:     rng,
		gate:    gate,
		players: make(map[int]*Player),
		logger:  logger,
	}
}

// Register adds a player to the simulated network.
func (s *Scheduler) Register(p *Player) {
	s.players[p.ID()] = p
	s.order = append(s.order, p.ID())
	sort.Ints(s.order)
}

// Send enqueues a unicast.
func (s *Scheduler) Send(m *Message, to int) {
	s.queue = append(s.queue, queued{msg: m, to: to})
}

// RB submits a broadcast to the gate.
func (s *Scheduler) RB(m *Message) {
	s.gate.Submit(m)
}

// Time returns the simulated clock.
func (s *Scheduler) Time() int64 {
	return s.clock
}

// release moves gate-approved broadcasts into the delivery queue.
func (s *Scheduler) release() {
	for _, m := range s.gate.Ready(s.players) {
		if s.gate.Atomic() {
			s.queue = append(s.queue, queued{msg: m})
		} else {
			for _, id := range s.order {
				s.queue = append(s.queue, queued{msg: m, to: id})
			}
		}
	}
}

// Step delivers one randomly chosen pending item and advances the clock.
func (s *Scheduler) Step() {
	s.release()
	if len(s.queue) == 0 {
		return
	}

	i := s.rng.Intn(len(s.queue))
	item := s.queue[i]
	s.queue = append(s.queue[:i], s.queue[i+1:]...)

	if item.to != 0 {
		s.deliver(item.msg, item.to)
	} else {
		for _, id := range s.order {
			s.deliver(item.msg, id)
		}
	}
	s.clock++
}

func (s *Scheduler) deliver(m *Message, to int) {
	clone, err := m.Clone()
	if err != nil {
		s.logger.Error().Err(err).Str("msg", m.ID()).Msg("Dropping undecodable message")
		return
	}
	s.logger.Debug().
		Str("stage", m.Stage.String()).
		Str("tag", m.Tag.String()).
		Int("from", m.Sender).
		Int("to", to).
		Str("msg", m.ID()).
		Msg("Deliver")
	s.players[to].DMM(clone)
}

// Remaining reports whether any deliverable work is left, releasing
// newly eligible broadcasts first.
func (s *Scheduler) Remaining() bool {
	if len(s.queue) > 0 {
		return true
	}
	s.release()
	return len(s.queue) > 0
}

// Run steps the simulation to quiescence.
func (s *Scheduler) Run() {
	for s.Remaining() {
		s.Step()
	}
}
