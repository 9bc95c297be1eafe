package services

import (
	"math/big"
	"math/rand"
	"sort"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"svss-simulation/utils"
)

// Transport is the scheduler surface the protocol core consumes: unicast,
// reliable broadcast and the simulated clock.
type Transport interface {
	Send(m *Message, to int)
	RB(m *Message)
	Time() int64
}

// invocationWindow is the wall-clock window of one invocation. End stays
// unset for invocations whose quorum never forms.
type invocationWindow struct {
	begin int64
	end   int64
	ended bool
}

// mwShareData is a participant's share of one MW invocation: its own
// polynomial f_i plus the dealer's cross evaluations {j -> f_j(i)}.
type mwShareData struct {
	Share *utils.Polynomial
	Evals map[int]*big.Int
}

// mwDeal is the dealer's record of a sharing: the secret polynomial f and
// the per-participant polynomials f_j. Needed to populate ACK on OK.
type mwDeal struct {
	F      *utils.Polynomial
	Shares map[int]*utils.Polynomial
}

// moderatorSlot holds either the value passed to MWModerate or a VALUES
// message that arrived before MWModerate was called, whichever came
// first.
type moderatorSlot struct {
	value   *big.Int
	pending *Message
}

// recPoint is one buffered MW_REC contribution for a row.
type recPoint struct {
	Sender int
	Val    *big.Int
}

// Player is one processor's protocol state machine. All state is owned
// exclusively by the player; cross-processor coupling happens only
// through messages admitted by the DMM.
type Player struct {
	id int
	n  int
	t  int
	c  int

	transport  Transport
	rng        *rand.Rand
	logger     zerolog.Logger
	svssLogger zerolog.Logger

	disputes    *DisputeMemory
	waiting     []*Message
	invocations map[Tag]*invocationWindow

	// MW share phase.
	mwData               map[Tag]*mwShareData
	mwModData            map[Tag]*utils.Polynomial
	mwCorroborate        map[Tag]map[int]*big.Int
	mwCorroboratePending map[Tag][]*Message
	mwAck                map[Tag]map[int]bool
	mwL                  map[Tag]map[int]map[int]bool
	mwModM               map[Tag]map[int]bool
	mwModCorroborate     map[Tag]map[int]bool
	mwModPending         map[Tag][]*Message
	mwM                  map[Tag]map[int]bool
	mwDeals              map[Tag]*mwDeal
	mwModValue           map[Tag]*moderatorSlot
	mwOK                 map[Tag]bool
	mwShareDone          map[Tag]bool

	// MW reconstruction phase.
	mwK          map[Tag]map[int][]recPoint
	mwWaitingK   map[Tag][]*Message
	mwRecStarted map[Tag]bool
	mwVal        map[Tag]map[int]map[int]*big.Int

	// SVSS phase.
	g             map[Tag]map[int]map[int]bool
	s             map[Tag]map[int]bool
	gDealer       map[Tag]map[int]map[int]bool
	gSent         map[Tag]bool
	svssShareDone map[Tag]bool
	svssVal       map[Tag]*big.Int
	svssPoly      map[Tag]*utils.BivariatePolynomial
}

// NewPlayer creates a processor with identity id out of n, tolerating t
// faults. The rng drives polynomial sampling, so runs are reproducible
// under a fixed seed.
func NewPlayer(id, n, t int, transport Transport, rng *rand.Rand, logLevel zerolog.Level) *Player {
	logger := log.With().
		Str("layer", "MW").
		Int("node_id", id).
		Logger().
		Level(logLevel)
	svssLogger := log.With().
		Str("layer", "SVSS").
		Int("node_id", id).
		Logger().
		Level(logLevel)

	return &Player{
		id:         id,
		n:          n,
		t:          t,
		transport:  transport,
		rng:        rng,
		logger:     logger,
		svssLogger: svssLogger,

		disputes:    NewDisputeMemory(),
		invocations: make(map[Tag]*invocationWindow),

		mwData:               make(map[Tag]*mwShareData),
		mwModData:            make(map[Tag]*utils.Polynomial),
		mwCorroborate:        make(map[Tag]map[int]*big.Int),
		mwCorroboratePending: make(map[Tag][]*Message),
		mwAck:                make(map[Tag]map[int]bool),
		mwL:                  make(map[Tag]map[int]map[int]bool),
		mwModM:               make(map[Tag]map[int]bool),
		mwModCorroborate:     make(map[Tag]map[int]bool),
		mwModPending:         make(map[Tag][]*Message),
		mwM:                  make(map[Tag]map[int]bool),
		mwDeals:              make(map[Tag]*mwDeal),
		mwModValue:           make(map[Tag]*moderatorSlot),
		mwOK:                 make(map[Tag]bool),
		mwShareDone:          make(map[Tag]bool),

		mwK:          make(map[Tag]map[int][]recPoint),
		mwWaitingK:   make(map[Tag][]*Message),
		mwRecStarted: make(map[Tag]bool),
		mwVal:        make(map[Tag]map[int]map[int]*big.Int),

		g:             make(map[Tag]map[int]map[int]bool),
		s:             make(map[Tag]map[int]bool),
		gDealer:       make(map[Tag]map[int]map[int]bool),
		gSent:         make(map[Tag]bool),
		svssShareDone: make(map[Tag]bool),
		svssVal:       make(map[Tag]*big.Int),
		svssPoly:      make(map[Tag]*utils.BivariatePolynomial),
	}
}

// ID returns the processor identity.
func (p *Player) ID() int { return p.id }

// Counter returns the SVSS invocation counter.
func (p *Player) Counter() int { return p.c }

// Disputes exposes the dispute memory for inspection.
func (p *Player) Disputes() *DisputeMemory { return p.disputes }

// WaitingLen returns the number of messages currently deferred by the DMM.
func (p *Player) WaitingLen() int { return len(p.waiting) }

// MWShareDone reports whether the MW share phase completed for a tag.
func (p *Player) MWShareDone(tag Tag) bool { return p.mwShareDone[tag] }

// MWValue returns the reconstructed MW value for (c, d) dealt by dealer
// and moderated by mod. ok is false while reconstruction is running; a
// nil value with ok true means the invocation aborted.
func (p *Player) MWValue(c, d, dealer, mod int) (*big.Int, bool) {
	vals, ok := p.mwVal[Tag{C: c, Dealer: d}]
	if !ok {
		return nil, false
	}
	dv, ok := vals[dealer]
	if !ok {
		return nil, false
	}
	v, ok := dv[mod]
	return v, ok
}

// SVSSValue returns the reconstructed SVSS secret for tag (c, d). ok is
// false while the run is in progress; a nil value with ok true means the
// reconstruction aborted.
func (p *Player) SVSSValue(c, d int) (*big.Int, bool) {
	v, ok := p.svssVal[Tag{C: c, Dealer: d}]
	return v, ok
}

// MWMSet returns the moderator's M set for a tag, sorted, or nil.
func (p *Player) MWMSet(tag Tag) []int {
	set, ok := p.mwM[tag]
	if !ok {
		return nil
	}
	return sortedKeys(set)
}

// MWLSet returns the announced L sets for a tag keyed by announcer.
func (p *Player) MWLSet(tag Tag) map[int][]int {
	sets, ok := p.mwL[tag]
	if !ok {
		return nil
	}
	out := make(map[int][]int, len(sets))
	for sender, set := range sets {
		out[sender] = sortedKeys(set)
	}
	return out
}

// InvocationEnd returns the completion time of a tag's invocation window.
func (p *Player) InvocationEnd(tag Tag) (int64, bool) {
	inv, ok := p.invocations[tag]
	if !ok || !inv.ended {
		return 0, false
	}
	return inv.end, true
}

// DMM is the Delay/Memory Module: the admission filter deciding for each
// inbound message between drop, deliver and defer. Reliable-broadcast
// MW_REC messages are first reconciled against the ACK/DEAL evidence;
// whenever that evidence shrinks, the deferred messages are rescanned.
func (p *Player) DMM(m *Message) {
	tag := m.Tag
	checkWaiting := false

	if m.RB && m.Stage == StageMWRec {
		pt := AckPoint{Row: m.RecIndex, Acker: m.Sender}
		switch p.disputes.ConsumeAck(tag, pt, m.RecValue) {
		case ConsumeMatch:
			checkWaiting = true
		case ConsumeMismatch:
			p.logger.Info().Str("tag", tag.String()).Int("sender", m.Sender).Msg("REC point contradicts ACK record, marking liar")
			p.disputes.AddLiar(m.Sender)
		}

		if m.RecIndex == p.id {
			switch p.disputes.ConsumeDeal(tag, m.Sender, m.RecValue) {
			case ConsumeMatch:
				checkWaiting = true
			case ConsumeMismatch:
				p.logger.Info().Str("tag", tag.String()).Int("sender", m.Sender).Msg("REC point contradicts DEAL record, marking liar")
				p.disputes.AddLiar(m.Sender)
			}
		}
	}

	switch {
	case m.RB:
		// RB delivery already vouches for the sender's group willingness.
		p.receive(m)
	case p.disputes.IsLiar(m.Sender):
		p.logger.Debug().Int("sender", m.Sender).Msg("Dropping message from proven liar")
	case p.ShouldDelay(m):
		p.waiting = append(p.waiting, m)
	default:
		p.receive(m)
	}

	if checkWaiting {
		p.flushWaiting()
	}
}

// ShouldDelay implements the causal delay rule: a sender that still owes
// ACK or DEAL evidence from a completed earlier invocation must not yet
// be heard on a newer one. Exported because the RB gate probes it.
func (p *Player) ShouldDelay(m *Message) bool {
	for _, owedTag := range p.disputes.OwingTags(m.Sender) {
		owed, ok := p.invocations[owedTag]
		if !ok || !owed.ended {
			continue
		}
		cur, ok := p.invocations[m.Tag]
		if !ok || owed.end < cur.begin {
			return true
		}
	}
	return false
}

// flushWaiting re-admits every deferred message that now passes the delay
// rule, preserving the original relative order of the rest.
func (p *Player) flushWaiting() {
	var deliver []*Message
	var still []*Message
	for _, m := range p.waiting {
		if p.ShouldDelay(m) {
			still = append(still, m)
		} else {
			deliver = append(deliver, m)
		}
	}
	p.waiting = still
	for _, m := range deliver {
		p.receive(m)
	}
}

// receive routes an admitted message to its stage handler. Stages up to
// MW_OK are ignored once the MW share phase is done for the tag.
func (p *Player) receive(m *Message) {
	if _, ok := p.invocations[m.Tag]; !ok {
		p.invocations[m.Tag] = &invocationWindow{begin: p.now()}
	}

	switch {
	case m.Stage <= StageMWOK && !p.mwShareDone[m.Tag]:
		switch {
		case m.Stage == StageMWValues:
			p.receiveMWValues(m)
		case m.Stage == StageMWCorroborate:
			p.receiveMWCorroborate(m)
		case m.Stage == StageMWAck && m.RB:
			p.receiveMWAck(m)
		case m.Stage == StageMWL && m.RB:
			p.receiveMWL(m)
		case m.Stage == StageMWL && p.id == m.Moderator:
			p.receiveMWLMod(m)
		case m.Stage == StageMWM && m.Sender == m.Moderator && m.RB:
			p.receiveMWM(m)
		case m.Stage == StageMWOK && m.Sender == m.Tag.MWDealer && m.RB:
			p.receiveMWOK(m)
		}
	case m.Stage == StageMWRec && m.RB:
		p.receiveMWRec(m)
	case m.Stage == StageSVSSValues && m.Tag.Dealer == m.Sender:
		p.receiveSVSSValues(m)
	case m.Stage == StageSVSSG && m.Tag.Dealer == m.Sender && m.RB:
		p.receiveSVSSG(m)
	}
}

func (p *Player) send(m *Message, to int) {
	if p.transport != nil {
		p.transport.Send(m, to)
	}
}

func (p *Player) rb(m *Message) {
	m.RB = true
	if p.transport != nil {
		p.transport.RB(m)
	}
}

func (p *Player) now() int64 {
	if p.transport == nil {
		return 0
	}
	return p.transport.Time()
}

func sortedKeys(set map[int]bool) []int {
	out := make([]int, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

func toSet(ids []int) map[int]bool {
	set := make(map[int]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func intersectionSize(a, b map[int]bool) int {
	if len(b) < len(a) {
		a, b = b, a
	}
	count := 0
	for k := range a {
		if b[k] {
			count++
		}
	}
	return count
}
