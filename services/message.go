package services

import (
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"

	"svss-simulation/utils"
)

// Stage identifies the protocol step a message belongs to. The order of
// the constants is meaningful: everything up to StageMWOK belongs to the
// MW share phase and is ignored once the invocation is done.
type Stage int

const (
	StageMWValues Stage = iota + 1
	StageMWAck
	StageMWCorroborate
	StageMWL
	StageMWM
	StageMWOK
	StageMWRec
	StageSVSSValues
	StageSVSSG
)

func (s Stage) String() string {
	switch s {
	case StageMWValues:
		return "MW_VALUES"
	case StageMWAck:
		return "MW_ACK"
	case StageMWCorroborate:
		return "MW_CORROBORATE"
	case StageMWL:
		return "MW_L"
	case StageMWM:
		return "MW_M"
	case StageMWOK:
		return "MW_OK"
	case StageMWRec:
		return "MW_REC"
	case StageSVSSValues:
		return "SVSS_VALUES"
	case StageSVSSG:
		return "SVSS_G"
	default:
		return "UNKNOWN"
	}
}

// Tag identifies a protocol invocation. MW invocations use all four
// fields; SVSS invocations carry only the counter and the SVSS dealer,
// leaving MWDealer and Moderator zero. Even counters are the g side of a
// sharing, odd counters the h side.
type Tag struct {
	C         int
	Dealer    int
	MWDealer  int
	Moderator int
}

// SVSS maps any tag to its SVSS invocation tag (even counter).
func (t Tag) SVSS() Tag {
	return Tag{C: t.C - t.C%2, Dealer: t.Dealer}
}

// Pseudo keeps the counter's parity but drops the MW components. MW
// reconstruction results are keyed by pseudo tags, so the g and h sides
// of one sharing stay separate.
func (t Tag) Pseudo() Tag {
	return Tag{C: t.C, Dealer: t.Dealer}
}

func (t Tag) String() string {
	if t.MWDealer == 0 && t.Moderator == 0 {
		return fmt.Sprintf("(%d,%d)", t.C, t.Dealer)
	}
	return fmt.Sprintf("(%d,%d,%d,%d)", t.C, t.Dealer, t.MWDealer, t.Moderator)
}

// Message is the wire record exchanged by processors. Content is
// stage-dependent; exactly the fields a stage needs are set, the rest
// stay zero. The transport serializes messages with CBOR, so every
// recipient works on its own copy.
type Message struct {
	Stage     Stage `cbor:"stage"`
	Tag       Tag   `cbor:"tag"`
	Sender    int   `cbor:"sender"`
	Moderator int   `cbor:"moderator,omitempty"`
	RB        bool  `cbor:"rb,omitempty"`

	// MW_VALUES: Share is f_i (participant) or f (moderator); CrossEvals
	// carries {j -> f_j(i)} on the participant form only.
	Share      *utils.Polynomial `cbor:"share,omitempty"`
	CrossEvals map[int]*big.Int  `cbor:"crossEvals,omitempty"`

	// MW_CORROBORATE and the unicast MW_L to the moderator.
	Value *big.Int `cbor:"value,omitempty"`

	// MW_L (RB) and MW_M payloads.
	IDs []int `cbor:"ids,omitempty"`

	// MW_REC: the row index l and f_l(sender).
	RecIndex int      `cbor:"recIndex,omitempty"`
	RecValue *big.Int `cbor:"recValue,omitempty"`

	// SVSS_VALUES.
	G *utils.Polynomial `cbor:"g,omitempty"`
	H *utils.Polynomial `cbor:"h,omitempty"`

	// SVSS_G: the S chain S[0..t+1] and the dealer's G adjacency.
	SLevels [][]int       `cbor:"sLevels,omitempty"`
	GEdges  map[int][]int `cbor:"gEdges,omitempty"`
}

// Clone round-trips the message through CBOR, producing an independent
// deep copy. This is what the transport hands each recipient.
func (m *Message) Clone() (*Message, error) {
	data, err := cbor.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	var out Message
	if err := cbor.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	return &out, nil
}

// ID returns a short content digest used to identify messages in
// scheduler traces.
func (m *Message) ID() string {
	data, err := cbor.Marshal(m)
	if err != nil {
		return "invalid"
	}
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:6])
}
