package services

import (
	"math/big"
	"sort"
)

// ConsumeResult is the outcome of reconciling a revealed reconstruction
// point against a recorded ACK or DEAL entry.
type ConsumeResult int

const (
	ConsumeUnknown ConsumeResult = iota
	ConsumeMatch
	ConsumeMismatch
)

// AckPoint is a dealer-side evidence key: row j acknowledged by l.
type AckPoint struct {
	Row   int
	Acker int
}

// DisputeMemory holds a processor's cross-protocol fault state: the set D
// of proven equivocators and the ACK/DEAL evidence maps. D only grows.
// ACK and DEAL entries are consumed when a matching MW_REC point arrives;
// a mismatching point proves the sender lied.
type DisputeMemory struct {
	liars map[int]bool
	ack   map[Tag]map[AckPoint]*big.Int
	deal  map[Tag]map[int]*big.Int
}

func NewDisputeMemory() *DisputeMemory {
	return &DisputeMemory{
		liars: make(map[int]bool),
		ack:   make(map[Tag]map[AckPoint]*big.Int),
		deal:  make(map[Tag]map[int]*big.Int),
	}
}

// AddLiar marks p as a proven equivocator.
func (d *DisputeMemory) AddLiar(p int) {
	d.liars[p] = true
}

// IsLiar reports whether p has been proven to equivocate.
func (d *DisputeMemory) IsLiar(p int) bool {
	return d.liars[p]
}

// Liars returns the current D set, sorted.
func (d *DisputeMemory) Liars() []int {
	out := make([]int, 0, len(d.liars))
	for p := range d.liars {
		out = append(out, p)
	}
	sort.Ints(out)
	return out
}

// InitAck registers an empty ACK map for a tag. The MW dealer does this
// when dealing, so dealer_check_ok knows the invocation is its own.
func (d *DisputeMemory) InitAck(tag Tag) {
	d.ack[tag] = make(map[AckPoint]*big.Int)
}

// HasAck reports whether the tag has an ACK map at all.
func (d *DisputeMemory) HasAck(tag Tag) bool {
	_, ok := d.ack[tag]
	return ok
}

// AckLen returns the number of outstanding ACK points for a tag.
func (d *DisputeMemory) AckLen(tag Tag) int {
	return len(d.ack[tag])
}

// AckTagCount returns the number of tags still holding ACK evidence.
func (d *DisputeMemory) AckTagCount() int {
	return len(d.ack)
}

// RecordAckPoints stores the dealer's expected values for every (j, l)
// pair covered by the OK broadcast.
func (d *DisputeMemory) RecordAckPoints(tag Tag, points map[AckPoint]*big.Int) {
	m, ok := d.ack[tag]
	if !ok {
		m = make(map[AckPoint]*big.Int)
		d.ack[tag] = m
	}
	for pt, v := range points {
		m[pt] = v
	}
}

// ConsumeAck reconciles a revealed point against the recorded ACK entry.
// A match removes the entry (and the tag key once empty).
func (d *DisputeMemory) ConsumeAck(tag Tag, pt AckPoint, v *big.Int) ConsumeResult {
	m, ok := d.ack[tag]
	if !ok {
		return ConsumeUnknown
	}
	want, ok := m[pt]
	if !ok {
		return ConsumeUnknown
	}
	if want.Cmp(v) != 0 {
		return ConsumeMismatch
	}
	delete(m, pt)
	if len(m) == 0 {
		delete(d.ack, tag)
	}
	return ConsumeMatch
}

// InitDeal resets the DEAL map for a tag to empty.
func (d *DisputeMemory) InitDeal(tag Tag) {
	d.deal[tag] = make(map[int]*big.Int)
}

// InitDealIfAbsent creates an empty DEAL map if the tag has none.
func (d *DisputeMemory) InitDealIfAbsent(tag Tag) {
	if _, ok := d.deal[tag]; !ok {
		d.deal[tag] = make(map[int]*big.Int)
	}
}

// HasDeal reports whether the tag has a DEAL map.
func (d *DisputeMemory) HasDeal(tag Tag) bool {
	_, ok := d.deal[tag]
	return ok
}

// HasDealEntry reports whether the DEAL map records the given sender.
func (d *DisputeMemory) HasDealEntry(tag Tag, sender int) bool {
	_, ok := d.deal[tag][sender]
	return ok
}

// DealLen returns the number of DEAL entries for a tag.
func (d *DisputeMemory) DealLen(tag Tag) int {
	return len(d.deal[tag])
}

// DealTagCount returns the number of tags still holding DEAL evidence.
func (d *DisputeMemory) DealTagCount() int {
	return len(d.deal)
}

// DealSenders returns the recorded senders for a tag, sorted.
func (d *DisputeMemory) DealSenders(tag Tag) []int {
	out := make([]int, 0, len(d.deal[tag]))
	for s := range d.deal[tag] {
		out = append(out, s)
	}
	sort.Ints(out)
	return out
}

// RecordDealPoint stores the participant's own evaluation for a sender
// that both corroborated and acked.
func (d *DisputeMemory) RecordDealPoint(tag Tag, sender int, v *big.Int) {
	d.InitDealIfAbsent(tag)
	d.deal[tag][sender] = v
}

// ConsumeDeal reconciles a revealed point against the recorded DEAL
// entry. A match removes the entry (and the tag key once empty).
func (d *DisputeMemory) ConsumeDeal(tag Tag, sender int, v *big.Int) ConsumeResult {
	m, ok := d.deal[tag]
	if !ok {
		return ConsumeUnknown
	}
	want, ok := m[sender]
	if !ok {
		return ConsumeUnknown
	}
	if want.Cmp(v) != 0 {
		return ConsumeMismatch
	}
	delete(m, sender)
	if len(m) == 0 {
		delete(d.deal, tag)
	}
	return ConsumeMatch
}

// DropDeal removes the entire DEAL map for a tag. Used when this
// processor turns out not to be in M and owes no evidence.
func (d *DisputeMemory) DropDeal(tag Tag) {
	delete(d.deal, tag)
}

// OwingTags returns every tag whose ACK or DEAL evidence still names the
// given sender. The DMM delays new messages from a sender that still
// owes evidence from a completed earlier invocation.
func (d *DisputeMemory) OwingTags(sender int) []Tag {
	seen := make(map[Tag]bool)
	var out []Tag
	for tag, points := range d.ack {
		for pt := range points {
			if pt.Acker == sender {
				if !seen[tag] {
					seen[tag] = true
					out = append(out, tag)
				}
				break
			}
		}
	}
	for tag, points := range d.deal {
		if seen[tag] {
			continue
		}
		if _, ok := points[sender]; ok {
			out = append(out, tag)
		}
	}
	return out
}
