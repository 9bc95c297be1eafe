package services

import (
	"math/big"

	"svss-simulation/utils"
)

// DealMW starts a moderated weak sharing of secret as MW dealer, under
// SVSS counter c and dealer svssDealer, moderated by moderator. The
// dealer samples f with constant term secret and one f_j with constant
// term f(j) per participant, unicasts (f_i, {j -> f_j(i)}) to each i and
// f itself to the moderator.
func (p *Player) DealMW(secret *big.Int, c, svssDealer, moderator int) {
	tag := Tag{C: c, Dealer: svssDealer, MWDealer: p.id, Moderator: moderator}
	p.invocations[tag] = &invocationWindow{begin: p.now()}

	f := utils.RandomPolynomial(p.rng, secret, p.t)
	shares := make(map[int]*utils.Polynomial, p.n)
	for i := 1; i <= p.n; i++ {
		shares[i] = utils.RandomPolynomial(p.rng, f.EvaluateAt(i), p.t)
	}

	for i := 1; i <= p.n; i++ {
		evals := make(map[int]*big.Int, p.n)
		for j := 1; j <= p.n; j++ {
			evals[j] = shares[j].EvaluateAt(i)
		}
		p.send(&Message{
			Stage:      StageMWValues,
			Tag:        tag,
			Sender:     p.id,
			Moderator:  moderator,
			Share:      shares[i],
			CrossEvals: evals,
		}, i)
	}

	p.send(&Message{
		Stage:     StageMWValues,
		Tag:       tag,
		Sender:    p.id,
		Moderator: moderator,
		Share:     f,
	}, moderator)

	p.disputes.InitAck(tag)
	p.mwDeals[tag] = &mwDeal{F: f, Shares: shares}
	p.logger.Debug().Str("tag", tag.String()).Msg("Dealt MW sharing")
}

// MWModerate registers the value this processor expects the MW dealer's
// secret polynomial to open to at zero. If the dealer's VALUES message
// arrived first, it is replayed now.
func (p *Player) MWModerate(val *big.Int, c, svssDealer, mwDealer int) {
	tag := Tag{C: c, Dealer: svssDealer, MWDealer: mwDealer, Moderator: p.id}

	if slot, ok := p.mwModValue[tag]; ok && slot.pending != nil {
		pending := slot.pending
		p.mwModValue[tag] = &moderatorSlot{value: val}
		p.receive(pending)
		return
	}
	p.mwModValue[tag] = &moderatorSlot{value: val}
}

// receiveMWValues handles the dealer's VALUES message, in both its
// moderator form (bare polynomial) and its participant form (polynomial
// plus cross evaluations).
func (p *Player) receiveMWValues(m *Message) {
	tag := m.Tag

	if m.CrossEvals == nil && p.id == m.Moderator {
		slot, ok := p.mwModValue[tag]
		if !ok {
			// MWModerate has not been called yet; buffer the message.
			p.mwModValue[tag] = &moderatorSlot{pending: m}
			return
		}
		if slot.pending != nil || slot.value.Cmp(m.Share.Evaluate(big.NewInt(0))) != 0 {
			return
		}

		p.mwModData[tag] = m.Share
		p.mwModM[tag] = make(map[int]bool)
		if p.mwModCorroborate[tag] == nil {
			p.mwModCorroborate[tag] = make(map[int]bool)
		}

		pending := p.mwModPending[tag]
		delete(p.mwModPending, tag)
		for _, lm := range pending {
			p.receiveMWLMod(lm)
		}
		return
	}

	p.mwData[tag] = &mwShareData{Share: m.Share, Evals: m.CrossEvals}
	p.disputes.InitDeal(tag)

	p.rb(&Message{Stage: StageMWAck, Tag: tag, Sender: p.id, Moderator: m.Moderator})
	for i := 1; i <= p.n; i++ {
		p.send(&Message{
			Stage:     StageMWCorroborate,
			Tag:       tag,
			Sender:    p.id,
			Moderator: m.Moderator,
			Value:     m.CrossEvals[i],
		}, i)
	}

	if p.mwAck[tag] == nil {
		p.mwAck[tag] = make(map[int]bool)
	}
	if p.mwCorroborate[tag] == nil {
		p.mwCorroborate[tag] = make(map[int]*big.Int)
	}

	pending := p.mwCorroboratePending[tag]
	delete(p.mwCorroboratePending, tag)
	for _, cm := range pending {
		p.receiveMWCorroborate(cm)
	}
}

// receiveMWCorroborate records a cross evaluation from sender if it
// matches this processor's own polynomial. Mismatches are never
// recorded: the sender simply fails to reach the DEAL quorum here.
func (p *Player) receiveMWCorroborate(m *Message) {
	tag := m.Tag
	data, ok := p.mwData[tag]
	if !ok {
		p.mwCorroboratePending[tag] = append(p.mwCorroboratePending[tag], m)
		return
	}
	if data.Share.EvaluateAt(m.Sender).Cmp(m.Value) == 0 {
		p.mwCorroborate[tag][m.Sender] = m.Value
		p.advanceDeal(tag, m.Sender)
	}
}

// receiveMWAck handles the reliable-broadcast ACK from a participant.
func (p *Player) receiveMWAck(m *Message) {
	tag := m.Tag
	if p.mwAck[tag] == nil {
		p.mwAck[tag] = make(map[int]bool)
	}
	p.mwAck[tag][m.Sender] = true

	p.advanceDeal(tag, m.Sender)
	if m.Moderator == p.id {
		p.advanceModM(tag, m.Sender)
	}
	if tag.MWDealer == p.id {
		p.dealerCheckOK(tag)
	}
	p.checkMWShareDone(tag)
}

// advanceDeal moves sender into DEAL once it both corroborated and
// acked, capped at the quorum q = n - t. On reaching exactly q the
// participant announces L (RB) and opens f_i(0) to the moderator.
func (p *Player) advanceDeal(tag Tag, sender int) {
	mod := tag.Moderator
	p.disputes.InitDealIfAbsent(tag)

	if p.mwData[tag] == nil {
		return
	}
	val, corroborated := p.mwCorroborate[tag][sender]
	if !corroborated || !p.mwAck[tag][sender] || p.disputes.DealLen(tag) >= p.n-p.t {
		return
	}

	delete(p.mwCorroborate[tag], sender)
	p.disputes.RecordDealPoint(tag, sender, val)

	if p.disputes.DealLen(tag) == p.n-p.t {
		p.rb(&Message{
			Stage:     StageMWL,
			Tag:       tag,
			Sender:    p.id,
			Moderator: mod,
			IDs:       p.disputes.DealSenders(tag),
		})
		p.send(&Message{
			Stage:     StageMWL,
			Tag:       tag,
			Sender:    p.id,
			Moderator: mod,
			Value:     p.mwData[tag].Share.Evaluate(big.NewInt(0)),
		}, mod)
	}
}

// receiveMWL handles a reliable-broadcast L announcement.
func (p *Player) receiveMWL(m *Message) {
	if len(m.IDs) < p.n-p.t {
		return
	}
	tag := m.Tag
	if p.mwL[tag] == nil {
		p.mwL[tag] = make(map[int]map[int]bool)
	}
	p.mwL[tag][m.Sender] = toSet(m.IDs)

	if m.Moderator == p.id {
		p.advanceModM(tag, m.Sender)
	}
	if tag.MWDealer == p.id {
		p.dealerCheckOK(tag)
	}
	p.checkMWShareDone(tag)
}

// receiveMWLMod handles the unicast L message opening f_sender(0) to the
// moderator. Accepted iff it matches the dealer's secret polynomial at
// the sender's index; buffered if that polynomial has not arrived yet.
func (p *Player) receiveMWLMod(m *Message) {
	tag := m.Tag
	if p.mwModCorroborate[tag] == nil {
		p.mwModCorroborate[tag] = make(map[int]bool)
	}

	if modData, ok := p.mwModData[tag]; ok {
		if modData.EvaluateAt(m.Sender).Cmp(m.Value) == 0 {
			p.mwModCorroborate[tag][m.Sender] = true
		}
	} else {
		p.mwModPending[tag] = append(p.mwModPending[tag], m)
	}

	p.advanceModM(tag, m.Sender)
}

// advanceModM moves sender into the moderator's M once it both opened a
// consistent value and acked, capped at q. On reaching exactly q the
// moderator broadcasts M.
func (p *Player) advanceModM(tag Tag, sender int) {
	if p.mwModData[tag] == nil || p.mwModM[tag] == nil {
		return
	}
	if !p.mwModCorroborate[tag][sender] || !p.mwAck[tag][sender] || len(p.mwModM[tag]) >= p.n-p.t {
		return
	}

	p.mwModM[tag][sender] = true
	if len(p.mwModM[tag]) == p.n-p.t {
		p.rb(&Message{
			Stage:     StageMWM,
			Tag:       tag,
			Sender:    p.id,
			Moderator: tag.Moderator,
			IDs:       sortedKeys(p.mwModM[tag]),
		})
	}
}

// receiveMWM handles the moderator's M broadcast.
func (p *Player) receiveMWM(m *Message) {
	if len(m.IDs) < p.n-p.t {
		return
	}
	tag := m.Tag
	p.mwM[tag] = toSet(m.IDs)

	if tag.MWDealer == p.id {
		p.dealerCheckOK(tag)
	}
	p.checkMWShareDone(tag)
}

// dealerCheckOK is the dealer's completion predicate: once M, L and the
// acks cover each other, the dealer records the expected evidence values
// in ACK and broadcasts OK.
func (p *Player) dealerCheckOK(tag Tag) {
	if p.mwM[tag] == nil || p.mwL[tag] == nil || p.mwAck[tag] == nil || !p.disputes.HasAck(tag) {
		return
	}
	for j := range p.mwM[tag] {
		ls, ok := p.mwL[tag][j]
		if !ok {
			return
		}
		for l := range ls {
			if !p.mwAck[tag][l] {
				return
			}
		}
	}

	deal := p.mwDeals[tag]
	points := make(map[AckPoint]*big.Int)
	for j := range p.mwM[tag] {
		for l := range p.mwL[tag][j] {
			points[AckPoint{Row: j, Acker: l}] = deal.Shares[j].EvaluateAt(l)
		}
	}
	p.disputes.RecordAckPoints(tag, points)

	p.rb(&Message{Stage: StageMWOK, Tag: tag, Sender: p.id, Moderator: tag.Moderator})
	p.logger.Debug().Str("tag", tag.String()).Msg("Dealer broadcast OK")
}

// receiveMWOK handles the dealer's OK broadcast.
func (p *Player) receiveMWOK(m *Message) {
	p.mwOK[m.Tag] = true
	p.checkMWShareDone(m.Tag)
}

// checkMWShareDone is the shared completion predicate: OK, M, L and acks
// must all be present and cover each other. A processor outside M owes no
// evidence from this invocation and clears its DEAL record.
func (p *Player) checkMWShareDone(tag Tag) {
	if !p.mwOK[tag] || p.mwM[tag] == nil || p.mwL[tag] == nil || p.mwAck[tag] == nil {
		return
	}
	if !p.mwM[tag][p.id] && p.disputes.HasDeal(tag) {
		p.disputes.DropDeal(tag)
	}
	for l := range p.mwM[tag] {
		ls, ok := p.mwL[tag][l]
		if !ok {
			return
		}
		for k := range ls {
			if !p.mwAck[tag][k] {
				return
			}
		}
	}

	p.mwShareDone[tag] = true
	p.logger.Debug().Str("tag", tag.String()).Msg("MW share done")
	p.checkSVSSShareDone(tag)
}
