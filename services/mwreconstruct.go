package services

import (
	"math/big"

	"svss-simulation/utils"
)

// MWReconstruct starts the reconstruction of one MW invocation. Buffered
// REC messages are replayed, then this processor opens f_l(id) for every
// row l of M whose announced L set contains it.
func (p *Player) MWReconstruct(tag Tag) {
	if p.mwRecStarted[tag] {
		return
	}
	p.mwRecStarted[tag] = true

	pending := p.mwWaitingK[tag]
	delete(p.mwWaitingK, tag)

	p.mwK[tag] = make(map[int][]recPoint, len(p.mwM[tag]))
	for l := range p.mwM[tag] {
		p.mwK[tag][l] = nil
	}

	for _, m := range pending {
		p.receive(m)
	}

	for _, l := range sortedKeys(p.mwM[tag]) {
		if !p.mwL[tag][l][p.id] {
			continue
		}
		p.rb(&Message{
			Stage:     StageMWRec,
			Tag:       tag,
			Sender:    p.id,
			Moderator: tag.Moderator,
			RecIndex:  l,
			RecValue:  p.mwData[tag].Evals[l],
		})
	}
}

// receiveMWRec buffers REC points until reconstruction starts, then
// collects up to t+1 points per row, accepting only senders listed in
// the row's announced L set.
func (p *Player) receiveMWRec(m *Message) {
	tag := m.Tag

	if p.mwK[tag] == nil {
		p.mwWaitingK[tag] = append(p.mwWaitingK[tag], m)
		return
	}
	if !p.mwM[tag][m.RecIndex] || !p.mwL[tag][m.RecIndex][m.Sender] {
		return
	}

	if len(p.mwK[tag][m.RecIndex]) < p.t+1 {
		p.mwK[tag][m.RecIndex] = append(p.mwK[tag][m.RecIndex], recPoint{Sender: m.Sender, Val: m.RecValue})
	}

	p.checkMWReconstruction(tag)
}

// checkMWReconstruction fires once every row holds t+1 points: each row
// is interpolated and rejected if its degree exceeds t, then the free
// terms are interpolated into the shared polynomial whose value at zero
// is the invocation's result. The result cell is write-once.
func (p *Player) checkMWReconstruction(tag Tag) {
	pseudo := tag.Pseudo()
	dealer, mod := tag.MWDealer, tag.Moderator

	if dv, ok := p.mwVal[pseudo][dealer]; ok {
		if _, set := dv[mod]; set {
			return
		}
	}
	for _, pts := range p.mwK[tag] {
		if len(pts) < p.t+1 {
			return
		}
	}

	var freePoints []utils.Point
	for _, l := range sortedKeys(p.mwM[tag]) {
		pts := p.mwK[tag][l]
		rowPoints := make([]utils.Point, len(pts))
		for i, rp := range pts {
			rowPoints[i] = utils.Point{X: rp.Sender, Y: rp.Val}
		}
		rowPoly := utils.Interpolate(rowPoints)
		if rowPoly.Degree() > p.t {
			p.logger.Info().Str("tag", tag.String()).Int("row", l).Msg("Row polynomial exceeds degree t, aborting reconstruction")
			p.setMWValue(nil, pseudo, dealer, mod)
			return
		}
		freePoints = append(freePoints, utils.Point{X: l, Y: rowPoly.Evaluate(big.NewInt(0))})
	}

	inv := p.invocations[tag]
	inv.end = p.now()
	inv.ended = true

	freePoly := utils.Interpolate(freePoints)
	if freePoly.Degree() > p.t {
		p.logger.Info().Str("tag", tag.String()).Msg("Free-term polynomial exceeds degree t, aborting reconstruction")
		p.setMWValue(nil, pseudo, dealer, mod)
		return
	}
	p.setMWValue(freePoly.Evaluate(big.NewInt(0)), pseudo, dealer, mod)
}

// setMWValue records a reconstruction result (nil marks an abort) and
// cascades into the SVSS completion check.
func (p *Player) setMWValue(val *big.Int, pseudo Tag, dealer, mod int) {
	if p.mwVal[pseudo] == nil {
		p.mwVal[pseudo] = make(map[int]map[int]*big.Int)
	}
	if p.mwVal[pseudo][dealer] == nil {
		p.mwVal[pseudo][dealer] = make(map[int]*big.Int)
	}
	p.mwVal[pseudo][dealer][mod] = val

	p.checkSVSSRecDone(pseudo.SVSS())
}
