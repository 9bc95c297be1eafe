package services

import (
	"math/big"
	"sort"

	"svss-simulation/utils"
)

// DealSVSS starts a statistical verifiable secret sharing of secret with
// this processor as SVSS dealer. The counter advances by two so the even
// value tags the g side and the odd value the h side of the bivariate
// polynomial.
func (p *Player) DealSVSS(secret *big.Int) {
	p.c += 2
	tag := Tag{C: p.c, Dealer: p.id}

	poly := utils.RandomBivariate(p.rng, secret, p.t)
	p.svssPoly[tag] = poly
	p.invocations[tag] = &invocationWindow{begin: p.now()}

	for j := 1; j <= p.n; j++ {
		p.send(&Message{
			Stage:  StageSVSSValues,
			Tag:    tag,
			Sender: p.id,
			G:      poly.G(j),
			H:      poly.H(j),
		}, j)
	}
	p.svssLogger.Info().Str("tag", tag.String()).Msg("Dealt SVSS sharing")
}

// receiveSVSSValues launches the n g-side and n h-side MW dealings for
// this processor's row and column, and moderates the crossed pairs: the
// g value moderates the h side and vice versa, reflecting the bivariate
// symmetry g_j(k) == h_k(j).
func (p *Player) receiveSVSSValues(m *Message) {
	c, d := m.Tag.C, m.Tag.Dealer
	for k := 1; k <= p.n; k++ {
		p.DealMW(m.G.EvaluateAt(k), c, d, k)
		p.DealMW(m.H.EvaluateAt(k), c+1, d, k)
		p.MWModerate(m.G.EvaluateAt(k), c+1, d, k)
		p.MWModerate(m.H.EvaluateAt(k), c, d, k)
	}
}

// checkSVSSShareDone cascades one completed MW invocation into the SVSS
// share phase: the SVSS dealer accumulates its G structure, every
// processor re-checks the participant completion predicate.
func (p *Player) checkSVSSShareDone(tag Tag) {
	if tag.Dealer == p.id {
		p.dealerCheckSVSSShareDone(tag)
	}

	svssTag := tag.SVSS()
	if p.g[svssTag] != nil {
		p.helperSVSSShareDone(svssTag)
	}
}

// dealerCheckSVSSShareDone adds the completed invocation's edge to the
// dealer's G accumulator and tries to build the S chain. Once the core
// S[t+1] reaches quorum size, (S, G) is broadcast exactly once.
func (p *Player) dealerCheckSVSSShareDone(tag Tag) {
	svssTag := tag.SVSS()
	if p.gSent[svssTag] {
		return
	}

	if p.gDealer[svssTag] == nil {
		p.gDealer[svssTag] = make(map[int]map[int]bool, p.n)
		for i := 1; i <= p.n; i++ {
			p.gDealer[svssTag][i] = make(map[int]bool)
		}
	}
	p.addToGDealer(tag)

	q := p.n - p.t
	levels := make([]map[int]bool, p.t+2)
	levels[0] = make(map[int]bool, p.n)
	for i := 1; i <= p.n; i++ {
		levels[0][i] = true
	}
	for i := 0; i <= p.t; i++ {
		levels[i+1] = make(map[int]bool)
		for j := range levels[i] {
			if intersectionSize(p.gDealer[svssTag][j], levels[i]) >= q {
				levels[i+1][j] = true
			}
		}
	}

	if len(levels[p.t+1]) < q {
		return
	}
	p.gSent[svssTag] = true

	sLevels := make([][]int, len(levels))
	for i, level := range levels {
		sLevels[i] = sortedKeys(level)
	}
	gEdges := make(map[int][]int, p.n)
	for i, set := range p.gDealer[svssTag] {
		gEdges[i] = sortedKeys(set)
	}

	p.rb(&Message{
		Stage:   StageSVSSG,
		Tag:     svssTag,
		Sender:  p.id,
		SLevels: sLevels,
		GEdges:  gEdges,
	})
	p.svssLogger.Info().Str("tag", svssTag.String()).Msg("Dealer broadcast (S, G)")
}

// addToGDealer joins D' and M' in the dealer's G accumulator once all
// four MW invocations of the pair (both sides, both orientations) are
// done.
func (p *Player) addToGDealer(tag Tag) {
	c := tag.C - tag.C%2
	d := tag.Dealer
	mwDealer := tag.MWDealer
	mwMod := tag.Moderator
	svssTag := Tag{C: c, Dealer: d}

	if p.mwShareDone[Tag{C: c, Dealer: d, MWDealer: mwDealer, Moderator: mwMod}] &&
		p.mwShareDone[Tag{C: c + 1, Dealer: d, MWDealer: mwDealer, Moderator: mwMod}] &&
		p.mwShareDone[Tag{C: c, Dealer: d, MWDealer: mwMod, Moderator: mwDealer}] &&
		p.mwShareDone[Tag{C: c + 1, Dealer: d, MWDealer: mwMod, Moderator: mwDealer}] {
		p.gDealer[svssTag][mwMod][mwDealer] = true
		p.gDealer[svssTag][mwDealer][mwMod] = true
	}
}

// receiveSVSSG validates the dealer's (S, G) broadcast: the chain starts
// from the full processor set, has t+2 levels, keeps quorum support at
// every level, and G is symmetric. A valid structure is stored and the
// participant completion predicate re-checked.
func (p *Player) receiveSVSSG(m *Message) {
	if len(m.SLevels) != p.t+2 {
		return
	}
	levels := make([]map[int]bool, len(m.SLevels))
	for i, ids := range m.SLevels {
		levels[i] = toSet(ids)
	}
	gSets := make(map[int]map[int]bool, len(m.GEdges))
	for i, ids := range m.GEdges {
		gSets[i] = toSet(ids)
	}

	if len(levels[0]) != p.n {
		return
	}
	for i := 1; i <= p.n; i++ {
		if !levels[0][i] {
			return
		}
	}
	q := p.n - p.t
	if len(levels[p.t+1]) < q {
		return
	}
	for i := 0; i <= p.t; i++ {
		for j := range levels[i+1] {
			if intersectionSize(gSets[j], levels[i]) < q {
				return
			}
		}
	}
	for j, set := range gSets {
		for k := range set {
			if !gSets[k][j] {
				return
			}
		}
	}

	p.g[m.Tag] = gSets
	p.s[m.Tag] = levels[p.t+1]
	p.helperSVSSShareDone(m.Tag)
}

// helperSVSSShareDone is the participant completion predicate: every
// edge of G must have all four of its MW invocations done. On success
// the share phase closes and reconstruction starts.
func (p *Player) helperSVSSShareDone(tag Tag) {
	tag = tag.SVSS()
	if p.svssShareDone[tag] || p.g[tag] == nil {
		return
	}

	c, d := tag.C, tag.Dealer
	for i, set := range p.g[tag] {
		for j := range set {
			if !p.mwShareDone[Tag{C: c, Dealer: d, MWDealer: i, Moderator: j}] ||
				!p.mwShareDone[Tag{C: c, Dealer: d, MWDealer: j, Moderator: i}] ||
				!p.mwShareDone[Tag{C: c + 1, Dealer: d, MWDealer: i, Moderator: j}] ||
				!p.mwShareDone[Tag{C: c + 1, Dealer: d, MWDealer: j, Moderator: i}] {
				return
			}
		}
	}

	p.svssShareDone[tag] = true
	p.svssLogger.Info().Str("tag", tag.String()).Msg("SVSS share phase done")
	p.svssReconstruct(tag)
}

// svssReconstruct kicks off MW reconstruction for every invocation
// behind every edge of G.
func (p *Player) svssReconstruct(tag Tag) {
	c, d := tag.C, tag.Dealer
	for _, i := range sortedMapKeys(p.g[tag]) {
		for _, j := range sortedKeys(p.g[tag][i]) {
			p.MWReconstruct(Tag{C: c, Dealer: d, MWDealer: i, Moderator: j})
			p.MWReconstruct(Tag{C: c, Dealer: d, MWDealer: j, Moderator: i})
			p.MWReconstruct(Tag{C: c + 1, Dealer: d, MWDealer: i, Moderator: j})
			p.MWReconstruct(Tag{C: c + 1, Dealer: d, MWDealer: j, Moderator: i})
		}
	}
}

// checkSVSSRecDone fires once both sides of the sharing hold MW results
// for every processor of S and all of its G neighbors, in both
// orientations.
func (p *Player) checkSVSSRecDone(svssTag Tag) {
	if _, done := p.svssVal[svssTag]; done {
		return
	}
	if p.g[svssTag] == nil {
		return
	}

	complete := func(pseudo Tag) bool {
		vals := p.mwVal[pseudo]
		if vals == nil {
			return false
		}
		for dealer := range p.s[svssTag] {
			dealerVals, ok := vals[dealer]
			if !ok {
				return false
			}
			for mod := range p.g[svssTag][dealer] {
				modVals, ok := vals[mod]
				if !ok {
					return false
				}
				if _, ok := dealerVals[mod]; !ok {
					return false
				}
				if _, ok := modVals[dealer]; !ok {
					return false
				}
			}
		}
		return true
	}

	c, d := svssTag.C, svssTag.Dealer
	if complete(Tag{C: c, Dealer: d}) && complete(Tag{C: c + 1, Dealer: d}) {
		p.interpolateSVSSVal(svssTag)
	}
}

// interpolateSVSSVal assembles the secret: per processor of S the g and
// h row polynomials are interpolated and degree-checked, processors with
// an aborted or overweight row are excluded, the survivors are checked
// pairwise for bivariate consistency, and the two free-term
// reconstructions must agree at zero. Any failure records the abort
// sentinel; the result cell is written exactly once either way.
func (p *Player) interpolateSVSSVal(svssTag Tag) {
	c, d := svssTag.C, svssTag.Dealer
	gSide := Tag{C: c, Dealer: d}
	hSide := Tag{C: c + 1, Dealer: d}

	excluded := make(map[int]bool)
	gPolys := make(map[int]*utils.Polynomial)
	hPolys := make(map[int]*utils.Polynomial)

	for _, k := range sortedKeys(p.s[svssTag]) {
		var gPoints, hPoints []utils.Point
		for _, l := range sortedKeys(p.g[svssTag][k]) {
			gVal := p.mwVal[gSide][k][l]
			hVal := p.mwVal[hSide][k][l]
			if gVal == nil || hVal == nil {
				excluded[k] = true
				break
			}
			gPoints = append(gPoints, utils.Point{X: l, Y: gVal})
			hPoints = append(hPoints, utils.Point{X: l, Y: hVal})
		}
		if excluded[k] {
			continue
		}

		gPoly := utils.Interpolate(gPoints)
		hPoly := utils.Interpolate(hPoints)
		if gPoly.Degree() > p.t || hPoly.Degree() > p.t {
			excluded[k] = true
		} else {
			gPolys[k] = gPoly
			hPolys[k] = hPoly
		}
	}

	reconstructSet := make([]int, 0, len(p.s[svssTag]))
	for k := range p.s[svssTag] {
		if !excluded[k] {
			reconstructSet = append(reconstructSet, k)
		}
	}
	sort.Ints(reconstructSet)

	if len(reconstructSet) < p.n-p.t {
		p.svssLogger.Info().Str("tag", svssTag.String()).Msg("Too few consistent rows, reconstruction aborted")
		p.svssVal[svssTag] = nil
		return
	}

	for _, i := range reconstructSet {
		for _, j := range reconstructSet {
			if gPolys[i].EvaluateAt(j).Cmp(hPolys[j].EvaluateAt(i)) != 0 {
				p.svssLogger.Info().Str("tag", svssTag.String()).Msg("Pairwise g/h mismatch, reconstruction aborted")
				p.svssVal[svssTag] = nil
				return
			}
		}
	}

	var gFree, hFree []utils.Point
	for _, i := range reconstructSet {
		gFree = append(gFree, utils.Point{X: i, Y: gPolys[i].Evaluate(big.NewInt(0))})
		hFree = append(hFree, utils.Point{X: i, Y: hPolys[i].Evaluate(big.NewInt(0))})
	}
	gVal := utils.Interpolate(gFree).Evaluate(big.NewInt(0))
	hVal := utils.Interpolate(hFree).Evaluate(big.NewInt(0))

	if gVal.Cmp(hVal) != 0 {
		p.svssLogger.Info().Str("tag", svssTag.String()).Msg("g/h free terms disagree, reconstruction aborted")
		p.svssVal[svssTag] = nil
		return
	}

	p.svssVal[svssTag] = gVal
	p.svssLogger.Info().Str("tag", svssTag.String()).Msg("Secret reconstructed")
}

func sortedMapKeys(m map[int]map[int]bool) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}
