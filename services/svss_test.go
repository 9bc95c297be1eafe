package services

import (
	"math/big"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSVSSAllHonest is the canonical happy path: n=4, t=1, dealer 2,
// secret 17. Every processor recovers 17 with no disputes and no
// leftover evidence.
func TestSVSSAllHonest(t *testing.T) {
	sched, players := setupNetwork(4, 1, 31, NewImmediateGate())

	players[2].DealSVSS(big.NewInt(17))
	sched.Run()

	for id, p := range players {
		val, ok := p.SVSSValue(2, 2)
		require.True(t, ok, "player %d did not reconstruct", id)
		require.NotNil(t, val, "player %d aborted", id)
		assert.Equal(t, 0, val.Cmp(big.NewInt(17)), "player %d recovered wrong secret", id)

		assert.Empty(t, p.Disputes().Liars(), "player %d accused someone in an honest run", id)
		assert.Zero(t, p.Disputes().DealTagCount(), "player %d left DEAL evidence", id)
		assert.Zero(t, p.Disputes().AckTagCount(), "player %d left ACK evidence", id)
		assert.Zero(t, p.WaitingLen(), "player %d still defers messages", id)
	}
}

// TestSVSSRandomTrials repeats the happy path with a random dealer and
// secret under 100 different scheduling orders.
func TestSVSSRandomTrials(t *testing.T) {
	rng := rand.New(rand.NewSource(67))
	for trial := 0; trial < 100; trial++ {
		sched, players := setupNetwork(4, 1, rng.Int63(), NewImmediateGate())

		dealer := rng.Intn(4) + 1
		secret := int64(rng.Intn(40) + 1)

		players[dealer].DealSVSS(big.NewInt(secret))
		sched.Run()

		for id, p := range players {
			val, ok := p.SVSSValue(2, dealer)
			require.True(t, ok, "trial %d: player %d did not reconstruct", trial, id)
			require.NotNil(t, val, "trial %d: player %d aborted", trial, id)
			assert.Equal(t, 0, val.Cmp(big.NewInt(secret)), "trial %d: player %d recovered wrong secret", trial, id)
			assert.Empty(t, p.Disputes().Liars())
			assert.Zero(t, p.Disputes().DealTagCount())
			assert.Zero(t, p.Disputes().AckTagCount())
		}
	}
}

// TestSVSSQuorumRB runs the happy path with the reliable-broadcast
// release gated on quorum willingness.
func TestSVSSQuorumRB(t *testing.T) {
	rng := rand.New(rand.NewSource(41))
	for trial := 0; trial < 10; trial++ {
		sched, players := setupNetwork(4, 1, rng.Int63(), NewQuorumGate(4, 1))

		dealer := rng.Intn(4) + 1
		secret := int64(rng.Intn(40) + 1)

		players[dealer].DealSVSS(big.NewInt(secret))
		sched.Run()

		for id, p := range players {
			val, ok := p.SVSSValue(2, dealer)
			require.True(t, ok, "trial %d: player %d did not reconstruct", trial, id)
			require.NotNil(t, val)
			assert.Equal(t, 0, val.Cmp(big.NewInt(secret)))
		}
	}
}

// TestSVSSEvilPlayer: processor 4 lies in every MW_REC it broadcasts.
// Every processor still terminates with a result; either all recover
// the secret or the liar lands in some honest processor's D set.
func TestSVSSEvilPlayer(t *testing.T) {
	rng := rand.New(rand.NewSource(53))
	for trial := 0; trial < 10; trial++ {
		sched, players := setupNetwork(4, 1, rng.Int63(), NewQuorumGate(4, 1))
		players[4].transport = &tamperTransport{inner: sched}

		secret := int64(rng.Intn(40) + 1)
		players[1].DealSVSS(big.NewInt(secret))
		sched.Run()

		allCorrect := true
		for id, p := range players {
			val, ok := p.SVSSValue(2, 1)
			require.True(t, ok, "trial %d: player %d has no result at all", trial, id)
			if val == nil || val.Cmp(big.NewInt(secret)) != 0 {
				allCorrect = false
			}
		}
		if allCorrect {
			continue
		}

		accused := false
		for id, p := range players {
			if id != 4 && p.Disputes().IsLiar(4) {
				accused = true
			}
		}
		assert.True(t, accused, "trial %d: reconstruction failed but nobody accused the liar", trial)
	}
}

// TestSVSSConcurrentDealings: five dealings with randomly drawn dealers
// and secrets run interleaved (a dealer drawn again deals under its next
// counter); every processor recovers every secret and no value leaks
// across tags.
func TestSVSSConcurrentDealings(t *testing.T) {
	sched, players := setupNetwork(4, 1, 71, NewImmediateGate())
	rng := rand.New(rand.NewSource(29))

	type dealing struct {
		dealer int
		c      int
		secret int64
	}
	var dealings []dealing
	for i := 0; i < 5; i++ {
		d := dealing{dealer: rng.Intn(4) + 1, secret: int64(rng.Intn(1000) + 1)}
		players[d.dealer].DealSVSS(big.NewInt(d.secret))
		d.c = players[d.dealer].Counter()
		dealings = append(dealings, d)
	}

	sched.Run()

	for id, p := range players {
		for i, d := range dealings {
			val, ok := p.SVSSValue(d.c, d.dealer)
			require.True(t, ok, "dealing %d: player %d did not reconstruct", i, id)
			require.NotNil(t, val, "dealing %d: player %d aborted", i, id)
			assert.Equal(t, 0, val.Cmp(big.NewInt(d.secret)),
				"dealing %d: player %d recovered the wrong secret", i, id)
		}
		assert.Empty(t, p.Disputes().Liars())
		assert.Zero(t, p.Disputes().DealTagCount())
		assert.Zero(t, p.Disputes().AckTagCount())
	}
}

// TestSVSSValueImmutable: once recorded, a reconstruction result never
// changes, even if stray completion checks fire again.
func TestSVSSValueImmutable(t *testing.T) {
	sched, players := setupNetwork(4, 1, 83, NewImmediateGate())

	players[3].DealSVSS(big.NewInt(25))
	sched.Run()

	p := players[1]
	val, ok := p.SVSSValue(2, 3)
	require.True(t, ok)
	require.NotNil(t, val)

	p.checkSVSSRecDone(Tag{C: 2, Dealer: 3})
	again, ok := p.SVSSValue(2, 3)
	require.True(t, ok)
	assert.Equal(t, 0, val.Cmp(again))
}
