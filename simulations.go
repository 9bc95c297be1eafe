package main

import (
	"fmt"
	"math/big"
	"math/rand"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"svss-simulation/services"
)

// simulation wires n players onto one scheduler.
type simulation struct {
	sched   *services.Scheduler
	players []*services.Player
}

func newSimulation(n, t int, seed int64, gate services.RBGate, logLevel zerolog.Level) (*simulation, error) {
	if n <= 3*t {
		return nil, fmt.Errorf("invalid parameters: need n > 3t, got n=%d t=%d", n, t)
	}

	sched := services.NewScheduler(rand.New(rand.NewSource(seed)), gate, logLevel)
	players := make([]*services.Player, 0, n)
	for id := 1; id <= n; id++ {
		p := services.NewPlayer(id, n, t, sched, rand.New(rand.NewSource(seed+int64(id))), logLevel)
		sched.Register(p)
		players = append(players, p)
	}
	return &simulation{sched: sched, players: players}, nil
}

// dealAndRun has the dealer share the secret and drives the scheduler to
// quiescence, returning how many processors recovered the secret and how
// many aborted.
func (s *simulation) dealAndRun(dealer int, secret int64) (recovered, aborted int) {
	s.players[dealer-1].DealSVSS(big.NewInt(secret))
	s.sched.Run()

	c := s.players[dealer-1].Counter()
	for _, p := range s.players {
		val, ok := p.SVSSValue(c, dealer)
		switch {
		case !ok:
			// Quorum never formed; observable via the missing value.
		case val == nil:
			aborted++
		case val.Cmp(big.NewInt(secret)) == 0:
			recovered++
		}
	}
	return recovered, aborted
}

func logLevelFromFlags() zerolog.Level {
	if silent {
		zerolog.SetGlobalLevel(zerolog.Disabled)
		return zerolog.Disabled
	}
	return zerolog.InfoLevel
}

func gateFromFlag(n, t int) (services.RBGate, error) {
	switch rbGateFlag {
	case "quorum":
		return services.NewQuorumGate(n, t), nil
	case "immediate":
		return services.NewImmediateGate(), nil
	default:
		return nil, fmt.Errorf("unknown rb-gate %q (want quorum or immediate)", rbGateFlag)
	}
}

func runSingle(cmd *cobra.Command, args []string) error {
	level := logLevelFromFlags()

	gate, err := gateFromFlag(numProcessors, numFaults)
	if err != nil {
		return err
	}
	if dealerFlag < 1 || dealerFlag > numProcessors {
		return fmt.Errorf("dealer %d out of range [1..%d]", dealerFlag, numProcessors)
	}

	sim, err := newSimulation(numProcessors, numFaults, seed, gate, level)
	if err != nil {
		return err
	}

	log.Info().Str("layer", "MAIN").
		Int("n", numProcessors).Int("t", numFaults).
		Int("dealer", dealerFlag).Int64("secret", secretFlag).
		Msg("Starting SVSS simulation")

	recovered, aborted := sim.dealAndRun(dealerFlag, secretFlag)

	c := sim.players[dealerFlag-1].Counter()
	for _, p := range sim.players {
		val, ok := p.SVSSValue(c, dealerFlag)
		state := "pending"
		if ok {
			if val == nil {
				state = "aborted"
			} else {
				state = val.String()
			}
		}
		fmt.Printf("processor %d: value=%s liars=%v waiting=%d\n",
			p.ID(), state, p.Disputes().Liars(), p.WaitingLen())
	}
	fmt.Printf("RESULT: %d/%d recovered, %d aborted\n", recovered, numProcessors, aborted)
	return nil
}

func runTrials(cmd *cobra.Command, args []string) error {
	logLevelFromFlags()

	var succeeded atomic.Int64
	seeds := rand.New(rand.NewSource(seed))

	trials := make([]int64, trialsFlag)
	for i := range trials {
		trials[i] = seeds.Int63()
	}

	var group errgroup.Group
	group.SetLimit(parallelFlag)
	for _, trialSeed := range trials {
		group.Go(func() error {
			rng := rand.New(rand.NewSource(trialSeed))
			dealer := rng.Intn(numProcessors) + 1
			secret := rng.Int63n(40) + 1

			sim, err := newSimulation(numProcessors, numFaults, trialSeed, services.NewQuorumGate(numProcessors, numFaults), zerolog.Disabled)
			if err != nil {
				return err
			}
			recovered, _ := sim.dealAndRun(dealer, secret)
			if recovered == numProcessors {
				succeeded.Add(1)
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	fmt.Printf("RESULT: %d/%d trials fully recovered\n", succeeded.Load(), trialsFlag)
	return nil
}
