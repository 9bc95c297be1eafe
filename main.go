package main

import (
	"os"

	"github.com/spf13/cobra"

	"svss-simulation/utils"
)

var (
	// Global flags
	numProcessors int
	numFaults     int
	seed          int64
	silent        bool

	// run flags
	secretFlag int64
	dealerFlag int
	rbGateFlag string

	// trials flags
	trialsFlag   int
	parallelFlag int

	rootCmd = &cobra.Command{
		Use:   "svss-sim",
		Short: "Simulate Byzantine-resilient statistical verifiable secret sharing",
		Long: `svss-sim runs a round-free SVSS protocol over a simulated network:
a dealer shares a secret through 2*n*n moderated weak sharings, honest
processors accumulate the dealer's quorum structure and reconstruct the
secret even when up to t processors misbehave.`,
	}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run a single SVSS dealing to quiescence",
		RunE:  runSingle,
	}

	trialsCmd = &cobra.Command{
		Use:   "trials",
		Short: "Run repeated randomized SVSS dealings and report success counts",
		RunE:  runTrials,
	}
)

func init() {
	rootCmd.PersistentFlags().IntVar(&numProcessors, "n", 4, "number of processors")
	rootCmd.PersistentFlags().IntVar(&numFaults, "t", 1, "fault tolerance (requires n > 3t)")
	rootCmd.PersistentFlags().Int64Var(&seed, "seed", 1, "random seed for scheduling and sampling")
	rootCmd.PersistentFlags().BoolVar(&silent, "silent", false, "disable protocol logs")

	runCmd.Flags().Int64Var(&secretFlag, "secret", 17, "secret to share")
	runCmd.Flags().IntVar(&dealerFlag, "dealer", 1, "dealer processor id")
	runCmd.Flags().StringVar(&rbGateFlag, "rb-gate", "quorum", "reliable-broadcast gate: quorum or immediate")

	trialsCmd.Flags().IntVar(&trialsFlag, "trials", 100, "number of randomized dealings")
	trialsCmd.Flags().IntVar(&parallelFlag, "parallel", 4, "simulations running at a time")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(trialsCmd)
}

func main() {
	utils.SetupLogger()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
