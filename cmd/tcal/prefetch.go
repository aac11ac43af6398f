package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	tcal "github.com/mdtcal/tcal"
	"github.com/mdtcal/tcal/loader"
	"github.com/mdtcal/tcal/traj"
)

var prefetchCmd = &cobra.Command{
	Use:   "prefetch <topology> <trajectory>",
	Short: "Concurrently decode every frame of a trajectory to warm the Frame Cache",
	Args:  cobra.ExactArgs(2),
	RunE:  runPrefetch,
}

func init() {
	prefetchCmd.Flags().Int("workers", 4, "number of concurrent decode workers")
	rootCmd.AddCommand(prefetchCmd)
}

func runPrefetch(cmd *cobra.Command, args []string) error {
	topPath, trajPath := args[0], args[1]
	workers, _ := cmd.Flags().GetInt("workers")
	alloc := tcal.NewPoolAllocator()

	molState, err := loader.Init(topPath, alloc)
	if err != nil {
		return fmt.Errorf("tcal prefetch: %w", err)
	}
	defer loader.Free(molState)
	mol, err := molState.MoleculeFactory(topPath, alloc)
	if err != nil {
		return fmt.Errorf("tcal prefetch: %w", err)
	}
	defer mol.Close()

	trajState, err := loader.Init(trajPath, alloc)
	if err != nil {
		return fmt.Errorf("tcal prefetch: %w", err)
	}
	defer loader.Free(trajState)

	tc := traj.NewContext()
	h, err := tc.OpenFile(trajPath, trajState.TrajectoryFactory, mol, alloc)
	if err != nil {
		return fmt.Errorf("tcal prefetch: %w", err)
	}
	defer tc.Close(h)

	nframes, _ := tc.NumFrames(h)
	natoms, _ := tc.NumAtoms(h)

	start := time.Now()
	g := new(errgroup.Group)
	g.SetLimit(workers)
	for i := 0; i < nframes; i++ {
		idx := i
		g.Go(func() error {
			x, y, z := make([]float64, natoms), make([]float64, natoms), make([]float64, natoms)
			var hdr tcal.FrameHeader
			if err := tc.LoadFrame(h, idx, &hdr, x, y, z); err != nil {
				return fmt.Errorf("frame %d: %w", idx, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("tcal prefetch: %w", err)
	}

	cached, _ := tc.NumCacheFrames(h)
	fmt.Fprintf(cmd.OutOrStdout(), "prefetched %d frames in %s (%d now cached)\n", nframes, time.Since(start), cached)
	return nil
}
