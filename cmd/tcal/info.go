package main

import (
	"fmt"

	"github.com/spf13/cobra"

	tcal "github.com/mdtcal/tcal"
	"github.com/mdtcal/tcal/loader"
	"github.com/mdtcal/tcal/traj"
)

var infoCmd = &cobra.Command{
	Use:   "info <topology> <trajectory>",
	Short: "Open a topology/trajectory pair and print cache and frame diagnostics",
	Args:  cobra.ExactArgs(2),
	RunE:  runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	topPath, trajPath := args[0], args[1]
	alloc := tcal.NewPoolAllocator()

	molState, err := loader.Init(topPath, alloc)
	if err != nil {
		return fmt.Errorf("tcal info: %w", err)
	}
	defer loader.Free(molState)
	if molState.MoleculeFactory == nil {
		return fmt.Errorf("tcal info: %s has no molecule backend", topPath)
	}
	if molState.RequiresDialogue {
		log.Warnf("topology preflight could not determine a format (note: %q); proceeding with best guess", molState.AtomStyle)
	}
	mol, err := molState.MoleculeFactory(topPath, alloc)
	if err != nil {
		return fmt.Errorf("tcal info: %w", err)
	}
	defer mol.Close()

	trajState, err := loader.Init(trajPath, alloc)
	if err != nil {
		return fmt.Errorf("tcal info: %w", err)
	}
	defer loader.Free(trajState)
	if trajState.TrajectoryFactory == nil {
		return fmt.Errorf("tcal info: %s has no trajectory backend", trajPath)
	}

	tc := traj.NewContext()
	h, err := tc.OpenFile(trajPath, trajState.TrajectoryFactory, mol, alloc)
	if err != nil {
		return fmt.Errorf("tcal info: %w", err)
	}
	defer tc.Close(h)

	natoms, _ := tc.NumAtoms(h)
	nframes, _ := tc.NumFrames(h)
	cached, _ := tc.NumCacheFrames(h)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "topology:   %s (%d atoms)\n", topPath, mol.Len())
	fmt.Fprintf(out, "trajectory: %s\n", trajPath)
	fmt.Fprintf(out, "  atoms:  %d\n", natoms)
	fmt.Fprintf(out, "  frames: %d\n", nframes)
	fmt.Fprintf(out, "  cached: %d\n", cached)

	if nframes > 0 {
		hdr, err := tc.GetHeader(h, 0)
		if err != nil {
			return fmt.Errorf("tcal info: %w", err)
		}
		fmt.Fprintf(out, "  frame 0: time=%.4f step=%d cell_present=%v\n", hdr.Time, hdr.Step, hdr.Cell.Present)
	}
	return nil
}
