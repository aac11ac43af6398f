package main

// Importing the format backends for their init() side-effects is how the
// registry gets populated outside of tests, mirroring the teacher's own
// chem.go which blank-imports its per-format readers.
import (
	_ "github.com/mdtcal/tcal/formats/gro"
	_ "github.com/mdtcal/tcal/formats/gtf"
	_ "github.com/mdtcal/tcal/formats/lammps"
	_ "github.com/mdtcal/tcal/formats/pdb"
	_ "github.com/mdtcal/tcal/formats/xyz"
)
