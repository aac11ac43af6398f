package loader

import (
	"testing"

	tcal "github.com/mdtcal/tcal"
	"github.com/mdtcal/tcal/registry"
)

func TestInitUnsupportedExtension(t *testing.T) {
	_, err := Init("trajectory.doesnotexist", nil)
	if err == nil {
		t.Fatal("expected an error for an unregistered extension")
	}
	terr, ok := err.(*tcal.Error)
	if !ok || terr.Kind != tcal.ErrUnsupportedExtension {
		t.Fatalf("expected an UnsupportedExtension error, got %v", err)
	}
}

func TestInitFindsRegisteredBackend(t *testing.T) {
	registry.Register(&registry.Entry{
		Name:       "loader-test",
		Extensions: []string{"ldt"},
		MoleculeFactory: func(path string, alloc tcal.Allocator) (tcal.MoleculeBackend, error) {
			return nil, nil
		},
	})
	st, err := Init("topology.ldt", nil)
	if err != nil {
		t.Fatal(err)
	}
	if st.MoleculeFactory == nil {
		t.Fatal("expected a molecule factory to be found")
	}
	if st.TrajectoryFactory != nil {
		t.Fatal("expected no trajectory factory for a molecule-only entry")
	}
}

func TestInitSurfacesPreflightNote(t *testing.T) {
	registry.Register(&registry.Entry{
		Name:       "loader-test-preflight",
		Extensions: []string{"ldp"},
		MoleculeFactory: func(path string, alloc tcal.Allocator) (tcal.MoleculeBackend, error) {
			return nil, nil
		},
		Preflight: func(path string, alloc tcal.Allocator) ([]byte, bool, string, error) {
			return []byte("style"), false, "detected-style", nil
		},
	})
	st, err := Init("topology.ldp", nil)
	if err != nil {
		t.Fatal(err)
	}
	if st.AtomStyle != "detected-style" {
		t.Fatalf("expected preflight note to surface as AtomStyle, got %q", st.AtomStyle)
	}
	Free(st)
	if st.Blob != nil {
		t.Fatal("expected Free to clear the blob")
	}
}
