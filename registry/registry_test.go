package registry

import (
	"testing"

	tcal "github.com/mdtcal/tcal"
)

func TestRegisterAndLookupCaseInsensitive(t *testing.T) {
	Register(&Entry{
		Name:       "test-mol",
		Extensions: []string{"tmol"},
		MoleculeFactory: func(path string, alloc tcal.Allocator) (tcal.MoleculeBackend, error) {
			return nil, nil
		},
	})

	if e := MolLoaderFromExt("TMOL"); e == nil {
		t.Fatal("expected a case-insensitive match for TMOL")
	}
	if e := TrajLoaderFromExt("tmol"); e != nil {
		t.Fatal("test-mol registers no trajectory factory")
	}
	if e := MolLoaderFromExt("doesnotexist"); e != nil {
		t.Fatal("expected no match for an unregistered extension")
	}
}

func TestRegisterReplacesSameName(t *testing.T) {
	before := LoaderCount()
	factory := func(path string, alloc tcal.Allocator) (tcal.MoleculeBackend, error) {
		return nil, nil
	}
	Register(&Entry{Name: "replace-me", Extensions: []string{"rme"}, MoleculeFactory: factory})
	Register(&Entry{Name: "replace-me", Extensions: []string{"rme2"}, MoleculeFactory: factory})
	if LoaderCount() != before+1 {
		t.Fatalf("expected re-registering the same name not to grow the table, got %d entries", LoaderCount())
	}
	if e := MolLoaderFromExt("rme"); e != nil {
		t.Fatal("expected the first registration's extension to have been replaced")
	}
}
