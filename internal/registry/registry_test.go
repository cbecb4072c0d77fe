package registry

import (
	"testing"
	"time"

	"github.com/vovakirdan/quaternion/internal/sim"
)

type stub struct{ name string }

func (s stub) Name() string { return s.name }

func (s stub) Run(time.Time, *sim.WorldState) ([]sim.Effect, error) { return nil, nil }

func TestRegisterCreateList(t *testing.T) {
	Register("zz-test", "Second", func(Env) Subsystem { return stub{"zz-test"} })
	Register("aa-test", "First", func(Env) Subsystem { return stub{"aa-test"} })

	if !Exists("aa-test") || Exists("missing") {
		t.Error("Exists() mismatch")
	}

	s, err := Create("zz-test", Env{})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if s.Name() != "zz-test" {
		t.Errorf("Name() = %q", s.Name())
	}
	if _, err := Create("missing", Env{}); err == nil {
		t.Error("expected error for unknown subsystem")
	}

	list := List()
	for i := 1; i < len(list); i++ {
		if list[i-1].ID >= list[i].ID {
			t.Fatalf("List() not sorted: %v", list)
		}
	}
	if list[0].ID != "aa-test" || list[0].Title != "First" {
		t.Errorf("List()[0] = %+v", list[0])
	}
}

func TestRegisterDuplicatePanics(t *testing.T) {
	Register("dup-test", "Dup", func(Env) Subsystem { return stub{"dup-test"} })
	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	Register("dup-test", "Dup", func(Env) Subsystem { return stub{"dup-test"} })
}
