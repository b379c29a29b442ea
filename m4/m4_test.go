package m4

import (
	"math/rand"
	"testing"
)

func randomMatrix(rnd *rand.Rand) Matrix {
	var m Matrix
	for i := range m {
		m[i] = rnd.Float32()*20 - 10
	}
	return m
}

func TestIdentityMult(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	for i := 0; i < 8; i++ {
		t.Run("", func(it *testing.T) {
			var id Matrix
			id.Identity()

			m := randomMatrix(rnd)
			want := m
			m.Mult(&id)
			if m != want {
				it.Errorf("expected m·I to equal m, got %v, want %v", m, want)
			}

			n := id
			n.Mult(&want)
			if n != want {
				it.Errorf("expected I·m to equal m, got %v, want %v", n, want)
			}
		})
	}
}

func TestTranslate(t *testing.T) {
	var m Matrix
	m.Identity()
	m.Translate(2, 3, 4)

	// Column vector (1, 1, 1, 1) should map to (3, 4, 5, 1).
	want := [4]float32{3, 4, 5, 1}
	var got [4]float32
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			got[row] += m[row*4+col]
		}
	}
	if got != want {
		t.Errorf("expected translated point %v, got %v", want, got)
	}
}

func TestScale(t *testing.T) {
	var m Matrix
	m.Identity()
	m.Scale(2, 3, 4)

	if m[0] != 2 || m[5] != 3 || m[10] != 4 || m[15] != 1 {
		t.Errorf("unexpected scale matrix %v", m)
	}
}

func TestTranspose(t *testing.T) {
	rnd := rand.New(rand.NewSource(2))
	m := randomMatrix(rnd)

	var dest Matrix
	m.TransposeTo(&dest)

	n := m
	n.Transpose()
	if n != dest {
		t.Errorf("in-place and out-of-place transpose disagree: %v vs %v", n, dest)
	}

	n.Transpose()
	if n != m {
		t.Errorf("double transpose is not the original: %v vs %v", n, m)
	}
}

func TestStackPushPop(t *testing.T) {
	s := NewStack()

	var id Matrix
	id.Identity()
	if *s.Tip() != id {
		t.Fatalf("expected fresh stack tip to be identity, got %v", *s.Tip())
	}

	s.Tip().Translate(5, 6, 7)
	before := *s.Tip()

	tip := s.Push()
	if tip == nil {
		t.Fatal("push returned nil")
	}
	if *tip != before {
		t.Errorf("push did not duplicate the tip: %v vs %v", *tip, before)
	}

	tip.Scale(2, 2, 2)
	if *s.Tip() == before {
		t.Error("mutating the pushed tip should not restore the prior entry")
	}

	restored := s.Pop()
	if *restored != before {
		t.Errorf("pop did not restore the prior tip: %v vs %v", *restored, before)
	}
	if s.Depth() != 1 {
		t.Errorf("expected depth 1 after pop, got %d", s.Depth())
	}
}

func TestStackPushBeyondInitialCapacity(t *testing.T) {
	s := NewStack()
	for i := 0; i < stackInitialCap*2; i++ {
		if s.Push() == nil {
			t.Fatalf("push %d returned nil", i)
		}
	}
	if want := stackInitialCap*2 + 1; s.Depth() != want {
		t.Errorf("expected depth %d, got %d", want, s.Depth())
	}
}

func TestStackPopBottom(t *testing.T) {
	s := NewStack()
	s.Tip().Translate(1, 2, 3)
	want := *s.Tip()

	// The bottom slot must survive any number of pops.
	for i := 0; i < 3; i++ {
		if got := s.Pop(); *got != want {
			t.Fatalf("pop %d: expected bottom slot %v, got %v", i, want, *got)
		}
	}
	if s.Depth() != 1 {
		t.Errorf("expected depth 1, got %d", s.Depth())
	}
}
