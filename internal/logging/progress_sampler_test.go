package logging

import "testing"

func TestNewProgressSampler(t *testing.T) {
	tests := []struct {
		name      string
		every     int
		wantEvery int
	}{
		{"default for zero", 0, 10},
		{"default for negative", -3, 10},
		{"custom", 4, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewProgressSampler(tt.every, 100)
			if s.every != tt.wantEvery {
				t.Errorf("every = %d, want %d", s.every, tt.wantEvery)
			}
		})
	}
}

func TestProgressSampler_NilSampler(t *testing.T) {
	var s *ProgressSampler
	if !s.ShouldLog(3) {
		t.Error("ShouldLog on nil sampler should always return true")
	}
	s.Reset(5) // should not panic
}

func TestProgressSampler_EmitsEveryNAndFinal(t *testing.T) {
	s := NewProgressSampler(10, 23)
	var emitted []int
	for i := 1; i <= 23; i++ {
		if s.ShouldLog(i) {
			emitted = append(emitted, i)
		}
	}
	want := []int{10, 20, 23}
	if len(emitted) != len(want) {
		t.Fatalf("emitted %v, want %v", emitted, want)
	}
	for i := range want {
		if emitted[i] != want[i] {
			t.Fatalf("emitted %v, want %v", emitted, want)
		}
	}
}

func TestProgressSampler_IgnoresStaleCounts(t *testing.T) {
	s := NewProgressSampler(2, 0)
	if !s.ShouldLog(2) {
		t.Fatal("expected emit at 2")
	}
	if s.ShouldLog(2) {
		t.Fatal("repeated count should not emit")
	}
	s.Reset(4)
	if !s.ShouldLog(2) {
		t.Fatal("expected emit after reset")
	}
	if s.ShouldLog(3) {
		t.Fatal("odd count below total should not emit")
	}
	if !s.ShouldLog(4) {
		t.Fatal("expected emit at total")
	}
}
