package duel

import (
	"errors"
	"math/rand/v2"
	"testing"
)

func TestGenerateRoundsShape(t *testing.T) {
	pool := testPool(10)
	rounds, err := GenerateRounds(4, pool, 15, rand.New(rand.NewPCG(1, 2)))
	if err != nil {
		t.Fatalf("GenerateRounds: %v", err)
	}
	if len(rounds) != 4 {
		t.Fatalf("expected 4 rounds, got %d", len(rounds))
	}

	answers := make(map[string]bool, len(pool))
	for _, it := range pool {
		answers[it.Answer] = true
	}
	seenCorrect := make(map[string]bool)
	for i, r := range rounds {
		if r.Index != i || r.TimeLimit != 15 {
			t.Fatalf("round %d: index=%d limit=%d", i, r.Index, r.TimeLimit)
		}
		if seenCorrect[r.CorrectAnswer] {
			t.Fatalf("correct answer %q repeated", r.CorrectAnswer)
		}
		seenCorrect[r.CorrectAnswer] = true
		if len(r.Options) != OptionsPerRound {
			t.Fatalf("round %d: %d options", i, len(r.Options))
		}
		opts := make(map[string]bool, OptionsPerRound)
		hits := 0
		for _, o := range r.Options {
			if opts[o] {
				t.Fatalf("round %d: duplicate option %q", i, o)
			}
			opts[o] = true
			if !answers[o] {
				t.Fatalf("round %d: option %q not from pool", i, o)
			}
			if o == r.CorrectAnswer {
				hits++
			}
		}
		if hits != 1 {
			t.Fatalf("round %d: correct answer appears %d times", i, hits)
		}
		if r.PromptRef == "" || r.Prompt == "" {
			t.Fatalf("round %d: missing prompt", i)
		}
	}
}

func TestGenerateRoundsPoolTooSmall(t *testing.T) {
	if _, err := GenerateRounds(4, testPool(5), 15, nil); !errors.Is(err, ErrInsufficientPool) {
		t.Fatalf("expected ErrInsufficientPool, got %v", err)
	}
	if _, err := GenerateRounds(0, testPool(5), 15, nil); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestGenerateRoundsMinimalPool(t *testing.T) {
	// n+3 items is the tightest pool that still works
	for seed := uint64(0); seed < 50; seed++ {
		rounds, err := GenerateRounds(7, testPool(10), 15, rand.New(rand.NewPCG(seed, seed)))
		if err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
		if len(rounds) != 7 {
			t.Fatalf("seed %d: %d rounds", seed, len(rounds))
		}
	}
}

func TestGenerateRoundsRejectsBadPool(t *testing.T) {
	pool := testPool(8)
	pool[3].Answer = pool[1].Answer
	if _, err := GenerateRounds(2, pool, 15, nil); !errors.Is(err, ErrInvalidPool) {
		t.Fatalf("expected ErrInvalidPool for duplicate answer, got %v", err)
	}
	pool = testPool(8)
	pool[2].Key = " "
	if _, err := GenerateRounds(2, pool, 15, nil); !errors.Is(err, ErrInvalidPool) {
		t.Fatalf("expected ErrInvalidPool for blank key, got %v", err)
	}
}

func TestGenerateRoundsDeterministicWithSeed(t *testing.T) {
	a, _ := GenerateRounds(5, testPool(12), 15, rand.New(rand.NewPCG(7, 7)))
	b, _ := GenerateRounds(5, testPool(12), 15, rand.New(rand.NewPCG(7, 7)))
	for i := range a {
		if a[i].CorrectAnswer != b[i].CorrectAnswer {
			t.Fatalf("round %d differs between identical seeds", i)
		}
		for j := range a[i].Options {
			if a[i].Options[j] != b[i].Options[j] {
				t.Fatalf("round %d option %d differs between identical seeds", i, j)
			}
		}
	}
}
