package duel

import (
	"fmt"
	"math/rand/v2"
	"strings"
)

const distractorsPerRound = OptionsPerRound - 1

// GenerateRounds builds n rounds from pool. Correct items are distinct across
// rounds; distractors are distinct within a round but may repeat between rounds.
// Selection is shuffle-and-slice, so work is bounded by n*len(pool).
func GenerateRounds(n int, pool []PoolItem, timeLimit int, rng *rand.Rand) ([]Round, error) {
	if n <= 0 {
		return nil, fmt.Errorf("round count must be positive: %w", ErrInvalidInput)
	}
	if len(pool) < n+distractorsPerRound {
		return nil, fmt.Errorf("need %d items, have %d: %w", n+distractorsPerRound, len(pool), ErrInsufficientPool)
	}
	if err := validatePool(pool); err != nil {
		return nil, err
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	order := rng.Perm(len(pool))
	rounds := make([]Round, 0, n)
	scratch := make([]int, 0, len(pool)-1)
	for i := 0; i < n; i++ {
		correct := order[i]

		scratch = scratch[:0]
		for j := range pool {
			if j != correct {
				scratch = append(scratch, j)
			}
		}
		// partial Fisher-Yates: only the first three slots are needed
		for k := 0; k < distractorsPerRound; k++ {
			r := k + rng.IntN(len(scratch)-k)
			scratch[k], scratch[r] = scratch[r], scratch[k]
		}

		options := make([]string, 0, OptionsPerRound)
		options = append(options, pool[correct].Answer)
		for _, idx := range scratch[:distractorsPerRound] {
			options = append(options, pool[idx].Answer)
		}
		rng.Shuffle(len(options), func(a, b int) { options[a], options[b] = options[b], options[a] })

		rounds = append(rounds, Round{
			Index:         i,
			PromptRef:     pool[correct].Key,
			Prompt:        pool[correct].Prompt,
			CorrectAnswer: pool[correct].Answer,
			Options:       options,
			TimeLimit:     timeLimit,
		})
	}
	return rounds, nil
}

func validatePool(pool []PoolItem) error {
	keys := make(map[string]struct{}, len(pool))
	answers := make(map[string]struct{}, len(pool))
	for _, it := range pool {
		key, answer := strings.TrimSpace(it.Key), strings.TrimSpace(it.Answer)
		if key == "" || answer == "" {
			return fmt.Errorf("empty key or answer: %w", ErrInvalidPool)
		}
		if _, dup := keys[key]; dup {
			return fmt.Errorf("duplicate key %q: %w", key, ErrInvalidPool)
		}
		if _, dup := answers[it.Answer]; dup {
			return fmt.Errorf("duplicate answer %q: %w", it.Answer, ErrInvalidPool)
		}
		keys[key] = struct{}{}
		answers[it.Answer] = struct{}{}
	}
	return nil
}
