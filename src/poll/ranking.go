package poll

import (
	"sort"

	"github.com/sumire-bot/sumire/src/types"
)

// Tally maps option index to vote count. Indexes with zero votes may be
// absent.
type Tally map[int]int

// Total returns the number of recorded votes.
func (t Tally) Total() int {
	n := 0
	for _, c := range t {
		n += c
	}
	return n
}

// Ranked is one option in a final ranking.
type Ranked struct {
	Index int    `json:"index"`
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Rank orders a poll's options by vote count descending. Ties are broken by
// original option index ascending, so the first-listed option wins a tie and
// the result is deterministic.
func Rank(options []types.PollOption, tally Tally) []Ranked {
	ranked := make([]Ranked, 0, len(options))
	for _, opt := range options {
		ranked = append(ranked, Ranked{Index: opt.Idx, Label: opt.Label, Count: tally[opt.Idx]})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Index < ranked[j].Index
	})
	return ranked
}
