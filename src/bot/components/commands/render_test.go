package commands

import (
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/sumire-bot/sumire/src/poll"
	"github.com/sumire-bot/sumire/src/types"
)

func TestBar(t *testing.T) {
	cases := []struct {
		count, total int
		filled       int
	}{
		{0, 0, 0},
		{0, 10, 0},
		{5, 10, 5},
		{10, 10, 10},
		{1, 3, 3},
	}
	for _, tc := range cases {
		got := bar(tc.count, tc.total)
		if n := strings.Count(got, "█"); n != tc.filled {
			t.Errorf("bar(%d, %d): %d filled segments, want %d", tc.count, tc.total, n, tc.filled)
		}
		if n := strings.Count(got, "█") + strings.Count(got, "░"); n != 10 {
			t.Errorf("bar(%d, %d): %d segments, want 10", tc.count, tc.total, n)
		}
	}
}

func TestPollButtons(t *testing.T) {
	cases := []struct {
		options int
		rows    []int
	}{
		{2, []int{2}},
		{5, []int{5}},
		{6, []int{5, 1}},
		{10, []int{5, 5}},
	}
	for _, tc := range cases {
		rows := PollButtons(tc.options)
		if len(rows) != len(tc.rows) {
			t.Errorf("%d options: %d rows, want %d", tc.options, len(rows), len(tc.rows))
			continue
		}
		for i, want := range tc.rows {
			row, ok := rows[i].(discordgo.ActionsRow)
			if !ok {
				t.Fatalf("row %d is not an ActionsRow", i)
			}
			if len(row.Components) != want {
				t.Errorf("%d options, row %d: %d buttons, want %d", tc.options, i, len(row.Components), want)
			}
		}
	}

	row := PollButtons(3)[0].(discordgo.ActionsRow)
	btn := row.Components[2].(discordgo.Button)
	if btn.CustomID != VotePrefix+"2" {
		t.Errorf("third button custom id = %q", btn.CustomID)
	}
}

func TestPollEmbedShowsCounts(t *testing.T) {
	p := &types.Poll{
		Question: "Lunch?",
		Options: []types.PollOption{
			{Idx: 0, Label: "Tacos"},
			{Idx: 1, Label: "Ramen"},
		},
	}
	embed := PollEmbed(p, poll.Tally{0: 3, 1: 1})
	if !strings.Contains(embed.Title, "Lunch?") {
		t.Errorf("title = %q", embed.Title)
	}
	if !strings.Contains(embed.Description, "Tacos") || !strings.Contains(embed.Description, "3 votes") {
		t.Errorf("description missing counts: %q", embed.Description)
	}
	if embed.Footer.Text != "4 votes" {
		t.Errorf("footer = %q", embed.Footer.Text)
	}
}

func TestPollFinalEmbedMedalsWinners(t *testing.T) {
	p := &types.Poll{Question: "Lunch?"}
	ranking := []poll.Ranked{
		{Index: 1, Label: "Ramen", Count: 3},
		{Index: 0, Label: "Tacos", Count: 1},
	}
	embed := PollFinalEmbed(p, ranking)
	lines := strings.Split(strings.TrimSpace(embed.Description), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", embed.Description)
	}
	if !strings.HasPrefix(lines[0], "🥇") || !strings.Contains(lines[0], "Ramen") {
		t.Errorf("winner line = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "🥈") || !strings.Contains(lines[1], "Tacos") {
		t.Errorf("runner-up line = %q", lines[1])
	}
}
