package webserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sumire-bot/sumire/src/giveaway"
	"github.com/sumire-bot/sumire/src/poll"
	"github.com/sumire-bot/sumire/src/testutil"
	"github.com/sumire-bot/sumire/src/types"
)

var testSecret = []byte("test-secret")

// testRouter wires the data routes against an in-memory database, skipping
// the Redis-backed code exchange which has its own handler.
func testRouter(t *testing.T) (*gin.Engine, *poll.Service, poll.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.SetupDB(t)
	store := poll.NewGormStore(db)
	pollSvc := poll.NewService(store, nil)
	gwaySvc := giveaway.NewService(db, nil)

	polls := NewPolls(pollSvc, store)
	gways := NewGiveaways(gwaySvc)

	r := gin.New()
	v1 := r.Group("/v1", JWTMiddleware(testSecret))
	v1.GET("/polls", polls.List)
	v1.GET("/polls/:id", polls.Get)
	v1.POST("/polls", polls.Create)
	v1.POST("/polls/:id/close", polls.Close)
	v1.GET("/giveaways", gways.List)
	v1.POST("/giveaways/:id/reroll", gways.Reroll)
	return r, pollSvc, store
}

func itoa(id uint64) string { return strconv.FormatUint(id, 10) }

func authed(t *testing.T, guildID string) map[string]string {
	t.Helper()
	token, err := IssueToken(testSecret, guildID, "tester")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return map[string]string{"Authorization": "Bearer " + token}
}

func TestRequiresToken(t *testing.T) {
	r, _, _ := testRouter(t)

	cases := map[string]map[string]string{
		"no header":  nil,
		"not bearer": {"Authorization": "Basic abc"},
		"bad token":  {"Authorization": "Bearer not.a.token"},
	}
	for name, headers := range cases {
		t.Run(name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, testutil.MakeRequest("GET", "/v1/polls", nil, headers))
			testutil.AssertStatus(t, w, http.StatusUnauthorized)
		})
	}
}

func TestCreatePollSanitizesMarkup(t *testing.T) {
	r, svc, _ := testRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, testutil.MakeRequest("POST", "/v1/polls", gin.H{
		"channel_id": "channel-1",
		"question":   "<script>alert(1)</script>Lunch spot?",
		"options":    []string{"<b>Tacos</b>", "Ramen"},
	}, authed(t, "guild-1")))
	testutil.AssertStatus(t, w, http.StatusCreated)

	var resp struct {
		ID uint64 `json:"id"`
	}
	testutil.AssertJSON(t, w, &resp)

	p, err := svc.Get(context.Background(), resp.ID)
	if err != nil {
		t.Fatalf("get created poll: %v", err)
	}
	if p.Question != "Lunch spot?" {
		t.Errorf("question not sanitized: %q", p.Question)
	}
	if p.Options[0].Label != "Tacos" {
		t.Errorf("option not sanitized: %q", p.Options[0].Label)
	}
	if p.GuildID != "guild-1" {
		t.Errorf("poll must belong to the token's guild, got %q", p.GuildID)
	}
	if p.MessageID != nil {
		t.Errorf("dashboard polls start unpublished, got message %q", *p.MessageID)
	}
}

func TestCreatePollValidation(t *testing.T) {
	r, _, _ := testRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, testutil.MakeRequest("POST", "/v1/polls", gin.H{
		"channel_id": "channel-1",
		"question":   "Q",
		"options":    []string{"only one"},
	}, authed(t, "guild-1")))
	testutil.AssertStatus(t, w, http.StatusBadRequest)
}

func TestListSplitsActiveAndClosed(t *testing.T) {
	r, svc, store := testRouter(t)
	ctx := context.Background()

	open := testutil.CreatePoll(t, store)
	done := testutil.CreatePoll(t, store)
	testutil.Vote(t, store, done.ID, "alice", 0)
	if _, _, err := svc.Close(ctx, done.ID); err != nil {
		t.Fatalf("close: %v", err)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, testutil.MakeRequest("GET", "/v1/polls", nil, authed(t, "guild-1")))
	testutil.AssertStatus(t, w, http.StatusOK)

	var resp struct {
		Active []struct {
			ID uint64 `json:"id"`
		} `json:"active"`
		Closed []struct {
			ID         uint64 `json:"id"`
			TotalVotes int    `json:"total_votes"`
		} `json:"closed"`
	}
	testutil.AssertJSON(t, w, &resp)
	if len(resp.Active) != 1 || resp.Active[0].ID != open.ID {
		t.Errorf("active list wrong: %+v", resp.Active)
	}
	if len(resp.Closed) != 1 || resp.Closed[0].ID != done.ID || resp.Closed[0].TotalVotes != 1 {
		t.Errorf("closed list wrong: %+v", resp.Closed)
	}
}

func TestDetailReportsCountsAndVoters(t *testing.T) {
	r, _, store := testRouter(t)

	p := testutil.CreatePoll(t, store)
	testutil.Vote(t, store, p.ID, "alice", 0)
	testutil.Vote(t, store, p.ID, "bob", 0)
	testutil.Vote(t, store, p.ID, "carol", 1)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, testutil.MakeRequest("GET", "/v1/polls/"+itoa(p.ID), nil, authed(t, "guild-1")))
	testutil.AssertStatus(t, w, http.StatusOK)

	var resp struct {
		TotalVotes int `json:"total_votes"`
		Results    []struct {
			Option     string   `json:"option"`
			Count      int      `json:"count"`
			Percentage float64  `json:"percentage"`
			Voters     []string `json:"voters"`
		} `json:"results"`
	}
	testutil.AssertJSON(t, w, &resp)
	if resp.TotalVotes != 3 {
		t.Fatalf("total_votes = %d, want 3", resp.TotalVotes)
	}
	if len(resp.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(resp.Results))
	}
	if resp.Results[0].Count != 2 || resp.Results[0].Percentage < 66 || resp.Results[0].Percentage > 67 {
		t.Errorf("first option: %+v", resp.Results[0])
	}
	if len(resp.Results[0].Voters) != 2 {
		t.Errorf("first option voters: %v", resp.Results[0].Voters)
	}
	if len(resp.Results[2].Voters) != 0 {
		t.Errorf("empty option should list no voters, got %v", resp.Results[2].Voters)
	}
}

func TestGuildScoping(t *testing.T) {
	r, _, store := testRouter(t)
	p := testutil.CreatePoll(t, store)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, testutil.MakeRequest("GET", "/v1/polls/"+itoa(p.ID), nil, authed(t, "other-guild")))
	testutil.AssertStatus(t, w, http.StatusNotFound)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, testutil.MakeRequest("GET", "/v1/polls", nil, authed(t, "other-guild")))
	testutil.AssertStatus(t, w, http.StatusOK)
	var resp struct {
		TotalActive int `json:"total_active"`
	}
	testutil.AssertJSON(t, w, &resp)
	if resp.TotalActive != 0 {
		t.Errorf("foreign guild can see %d polls", resp.TotalActive)
	}
}

func TestClosePoll(t *testing.T) {
	r, _, store := testRouter(t)
	p := testutil.CreatePoll(t, store)
	testutil.Vote(t, store, p.ID, "alice", 1)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, testutil.MakeRequest("POST", "/v1/polls/"+itoa(p.ID)+"/close", nil, authed(t, "guild-1")))
	testutil.AssertStatus(t, w, http.StatusOK)

	var resp struct {
		Status  string `json:"status"`
		Ranking []struct {
			Label string `json:"label"`
			Count int    `json:"count"`
		} `json:"ranking"`
	}
	testutil.AssertJSON(t, w, &resp)
	if resp.Status != types.PollClosed {
		t.Errorf("status = %q", resp.Status)
	}
	if len(resp.Ranking) == 0 || resp.Ranking[0].Count != 1 {
		t.Errorf("ranking = %+v", resp.Ranking)
	}

	// Closing again is a conflict, not a repeat.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, testutil.MakeRequest("POST", "/v1/polls/"+itoa(p.ID)+"/close", nil, authed(t, "guild-1")))
	testutil.AssertStatus(t, w, http.StatusConflict)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, testutil.MakeRequest("POST", "/v1/polls/9999/close", nil, authed(t, "guild-1")))
	testutil.AssertStatus(t, w, http.StatusNotFound)
}

func TestRateLimiter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter := NewRateLimiter(3, time.Minute)

	r := gin.New()
	r.GET("/ping", RateLimitMiddleware(limiter), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, testutil.MakeRequest("GET", "/ping", nil, nil))
		testutil.AssertStatus(t, w, http.StatusOK)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, testutil.MakeRequest("GET", "/ping", nil, nil))
	testutil.AssertStatus(t, w, http.StatusTooManyRequests)
}
