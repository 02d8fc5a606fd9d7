package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sumire-bot/sumire/src/data"
	"github.com/sumire-bot/sumire/src/poll"
	"github.com/sumire-bot/sumire/src/types"
)

// SetupDB opens a fresh in-memory SQLite database with the full schema.
// Connections are capped at one so concurrent test goroutines share the
// same database handle.
func SetupDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap test database: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := data.Migrate(db); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	return db
}

// CreatePoll inserts an active poll with the given options and returns it.
func CreatePoll(t *testing.T, store poll.Store, options ...string) *types.Poll {
	t.Helper()

	if len(options) == 0 {
		options = []string{"Red", "Green", "Blue"}
	}
	p := &types.Poll{
		GuildID:   "guild-1",
		ChannelID: "channel-1",
		AuthorID:  "author-1",
		Question:  "Favorite color?",
		Status:    types.PollActive,
	}
	if err := store.Create(context.Background(), p, options); err != nil {
		t.Fatalf("create test poll: %v", err)
	}
	return p
}

// Vote applies a single vote and fails the test on any error.
func Vote(t *testing.T, store poll.Store, pollID uint64, voterID string, option int) {
	t.Helper()
	if _, err := store.ApplyVote(context.Background(), pollID, voterID, option, time.Now()); err != nil {
		t.Fatalf("vote by %s for option %d: %v", voterID, option, err)
	}
}

// MakeRequest builds an HTTP test request with an optional JSON body.
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req
}

// AssertStatus checks that the response has the expected status code.
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct.
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON response: %v", err)
	}
}
