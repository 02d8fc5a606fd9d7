package data_test

import (
	"testing"

	"github.com/sumire-bot/sumire/src/data"
	"github.com/sumire-bot/sumire/src/testutil"
	"github.com/sumire-bot/sumire/src/types"
)

func TestRefreshSettingsPicksUpChanges(t *testing.T) {
	db := testutil.SetupDB(t)

	setting := types.Setting{Name: "dashboard_url", Value: "https://old.example.com"}
	if err := db.Create(&setting).Error; err != nil {
		t.Fatalf("create setting: %v", err)
	}
	if err := data.LoadSettings(db); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := data.GetSetting("dashboard_url"); got != "https://old.example.com" {
		t.Fatalf("GetSetting = %q", got)
	}

	if err := db.Model(&types.Setting{}).Where("name = ?", "dashboard_url").
		Update("value", "https://new.example.com").Error; err != nil {
		t.Fatalf("update setting: %v", err)
	}

	// The bot refreshes on a timer so database edits land without a restart.
	if err := data.RefreshSettings(db); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if got := data.GetSetting("dashboard_url"); got != "https://new.example.com" {
		t.Errorf("GetSetting after refresh = %q", got)
	}

	if got := data.GetSetting("missing"); got != "" {
		t.Errorf("unknown setting should be empty, got %q", got)
	}
}
