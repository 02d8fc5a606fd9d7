package data

import (
	"log"

	"github.com/sumire-bot/sumire/src/types"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

var allModels = []interface{}{
	&types.Setting{},
	&types.Poll{}, &types.PollOption{}, &types.PollVote{},
	&types.Giveaway{}, &types.GiveawayEntry{}, &types.GiveawayWinner{},
}

func MustMySQL(dsn string) *gorm.DB {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("mysql: %v", err)
	}
	return db
}

// Migrate creates or updates the schema for every model.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(allModels...)
}
