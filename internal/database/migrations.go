package database

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func GetMigrator(db *gorm.DB) *gormigrate.Gormigrate {
	migrator := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "0",
			Migrate: func(txn *gorm.DB) error {
				return txn.AutoMigrate(&TrainingRun{})
			},
		},
	})

	migrator.InitSchema(func(txn *gorm.DB) error {
		// Fresh database: create the current schema directly instead of
		// replaying migrations one by one.
		return txn.AutoMigrate(&TrainingRun{})
	})

	return migrator
}
