package database

import "gorm.io/gorm"

// DB is the process-wide handle opened by SetupDatabase.
var DB *gorm.DB

func GetDB() *gorm.DB {
	return DB
}
