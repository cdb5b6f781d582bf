package journal

import (
	"github.com/pkg/errors"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open 打开流水库：配置了 MySQL DSN 时使用 MySQL，否则使用本地 sqlite 文件。
func Open(mysqlDSN, sqlitePath string) (*gorm.DB, error) {
	cfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)}

	var dialector gorm.Dialector
	switch {
	case mysqlDSN != "":
		dialector = mysql.Open(mysqlDSN)
	case sqlitePath != "":
		dialector = sqlite.Open(sqlitePath)
	default:
		return nil, errors.New("journal: neither mysql dsn nor sqlite path configured")
	}

	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "open journal database")
	}
	return db, nil
}
