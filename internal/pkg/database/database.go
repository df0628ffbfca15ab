// Package database 负责按配置打开 gorm 连接
package database

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// Config 数据库连接配置。sqlite 只使用 Path；mysql 使用其余字段。
type Config struct {
	Driver      string `yaml:"driver"`
	Path        string `yaml:"path"`
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	User        string `yaml:"user"`
	Password    string `yaml:"password"`
	Name        string `yaml:"name"`
	AutoMigrate bool   `yaml:"auto_migrate" split_words:"true"`
	MaxOpenConn int    `yaml:"max_open_conn" split_words:"true"`
}

// DSN 按驱动生成连接串
func (c Config) DSN() string {
	switch c.Driver {
	case DriverMySQL:
		mc := mysql.NewConfig()
		mc.User = c.User
		mc.Passwd = c.Password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
		mc.DBName = c.Name
		mc.ParseTime = true
		mc.Loc = time.Local
		mc.Params = map[string]string{"charset": "utf8mb4"}
		return mc.FormatDSN()
	default:
		if c.Path == "" {
			return "file::memory:?cache=shared"
		}
		return c.Path
	}
}

// Open 打开数据库连接，可选地执行 AutoMigrate
func Open(cfg Config, models ...interface{}) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case DriverMySQL:
		dialector = gormmysql.Open(cfg.DSN())
	case DriverSQLite, "":
		dialector = sqlite.Open(cfg.DSN())
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	zl := log.With().Str("component", "gorm").Logger()
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.New(&zl, gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "open %s database", cfg.Driver)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "get underlying sql.DB")
	}
	switch {
	case cfg.Driver != DriverMySQL:
		// sqlite 单写者，串行化连接避免 database is locked
		sqlDB.SetMaxOpenConns(1)
	case cfg.MaxOpenConn > 0:
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConn)
	}

	if cfg.AutoMigrate && len(models) > 0 {
		if err := db.AutoMigrate(models...); err != nil {
			return nil, errors.Wrap(err, "auto migrate")
		}
	}
	return db, nil
}

// Close 关闭底层连接池
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
