// Package daotest 为依赖 dao 的包提供内存 sqlite 数据库
package daotest

import (
	"fmt"
	"strings"
	"testing"

	"math-tutor-backend/dao"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Setup 为当前测试创建独立的内存库并替换 dao.DB
func Setup(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	prev := dao.DB
	t.Cleanup(func() {
		dao.DB = prev
		sqlDB.Close()
	})

	require.NoError(t, dao.Migrate(db))
	dao.DB = db
	return db
}
