package cmd

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/LiuAnBoy/591-rent-helper-server/internal/utils"
	"github.com/LiuAnBoy/591-rent-helper-server/pkg/cache"
	"github.com/LiuAnBoy/591-rent-helper-server/pkg/checker"
	"github.com/LiuAnBoy/591-rent-helper-server/pkg/fetch"
	"github.com/LiuAnBoy/591-rent-helper-server/pkg/fetch/browser"
	"github.com/LiuAnBoy/591-rent-helper-server/pkg/notify"
	"github.com/LiuAnBoy/591-rent-helper-server/pkg/storage"
)

// app is the composition root shared by serve, check, and sync. Every
// dependency is constructed here, explicitly, and torn down in Close.
type app struct {
	db      *storage.DB
	cache   *cache.Cache
	checker *checker.Checker
	lock    *utils.DBLock
}

func buildApp(ctx context.Context) (*app, error) {
	dbPath, _ := rootCmd.PersistentFlags().GetString("dbpath")
	absPath, err := utils.GetAbsDBPath(dbPath)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return nil, err
	}

	lock, err := utils.NewDBLock(dbPath)
	if err != nil {
		return nil, err
	}
	if err := lock.Lock(); err != nil {
		return nil, err
	}

	db, err := storage.Open(absPath)
	if err != nil {
		lock.Unlock()
		return nil, err
	}

	cch, err := cache.New(ctx, cache.Options{
		Addr:     viper.GetString("redis.addr"),
		Password: viper.GetString("redis.password"),
		DB:       viper.GetInt("redis.db"),
	}, utils.Log)
	if err != nil {
		db.Close()
		lock.Unlock()
		return nil, err
	}

	timeout := time.Duration(viper.GetInt("fetch.timeout_seconds")) * time.Second
	headless := viper.GetBool("fetch.headless")
	maxWorkers := viper.GetInt("fetch.max_workers")

	lists := fetch.NewFallbackList(
		fetch.NewFastList(timeout, utils.Log),
		func() (fetch.SlowListTier, error) {
			return browser.NewList(browser.Options{Headless: headless}, utils.Log)
		},
		utils.Log)
	details := fetch.NewFallbackDetail(
		fetch.NewFastDetail(timeout, utils.Log),
		func() (fetch.SlowDetailTier, error) {
			return browser.NewDetail(browser.Options{Headless: headless}, maxWorkers, utils.Log)
		},
		utils.Log)

	sink := notify.NewTelegram(
		viper.GetString("telegram.token"),
		viper.GetString("telegram.admin_chat"))

	chk := checker.New(db, cch, lists, details, sink, sink, utils.Log,
		viper.GetInt("fetch.max_items"))

	return &app{db: db, cache: cch, checker: chk, lock: lock}, nil
}

func (a *app) Close() {
	a.checker.Release()
	if err := a.cache.Close(); err != nil {
		utils.Log.Warnf("closing cache: %v", err)
	}
	if err := a.db.Close(); err != nil {
		utils.Log.Warnf("closing database: %v", err)
	}
	if err := a.lock.Unlock(); err != nil {
		utils.Log.Warnf("releasing database lock: %v", err)
	}
}
