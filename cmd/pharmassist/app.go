package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"

	"github.com/stupiduntilnot/pharmassist/internal/aggregator"
	"github.com/stupiduntilnot/pharmassist/internal/assistant"
	"github.com/stupiduntilnot/pharmassist/internal/config"
	"github.com/stupiduntilnot/pharmassist/internal/db"
	"github.com/stupiduntilnot/pharmassist/internal/dummy"
	"github.com/stupiduntilnot/pharmassist/internal/gateway"
	"github.com/stupiduntilnot/pharmassist/internal/notify"
	"github.com/stupiduntilnot/pharmassist/internal/store"
	"github.com/stupiduntilnot/pharmassist/internal/telegram"
)

// app is the composition root: one store, one event log, one backend and
// one notifier per process.
type app struct {
	store    store.Store
	events   *sql.DB
	ownsDB   bool
	notifier notify.Notifier
	service  *assistant.Service
	logger   *zap.Logger
}

// openStore connects the configured document store. For SQLite the same
// database also holds the event log.
func openStore(ctx context.Context, cfg config.Config) (store.Store, *sql.DB, bool, error) {
	switch cfg.Store {
	case config.StoreDynamoDB:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, nil, false, fmt.Errorf("failed to load AWS config: %w", err)
		}
		st := store.NewDynamo(dynamodb.NewFromConfig(awsCfg), cfg.DynamoTablePrefix)
		events, err := db.OpenDB(cfg.DBPath)
		if err != nil {
			return nil, nil, false, err
		}
		if err := db.InitSchema(events); err != nil {
			events.Close()
			return nil, nil, false, fmt.Errorf("failed to init schema: %w", err)
		}
		return st, events, true, nil
	default:
		st, err := store.OpenSQLite(cfg.DBPath)
		if err != nil {
			return nil, nil, false, err
		}
		return st, st.DB, false, nil
	}
}

func newNotifier(cfg config.Config, users store.Reader) (notify.Notifier, error) {
	switch cfg.Notify {
	case config.NotifyTelegram:
		client := telegram.NewClient(telegram.APIBase(cfg.TelegramBotToken), cfg.ProviderTimeout())
		return notify.NewTelegram(client, users), nil
	case config.NotifyDummy:
		return dummy.NewNotifier(cfg.DummyNotifyScript)
	default:
		return notify.Nop{}, nil
	}
}

// newApp wires every collaborator. Backend construction errors, such as a
// missing credential, are returned before any turn runs.
func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	backend, err := gateway.NewBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}

	st, events, ownsDB, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a := &app{store: st, events: events, ownsDB: ownsDB, logger: logger}

	a.notifier, err = newNotifier(cfg, st)
	if err != nil {
		a.Close()
		return nil, err
	}

	var parent *int64
	processID, err := db.LogEvent(events, nil, db.EventProcessStarted, map[string]any{
		"pid":     os.Getpid(),
		"backend": backend.Name(),
		"store":   cfg.Store,
		"notify":  cfg.Notify,
	})
	if err != nil {
		logger.Warn("failed to log process.started", zap.Error(err))
	} else {
		parent = &processID
	}

	a.service = assistant.New(assistant.Deps{
		ParentEventID: parent,
		Transcript:    st,
		Aggregator:    aggregator.New(st, logger),
		Gateway:       gateway.New(backend, cfg.HistoryWindow, logger),
		Notifier:      a.notifier,
		Events:        db.EventLog{DB: events},
		HistoryWindow: cfg.HistoryWindow,
		Logger:        logger,
	})
	return a, nil
}

// Close releases the notifier and the stores.
func (a *app) Close() error {
	var errs []error
	if a.notifier != nil {
		errs = append(errs, a.notifier.Close())
	}
	if a.ownsDB && a.events != nil {
		errs = append(errs, a.events.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}
