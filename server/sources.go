package server

import (
	"context"
	"path/filepath"
	"strings"

	"tricount/database"
	"tricount/database/mongodb"
	"tricount/util"

	"github.com/pkg/errors"
)

const (
	SOURCE_FILE     = "file"
	SOURCE_SQL      = "sql"
	SOURCE_DYNAMODB = "dynamodb"
	SOURCE_MONGODB  = "mongodb"
)

var ErrBadGraphName = errors.New("bad graph name")

// SourceOpener opens the stored graph called name. The returned close
// function releases whatever connection backs the source.
type SourceOpener func(ctx context.Context, name string) (database.GraphSource, func() error, error)

func noClose() error { return nil }

// NewSourceOpener opens graphs from the store described by config. For the
// file source names are paths relative to config.Path; for the others they
// are table or collection names, with config.TableName used when empty.
func NewSourceOpener(config util.GraphConfig) SourceOpener {
	return func(ctx context.Context, name string) (database.GraphSource, func() error, error) {
		return OpenSource(ctx, config, name)
	}
}

func OpenSource(ctx context.Context, config util.GraphConfig, name string) (database.GraphSource, func() error, error) {
	switch config.Source {
	case SOURCE_FILE:
		if name == "" {
			return database.FileSource{Path: config.Path}, noClose, nil
		}
		clean := filepath.Clean(name)
		if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
			return nil, nil, errors.Wrap(ErrBadGraphName, name)
		}
		return database.FileSource{Path: filepath.Join(config.Path, name)}, noClose, nil

	case SOURCE_SQL:
		table, err := tableName(config, name)
		if err != nil {
			return nil, nil, err
		}
		store, err := database.OpenSQLStore(config.Driver, config.DSN, table)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil

	case SOURCE_DYNAMODB:
		table, err := tableName(config, name)
		if err != nil {
			return nil, nil, err
		}
		svc, err := database.GetDynamoClient(ctx, config.Region)
		if err != nil {
			return nil, nil, err
		}
		return database.NewDynamoStore(svc, table), noClose, nil

	case SOURCE_MONGODB:
		table, err := tableName(config, name)
		if err != nil {
			return nil, nil, err
		}
		client, err := mongodb.GetDatabaseClient(ctx, config.DSN)
		if err != nil {
			return nil, nil, err
		}
		store := mongodb.NewStore(client, table)
		return store, func() error { return store.Close(context.Background()) }, nil
	}
	return nil, nil, errors.Wrap(database.ErrUnknownSource, config.Source)
}

func tableName(config util.GraphConfig, name string) (string, error) {
	if name == "" {
		name = config.TableName
	}
	if !database.ValidTableName(name) {
		return "", errors.Wrapf(ErrBadGraphName, "%q", name)
	}
	return name, nil
}
