package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
	"time"

	"tricount/util"

	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

const neighborDelim = "." // normal delimiters cause problems with SQL

var (
	ErrBadTableName = errors.New("bad table name")

	// Table names are spliced into statements, so only bare identifiers pass.
	tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// ValidTableName reports whether name can be used as a table identifier.
func ValidTableName(name string) bool {
	return tableNamePattern.MatchString(name)
}

type dialect struct {
	maxParams    int
	neighborType string
	placeholder  func(position int) string
}

var dialects = map[string]dialect{
	"sqlite3": {
		maxParams:    999,
		neighborType: "TEXT",
		placeholder:  func(int) string { return "?" },
	},
	"mysql": {
		maxParams:    65535,
		neighborType: "LONGTEXT",
		placeholder:  func(int) string { return "?" },
	},
	"sqlserver": {
		maxParams:    2099,
		neighborType: "VARCHAR(MAX)",
		placeholder:  func(position int) string { return fmt.Sprintf("@p%d", position) },
	},
}

// SQLStore keeps a graph as an adjacency list table with one row per
// vertex: (srcVertex, hash, neighbors).
type SQLStore struct {
	db        *sql.DB
	driver    string
	dialect   dialect
	tableName string
}

func OpenSQLStore(driver string, dsn string, tableName string) (*SQLStore, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, errors.Wrap(ErrUnknownDriver, driver)
	}
	if !ValidTableName(tableName) {
		return nil, errors.Wrapf(ErrBadTableName, "%q", tableName)
	}
	// Create connection pool
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "Error creating connection pool")
	}
	if driver == "sqlite3" {
		db.SetMaxOpenConns(1)
	}
	return &SQLStore{db: db, driver: driver, dialect: d, tableName: tableName}, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// CreateAdjList drops and recreates the adjacency list table.
func (s *SQLStore) CreateAdjList(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+s.tableName); err != nil {
		return errors.Wrapf(err, "drop %s", s.tableName)
	}
	_, err := s.db.ExecContext(ctx, "CREATE TABLE "+s.tableName+
		" (srcVertex BIGINT NOT NULL PRIMARY KEY, hash VARCHAR(32), neighbors "+
		s.dialect.neighborType+")")
	return errors.Wrapf(err, "create %s", s.tableName)
}

// AddGraph inserts every vertex of graph, in bulks that fit the parameter
// limit of the driver.
func (s *SQLStore) AddGraph(ctx context.Context, graph Graph) error {
	return s.BulkInsert(ctx, GraphToVertices(graph))
}

func (s *SQLStore) BulkInsert(ctx context.Context, vertices []Vertex) error {
	const numParams = 3
	rowsPerInsert := s.dialect.maxParams / numParams
	N := numBatches(len(vertices), rowsPerInsert)

	for i := 0; i < N; i++ {
		startTime := time.Now()
		end := (i + 1) * rowsPerInsert
		if end > len(vertices) {
			end = len(vertices)
		}
		bulk := vertices[i*rowsPerInsert : end]

		valueStrings := make([]string, 0, len(bulk))
		valueArgs := make([]interface{}, 0, len(bulk)*numParams)
		startOrdinalPosition := 1
		for _, v := range bulk {
			valueStrings = append(valueStrings, s.paramPlaceHolders(startOrdinalPosition))
			valueArgs = append(valueArgs,
				int64(v.ID),
				strconv.FormatUint(util.HashId(v.ID), 10),
				arrayToString(v.Edges, neighborDelim),
			)
			startOrdinalPosition += numParams
		}
		stmt := fmt.Sprintf("INSERT INTO %s (srcVertex, hash, neighbors) VALUES %s;",
			s.tableName, strings.Join(valueStrings, ","))
		if _, err := s.db.ExecContext(ctx, stmt, valueArgs...); err != nil {
			return errors.Wrapf(err, "Failed to bulk insert rows (%d/%d)", i+1, N)
		}
		log.Printf("BulkInsert: inserted (%d/%d) time elapsed %v\n", i+1, N, time.Since(startTime))
	}
	return nil
}

func (s *SQLStore) paramPlaceHolders(startOrdinalPosition int) string {
	return fmt.Sprintf("(%s, %s, %s)",
		s.dialect.placeholder(startOrdinalPosition),
		s.dialect.placeholder(startOrdinalPosition+1),
		s.dialect.placeholder(startOrdinalPosition+2))
}

func (s *SQLStore) GetVertexById(ctx context.Context, id uint64) (Vertex, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT srcVertex, hash, neighbors FROM "+s.tableName+" WHERE srcVertex = "+
			s.dialect.placeholder(1),
		int64(id),
	)
	v, err := scanVertex(row)
	if err == sql.ErrNoRows {
		return Vertex{}, errors.Wrapf(ErrVertexNotFound, "%d", id)
	}
	return v, err
}

// GetVerticesModulo returns the vertices whose id is congruent to workerId
// modulo numWorkers.
func (s *SQLStore) GetVerticesModulo(ctx context.Context, workerId uint32, numWorkers uint32) ([]Vertex, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT srcVertex, hash, neighbors FROM "+s.tableName+" WHERE srcVertex % "+
			strconv.Itoa(int(numWorkers))+" = "+s.dialect.placeholder(1)+" ORDER BY srcVertex",
		int64(workerId),
	)
	if err != nil {
		return nil, errors.Wrap(err, "GetVerticesModulo")
	}
	return scanVertices(rows)
}

func (s *SQLStore) LoadVertices(ctx context.Context) ([]Vertex, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT srcVertex, hash, neighbors FROM "+s.tableName+" ORDER BY srcVertex",
	)
	if err != nil {
		return nil, errors.Wrap(err, "LoadVertices")
	}
	return scanVertices(rows)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanVertex(row rowScanner) (Vertex, error) {
	var searchID int64
	var hash string
	var neighbors sql.NullString
	if err := row.Scan(&searchID, &hash, &neighbors); err != nil {
		return Vertex{}, err
	}
	hashNum, err := strconv.ParseUint(hash, 10, 64)
	if err != nil {
		return Vertex{}, errors.Wrapf(err, "vertex %d: parsing hash", searchID)
	}
	edges, err := convertStringToArray(neighbors.String, neighborDelim)
	if err != nil {
		return Vertex{}, errors.Wrapf(err, "vertex %d: parsing neighbors", searchID)
	}
	return Vertex{ID: uint64(searchID), Hash: hashNum, Edges: edges}, nil
}

func scanVertices(rows *sql.Rows) ([]Vertex, error) {
	defer rows.Close()
	var vertices []Vertex
	for rows.Next() {
		v, err := scanVertex(rows)
		if err != nil {
			return nil, err
		}
		vertices = append(vertices, v)
	}
	return vertices, rows.Err()
}

func arrayToString(a []uint64, delim string) string {
	parts := make([]string, len(a))
	for idx, v := range a {
		parts[idx] = strconv.FormatUint(v, 10)
	}
	return strings.Join(parts, delim)
}

func convertStringToArray(a string, delim string) ([]uint64, error) {
	neighborSlice := []uint64{}
	if len(strings.TrimSpace(a)) == 0 {
		return neighborSlice, nil
	}
	for _, v := range strings.Split(a, delim) {
		neighborID, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return nil, err
		}
		neighborSlice = append(neighborSlice, neighborID)
	}
	return neighborSlice, nil
}
