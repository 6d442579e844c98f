package bagel

import (
	"bytes"
	"database/sql"
	"encoding/gob"
	"log"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// Checkpoint is the state of one worker at the start of SuperStepNumber.
type Checkpoint struct {
	SuperStepNumber    uint64
	WorkerId           uint32
	CheckpointState    map[uint64]VertexCheckpoint
	NextSuperStepState SuperStep
}

// CheckpointStore persists checkpoints in a sqlite database.
type CheckpointStore struct {
	db *sql.DB
}

func OpenCheckpointStore(path string) (*CheckpointStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		log.Printf("OpenCheckpointStore: database error: %v\n", err)
		return nil, err
	}
	// sqlite serialises writers
	db.SetMaxOpenConns(1)

	//goland:noinspection SqlDialectInspection
	const createCheckpoints string = `
	  CREATE TABLE IF NOT EXISTS checkpoints (
	  lastCheckpointNumber INTEGER NOT NULL,
	  workerId INTEGER NOT NULL,
	  checkpointState BLOB NOT NULL,
	  nextSuperStepState BLOB NOT NULL,
	  PRIMARY KEY (lastCheckpointNumber, workerId)
	  );
	  CREATE TABLE IF NOT EXISTS aggregates (
	  lastCheckpointNumber INTEGER NOT NULL PRIMARY KEY,
	  aggregateState BLOB NOT NULL
	  );`

	if _, err := db.Exec(createCheckpoints); err != nil {
		log.Printf("OpenCheckpointStore: Failed execute command: %v\n", err)
		db.Close()
		return nil, err
	}
	return &CheckpointStore{db: db}, nil
}

func (s *CheckpointStore) Close() error {
	return s.db.Close()
}

// Reset removes every stored checkpoint.
func (s *CheckpointStore) Reset() error {
	if _, err := s.db.Exec("delete from checkpoints"); err != nil {
		return errors.Wrap(err, "reset checkpoints")
	}
	if _, err := s.db.Exec("delete from aggregates"); err != nil {
		return errors.Wrap(err, "reset aggregates")
	}
	return nil
}

// Store saves the checkpoints of all workers plus the aggregate values for
// superStepNumber, replacing it and any later checkpoint.
func (s *CheckpointStore) Store(
	superStepNumber uint64, checkpoints []Checkpoint, aggregates map[string]int64,
) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// clear larger checkpoints that were saved
	if _, err := tx.Exec(
		"delete from checkpoints where lastCheckpointNumber>=?", superStepNumber,
	); err != nil {
		return errors.Wrap(err, "storeCheckpoint")
	}
	if _, err := tx.Exec(
		"delete from aggregates where lastCheckpointNumber>=?", superStepNumber,
	); err != nil {
		return errors.Wrap(err, "storeCheckpoint")
	}

	for _, checkpoint := range checkpoints {
		state, err := encode(checkpoint.CheckpointState)
		if err != nil {
			return errors.Wrap(err, "storeCheckpoint: encode vertices")
		}
		next, err := encode(checkpoint.NextSuperStepState)
		if err != nil {
			return errors.Wrap(err, "storeCheckpoint: encode next superstep")
		}
		if _, err = tx.Exec(
			"INSERT INTO checkpoints VALUES(?,?,?,?)",
			superStepNumber, checkpoint.WorkerId, state, next,
		); err != nil {
			return errors.Wrapf(err, "storeCheckpoint: worker %d", checkpoint.WorkerId)
		}
	}

	aggregateState, err := encode(aggregates)
	if err != nil {
		return errors.Wrap(err, "storeCheckpoint: encode aggregates")
	}
	if _, err = tx.Exec(
		"INSERT INTO aggregates VALUES(?,?)", superStepNumber, aggregateState,
	); err != nil {
		return errors.Wrap(err, "storeCheckpoint: aggregates")
	}
	return tx.Commit()
}

// Retrieve loads every worker checkpoint stored for superStepNumber.
func (s *CheckpointStore) Retrieve(superStepNumber uint64) (
	[]Checkpoint, map[string]int64, error,
) {
	var aggregateState []byte
	err := s.db.QueryRow(
		"SELECT aggregateState FROM aggregates WHERE lastCheckpointNumber=?",
		superStepNumber,
	).Scan(&aggregateState)
	if err == sql.ErrNoRows {
		return nil, nil, errors.Wrapf(ErrNoCheckpoint, "superstep %d", superStepNumber)
	}
	if err != nil {
		return nil, nil, errors.Wrap(err, "retrieveCheckpoint")
	}
	var aggregates map[string]int64
	if err := decode(aggregateState, &aggregates); err != nil {
		return nil, nil, errors.Wrap(err, "retrieveCheckpoint: decode aggregates")
	}

	rows, err := s.db.Query(
		"SELECT workerId, checkpointState, nextSuperStepState FROM checkpoints"+
			" WHERE lastCheckpointNumber=? ORDER BY workerId",
		superStepNumber,
	)
	if err != nil {
		return nil, nil, errors.Wrap(err, "retrieveCheckpoint")
	}
	defer rows.Close()

	var checkpoints []Checkpoint
	for rows.Next() {
		checkpoint := Checkpoint{SuperStepNumber: superStepNumber}
		var buf, buf2 []byte
		if err := rows.Scan(&checkpoint.WorkerId, &buf, &buf2); err != nil {
			return nil, nil, errors.Wrap(err, "retrieveCheckpoint: scan")
		}
		if err := decode(buf, &checkpoint.CheckpointState); err != nil {
			return nil, nil, errors.Wrap(err, "retrieveCheckpoint: decode vertices")
		}
		if err := decode(buf2, &checkpoint.NextSuperStepState); err != nil {
			return nil, nil, errors.Wrap(err, "retrieveCheckpoint: decode next superstep")
		}
		checkpoints = append(checkpoints, checkpoint)
	}
	return checkpoints, aggregates, rows.Err()
}

// Latest returns the highest stored checkpoint number.
func (s *CheckpointStore) Latest() (uint64, error) {
	var latest sql.NullInt64
	if err := s.db.QueryRow(
		"SELECT MAX(lastCheckpointNumber) FROM aggregates",
	).Scan(&latest); err != nil {
		return 0, errors.Wrap(err, "latestCheckpoint")
	}
	if !latest.Valid {
		return 0, ErrNoCheckpoint
	}
	return uint64(latest.Int64), nil
}

func encode(value interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(value); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode(buf []byte, value interface{}) error {
	return gob.NewDecoder(bytes.NewBuffer(buf)).Decode(value)
}
