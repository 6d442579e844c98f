package server

import (
	"context"
	"log"
	"sync"
	"sync/atomic"

	"tricount/bagel"
	"tricount/database"
	"tricount/triangles"
	"tricount/util"

	"github.com/pkg/errors"
)

// Server answers triangle counting queries, one job at a time.
type Server struct {
	queryNum    uint64 // atomic
	config      util.CoordConfig
	openSource  SourceOpener
	checkpoints *bagel.CheckpointStore

	mx sync.Mutex // serializes jobs
}

// NewServer creates a server reading stored graphs through openSource. When
// the config asks for checkpoints the checkpoint database is opened here.
func NewServer(config util.CoordConfig, openSource SourceOpener) (*Server, error) {
	if config.NumWorkers == 0 {
		config.NumWorkers = 1
	}
	s := &Server{config: config, openSource: openSource}
	if config.StepsBetweenCheckpoints > 0 {
		store, err := bagel.OpenCheckpointStore(config.CheckpointPath)
		if err != nil {
			return nil, err
		}
		s.checkpoints = store
	}
	return s, nil
}

func (s *Server) Close() error {
	if s.checkpoints != nil {
		return s.checkpoints.Close()
	}
	return nil
}

func (s *Server) jobConfig(queryNum uint64) bagel.JobConfig {
	config := bagel.JobConfig{
		NumWorkers:              s.config.NumWorkers,
		MaxSuperSteps:           s.config.MaxSuperSteps,
		StepsBetweenCheckpoints: s.config.StepsBetweenCheckpoints,
		Checkpoints:             s.checkpoints,
		Verbose:                 s.config.Verbose,
	}
	if s.config.Verbose {
		config.OnSuperStep = func(p bagel.Progress) {
			log.Printf(
				"Server: query %v superstep %v: %v active vertices, %v messages, %v triangles\n",
				queryNum, p.SuperStepNum, p.ActiveVertices, p.MessagesSent,
				triangles.TotalOf(p.Aggregates[triangles.AggregatorName]),
			)
		}
	}
	return config
}

// Count runs query to completion.
func (s *Server) Count(ctx context.Context, query bagel.Query) (triangles.Result, error) {
	if err := bagel.ValidateQuery(query); err != nil {
		return triangles.Result{}, err
	}

	queryNum := atomic.AddUint64(&s.queryNum, 1)
	s.mx.Lock()
	defer s.mx.Unlock()
	log.Printf("Server: query %v from %q: graph %q, %v inline edges\n",
		queryNum, query.ClientId, query.Graph, len(query.Edges))

	vertices, err := s.loadVertices(ctx, query)
	if err != nil {
		return triangles.Result{}, err
	}
	if s.checkpoints != nil {
		if err := s.checkpoints.Reset(); err != nil {
			return triangles.Result{}, err
		}
	}

	result, err := triangles.Count(ctx, s.jobConfig(queryNum), s.config.StrictParity, vertices)
	if err != nil {
		return triangles.Result{}, errors.Wrapf(err, "query %d", queryNum)
	}
	log.Printf("Server: query %v found %v triangles in %v supersteps\n",
		queryNum, result.Total, result.SuperSteps)
	return result, nil
}

func (s *Server) loadVertices(ctx context.Context, query bagel.Query) ([]*bagel.Vertex, error) {
	if len(query.Edges) > 0 {
		return bagel.VerticesFromEdges(query.Edges), nil
	}

	source, closeSource, err := s.openSource(ctx, query.Graph)
	if err != nil {
		return nil, err
	}
	defer closeSource()

	stored, err := source.LoadVertices(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "load graph %q", query.Graph)
	}
	return database.BagelVertices(stored), nil
}

// RunQuery is Count with failures reported in the result rather than
// returned.
func (s *Server) RunQuery(ctx context.Context, query bagel.Query) bagel.QueryResult {
	result, err := s.Count(ctx, query)
	if err != nil {
		log.Printf("Server: query failed: %v\n", err)
		return bagel.QueryResult{Query: query, Error: err.Error()}
	}
	return bagel.QueryResult{
		Query:      query,
		Total:      result.Total,
		Values:     result.Values,
		SuperSteps: result.SuperSteps,
	}
}

func (s *Server) QueriesServed() uint64 {
	return atomic.LoadUint64(&s.queryNum)
}
