package server

import (
	"log"
	"net/http"
	"time"

	"tricount/bagel"
	"tricount/database"

	"github.com/gin-gonic/gin"
	"github.com/improbable-eng/grpc-web/go/grpcweb"
	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
)

type TriangleRequest struct {
	ClientId string      `json:"clientId"`
	Graph    string      `json:"graph"`
	Edges    [][2]uint64 `json:"edges"`
}

type TriangleResponse struct {
	Total      int64            `json:"total"`
	Values     map[uint64]int64 `json:"values"`
	SuperSteps uint64           `json:"superSteps"`
}

// Router serves the JSON API under /api.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.LoggerWithWriter(log.Writer()), gin.Recovery())

	externalAPI := r.Group("/api")
	{
		externalAPI.GET("/health", s.handleHealth)
		externalAPI.POST("/triangles", s.handleTriangles)
	}
	return r
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"queries": s.QueriesServed(),
	})
}

func (s *Server) handleTriangles(c *gin.Context) {
	var request TriangleRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := s.Count(c.Request.Context(), bagel.Query{
		ClientId:  request.ClientId,
		QueryType: bagel.TRIANGLE_COUNT,
		Graph:     request.Graph,
		Edges:     request.Edges,
	})
	if err != nil {
		c.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, TriangleResponse{
		Total:      result.Total,
		Values:     result.Values,
		SuperSteps: result.SuperSteps,
	})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, bagel.ErrMalformedQuery),
		errors.Is(err, bagel.ErrUnknownQueryType),
		errors.Is(err, ErrBadGraphName),
		errors.Is(err, database.ErrBadEdge):
		return http.StatusBadRequest
	case errors.Is(err, database.ErrUnknownSource):
		return http.StatusNotImplemented
	}
	return http.StatusInternalServerError
}

type grpcMultiplexer struct {
	*grpcweb.WrappedGrpcServer
}

// Handler is used to route requests to either grpc or to regular http
func (m *grpcMultiplexer) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			if m.IsGrpcWebRequest(r) || m.IsAcceptableGrpcCorsRequest(r) {
				m.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		},
	)
}

// NewHTTPHandler serves grpc-web calls to apiServer and everything else
// through next.
func NewHTTPHandler(apiServer *grpc.Server, next http.Handler) http.Handler {
	grpcWebServer := grpcweb.WrapServer(apiServer,
		grpcweb.WithOriginFunc(func(origin string) bool { return true }),
	)
	multiplex := grpcMultiplexer{grpcWebServer}
	return multiplex.Handler(next)
}

func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Minute,
	}
}

// NewGRPCServer creates a gRPC server with s registered as bagel.Coord. TLS
// is used when both pemPath and keyPath are set.
func NewGRPCServer(s *Server, pemPath, keyPath string, opts ...grpc.ServerOption) (*grpc.Server, error) {
	if pemPath != "" && keyPath != "" {
		cred, err := credentials.NewServerTLSFromFile(pemPath, keyPath)
		if err != nil {
			return nil, err
		}
		opts = append(opts, grpc.Creds(cred))
	}
	apiServer := grpc.NewServer(opts...)
	RegisterCoordServer(apiServer, s)
	return apiServer, nil
}
