package bagel

import (
	"context"
	"log"

	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	CoordServiceName = "bagel.Coord"
	StartQueryMethod = "/" + CoordServiceName + "/StartQuery"
)

type GraphClient struct {
	clientId  string
	coordConn *grpc.ClientConn
	notifyCh  chan QueryResult
}

func NewClient() *GraphClient {
	return &GraphClient{}
}

func ValidateQuery(query Query) error {
	switch query.QueryType {
	case TRIANGLE_COUNT:
		if query.Graph == "" && len(query.Edges) == 0 {
			return errors.Wrap(ErrMalformedQuery, "query names no graph and carries no edges")
		}
	default:
		return errors.Wrap(ErrUnknownQueryType, query.QueryType)
	}
	return nil
}

// SendQuery validates query and sends it in the background; the result is
// delivered on the channel returned by Start.
func (c *GraphClient) SendQuery(ctx context.Context, query Query) error {
	if query.ClientId == "" {
		query.ClientId = c.clientId
	}
	if err := ValidateQuery(query); err != nil {
		return err
	}

	log.Printf("SendQuery: query is queued up to be sent.")
	go c.doQuery(ctx, query)
	return nil
}

func (c *GraphClient) doQuery(ctx context.Context, query Query) {
	result, err := c.Query(ctx, query)
	if err != nil {
		log.Printf("doQuery: error calling %v: %v\n", StartQueryMethod, err)
		result = QueryResult{Query: query, Error: err.Error()}
	}
	if result.Error != "" {
		log.Printf("doQuery: received error: %v\n", result.Error)
	}

	log.Printf("doQuery: received result: %v\n", result.Total)

	c.notifyCh <- result
}

// Query runs query synchronously.
func (c *GraphClient) Query(ctx context.Context, query Query) (QueryResult, error) {
	request, err := query.ToStruct()
	if err != nil {
		return QueryResult{}, err
	}
	response := new(structpb.Struct)
	if err := c.coordConn.Invoke(ctx, StartQueryMethod, request, response); err != nil {
		return QueryResult{}, err
	}
	return QueryResultFromStruct(response)
}

// Start connects to the coord. If there is an issue with connecting to the
// coord, this returns an appropriate err value.
func (c *GraphClient) Start(
	ctx context.Context, clientId string, coordAddr string, opts ...grpc.DialOption,
) (chan QueryResult, error) {
	c.clientId = clientId

	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.DialContext(ctx, coordAddr, opts...)
	if err != nil {
		return nil, err
	}
	c.coordConn = conn
	c.notifyCh = make(chan QueryResult, 1)

	return c.notifyCh, nil
}

func (c *GraphClient) Stop() {
	c.coordConn.Close()
	close(c.notifyCh)
}
