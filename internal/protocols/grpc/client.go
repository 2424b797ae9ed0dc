package grpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"

	"booktrack/pkg/models"
)

// Client calls booktrack.v1.RankingService
type Client struct {
	conn  *grpc.ClientConn
	token string
}

// NewClient creates a client for addr. token is sent as a bearer token.
func NewClient(addr, token string, opts ...grpc.DialOption) (*Client, error) {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to gRPC server: %w", err)
	}
	return &Client{conn: conn, token: token}, nil
}

// Close closes the gRPC connection
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) invoke(ctx context.Context, method string, metric models.RankingMetric, scope models.RankingScope) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(map[string]interface{}{
		"sort":  string(metric),
		"scope": string(scope),
	})
	if err != nil {
		return nil, err
	}

	if c.token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+c.token)
	}

	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, method, in, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Leaderboard fetches the top users
func (c *Client) Leaderboard(ctx context.Context, metric models.RankingMetric, scope models.RankingScope) ([]models.RankingEntry, error) {
	out, err := c.invoke(ctx, leaderboardMethod, metric, scope)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Entries []models.RankingEntry `json:"entries"`
	}
	if err := decodeStruct(out, &resp); err != nil {
		return nil, fmt.Errorf("decode leaderboard: %w", err)
	}
	if resp.Entries == nil {
		resp.Entries = []models.RankingEntry{}
	}
	return resp.Entries, nil
}

// MyRanking fetches the standing of the token's user
func (c *Client) MyRanking(ctx context.Context, metric models.RankingMetric, scope models.RankingScope) (*models.MyRanking, error) {
	out, err := c.invoke(ctx, myRankingMethod, metric, scope)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Ranking *models.MyRanking `json:"ranking"`
	}
	if err := decodeStruct(out, &resp); err != nil {
		return nil, fmt.Errorf("decode ranking: %w", err)
	}
	if resp.Ranking == nil {
		return nil, fmt.Errorf("empty ranking response")
	}
	return resp.Ranking, nil
}
