package grpc

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"booktrack/pkg/logger"
	"booktrack/pkg/models"
)

type stubVerifier struct{}

func (stubVerifier) Verify(token string) (string, error) {
	if strings.HasPrefix(token, "token-") {
		return strings.TrimPrefix(token, "token-"), nil
	}
	return "", models.ErrInvalidToken
}

func (stubVerifier) Issue(userID string) (string, time.Time, error) {
	return "token-" + userID, time.Now().Add(time.Hour), nil
}

type mockRankings struct {
	mock.Mock
}

func (m *mockRankings) Leaderboard(ctx context.Context, metric models.RankingMetric, scope models.RankingScope) ([]models.RankingEntry, error) {
	args := m.Called(ctx, metric, scope)
	list, _ := args.Get(0).([]models.RankingEntry)
	return list, args.Error(1)
}

func (m *mockRankings) MyRanking(ctx context.Context, userID string, metric models.RankingMetric, scope models.RankingScope) (*models.MyRanking, error) {
	args := m.Called(ctx, userID, metric, scope)
	r, _ := args.Get(0).(*models.MyRanking)
	return r, args.Error(1)
}

func (m *mockRankings) Invalidate(context.Context, ...models.RankingMetric) {}

func startBufServer(t *testing.T, rankings *mockRankings) func(token string) *Client {
	t.Helper()

	listener := bufconn.Listen(1 << 20)
	server := NewServer("bufnet", rankings, stubVerifier{})
	go server.Serve(listener)
	t.Cleanup(server.Stop)

	return func(token string) *Client {
		client, err := NewClient("passthrough:///bufnet", token,
			grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
				return listener.DialContext(ctx)
			}),
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		)
		require.NoError(t, err)
		t.Cleanup(func() { client.Close() })
		return client
	}
}

func TestLeaderboardOverGRPC(t *testing.T) {
	rankings := &mockRankings{}
	rankings.On("Leaderboard", mock.Anything, models.MetricCount, models.ScopeYear).Return([]models.RankingEntry{
		{Rank: 1, UserID: "a", Nickname: "Ann", Level: 3, RawValue: 12, Value: "12 books"},
		{Rank: 2, UserID: "b", Nickname: "Ben", Level: 1, RawValue: 12, Value: "12 books"},
	}, nil).Once()

	client := startBufServer(t, rankings)("token-a")
	entries, err := client.Leaderboard(context.Background(), models.MetricCount, models.ScopeYear)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].UserID)
	assert.Equal(t, 2, entries[1].Rank)
	assert.EqualValues(t, 12, entries[1].RawValue)
	rankings.AssertExpectations(t)
}

func TestMyRankingUsesTokenUser(t *testing.T) {
	rankings := &mockRankings{}
	rankings.On("MyRanking", mock.Anything, "u7", models.MetricTime, models.ScopeMonth).
		Return(&models.MyRanking{UserID: "u7", Rank: -1, Value: models.NoRankValue, Percentile: 100}, nil).Once()

	client := startBufServer(t, rankings)("token-u7")
	mine, err := client.MyRanking(context.Background(), models.MetricTime, models.ScopeMonth)
	require.NoError(t, err)
	assert.Equal(t, -1, mine.Rank)
	assert.Equal(t, 100.0, mine.Percentile)
	rankings.AssertExpectations(t)
}

func TestRequestIDPropagatesThroughCall(t *testing.T) {
	rankings := &mockRankings{}
	rankings.On("Leaderboard", mock.MatchedBy(func(ctx context.Context) bool {
		return logger.RequestIDFrom(ctx) == "req-42"
	}), models.MetricTime, models.ScopeMonth).Return([]models.RankingEntry{}, nil).Once()

	client := startBufServer(t, rankings)("")
	in, err := structpb.NewStruct(map[string]interface{}{"sort": "time", "scope": "month"})
	require.NoError(t, err)

	ctx := metadata.AppendToOutgoingContext(context.Background(),
		"authorization", "Bearer token-a",
		"x-request-id", "req-42",
	)
	var header metadata.MD
	require.NoError(t, client.conn.Invoke(ctx, leaderboardMethod, in, new(structpb.Struct), grpc.Header(&header)))

	assert.Equal(t, []string{"req-42"}, header.Get("x-request-id"))
	rankings.AssertExpectations(t)
}

func TestRequestIDAssignedWhenMissing(t *testing.T) {
	rankings := &mockRankings{}
	rankings.On("Leaderboard", mock.Anything, models.MetricTime, models.ScopeMonth).Return([]models.RankingEntry{}, nil).Once()
	client := startBufServer(t, rankings)("")

	ctx := metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer token-a")
	var header metadata.MD
	require.NoError(t, client.conn.Invoke(ctx, leaderboardMethod, &structpb.Struct{}, new(structpb.Struct), grpc.Header(&header)))

	ids := header.Get("x-request-id")
	require.Len(t, ids, 1)
	assert.NotEmpty(t, ids[0])
}

func TestStatusCodes(t *testing.T) {
	dial := startBufServer(t, &mockRankings{})

	_, err := dial("").Leaderboard(context.Background(), models.MetricTime, models.ScopeMonth)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = dial("token-a").Leaderboard(context.Background(), "pages", models.ScopeMonth)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestHealthServing(t *testing.T) {
	client := startBufServer(t, &mockRankings{})("")

	resp, err := grpc_health_v1.NewHealthClient(client.conn).Check(context.Background(),
		&grpc_health_v1.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, resp.Status)
}
