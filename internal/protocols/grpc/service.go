package grpc

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"booktrack/internal/core"
	"booktrack/pkg/logger"
	"booktrack/pkg/models"
	"booktrack/pkg/utils"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "booktrack.v1.RankingService"

const (
	leaderboardMethod = "/" + ServiceName + "/Leaderboard"
	myRankingMethod   = "/" + ServiceName + "/MyRanking"
)

// RankingServer is the server API of booktrack.v1.RankingService. Requests
// and responses are google.protobuf.Struct:
//
//	Leaderboard {sort, scope} -> {entries: [...]}
//	MyRanking   {sort, scope} -> {ranking: {...}}
type RankingServer interface {
	Leaderboard(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	MyRanking(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// RankingServiceDesc registers RankingServer without generated stubs
var RankingServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RankingServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Leaderboard", Handler: leaderboardHandler},
		{MethodName: "MyRanking", Handler: myRankingHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "booktrack/v1/ranking.proto",
}

func leaderboardHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RankingServer).Leaderboard(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: leaderboardMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RankingServer).Leaderboard(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func myRankingHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RankingServer).MyRanking(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: myRankingMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RankingServer).MyRanking(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// RankingServiceServer implements RankingServer on the ranking aggregator
type RankingServiceServer struct {
	rankings core.RankingService
}

// NewRankingServiceServer creates a new gRPC ranking service
func NewRankingServiceServer(rankings core.RankingService) *RankingServiceServer {
	return &RankingServiceServer{rankings: rankings}
}

// Leaderboard returns the top users for the requested metric and window
func (s *RankingServiceServer) Leaderboard(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	metric, scope, err := rankingParams(req)
	if err != nil {
		return nil, toStatus(err)
	}

	entries, err := s.rankings.Leaderboard(ctx, metric, scope)
	if err != nil {
		return nil, toStatus(err)
	}
	return encodeStruct(map[string]interface{}{"entries": entries})
}

// MyRanking returns the caller's standing; the caller comes from the auth
// interceptor
func (s *RankingServiceServer) MyRanking(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, ok := UserIDFromContext(ctx)
	if !ok {
		return nil, models.ErrInvalidToken.ToGRPCError()
	}

	metric, scope, err := rankingParams(req)
	if err != nil {
		return nil, toStatus(err)
	}

	mine, err := s.rankings.MyRanking(ctx, userID, metric, scope)
	if err != nil {
		return nil, toStatus(err)
	}
	return encodeStruct(map[string]interface{}{"ranking": mine})
}

func rankingParams(req *structpb.Struct) (models.RankingMetric, models.RankingScope, error) {
	sort, scope := string(models.MetricTime), string(models.ScopeMonth)
	if v, ok := req.GetFields()["sort"]; ok && v.GetStringValue() != "" {
		sort = strings.ToLower(v.GetStringValue())
	}
	if v, ok := req.GetFields()["scope"]; ok && v.GetStringValue() != "" {
		scope = strings.ToLower(v.GetStringValue())
	}

	metric, err := models.ParseMetric(sort)
	if err != nil {
		return "", "", err
	}
	sc, err := models.ParseScope(scope)
	if err != nil {
		return "", "", err
	}
	return metric, sc, nil
}

// encodeStruct converts a JSON-tagged value into a Struct through its JSON
// form so field names match the REST API
func encodeStruct(v map[string]interface{}) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, toStatus(fmt.Errorf("encode response: %w", err))
	}
	var generic map[string]interface{}
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, toStatus(fmt.Errorf("encode response: %w", err))
	}
	out, err := structpb.NewStruct(generic)
	if err != nil {
		return nil, toStatus(fmt.Errorf("encode response: %w", err))
	}
	return out, nil
}

// decodeStruct is the inverse of encodeStruct
func decodeStruct(s *structpb.Struct, v interface{}) error {
	data, err := s.MarshalJSON()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func toStatus(err error) error {
	return models.AsAppError(err).ToGRPCError()
}

type userIDKey struct{}

// UserIDFromContext returns the user authenticated by the auth interceptor
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey{}).(string)
	return id, ok && id != ""
}

// requestIDMetadata carries the request id in both directions, matching the
// X-Request-ID header of the REST API
const requestIDMetadata = "x-request-id"

// requestIDUnaryInterceptor propagates or assigns a request id, echoes it in
// the response header and logs the finished call
func requestIDUnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()

		md, _ := metadata.FromIncomingContext(ctx)
		requestID := ""
		if values := md.Get(requestIDMetadata); len(values) > 0 {
			requestID = values[0]
		}
		if requestID == "" {
			requestID = utils.GenerateID("req")
		}
		ctx = logger.ContextWithRequestID(ctx, requestID)
		_ = grpc.SetHeader(ctx, metadata.Pairs(requestIDMetadata, requestID))

		resp, err := handler(ctx, req)
		logger.GRPC(info.FullMethod, status.Code(err).String(), logger.RequestIDFrom(ctx), int(time.Since(start).Milliseconds()))
		return resp, err
	}
}

// authUnaryInterceptor verifies the bearer token in the "authorization"
// metadata
func authUnaryInterceptor(verifier core.TokenVerifier) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if !strings.HasPrefix(info.FullMethod, "/"+ServiceName+"/") {
			return handler(ctx, req)
		}

		md, _ := metadata.FromIncomingContext(ctx)
		values := md.Get("authorization")
		if len(values) == 0 {
			return nil, models.ErrInvalidToken.ToGRPCError()
		}

		token := strings.TrimSpace(values[0])
		if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
			token = token[7:]
		}
		userID, err := verifier.Verify(token)
		if err != nil {
			return nil, toStatus(err)
		}
		return handler(context.WithValue(ctx, userIDKey{}, userID), req)
	}
}
