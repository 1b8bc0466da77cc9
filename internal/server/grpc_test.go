package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

type grpcHarness struct {
	*testServer
	server *GRPCServer
	conn   *grpc.ClientConn
}

func newGRPCHarness(t *testing.T) *grpcHarness {
	t.Helper()
	ts := newTestServer(t, nil)

	lis := bufconn.Listen(1 << 20)
	srv := NewGRPCServer(ts.engine, ts.verifier, zaptest.NewLogger(t))
	go func() { _ = srv.Serve(lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		conn.Close()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Stop(ctx)
	})
	return &grpcHarness{testServer: ts, server: srv, conn: conn}
}

func (h *grpcHarness) call(user, method string, fields map[string]any) (*structpb.Struct, error) {
	h.t.Helper()
	in, err := structpb.NewStruct(fields)
	require.NoError(h.t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if user != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+h.tokens[user])
	}
	out := new(structpb.Struct)
	err = h.conn.Invoke(ctx, fullMethod(method), in, out)
	return out, err
}

func TestGRPCHealth(t *testing.T) {
	h := newGRPCHarness(t)
	client := healthpb.NewHealthClient(h.conn)

	for _, service := range []string{"", sessionServiceName} {
		resp, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
		require.NoError(t, err)
		assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
	}

	h.server.health.Shutdown()
	resp, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.GetStatus())
}

func TestGRPCSessionService(t *testing.T) {
	h := newGRPCHarness(t)
	id := h.createGame()

	out, err := h.call("", "GetGameInfo", map[string]any{"game_id": id})
	require.NoError(t, err)
	assert.Equal(t, "WAITING_FOR_PLAYERS", out.GetFields()["game"].GetStructValue().GetFields()["status"].GetStringValue())

	_, err = h.call("", "Join", map[string]any{"game_id": id})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	for _, user := range []string{alice, bob} {
		_, err = h.call(user, "Join", map[string]any{"game_id": id})
		require.NoError(t, err)
	}
	for _, user := range []string{alice, bob} {
		_, err = h.call(user, "Mulligan", map[string]any{"game_id": id, "mulligan": false})
		require.NoError(t, err)
	}

	_, err = h.call(bob, "ApplyAction", map[string]any{"game_id": id, "action_type": "DRAW_CARD"})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	_, err = h.call(alice, "ApplyAction", map[string]any{"game_id": id, "player_id": bob, "action_type": "DRAW_CARD"})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	_, err = h.call(alice, "ApplyAction", map[string]any{"game_id": id, "action_type": "CAST_SPELL"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	out, err = h.call(alice, "ApplyAction", map[string]any{
		"game_id": id, "action_type": "DRAW_CARD", "action_data": []any{},
	})
	require.NoError(t, err)
	assert.True(t, out.GetFields()["success"].GetBoolValue())
	events := out.GetFields()["events"].GetListValue().GetValues()
	require.NotEmpty(t, events)
	assert.Equal(t, "CARD_DRAWN", events[0].GetStructValue().GetFields()["type"].GetStringValue())

	_, err = h.call(alice, "ApplyAction", map[string]any{"game_id": id, "action_type": "DRAW_CARD"})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	out, err = h.call("", "GetTurnInfo", map[string]any{"game_id": id})
	require.NoError(t, err)
	assert.True(t, out.GetFields()["is_player1_turn"].GetBoolValue())

	out, err = h.call(alice, "GetState", map[string]any{"game_id": id})
	require.NoError(t, err)
	hand := out.GetFields()["game_state"].GetStructValue().
		GetFields()["players"].GetStructValue().
		GetFields()[alice].GetStructValue().
		GetFields()["hand"].GetListValue().GetValues()
	assert.Len(t, hand, 8)

	_, err = h.call("", "GetTurnInfo", map[string]any{"game_id": "missing"})
	assert.Equal(t, codes.NotFound, status.Code(err))
	_, err = h.call("", "GetTurnInfo", map[string]any{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	out, err = h.call(alice, "ListActiveGames", map[string]any{})
	require.NoError(t, err)
	active := out.GetFields()["games"].GetListValue().GetValues()
	require.Len(t, active, 1)
	assert.Equal(t, id, active[0].GetStructValue().GetFields()["id"].GetStringValue())

	_, err = h.call(alice, "GetReplay", map[string]any{"game_id": id})
	assert.Equal(t, codes.NotFound, status.Code(err), "no recorder configured")

	out, err = h.call(bob, "Surrender", map[string]any{"game_id": id})
	require.NoError(t, err)
	assert.Equal(t, alice, out.GetFields()["game"].GetStructValue().GetFields()["winner_id"].GetStringValue())

	out, err = h.call(alice, "ListActiveGames", map[string]any{})
	require.NoError(t, err)
	assert.Empty(t, out.GetFields()["games"].GetListValue().GetValues())
}

func TestChainUnaryInterceptorsOrder(t *testing.T) {
	var order []string
	mark := func(name string) grpc.UnaryServerInterceptor {
		return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
			order = append(order, name+" in")
			resp, err := handler(ctx, req)
			order = append(order, name+" out")
			return resp, err
		}
	}

	chained := ChainUnaryInterceptors(mark("a"), mark("b"))
	_, err := chained(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/x/y"},
		func(ctx context.Context, req any) (any, error) {
			order = append(order, "handler")
			return nil, nil
		})
	require.NoError(t, err)
	assert.Equal(t, []string{"a in", "b in", "handler", "b out", "a out"}, order)
}

func TestRecoveryInterceptor(t *testing.T) {
	interceptor := RecoveryInterceptor(zaptest.NewLogger(t))
	_, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/x/y"},
		func(ctx context.Context, req any) (any, error) {
			panic("boom")
		})
	assert.Equal(t, codes.Internal, status.Code(err))
}
