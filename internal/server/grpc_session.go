package server

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/uaarena/session-engine/internal/game"
	"github.com/uaarena/session-engine/internal/game/rules"
)

const sessionServiceName = "ua.session.v1.SessionService"

// SessionServiceServer is the gRPC mirror of the HTTP game routes. Requests
// and responses are google.protobuf.Struct documents carrying the same JSON
// fields as the HTTP bodies.
type SessionServiceServer interface {
	GetTurnInfo(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetGameInfo(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetState(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Join(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Mulligan(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ApplyAction(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Surrender(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListActiveGames(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetReplay(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func fullMethod(name string) string {
	return "/" + sessionServiceName + "/" + name
}

// authenticatedMethods act on behalf of the token holder.
var authenticatedMethods = map[string]bool{
	fullMethod("GetState"):    true,
	fullMethod("Join"):        true,
	fullMethod("Mulligan"):    true,
	fullMethod("ApplyAction"): true,
	fullMethod("Surrender"):   true,

	fullMethod("ListActiveGames"): true,
	fullMethod("GetReplay"):       true,
}

type structMethod func(SessionServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func structHandler(name string, call structMethod) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(SessionServiceServer), ctx, req.(*structpb.Struct))
			}
			if interceptor == nil {
				return handler(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var sessionServiceDesc = grpc.ServiceDesc{
	ServiceName: sessionServiceName,
	HandlerType: (*SessionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		structHandler("GetTurnInfo", SessionServiceServer.GetTurnInfo),
		structHandler("GetGameInfo", SessionServiceServer.GetGameInfo),
		structHandler("GetState", SessionServiceServer.GetState),
		structHandler("Join", SessionServiceServer.Join),
		structHandler("Mulligan", SessionServiceServer.Mulligan),
		structHandler("ApplyAction", SessionServiceServer.ApplyAction),
		structHandler("Surrender", SessionServiceServer.Surrender),
		structHandler("ListActiveGames", SessionServiceServer.ListActiveGames),
		structHandler("GetReplay", SessionServiceServer.GetReplay),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ua/session/v1/session.proto",
}

func RegisterSessionService(s grpc.ServiceRegistrar, srv SessionServiceServer) {
	s.RegisterService(&sessionServiceDesc, srv)
}

// SessionService implements SessionServiceServer on top of the engine.
type SessionService struct {
	engine *game.Engine
}

func NewSessionService(engine *game.Engine) *SessionService {
	return &SessionService{engine: engine}
}

// toStruct converts any JSON-encodable value into a Struct by way of its
// JSON form, so field names match the HTTP API.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	return out, nil
}

func gameID(req *structpb.Struct) (string, error) {
	id := strings.TrimSpace(req.GetFields()["game_id"].GetStringValue())
	if id == "" {
		return "", status.Error(codes.InvalidArgument, "game_id is required")
	}
	return id, nil
}

// actor returns the token holder, rejecting a player_id naming someone else.
func actor(ctx context.Context, req *structpb.Struct) (string, error) {
	uid := contextUserID(ctx)
	if uid == "" {
		return "", status.Error(codes.Unauthenticated, "authorization required")
	}
	if named := req.GetFields()["player_id"].GetStringValue(); named != "" && named != uid {
		return "", status.Error(codes.PermissionDenied, "player_id does not match token")
	}
	return uid, nil
}

func resultStruct(res *game.Result, err error) (*structpb.Struct, error) {
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(map[string]any{
		"success":    true,
		"game":       res.Game,
		"game_state": res.State,
		"events":     res.Events,
	})
}

func (s *SessionService) GetTurnInfo(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := gameID(req)
	if err != nil {
		return nil, err
	}
	info, err := s.engine.TurnInfo(id)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(info)
}

func (s *SessionService) GetGameInfo(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := gameID(req)
	if err != nil {
		return nil, err
	}
	info, err := s.engine.GameInfo(id)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(info)
}

func (s *SessionService) GetState(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := gameID(req)
	if err != nil {
		return nil, err
	}
	player, err := actor(ctx, req)
	if err != nil {
		return nil, err
	}
	return resultStruct(s.engine.GetState(id, player))
}

func (s *SessionService) Join(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := gameID(req)
	if err != nil {
		return nil, err
	}
	player, err := actor(ctx, req)
	if err != nil {
		return nil, err
	}
	return resultStruct(s.engine.Join(ctx, id, player))
}

func (s *SessionService) Mulligan(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := gameID(req)
	if err != nil {
		return nil, err
	}
	player, err := actor(ctx, req)
	if err != nil {
		return nil, err
	}
	reshuffle := req.GetFields()["mulligan"].GetBoolValue()
	return resultStruct(s.engine.Mulligan(ctx, id, player, reshuffle))
}

func (s *SessionService) ApplyAction(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := gameID(req)
	if err != nil {
		return nil, err
	}
	player, err := actor(ctx, req)
	if err != nil {
		return nil, err
	}

	fields := req.GetFields()
	actionType := fields["action_type"].GetStringValue()
	if actionType == "" {
		return nil, status.Error(codes.InvalidArgument, "action_type is required")
	}

	var data []any
	if v, ok := fields["action_data"]; ok {
		switch kind := v.GetKind().(type) {
		case *structpb.Value_ListValue:
			data = kind.ListValue.AsSlice()
		case *structpb.Value_NullValue:
		default:
			return nil, grpcError(fmt.Errorf("%w: action_data must be a list", game.ErrInvalidActionData))
		}
	}

	return resultStruct(s.engine.Apply(ctx, id, player, rules.ActionType(actionType), data))
}

func (s *SessionService) Surrender(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := gameID(req)
	if err != nil {
		return nil, err
	}
	player, err := actor(ctx, req)
	if err != nil {
		return nil, err
	}
	return resultStruct(s.engine.Surrender(ctx, id, player))
}

func (s *SessionService) ListActiveGames(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	player, err := actor(ctx, req)
	if err != nil {
		return nil, err
	}
	return toStruct(map[string]any{"games": s.engine.ActiveGames(player)})
}

func (s *SessionService) GetReplay(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := gameID(req)
	if err != nil {
		return nil, err
	}
	player, err := actor(ctx, req)
	if err != nil {
		return nil, err
	}
	frames, err := s.engine.Replay(id, player)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(map[string]any{"frames": frames})
}
