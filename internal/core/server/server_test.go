package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/groupstore/internal/core/api"
	"github.com/solatis/groupstore/internal/core/auth"
	"github.com/solatis/groupstore/internal/core/config"
	"github.com/solatis/groupstore/internal/group"
	"github.com/solatis/groupstore/internal/storage"
	"github.com/solatis/groupstore/internal/storage/memstore"
)

func usersSpec() group.Spec {
	return group.Spec{
		Name:         "Users",
		SearchFields: []string{"Name"},
		Rules: []group.RuleSpec{
			{Field: "Name", Type: "text", Required: true, Writable: true},
			{Field: "Email", Type: "text", Required: true, Writable: true},
			{Field: "Age", Type: "integer", Writable: true},
		},
		Unique: [][]string{{"Email"}},
	}
}

// startServer serves a memory-backed Users group over bufconn and returns a
// connected client.
func startServer(t *testing.T, authenticator *auth.Authenticator) *grpc.ClientConn {
	t.Helper()

	stores := storage.NewRegistry("main", map[string]storage.StoreConfig{
		"main": {Connector: memstore.ConnectorName},
	})
	stores.Register(memstore.ConnectorName, memstore.Factory)
	t.Cleanup(func() { stores.Close() })

	def, err := usersSpec().Definition()
	require.NoError(t, err)

	perms := map[string]api.Permissions{"Users": api.DefaultPermissions()}
	svc, err := api.NewService(stores, group.NewRegistry(nil, def), perms, nil)
	require.NoError(t, err)

	cfg := config.DefaultServerConfig()
	cfg.RequestTimeout = 5 * time.Second
	srv, err := NewGRPCServer(cfg, NewHandler(svc, nil), authenticator, nil)
	require.NoError(t, err)

	listener := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(listener) }()
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func invoke(ctx context.Context, conn *grpc.ClientConn, method string, req map[string]any) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	err = conn.Invoke(ctx, "/"+ServiceName+"/"+method, in, out)
	return out, err
}

func TestStorage_PushPullSearch(t *testing.T) {
	ctx := context.Background()
	conn := startServer(t, nil)

	out, err := invoke(ctx, conn, "Push", map[string]any{
		"group": "Users",
		"body":  map[string]any{"Name": "ann", "Email": "ann@example.com", "Age": 31},
	})
	require.NoError(t, err)
	id := out.Fields["payload"].GetStructValue().Fields["ID"].GetStringValue()
	require.NotEmpty(t, id)

	out, err = invoke(ctx, conn, "Pull", map[string]any{"group": "Users", "id": id})
	require.NoError(t, err)
	rec := out.Fields["payload"].GetStructValue().AsMap()
	assert.Equal(t, "ann", rec["Name"])
	assert.Equal(t, float64(31), rec["Age"])

	_, err = invoke(ctx, conn, "Push", map[string]any{
		"group": "Users",
		"body":  map[string]any{"Name": "bob", "Email": "bob@example.com"},
	})
	require.NoError(t, err)

	out, err = invoke(ctx, conn, "Pull", map[string]any{"group": "Users", "query": "Search=bo"})
	require.NoError(t, err)
	result := out.Fields["payload"].GetStructValue().AsMap()
	assert.Equal(t, float64(1), result["Total"])
	items := result["Items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "bob", items[0].(map[string]any)["Name"])
}

func TestStorage_ValidationDetails(t *testing.T) {
	ctx := context.Background()
	conn := startServer(t, nil)

	_, err := invoke(ctx, conn, "Push", map[string]any{
		"group": "Users",
		"body":  map[string]any{"Email": "x@example.com", "Age": "old"},
	})
	require.Error(t, err)

	st := status.Convert(err)
	assert.Equal(t, codes.InvalidArgument, st.Code())
	require.Len(t, st.Details(), 1)
	detail, ok := st.Details()[0].(*structpb.Struct)
	require.True(t, ok)
	assert.Equal(t, map[string]any{
		"results": map[string]any{"Name": "IsRequired", "Age": "InvalidValue"},
	}, detail.AsMap())
}

func TestStorage_Errors(t *testing.T) {
	ctx := context.Background()
	conn := startServer(t, nil)

	tests := []struct {
		name   string
		method string
		req    map[string]any
		want   codes.Code
	}{
		{"missing group", "Pull", map[string]any{}, codes.InvalidArgument},
		{"unknown group", "Pull", map[string]any{"group": "Nope"}, codes.NotFound},
		{"unknown store", "Pull", map[string]any{"group": "Users", "store": "other"}, codes.NotFound},
		{"missing record", "Pull", map[string]any{"group": "Users", "id": "missing"}, codes.NotFound},
		{"bad query", "Pull", map[string]any{"group": "Users", "query": "LimitBy=ten"}, codes.InvalidArgument},
		{"push with id", "Push", map[string]any{"group": "Users", "id": "x"}, codes.Unimplemented},
		{"update without id", "Update", map[string]any{"group": "Users"}, codes.Unimplemented},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := invoke(ctx, conn, tt.method, tt.req)
			assert.Equal(t, tt.want, status.Code(err), "error: %v", err)
		})
	}
}

func TestStorage_Authentication(t *testing.T) {
	authenticator, err := auth.NewAuthenticator(map[string]string{"billing": "key-1"}, nil)
	require.NoError(t, err)
	conn := startServer(t, authenticator)

	_, err = invoke(context.Background(), conn, "Pull", map[string]any{"group": "Users"})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	ctx := metadata.AppendToOutgoingContext(context.Background(), auth.MetadataKey, "key-1")
	_, err = invoke(ctx, conn, "Pull", map[string]any{"group": "Users"})
	assert.NoError(t, err)
}
