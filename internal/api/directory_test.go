package api

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"dogsitter/internal/config"
	"dogsitter/internal/database"
	"dogsitter/internal/models"
	"dogsitter/internal/repository"
	"dogsitter/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

type directoryEnv struct {
	client *DirectoryClient
	db     *database.DB
}

func newDirectoryEnv(t *testing.T, cfg config.APIConfig) *directoryEnv {
	t.Helper()
	logger := zerolog.Nop()

	db, err := database.NewDB(filepath.Join(t.TempDir(), "directory.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	sitters := service.NewSitterService(db, db, db, repository.NewMemoryCache(), time.Minute, &logger)

	lis := bufconn.Listen(1 << 20)
	srv, err := newGRPCServer(cfg, NewSitterDirectory(sitters), lis, &logger)
	require.NoError(t, err)
	go func() { _ = srv.Serve() }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return &directoryEnv{client: NewDirectoryClient(conn), db: db}
}

func (e *directoryEnv) addSitter(t *testing.T, email, first string, blocked bool) *models.DogSitter {
	t.Helper()
	ctx := context.Background()
	u := &models.User{Email: email, PasswordHash: "hash", FirstName: first, LastName: "Petrova", IsActive: true}
	require.NoError(t, e.db.CreateUser(ctx, u))
	s := &models.DogSitter{
		UserID:          u.ID,
		ExperienceYears: 4,
		PriceSmall:      models.Money(80000),
		PriceMedium:     models.Money(90000),
		PriceLarge:      models.Money(120000),
	}
	require.NoError(t, e.db.CreateSitter(ctx, s))
	if blocked {
		require.NoError(t, e.db.SetSitterBlocked(ctx, s.ID, true))
	}
	return s
}

func TestDirectoryOpenAccess(t *testing.T) {
	env := newDirectoryEnv(t, config.APIConfig{})
	visible := env.addSitter(t, "vera@example.com", "Vera", false)
	hidden := env.addSitter(t, "gleb@example.com", "Gleb", true)
	ctx := context.Background()

	list, err := env.client.ListSitters(ctx, &ListSittersRequest{})
	require.NoError(t, err)
	require.Len(t, list.Sitters, 1)
	assert.Equal(t, 1, list.Total)
	assert.Equal(t, visible.ID, list.Sitters[0].ID)
	assert.Equal(t, "Vera", list.Sitters[0].FirstName)
	assert.Equal(t, models.Money(120000), list.Sitters[0].PriceLarge)

	card, err := env.client.GetSitter(ctx, &GetSitterRequest{ID: visible.ID})
	require.NoError(t, err)
	assert.Equal(t, 4, card.ExperienceYears)

	_, err = env.client.GetSitter(ctx, &GetSitterRequest{ID: hidden.ID})
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = env.client.GetSitter(ctx, &GetSitterRequest{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	start := models.Today().AddDays(3)
	avail, err := env.client.GetAvailability(ctx, &GetAvailabilityRequest{
		SitterID:  visible.ID,
		StartDate: start.String(),
		EndDate:   start.AddDays(2).String(),
	})
	require.NoError(t, err)
	assert.True(t, avail.Available)
	assert.Zero(t, avail.Conflicts)

	_, err = env.client.GetAvailability(ctx, &GetAvailabilityRequest{SitterID: visible.ID, StartDate: "tomorrow", EndDate: "2030-01-01"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestDirectoryAPIKeys(t *testing.T) {
	env := newDirectoryEnv(t, config.APIConfig{
		Auth: config.APIAuthConfig{APIKeys: []config.APIClientKey{
			{Key: "full-key", Name: "aggregator"},
			{Key: "list-key", Name: "widget", Permissions: []string{permReadSitters}},
		}},
	})
	sitter := env.addSitter(t, "vera@example.com", "Vera", false)
	ctx := context.Background()

	_, err := env.client.ListSitters(ctx, &ListSittersRequest{})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	bad := metadata.AppendToOutgoingContext(ctx, apiKeyHeaderDefault, "nope")
	_, err = env.client.ListSitters(bad, &ListSittersRequest{})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	widget := metadata.AppendToOutgoingContext(ctx, apiKeyHeaderDefault, "list-key")
	var header metadata.MD
	_, err = env.client.ListSitters(widget, &ListSittersRequest{}, grpc.Header(&header))
	require.NoError(t, err)
	assert.NotEmpty(t, header.Get(requestIDMetadataKey))

	req := &GetAvailabilityRequest{
		SitterID:  sitter.ID,
		StartDate: models.Today().String(),
		EndDate:   models.Today().AddDays(1).String(),
	}
	_, err = env.client.GetAvailability(widget, req)
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	full := metadata.AppendToOutgoingContext(ctx, apiKeyHeaderDefault, "full-key")
	_, err = env.client.GetAvailability(full, req)
	assert.NoError(t, err)
}

func TestDirectoryRateLimit(t *testing.T) {
	env := newDirectoryEnv(t, config.APIConfig{
		RateLimit: config.APIRateLimitConfig{RPS: 0.001, Burst: 2},
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := env.client.ListSitters(ctx, &ListSittersRequest{})
		require.NoError(t, err)
	}
	_, err := env.client.ListSitters(ctx, &ListSittersRequest{})
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))
}

func TestGRPCError(t *testing.T) {
	assert.Equal(t, codes.Internal, status.Code(grpcError(assert.AnError)))
	s, _ := status.FromError(grpcError(assert.AnError))
	assert.Equal(t, "internal error", s.Message())
}
