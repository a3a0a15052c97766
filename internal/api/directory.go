package api

import (
	"context"
	"errors"
	"strings"

	"dogsitter/internal/domain"
	"dogsitter/internal/models"
	"dogsitter/internal/service"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	directoryServiceName      = "dogsitter.directory.v1.SitterDirectory"
	directoryListSitters      = "/" + directoryServiceName + "/ListSitters"
	directoryGetSitter        = "/" + directoryServiceName + "/GetSitter"
	directoryGetAvailability  = "/" + directoryServiceName + "/GetAvailability"
	permReadSitters           = "read:sitters"
	permReadAvailability      = "read:availability"
	directoryDefaultPageLimit = 50
)

type ListSittersRequest struct {
	Name        string   `json:"name,omitempty"`
	MinRating   *float64 `json:"min_rating,omitempty"`
	IsAvailable *bool    `json:"is_available,omitempty"`
	SortBy      string   `json:"sort_by,omitempty"`
	Limit       int      `json:"limit,omitempty"`
	Offset      int      `json:"offset,omitempty"`
}

// SitterCard is the public part of a sitter profile shared with partners.
type SitterCard struct {
	ID              int64        `json:"id"`
	FirstName       string       `json:"first_name"`
	LastName        string       `json:"last_name"`
	ExperienceYears int          `json:"experience_years"`
	Rating          float64      `json:"rating"`
	TotalReviews    int          `json:"total_reviews"`
	PriceSmall      models.Money `json:"price_small"`
	PriceMedium     models.Money `json:"price_medium"`
	PriceLarge      models.Money `json:"price_large"`
}

type ListSittersResponse struct {
	Sitters []SitterCard `json:"sitters"`
	Total   int          `json:"total"`
}

type GetSitterRequest struct {
	ID int64 `json:"id"`
}

type GetAvailabilityRequest struct {
	SitterID  int64  `json:"sitter_id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type GetAvailabilityResponse struct {
	SitterID  int64  `json:"sitter_id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Available bool   `json:"available"`
	Conflicts int    `json:"conflicts"`
}

// SitterDirectoryServer is implemented by the directory service.
type SitterDirectoryServer interface {
	ListSitters(ctx context.Context, req *ListSittersRequest) (*ListSittersResponse, error)
	GetSitter(ctx context.Context, req *GetSitterRequest) (*SitterCard, error)
	GetAvailability(ctx context.Context, req *GetAvailabilityRequest) (*GetAvailabilityResponse, error)
}

// SitterDirectory answers partner lookups over gRPC. Partners see the same
// directory as anonymous visitors: blocked sitters are hidden.
type SitterDirectory struct {
	sitters *service.SitterService
}

func NewSitterDirectory(sitters *service.SitterService) *SitterDirectory {
	return &SitterDirectory{sitters: sitters}
}

func sitterCard(s *models.DogSitter) SitterCard {
	return SitterCard{
		ID:              s.ID,
		FirstName:       s.FirstName,
		LastName:        s.LastName,
		ExperienceYears: s.ExperienceYears,
		Rating:          s.Rating,
		TotalReviews:    s.TotalReviews,
		PriceSmall:      s.PriceSmall,
		PriceMedium:     s.PriceMedium,
		PriceLarge:      s.PriceLarge,
	}
}

func (d *SitterDirectory) ListSitters(ctx context.Context, req *ListSittersRequest) (*ListSittersResponse, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = directoryDefaultPageLimit
	}
	filter := models.SitterFilter{
		Name:        req.Name,
		MinRating:   req.MinRating,
		IsAvailable: req.IsAvailable,
		SortBy:      req.SortBy,
		Limit:       limit,
		Offset:      req.Offset,
	}
	sitters, total, err := d.sitters.List(ctx, domain.Actor{}, filter)
	if err != nil {
		return nil, grpcError(err)
	}

	out := make([]SitterCard, 0, len(sitters))
	for i := range sitters {
		out = append(out, sitterCard(&sitters[i]))
	}
	return &ListSittersResponse{Sitters: out, Total: total}, nil
}

func (d *SitterDirectory) GetSitter(ctx context.Context, req *GetSitterRequest) (*SitterCard, error) {
	if req.ID <= 0 {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}
	sitter, err := d.sitters.Get(ctx, domain.Actor{}, req.ID)
	if err != nil {
		return nil, grpcError(err)
	}
	card := sitterCard(sitter)
	return &card, nil
}

func (d *SitterDirectory) GetAvailability(ctx context.Context, req *GetAvailabilityRequest) (*GetAvailabilityResponse, error) {
	if req.SitterID <= 0 {
		return nil, status.Error(codes.InvalidArgument, "sitter_id is required")
	}
	start, err := models.ParseDate(strings.TrimSpace(req.StartDate))
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid start_date; expected YYYY-MM-DD")
	}
	end, err := models.ParseDate(strings.TrimSpace(req.EndDate))
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid end_date; expected YYYY-MM-DD")
	}

	if _, err := d.sitters.Get(ctx, domain.Actor{}, req.SitterID); err != nil {
		return nil, grpcError(err)
	}
	availability, err := d.sitters.Availability(ctx, req.SitterID, start, end)
	if err != nil {
		return nil, grpcError(err)
	}
	return &GetAvailabilityResponse{
		SitterID:  req.SitterID,
		StartDate: start.String(),
		EndDate:   end.String(),
		Available: availability.Available,
		Conflicts: availability.Conflicts,
	}, nil
}

// grpcError maps service errors onto status codes.
func grpcError(err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		return status.Error(codes.Unauthenticated, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, domain.ErrRateLimited):
		return status.Error(codes.ResourceExhausted, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

func directoryHandler[Req any](call func(srv SitterDirectoryServer, ctx context.Context, req *Req) (any, error), method string) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(SitterDirectoryServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(SitterDirectoryServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// directoryServiceDesc describes the service for grpc.Server.RegisterService.
var directoryServiceDesc = grpc.ServiceDesc{
	ServiceName: directoryServiceName,
	HandlerType: (*SitterDirectoryServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "ListSitters",
			Handler: directoryHandler(func(srv SitterDirectoryServer, ctx context.Context, req *ListSittersRequest) (any, error) {
				return srv.ListSitters(ctx, req)
			}, directoryListSitters),
		},
		{
			MethodName: "GetSitter",
			Handler: directoryHandler(func(srv SitterDirectoryServer, ctx context.Context, req *GetSitterRequest) (any, error) {
				return srv.GetSitter(ctx, req)
			}, directoryGetSitter),
		},
		{
			MethodName: "GetAvailability",
			Handler: directoryHandler(func(srv SitterDirectoryServer, ctx context.Context, req *GetAvailabilityRequest) (any, error) {
				return srv.GetAvailability(ctx, req)
			}, directoryGetAvailability),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "dogsitter/directory/v1/directory.json",
}

// RegisterSitterDirectoryServer registers srv on s.
func RegisterSitterDirectoryServer(s grpc.ServiceRegistrar, srv SitterDirectoryServer) {
	s.RegisterService(&directoryServiceDesc, srv)
}

// DirectoryClient calls the directory service with the JSON codec.
type DirectoryClient struct {
	cc grpc.ClientConnInterface
}

func NewDirectoryClient(cc grpc.ClientConnInterface) *DirectoryClient {
	return &DirectoryClient{cc: cc}
}

func (c *DirectoryClient) ListSitters(ctx context.Context, req *ListSittersRequest, opts ...grpc.CallOption) (*ListSittersResponse, error) {
	out := new(ListSittersResponse)
	if err := c.invoke(ctx, directoryListSitters, req, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *DirectoryClient) GetSitter(ctx context.Context, req *GetSitterRequest, opts ...grpc.CallOption) (*SitterCard, error) {
	out := new(SitterCard)
	if err := c.invoke(ctx, directoryGetSitter, req, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *DirectoryClient) GetAvailability(ctx context.Context, req *GetAvailabilityRequest, opts ...grpc.CallOption) (*GetAvailabilityResponse, error) {
	out := new(GetAvailabilityResponse)
	if err := c.invoke(ctx, directoryGetAvailability, req, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *DirectoryClient) invoke(ctx context.Context, method string, req, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(jsonCodecName)}, opts...)
	return c.cc.Invoke(ctx, method, req, out, opts...)
}
