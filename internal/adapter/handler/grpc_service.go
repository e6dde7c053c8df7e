package handler

import (
	"context"
	"encoding/json"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const AuctionServiceName = "auction.v1.AuctionService"

// Messages travel as JSON; clients select the codec with CallContentSubtype.
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return "json"
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type CreateAuctionRequest struct {
	ItemName    string    `json:"item_name"`
	Description string    `json:"description"`
	StartingBid string    `json:"starting_bid"`
	ClosingTime time.Time `json:"closing_time"`
}

type GetAuctionRequest struct {
	ID string `json:"id"`
}

type ListAuctionsRequest struct {
	ActiveOnly bool   `json:"active_only"`
	Seller     string `json:"seller,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

type ListAuctionsResponse struct {
	Auctions []AuctionView `json:"auctions"`
}

type PlaceBidRequest struct {
	AuctionID string `json:"auction_id"`
	Amount    string `json:"amount"`
}

type PlaceBidResponse struct {
	Success    bool         `json:"success"`
	Outcome    string       `json:"outcome"`
	Message    string       `json:"message"`
	CurrentBid string       `json:"current_bid"`
	Winner     string       `json:"winner,omitempty"`
	Auction    *AuctionView `json:"auction,omitempty"`
}

type CloseAuctionRequest struct {
	ID string `json:"id"`
}

type CloseAuctionResponse struct {
	Closed        bool        `json:"closed"`
	AlreadyClosed bool        `json:"already_closed"`
	StillOpen     bool        `json:"still_open"`
	Winner        string      `json:"winner"`
	Auction       AuctionView `json:"auction"`
}

type AuctionServiceServer interface {
	CreateAuction(context.Context, *CreateAuctionRequest) (*AuctionView, error)
	GetAuction(context.Context, *GetAuctionRequest) (*AuctionView, error)
	ListAuctions(context.Context, *ListAuctionsRequest) (*ListAuctionsResponse, error)
	PlaceBid(context.Context, *PlaceBidRequest) (*PlaceBidResponse, error)
	CloseAuction(context.Context, *CloseAuctionRequest) (*CloseAuctionResponse, error)
}

func unaryMethod[Req, Resp any](name string, call func(AuctionServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + AuctionServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(AuctionServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(AuctionServiceServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var AuctionServiceDesc = grpc.ServiceDesc{
	ServiceName: AuctionServiceName,
	HandlerType: (*AuctionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("CreateAuction", AuctionServiceServer.CreateAuction),
		unaryMethod("GetAuction", AuctionServiceServer.GetAuction),
		unaryMethod("ListAuctions", AuctionServiceServer.ListAuctions),
		unaryMethod("PlaceBid", AuctionServiceServer.PlaceBid),
		unaryMethod("CloseAuction", AuctionServiceServer.CloseAuction),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "auction/v1/auction.proto",
}

func RegisterAuctionServiceServer(s grpc.ServiceRegistrar, srv AuctionServiceServer) {
	s.RegisterService(&AuctionServiceDesc, srv)
}

// AuctionClient calls AuctionService over the JSON codec.
type AuctionClient struct {
	cc grpc.ClientConnInterface
}

func NewAuctionClient(cc grpc.ClientConnInterface) *AuctionClient {
	return &AuctionClient{cc: cc}
}

func (c *AuctionClient) invoke(ctx context.Context, method string, in, out interface{}, opts ...grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(jsonCodec{}.Name())}, opts...)
	return c.cc.Invoke(ctx, "/"+AuctionServiceName+"/"+method, in, out, opts...)
}

func (c *AuctionClient) CreateAuction(ctx context.Context, in *CreateAuctionRequest, opts ...grpc.CallOption) (*AuctionView, error) {
	out := new(AuctionView)
	if err := c.invoke(ctx, "CreateAuction", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AuctionClient) GetAuction(ctx context.Context, in *GetAuctionRequest, opts ...grpc.CallOption) (*AuctionView, error) {
	out := new(AuctionView)
	if err := c.invoke(ctx, "GetAuction", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AuctionClient) ListAuctions(ctx context.Context, in *ListAuctionsRequest, opts ...grpc.CallOption) (*ListAuctionsResponse, error) {
	out := new(ListAuctionsResponse)
	if err := c.invoke(ctx, "ListAuctions", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AuctionClient) PlaceBid(ctx context.Context, in *PlaceBidRequest, opts ...grpc.CallOption) (*PlaceBidResponse, error) {
	out := new(PlaceBidResponse)
	if err := c.invoke(ctx, "PlaceBid", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AuctionClient) CloseAuction(ctx context.Context, in *CloseAuctionRequest, opts ...grpc.CallOption) (*CloseAuctionResponse, error) {
	out := new(CloseAuctionResponse)
	if err := c.invoke(ctx, "CloseAuction", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// WithToken attaches a bearer token to outgoing calls.
func WithToken(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
}

var publicMethods = map[string]bool{
	"/" + AuctionServiceName + "/GetAuction":   true,
	"/" + AuctionServiceName + "/ListAuctions": true,
}

// IdentityInterceptor verifies the bearer token in the authorization metadata
// for every method that acts on behalf of a user.
func IdentityInterceptor(verifier TokenVerifier) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if publicMethods[info.FullMethod] {
			return handler(ctx, req)
		}

		md, _ := metadata.FromIncomingContext(ctx)
		var token string
		if values := md.Get("authorization"); len(values) > 0 {
			token = bearerToken(values[0])
		}
		if token == "" {
			return nil, status.Error(codes.Unauthenticated, "authentication token required")
		}

		identity, err := verifier.Identity(token)
		if err != nil {
			return nil, status.Error(codes.PermissionDenied, "invalid or expired token")
		}

		return handler(WithIdentity(ctx, identity), req)
	}
}
