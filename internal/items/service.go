package items

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nexusauctions/nexus-backend/pkg/db/models"
	"github.com/nexusauctions/nexus-backend/pkg/enums"
	pkgerrors "github.com/nexusauctions/nexus-backend/pkg/errors"
	"github.com/nexusauctions/nexus-backend/pkg/pagination"
)

// Service exposes the catalog operations the bidding flows depend on.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.AuctionItem, error)
	Get(ctx context.Context, id uuid.UUID) (*models.AuctionItem, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	ListBids(ctx context.Context, itemID uuid.UUID, params pagination.Params) (*BidListResult, error)
}

// CreateInput captures a new listing from a seller.
type CreateInput struct {
	SellerID       uuid.UUID
	Category       string
	Title          string
	Description    string
	Condition      enums.ItemCondition
	SalesType      enums.SalesType
	InitialPrice   decimal.Decimal
	BuyNowPrice    *decimal.Decimal
	ReservePrice   decimal.Decimal
	AuctionEndTime *time.Time
}

// ListResult wraps returned items and the cursor for the next page.
type ListResult struct {
	Items  []models.AuctionItem `json:"items"`
	Cursor string               `json:"cursor"`
}

// BidListResult wraps an item's bid history page.
type BidListResult struct {
	Bids   []models.Bid `json:"bids"`
	Cursor string       `json:"cursor"`
}

type service struct {
	repo Repository
}

// NewService wires the items service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "items repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.AuctionItem, error) {
	if input.SellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	if input.Title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title required")
	}
	if !input.SalesType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid sales type")
	}
	if !input.Condition.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid condition")
	}
	if input.InitialPrice.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "initial price cannot be negative")
	}
	if input.SalesType.Auctionable() && input.AuctionEndTime == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "auction end time required for auction listings")
	}

	item := &models.AuctionItem{
		ID:             uuid.New(),
		SellerID:       input.SellerID,
		Category:       input.Category,
		Title:          input.Title,
		Description:    input.Description,
		Condition:      input.Condition,
		SalesType:      input.SalesType,
		InitialPrice:   input.InitialPrice,
		BuyNowPrice:    input.BuyNowPrice,
		ReservePrice:   input.ReservePrice,
		AuctionEndTime: input.AuctionEndTime,
		Status:         enums.ItemStatusActive,
	}
	if err := s.repo.Create(ctx, item); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create item")
	}
	return item, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.AuctionItem, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}
	return s.repo.FindByID(ctx, id)
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	rows, next, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list items")
	}
	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: rows, Cursor: cursor}, nil
}

func (s *service) ListBids(ctx context.Context, itemID uuid.UUID, params pagination.Params) (*BidListResult, error) {
	if itemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}
	rows, next, err := s.repo.ListBids(ctx, itemID, params)
	if err != nil {
		return nil, err
	}
	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &BidListResult{Bids: rows, Cursor: cursor}, nil
}
