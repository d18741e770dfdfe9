// Package holders resolves the depositor population of the fund: holders of the node LSU plus
// LSU posted as collateral on the lending protocol.
package holders

import (
	"context"
	"fmt"
	"sort"

	"github.com/hedgefund-labs/fund-settler/pkg/clients/gateway"
	"github.com/hedgefund-labs/fund-settler/pkg/utils"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	nftChunkSize     = 100
	maxParallelCalls = 4

	holderTypeFungible = "FungibleResource"
	collateralsField   = "collaterals"
	amountField        = "amount"
)

type Gateway interface {
	GetResourceHoldersPage(ctx context.Context, resource string, cursor *string) (*gateway.ResourceHoldersPage, error)
	GetNonFungibleTotalMinted(ctx context.Context, resource string) (int64, error)
	GetNonFungibleData(ctx context.Context, resource string, ids []string) ([]gateway.NonFungibleData, error)
	GetNonFungibleLocations(ctx context.Context, resource string, ids []string) ([]gateway.NonFungibleLocation, error)
}

type Source struct {
	gateway               Gateway
	nodeLsuResource       string
	collateralNftResource string
	minBalance            decimal.Decimal
	logger                *zap.Logger
}

func NewSource(gw Gateway, nodeLsuResource string, collateralNftResource string, minBalance decimal.Decimal, l *zap.Logger) *Source {
	return &Source{
		gateway:               gw,
		nodeLsuResource:       nodeLsuResource,
		collateralNftResource: collateralNftResource,
		minBalance:            minBalance,
		logger:                l,
	}
}

// GetNodeLsuHolders pages through every holder of the node LSU and keeps account holders only.
func (s *Source) GetNodeLsuHolders(ctx context.Context) (map[string]decimal.Decimal, error) {
	holders := make(map[string]decimal.Decimal)
	var cursor *string
	processed := 0
	for {
		page, err := s.gateway.GetResourceHoldersPage(ctx, s.nodeLsuResource, cursor)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch node lsu holders: %w", err)
		}
		for _, item := range page.Items {
			if item.Type != holderTypeFungible || !utils.IsAccountAddress(item.HolderAddress) {
				continue
			}
			amount, err := decimal.NewFromString(item.Amount)
			if err != nil {
				return nil, fmt.Errorf("invalid holder amount '%s' for %s: %w", item.Amount, item.HolderAddress, err)
			}
			holders[item.HolderAddress] = amount
		}
		processed += len(page.Items)
		s.logger.Sugar().Debugw("Processed node lsu holders page",
			zap.Int("processed", processed),
			zap.Int64("total", page.TotalCount),
		)

		if page.NextCursor == nil || *page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}
	s.logger.Sugar().Infow("Fetched node lsu holders", zap.Int("holders", len(holders)))
	return holders, nil
}

func collateralNftIds(minted int64) []string {
	ids := make([]string, 0, minted)
	for i := int64(1); i <= minted; i++ {
		ids = append(ids, fmt.Sprintf("#%d#", i))
	}
	return ids
}

// lsuCollateralAmount returns the amount of resource posted in the collateral NFT, if any.
func lsuCollateralAmount(nft gateway.NonFungibleData, resource string) (decimal.Decimal, bool, error) {
	data := nft.Data.ProgrammaticJson
	if nft.IsBurned || data.Kind != "Tuple" {
		return decimal.Zero, false, nil
	}
	collaterals := data.Field(collateralsField)
	if collaterals == nil || collaterals.Kind != "Map" {
		return decimal.Zero, false, nil
	}
	for _, entry := range collaterals.Entries {
		if entry.Key.Kind != "Reference" || entry.Key.String() != resource || entry.Value.Kind != "Tuple" {
			continue
		}
		field := entry.Value.Field(amountField)
		if field == nil || field.Kind != "Decimal" {
			continue
		}
		amount, err := decimal.NewFromString(field.String())
		if err != nil {
			return decimal.Zero, false, fmt.Errorf("invalid collateral amount '%s' in %s: %w", field.String(), nft.NonFungibleId, err)
		}
		return amount, true, nil
	}
	return decimal.Zero, false, nil
}

// fetchChunks calls fn for every chunk of ids with bounded parallelism and returns the results in chunk order.
func fetchChunks[T any](ctx context.Context, ids []string, fn func(ctx context.Context, chunk []string) ([]T, error)) ([]T, error) {
	chunks := utils.Chunk(ids, nftChunkSize)
	results := make([][]T, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelCalls)
	for i, chunk := range chunks {
		i, chunk := i, chunk
		g.Go(func() error {
			res, err := fn(gctx, chunk)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]T, 0, len(ids))
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

// GetCollateralHolders returns the LSU posted as lending collateral, summed per owning account.
// It returns an empty map when no collateral resource is configured.
func (s *Source) GetCollateralHolders(ctx context.Context) (map[string]decimal.Decimal, error) {
	owners := make(map[string]decimal.Decimal)
	if s.collateralNftResource == "" {
		return owners, nil
	}

	minted, err := s.gateway.GetNonFungibleTotalMinted(ctx, s.collateralNftResource)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch collateral nft supply: %w", err)
	}
	if minted <= 0 {
		return nil, fmt.Errorf("collateral nft resource %s has no minted ids", s.collateralNftResource)
	}

	nfts, err := fetchChunks(ctx, collateralNftIds(minted), func(ctx context.Context, chunk []string) ([]gateway.NonFungibleData, error) {
		return s.gateway.GetNonFungibleData(ctx, s.collateralNftResource, chunk)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch collateral nft data: %w", err)
	}

	amounts := make(map[string]decimal.Decimal)
	for _, nft := range nfts {
		amount, ok, err := lsuCollateralAmount(nft, s.nodeLsuResource)
		if err != nil {
			return nil, err
		}
		if ok {
			amounts[nft.NonFungibleId] = amount
		}
	}
	if len(amounts) == 0 {
		return owners, nil
	}

	ids := make([]string, 0, len(amounts))
	for id := range amounts {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	locations, err := fetchChunks(ctx, ids, func(ctx context.Context, chunk []string) ([]gateway.NonFungibleLocation, error) {
		return s.gateway.GetNonFungibleLocations(ctx, s.collateralNftResource, chunk)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch collateral nft locations: %w", err)
	}

	for _, location := range locations {
		owner := location.OwningVaultGlobalAncestorAddress
		amount, ok := amounts[location.NonFungibleId]
		if owner == "" || !ok {
			continue
		}
		owners[owner] = owners[owner].Add(amount)
	}
	s.logger.Sugar().Infow("Fetched collateral lsu holders",
		zap.Int("nfts", len(amounts)),
		zap.Int("owners", len(owners)),
	)
	return owners, nil
}

// Merge adds collateral amounts to the direct holdings and drops every account whose combined
// amount does not exceed minBalance. Amounts are returned as decimal strings.
func Merge(direct map[string]decimal.Decimal, collateral map[string]decimal.Decimal, minBalance decimal.Decimal) map[string]string {
	combined := make(map[string]decimal.Decimal, len(direct)+len(collateral))
	for address, amount := range direct {
		combined[address] = amount
	}
	for address, amount := range collateral {
		combined[address] = combined[address].Add(amount)
	}

	out := make(map[string]string, len(combined))
	for address, amount := range combined {
		if amount.GreaterThan(minBalance) {
			out[address] = amount.String()
		}
	}
	return out
}

// GetHolders returns every depositor with its combined LSU amount.
func (s *Source) GetHolders(ctx context.Context) (map[string]string, error) {
	direct, err := s.GetNodeLsuHolders(ctx)
	if err != nil {
		return nil, err
	}
	collateral, err := s.GetCollateralHolders(ctx)
	if err != nil {
		return nil, err
	}
	merged := Merge(direct, collateral, s.minBalance)
	s.logger.Sugar().Infow("Resolved depositors",
		zap.Int("direct", len(direct)),
		zap.Int("collateral", len(collateral)),
		zap.Int("depositors", len(merged)),
	)
	return merged, nil
}
