// Package gateway is a JSON client for the ledger gateway API.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	holdersPageLimit = 1000
	userAgent        = "fund-settler"
)

var (
	ErrValidatorNotFound   = errors.New("validator not found")
	ErrNonFungibleNotFound = errors.New("non fungible not found")
	ErrEventNotFound       = errors.New("transaction event not found")
)

type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *zap.Logger
}

func NewClient(baseURL string, logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: baseURL,
		logger:  logger,
	}
}

func (c *Client) post(ctx context.Context, path string, request interface{}, response interface{}) error {
	payload, err := json.Marshal(request)
	if err != nil {
		return errors.Wrap(err, "failed to marshal request")
	}

	url := fmt.Sprintf("%s%s", c.baseURL, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	c.logger.Sugar().Debugw("Making gateway request", zap.String("url", url))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "failed to make request to %s", path)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response body")
	}

	if resp.StatusCode != http.StatusOK {
		var errResp errorResponse
		if jsonErr := json.Unmarshal(body, &errResp); jsonErr == nil && errResp.Message != "" {
			return fmt.Errorf("gateway request %s failed with status %d: %s", path, resp.StatusCode, errResp.Message)
		}
		return fmt.Errorf("gateway request %s failed with status %d: %s", path, resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, response); err != nil {
		return errors.Wrapf(err, "failed to unmarshal %s response", path)
	}
	return nil
}

type ValidatorStakeStats struct {
	Address string
	// LockedOwnerStakeUnits is the amount still locked and eligible to start an unlock.
	LockedOwnerStakeUnits decimal.Decimal
	// PendingOwnerStakeUnitUnlock is the amount currently inside the unlock delay.
	PendingOwnerStakeUnitUnlock decimal.Decimal
	// UnlockedOwnerStakeUnits is the amount whose unlock delay has elapsed.
	UnlockedOwnerStakeUnits decimal.Decimal
	ClaimNftResource        string
	Epoch                   int64
}

func parseAmount(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(raw)
}

func (c *Client) GetValidatorStakeStats(ctx context.Context, validator string) (*ValidatorStakeStats, error) {
	var cursor *string
	for {
		request := map[string]interface{}{}
		if cursor != nil {
			request["cursor"] = *cursor
		}
		var res validatorsListResponse
		if err := c.post(ctx, "/state/validators/list", request, &res); err != nil {
			return nil, err
		}

		for _, v := range res.Validators.Items {
			if v.Address != validator {
				continue
			}
			return buildValidatorStakeStats(v, res.LedgerState.Epoch)
		}

		if res.Validators.NextCursor == nil || *res.Validators.NextCursor == "" {
			return nil, errors.Wrap(ErrValidatorNotFound, validator)
		}
		cursor = res.Validators.NextCursor
	}
}

func buildValidatorStakeStats(v validatorItem, epoch int64) (*ValidatorStakeStats, error) {
	locked, err := parseAmount(v.LockedOwnerStakeUnitVault.Balance)
	if err != nil {
		return nil, errors.Wrap(err, "invalid locked owner stake unit balance")
	}
	pending, err := parseAmount(v.PendingOwnerStakeUnitUnlockVault.Balance)
	if err != nil {
		return nil, errors.Wrap(err, "invalid pending owner stake unit balance")
	}
	unlocked, err := parseAmount(v.State.AlreadyUnlockedOwnerStakeUnitAmount)
	if err != nil {
		return nil, errors.Wrap(err, "invalid already unlocked owner stake unit amount")
	}
	for _, w := range v.State.PendingOwnerStakeUnitWithdrawals {
		if w.EpochNumber > epoch {
			continue
		}
		amount, err := parseAmount(w.StakeUnitAmount)
		if err != nil {
			return nil, errors.Wrap(err, "invalid pending withdrawal amount")
		}
		unlocked = unlocked.Add(amount)
	}

	return &ValidatorStakeStats{
		Address:                     v.Address,
		LockedOwnerStakeUnits:       locked,
		PendingOwnerStakeUnitUnlock: pending,
		UnlockedOwnerStakeUnits:     unlocked,
		ClaimNftResource:            v.State.ClaimNft,
		Epoch:                       epoch,
	}, nil
}

// GetFungibleBalance sums every vault of resource owned by address.
func (c *Client) GetFungibleBalance(ctx context.Context, address string, resource string) (decimal.Decimal, error) {
	total := decimal.Zero
	var cursor *string
	for {
		request := map[string]interface{}{
			"address":          address,
			"resource_address": resource,
		}
		if cursor != nil {
			request["cursor"] = *cursor
		}
		var res fungibleVaultsResponse
		if err := c.post(ctx, "/state/entity/page/fungible-vaults", request, &res); err != nil {
			return decimal.Zero, err
		}
		for _, item := range res.Items {
			amount, err := parseAmount(item.Amount)
			if err != nil {
				return decimal.Zero, errors.Wrapf(err, "invalid vault amount for %s", item.VaultAddress)
			}
			total = total.Add(amount)
		}
		if res.NextCursor == nil || *res.NextCursor == "" {
			return total, nil
		}
		cursor = res.NextCursor
	}
}

func (c *Client) GetCurrentEpoch(ctx context.Context) (int64, error) {
	var res gatewayStatusResponse
	if err := c.post(ctx, "/status/gateway-status", map[string]interface{}{}, &res); err != nil {
		return 0, err
	}
	return res.LedgerState.Epoch, nil
}

func (c *Client) GetNonFungibleData(ctx context.Context, resource string, ids []string) ([]NonFungibleData, error) {
	var res nonFungibleDataResponse
	err := c.post(ctx, "/state/non-fungible/data", map[string]interface{}{
		"resource_address": resource,
		"non_fungible_ids": ids,
	}, &res)
	if err != nil {
		return nil, err
	}
	return res.NonFungibleIds, nil
}

// GetClaimReceiptEpoch returns the epoch from which the claim receipt can be redeemed.
func (c *Client) GetClaimReceiptEpoch(ctx context.Context, resource string, id string) (int64, error) {
	items, err := c.GetNonFungibleData(ctx, resource, []string{id})
	if err != nil {
		return 0, err
	}
	for _, item := range items {
		if item.NonFungibleId != id {
			continue
		}
		field := item.Data.ProgrammaticJson.Field("claim_epoch")
		if field == nil {
			return 0, fmt.Errorf("claim receipt %s has no claim_epoch field", id)
		}
		epoch, err := strconv.ParseInt(field.String(), 10, 64)
		if err != nil {
			return 0, errors.Wrapf(err, "invalid claim_epoch '%s'", field.String())
		}
		return epoch, nil
	}
	return 0, errors.Wrap(ErrNonFungibleNotFound, id)
}

func (c *Client) GetNonFungibleTotalMinted(ctx context.Context, resource string) (int64, error) {
	var res entityDetailsResponse
	err := c.post(ctx, "/state/entity/details", map[string]interface{}{
		"addresses":         []string{resource},
		"aggregation_level": "Vault",
	}, &res)
	if err != nil {
		return 0, err
	}
	for _, item := range res.Items {
		if item.Address != resource {
			continue
		}
		if item.Details.Type != "NonFungibleResource" {
			return 0, fmt.Errorf("%s is a %s, not a non fungible resource", resource, item.Details.Type)
		}
		minted, err := strconv.ParseInt(item.Details.TotalMinted, 10, 64)
		if err != nil {
			return 0, errors.Wrapf(err, "invalid total_minted '%s'", item.Details.TotalMinted)
		}
		return minted, nil
	}
	return 0, fmt.Errorf("no entity details returned for %s", resource)
}

func (c *Client) GetNonFungibleLocations(ctx context.Context, resource string, ids []string) ([]NonFungibleLocation, error) {
	var res nonFungibleLocationResponse
	err := c.post(ctx, "/state/non-fungible/location", map[string]interface{}{
		"resource_address": resource,
		"non_fungible_ids": ids,
	}, &res)
	if err != nil {
		return nil, err
	}
	return res.NonFungibleIds, nil
}

func (c *Client) GetResourceHoldersPage(ctx context.Context, resource string, cursor *string) (*ResourceHoldersPage, error) {
	request := map[string]interface{}{
		"resource_address": resource,
		"limit_per_page":   holdersPageLimit,
	}
	if cursor != nil {
		request["cursor"] = *cursor
	}
	var res ResourceHoldersPage
	if err := c.post(ctx, "/extensions/resource-holders", request, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// SubmitTransaction submits a notarized transaction. Duplicate submissions are not an error.
func (c *Client) SubmitTransaction(ctx context.Context, notarizedTransactionHex string) error {
	var res submitResponse
	err := c.post(ctx, "/transaction/submit", map[string]interface{}{
		"notarized_transaction_hex": notarizedTransactionHex,
	}, &res)
	if err != nil {
		return err
	}
	if res.Duplicate {
		c.logger.Sugar().Warnw("Transaction was already submitted")
	}
	return nil
}

func (c *Client) GetTransactionStatus(ctx context.Context, intentHash string) (*TransactionStatusResult, error) {
	var res TransactionStatusResult
	err := c.post(ctx, "/transaction/status", map[string]interface{}{
		"intent_hash": intentHash,
	}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// GetTransactionEvent returns the flattened fields of the first event named eventName emitted by the transaction.
func (c *Client) GetTransactionEvent(ctx context.Context, intentHash string, eventName string) (map[string]string, error) {
	var res committedDetailsResponse
	err := c.post(ctx, "/transaction/committed-details", map[string]interface{}{
		"intent_hash": intentHash,
		"opt_ins": map[string]bool{
			"receipt_events": true,
		},
	}, &res)
	if err != nil {
		return nil, err
	}
	for _, event := range res.Transaction.Receipt.Events {
		if event.Name == eventName {
			return event.Data.Flatten(), nil
		}
	}
	return nil, errors.Wrapf(ErrEventNotFound, "%s in %s", eventName, intentHash)
}
