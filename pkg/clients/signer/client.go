// Package signer talks to the remote key custody service that owns the bot account keys.
package signer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type Account struct {
	Address      string `json:"address"`
	PublicKeyBLS string `json:"public_key_bls"`
}

type NotarizedTransaction struct {
	IntentHash              string `json:"intent_hash"`
	NotarizedTransactionHex string `json:"notarized_transaction_hex"`
}

type BLSSignature struct {
	PublicKey string `json:"public_key"`
	Signature string `json:"signature"`
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	apiToken   string
	network    string
	logger     *zap.Logger

	account *Account
}

func NewClient(baseURL string, apiToken string, network string, logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL:  baseURL,
		apiToken: apiToken,
		network:  network,
		logger:   logger,
	}
}

func (c *Client) do(ctx context.Context, method string, path string, request interface{}, response interface{}) error {
	var body io.Reader
	if request != nil {
		payload, err := json.Marshal(request)
		if err != nil {
			return errors.Wrap(err, "failed to marshal request")
		}
		body = bytes.NewReader(payload)
	}

	url := fmt.Sprintf("%s%s", c.baseURL, path)
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if c.apiToken != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiToken))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "failed to make request to %s", path)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response body")
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("signer request %s failed with status %d: %s", path, resp.StatusCode, string(respBody))
	}
	if err := json.Unmarshal(respBody, response); err != nil {
		return errors.Wrap(err, "failed to unmarshal response")
	}
	return nil
}

// GetAccount returns the bot account. The result is cached for the lifetime of the client.
func (c *Client) GetAccount(ctx context.Context) (*Account, error) {
	if c.account != nil {
		return c.account, nil
	}
	var account Account
	if err := c.do(ctx, http.MethodGet, "/v1/account", nil, &account); err != nil {
		return nil, err
	}
	if account.Address == "" {
		return nil, errors.New("signer returned an empty account address")
	}
	c.account = &account
	return c.account, nil
}

// Notarize compiles, signs and notarizes a rendered manifest.
func (c *Client) Notarize(ctx context.Context, manifest string) (*NotarizedTransaction, error) {
	var notarized NotarizedTransaction
	err := c.do(ctx, http.MethodPost, "/v1/notarize", map[string]string{
		"network":  c.network,
		"manifest": manifest,
	}, &notarized)
	if err != nil {
		return nil, err
	}
	if notarized.IntentHash == "" || notarized.NotarizedTransactionHex == "" {
		return nil, errors.New("signer returned an incomplete notarized transaction")
	}
	c.logger.Sugar().Debugw("Notarized transaction", zap.String("intentHash", notarized.IntentHash))
	return &notarized, nil
}

// SignBLS signs message with the account's BLS12-381 key.
func (c *Client) SignBLS(ctx context.Context, message string) (*BLSSignature, error) {
	var sig BLSSignature
	if err := c.do(ctx, http.MethodPost, "/v1/sign/bls", map[string]string{"message": message}, &sig); err != nil {
		return nil, err
	}
	if sig.Signature == "" {
		return nil, errors.New("signer returned an empty signature")
	}
	return &sig, nil
}
