// Package oracle fetches signed price quotes from the price oracle backend.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hedgefund-labs/fund-settler/pkg/clients/signer"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// RequestSigner signs oracle requests with the bot account's BLS key.
type RequestSigner interface {
	GetAccount(ctx context.Context) (*signer.Account, error)
	SignBLS(ctx context.Context, message string) (*signer.BLSSignature, error)
}

type PriceEntry struct {
	MarketId        string      `json:"marketId"`
	Price           json.Number `json:"price"`
	Nonce           json.Number `json:"nonce"`
	DataTimestamp   json.Number `json:"dataTimestamp"`
	OracleTimestamp json.Number `json:"oracleTimestamp,omitempty"`
}

type Quote struct {
	Data      []PriceEntry `json:"data"`
	Signature string       `json:"signature"`
}

// Message renders the quote the way the fund manager component verifies it.
func (q *Quote) Message() string {
	parts := make([]string, 0, len(q.Data))
	for _, e := range q.Data {
		parts = append(parts, fmt.Sprintf("%s-%s-%s-%s", e.MarketId, e.Price.String(), e.Nonce.String(), e.DataTimestamp.String()))
	}
	return strings.Join(parts, ",")
}

type RequestMessage struct {
	MarketId     string
	PublicKeyBLS string
	NftId        string
	Signature    string
}

func (r *RequestMessage) String() string {
	return fmt.Sprintf("%s##%s##%s", r.MarketId, r.PublicKeyBLS, r.NftId)
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	nftId      string
	signer     RequestSigner
	logger     *zap.Logger
}

func NewClient(baseURL string, nftId string, s RequestSigner, logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: baseURL,
		nftId:   nftId,
		signer:  s,
		logger:  logger,
	}
}

func (c *Client) buildRequest(ctx context.Context, marketId string) (*RequestMessage, error) {
	account, err := c.signer.GetAccount(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get signing account")
	}
	if account.PublicKeyBLS == "" {
		return nil, errors.New("signing account has no BLS public key")
	}
	msg := &RequestMessage{
		MarketId:     marketId,
		PublicKeyBLS: account.PublicKeyBLS,
		NftId:        c.nftId,
	}
	sig, err := c.signer.SignBLS(ctx, msg.String())
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign oracle request")
	}
	msg.Signature = sig.Signature
	return msg, nil
}

// FetchSignedQuote requests a signed price for marketId.
func (c *Client) FetchSignedQuote(ctx context.Context, marketId string) (*Quote, error) {
	msg, err := c.buildRequest(ctx, marketId)
	if err != nil {
		return nil, err
	}

	reqUrl := fmt.Sprintf("%s/v2/price/%s/%s/%s/%s",
		c.baseURL,
		url.PathEscape(msg.MarketId),
		url.PathEscape(msg.PublicKeyBLS),
		url.PathEscape(msg.NftId),
		url.PathEscape(msg.Signature),
	)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqUrl, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("accept", "application/json")

	c.logger.Sugar().Debugw("Requesting oracle price", zap.String("marketId", marketId))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to make request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("oracle request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var quote Quote
	if err := json.Unmarshal(body, &quote); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal response")
	}
	if len(quote.Data) == 0 || quote.Signature == "" {
		return nil, fmt.Errorf("oracle returned an empty quote for %s", marketId)
	}
	return &quote, nil
}
