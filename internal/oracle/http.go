/*
This file implements a PriceSource backed by an HTTP price feed. The feed is
expected to answer GET requests with a JSON body of the form:

	{"price": "245012345678", "decimals": 8}

where price is a base-10 unsigned integer in the feed's native decimal scale.
*/

package oracle

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/usmfum/usmd/internal/logger"
)

var ErrInvalidFeedData = errors.New("invalid price feed data received")

const feedTimeout = 10 * time.Second

type feedResponse struct {
	Price    string `json:"price"`
	Decimals uint64 `json:"decimals"`
}

// HTTPSource reads prices from an HTTP feed. Each LatestPrice call performs a
// fresh request; there is no retry, a failed request fails the enclosing
// operation.
type HTTPSource struct {
	url    string
	client *http.Client
	logger zerolog.Logger

	// The decimal shift is a static property of the feed, so it is resolved
	// once and remembered. The price itself is never cached.
	mu         sync.Mutex
	shift      uint64
	shiftKnown bool
}

// NewHTTPSource creates a price source reading from the given feed URL.
func NewHTTPSource(url string) (*HTTPSource, error) {
	if url == "" {
		return nil, fmt.Errorf("%w: feed URL cannot be empty", ErrInvalidFeedData)
	}
	return &HTTPSource{
		url:    url,
		client: &http.Client{Timeout: feedTimeout},
		logger: logger.GetForComponent("price_feed"),
	}, nil
}

// LatestPrice fetches the current raw price from the feed.
func (s *HTTPSource) LatestPrice() (sdkmath.Int, error) {
	payload, err := s.fetch()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	price, ok := sdkmath.NewIntFromString(payload.Price)
	if !ok {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: price %q is not a base-10 integer", ErrInvalidFeedData, payload.Price)
	}

	s.mu.Lock()
	s.shift, s.shiftKnown = payload.Decimals, true
	s.mu.Unlock()

	s.logger.Debug().
		Str("price", price.String()).
		Uint64("decimals", payload.Decimals).
		Msg("Fetched price from feed")

	return price, nil
}

// DecimalShift returns the feed's decimal scale, fetching it if no response
// has been seen yet.
func (s *HTTPSource) DecimalShift() (uint64, error) {
	s.mu.Lock()
	if s.shiftKnown {
		shift := s.shift
		s.mu.Unlock()
		return shift, nil
	}
	s.mu.Unlock()

	payload, err := s.fetch()
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	s.shift, s.shiftKnown = payload.Decimals, true
	s.mu.Unlock()

	return payload.Decimals, nil
}

// fetch performs a single GET against the feed and decodes the response.
func (s *HTTPSource) fetch() (feedResponse, error) {
	resp, err := s.client.Get(s.url)
	if err != nil {
		return feedResponse{}, fmt.Errorf("price feed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return feedResponse{}, fmt.Errorf("%w: feed returned status %d: %s", ErrInvalidFeedData, resp.StatusCode, string(body))
	}

	var payload feedResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return feedResponse{}, fmt.Errorf("%w: failed to decode feed response: %w", ErrInvalidFeedData, err)
	}
	if payload.Price == "" {
		return feedResponse{}, fmt.Errorf("%w: feed response is missing the price field", ErrInvalidFeedData)
	}

	return payload, nil
}
