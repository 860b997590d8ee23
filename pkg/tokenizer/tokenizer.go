// Package tokenizer counts tokens the way the pricing model does and turns
// token counts into money.
package tokenizer

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
	"github.com/rs/zerolog/log"
)

const (
	DefaultEncoding = "cl100k_base"
	DefaultModel    = "gpt-3.5-turbo"

	tokensPerMillion = 1_000_000
)

var loaderOnce sync.Once

// Counter counts tokens for a model id.
type Counter interface {
	CountTokens(text string, modelID string) int
}

// TiktokenCounter resolves an encoding per model id and caches it.
// Unknown model ids fall back to DefaultEncoding.
type TiktokenCounter struct {
	mu        sync.RWMutex
	encodings map[string]*tiktoken.Tiktoken
	fallback  *tiktoken.Tiktoken
}

func NewTiktokenCounter() (*TiktokenCounter, error) {
	// BPE ranks are embedded, no network access at runtime
	loaderOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})

	fallback, err := tiktoken.GetEncoding(DefaultEncoding)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s encoding: %w", DefaultEncoding, err)
	}

	return &TiktokenCounter{
		encodings: make(map[string]*tiktoken.Tiktoken),
		fallback:  fallback,
	}, nil
}

func (c *TiktokenCounter) CountTokens(text string, modelID string) int {
	if text == "" {
		return 0
	}

	return len(c.encodingFor(modelID).Encode(text, nil, nil))
}

func (c *TiktokenCounter) encodingFor(modelID string) *tiktoken.Tiktoken {
	if modelID == "" {
		modelID = DefaultModel
	}

	c.mu.RLock()
	encoding, ok := c.encodings[modelID]
	c.mu.RUnlock()

	if ok {
		return encoding
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if encoding, ok := c.encodings[modelID]; ok {
		return encoding
	}

	encoding, err := tiktoken.EncodingForModel(modelID)
	if err != nil {
		log.Warn().
			Err(err).
			Str("model", modelID).
			Str("encoding", DefaultEncoding).
			Msg("Unknown token count model, using fallback encoding")

		encoding = c.fallback
	}

	c.encodings[modelID] = encoding

	return encoding
}

// TokenCost prices count tokens at ratePerMillion.
func TokenCost(count int, ratePerMillion float64) float64 {
	return float64(count) * ratePerMillion / tokensPerMillion
}
