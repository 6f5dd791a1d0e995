package llm

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	encoder     *tiktoken.Tiktoken
	encoderOnce sync.Once
	encoderErr  error
)

func sharedEncoder() (*tiktoken.Tiktoken, error) {
	encoderOnce.Do(func() {
		encoder, encoderErr = tiktoken.GetEncoding("cl100k_base")
	})
	return encoder, encoderErr
}

// EstimateTokens returns the token count of text under the cl100k_base
// encoding. The count drives budget packing, not billing, so the GPT-4
// tokenizer is a close enough proxy for other providers. Falls back to a
// four-characters-per-token estimate if the encoding cannot be loaded.
func EstimateTokens(text string) int {
	enc, err := sharedEncoder()
	if err != nil {
		return len(text) / 4
	}
	return len(enc.Encode(text, nil, nil))
}
