package server

import (
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

var (
	bpeOnce     sync.Once
	bpeEnc      tokenizer.Codec
	bpeEncoding string
	bpeErr      error
)

// encoder returns the shared BPE codec, o200k_base with a cl100k_base fallback.
func encoder() (tokenizer.Codec, string, error) {
	bpeOnce.Do(func() {
		bpeEnc, bpeErr = tokenizer.Get(tokenizer.O200kBase)
		bpeEncoding = string(tokenizer.O200kBase)
		if bpeErr != nil {
			bpeEnc, bpeErr = tokenizer.Get(tokenizer.Cl100kBase)
			bpeEncoding = string(tokenizer.Cl100kBase)
		}
	})
	return bpeEnc, bpeEncoding, bpeErr
}

// countTokens returns the local token estimate of text
func countTokens(text string) (int, string, error) {
	enc, name, err := encoder()
	if err != nil {
		return 0, "", err
	}
	ids, _, err := enc.Encode(text)
	if err != nil {
		return 0, "", err
	}
	return len(ids), name, nil
}
