package tokenizer

import (
	"errors"

	"github.com/temirov/repoview/internal/utils"
)

// CountResult captures the outcome of counting file content.
type CountResult struct {
	Tokens  int
	Counted bool
}

// CountText estimates tokens for content using counter. Binary content is not counted.
func CountText(counter Counter, content string) (CountResult, error) {
	if counter == nil {
		return CountResult{}, errors.New("nil tokenizer counter")
	}
	if utils.IsBinary([]byte(content)) {
		return CountResult{Counted: false}, nil
	}
	tokens, err := counter.CountString(content)
	if err != nil {
		return CountResult{}, err
	}
	return CountResult{Tokens: tokens, Counted: true}, nil
}
