package llm

import "errors"

var (
	ErrLLMUnavailable = errors.New("llm unavailable")
	ErrLLMTimeout     = errors.New("llm timeout")
)
