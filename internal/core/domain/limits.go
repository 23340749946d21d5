package domain

import "time"

// IntakeLimits bounds the intake pipeline. Zero values select defaults.
type IntakeLimits struct {
	MinCorpusChars  int
	PromptMaxChars  int
	PreviewChars    int
	ExtractWorkers  int
	ClassifyTimeout time.Duration
}

func (l IntakeLimits) WithDefaults() IntakeLimits {
	if l.MinCorpusChars <= 0 {
		l.MinCorpusChars = 100
	}
	if l.PromptMaxChars <= 0 {
		l.PromptMaxChars = 8000
	}
	if l.PreviewChars <= 0 {
		l.PreviewChars = 2000
	}
	if l.ExtractWorkers <= 0 {
		l.ExtractWorkers = 4
	}
	if l.ClassifyTimeout <= 0 {
		l.ClassifyTimeout = 90 * time.Second
	}
	return l
}
