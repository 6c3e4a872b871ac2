package collect

import (
	"context"
	"errors"
)

// ErrSourceUnavailable is returned by a Source that cannot serve comments at
// all, for example because no credentials are configured.
var ErrSourceUnavailable = errors.New("comment source unavailable")

// RawComment is a top-level comment as delivered by the source. It is never
// persisted as is.
type RawComment struct {
	Text        string
	PublishedAt string
}

// Source streams every comment of a content item, page by page, calling fn
// for each. Returning an error from fn stops the stream with that error.
type Source interface {
	Comments(ctx context.Context, contentID string, fn func(RawComment) error) error
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context, contentID string, fn func(RawComment) error) error

func (f SourceFunc) Comments(ctx context.Context, contentID string, fn func(RawComment) error) error {
	return f(ctx, contentID, fn)
}
