package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	postDetailKeyPrefix = "post:detail:%s"
	postListKey         = "posts:recent"
)

const (
	PostDetailTTL = 30 * time.Minute
	PostListTTL   = 5 * time.Minute
)

func PostDetailKey(postID uuid.UUID) string {
	return fmt.Sprintf(postDetailKeyPrefix, postID)
}

func PostListKey() string {
	return postListKey
}

// Invalidate evicts a key. Eviction (never in-place update) is the only write
// path the cache exposes to mutating operations.
func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

// InvalidatePost evicts the post detail and list entries after a mutation.
func InvalidatePost(ctx context.Context, postID uuid.UUID) {
	Invalidate(ctx, PostDetailKey(postID))
	Invalidate(ctx, PostListKey())
}
