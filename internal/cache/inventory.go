package cache

import (
	"context"
	"fmt"
	"time"
)

// Key templates. Every cached value in the application is named here so
// invalidation sites have a single inventory to check against.
const (
	UserKeyPrefix      = "user:%d"
	PostKeyPrefix      = "post:%d:viewer:%d"
	PostsListPrefix    = "posts:page:%d:per:%d:viewer:%d"
	CommentTreePrefix  = "post:%d:comments:viewer:%d"
	LikeUsersKeyPrefix = "likes:%s:%d"
)

const (
	UserTTL        = 5 * time.Minute
	PostTTL        = 2 * time.Minute
	ListTTL        = 30 * time.Second
	CommentTreeTTL = 1 * time.Minute
	LikeUsersTTL   = 1 * time.Minute
)

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

// PostKey is viewer-scoped because liked state and private-post visibility
// differ per viewer. Viewer 0 means anonymous.
func PostKey(postID, viewerID uint) string {
	return fmt.Sprintf(PostKeyPrefix, postID, viewerID)
}

func PostsListKey(page, perPage int, viewerID uint) string {
	return fmt.Sprintf(PostsListPrefix, page, perPage, viewerID)
}

func CommentTreeKey(postID, viewerID uint) string {
	return fmt.Sprintf(CommentTreePrefix, postID, viewerID)
}

func LikeUsersKey(subjectType string, subjectID uint) string {
	return fmt.Sprintf(LikeUsersKeyPrefix, subjectType, subjectID)
}

func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

// InvalidatePattern removes every key matching the glob pattern. Used for
// viewer-scoped keys where the writer does not know which viewers have
// cached copies.
func InvalidatePattern(ctx context.Context, pattern string) {
	if client == nil {
		return
	}
	iter := client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		client.Del(ctx, iter.Val())
	}
}

func InvalidateUser(ctx context.Context, userID uint) {
	Invalidate(ctx, UserKey(userID))
}

func InvalidatePost(ctx context.Context, postID uint) {
	InvalidatePattern(ctx, fmt.Sprintf("post:%d:viewer:*", postID))
}

func InvalidatePostsList(ctx context.Context) {
	InvalidatePattern(ctx, "posts:page:*")
}

func InvalidateCommentTree(ctx context.Context, postID uint) {
	InvalidatePattern(ctx, fmt.Sprintf("post:%d:comments:viewer:*", postID))
}

func InvalidateLikeUsers(ctx context.Context, subjectType string, subjectID uint) {
	Invalidate(ctx, LikeUsersKey(subjectType, subjectID))
}
