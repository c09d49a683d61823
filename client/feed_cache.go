package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"ripple/internal/models"
)

// ErrToggleInFlight is returned when a like toggle is requested for a subject
// that already has a reconciliation in flight. Callers retry after the
// pending toggle resolves.
var ErrToggleInFlight = errors.New("like toggle already in flight for subject")

// likeSnapshot captures the pre-optimistic like state of a subject so a
// failed request can restore it exactly.
type likeSnapshot struct {
	liked bool
	count int64
	users []models.UserSummary
}

// CommentDraft is the composer state for a comment: the text plus the
// replying-to context. On a failed submit the draft is handed back to the
// caller so nothing the user typed is lost.
type CommentDraft struct {
	Content  string
	ParentID *uint
}

// FeedCache is an in-memory view of the feed and per-post comment trees.
// Like toggles apply optimistically and reconcile against the server's
// authoritative state; comment and post mutations apply only after server
// confirmation. All methods are safe for concurrent use; at most one like
// reconciliation is in flight per subject.
type FeedCache struct {
	api *Client

	mu       sync.Mutex
	page     models.PostPage
	comments map[uint][]*models.Comment
	inflight map[string]bool
}

// NewFeedCache creates an empty cache backed by the given API session.
func NewFeedCache(api *Client) *FeedCache {
	return &FeedCache{
		api:      api,
		comments: make(map[uint][]*models.Comment),
		inflight: make(map[string]bool),
	}
}

// Refresh replaces the cached feed with a freshly fetched page.
func (fc *FeedCache) Refresh(ctx context.Context, page, perPage int) error {
	fetched, err := fc.api.ListPosts(ctx, page, perPage)
	if err != nil {
		return err
	}
	fc.mu.Lock()
	fc.page = *fetched
	fc.mu.Unlock()
	return nil
}

// Page returns a copy of the cached feed envelope.
func (fc *FeedCache) Page() models.PostPage {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	page := fc.page
	page.Data = append([]*models.Post(nil), fc.page.Data...)
	return page
}

// Post returns the cached post with the given id, or nil.
func (fc *FeedCache) Post(id uint) *models.Post {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.findPost(id)
}

// RefreshComments replaces the cached comment tree for a post.
func (fc *FeedCache) RefreshComments(ctx context.Context, postID uint) error {
	thread, err := fc.api.ListComments(ctx, postID)
	if err != nil {
		return err
	}
	fc.mu.Lock()
	fc.comments[postID] = thread.Comments
	fc.mu.Unlock()
	return nil
}

// Comments returns the cached comment tree for a post.
func (fc *FeedCache) Comments(postID uint) []*models.Comment {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return append([]*models.Comment(nil), fc.comments[postID]...)
}

// ToggleLike optimistically flips the like state of a subject, issues the
// toggle request, and reconciles: on success the server's {liked, count,
// users} overwrite the optimistic guess, on failure the pre-toggle snapshot
// is restored. postID locates comment subjects; it is ignored for posts.
func (fc *FeedCache) ToggleLike(ctx context.Context, subjectType string, subjectID, postID uint) (*models.LikeState, error) {
	key := fmt.Sprintf("%s:%d", subjectType, subjectID)

	fc.mu.Lock()
	if fc.inflight[key] {
		fc.mu.Unlock()
		return nil, ErrToggleInFlight
	}
	snap, ok := fc.applyOptimisticToggle(subjectType, subjectID, postID)
	if !ok {
		fc.mu.Unlock()
		return nil, fmt.Errorf("subject %s not in cache", key)
	}
	fc.inflight[key] = true
	fc.mu.Unlock()

	state, err := fc.api.ToggleLike(ctx, subjectType, subjectID)

	fc.mu.Lock()
	delete(fc.inflight, key)
	if err != nil {
		fc.restoreLike(subjectType, subjectID, postID, snap)
		fc.mu.Unlock()
		return nil, err
	}
	fc.applyServerLike(subjectType, subjectID, postID, state)
	fc.mu.Unlock()
	return state, nil
}

// CreateComment submits a draft. The composer is cleared by the caller
// before submitting; on success the confirmed node is inserted into the
// cached tree (root list prepend, or appended under its parent) and the
// post's comment count bumped. On failure the draft is returned so the
// caller can restore the composer.
func (fc *FeedCache) CreateComment(ctx context.Context, postID uint, draft CommentDraft) (*models.Comment, *CommentDraft, error) {
	comment, err := fc.api.CreateComment(ctx, postID, draft.Content, draft.ParentID)
	if err != nil {
		restored := draft
		return nil, &restored, err
	}

	fc.mu.Lock()
	defer fc.mu.Unlock()
	if comment.ParentID == nil {
		fc.comments[postID] = append([]*models.Comment{comment}, fc.comments[postID]...)
	} else if parent := findComment(fc.comments[postID], *comment.ParentID); parent != nil {
		parent.Replies = append(parent.Replies, comment)
	} else {
		fc.comments[postID] = append(fc.comments[postID], comment)
	}
	if post := fc.findPost(postID); post != nil {
		post.CommentsCount++
	}
	return comment, nil, nil
}

// DeleteComment deletes a comment on the server, then removes the node and
// its entire subtree from the cached tree.
func (fc *FeedCache) DeleteComment(ctx context.Context, postID, commentID uint) error {
	if err := fc.api.DeleteComment(ctx, commentID); err != nil {
		return err
	}

	fc.mu.Lock()
	defer fc.mu.Unlock()
	roots, removed := removeComment(fc.comments[postID], commentID)
	fc.comments[postID] = roots
	if removed > 0 {
		if post := fc.findPost(postID); post != nil {
			post.CommentsCount -= int64(removed)
			if post.CommentsCount < 0 {
				post.CommentsCount = 0
			}
		}
	}
	return nil
}

// DeletePost deletes a post on the server, then drops it and its comment
// tree from the cache.
func (fc *FeedCache) DeletePost(ctx context.Context, postID uint) error {
	if err := fc.api.DeletePost(ctx, postID); err != nil {
		return err
	}

	fc.mu.Lock()
	defer fc.mu.Unlock()
	kept := fc.page.Data[:0]
	for _, post := range fc.page.Data {
		if post.ID != postID {
			kept = append(kept, post)
		}
	}
	if len(kept) < len(fc.page.Data) {
		fc.page.Data = kept
		if fc.page.Total > 0 {
			fc.page.Total--
		}
	}
	delete(fc.comments, postID)
	return nil
}

// callers hold fc.mu for everything below

func (fc *FeedCache) findPost(id uint) *models.Post {
	for _, post := range fc.page.Data {
		if post.ID == id {
			return post
		}
	}
	return nil
}

func (fc *FeedCache) applyOptimisticToggle(subjectType string, subjectID, postID uint) (likeSnapshot, bool) {
	switch subjectType {
	case models.SubjectPost:
		post := fc.findPost(subjectID)
		if post == nil {
			return likeSnapshot{}, false
		}
		snap := likeSnapshot{liked: post.Liked, count: post.LikesCount, users: post.LikeUsers}
		post.Liked = !post.Liked
		if post.Liked {
			post.LikesCount++
		} else if post.LikesCount > 0 {
			post.LikesCount--
		}
		return snap, true
	case models.SubjectComment:
		comment := findComment(fc.comments[postID], subjectID)
		if comment == nil {
			return likeSnapshot{}, false
		}
		snap := likeSnapshot{liked: comment.Liked, count: comment.LikesCount, users: comment.LikeUsers}
		comment.Liked = !comment.Liked
		if comment.Liked {
			comment.LikesCount++
		} else if comment.LikesCount > 0 {
			comment.LikesCount--
		}
		return snap, true
	}
	return likeSnapshot{}, false
}

func (fc *FeedCache) restoreLike(subjectType string, subjectID, postID uint, snap likeSnapshot) {
	switch subjectType {
	case models.SubjectPost:
		if post := fc.findPost(subjectID); post != nil {
			post.Liked = snap.liked
			post.LikesCount = snap.count
			post.LikeUsers = snap.users
		}
	case models.SubjectComment:
		if comment := findComment(fc.comments[postID], subjectID); comment != nil {
			comment.Liked = snap.liked
			comment.LikesCount = snap.count
			comment.LikeUsers = snap.users
		}
	}
}

func (fc *FeedCache) applyServerLike(subjectType string, subjectID, postID uint, state *models.LikeState) {
	switch subjectType {
	case models.SubjectPost:
		if post := fc.findPost(subjectID); post != nil {
			post.Liked = state.Liked
			post.LikesCount = state.Count
			post.LikeUsers = state.Users
		}
	case models.SubjectComment:
		if comment := findComment(fc.comments[postID], subjectID); comment != nil {
			comment.Liked = state.Liked
			comment.LikesCount = state.Count
			comment.LikeUsers = state.Users
		}
	}
}

// findComment searches a comment tree depth first for the given id.
func findComment(nodes []*models.Comment, id uint) *models.Comment {
	for _, node := range nodes {
		if node.ID == id {
			return node
		}
		if found := findComment(node.Replies, id); found != nil {
			return found
		}
	}
	return nil
}

// removeComment drops the node with the given id, subtree included, and
// returns the new forest plus the number of comments removed.
func removeComment(nodes []*models.Comment, id uint) ([]*models.Comment, int) {
	kept := make([]*models.Comment, 0, len(nodes))
	removed := 0
	for _, node := range nodes {
		if node.ID == id {
			removed += treeSize(node)
			continue
		}
		var n int
		node.Replies, n = removeComment(node.Replies, id)
		removed += n
		kept = append(kept, node)
	}
	return kept, removed
}

func treeSize(node *models.Comment) int {
	size := 1
	for _, reply := range node.Replies {
		size += treeSize(reply)
	}
	return size
}
