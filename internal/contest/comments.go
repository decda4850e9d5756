package contest

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/swiglabs/swigboard/internal/contest/types"
	"github.com/swiglabs/swigboard/internal/docstore"
)

// CommentService handles comments on events.
type CommentService struct {
	store  docstore.Store
	logger *zap.Logger
}

// NewCommentService creates a comment service.
func NewCommentService(store docstore.Store, logger *zap.Logger) *CommentService {
	return &CommentService{
		store:  store,
		logger: logger.Named("comments"),
	}
}

// Add creates a comment on an event. The text is validated before any write
// and must be non-empty and at most types.MaxCommentLength characters.
// Returns the id of the created comment.
func (s *CommentService) Add(ctx context.Context, actor, eventID, text string) (string, error) {
	if actor == "" {
		return "", types.NewValidationError("actor", "must not be empty")
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", types.NewValidationError("text", "must not be empty")
	}

	if utf8.RuneCountInString(text) > types.MaxCommentLength {
		return "", types.NewValidationError("text",
			fmt.Sprintf("must be at most %d characters", types.MaxCommentLength))
	}

	doc, err := s.store.Get(ctx, types.EventsCollection, eventID)
	if err != nil {
		return "", fmt.Errorf("failed to get event %s: %w", eventID, err)
	}

	if types.EventFromDoc(doc).Deleted {
		return "", types.NewValidationError("event", "cannot comment on a deleted event")
	}

	id, err := s.store.Add(ctx, types.EventCommentsCollection(eventID), "", docstore.Fields{
		"participantId": actor,
		"text":          text,
		"ts":            time.Now().UTC().UnixMilli(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to add comment: %w", err)
	}

	s.logger.Debug("Comment added",
		zap.String("eventID", eventID),
		zap.String("commentID", id),
		zap.String("participantID", actor))

	return id, nil
}

// Delete removes a comment. Only the comment's author may delete it.
func (s *CommentService) Delete(ctx context.Context, actor, eventID, commentID string) error {
	collection := types.EventCommentsCollection(eventID)

	doc, err := s.store.Get(ctx, collection, commentID)
	if err != nil {
		return fmt.Errorf("failed to get comment %s: %w", commentID, err)
	}

	if types.CommentFromDoc(eventID, doc).ParticipantID != actor {
		return types.ErrNotOwner
	}

	if err := s.store.Delete(ctx, collection, commentID); err != nil {
		return fmt.Errorf("failed to delete comment %s: %w", commentID, err)
	}

	return nil
}

// List returns one page of an event's comments in conversation order.
// The returned cursor resumes after the last comment of the page.
func (s *CommentService) List(
	ctx context.Context, eventID string, limit int, after *docstore.Cursor,
) ([]*types.Comment, *docstore.Cursor, error) {
	snap, err := s.store.RunQuery(ctx, docstore.Query{
		Collection: types.EventCommentsCollection(eventID),
		OrderBy:    "ts",
		Direction:  docstore.Ascending,
		Limit:      limit,
		StartAfter: after,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query comments: %w", err)
	}

	comments := make([]*types.Comment, len(snap.Docs))
	for i, doc := range snap.Docs {
		comments[i] = types.CommentFromDoc(eventID, doc)
	}

	return comments, snap.Cursor(), nil
}
