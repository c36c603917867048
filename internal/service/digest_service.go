package service

import (
	"context"
	"time"

	"github.com/samber/lo"

	"github.com/harborchat/harbor-backend/internal/logger"
	"github.com/harborchat/harbor-backend/internal/models"
	"github.com/harborchat/harbor-backend/internal/queue"
	"github.com/harborchat/harbor-backend/internal/repository"
)

// UnreadChatSummary is one chat's slice of a user's digest.
type UnreadChatSummary struct {
	ChatID              uint    `json:"chatId"`
	ChatName            *string `json:"chatName"`
	UnreadCount         int64   `json:"unreadCount"`
	LastMessageContent  string  `json:"lastMessageContent"`
	LastMessageSenderID string  `json:"lastMessageSenderId"`
}

// DigestPayload is what gets queued per user with unread messages. The
// consumer renders and delivers it out of band.
type DigestPayload struct {
	UserID           string              `json:"userId"`
	UnreadChats      []UnreadChatSummary `json:"unreadChats"`
	TotalUnreadCount int64               `json:"totalUnreadCount"`
}

// DigestService computes each user's unread summary and hands it to the
// delivery queue. Users with nothing unread are skipped entirely.
type DigestService struct {
	memberships repository.MembershipRepositoryInterface
	messageRepo repository.MessageRepositoryInterface
	publisher   queue.Publisher
}

func NewDigestService(
	memberships repository.MembershipRepositoryInterface,
	messageRepo repository.MessageRepositoryInterface,
	publisher queue.Publisher,
) *DigestService {
	return &DigestService{
		memberships: memberships,
		messageRepo: messageRepo,
		publisher:   publisher,
	}
}

// Run performs one full digest pass. A failure for one user is logged and
// does not stop the pass; the error return covers only the initial scan.
func (s *DigestService) Run(ctx context.Context) (published int, err error) {
	members, err := s.memberships.ListAllMemberships()
	if err != nil {
		return 0, err
	}

	byUser := lo.GroupBy(members, func(m models.ChatMember) string { return m.UserID })
	started := time.Now()

	for userID, memberships := range byUser {
		payload, err := s.buildPayload(userID, memberships)
		if err != nil {
			logger.Error().Err(err).Str("user_id", userID).Msg("digest build failed, skipping user")
			continue
		}
		if payload.TotalUnreadCount == 0 {
			continue
		}
		if err := s.publisher.Publish(ctx, queue.TopicChatUnreadDigest, payload); err != nil {
			logger.Error().Err(err).Str("user_id", userID).Msg("digest publish failed, skipping user")
			continue
		}
		published++
	}

	logger.Info().
		Int("users_scanned", len(byUser)).
		Int("digests_published", published).
		Dur("elapsed", time.Since(started)).
		Msg("unread digest pass complete")
	return published, nil
}

func (s *DigestService) buildPayload(userID string, memberships []models.ChatMember) (DigestPayload, error) {
	payload := DigestPayload{UserID: userID, UnreadChats: []UnreadChatSummary{}}

	for _, m := range memberships {
		count, err := s.messageRepo.CountUnreadForUserInChat(m.ChatID, userID)
		if err != nil {
			return DigestPayload{}, err
		}
		if count == 0 {
			continue
		}

		summary := UnreadChatSummary{
			ChatID:      m.ChatID,
			ChatName:    m.Chat.Name,
			UnreadCount: count,
		}
		last, err := s.messageRepo.FindLastUnreadForUserInChat(m.ChatID, userID)
		if err != nil {
			return DigestPayload{}, err
		}
		if last != nil {
			summary.LastMessageContent = last.Content
			summary.LastMessageSenderID = last.SenderID
		}

		payload.UnreadChats = append(payload.UnreadChats, summary)
		payload.TotalUnreadCount += count
	}
	return payload, nil
}

// DigestScheduler fires the digest pass once a day at a fixed UTC hour.
type DigestScheduler struct {
	digest *DigestService
	hour   int
	now    func() time.Time
}

func NewDigestScheduler(digest *DigestService, hourUTC int) *DigestScheduler {
	return &DigestScheduler{digest: digest, hour: hourUTC, now: time.Now}
}

// nextRun returns the next occurrence of the configured UTC hour after now.
func (d *DigestScheduler) nextRun(now time.Time) time.Time {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), d.hour, 0, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Start runs the schedule loop until ctx is canceled.
func (d *DigestScheduler) Start(ctx context.Context) {
	go func() {
		for {
			next := d.nextRun(d.now())
			timer := time.NewTimer(next.Sub(d.now()))
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
				if _, err := d.digest.Run(ctx); err != nil {
					logger.Error().Err(err).Msg("digest pass failed")
				}
			}
		}
	}()
	logger.Info().Int("hour_utc", d.hour).Msg("digest scheduler started")
}
