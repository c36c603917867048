package service

import (
	"testing"

	"github.com/harborchat/harbor-backend/internal/apperr"
	"github.com/harborchat/harbor-backend/internal/models"
)

func newTestReadReceiptService(t *testing.T) (*ReadReceiptService, *mockChatRepo, *mockMessageRepo, *mockReadRepo) {
	t.Helper()
	chatRepo := newMockChatRepo()
	messageRepo := newMockMessageRepo()
	readRepo := newMockReadRepo()
	return NewReadReceiptService(chatRepo, messageRepo, readRepo), chatRepo, messageRepo, readRepo
}

func TestMarkRead(t *testing.T) {
	svc, chatRepo, messageRepo, readRepo := newTestReadReceiptService(t)
	seedGroupChat(chatRepo, 1, "alice", "bob")
	msg := messageRepo.seed(models.Message{ChatID: 1, SenderID: "bob", Content: "m"})

	if err := svc.MarkRead(1, msg.ID, "alice"); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if got := readRepo.upsertedFor("alice"); len(got) != 1 || got[0] != msg.ID {
		t.Fatalf("upserts = %v, want [%d]", got, msg.ID)
	}

	// Marking again just refreshes the receipt.
	if err := svc.MarkRead(1, msg.ID, "alice"); err != nil {
		t.Fatalf("repeat MarkRead: %v", err)
	}
}

func TestMarkReadOwnMessageIsNoop(t *testing.T) {
	svc, chatRepo, messageRepo, readRepo := newTestReadReceiptService(t)
	seedGroupChat(chatRepo, 1, "alice", "bob")
	msg := messageRepo.seed(models.Message{ChatID: 1, SenderID: "alice", Content: "m"})

	if err := svc.MarkRead(1, msg.ID, "alice"); err != nil {
		t.Fatalf("MarkRead own message: %v", err)
	}
	if got := readRepo.upsertedFor("alice"); len(got) != 0 {
		t.Fatalf("own message produced receipts: %v", got)
	}
}

func TestMarkReadRejections(t *testing.T) {
	svc, chatRepo, messageRepo, _ := newTestReadReceiptService(t)
	seedGroupChat(chatRepo, 1, "alice", "bob")
	seedGroupChat(chatRepo, 2, "carol", "dave")
	other := messageRepo.seed(models.Message{ChatID: 2, SenderID: "carol", Content: "m"})

	if err := svc.MarkRead(1, other.ID, "alice"); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Errorf("cross-chat message: expected not found, got %v", err)
	}
	if err := svc.MarkRead(1, 99, "alice"); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Errorf("unknown message: expected not found, got %v", err)
	}
	if err := svc.MarkRead(1, other.ID, "mallory"); !apperr.IsKind(err, apperr.KindForbidden) {
		t.Errorf("non-member: expected forbidden, got %v", err)
	}
}

func TestMarkManyRead(t *testing.T) {
	svc, chatRepo, messageRepo, readRepo := newTestReadReceiptService(t)
	seedGroupChat(chatRepo, 1, "alice", "bob")
	seedGroupChat(chatRepo, 2, "alice", "carol")

	m1 := messageRepo.seed(models.Message{ChatID: 1, SenderID: "bob", Content: "a"})
	m2 := messageRepo.seed(models.Message{ChatID: 1, SenderID: "bob", Content: "b"})
	mine := messageRepo.seed(models.Message{ChatID: 1, SenderID: "alice", Content: "c"})
	elsewhere := messageRepo.seed(models.Message{ChatID: 2, SenderID: "carol", Content: "d"})

	// Duplicates, own messages, and an unknown id are tolerated. A message
	// from another chat the caller belongs to is marked along with the rest.
	marked, err := svc.MarkManyRead(1, []uint{m1.ID, m1.ID, m2.ID, mine.ID, elsewhere.ID, 999}, "alice")
	if err != nil {
		t.Fatalf("MarkManyRead: %v", err)
	}
	want := []uint{m1.ID, m2.ID, elsewhere.ID}
	if len(marked) != len(want) {
		t.Fatalf("marked %v, want %v", marked, want)
	}
	got := readRepo.upsertedFor("alice")
	if len(got) != 3 || got[0] != m1.ID || got[1] != m2.ID || got[2] != elsewhere.ID {
		t.Fatalf("upserts = %v, want %v", got, want)
	}
}

func TestMarkManyReadForeignChatForbidden(t *testing.T) {
	svc, chatRepo, messageRepo, readRepo := newTestReadReceiptService(t)
	seedGroupChat(chatRepo, 1, "alice", "bob")
	seedGroupChat(chatRepo, 2, "carol", "dave")

	ours := messageRepo.seed(models.Message{ChatID: 1, SenderID: "bob", Content: "a"})
	foreign := messageRepo.seed(models.Message{ChatID: 2, SenderID: "carol", Content: "b"})

	// One id resolving to a chat the caller does not belong to fails the
	// whole batch; nothing gets marked, not even the valid id.
	_, err := svc.MarkManyRead(1, []uint{ours.ID, foreign.ID}, "alice")
	if !apperr.IsKind(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if got := readRepo.upsertedFor("alice"); len(got) != 0 {
		t.Fatalf("forbidden batch produced receipts: %v", got)
	}
}

func TestMarkManyReadEmptyAndNonMember(t *testing.T) {
	svc, chatRepo, messageRepo, readRepo := newTestReadReceiptService(t)
	seedGroupChat(chatRepo, 1, "alice", "bob")
	msg := messageRepo.seed(models.Message{ChatID: 1, SenderID: "bob", Content: "m"})

	marked, err := svc.MarkManyRead(1, nil, "alice")
	if err != nil {
		t.Fatalf("empty batch: %v", err)
	}
	if len(marked) != 0 {
		t.Fatalf("empty batch marked %v", marked)
	}

	if _, err := svc.MarkManyRead(1, []uint{msg.ID}, "mallory"); !apperr.IsKind(err, apperr.KindForbidden) {
		t.Fatalf("non-member: expected forbidden, got %v", err)
	}
	if got := readRepo.upsertedFor("mallory"); len(got) != 0 {
		t.Fatalf("non-member produced receipts: %v", got)
	}
}
