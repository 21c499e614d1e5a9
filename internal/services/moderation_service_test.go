package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"gorm.io/gorm"

	"github.com/tbourn/go-board-bot/internal/domain"
	"github.com/tbourn/go-board-bot/internal/repo"
	"github.com/tbourn/go-board-bot/internal/session"
)

const channelID int64 = -1000

type statusCall struct {
	adID string
	from domain.AdStatus
	to   domain.AdStatus
}

type fakeModerationRepo struct {
	users map[string]*domain.User
	mods  []domain.User
	ads   map[string]*domain.Ad

	statusCalls []statusCall
	statusErr   error
	rejectErr   error

	recorded map[string][]domain.ChannelMessage
	dropped  []string

	pending  []domain.Ad
	approved []domain.Ad
}

func (f *fakeModerationRepo) GetUser(_ context.Context, _ *gorm.DB, id string) (*domain.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return u, nil
}

func (f *fakeModerationRepo) ListModerators(context.Context, *gorm.DB) ([]domain.User, error) {
	return f.mods, nil
}

func (f *fakeModerationRepo) GetAd(_ context.Context, _ *gorm.DB, id string) (*domain.Ad, error) {
	ad, ok := f.ads[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return ad, nil
}

func (f *fakeModerationRepo) UpdateAdStatus(_ context.Context, _ *gorm.DB, id string, from, to domain.AdStatus) error {
	f.statusCalls = append(f.statusCalls, statusCall{id, from, to})
	if f.statusErr != nil {
		return f.statusErr
	}
	ad, ok := f.ads[id]
	if !ok {
		return repo.ErrNotFound
	}
	if ad.Status != from {
		return repo.ErrStatusConflict
	}
	ad.Status = to
	return nil
}

func (f *fakeModerationRepo) RejectAd(_ context.Context, _ *gorm.DB, id, reason string) error {
	if f.rejectErr != nil {
		return f.rejectErr
	}
	ad, ok := f.ads[id]
	if !ok {
		return repo.ErrNotFound
	}
	if ad.Status != domain.StatusPendingReview {
		return repo.ErrStatusConflict
	}
	ad.Status = domain.StatusRejected
	ad.RejectReason = reason
	return nil
}

func (f *fakeModerationRepo) RecordChannelMessages(_ context.Context, _ *gorm.DB, adID string, refs []domain.ChannelMessage) error {
	if f.recorded == nil {
		f.recorded = make(map[string][]domain.ChannelMessage)
	}
	f.recorded[adID] = refs
	return nil
}

func (f *fakeModerationRepo) DeleteChannelMessages(_ context.Context, _ *gorm.DB, adID string) error {
	f.dropped = append(f.dropped, adID)
	return nil
}

func (f *fakeModerationRepo) ListPendingAds(context.Context, *gorm.DB) ([]domain.Ad, error) {
	return f.pending, nil
}

func (f *fakeModerationRepo) ListApprovedAdsByOwner(_ context.Context, _ *gorm.DB, ownerID string) ([]domain.Ad, error) {
	var out []domain.Ad
	for _, ad := range f.approved {
		if ad.OwnerID == ownerID {
			out = append(out, ad)
		}
	}
	return out, nil
}

type moderationFixture struct {
	svc    *ModerationService
	repo   *fakeModerationRepo
	sender *fakeSender
	store  *session.Store
}

// Chat ids: the owner's private chat is their telegram id, same for the
// moderators.
const (
	ownerChat = int64(100)
	modChatA  = int64(200)
	modChatB  = int64(300)
)

func newModerationFixture(t *testing.T) *moderationFixture {
	t.Helper()
	owner := &domain.User{ID: "u-owner", TelegramID: ownerChat, FirstName: "Анна", Login: "anna", Phone: "+7999"}
	modA := &domain.User{ID: "u-mod-a", TelegramID: modChatA, Login: "mod_a", IsAdmin: true}
	modB := &domain.User{ID: "u-mod-b", TelegramID: modChatB, Login: "mod_b", IsAdmin: true}

	ad := &domain.Ad{
		ID:      "ad-1",
		OwnerID: owner.ID,
		Owner:   *owner,
		Title:   "Диван",
		Price:   12500,
		Status:  domain.StatusPendingReview,
		Category: domain.Category{
			ID: "c-1", Title: "Товары", Alias: "goods",
		},
		Photos: []domain.AdPhoto{{FileID: "f1", Position: 0}, {FileID: "f2", Position: 1}},
	}

	r := &fakeModerationRepo{
		users: map[string]*domain.User{owner.ID: owner, modA.ID: modA, modB.ID: modB},
		mods:  []domain.User{*modA, *modB},
		ads:   map[string]*domain.Ad{ad.ID: ad},
	}
	sender := &fakeSender{}
	store := session.NewStore()
	store.With(ownerChat, func(s *session.Session) { s.UserID = owner.ID })
	store.With(modChatA, func(s *session.Session) { s.UserID = modA.ID })
	store.With(modChatB, func(s *session.Session) { s.UserID = modB.ID })

	return &moderationFixture{
		svc:    NewModerationService(nil, r, store, sender, NewNotifier(sender, 0), channelID),
		repo:   r,
		sender: sender,
		store:  store,
	}
}

func TestSubmitForReview_FansOutToEveryModerator(t *testing.T) {
	fx := newModerationFixture(t)
	ad := fx.repo.ads["ad-1"]
	if err := fx.svc.SubmitForReview(context.Background(), ad); err != nil {
		t.Fatalf("SubmitForReview: %v", err)
	}

	for _, mod := range []int64{modChatA, modChatB} {
		msgs := fx.sender.sentTo(mod)
		if len(msgs) == 0 {
			t.Fatalf("moderator %d got no review request", mod)
		}
		if len(msgs[0].photos) != 2 {
			t.Errorf("moderator %d: photos = %v, want the album", mod, msgs[0].photos)
		}
		last := msgs[len(msgs)-1]
		if last.kb == nil {
			t.Errorf("moderator %d: no decision keyboard", mod)
		}
	}
	if msgs := fx.sender.sentTo(ownerChat); len(msgs) != 0 {
		t.Errorf("owner was sent %d review messages", len(msgs))
	}
}

func TestApprove_PublishesAndNotifies(t *testing.T) {
	fx := newModerationFixture(t)
	ctx := context.Background()
	if err := fx.svc.Approve(ctx, modChatA, "ad-1"); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	if got := fx.repo.ads["ad-1"].Status; got != domain.StatusApproved {
		t.Errorf("status = %q, want approved", got)
	}
	want := statusCall{"ad-1", domain.StatusPendingReview, domain.StatusApproved}
	if len(fx.repo.statusCalls) != 1 || fx.repo.statusCalls[0] != want {
		t.Errorf("status calls = %v, want [%v]", fx.repo.statusCalls, want)
	}

	// The channel got the album; its refs are on record for withdraw.
	chMsgs := fx.sender.sentTo(channelID)
	if len(chMsgs) != 1 || len(chMsgs[0].photos) != 2 {
		t.Fatalf("channel messages = %+v, want one album", chMsgs)
	}
	if !strings.Contains(chMsgs[0].text, "@anna") {
		t.Errorf("channel caption %q misses the seller handle", chMsgs[0].text)
	}
	if got := len(fx.repo.recorded["ad-1"]); got != 2 {
		t.Errorf("recorded %d channel refs, want 2", got)
	}

	if got := fx.sender.lastText(ownerChat); got != msgApprovedOwner {
		t.Errorf("owner message = %q, want %q", got, msgApprovedOwner)
	}
	if got := fx.sender.lastText(modChatA); got != msgApprovedMod {
		t.Errorf("moderator message = %q, want %q", got, msgApprovedMod)
	}
}

func TestApprove_SecondDecisionLoses(t *testing.T) {
	fx := newModerationFixture(t)
	ctx := context.Background()
	if err := fx.svc.Approve(ctx, modChatA, "ad-1"); err != nil {
		t.Fatalf("first Approve: %v", err)
	}
	chBefore := len(fx.sender.sentTo(channelID))

	if err := fx.svc.Approve(ctx, modChatB, "ad-1"); err != nil {
		t.Fatalf("second Approve: %v", err)
	}
	if got := fx.sender.lastText(modChatB); got != msgAlreadyTaken {
		t.Errorf("loser message = %q, want %q", got, msgAlreadyTaken)
	}
	if got := len(fx.sender.sentTo(channelID)); got != chBefore {
		t.Errorf("lost decision still published: %d channel messages", got)
	}
}

func TestApprove_RequiresModerator(t *testing.T) {
	fx := newModerationFixture(t)
	if err := fx.svc.Approve(context.Background(), ownerChat, "ad-1"); !errors.Is(err, ErrNotModerator) {
		t.Fatalf("err = %v, want ErrNotModerator", err)
	}
	if got := fx.repo.ads["ad-1"].Status; got != domain.StatusPendingReview {
		t.Errorf("status = %q, want pending_review", got)
	}
	// The refusal is told to the caller, not just logged.
	if got := fx.sender.lastText(ownerChat); got != msgNotModerator {
		t.Errorf("message = %q, want %q", got, msgNotModerator)
	}
}

func TestApprove_UnknownChatIsRefusedWithMessage(t *testing.T) {
	fx := newModerationFixture(t)
	const strangerChat = int64(999)
	if err := fx.svc.Approve(context.Background(), strangerChat, "ad-1"); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("err = %v, want ErrNotAuthenticated", err)
	}
	if got := fx.sender.lastText(strangerChat); got != msgNotAuthenticated {
		t.Errorf("message = %q, want %q", got, msgNotAuthenticated)
	}
}

func TestDecision_MissingAd(t *testing.T) {
	t.Run("approve", func(t *testing.T) {
		fx := newModerationFixture(t)
		if err := fx.svc.Approve(context.Background(), modChatA, "ad-404"); !errors.Is(err, ErrAdNotFound) {
			t.Fatalf("err = %v, want ErrAdNotFound", err)
		}
		if got := fx.sender.lastText(modChatA); got != msgAdGone {
			t.Errorf("message = %q, want %q", got, msgAdGone)
		}
	})

	t.Run("reject", func(t *testing.T) {
		fx := newModerationFixture(t)
		if err := fx.svc.Reject(context.Background(), modChatA, "ad-404"); !errors.Is(err, ErrAdNotFound) {
			t.Fatalf("err = %v, want ErrAdNotFound", err)
		}
		if got := fx.sender.lastText(modChatA); got != msgAdGone {
			t.Errorf("message = %q, want %q", got, msgAdGone)
		}
	})
}

func TestReject_TwoPhase(t *testing.T) {
	fx := newModerationFixture(t)
	ctx := context.Background()

	if err := fx.svc.Reject(ctx, modChatA, "ad-1"); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if got := fx.sender.lastText(modChatA); got != msgAskReason {
		t.Errorf("moderator message = %q, want %q", got, msgAskReason)
	}
	// The decision is not final yet.
	if got := fx.repo.ads["ad-1"].Status; got != domain.StatusPendingReview {
		t.Fatalf("status = %q before a reason was supplied", got)
	}

	reason := "Нет фотографий товара"
	handled, err := fx.svc.SubmitRejectReason(ctx, modChatA, reason)
	if err != nil || !handled {
		t.Fatalf("SubmitRejectReason = (%v, %v), want handled", handled, err)
	}
	ad := fx.repo.ads["ad-1"]
	if ad.Status != domain.StatusRejected || ad.RejectReason != reason {
		t.Errorf("ad = %q/%q, want rejected with the verbatim reason", ad.Status, ad.RejectReason)
	}
	if got := fx.sender.lastText(ownerChat); got != fmt.Sprintf(msgRejectedOwner, reason) {
		t.Errorf("owner message = %q", got)
	}
	if got := fx.sender.lastText(modChatA); got != msgReasonSent {
		t.Errorf("moderator message = %q, want %q", got, msgReasonSent)
	}
}

func TestSubmitRejectReason_NotAwaiting(t *testing.T) {
	fx := newModerationFixture(t)
	handled, err := fx.svc.SubmitRejectReason(context.Background(), modChatA, "просто текст")
	if err != nil {
		t.Fatalf("SubmitRejectReason: %v", err)
	}
	if handled {
		t.Error("message consumed without an armed reason marker")
	}
}

func TestSubmitRejectReason_LosesRaceToApproval(t *testing.T) {
	fx := newModerationFixture(t)
	ctx := context.Background()
	if err := fx.svc.Reject(ctx, modChatA, "ad-1"); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if err := fx.svc.Approve(ctx, modChatB, "ad-1"); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	handled, err := fx.svc.SubmitRejectReason(ctx, modChatA, "поздно")
	if err != nil || !handled {
		t.Fatalf("SubmitRejectReason = (%v, %v)", handled, err)
	}
	if got := fx.sender.lastText(modChatA); got != msgAlreadyTaken {
		t.Errorf("message = %q, want %q", got, msgAlreadyTaken)
	}
	if got := fx.repo.ads["ad-1"].Status; got != domain.StatusApproved {
		t.Errorf("status = %q, approval must stand", got)
	}
}

func TestWithdraw_DeletesChannelMessages(t *testing.T) {
	fx := newModerationFixture(t)
	ctx := context.Background()
	ad := fx.repo.ads["ad-1"]
	ad.Status = domain.StatusApproved
	ad.Messages = []domain.ChannelMessage{
		{ChatID: channelID, MessageID: 11},
		{ChatID: channelID, MessageID: 12},
	}

	if err := fx.svc.Withdraw(ctx, ownerChat, "ad-1"); err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	if got := ad.Status; got != domain.StatusUnpublished {
		t.Errorf("status = %q, want unpublished", got)
	}
	if len(fx.sender.deleted) != 2 {
		t.Errorf("deleted %d channel messages, want 2", len(fx.sender.deleted))
	}
	if len(fx.repo.dropped) != 1 || fx.repo.dropped[0] != "ad-1" {
		t.Errorf("dropped refs = %v", fx.repo.dropped)
	}
	if got := fx.sender.lastText(ownerChat); got != msgWithdrawn {
		t.Errorf("owner message = %q, want %q", got, msgWithdrawn)
	}
}

func TestWithdraw_Guards(t *testing.T) {
	t.Run("not owner", func(t *testing.T) {
		fx := newModerationFixture(t)
		fx.repo.ads["ad-1"].Status = domain.StatusApproved
		if err := fx.svc.Withdraw(context.Background(), modChatA, "ad-1"); !errors.Is(err, ErrNotOwner) {
			t.Fatalf("err = %v, want ErrNotOwner", err)
		}
		if got := fx.repo.ads["ad-1"].Status; got != domain.StatusApproved {
			t.Errorf("status = %q, want approved", got)
		}
		if got := fx.sender.lastText(modChatA); got != msgNotOwner {
			t.Errorf("message = %q, want %q", got, msgNotOwner)
		}
	})

	t.Run("missing ad", func(t *testing.T) {
		fx := newModerationFixture(t)
		if err := fx.svc.Withdraw(context.Background(), ownerChat, "ad-404"); !errors.Is(err, ErrAdNotFound) {
			t.Fatalf("err = %v, want ErrAdNotFound", err)
		}
		if got := fx.sender.lastText(ownerChat); got != msgAdGone {
			t.Errorf("message = %q, want %q", got, msgAdGone)
		}
	})

	t.Run("not approved", func(t *testing.T) {
		fx := newModerationFixture(t)
		if err := fx.svc.Withdraw(context.Background(), ownerChat, "ad-1"); !errors.Is(err, ErrNotApproved) {
			t.Fatalf("err = %v, want ErrNotApproved", err)
		}
		if got := fx.sender.lastText(ownerChat); got != msgCannotWithdraw {
			t.Errorf("message = %q, want %q", got, msgCannotWithdraw)
		}
		if len(fx.sender.deleted) != 0 {
			t.Error("messages deleted for an unpublished ad")
		}
	})
}

func TestListPending(t *testing.T) {
	fx := newModerationFixture(t)
	ctx := context.Background()

	if err := fx.svc.ListPending(ctx, modChatA); err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if got := fx.sender.lastText(modChatA); got != msgNoPending {
		t.Errorf("empty queue message = %q, want %q", got, msgNoPending)
	}

	fx.repo.pending = []domain.Ad{*fx.repo.ads["ad-1"]}
	if err := fx.svc.ListPending(ctx, modChatA); err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	msgs := fx.sender.sentTo(modChatA)
	last := msgs[len(msgs)-1]
	if last.kb == nil {
		t.Error("pending card carries no decision keyboard")
	}
}

func TestListMine(t *testing.T) {
	fx := newModerationFixture(t)
	ctx := context.Background()

	if err := fx.svc.ListMine(ctx, ownerChat); err != nil {
		t.Fatalf("ListMine: %v", err)
	}
	if got := fx.sender.lastText(ownerChat); got != msgNoOwnAds {
		t.Errorf("empty listing message = %q, want %q", got, msgNoOwnAds)
	}

	ad := *fx.repo.ads["ad-1"]
	ad.Status = domain.StatusApproved
	fx.repo.approved = []domain.Ad{ad}
	if err := fx.svc.ListMine(ctx, ownerChat); err != nil {
		t.Fatalf("ListMine: %v", err)
	}
	msgs := fx.sender.sentTo(ownerChat)
	last := msgs[len(msgs)-1]
	if last.kb == nil {
		t.Error("own-ad card carries no withdraw keyboard")
	}
}
