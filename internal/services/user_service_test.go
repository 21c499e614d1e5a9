package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"gorm.io/gorm"

	"github.com/tbourn/go-board-bot/internal/domain"
	"github.com/tbourn/go-board-bot/internal/repo"
	"github.com/tbourn/go-board-bot/internal/session"
)

type fakeUserRepo struct {
	users    map[int64]*domain.User
	upserted []int64
	phones   map[int64]string
}

func (f *fakeUserRepo) UpsertUser(_ context.Context, _ *gorm.DB, telegramID int64, firstName, lastName, login string) (*domain.User, error) {
	f.upserted = append(f.upserted, telegramID)
	u, ok := f.users[telegramID]
	if !ok {
		u = &domain.User{ID: fmt.Sprintf("u-%d", telegramID), TelegramID: telegramID}
		if f.users == nil {
			f.users = make(map[int64]*domain.User)
		}
		f.users[telegramID] = u
	}
	u.FirstName, u.LastName, u.Login = firstName, lastName, login
	return u, nil
}

func (f *fakeUserRepo) SetUserPhone(_ context.Context, _ *gorm.DB, telegramID int64, phone string) error {
	if _, ok := f.users[telegramID]; !ok {
		return repo.ErrNotFound
	}
	if f.phones == nil {
		f.phones = make(map[int64]string)
	}
	f.phones[telegramID] = phone
	f.users[telegramID].Phone = phone
	return nil
}

func (f *fakeUserRepo) GetUserByTelegramID(_ context.Context, _ *gorm.DB, telegramID int64) (*domain.User, error) {
	u, ok := f.users[telegramID]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return u, nil
}

func newUserFixture(t *testing.T) (*UserService, *fakeUserRepo, *fakeSender, *session.Store) {
	t.Helper()
	sender := &fakeSender{}
	store := session.NewStore()
	n := NewNotifier(sender, 0)
	r := &fakeUserRepo{users: map[int64]*domain.User{}}
	svc := NewUserService(nil, r, store, NewBatchCollector(store, newFakeScheduler(), n), n)
	return svc, r, sender, store
}

func TestRegister_BindsSessionAndGreets(t *testing.T) {
	svc, r, sender, store := newUserFixture(t)
	if err := svc.Register(context.Background(), 100, 100, "Анна", "", "anna"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if len(r.upserted) != 1 {
		t.Fatalf("upserts = %v, want one", r.upserted)
	}
	var userID string
	store.With(100, func(s *session.Session) { userID = s.UserID })
	if userID != "u-100" {
		t.Errorf("session user = %q, want u-100", userID)
	}
	if got := sender.lastText(100); got != fmt.Sprintf(msgGreeting, "Анна") {
		t.Errorf("greeting = %q", got)
	}
}

func TestRegister_DiscardsInProgressDraft(t *testing.T) {
	svc, _, _, store := newUserFixture(t)
	store.With(100, func(s *session.Session) {
		s.UserID = "u-100"
		s.State = session.StateAwaitingPrice
		s.Draft = &session.Draft{Title: "Диван"}
	})

	if err := svc.Register(context.Background(), 100, 100, "Анна", "", "anna"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	store.With(100, func(s *session.Session) {
		if s.State != session.StateIdle || s.Draft != nil {
			t.Errorf("state/draft = %v/%v, want a clean session", s.State, s.Draft)
		}
	})
}

func TestSaveContact(t *testing.T) {
	svc, r, sender, _ := newUserFixture(t)
	if err := svc.Register(context.Background(), 100, 100, "Анна", "", "anna"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := svc.SaveContact(context.Background(), 100, 100, "+79990000000"); err != nil {
		t.Fatalf("SaveContact: %v", err)
	}
	if got := r.phones[100]; got != "+79990000000" {
		t.Errorf("stored phone = %q", got)
	}
	if got := sender.lastText(100); got != msgPhoneSaved {
		t.Errorf("message = %q, want %q", got, msgPhoneSaved)
	}
}

func TestSaveContact_UnknownUser(t *testing.T) {
	svc, _, sender, _ := newUserFixture(t)
	err := svc.SaveContact(context.Background(), 100, 100, "+79990000000")
	if !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("err = %v, want ErrNotAuthenticated", err)
	}
	if got := sender.lastText(100); got != msgNotAuthenticated {
		t.Errorf("message = %q, want %q", got, msgNotAuthenticated)
	}
}
