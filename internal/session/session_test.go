package session

import (
	"testing"
	"time"
)

func TestLoginFieldsMoveTogether(t *testing.T) {
	s := New(Config{SiteID: 106, DeveloperKey: "k"})
	if s.IsUserLoggedIn() {
		t.Fatal("fresh session reports a logged-in user")
	}
	if s.LoggedInUserID() != 0 {
		t.Fatalf("LoggedInUserID() = %d, want 0", s.LoggedInUserID())
	}

	user := UserInfo{UserID: 9090, UserName: "player"}
	if err := s.BeginUserSession(user, "tok", "sess-1", "refresh", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("BeginUserSession() error = %v", err)
	}
	if !s.IsUserLoggedIn() {
		t.Fatal("IsUserLoggedIn() = false after BeginUserSession")
	}
	if s.LoggedInUserID() != 9090 || s.AuthToken() != "tok" || s.SessionID() != "sess-1" {
		t.Fatalf("unexpected session state: id=%d tok=%q sess=%q", s.LoggedInUserID(), s.AuthToken(), s.SessionID())
	}

	s.ClearUserSession()
	if s.IsUserLoggedIn() || s.AuthToken() != "" || s.LoggedInUserID() != 0 || s.RefreshToken() != "" {
		t.Fatal("ClearUserSession left auth state behind")
	}
}

func TestBeginUserSessionRejectsHalfSetState(t *testing.T) {
	s := New(Config{SiteID: 106, DeveloperKey: "k"})
	if err := s.BeginUserSession(UserInfo{UserID: 0}, "tok", "", "", time.Time{}); err == nil {
		t.Fatal("expected error for zero user id")
	}
	if err := s.BeginUserSession(UserInfo{UserID: 5}, "", "", "", time.Time{}); err == nil {
		t.Fatal("expected error for empty auth token")
	}
	if s.IsUserLoggedIn() {
		t.Fatal("rejected login mutated the session")
	}
}

func TestClearKeepsAnonymousIdentity(t *testing.T) {
	s := New(Config{SiteID: 106, DeveloperKey: "k"})
	s.SetAnonymousUser(AnonymousUser{UserID: -44, UserName: "anon"})
	_ = s.BeginUserSession(UserInfo{UserID: 1}, "tok", "", "", time.Time{})
	s.ClearUserSession()
	if got := s.AnonymousUser(); got.UserID != -44 || got.UserName != "anon" {
		t.Fatalf("anonymous identity lost on logout: %+v", got)
	}
}

func TestFavoriteGamesMostRecentFirstNoDup(t *testing.T) {
	s := New(Config{SiteID: 106, DeveloperKey: "k"})
	s.AddFavoriteGame(1)
	s.AddFavoriteGame(2)
	s.AddFavoriteGame(3)
	s.AddFavoriteGame(1)

	got := s.AnonymousUser().FavoriteGames
	want := []int64{1, 3, 2}
	if len(got) != len(want) {
		t.Fatalf("FavoriteGames = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("FavoriteGames = %v, want %v", got, want)
		}
	}
}

func TestDefaultLanguageCode(t *testing.T) {
	s := New(Config{SiteID: 106, DeveloperKey: "k"})
	if s.LanguageCode() != "en" {
		t.Fatalf("LanguageCode() = %q, want en", s.LanguageCode())
	}
	if !s.Online() {
		t.Fatal("new session should start online")
	}
}
