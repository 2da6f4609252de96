package auth

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestProvider(t *testing.T) *SQLProvider {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "users.db")), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatal(err)
	}
	p, err := NewSQLProvider(gdb)
	if err != nil {
		t.Fatal(err)
	}
	p.cost = bcrypt.MinCost
	return p
}

func TestSignUpAndSignIn(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	user, err := p.SignUp(ctx, " Alice@Example.com ", "secret1")
	if err != nil {
		t.Fatal(err)
	}
	if user.ID == "" || user.Email != "alice@example.com" {
		t.Fatalf("unexpected user %+v", user)
	}

	got, err := p.SignIn(ctx, "alice@example.com", "secret1")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != user.ID {
		t.Fatalf("signed in as %s, want %s", got.ID, user.ID)
	}

	found, err := p.User(ctx, user.ID)
	if err != nil || found == nil || found.Email != user.Email {
		t.Fatalf("lookup failed: %+v %v", found, err)
	}
	missing, err := p.User(ctx, "nope")
	if err != nil || missing != nil {
		t.Fatalf("expected nil, nil got %+v %v", missing, err)
	}
}

func TestAuthErrorKinds(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()
	user, err := p.SignUp(ctx, "bob@example.com", "secret1")
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name string
		call func() error
		kind ErrorKind
	}{
		{"invalid email", func() error { _, err := p.SignIn(ctx, "not-an-email", "x"); return err }, KindInvalidEmail},
		{"unknown user", func() error { _, err := p.SignIn(ctx, "carol@example.com", "x"); return err }, KindUserNotFound},
		{"wrong password", func() error { _, err := p.SignIn(ctx, "bob@example.com", "wrong!"); return err }, KindWrongPassword},
		{"weak password", func() error { _, err := p.SignUp(ctx, "dave@example.com", "123"); return err }, KindWeakPassword},
		{"duplicate email", func() error { _, err := p.SignUp(ctx, "BOB@example.com", "secret1"); return err }, KindEmailInUse},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.call()
			if got := KindOf(err); got != tc.kind {
				t.Fatalf("want %s got %s (%v)", tc.kind, got, err)
			}
		})
	}

	if err := p.SetDisabled(ctx, user.ID, true); err != nil {
		t.Fatal(err)
	}
	if _, err := p.SignIn(ctx, "bob@example.com", "secret1"); KindOf(err) != KindUserDisabled {
		t.Fatalf("expected disabled, got %v", err)
	}
}

func TestMessage(t *testing.T) {
	cases := map[ErrorKind]string{
		KindInvalidEmail:         "Invalid email address",
		KindUserDisabled:         "This account has been disabled",
		KindUserNotFound:         "Invalid email or password",
		KindWrongPassword:        "Invalid email or password",
		KindNetworkRequestFailed: "Network error. Please check your connection",
		KindPopupClosedByUser:    "Google sign-in was cancelled",
		KindUnknown:              FallbackMessage,
	}
	for kind, want := range cases {
		if got := Message(newError(kind, nil)); got != want {
			t.Fatalf("%s: want %q got %q", kind, want, got)
		}
	}
	if got := Message(errors.New("plain")); got != FallbackMessage {
		t.Fatalf("plain errors should fall back, got %q", got)
	}
}

func TestGate(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()
	user, err := p.SignUp(ctx, "erin@example.com", "secret1")
	if err != nil {
		t.Fatal(err)
	}

	g := NewGate()
	if g.State() != GateLoading {
		t.Fatalf("initial state should be loading, got %s", g.State())
	}
	if s := g.Resolve(ctx, p, user.ID); s != GateAuthenticated {
		t.Fatalf("want authenticated, got %s", s)
	}
	if g.User().ID != user.ID {
		t.Fatal("gate did not keep the user")
	}

	for _, uid := range []string{"", "unknown"} {
		g := NewGate()
		if s := g.Resolve(ctx, p, uid); s != GateUnauthenticated {
			t.Fatalf("uid %q: want unauthenticated, got %s", uid, s)
		}
	}
}
