package auth

import "context"

type GateState int

const (
	GateLoading GateState = iota
	GateUnauthenticated
	GateAuthenticated
)

func (s GateState) String() string {
	switch s {
	case GateUnauthenticated:
		return "unauthenticated"
	case GateAuthenticated:
		return "authenticated"
	default:
		return "loading"
	}
}

// Gate starts in GateLoading and resolves once from the session's user id.
type Gate struct {
	state GateState
	user  *User
}

func NewGate() *Gate {
	return &Gate{state: GateLoading}
}

func (g *Gate) State() GateState {
	return g.state
}

func (g *Gate) User() *User {
	return g.user
}

// Resolve looks up uid with the provider. An empty uid, an unknown user,
// a disabled account or a lookup failure all resolve to unauthenticated.
func (g *Gate) Resolve(ctx context.Context, p Provider, uid string) GateState {
	if g.state != GateLoading {
		return g.state
	}
	g.state = GateUnauthenticated
	if uid == "" {
		return g.state
	}
	user, err := p.User(ctx, uid)
	if err != nil || user == nil || user.Disabled {
		return g.state
	}
	g.user = user
	g.state = GateAuthenticated
	return g.state
}
