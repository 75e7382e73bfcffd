package models

// Binding routes (peer, channel, team, account) filters to an agent.
// Resolution score = priority + 4*peer-match + 2*team-match +
// 2*account-present + 1*channel-match.
type Binding struct {
	AgentID      string
	Priority     int
	Peer         string
	Channel      string
	Team         string
	Account      string
	registration int // monotonic order, set by the channel manager
}

// BindingContext is the incoming request context a binding is scored
// against.
type BindingContext struct {
	Peer    string
	Channel string
	Team    string
	Account string
}

// SetRegistrationOrder records the order a binding was registered in, used
// to break score ties.
func (b *Binding) SetRegistrationOrder(n int) { b.registration = n }

// RegistrationOrder returns the order a binding was registered in.
func (b *Binding) RegistrationOrder() int { return b.registration }

// Score computes the binding's match score against a context. Filters
// left empty on the binding are not evaluated (they neither help nor
// hurt beyond what's defined below).
func (b *Binding) Score(ctx BindingContext) (score int, ok bool) {
	score = b.Priority
	if b.Peer != "" {
		if b.Peer != ctx.Peer {
			return 0, false
		}
		score += 4
	}
	if b.Team != "" {
		if b.Team != ctx.Team {
			return 0, false
		}
		score += 2
	}
	if b.Account != "" {
		if b.Account != ctx.Account {
			return 0, false
		}
		score += 2
	}
	if b.Channel != "" {
		if b.Channel != ctx.Channel {
			return 0, false
		}
		score += 1
	}
	return score, true
}
