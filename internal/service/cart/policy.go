package cart

import (
	"fmt"
	"strings"

	"bahri-storefront/internal/domain"
)

// SwitchPolicy decides what the incoming scope's cart holds when the active
// identity changes. previous is the cart being left, next the cart persisted
// for the incoming scope. When adopt is true the store persists next under the
// incoming scope and removes previous from storage.
type SwitchPolicy interface {
	Name() string
	Switch(previous, next domain.Cart) (result domain.Cart, adopt bool)
}

const (
	PolicyDiscard = "discard"
	PolicyMerge   = "merge"
)

// DiscardOnSwitch loads the incoming scope's cart as persisted. The cart being
// left stays in storage under its own key and is not carried over.
type DiscardOnSwitch struct{}

func (DiscardOnSwitch) Name() string { return PolicyDiscard }

func (DiscardOnSwitch) Switch(_, next domain.Cart) (domain.Cart, bool) {
	return next, false
}

// MergeGuestIntoUser folds the guest cart into the signed-in user's cart on
// login. Quantities of products present in both are summed; the user's line
// keeps its captured price. Other transitions behave like DiscardOnSwitch.
type MergeGuestIntoUser struct{}

func (MergeGuestIntoUser) Name() string { return PolicyMerge }

func (MergeGuestIntoUser) Switch(previous, next domain.Cart) (domain.Cart, bool) {
	if previous.Scope != domain.GuestScope || next.Scope == domain.GuestScope || len(previous.Lines) == 0 {
		return next, false
	}
	merged := next.Clone()
	for _, line := range previous.Lines {
		if i := indexOf(merged.Lines, line.ProductID); i >= 0 {
			merged.Lines[i].Quantity += line.Quantity
			continue
		}
		merged.Lines = append(merged.Lines, line)
	}
	merged.Version++
	return merged, true
}

// PolicyByName resolves a configured policy name.
func PolicyByName(name string) (SwitchPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", PolicyDiscard:
		return DiscardOnSwitch{}, nil
	case PolicyMerge:
		return MergeGuestIntoUser{}, nil
	}
	return nil, fmt.Errorf("unknown cart merge policy %q", name)
}

func indexOf(lines []domain.CartLine, productID string) int {
	for i, l := range lines {
		if l.ProductID == productID {
			return i
		}
	}
	return -1
}
