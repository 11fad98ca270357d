package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"bahri-storefront/internal/backend"
	"bahri-storefront/internal/domain"
	"bahri-storefront/internal/service/cart"
	"go.uber.org/zap"
)

// FallbackMessage is shown when the backend gave no usable reason.
const FallbackMessage = "Your order could not be placed. Please try again."

type orderAPI interface {
	CreateOrder(ctx context.Context, in domain.OrderRequest) (*domain.OrderConfirmation, error)
}

type cartStore interface {
	Snapshot() (domain.Cart, error)
	Clear(ctx context.Context, opts ...cart.MutateOption) (domain.Cart, error)
}

// Submission is what the checkout form collects.
type Submission struct {
	UseLoyalty bool
	// Contact is required in full for guests and ignored for signed-in users.
	Contact domain.ShippingInfo
	// Override replaces the profile address field by field when non-empty.
	Override *domain.AddressOverride
}

// SubmitError is a failed submission. The cart is untouched.
type SubmitError struct {
	Message string
	Err     error
}

func (e *SubmitError) Error() string {
	return e.Message
}

func (e *SubmitError) Unwrap() error {
	return e.Err
}

type Submitter struct {
	api      orderAPI
	cart     cartStore
	identity identityReader
	logger   *zap.Logger
	inFlight atomic.Bool
}

func NewSubmitter(api orderAPI, store cartStore, identity identityReader, logger *zap.Logger) *Submitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Submitter{api: api, cart: store, identity: identity, logger: logger}
}

// Submit places the order once. The cart is cleared only after the backend
// accepted it; a second call while one is running fails with
// domain.ErrInProgress.
func (s *Submitter) Submit(ctx context.Context, in Submission) (*domain.OrderConfirmation, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		return nil, &SubmitError{Message: "An order is already being placed.", Err: domain.ErrInProgress}
	}
	defer s.inFlight.Store(false)

	snapshot, err := s.cart.Snapshot()
	if err != nil {
		return nil, &SubmitError{Message: FallbackMessage, Err: err}
	}
	id := s.identity.Identity()

	req, err := BuildRequest(snapshot, id, in)
	if err != nil {
		return nil, err
	}

	conf, err := s.api.CreateOrder(ctx, req)
	if err != nil {
		s.logger.Warn("create order",
			zap.String("scope", snapshot.Scope),
			zap.Int("lines", len(req.Items)),
			zap.Error(err),
		)
		return nil, &SubmitError{Message: backend.MessageOf(err, FallbackMessage), Err: err}
	}

	// Only the cart that was ordered is cleared; lines added meanwhile or a
	// switched identity leave the active cart alone.
	if _, err := s.cart.Clear(ctx, cart.IfScope(snapshot.Scope), cart.IfVersion(snapshot.Version)); err != nil {
		s.logger.Warn("clear ordered cart", zap.String("scope", snapshot.Scope), zap.String("order", conf.OrderID), zap.Error(err))
	}
	s.logger.Info("order placed", zap.String("scope", snapshot.Scope), zap.String("order", conf.OrderID), zap.String("total", conf.Total))
	return conf, nil
}

// BuildRequest validates the submission against the cart and identity and
// produces the order payload. Prices are left to the backend.
func BuildRequest(c domain.Cart, id domain.Identity, in Submission) (domain.OrderRequest, error) {
	if len(c.Lines) == 0 {
		return domain.OrderRequest{}, &SubmitError{Message: "Your cart is empty.", Err: domain.ErrEmptyCart}
	}
	shipping, err := ResolveShipping(id, in)
	if err != nil {
		return domain.OrderRequest{}, err
	}
	items := make([]domain.OrderItemInput, 0, len(c.Lines))
	for _, l := range c.Lines {
		items = append(items, domain.OrderItemInput{ProductID: l.ProductID, Quantity: l.Quantity})
	}
	return domain.OrderRequest{
		Items:        items,
		UseLoyalty:   in.UseLoyalty && !id.IsGuest(),
		ShippingInfo: shipping,
	}, nil
}

// ResolveShipping picks the delivery block: the profile for signed-in users,
// with non-empty override fields taking precedence, or the entered contact
// for guests, all of whose fields are required.
func ResolveShipping(id domain.Identity, in Submission) (domain.ShippingInfo, error) {
	if id.IsGuest() {
		info := trimInfo(in.Contact)
		if missing := missingFields(info); len(missing) > 0 {
			return domain.ShippingInfo{}, &SubmitError{
				Message: "Please fill in: " + strings.Join(missing, ", "),
				Err:     fmt.Errorf("%w: missing %s", domain.ErrValidation, strings.Join(missing, ", ")),
			}
		}
		return info, nil
	}

	u := id.User
	info := domain.ShippingInfo{
		FullName: u.FullName(),
		Email:    u.Email,
		Phone:    u.Phone,
		Address:  u.Address,
		City:     u.City,
	}
	if o := in.Override; o != nil {
		if v := strings.TrimSpace(o.Address); v != "" {
			info.Address = v
		}
		if v := strings.TrimSpace(o.City); v != "" {
			info.City = v
		}
	}
	return info, nil
}

func trimInfo(in domain.ShippingInfo) domain.ShippingInfo {
	return domain.ShippingInfo{
		FullName: strings.TrimSpace(in.FullName),
		Email:    strings.TrimSpace(in.Email),
		Phone:    strings.TrimSpace(in.Phone),
		Address:  strings.TrimSpace(in.Address),
		City:     strings.TrimSpace(in.City),
	}
}

func missingFields(in domain.ShippingInfo) []string {
	var missing []string
	for _, f := range []struct {
		name, value string
	}{
		{"full_name", in.FullName},
		{"email", in.Email},
		{"phone", in.Phone},
		{"address", in.Address},
		{"city", in.City},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// IsValidation reports whether err was rejected before reaching the backend
// or by backend validation.
func IsValidation(err error) bool {
	return errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrEmptyCart)
}
