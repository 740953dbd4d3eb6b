package ratecard

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Registry is the write path for rate cards. It validates, assigns IDs and
// versions, and never mutates a card a recorded quote refers to.
type Registry struct {
	cards     Store
	companies CompanyStore
	refs      ReferenceChecker
	logger    *zap.Logger
	now       func() time.Time
}

func NewRegistry(cards Store, companies CompanyStore, refs ReferenceChecker, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		cards:     cards,
		companies: companies,
		refs:      refs,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock overrides the registry's clock.
func (r *Registry) WithClock(now func() time.Time) *Registry {
	r.now = now
	return r
}

// Publish creates a card (empty ID) or updates an existing one.
//
// Updating a card that no recorded quote references replaces it in place
// with Version+1. Updating a referenced card writes a new card with a new ID
// and Version+1, marks the old one inactive with SupersededBy, and re-points
// every tier assignment that used the old card.
func (r *Registry) Publish(ctx context.Context, card RateCard) (*RateCard, error) {
	now := r.now().UTC()
	card = card.Clone()
	if card.Status == "" {
		card.Status = StatusActive
	}
	if card.ZoneMode == "" {
		card.ZoneMode = inferZoneMode(&card)
	}
	if err := card.Validate(); err != nil {
		return nil, err
	}

	if card.ID == "" {
		card.ID = RateCardID(uuid.NewString())
		card.Version = 1
		card.CreatedAt = now
		card.UpdatedAt = now
		card.SupersededBy = ""
		if err := r.cards.SaveRateCard(ctx, card); err != nil {
			return nil, fmt.Errorf("save rate card: %w", err)
		}
		r.logger.Info("rate card created",
			zap.String("rate_card_id", string(card.ID)),
			zap.String("company_id", string(card.CompanyID)),
			zap.String("name", card.Name))
		return &card, nil
	}

	existing, err := r.cards.GetRateCard(ctx, card.ID)
	if err != nil {
		return nil, err
	}
	if existing.SupersededBy != "" {
		return nil, fmt.Errorf("%w: %s replaced by %s", ErrSuperseded, existing.ID, existing.SupersededBy)
	}
	if existing.CompanyID != card.CompanyID {
		return nil, fmt.Errorf("%w: %s", ErrRateCardNotFound, card.ID)
	}

	referenced := false
	if r.refs != nil {
		referenced, err = r.refs.IsRateCardReferenced(ctx, existing.ID)
		if err != nil {
			return nil, fmt.Errorf("check quote references: %w", err)
		}
	}

	card.Version = existing.Version + 1
	card.CreatedAt = existing.CreatedAt
	card.UpdatedAt = now

	if !referenced {
		if err := r.cards.SaveRateCard(ctx, card); err != nil {
			return nil, fmt.Errorf("save rate card: %w", err)
		}
		return &card, nil
	}

	card.ID = RateCardID(uuid.NewString())
	card.CreatedAt = now
	if err := r.cards.SaveRateCard(ctx, card); err != nil {
		return nil, fmt.Errorf("save rate card version: %w", err)
	}

	old := existing.Clone()
	old.Status = StatusInactive
	old.SupersededBy = card.ID
	old.UpdatedAt = now
	if err := r.cards.SaveRateCard(ctx, old); err != nil {
		return nil, fmt.Errorf("supersede rate card: %w", err)
	}

	if err := r.repoint(ctx, card.CompanyID, old.ID, card.ID, now); err != nil {
		return nil, err
	}

	r.logger.Info("rate card versioned",
		zap.String("old_rate_card_id", string(old.ID)),
		zap.String("rate_card_id", string(card.ID)),
		zap.Int("version", card.Version))
	return &card, nil
}

func (r *Registry) repoint(ctx context.Context, companyID CompanyID, from, to RateCardID, at time.Time) error {
	if r.companies == nil {
		return nil
	}
	assignments, err := r.companies.ListAssignments(ctx, companyID)
	if err != nil {
		return fmt.Errorf("list assignments: %w", err)
	}
	for _, a := range assignments {
		if a.RateCardID != from {
			continue
		}
		a.RateCardID = to
		a.AssignedAt = at
		if err := r.companies.SaveAssignment(ctx, a); err != nil {
			return fmt.Errorf("repoint assignment %s: %w", a.Tier, err)
		}
	}
	return nil
}

// Assign makes a card the default for a company tier, replacing any
// previous default of that tier.
func (r *Registry) Assign(ctx context.Context, companyID CompanyID, tier Tier, cardID RateCardID) (*Assignment, error) {
	card, err := r.cards.GetRateCard(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if card.CompanyID != companyID {
		return nil, fmt.Errorf("%w: %s", ErrRateCardNotFound, cardID)
	}
	if card.SupersededBy != "" {
		return nil, fmt.Errorf("%w: %s replaced by %s", ErrSuperseded, card.ID, card.SupersededBy)
	}
	a := Assignment{CompanyID: companyID, Tier: tier, RateCardID: cardID, AssignedAt: r.now().UTC()}
	if err := r.companies.SaveAssignment(ctx, a); err != nil {
		return nil, fmt.Errorf("save assignment: %w", err)
	}
	return &a, nil
}

// Resolve returns the card to price with: the explicit id when given,
// otherwise the default assigned to the company's tier.
func (r *Registry) Resolve(ctx context.Context, companyID CompanyID, explicit RateCardID) (*RateCard, error) {
	if explicit != "" {
		card, err := r.cards.GetRateCard(ctx, explicit)
		if err != nil {
			return nil, err
		}
		if card.CompanyID != companyID {
			return nil, fmt.Errorf("%w: %s", ErrRateCardNotFound, explicit)
		}
		return card, nil
	}

	company, err := r.companies.GetCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}
	a, err := r.companies.GetAssignment(ctx, companyID, company.Tier)
	if err != nil {
		return nil, err
	}
	return r.cards.GetRateCard(ctx, a.RateCardID)
}

func inferZoneMode(c *RateCard) ZoneMode {
	switch {
	case len(c.ZoneMultipliers) > 0 && len(c.ZoneRules) == 0:
		return ZoneModeMultiplier
	case len(c.ZoneRules) > 0 && len(c.ZoneMultipliers) == 0:
		return ZoneModeFlat
	case len(c.ZoneRules) == 0 && len(c.ZoneMultipliers) == 0:
		return ZoneModeNone
	}
	// Both present: leave it to Validate to reject.
	return ZoneModeFlat
}
