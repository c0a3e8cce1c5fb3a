package service

import (
	"context"

	"github.com/kevinotieno/wablast-backend/internal/apperrors"
	"github.com/kevinotieno/wablast-backend/internal/model"
	"github.com/kevinotieno/wablast-backend/internal/repository"
)

// Recipient is one resolved audience member: the phone to deliver to plus
// the contact name used for template personalization.
type Recipient struct {
	Phone string
	Name  string
}

// AudienceResolver computes the deduplicated recipient set of a campaign.
type AudienceResolver struct {
	Audience repository.AudienceRepositoryInterface
}

func NewAudienceResolver(audience repository.AudienceRepositoryInterface) *AudienceResolver {
	return &AudienceResolver{Audience: audience}
}

// Resolve loads the assistant's conversation partners, narrows them by the
// campaign's segment filter when one is set, and dedupes by exact phone
// (first occurrence wins). It never partially resolves: any store failure
// comes back as a ResolutionError with nothing else done.
func (r *AudienceResolver) Resolve(ctx context.Context, campaign *model.Campaign) ([]Recipient, error) {
	contacts, err := r.Audience.ListContacts(ctx, campaign.AssistantID)
	if err != nil {
		return nil, &apperrors.ResolutionError{Err: err}
	}

	tagFilter := ""
	if campaign.SegmentID != nil {
		segment, err := r.Audience.GetSegment(ctx, *campaign.SegmentID)
		if err != nil {
			return nil, &apperrors.ResolutionError{Err: err}
		}
		// A missing or empty segment filter means "everyone".
		if segment != nil {
			tagFilter = segment.TagFilter
		}
	}

	seen := make(map[string]struct{}, len(contacts))
	recipients := []Recipient{}
	for _, c := range contacts {
		if tagFilter != "" && !hasTag(c.Tags, tagFilter) {
			continue
		}
		if _, dup := seen[c.Phone]; dup {
			continue
		}
		seen[c.Phone] = struct{}{}
		recipients = append(recipients, Recipient{Phone: c.Phone, Name: c.Name})
	}
	return recipients, nil
}

func hasTag(tags []string, want string) bool {
	for _, t := range tags {
		if t == want {
			return true
		}
	}
	return false
}
