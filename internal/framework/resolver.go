package framework

import (
	"context"

	"github.com/spigell/skill-mapper/internal/competency"
	"github.com/spigell/skill-mapper/internal/utils"

	"github.com/google/uuid"
)

// Resolver binds claims to the best matching competency of one framework.
// It is the offline counterpart of the taxonomy backed skills.Resolver.
type Resolver struct {
	service   *MappingService
	framework string
	threshold float64
}

func NewResolver(service *MappingService, frameworkName string, threshold float64) *Resolver {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Resolver{service: service, framework: frameworkName, threshold: threshold}
}

func (r *Resolver) Name() string { return r.framework }

// Resolve returns nil without error when nothing clears the threshold.
func (r *Resolver) Resolve(ctx context.Context, claim competency.Claim) (*competency.Mapped, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	matches, err := r.service.MapToFramework(claim.Name, r.framework, r.threshold)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}

	best := matches[0]
	best.ID = uuid.NewString()
	best.Confidence = utils.Clamp01(claim.Confidence)
	best.AddEvidence(claim.Evidence)
	best.Metadata["claim_name"] = claim.Name
	best.Metadata["claim_category"] = string(claim.Category)

	return &best, nil
}
