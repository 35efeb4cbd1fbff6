package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"civitas/internal/verification/canonical"
	"civitas/internal/verification/commitment"
	"civitas/internal/verification/identityhash"
	"civitas/internal/verification/models"
	"civitas/internal/verification/privacy"
	"civitas/internal/verification/providers"
	"civitas/internal/verification/store"
	"civitas/internal/verification/trust"
	id "civitas/pkg/domain"
	dErrors "civitas/pkg/domain-errors"
	"civitas/pkg/platform/audit"
	"civitas/pkg/platform/sentinel"
	"civitas/pkg/requestcontext"
)

// Verify checks a proof of personhood for accountID and records the
// verified identity.
func (s *Service) Verify(ctx context.Context, accountID id.AccountID, providerType models.ProviderType, proof json.RawMessage) (res *Result, err error) {
	ctx, span := s.startSpan(ctx, "verification.Verify", attribute.String("provider_type", string(providerType)))
	defer func() { endSpan(span, err) }()
	defer func() { s.metrics.IncrementAttempt(string(providerType), identityOutcome(res, err)) }()

	if err := s.ensureNotMerged(ctx, accountID); err != nil {
		return nil, err
	}
	if providerType == models.ProviderMobileCredential {
		return nil, dErrors.New(dErrors.CodeBadRequest, "mobile credentials are verified through a session")
	}
	verifier, err := s.verifiers.Get(providerType)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "unsupported provider type: "+string(providerType))
	}

	start := time.Now()
	disclosure, err := verifier.Verify(ctx, proof)
	s.observeProvider(verifier.ID(), start)
	if err != nil {
		derr := providers.ToDomainError(err)
		s.logProviderFailure(ctx, verifier.ID(), err)
		s.recordFailure(ctx, accountID, audit.EventVerificationFailed, string(providerType.Method()), derr, nil)
		return nil, derr
	}
	defer disclosure.Wipe()
	if !disclosure.Valid {
		derr := dErrors.New(dErrors.CodeInvalidProof, "proof was rejected by the provider")
		s.recordFailure(ctx, accountID, audit.EventVerificationFailed, string(providerType.Method()), derr, nil)
		return nil, derr
	}
	return s.acceptIdentity(ctx, accountID, providerType, &disclosure.Attributes, nil)
}

func (s *Service) logProviderFailure(ctx context.Context, providerID string, err error) {
	if providers.IsRetryable(err) {
		s.logger.WarnContext(ctx, "verification provider unavailable",
			"provider", providerID,
			"category", string(providers.GetCategory(err)),
		)
		return
	}
	s.logger.InfoContext(ctx, "verification provider rejected request",
		"provider", providerID,
		"category", string(providers.GetCategory(err)),
	)
}

// identityMaterial is everything derived from raw attributes. Once built,
// the raw attributes are no longer needed.
type identityMaterial struct {
	hash        identityhash.Result
	commitment  string
	nationality string
	birthYear   int
	docClass    string
}

func (s *Service) deriveIdentity(providerType models.ProviderType, attrs *models.Attributes) (identityMaterial, error) {
	defer attrs.Wipe()

	hash, err := s.engine.Compute(string(providerType), identityhash.Input{
		DocumentNumber: attrs.DocumentNumber,
		DocumentType:   attrs.DocumentType,
		Nationality:    attrs.Nationality,
		BirthYear:      attrs.BirthYear,
	})
	if err != nil {
		return identityMaterial{}, err
	}

	refNumber, refType := attrs.Reference()
	c, err := s.committer.Compute(commitment.Input{
		Nationality:             attrs.Nationality,
		BirthYear:               attrs.BirthYear,
		DocumentClass:           refType,
		ReferenceDocumentNumber: refNumber,
	})
	if err != nil {
		return identityMaterial{}, err
	}

	nationality, err := canonical.Nationality(attrs.Nationality)
	if err != nil {
		return identityMaterial{}, dErrors.Wrap(err, dErrors.CodeInvalidProof, "nationality is not recognized")
	}
	docClass, err := canonical.DocumentClass(attrs.DocumentType)
	if err != nil {
		docClass = ""
	}
	if providerType == models.ProviderMobileCredential {
		// Tier 4 depends on the class of the document the credential was
		// issued against, not the credential itself.
		if refClass, err := canonical.DocumentClass(refType); err == nil {
			docClass = refClass
		}
	}
	return identityMaterial{
		hash:        hash,
		commitment:  c,
		nationality: nationality,
		birthYear:   attrs.BirthYear,
		docClass:    docClass,
	}, nil
}

// acceptIdentity persists a verified identity, binds its commitment and
// raises the tier in one transaction. locality is optional.
func (s *Service) acceptIdentity(ctx context.Context, accountID id.AccountID, providerType models.ProviderType, attrs *models.Attributes, locality *privacy.Derived) (*Result, error) {
	method := providerType.Method()
	material, err := s.deriveIdentity(providerType, attrs)
	if err != nil {
		s.recordFailure(ctx, accountID, audit.EventVerificationFailed, string(method), err, nil)
		return nil, err
	}

	var (
		result       *Result
		upgradedTier bool
	)
	txErr := s.store.RunInTx(ctx, func(ctx context.Context, repo store.Repository) error {
		now := requestcontext.Now(ctx)
		result = &Result{AccountID: accountID}
		upgradedTier = false
		if locality != nil {
			result.DerivedLocalityID = locality.LocalityID
		}

		// The binding row is locked before any profile row so transactions
		// touching the same identity acquire locks in one order.
		bound, err := s.binder.Bind(ctx, repo, accountID, material.commitment, now)
		if err != nil {
			return err
		}
		profile, err := repo.LockProfile(ctx, accountID, now)
		if err != nil {
			return err
		}
		if profile.IsMerged() {
			return dErrors.New(dErrors.CodeAccountMerged, "account was merged into another account")
		}
		if err := s.claimIdentity(ctx, repo, accountID, providerType, material, now); err != nil {
			return err
		}

		incoming := trust.Signals{
			Method:                method,
			DocumentType:          material.docClass,
			HasIdentityCommitment: true,
		}
		if locality != nil {
			at := now
			incoming.AddressVerifiedAt = &at
			incoming.LocalityPrecision = locality.Precision
		}

		rec := s.newRecord(ctx, accountID, audit.EventIdentityVerified, string(method), audit.StatusSuccess)
		rec.Metadata["identity_fingerprint"] = material.hash.Fingerprint
		var follow []audit.Record

		if !bound.LinkedToExisting {
			tier, upgraded, err := s.applySignals(ctx, repo, profile, incoming, locality, material.commitment, now)
			if err != nil {
				return err
			}
			result.TrustTier = tier
			upgradedTier = upgraded
			rec.Metadata["trust_tier"] = strconv.Itoa(int(tier))
			if upgraded {
				follow = append(follow, s.tierRecord(ctx, accountID, string(method), int(tier)))
			}
		} else {
			// The incoming account stops being independently verified: its
			// own tier is left alone and the new signals land on the
			// canonical account only.
			canonicalID := bound.CanonicalAccountID
			merged, err := s.binder.Merge(ctx, repo, accountID, canonicalID, now)
			if err != nil {
				return err
			}
			canonicalProfile, err := repo.LockProfile(ctx, canonicalID, now)
			if err != nil {
				return err
			}
			tier, upgraded, err := s.applySignals(ctx, repo, canonicalProfile, incoming, locality, material.commitment, now)
			if err != nil {
				return err
			}
			result.MergedInto = &canonicalID
			result.TrustTier = tier
			upgradedTier = upgraded || merged.Upgraded
			rec.Metadata["canonical_account_id"] = canonicalID.String()

			mrec := s.newRecord(ctx, accountID, audit.EventAccountMerged, string(method), audit.StatusMerged)
			mrec.Metadata["canonical_account_id"] = canonicalID.String()
			mrec.Metadata["trust_tier"] = strconv.Itoa(int(tier))
			follow = append(follow, mrec)
			if upgradedTier {
				follow = append(follow, s.tierRecord(ctx, canonicalID, string(method), int(tier)))
			}
		}

		for _, r := range append([]audit.Record{rec}, follow...) {
			if err := s.auditor.Append(ctx, r); err != nil {
				return fmt.Errorf("append audit record: %w", err)
			}
		}
		return nil
	})
	if txErr != nil {
		err := translateStore(txErr)
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			s.logger.ErrorContext(ctx, "verification transaction failed",
				"account_id", accountID.String(),
				"identity_fingerprint", material.hash.Fingerprint,
				"error", txErr,
			)
		}
		s.recordFailure(ctx, accountID, audit.EventVerificationFailed, string(method), err,
			map[string]string{"identity_fingerprint": material.hash.Fingerprint})
		return nil, err
	}

	if result.MergedInto != nil {
		s.metrics.IncrementMerge()
	}
	if upgradedTier {
		s.metrics.IncrementTierUpgrade(result.TrustTier.String())
	}
	s.logger.InfoContext(ctx, "identity verified",
		"account_id", accountID.String(),
		"provider_type", string(providerType),
		"identity_fingerprint", material.hash.Fingerprint,
		"trust_tier", int(result.TrustTier),
		"merged", result.MergedInto != nil,
	)
	return result, nil
}

// applySignals folds incoming into profile, saves it and raises the stored
// tier. The returned tier is the one the signals support.
func (s *Service) applySignals(ctx context.Context, repo store.Repository, profile *models.TrustProfile, incoming trust.Signals, locality *privacy.Derived, identityCommitment string, now time.Time) (trust.Tier, bool, error) {
	folded := trust.Fold(profile.Signals(), incoming)
	profile.ApplySignals(folded)
	if incoming.AddressVerifiedAt != nil && folded.AddressVerifiedAt == incoming.AddressVerifiedAt {
		profile.DistrictHash = s.boundary.DistrictHash(locality.LocalityID)
	}
	if profile.IdentityCommitment == "" {
		profile.IdentityCommitment = identityCommitment
	}
	profile.TouchVerified(now)
	profile.UpdatedAt = now
	if err := repo.SaveProfile(ctx, profile); err != nil {
		return 0, false, err
	}
	tier := trust.DeriveTier(profile.TrustTier, folded)
	upgraded, err := repo.RaiseTier(ctx, profile.AccountID, tier, now)
	if err != nil {
		return 0, false, err
	}
	return tier, upgraded, nil
}

// claimIdentity records the identity for accountID. An identity that already
// belongs to another account is a duplicate; re-verifying one's own identity
// is allowed.
func (s *Service) claimIdentity(ctx context.Context, repo store.Repository, accountID id.AccountID, providerType models.ProviderType, m identityMaterial, now time.Time) error {
	existing, err := repo.FindIdentity(ctx, m.hash.Hash)
	switch {
	case err == nil:
		if existing.AccountID != accountID {
			return dErrors.New(dErrors.CodeDuplicateIdentity, "identity is already verified for another account")
		}
		return nil
	case !errors.Is(err, sentinel.ErrNotFound):
		return err
	}

	err = repo.CreateIdentity(ctx, &models.VerifiedIdentity{
		IdentityHash:        m.hash.Hash,
		IdentityFingerprint: m.hash.Fingerprint,
		IdentityCommitment:  m.commitment,
		Nationality:         m.nationality,
		BirthYear:           m.birthYear,
		DocumentType:        m.docClass,
		AccountID:           accountID,
		ProviderType:        providerType,
		CreatedAt:           now,
	})
	if errors.Is(err, sentinel.ErrConflict) {
		winner, findErr := repo.FindIdentity(ctx, m.hash.Hash)
		if findErr == nil && winner.AccountID == accountID {
			return nil
		}
		return dErrors.New(dErrors.CodeDuplicateIdentity, "identity is already verified for another account")
	}
	return err
}
