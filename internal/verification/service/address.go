package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"civitas/internal/verification/privacy"
	"civitas/internal/verification/store"
	"civitas/internal/verification/trust"
	id "civitas/pkg/domain"
	dErrors "civitas/pkg/domain-errors"
	"civitas/pkg/platform/audit"
	"civitas/pkg/requestcontext"
)

const addressMethod = "address"

// CompleteAddressVerification reduces a raw address to a locality and folds
// it into the account's signals. raw is wiped before return.
func (s *Service) CompleteAddressVerification(ctx context.Context, accountID id.AccountID, raw *privacy.AddressFields) (res *Result, err error) {
	ctx, span := s.startSpan(ctx, "verification.CompleteAddressVerification")
	defer func() { endSpan(span, err) }()
	defer func() { s.metrics.IncrementAttempt(addressMethod, outcome(err)) }()
	defer raw.Wipe()

	if err := s.ensureNotMerged(ctx, accountID); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(struct {
		PostalCode string `json:"postal_code"`
		City       string `json:"city"`
		Region     string `json:"region"`
	}{raw.PostalCode, raw.City, raw.Region})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "encode address")
	}
	derived, err := s.reduce(ctx, raw, payload)
	clear(payload)
	if err != nil {
		s.recordFailure(ctx, accountID, audit.EventVerificationFailed, addressMethod, err, nil)
		return nil, err
	}

	result := &Result{AccountID: accountID, DerivedLocalityID: derived.LocalityID}
	var upgradedTier bool
	txErr := s.store.RunInTx(ctx, func(ctx context.Context, repo store.Repository) error {
		now := requestcontext.Now(ctx)
		profile, err := repo.LockProfile(ctx, accountID, now)
		if err != nil {
			return err
		}
		if profile.IsMerged() {
			return dErrors.New(dErrors.CodeAccountMerged, "account was merged into another account")
		}

		at := now
		incoming := trust.Signals{AddressVerifiedAt: &at, LocalityPrecision: derived.Precision}
		folded := trust.Fold(profile.Signals(), incoming)
		profile.ApplySignals(folded)
		if folded.AddressVerifiedAt == incoming.AddressVerifiedAt {
			profile.DistrictHash = s.boundary.DistrictHash(derived.LocalityID)
		}
		profile.UpdatedAt = now
		if err := repo.SaveProfile(ctx, profile); err != nil {
			return err
		}
		tier := trust.DeriveTier(profile.TrustTier, folded)
		upgraded, err := repo.RaiseTier(ctx, accountID, tier, now)
		if err != nil {
			return err
		}
		result.TrustTier = tier
		upgradedTier = upgraded

		rec := s.newRecord(ctx, accountID, audit.EventAddressVerified, addressMethod, audit.StatusSuccess)
		rec.Metadata["locality_precision"] = derived.Precision.String()
		rec.Metadata["content_hash"] = derived.ContentHash
		rec.Metadata["trust_tier"] = strconv.Itoa(int(tier))
		records := []audit.Record{rec}
		if upgraded {
			records = append(records, s.tierRecord(ctx, accountID, addressMethod, int(tier)))
		}
		for _, r := range records {
			if err := s.auditor.Append(ctx, r); err != nil {
				return fmt.Errorf("append audit record: %w", err)
			}
		}
		return nil
	})
	if txErr != nil {
		err := translateStore(txErr)
		s.logger.ErrorContext(ctx, "address verification failed", "account_id", accountID.String(), "error", txErr)
		s.recordFailure(ctx, accountID, audit.EventVerificationFailed, addressMethod, err, nil)
		return nil, err
	}
	if upgradedTier {
		s.metrics.IncrementTierUpgrade(result.TrustTier.String())
	}
	return result, nil
}
