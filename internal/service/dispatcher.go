package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/kevinotieno/wablast-backend/internal/apperrors"
	"github.com/kevinotieno/wablast-backend/internal/gateway"
	"github.com/kevinotieno/wablast-backend/internal/model"
	"github.com/kevinotieno/wablast-backend/internal/repository"
)

// Lease is a held dispatch lease, released when the run ends.
type Lease interface {
	Release(ctx context.Context) error
	Extend(ctx context.Context) error
}

// Locker hands out per-campaign leases so two dispatch runs for the same
// campaign id can never interleave.
type Locker interface {
	Acquire(ctx context.Context, campaignID int) (Lease, bool, error)
}

// CancelCheck reports whether the run should stop before the next send.
// The default probes the campaign's stored status; tests (or a future
// push-based channel) can swap in their own.
type CancelCheck func(ctx context.Context, campaignID int) (bool, error)

// How many recipients between lease TTL extensions on long runs.
const leaseExtendEvery = 50

type DispatchResult struct {
	CampaignID      int  `json:"campaign_id"`
	TotalRecipients int  `json:"totalRecipients"`
	SentCount       int  `json:"sentCount"`
	FailedCount     int  `json:"failedCount"`
	Cancelled       bool `json:"cancelled"`
}

// Dispatcher runs one campaign end to end: resolve the audience, walk it
// through the rate limiter, record every attempt in the delivery ledger,
// keep the aggregate counters current, and settle the terminal status.
type Dispatcher struct {
	Campaigns repository.CampaignRepositoryInterface
	Ledger    repository.DeliveryLogRepositoryInterface
	Resolver  *AudienceResolver
	Gateway   gateway.Client
	Locker    Locker

	// Cancellation probe; nil means "re-read campaign status".
	CancelCheck CancelCheck

	SendsPerMinute int
	Log            zerolog.Logger
}

func NewDispatcher(
	campaigns repository.CampaignRepositoryInterface,
	ledger repository.DeliveryLogRepositoryInterface,
	resolver *AudienceResolver,
	gw gateway.Client,
	locker Locker,
	sendsPerMinute int,
	log zerolog.Logger,
) *Dispatcher {
	if sendsPerMinute <= 0 {
		sendsPerMinute = 60
	}
	return &Dispatcher{
		Campaigns:      campaigns,
		Ledger:         ledger,
		Resolver:       resolver,
		Gateway:        gw,
		Locker:         locker,
		SendsPerMinute: sendsPerMinute,
		Log:            log,
	}
}

// Dispatch executes one run for the campaign. Per-recipient send failures
// are recorded and counted but never abort the loop; only external
// cancellation or a resolution failure ends it early.
func (d *Dispatcher) Dispatch(ctx context.Context, campaignID int) (*DispatchResult, error) {
	campaign, err := d.Campaigns.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if campaign.Status != model.CampaignStatusPending {
		return nil, fmt.Errorf("campaign %d cannot be dispatched in status %s", campaignID, campaign.Status)
	}

	var held Lease
	if d.Locker != nil {
		lease, won, err := d.Locker.Acquire(ctx, campaignID)
		if err != nil {
			return nil, err
		}
		if !won {
			return nil, &apperrors.LeaseHeldError{CampaignID: campaignID}
		}
		held = lease
		defer func() {
			if err := held.Release(context.WithoutCancel(ctx)); err != nil {
				d.Log.Warn().Err(err).Int("campaign_id", campaignID).Msg("failed to release dispatch lease")
			}
		}()
	}

	if err := d.Campaigns.MarkSending(ctx, campaignID, time.Now()); err != nil {
		return nil, err
	}

	recipients, err := d.Resolver.Resolve(ctx, campaign)
	if err != nil {
		return nil, err
	}
	if err := d.Campaigns.SetTotalRecipients(ctx, campaignID, len(recipients)); err != nil {
		return nil, err
	}

	d.Log.Info().Int("campaign_id", campaignID).Int("recipients", len(recipients)).
		Int("rate_per_minute", d.SendsPerMinute).Msg("dispatch run started")

	// Fixed inter-send delay of one minute divided by the cap. Burst 1
	// means the first Wait consumes the initial token immediately and
	// every later one blocks for a full interval, so n recipients cost
	// (n-1) intervals of wall clock.
	limiter := rate.NewLimiter(rate.Every(time.Minute/time.Duration(d.SendsPerMinute)), 1)

	check := d.CancelCheck
	if check == nil {
		check = d.statusCancelCheck
	}

	result := &DispatchResult{CampaignID: campaignID, TotalRecipients: len(recipients)}
	cancelled := false
	ctxCancelled := false

	for i, rcpt := range recipients {
		if err := limiter.Wait(ctx); err != nil {
			// Context cancellation is cooperative cancellation too, but
			// nothing external has moved the status yet.
			cancelled = true
			ctxCancelled = true
			break
		}

		stop, err := check(ctx, campaignID)
		if err != nil {
			return result, err
		}
		if stop {
			d.Log.Info().Int("campaign_id", campaignID).Int("processed", i).
				Msg("cancellation observed, stopping run")
			cancelled = true
			break
		}

		entryID, err := d.Ledger.CreateQueued(ctx, campaignID, rcpt.Phone)
		if err != nil {
			d.Log.Error().Err(err).Str("recipient", rcpt.Phone).Msg("failed to write queued ledger entry")
			result.FailedCount++
			d.persistCounters(ctx, campaignID, result)
			continue
		}

		body := RenderMessage(campaign.MessageTemplate, rcpt.Name)
		sendErr := d.Gateway.SendMessage(ctx, campaign.AssistantID, rcpt.Phone, body)
		if sendErr != nil {
			sendErr = &apperrors.SendError{Recipient: rcpt.Phone, Err: sendErr}
			result.FailedCount++
			if err := d.Ledger.MarkFailed(ctx, entryID, sendErr.Error()); err != nil {
				d.Log.Error().Err(err).Str("entry", entryID).Msg("failed to record delivery failure")
			}
			d.Log.Warn().Err(sendErr).Int("campaign_id", campaignID).Msg("send failed")
		} else {
			result.SentCount++
			if err := d.Ledger.MarkSent(ctx, entryID, time.Now()); err != nil {
				d.Log.Error().Err(err).Str("entry", entryID).Msg("failed to record delivery success")
			}
		}

		d.persistCounters(ctx, campaignID, result)

		if held != nil && (i+1)%leaseExtendEvery == 0 {
			if err := held.Extend(ctx); err != nil {
				d.Log.Warn().Err(err).Int("campaign_id", campaignID).Msg("failed to extend dispatch lease")
			}
		}
	}

	finCtx := context.WithoutCancel(ctx)
	completedAt := time.Now()

	if cancelled {
		// An external cancel has already written the terminal status; a
		// context cancellation has not, so the run settles it here. The
		// conditional write still lets a racing external cancel win.
		result.Cancelled = true
		if ctxCancelled {
			if _, err := d.Campaigns.Cancel(finCtx, campaignID); err != nil {
				return result, err
			}
		}
		if err := d.Campaigns.FinalizeCounters(finCtx, campaignID, result.SentCount, result.FailedCount, completedAt); err != nil {
			return result, err
		}
		d.Log.Info().Int("campaign_id", campaignID).Int("sent", result.SentCount).
			Int("failed", result.FailedCount).Msg("dispatch run cancelled")
		return result, nil
	}

	won, err := d.Campaigns.MarkCompleted(finCtx, campaignID, result.SentCount, result.FailedCount, completedAt)
	if err != nil {
		return result, err
	}
	if !won {
		// Status moved between the last probe and now. Same settlement as
		// a mid-loop cancellation.
		result.Cancelled = true
		if err := d.Campaigns.FinalizeCounters(finCtx, campaignID, result.SentCount, result.FailedCount, completedAt); err != nil {
			return result, err
		}
	}

	d.Log.Info().Int("campaign_id", campaignID).Int("sent", result.SentCount).
		Int("failed", result.FailedCount).Bool("cancelled", result.Cancelled).
		Msg("dispatch run finished")
	return result, nil
}

func (d *Dispatcher) persistCounters(ctx context.Context, campaignID int, result *DispatchResult) {
	if err := d.Campaigns.UpdateCounters(ctx, campaignID, result.SentCount, result.FailedCount); err != nil {
		d.Log.Error().Err(err).Int("campaign_id", campaignID).Msg("failed to persist counters")
	}
}

func (d *Dispatcher) statusCancelCheck(ctx context.Context, campaignID int) (bool, error) {
	status, err := d.Campaigns.GetStatus(ctx, campaignID)
	if err != nil {
		return false, err
	}
	return status != model.CampaignStatusSending, nil
}

// RenderMessage fills the {name} placeholder of a campaign template with
// the recipient's contact name.
func RenderMessage(template, name string) string {
	if name == "" {
		name = "<unknown>"
	}
	return strings.ReplaceAll(template, "{name}", name)
}
