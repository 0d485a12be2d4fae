package service

import (
	"context"
	"testing"
	"time"

	"puzzlemarket/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportAndResolve(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.admin(t)
	a := f.player(t, "Ada")
	b := f.player(t, "Bo")
	conv := f.accepted(t, a.ID, b.ID, nil)

	_, err := f.moderation.Report(ctx, conv.ID, a.ID, "x")
	assert.ErrorIs(t, err, models.ErrValidation)

	outsider := f.player(t, "Cy")
	_, err = f.moderation.Report(ctx, conv.ID, outsider.ID, "rude messages")
	assert.ErrorIs(t, err, models.ErrNotFound)

	report, err := f.moderation.Report(ctx, conv.ID, a.ID, "rude messages")
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusPending, report.Status)

	_, err = f.moderation.Resolve(ctx, report.ID, a.ID, "not an admin", nil)
	assert.ErrorIs(t, err, models.ErrNotAuthorized)

	expires := f.clock.Now().Add(24 * time.Hour)
	resolved, err := f.moderation.Resolve(ctx, report.ID, admin.ID, "muted for a day", &ActionInput{
		Type: models.ModerationActionMute, TargetPlayerID: b.ID, Reason: "harassment", ExpiresAt: &expires,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusResolved, resolved.Status)
	require.NotNil(t, resolved.ResolvedByID)
	assert.Equal(t, admin.ID, *resolved.ResolvedByID)
	require.Len(t, resolved.Actions, 1)
	require.NotNil(t, resolved.Actions[0].ReportID)
	assert.Equal(t, report.ID, *resolved.Actions[0].ReportID)

	mute, err := f.moderation.ActiveMuteFor(ctx, b.ID)
	require.NoError(t, err)
	require.NotNil(t, mute)

	_, err = f.moderation.Resolve(ctx, report.ID, admin.ID, "again", nil)
	assert.ErrorIs(t, err, models.ErrReportAlreadyResolved)

	pending := models.ReportStatusPending
	reports, err := f.moderation.ListReports(ctx, &pending, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, reports)
}

func TestResolve_InvalidActionRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.admin(t)
	a := f.player(t, "Ada")
	b := f.player(t, "Bo")
	conv := f.accepted(t, a.ID, b.ID, nil)

	report, err := f.moderation.Report(ctx, conv.ID, a.ID, "scam attempt")
	require.NoError(t, err)

	expires := f.clock.Now().Add(time.Hour)
	_, err = f.moderation.Resolve(ctx, report.ID, admin.ID, "", &ActionInput{
		Type: models.ModerationActionBan, TargetPlayerID: b.ID, ExpiresAt: &expires,
	})
	assert.ErrorIs(t, err, models.ErrValidation)

	got, err := f.stores.Moderation.GetReport(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusPending, got.Status)
}

func TestApplyAction_BanAndLift(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.admin(t)
	a := f.player(t, "Ada")

	_, err := f.moderation.ApplyAction(ctx, admin.ID, ActionInput{Type: "shadowban", TargetPlayerID: a.ID})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = f.moderation.ApplyAction(ctx, admin.ID, ActionInput{Type: models.ModerationActionWarn, TargetPlayerID: admin.ID})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = f.moderation.ApplyAction(ctx, admin.ID, ActionInput{Type: models.ModerationActionBan, TargetPlayerID: a.ID, Reason: "fraud"})
	require.NoError(t, err)

	ban, err := f.moderation.ActiveBanFor(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, ban)
	assert.Nil(t, ban.ExpiresAt)

	f.clock.Advance(time.Hour)
	_, err = f.moderation.ApplyAction(ctx, admin.ID, ActionInput{Type: models.ModerationActionLiftBan, TargetPlayerID: a.ID, Reason: "appeal"})
	require.NoError(t, err)

	ban, err = f.moderation.ActiveBanFor(ctx, a.ID)
	require.NoError(t, err)
	assert.Nil(t, ban)

	detail, err := f.moderation.PlayerDetail(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, detail.Actions, 2)
	assert.Nil(t, detail.ActiveBan)
	assert.Empty(t, detail.Warnings)
}

func TestApplyAction_WarnSpelling(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.admin(t)
	a := f.player(t, "Ada")

	_, err := f.moderation.ApplyAction(ctx, admin.ID, ActionInput{Type: "warning", TargetPlayerID: a.ID, Reason: "spam"})
	assert.ErrorIs(t, err, models.ErrValidation)

	action, err := f.moderation.ApplyAction(ctx, admin.ID, ActionInput{Type: "warn", TargetPlayerID: a.ID, Reason: "spam"})
	require.NoError(t, err)
	assert.Equal(t, models.ModerationActionWarn, action.ActionType)

	history, err := f.moderation.ActionsFor(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.ModerationActionType("warn"), history[0].ActionType)
}
