package service_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bossnet/party-signup/internal/botdefense"
	"github.com/bossnet/party-signup/internal/metrics"
	"github.com/bossnet/party-signup/internal/model"
	"github.com/bossnet/party-signup/internal/repository"
	"github.com/bossnet/party-signup/internal/service"
	"github.com/bossnet/party-signup/internal/testutil"
	"github.com/bossnet/party-signup/internal/validation"
)

var prov = model.Provenance{
	IPAddress: "198.51.100.23",
	UserAgent: "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0",
}

func newService(t *testing.T, store service.Store) (*service.RegistrationService, *metrics.Metrics) {
	t.Helper()
	m := metrics.New(prometheus.NewRegistry())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return service.NewRegistrationService(store, botdefense.New(3*time.Second), m, logger), m
}

func TestRegister_Success(t *testing.T) {
	store := new(testutil.MockStore)
	svc, m := newService(t, store)

	store.On("Upsert", mock.Anything, mock.MatchedBy(func(reg model.Registration) bool {
		return reg.Email == "test.user+x@example.com" && reg.Nickname == "[BOSS]Tester" && reg.Consent
	}), prov).Return(model.UpsertResult{ID: 42, Created: true}, nil).Once()

	sub := testutil.ValidForm("  Test.User+x@Example.com").Payload()
	res, err := svc.Register(context.Background(), sub, prov)
	require.NoError(t, err)
	assert.Equal(t, int64(42), res.ID)
	assert.True(t, res.Created)
	assert.Equal(t, 1.0, promtest.ToFloat64(m.Registrations.WithLabelValues("created")))
	store.AssertExpectations(t)
}

func TestRegister_BotSignalsNeverReachTheStore(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(model.Submission)
	}{
		{name: "website honeypot", mutate: func(s model.Submission) { s["website"] = "http://spam.example" }},
		{name: "phone honeypot", mutate: func(s model.Submission) { s["phone"] = "0123" }},
		{name: "address honeypot", mutate: func(s model.Submission) { s["address"] = "Main St" }},
		{name: "submitted too fast", mutate: func(s model.Submission) {
			s[model.FieldFormLoadTime] = time.Now().Add(-500 * time.Millisecond).UnixMilli()
		}},
		{name: "garbage timestamp", mutate: func(s model.Submission) { s[model.FieldFormLoadTime] = "yesterday" }},
		{name: "bot and invalid", mutate: func(s model.Submission) {
			s["website"] = "x"
			s[model.FieldConsent] = false
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := new(testutil.MockStore)
			svc, m := newService(t, store)

			sub := testutil.ValidForm("a@example.com").Payload()
			tt.mutate(sub)

			_, err := svc.Register(context.Background(), sub, prov)
			assert.ErrorIs(t, err, service.ErrBotDetected)
			assert.Equal(t, 1.0, promtest.ToFloat64(m.Rejections.WithLabelValues(metrics.ReasonBot)))
			store.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestRegister_ValidationFailureNeverReachesTheStore(t *testing.T) {
	store := new(testutil.MockStore)
	svc, _ := newService(t, store)

	sub := testutil.ValidForm("a@example.com").Payload()
	sub[model.FieldGuests] = 11
	sub[model.FieldConsent] = false

	_, err := svc.Register(context.Background(), sub, prov)
	var verr *validation.Error
	require.True(t, errors.As(err, &verr))
	assert.True(t, verr.ConsentMissing)
	assert.Contains(t, verr.Messages(), validation.MsgGuestsInvalid)
	store.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything, mock.Anything)
}

func TestRegister_StoreErrorsKeepTheirIdentity(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		reason string
	}{
		{name: "conflict", err: repository.ErrAlreadyRegistered, reason: metrics.ReasonConflict},
		{name: "constraint", err: repository.ErrInvalidInput, reason: metrics.ReasonInvalid},
		{name: "internal", err: errors.New("connection refused"), reason: metrics.ReasonInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := new(testutil.MockStore)
			svc, m := newService(t, store)
			store.On("Upsert", mock.Anything, mock.Anything, mock.Anything).
				Return(model.UpsertResult{}, tt.err).Once()

			_, err := svc.Register(context.Background(), testutil.ValidForm("a@example.com").Payload(), prov)
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, 1.0, promtest.ToFloat64(m.Rejections.WithLabelValues(tt.reason)))
		})
	}
}

func TestRegister_MissingTimestampSkipsTimingCheck(t *testing.T) {
	store := new(testutil.MockStore)
	svc, _ := newService(t, store)
	store.On("Upsert", mock.Anything, mock.Anything, mock.Anything).
		Return(model.UpsertResult{ID: 1}, nil).Once()

	form := testutil.ValidForm("a@example.com")
	form.LoadedAt = time.Time{}

	_, err := svc.Register(context.Background(), form.Payload(), model.Provenance{})
	require.NoError(t, err)
	store.AssertExpectations(t)
}

func TestListPublic(t *testing.T) {
	store := new(testutil.MockStore)
	svc, _ := newService(t, store)

	store.On("ListPublic", mock.Anything, repository.MaxPublicListing).Return(nil, nil).Once()
	regs, err := svc.ListPublic(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, regs, "empty listing must encode as []")
	assert.Empty(t, regs)

	store.On("ListPublic", mock.Anything, repository.MaxPublicListing).Return(nil, errors.New("boom")).Once()
	_, err = svc.ListPublic(context.Background())
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	store := new(testutil.MockStore)
	svc, _ := newService(t, store)

	store.On("Ping", mock.Anything).Return(nil).Once()
	assert.NoError(t, svc.Health(context.Background()))

	store.On("Ping", mock.Anything).Return(errors.New("down")).Once()
	assert.Error(t, svc.Health(context.Background()))
}

func TestMarkPaid(t *testing.T) {
	store := new(testutil.MockStore)
	svc, _ := newService(t, store)
	ctx := context.Background()

	store.On("SetPaid", mock.Anything, "neo@gmail.com", 1).Return(nil).Once()
	store.On("GetByEmail", mock.Anything, "neo@gmail.com").
		Return(&model.Registration{ID: 4, Nickname: "Neo", Email: "neo@gmail.com", Paid: 1}, nil).Once()
	reg, err := svc.MarkPaid(ctx, " N.E.O+party@GoogleMail.com ", 1)
	require.NoError(t, err)
	assert.Equal(t, "Neo", reg.Nickname)
	assert.Equal(t, 1, reg.Paid)

	store.On("SetPaid", mock.Anything, "ghost@example.com", 0).Return(repository.ErrNotFound).Once()
	_, err = svc.MarkPaid(ctx, "ghost@example.com", 0)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = svc.MarkPaid(ctx, "a@example.com", 2)
	assert.ErrorIs(t, err, service.ErrInvalidPaidStatus)
	_, err = svc.MarkPaid(ctx, "not-an-email", 1)
	assert.Error(t, err)
	store.AssertExpectations(t)
}

func TestNilInspectorStillScreensBots(t *testing.T) {
	store := new(testutil.MockStore)
	svc := service.NewRegistrationService(store, nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	sub := testutil.ValidForm("bot@example.com").Payload()
	sub[model.HoneypotFields[0]] = "http://spam.example"

	_, err := svc.Register(context.Background(), sub, model.Provenance{IPAddress: "192.0.2.1"})
	assert.ErrorIs(t, err, service.ErrBotDetected)
	store.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything, mock.Anything)
}
