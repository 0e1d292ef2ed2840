package appointment

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medivisit/telehealth-api/internal/model"
	"github.com/medivisit/telehealth-api/internal/service/conversation"
	apperrors "github.com/medivisit/telehealth-api/pkg/errors"
	"github.com/medivisit/telehealth-api/pkg/logger"
)

// fakeAppointmentRepo keeps the conditional-transition semantics of the
// real store: booking only succeeds from available, closing only from
// booked.
type fakeAppointmentRepo struct {
	appointments map[uuid.UUID]*model.Appointment
	requests     map[uuid.UUID]*model.AppointmentRequest

	// beforeConfirm runs just before ConfirmBooking applies, letting a
	// test interleave a rival confirmation.
	beforeConfirm func()
}

func newFakeAppointmentRepo() *fakeAppointmentRepo {
	return &fakeAppointmentRepo{
		appointments: make(map[uuid.UUID]*model.Appointment),
		requests:     make(map[uuid.UUID]*model.AppointmentRequest),
	}
}

func (r *fakeAppointmentRepo) Create(ctx context.Context, apt *model.Appointment) error {
	apt.ID = uuid.New()
	apt.CreatedAt = time.Now()
	r.appointments[apt.ID] = apt
	return nil
}

func (r *fakeAppointmentRepo) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	apt, ok := r.appointments[id]
	if !ok {
		return nil, apperrors.NotFound("appointment", nil)
	}
	cp := *apt
	return &cp, nil
}

func (r *fakeAppointmentRepo) Update(ctx context.Context, apt *model.Appointment) error {
	if _, ok := r.appointments[apt.ID]; !ok {
		return apperrors.NotFound("appointment", nil)
	}
	cp := *apt
	r.appointments[apt.ID] = &cp
	return nil
}

func (r *fakeAppointmentRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := r.appointments[id]; !ok {
		return apperrors.NotFound("appointment", nil)
	}
	delete(r.appointments, id)
	return nil
}

func (r *fakeAppointmentRepo) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	var out []*model.Appointment
	for _, apt := range r.appointments {
		if filters.DoctorID != uuid.Nil && apt.DoctorID != filters.DoctorID {
			continue
		}
		if filters.PatientID != uuid.Nil && (apt.PatientID == nil || *apt.PatientID != filters.PatientID) {
			continue
		}
		if filters.Status != "" && apt.Status != filters.Status {
			continue
		}
		cp := *apt
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeAppointmentRepo) AddRequest(ctx context.Context, req *model.AppointmentRequest) error {
	for _, existing := range r.requests {
		if existing.AppointmentID == req.AppointmentID && existing.UserID == req.UserID {
			return apperrors.Duplicate("request already submitted", nil)
		}
	}
	req.ID = uuid.New()
	req.RequestedAt = time.Now()
	r.requests[req.ID] = req
	return nil
}

func (r *fakeAppointmentRepo) GetRequest(ctx context.Context, requestID uuid.UUID) (*model.AppointmentRequest, error) {
	req, ok := r.requests[requestID]
	if !ok {
		return nil, apperrors.NotFound("request", nil)
	}
	return req, nil
}

func (r *fakeAppointmentRepo) ListRequests(ctx context.Context, appointmentID uuid.UUID) ([]*model.AppointmentRequest, error) {
	var out []*model.AppointmentRequest
	for _, req := range r.requests {
		if req.AppointmentID == appointmentID {
			out = append(out, req)
		}
	}
	return out, nil
}

func (r *fakeAppointmentRepo) DeleteRequest(ctx context.Context, requestID uuid.UUID) error {
	if _, ok := r.requests[requestID]; !ok {
		return apperrors.NotFound("request", nil)
	}
	delete(r.requests, requestID)
	return nil
}

func (r *fakeAppointmentRepo) FindByPendingRequest(ctx context.Context, userID uuid.UUID) (*model.Appointment, error) {
	for _, req := range r.requests {
		if req.UserID == userID {
			return r.Get(ctx, req.AppointmentID)
		}
	}
	return nil, apperrors.NotFound("pending request", nil)
}

func (r *fakeAppointmentRepo) ConfirmBooking(ctx context.Context, appointmentID, patientID uuid.UUID) error {
	if r.beforeConfirm != nil {
		r.beforeConfirm()
	}
	apt, ok := r.appointments[appointmentID]
	if !ok {
		return apperrors.NotFound("appointment", nil)
	}
	if apt.Status != model.AppointmentStatusAvailable {
		return apperrors.Conflict("appointment not available", nil)
	}
	apt.Status = model.AppointmentStatusBooked
	apt.PatientID = &patientID
	for id, req := range r.requests {
		if req.AppointmentID == appointmentID {
			delete(r.requests, id)
		}
	}
	return nil
}

func (r *fakeAppointmentRepo) CloseBooked(ctx context.Context, appointmentID uuid.UUID) error {
	apt, ok := r.appointments[appointmentID]
	if !ok {
		return apperrors.NotFound("appointment", nil)
	}
	if apt.Status != model.AppointmentStatusBooked {
		return apperrors.Conflict("appointment is not booked", nil)
	}
	apt.Status = model.AppointmentStatusClosed
	return nil
}

func (r *fakeAppointmentRepo) RecordPayment(ctx context.Context, appointmentID uuid.UUID, ref string, at time.Time) error {
	apt, ok := r.appointments[appointmentID]
	if !ok {
		return apperrors.NotFound("appointment", nil)
	}
	apt.IsPaid = true
	apt.PaymentRef = &ref
	apt.PaymentDate = &at
	return nil
}

func (r *fakeAppointmentRepo) CancelStaleAvailable(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	for _, apt := range r.appointments {
		if apt.Status == model.AppointmentStatusAvailable && apt.AppointmentDate.Before(cutoff) {
			apt.Status = model.AppointmentStatusCancelled
			n++
		}
	}
	return n, nil
}

type fakeConversationRepo struct {
	byID map[uuid.UUID]*model.Conversation

	// failCreates makes the next n CreateIfAbsent calls error.
	failCreates int
}

func newFakeConversationRepo() *fakeConversationRepo {
	return &fakeConversationRepo{byID: make(map[uuid.UUID]*model.Conversation)}
}

func (r *fakeConversationRepo) CreateIfAbsent(ctx context.Context, conv *model.Conversation) (*model.Conversation, error) {
	if r.failCreates > 0 {
		r.failCreates--
		return nil, apperrors.Internal(assert.AnError)
	}
	for _, existing := range r.byID {
		if existing.AppointmentID == conv.AppointmentID {
			return existing, nil
		}
	}
	conv.ID = uuid.New()
	conv.CreatedAt = time.Now()
	r.byID[conv.ID] = conv
	return conv, nil
}

func (r *fakeConversationRepo) Get(ctx context.Context, id uuid.UUID) (*model.Conversation, error) {
	conv, ok := r.byID[id]
	if !ok {
		return nil, apperrors.NotFound("conversation", nil)
	}
	return conv, nil
}

func (r *fakeConversationRepo) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*model.Conversation, error) {
	for _, c := range r.byID {
		if c.AppointmentID == appointmentID {
			return c, nil
		}
	}
	return nil, apperrors.NotFound("conversation", nil)
}

func (r *fakeConversationRepo) SetClosed(ctx context.Context, appointmentID uuid.UUID) error {
	for _, c := range r.byID {
		if c.AppointmentID == appointmentID {
			c.IsClosed = true
		}
	}
	return nil
}

func (r *fakeConversationRepo) ListForUser(ctx context.Context, userID uuid.UUID) ([]*model.Conversation, error) {
	var out []*model.Conversation
	for _, c := range r.byID {
		if c.HasParticipant(userID) {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeNotifier struct {
	confirmed []uuid.UUID
	closed    []uuid.UUID
}

func (n *fakeNotifier) BookingConfirmed(ctx context.Context, apt *model.Appointment) {
	n.confirmed = append(n.confirmed, apt.ID)
}

func (n *fakeNotifier) AppointmentClosed(ctx context.Context, apt *model.Appointment) {
	n.closed = append(n.closed, apt.ID)
}

func testLogger() *logger.Logger {
	return logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
}

func price(v float64) *float64 {
	return &v
}

type fixture struct {
	svc      *Service
	repo     *fakeAppointmentRepo
	convRepo *fakeConversationRepo
	notifier *fakeNotifier
	doctor   uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := newFakeAppointmentRepo()
	convRepo := newFakeConversationRepo()
	notifier := &fakeNotifier{}
	svc := NewService(repo, conversation.NewService(convRepo), notifier, testLogger())
	return &fixture{
		svc:      svc,
		repo:     repo,
		convRepo: convRepo,
		notifier: notifier,
		doctor:   uuid.New(),
	}
}

func (f *fixture) createSlot(t *testing.T) *model.Appointment {
	t.Helper()
	apt, err := f.svc.Create(context.Background(), f.doctor, &model.CreateAppointmentRequest{
		Date:            "2026-09-15",
		Time:            "14:30",
		Price:           price(80),
		AppointmentType: "consultation",
	})
	require.NoError(t, err)
	return apt
}

func TestCreate(t *testing.T) {
	f := newFixture(t)
	apt := f.createSlot(t)

	assert.Equal(t, model.AppointmentStatusAvailable, apt.Status)
	assert.Equal(t, f.doctor, apt.DoctorID)
	assert.Nil(t, apt.PatientID)
	assert.Equal(t, time.Date(2026, 9, 15, 14, 30, 0, 0, time.UTC), apt.AppointmentDate)
}

func TestCreate_InvalidInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, f.doctor, &model.CreateAppointmentRequest{
		Date: "15/09/2026", Time: "14:30", Price: price(80), AppointmentType: "consultation",
	})
	assert.True(t, apperrors.IsValidation(err))

	_, err = f.svc.Create(ctx, f.doctor, &model.CreateAppointmentRequest{
		Date: "2026-09-15", Time: "14:30", Price: price(-5), AppointmentType: "consultation",
	})
	assert.True(t, apperrors.IsValidation(err))
}

func TestCreate_ZeroPriceAllowed(t *testing.T) {
	f := newFixture(t)

	apt, err := f.svc.Create(context.Background(), f.doctor, &model.CreateAppointmentRequest{
		Date: "2026-09-15", Time: "09:00", Price: price(0), AppointmentType: "checkup",
	})
	require.NoError(t, err)
	assert.Zero(t, apt.Price)
}

func TestSubmitRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	apt := f.createSlot(t)
	patient := uuid.New()

	require.NoError(t, f.svc.SubmitRequest(ctx, apt.ID, patient, "please"))

	requests, err := f.svc.ListRequests(ctx, f.doctor, apt.ID)
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, patient, requests[0].UserID)
}

func TestSubmitRequest_Duplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	apt := f.createSlot(t)
	patient := uuid.New()

	require.NoError(t, f.svc.SubmitRequest(ctx, apt.ID, patient, ""))
	err := f.svc.SubmitRequest(ctx, apt.ID, patient, "again")
	assert.True(t, apperrors.IsDuplicate(err))
}

func TestSubmitRequest_OwnAppointment(t *testing.T) {
	f := newFixture(t)
	apt := f.createSlot(t)

	err := f.svc.SubmitRequest(context.Background(), apt.ID, f.doctor, "")
	assert.True(t, apperrors.IsForbidden(err))
}

func TestSubmitRequest_NotAvailable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	apt := f.createSlot(t)
	winner := uuid.New()

	require.NoError(t, f.svc.SubmitRequest(ctx, apt.ID, winner, ""))
	_, err := f.svc.ConfirmRequest(ctx, f.doctor, winner)
	require.NoError(t, err)

	err = f.svc.SubmitRequest(ctx, apt.ID, uuid.New(), "too late")
	assert.True(t, apperrors.IsConflict(err))
}

func TestConfirmRequest_BooksAndCreatesConversation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	apt := f.createSlot(t)
	patient := uuid.New()

	require.NoError(t, f.svc.SubmitRequest(ctx, apt.ID, patient, ""))

	conv, err := f.svc.ConfirmRequest(ctx, f.doctor, patient)
	require.NoError(t, err)
	require.NotNil(t, conv)
	assert.Equal(t, apt.ID, conv.AppointmentID)
	assert.Equal(t, f.doctor, conv.DoctorID)
	assert.Equal(t, patient, conv.PatientID)
	assert.False(t, conv.IsClosed)

	booked, err := f.svc.Get(ctx, apt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusBooked, booked.Status)
	require.NotNil(t, booked.PatientID)
	assert.Equal(t, patient, *booked.PatientID)

	assert.Equal(t, []uuid.UUID{apt.ID}, f.notifier.confirmed)
}

func TestConfirmRequest_LosersDropped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	apt := f.createSlot(t)
	winner := uuid.New()
	loser := uuid.New()

	require.NoError(t, f.svc.SubmitRequest(ctx, apt.ID, winner, ""))
	require.NoError(t, f.svc.SubmitRequest(ctx, apt.ID, loser, ""))

	_, err := f.svc.ConfirmRequest(ctx, f.doctor, winner)
	require.NoError(t, err)

	// All pending requests are gone, so confirming the loser finds
	// nothing to confirm.
	_, err = f.svc.ConfirmRequest(ctx, f.doctor, loser)
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestConfirmRequest_RetryReturnsSameConversation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	apt := f.createSlot(t)
	patient := uuid.New()

	require.NoError(t, f.svc.SubmitRequest(ctx, apt.ID, patient, ""))

	first, err := f.svc.ConfirmRequest(ctx, f.doctor, patient)
	require.NoError(t, err)

	second, err := f.svc.ConfirmRequest(ctx, f.doctor, patient)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestConfirmRequest_RetryHealsMissingConversation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	apt := f.createSlot(t)
	patient := uuid.New()

	require.NoError(t, f.svc.SubmitRequest(ctx, apt.ID, patient, ""))

	// The booking commits but conversation creation fails transiently.
	f.convRepo.failCreates = 1
	_, err := f.svc.ConfirmRequest(ctx, f.doctor, patient)
	require.Error(t, err)

	booked, err := f.svc.Get(ctx, apt.ID)
	require.NoError(t, err)
	require.Equal(t, model.AppointmentStatusBooked, booked.Status)

	// The retry re-ensures the conversation for the booking the patient
	// already won instead of failing with not-found.
	conv, err := f.svc.ConfirmRequest(ctx, f.doctor, patient)
	require.NoError(t, err)
	require.NotNil(t, conv)
	assert.Equal(t, apt.ID, conv.AppointmentID)
	assert.Equal(t, patient, conv.PatientID)
}

func TestConfirmRequest_LostRaceSameWinnerResolves(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	apt := f.createSlot(t)
	patient := uuid.New()

	require.NoError(t, f.svc.SubmitRequest(ctx, apt.ID, patient, ""))

	// A concurrent confirmation for the same patient lands between the
	// pending-request lookup and the conditional booking.
	var rivalConv *model.Conversation
	f.repo.beforeConfirm = func() {
		f.repo.beforeConfirm = nil
		var err error
		rivalConv, err = f.svc.ConfirmRequest(ctx, f.doctor, patient)
		require.NoError(t, err)
	}

	conv, err := f.svc.ConfirmRequest(ctx, f.doctor, patient)
	require.NoError(t, err)
	require.NotNil(t, conv)
	assert.Equal(t, rivalConv.ID, conv.ID)
}

func TestConfirmRequest_LostRaceDifferentWinnerConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	apt := f.createSlot(t)
	target := uuid.New()
	rival := uuid.New()

	require.NoError(t, f.svc.SubmitRequest(ctx, apt.ID, target, ""))
	require.NoError(t, f.svc.SubmitRequest(ctx, apt.ID, rival, ""))

	// The rival wins the slot between the lookup and the booking, so the
	// target's confirmation is not a duplicate and must surface the loss.
	f.repo.beforeConfirm = func() {
		f.repo.beforeConfirm = nil
		_, err := f.svc.ConfirmRequest(ctx, f.doctor, rival)
		require.NoError(t, err)
	}

	_, err := f.svc.ConfirmRequest(ctx, f.doctor, target)
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
}

func TestConfirmRequest_WrongDoctor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	apt := f.createSlot(t)
	patient := uuid.New()

	require.NoError(t, f.svc.SubmitRequest(ctx, apt.ID, patient, ""))

	_, err := f.svc.ConfirmRequest(ctx, uuid.New(), patient)
	require.Error(t, err)
	assert.True(t, apperrors.IsForbidden(err))
}

func TestRejectRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	apt := f.createSlot(t)
	p1 := uuid.New()
	p2 := uuid.New()

	require.NoError(t, f.svc.SubmitRequest(ctx, apt.ID, p1, ""))
	require.NoError(t, f.svc.SubmitRequest(ctx, apt.ID, p2, ""))

	requests, err := f.svc.ListRequests(ctx, f.doctor, apt.ID)
	require.NoError(t, err)

	var target uuid.UUID
	for _, req := range requests {
		if req.UserID == p1 {
			target = req.ID
		}
	}
	require.NoError(t, f.svc.RejectRequest(ctx, f.doctor, target))

	remaining, err := f.svc.ListRequests(ctx, f.doctor, apt.ID)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, p2, remaining[0].UserID)
}

func TestClose_CascadesToConversation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	apt := f.createSlot(t)
	patient := uuid.New()

	require.NoError(t, f.svc.SubmitRequest(ctx, apt.ID, patient, ""))
	conv, err := f.svc.ConfirmRequest(ctx, f.doctor, patient)
	require.NoError(t, err)

	require.NoError(t, f.svc.Close(ctx, f.doctor, apt.ID))

	closed, err := f.svc.Get(ctx, apt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusClosed, closed.Status)

	stored, err := f.convRepo.Get(ctx, conv.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsClosed)

	assert.Equal(t, []uuid.UUID{apt.ID}, f.notifier.closed)
}

func TestClose_OnlyFromBooked(t *testing.T) {
	f := newFixture(t)
	apt := f.createSlot(t)

	err := f.svc.Close(context.Background(), f.doctor, apt.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
}

func TestClose_WrongDoctor(t *testing.T) {
	f := newFixture(t)
	apt := f.createSlot(t)

	err := f.svc.Close(context.Background(), uuid.New(), apt.ID)
	assert.True(t, apperrors.IsForbidden(err))
}

func TestUpdate_MutableFieldsOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	apt := f.createSlot(t)

	desc := "video consultation"
	price := 95.0
	updated, err := f.svc.Update(ctx, f.doctor, apt.ID, &model.UpdateAppointmentRequest{
		Description: &desc,
		Price:       &price,
	})
	require.NoError(t, err)
	assert.Equal(t, desc, updated.Description)
	assert.Equal(t, price, updated.Price)
	assert.Equal(t, apt.AppointmentDate, updated.AppointmentDate)
	assert.Equal(t, model.AppointmentStatusAvailable, updated.Status)
}

func TestDelete_BookedRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	apt := f.createSlot(t)
	patient := uuid.New()

	require.NoError(t, f.svc.SubmitRequest(ctx, apt.ID, patient, ""))
	_, err := f.svc.ConfirmRequest(ctx, f.doctor, patient)
	require.NoError(t, err)

	err = f.svc.Delete(ctx, f.doctor, apt.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))

	require.NoError(t, f.svc.Close(ctx, f.doctor, apt.ID))
	assert.NoError(t, f.svc.Delete(ctx, f.doctor, apt.ID))
}

func TestRecordPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	apt := f.createSlot(t)

	require.NoError(t, f.svc.RecordPayment(ctx, f.doctor, apt.ID, "stripe_ch_123"))

	paid, err := f.svc.Get(ctx, apt.ID)
	require.NoError(t, err)
	assert.True(t, paid.IsPaid)
	require.NotNil(t, paid.PaymentRef)
	assert.Equal(t, "stripe_ch_123", *paid.PaymentRef)
	assert.NotNil(t, paid.PaymentDate)
}

func TestListForDoctor_AttachesPendingRequests(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	apt := f.createSlot(t)

	require.NoError(t, f.svc.SubmitRequest(ctx, apt.ID, uuid.New(), ""))
	require.NoError(t, f.svc.SubmitRequest(ctx, apt.ID, uuid.New(), ""))

	appointments, err := f.svc.ListForDoctor(ctx, f.doctor)
	require.NoError(t, err)
	require.Len(t, appointments, 1)
	assert.Len(t, appointments[0].Requests, 2)
}
