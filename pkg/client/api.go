package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"github.com/jwalitptl/appointment-api/internal/model"
	apperrors "github.com/jwalitptl/appointment-api/pkg/errors"
)

func (c *Client) Register(ctx context.Context, req *model.RegisterRequest) (*model.User, error) {
	var user model.User
	if err := c.do(ctx, request{method: http.MethodPost, path: "/auth/register", body: req}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Login exchanges credentials for a token and stores it in the session.
func (c *Client) Login(ctx context.Context, email, password string) (*model.TokenResponse, error) {
	var tokens model.TokenResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/login",
		body:   model.LoginRequest{Email: email, Password: password},
	}, &tokens)
	if err != nil {
		return nil, err
	}
	if err := c.session.Login(ctx, tokens.AccessToken); err != nil {
		return nil, err
	}
	return &tokens, nil
}

func (c *Client) Logout(ctx context.Context) error {
	return c.session.Logout(ctx)
}

func (c *Client) Me(ctx context.Context) (*model.User, error) {
	var user model.User
	if err := c.do(ctx, request{method: http.MethodGet, path: "/auth/me", authed: true}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) ListDoctors(ctx context.Context) ([]model.UserSummary, error) {
	doctors := []model.UserSummary{}
	if err := c.do(ctx, request{method: http.MethodGet, path: "/doctors", authed: true}, &doctors); err != nil {
		return nil, err
	}
	return doctors, nil
}

func (c *Client) GetAvailability(ctx context.Context, doctorID uuid.UUID) ([]*model.Availability, error) {
	entries := []*model.Availability{}
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/doctors/" + doctorID.String() + "/availability",
		authed: true,
	}, &entries)
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// SetAvailability replaces the doctor's weekly schedule.
func (c *Client) SetAvailability(ctx context.Context, doctorID uuid.UUID, entries []model.AvailabilityInput) ([]*model.Availability, error) {
	if entries == nil {
		entries = []model.AvailabilityInput{}
	}
	stored := []*model.Availability{}
	err := c.do(ctx, request{
		method: http.MethodPut,
		path:   "/doctors/" + doctorID.String() + "/availability",
		body:   model.SetAvailabilityRequest{Entries: entries},
		authed: true,
	}, &stored)
	if err != nil {
		return nil, err
	}
	return stored, nil
}

func (c *Client) Slots(ctx context.Context, doctorID uuid.UUID, date model.Date) (*model.SlotList, error) {
	var slots model.SlotList
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/doctors/" + doctorID.String() + "/slots",
		query:  url.Values{"date": {date.String()}},
		authed: true,
	}, &slots)
	if err != nil {
		return nil, err
	}
	return &slots, nil
}

func (c *Client) CreateAppointment(ctx context.Context, req *model.CreateAppointmentRequest) (*model.Appointment, error) {
	var apt model.Appointment
	err := c.do(ctx, request{method: http.MethodPost, path: "/appointments", body: req, authed: true}, &apt)
	if err != nil {
		return nil, err
	}
	return &apt, nil
}

// Book re-reads the doctor's open slots immediately before submitting, so a
// slot taken since it was shown fails fast with SlotConflict.
func (c *Client) Book(ctx context.Context, req *model.CreateAppointmentRequest) (*model.Appointment, error) {
	doctorID, err := uuid.Parse(req.DoctorID)
	if err != nil {
		return nil, apperrors.Validation("invalid doctor_id")
	}
	date, err := model.ParseDate(req.Date)
	if err != nil {
		return nil, apperrors.Validation("%v", err)
	}
	at, err := model.ParseClock(req.Time)
	if err != nil {
		return nil, apperrors.Validation("%v", err)
	}

	open, err := c.Slots(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}
	found := false
	for _, s := range open.Slots {
		if s == at {
			found = true
			break
		}
	}
	if !found {
		return nil, apperrors.SlotConflict(date.String(), at.String())
	}

	return c.CreateAppointment(ctx, req)
}

type ListOptions struct {
	DoctorID  uuid.UUID
	PatientID uuid.UUID
	From      model.Date
	To        model.Date
	Archived  bool
}

func (o ListOptions) values() url.Values {
	q := url.Values{}
	if o.DoctorID != uuid.Nil {
		q.Set("doctor_id", o.DoctorID.String())
	}
	if o.PatientID != uuid.Nil {
		q.Set("patient_id", o.PatientID.String())
	}
	if o.From != "" {
		q.Set("from", o.From.String())
	}
	if o.To != "" {
		q.Set("to", o.To.String())
	}
	if o.Archived {
		q.Set("archived", strconv.FormatBool(true))
	}
	return q
}

func (c *Client) ListAppointments(ctx context.Context, opts ListOptions) ([]*model.Appointment, error) {
	appointments := []*model.Appointment{}
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/appointments",
		query:  opts.values(),
		authed: true,
	}, &appointments)
	if err != nil {
		return nil, err
	}
	return appointments, nil
}

func (c *Client) GetAppointment(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	var apt model.Appointment
	if err := c.do(ctx, request{method: http.MethodGet, path: "/appointments/" + id.String(), authed: true}, &apt); err != nil {
		return nil, err
	}
	return &apt, nil
}

func (c *Client) UpdateStatus(ctx context.Context, id uuid.UUID, status model.AppointmentStatus) (*model.Appointment, error) {
	var apt model.Appointment
	err := c.do(ctx, request{
		method: http.MethodPatch,
		path:   "/appointments/" + id.String() + "/status",
		body:   model.UpdateStatusRequest{Status: status},
		authed: true,
	}, &apt)
	if err != nil {
		return nil, err
	}
	return &apt, nil
}

func (c *Client) Archive(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	var apt model.Appointment
	err := c.do(ctx, request{method: http.MethodPost, path: "/appointments/" + id.String() + "/archive", authed: true}, &apt)
	if err != nil {
		return nil, err
	}
	return &apt, nil
}

func (c *Client) UpdateAppointment(ctx context.Context, id uuid.UUID, req *model.UpdateAppointmentRequest) (*model.Appointment, error) {
	var apt model.Appointment
	err := c.do(ctx, request{method: http.MethodPut, path: "/appointments/" + id.String(), body: req, authed: true}, &apt)
	if err != nil {
		return nil, err
	}
	return &apt, nil
}
