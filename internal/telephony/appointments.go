package telephony

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
)

var ErrInvalidAppointment = errors.New("telephony: invalid appointment")

// Appointment is a booked visit. Booking is a one-shot submission with no
// session state attached.
type Appointment struct {
	ID         int       `json:"id,omitempty"`
	ClientName string    `json:"client_name"`
	DateTime   time.Time `json:"-"`
	Purpose    string    `json:"purpose,omitempty"`
	Status     string    `json:"status,omitempty"`
}

// The backend exchanges naive ISO-8601 timestamps without a zone.
const appointmentTimeLayout = "2006-01-02T15:04:05"

type appointmentWire struct {
	ID         int    `json:"id,omitempty"`
	ClientName string `json:"client_name"`
	DateTime   string `json:"datetime"`
	Purpose    string `json:"purpose,omitempty"`
	Status     string `json:"status,omitempty"`
}

func (a Appointment) wire() appointmentWire {
	return appointmentWire{
		ID:         a.ID,
		ClientName: a.ClientName,
		DateTime:   a.DateTime.Format(appointmentTimeLayout),
		Purpose:    a.Purpose,
		Status:     a.Status,
	}
}

func (w appointmentWire) appointment() (Appointment, error) {
	ts := w.DateTime
	if i := strings.IndexAny(ts, ".Z+"); i > 0 {
		ts = ts[:i]
	}
	dt, err := time.Parse(appointmentTimeLayout, ts)
	if err != nil {
		return Appointment{}, err
	}
	return Appointment{ID: w.ID, ClientName: w.ClientName, DateTime: dt, Purpose: w.Purpose, Status: w.Status}, nil
}

// CreateAppointment books an appointment and returns its backend id.
func (c *Client) CreateAppointment(ctx context.Context, a Appointment) (int, error) {
	const op = "create appointment"
	if strings.TrimSpace(a.ClientName) == "" || a.DateTime.IsZero() {
		return 0, ErrInvalidAppointment
	}
	var resp struct {
		Message string `json:"message"`
		ID      *int   `json:"id"`
		Error   string `json:"error,omitempty"`
	}
	status, err := c.do(ctx, op, http.MethodPost, "/appointments", nil, a.wire(), &resp)
	if err != nil {
		return 0, err
	}
	if resp.Error != "" {
		return 0, rejected(op, status, resp.Error)
	}
	if resp.ID == nil {
		return 0, malformed(op, status, "missing appointment id", nil)
	}
	return *resp.ID, nil
}

func (c *Client) ListAppointments(ctx context.Context) ([]Appointment, error) {
	const op = "list appointments"
	var rows []appointmentWire
	status, err := c.do(ctx, op, http.MethodGet, "/appointments", nil, nil, &rows)
	if err != nil {
		return nil, err
	}
	out := make([]Appointment, 0, len(rows))
	for _, r := range rows {
		a, err := r.appointment()
		if err != nil {
			return nil, malformed(op, status, "invalid datetime "+r.DateTime, err)
		}
		out = append(out, a)
	}
	return out, nil
}
