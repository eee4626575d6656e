package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"call-console/internal/calls"
	"call-console/internal/telephony"
)

var atLayouts = []string{"2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02 15:04"}

func newClient(f backendFlags) (*telephony.Client, error) {
	return telephony.NewClient(telephony.ClientConfig{BaseURL: f.baseURL, Timeout: f.timeout})
}

func runCalls(ctx context.Context, out io.Writer, f backendFlags, asJSON bool) error {
	client, err := newClient(f)
	if err != nil {
		return err
	}
	active, err := client.ListActiveCalls(ctx)
	if err != nil {
		return errors.New(telephony.Message(err))
	}
	incoming, err := client.ListIncomingCalls(ctx)
	if err != nil {
		return errors.New(telephony.Message(err))
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string][]calls.Call{"active_calls": active, "incoming_calls": incoming})
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LIST\tCALL SID\tNUMBER\tSTATUS\tDURATION")
	writeRows := func(list string, rows []calls.Call) {
		for _, c := range rows {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%ds\n", list, c.CallSID, c.Counterparty(), c.Status, c.DurationSeconds)
		}
	}
	writeRows("active", active)
	writeRows("incoming", incoming)
	return tw.Flush()
}

func runCall(ctx context.Context, out io.Writer, f backendFlags, number, message string) error {
	normalized := calls.NormalizeNumber(number)
	if normalized == "" {
		return errors.New("Please enter a phone number")
	}
	client, err := newClient(f)
	if err != nil {
		return err
	}
	res, err := client.MakeCall(ctx, telephony.MakeCallRequest{PhoneNumber: normalized, Message: strings.TrimSpace(message)})
	if err != nil {
		if errors.Is(err, telephony.ErrServerRejected) {
			return fmt.Errorf("Failed to initiate call: %s", telephony.Message(err))
		}
		return fmt.Errorf("Error making call: %s", telephony.Message(err))
	}
	fmt.Fprintf(out, "Call initiated successfully! %s %s\n", normalized, res.CallSID)
	return nil
}

func runBook(ctx context.Context, out io.Writer, f backendFlags, name, at, purpose string) error {
	when, err := parseAt(at)
	if err != nil {
		return err
	}
	client, err := newClient(f)
	if err != nil {
		return err
	}
	id, err := client.CreateAppointment(ctx, telephony.Appointment{
		ClientName: strings.TrimSpace(name),
		DateTime:   when,
		Purpose:    strings.TrimSpace(purpose),
	})
	if err != nil {
		return errors.New(telephony.Message(err))
	}
	fmt.Fprintf(out, "Appointment %d booked for %s\n", id, when.Format("2006-01-02 15:04"))
	return nil
}

func runBookList(ctx context.Context, out io.Writer, f backendFlags) error {
	client, err := newClient(f)
	if err != nil {
		return err
	}
	list, err := client.ListAppointments(ctx)
	if err != nil {
		return errors.New(telephony.Message(err))
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCLIENT\tWHEN\tPURPOSE\tSTATUS")
	for _, a := range list {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", a.ID, a.ClientName, a.DateTime.Format("2006-01-02 15:04"), a.Purpose, a.Status)
	}
	return tw.Flush()
}

func parseAt(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	for _, layout := range atLayouts {
		if t, err := time.ParseInLocation(layout, v, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("--at must look like 2026-11-02T10:30, got %q", v)
}
