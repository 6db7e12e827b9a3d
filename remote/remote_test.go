package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/nalgeon/be"
	"golang.org/x/time/rate"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL+"/", "secret", WithRateLimit(rate.Inf, 1))
	be.Err(t, err, nil)
	return c
}

func TestVerify(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		be.Equal(t, r.Method, http.MethodGet)
		be.Equal(t, r.URL.Path, "/api/mobile/verify.php")
		be.Equal(t, r.Header.Get(HeaderAPIKey), "secret")
		io.WriteString(w, `{"success":true,"message":"API key valid"}`)
	})

	resp, err := c.Verify(context.Background())
	be.Err(t, err, nil)
	be.Equal(t, resp.Message, "API key valid")
}

func TestFetchPending(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		be.Equal(t, r.URL.Path, "/api/mobile/contacts.php")
		be.Equal(t, r.URL.Query().Get("action"), "pending")
		io.WriteString(w, `{"success":true,"contacts":[
			{"id":1,"application_id":7,"phone":"+11234567890","name":"Alice","email":null,"source":"form","created_at":"2024-01-01 10:00:00"},
			{"id":2,"phone":"+19998887777","name":null}
		]}`)
	})

	got, err := c.FetchPending(context.Background())
	be.Err(t, err, nil)
	be.Equal(t, got, []Contact{
		{ID: 1, ApplicationID: 7, Phone: "+11234567890", Name: "Alice", Source: "form", CreatedAt: "2024-01-01 10:00:00"},
		{ID: 2, Phone: "+19998887777"},
	})
}

func TestFetchPendingQuotedNumbers(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"success":true,"contacts":[
			{"id":"1","application_id":"7","phone":"+11234567890","name":"Alice"},
			{"id":2,"application_id":null,"phone":"+19998887777"},
			{"id":"3.0","application_id":"","phone":"+15550001111"}
		]}`)
	})

	got, err := c.FetchPending(context.Background())
	be.Err(t, err, nil)
	be.Equal(t, got, []Contact{
		{ID: 1, ApplicationID: 7, Phone: "+11234567890", Name: "Alice"},
		{ID: 2, Phone: "+19998887777"},
		{ID: 3, Phone: "+15550001111"},
	})
}

func TestFetchPendingRejectsNonNumericID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"success":true,"contacts":[{"id":"abc","phone":"+11234567890"}]}`)
	})

	got, err := c.FetchPending(context.Background())
	var rerr *Error
	be.True(t, errors.As(err, &rerr))
	be.Equal(t, rerr.Reason, "malformed response")
	be.Equal(t, len(got), 0)
}

func TestStatsQuotedNumbers(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"success":true,"stats":{"pending":"3","synced":"10","failed":1,"deleted":null,"total":"14"}}`)
	})

	stats, err := c.Stats(context.Background())
	be.Err(t, err, nil)
	be.Equal(t, stats, Stats{Pending: 3, Synced: 10, Failed: 1, Total: 14})
}

func TestFetchPendingEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"success":true}`)
	})
	got, err := c.FetchPending(context.Background())
	be.Err(t, err, nil)
	be.Equal(t, len(got), 0)
}

func TestFailuresAreDistinctFromEmpty(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		reason  string
		httpErr int
	}{
		{name: "http status", status: http.StatusInternalServerError, body: "boom", reason: "HTTP 500", httpErr: 500},
		{name: "envelope error", status: http.StatusOK, body: `{"success":false,"error":"Invalid API key"}`, reason: "Invalid API key", httpErr: 200},
		{name: "malformed", status: http.StatusOK, body: `<html>`, reason: "malformed response", httpErr: 200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			})
			got, err := c.FetchPending(context.Background())
			be.True(t, got == nil)
			var rerr *Error
			be.True(t, errors.As(err, &rerr))
			be.Equal(t, rerr.Op, "fetch pending")
			be.Equal(t, rerr.Reason, tt.reason)
			be.Equal(t, rerr.Status, tt.httpErr)
		})
	}
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c, err := New(srv.URL, "secret")
	be.Err(t, err, nil)

	_, err = c.Verify(context.Background())
	var rerr *Error
	be.True(t, errors.As(err, &rerr))
	be.Equal(t, rerr.Status, 0)
}

func TestMissingAPIKeyShortCircuits(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	t.Cleanup(srv.Close)

	c, err := New(srv.URL, "  ")
	be.Err(t, err, nil)
	_, err = c.FetchPending(context.Background())
	be.Err(t, err, ErrMissingAPIKey)
	_, err = c.Verify(context.Background())
	be.Err(t, err, ErrMissingAPIKey)
	be.Equal(t, calls.Load(), int32(0))
}

func TestReportBatchBody(t *testing.T) {
	var got map[string][]map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		be.Equal(t, r.Method, http.MethodPost)
		be.Equal(t, r.URL.Query().Get("action"), "bulk-sync")
		be.Equal(t, r.Header.Get("Content-Type"), "application/json; charset=utf-8")
		be.Err(t, json.NewDecoder(r.Body).Decode(&got), nil)
		io.WriteString(w, `{"success":true,"message":"2 updated"}`)
	})

	resp, err := c.ReportBatch(context.Background(), []Outcome{Synced(1, "abc"), Failed(2)})
	be.Err(t, err, nil)
	be.Equal(t, resp.Message, "2 updated")
	be.Equal(t, got["contacts"], []map[string]any{
		{"contact_id": float64(1), "device_contact_id": "abc", "status": "synced"},
		{"contact_id": float64(2), "device_contact_id": nil, "status": "failed"},
	})
}

func TestReportBatchEmptyIsNoop(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("unexpected request")
	})
	_, err := c.ReportBatch(context.Background(), nil)
	be.Err(t, err, nil)
}

func TestReportAndAddAndStats(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("action") {
		case "sync":
			var body map[string]any
			be.Err(t, json.NewDecoder(r.Body).Decode(&body), nil)
			be.Equal(t, body["status"], "deleted")
			io.WriteString(w, `{"success":true}`)
		case "add":
			var body map[string]string
			be.Err(t, json.NewDecoder(r.Body).Decode(&body), nil)
			be.Equal(t, body, map[string]string{"phone": "+14155552671", "name": "Bob"})
			io.WriteString(w, `{"success":true,"message":"Contact added"}`)
		case "all":
			io.WriteString(w, `{"success":true,"stats":{"pending":3,"synced":10,"failed":1,"deleted":0,"total":14}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	ctx := context.Background()

	deviceID := "x1"
	_, err := c.Report(ctx, Outcome{ContactID: 5, DeviceContactID: &deviceID, Status: StatusDeleted})
	be.Err(t, err, nil)

	resp, err := c.AddContact(ctx, " +14155552671 ", " Bob ")
	be.Err(t, err, nil)
	be.Equal(t, resp.Message, "Contact added")

	stats, err := c.Stats(ctx)
	be.Err(t, err, nil)
	be.Equal(t, stats, Stats{Pending: 3, Synced: 10, Failed: 1, Total: 14})
}

func TestNewValidatesURL(t *testing.T) {
	c, err := New("", "k")
	be.Err(t, err, nil)
	be.Equal(t, c.baseURL, "https://joinus.cx/api/mobile/")

	_, err = New("joinus.cx", "k")
	be.Err(t, err)
	_, err = New("ftp://joinus.cx", "k")
	be.Err(t, err)
}

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus(" Synced ")
	be.Err(t, err, nil)
	be.Equal(t, st, StatusSynced)
	_, err = ParseStatus("done")
	be.Err(t, err)
}
