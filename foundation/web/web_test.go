package web_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/ardanlabs/ledgernode/foundation/web"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

type order struct {
	Amount uint64 `json:"amount"`
}

func (o order) Validate() error {
	if o.Amount == 0 {
		return errors.New("amount must be positive")
	}
	return nil
}

func Test_App(t *testing.T) {
	var trail []string
	mw := func(name string) web.Middleware {
		return func(handler web.Handler) web.Handler {
			return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
				trail = append(trail, name)
				return handler(ctx, w, r)
			}
		}
	}

	app := web.NewApp(make(chan os.Signal, 1), mw("app"))

	h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		if web.GetTraceID(ctx) == "" {
			return errors.New("missing trace id")
		}
		return web.Respond(ctx, w, map[string]string{"address": web.Param(r, "address")}, http.StatusOK)
	}
	app.Handle(http.MethodGet, "v1", "/balance/:address", h, mw("route"))

	t.Log("Given the need to route requests through middleware.")
	{
		r := httptest.NewRequest(http.MethodGet, "/v1/balance/1abc", nil)
		w := httptest.NewRecorder()
		app.ServeHTTP(w, r)

		if w.Code != http.StatusOK {
			t.Fatalf("\t%s\tShould get a 200 status : %d", failed, w.Code)
		}
		t.Logf("\t%s\tShould get a 200 status.", success)

		if !strings.Contains(w.Body.String(), `"address":"1abc"`) {
			t.Fatalf("\t%s\tShould get the route parameter back : %s", failed, w.Body.String())
		}
		t.Logf("\t%s\tShould get the route parameter back.", success)

		if len(trail) != 2 || trail[0] != "app" || trail[1] != "route" {
			t.Fatalf("\t%s\tShould run app middleware before route middleware : %v", failed, trail)
		}
		t.Logf("\t%s\tShould run app middleware before route middleware.", success)
	}
}

func Test_Decode(t *testing.T) {
	t.Log("Given the need to decode request bodies.")
	{
		var o order
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount":5}`))
		if err := web.Decode(r, &o); err != nil || o.Amount != 5 {
			t.Fatalf("\t%s\tShould decode a valid body : %v", failed, err)
		}
		t.Logf("\t%s\tShould decode a valid body.", success)

		r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount":0}`))
		if err := web.Decode(r, &o); err == nil {
			t.Fatalf("\t%s\tShould run the model validation.", failed)
		}
		t.Logf("\t%s\tShould run the model validation.", success)

		r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount":5,"extra":1}`))
		if err := web.Decode(r, &o); err == nil {
			t.Fatalf("\t%s\tShould reject unknown fields.", failed)
		}
		t.Logf("\t%s\tShould reject unknown fields.", success)
	}
}

func Test_Shutdown(t *testing.T) {
	shutdown := make(chan os.Signal, 1)
	app := web.NewApp(shutdown)

	h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		return web.NewShutdownError("integrity issue")
	}
	app.Handle(http.MethodGet, "", "/fail", h)

	app.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/fail", nil))

	select {
	case <-shutdown:
	default:
		t.Fatalf("Should signal a shutdown for an integrity error.")
	}
}
