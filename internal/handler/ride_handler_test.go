package handler

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/campusride/campus/shared/cqrs"
	"github.com/campusride/campus/shared/errs"
	"github.com/campusride/campus/shared/models"
	"github.com/gin-gonic/gin"
)

// ---- mock implementations ----

type mockRideCommander struct {
	requestFn  func(cqrs.RequestRideCommand) (*models.RideRequest, error)
	offerFn    func(cqrs.OfferRideCommand) (*models.RideRequest, error)
	completeFn func(cqrs.CompleteRideCommand) (*models.RideRequest, error)
	cancelFn   func(cqrs.CancelRideCommand) (*models.RideRequest, error)
}

func (m *mockRideCommander) RequestRide(_ context.Context, cmd cqrs.RequestRideCommand) (*models.RideRequest, error) {
	if m.requestFn != nil {
		return m.requestFn(cmd)
	}
	return nil, fmt.Errorf("not configured")
}
func (m *mockRideCommander) OfferRide(_ context.Context, cmd cqrs.OfferRideCommand) (*models.RideRequest, error) {
	if m.offerFn != nil {
		return m.offerFn(cmd)
	}
	return nil, fmt.Errorf("not configured")
}
func (m *mockRideCommander) CompleteRide(_ context.Context, cmd cqrs.CompleteRideCommand) (*models.RideRequest, error) {
	if m.completeFn != nil {
		return m.completeFn(cmd)
	}
	return nil, fmt.Errorf("not configured")
}
func (m *mockRideCommander) CancelRide(_ context.Context, cmd cqrs.CancelRideCommand) (*models.RideRequest, error) {
	if m.cancelFn != nil {
		return m.cancelFn(cmd)
	}
	return nil, fmt.Errorf("not configured")
}

type mockRideQuerier struct {
	openFn func(cqrs.ListOpenRidesQuery) ([]models.RideRequestView, error)
	mineFn func(cqrs.ListMyRidesQuery) ([]models.RideRequestView, error)
}

func (m *mockRideQuerier) ListOpenRides(_ context.Context, q cqrs.ListOpenRidesQuery) ([]models.RideRequestView, error) {
	if m.openFn != nil {
		return m.openFn(q)
	}
	return nil, fmt.Errorf("not configured")
}
func (m *mockRideQuerier) ListMyRides(_ context.Context, q cqrs.ListMyRidesQuery) ([]models.RideRequestView, error) {
	if m.mineFn != nil {
		return m.mineFn(q)
	}
	return nil, fmt.Errorf("not configured")
}

// ---- helpers ----

func newRideTestRouter(cmds RideCommander, qrys RideQuerier, authUserID string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(fakeAuth(authUserID))
	h := NewRideHandler(cmds, qrys)
	v1 := r.Group("/v1/rides")
	v1.POST("", h.CreateRide)
	v1.GET("", h.ListOpenRides)
	v1.GET("/mine", h.ListMyRides)
	v1.POST("/:requestId/offer", h.OfferRide)
	v1.POST("/:requestId/complete", h.CompleteRide)
	v1.POST("/:requestId/cancel", h.CancelRide)
	return r
}

var aTestRide = &models.RideRequest{
	ID: "ride-1", RiderID: "usr-001", RiderName: "Ananya",
	Pickup: "Main Gate", Dropoff: "Library", Status: models.RidePending, Timestamp: time.Now(),
}

// ---- tests ----

func TestCreateRide(t *testing.T) {
	tests := []struct {
		name           string
		body           interface{}
		requestFn      func(cqrs.RequestRideCommand) (*models.RideRequest, error)
		expectedStatus int
	}{
		{
			name:           "success - request ride",
			body:           map[string]interface{}{"pickup": "Main Gate", "dropoff": "Library"},
			requestFn:      func(cqrs.RequestRideCommand) (*models.RideRequest, error) { return aTestRide, nil },
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "bad request - missing dropoff",
			body:           map[string]interface{}{"pickup": "Main Gate"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "bad request - blank pickup",
			body:           map[string]interface{}{"pickup": " ", "dropoff": "Library"},
			requestFn:      func(cqrs.RequestRideCommand) (*models.RideRequest, error) { return nil, errs.ErrInvalidInput },
			expectedStatus: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newRideTestRouter(&mockRideCommander{requestFn: tt.requestFn}, &mockRideQuerier{}, "usr-001")
			w := doRequest(router, http.MethodPost, "/v1/rides", tt.body)
			if w.Code != tt.expectedStatus {
				t.Errorf("[%s] expected %d got %d; body: %s", tt.name, tt.expectedStatus, w.Code, w.Body.String())
			}
		})
	}
}

func TestListRides(t *testing.T) {
	var gotOpen, gotMine string
	qrys := &mockRideQuerier{
		openFn: func(q cqrs.ListOpenRidesQuery) ([]models.RideRequestView, error) {
			gotOpen = q.RequestingUserID
			return []models.RideRequestView{}, nil
		},
		mineFn: func(q cqrs.ListMyRidesQuery) ([]models.RideRequestView, error) {
			gotMine = q.UserID
			return []models.RideRequestView{*models.RideToView(aTestRide)}, nil
		},
	}
	router := newRideTestRouter(&mockRideCommander{}, qrys, "usr-002")

	if w := doRequest(router, http.MethodGet, "/v1/rides", nil); w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d; body: %s", w.Code, w.Body.String())
	}
	if w := doRequest(router, http.MethodGet, "/v1/rides/mine", nil); w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d; body: %s", w.Code, w.Body.String())
	}
	if gotOpen != "usr-002" || gotMine != "usr-002" {
		t.Errorf("queries not scoped to session: open=%q mine=%q", gotOpen, gotMine)
	}
}

func TestRideTransitionsHTTP(t *testing.T) {
	accepted := *aTestRide
	accepted.Status = models.RideAccepted
	accepted.DriverID = "usr-002"

	tests := []struct {
		name           string
		path           string
		cmds           *mockRideCommander
		expectedStatus int
	}{
		{
			name: "success - offer ride",
			path: "/v1/rides/ride-1/offer",
			cmds: &mockRideCommander{offerFn: func(cmd cqrs.OfferRideCommand) (*models.RideRequest, error) {
				if cmd.RequestID != "ride-1" {
					return nil, errs.ErrNotFound
				}
				return &accepted, nil
			}},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "conflict - already accepted",
			path:           "/v1/rides/ride-1/offer",
			cmds:           &mockRideCommander{offerFn: func(cqrs.OfferRideCommand) (*models.RideRequest, error) { return nil, errs.ErrAlreadyAccepted }},
			expectedStatus: http.StatusConflict,
		},
		{
			name:           "not found - unknown request",
			path:           "/v1/rides/nope/offer",
			cmds:           &mockRideCommander{offerFn: func(cqrs.OfferRideCommand) (*models.RideRequest, error) { return nil, errs.ErrNotFound }},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "conflict - complete pending ride",
			path:           "/v1/rides/ride-1/complete",
			cmds:           &mockRideCommander{completeFn: func(cqrs.CompleteRideCommand) (*models.RideRequest, error) { return nil, errs.ErrInvalidTransition }},
			expectedStatus: http.StatusConflict,
		},
		{
			name:           "forbidden - cancel another rider's request",
			path:           "/v1/rides/ride-1/cancel",
			cmds:           &mockRideCommander{cancelFn: func(cqrs.CancelRideCommand) (*models.RideRequest, error) { return nil, errs.ErrForbidden }},
			expectedStatus: http.StatusForbidden,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newRideTestRouter(tt.cmds, &mockRideQuerier{}, "usr-002")
			w := doRequest(router, http.MethodPost, tt.path, nil)
			if w.Code != tt.expectedStatus {
				t.Errorf("[%s] expected %d got %d; body: %s", tt.name, tt.expectedStatus, w.Code, w.Body.String())
			}
		})
	}
}
