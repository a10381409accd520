package rules

import (
	"testing"

	"github.com/google/uuid"

	"github.com/hackgods/salon-scheduling/internal/appointment"
)

func TestPermissions(t *testing.T) {
	stylist := uuid.New()
	client := uuid.New()
	a := appointment.Appointment{ID: uuid.New(), StylistID: stylist, ClientID: client, Status: appointment.StatusScheduled}

	tests := []struct {
		name       string
		v          appointment.Viewer
		view, edit bool
	}{
		{"admin", appointment.AdminViewer(), true, true},
		{"own stylist", appointment.StylistViewer(stylist), true, true},
		{"other stylist", appointment.StylistViewer(uuid.New()), true, false},
		{"own client", appointment.ClientViewer(client), true, false},
		{"other client", appointment.ClientViewer(uuid.New()), false, false},
		{"unknown role", appointment.Viewer{Role: "guest"}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanView(tt.v, a); got != tt.view {
				t.Fatalf("CanView = %v, want %v", got, tt.view)
			}
			if got := CanMutate(tt.v, a); got != tt.edit {
				t.Fatalf("CanMutate = %v, want %v", got, tt.edit)
			}
		})
	}
}
