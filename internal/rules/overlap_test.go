package rules

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/salon-scheduling/internal/appointment"
)

var day = time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)

func at(h, m int) time.Time { return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute) }

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name string
		a, b [2]time.Time
		want bool
	}{
		{"partial", [2]time.Time{at(10, 0), at(11, 0)}, [2]time.Time{at(10, 30), at(11, 15)}, true},
		{"contained", [2]time.Time{at(10, 0), at(12, 0)}, [2]time.Time{at(10, 30), at(11, 0)}, true},
		{"identical", [2]time.Time{at(10, 0), at(11, 0)}, [2]time.Time{at(10, 0), at(11, 0)}, true},
		{"back to back", [2]time.Time{at(10, 0), at(11, 0)}, [2]time.Time{at(11, 0), at(12, 0)}, false},
		{"disjoint", [2]time.Time{at(9, 0), at(9, 30)}, [2]time.Time{at(10, 0), at(11, 0)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Overlaps(tt.a[0], tt.a[1], tt.b[0], tt.b[1]); got != tt.want {
				t.Fatalf("Overlaps = %v, want %v", got, tt.want)
			}
			if got := Overlaps(tt.b[0], tt.b[1], tt.a[0], tt.a[1]); got != tt.want {
				t.Fatalf("Overlaps reversed = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidateInterval(t *testing.T) {
	if err := ValidateInterval(at(10, 0), at(11, 0)); err != nil {
		t.Fatalf("valid interval: %v", err)
	}
	if err := ValidateInterval(at(10, 0), at(10, 0)); !errors.Is(err, ErrInvalidInterval) {
		t.Fatalf("empty interval err = %v, want ErrInvalidInterval", err)
	}
	if err := ValidateInterval(at(11, 0), at(10, 0)); !errors.Is(err, ErrInvalidInterval) {
		t.Fatalf("reversed interval err = %v, want ErrInvalidInterval", err)
	}
}

func TestCheckOverlap(t *testing.T) {
	stylist := uuid.New()
	other := uuid.New()
	x := appointment.Appointment{ID: uuid.New(), StylistID: stylist, Start: at(10, 0), End: at(11, 0), Status: appointment.StatusConfirmed}
	y := appointment.Appointment{ID: uuid.New(), StylistID: stylist, Start: at(12, 0), End: at(13, 0), Status: appointment.StatusScheduled}
	cancelled := appointment.Appointment{ID: uuid.New(), StylistID: stylist, Start: at(14, 0), End: at(15, 0), Status: appointment.StatusCancelled}
	elsewhere := appointment.Appointment{ID: uuid.New(), StylistID: other, Start: at(16, 0), End: at(17, 0), Status: appointment.StatusConfirmed}
	existing := []appointment.Appointment{x, y, cancelled, elsewhere}

	tests := []struct {
		name     string
		c        Candidate
		conflict bool
		withID   uuid.UUID
	}{
		{"overlaps x", Candidate{StylistID: stylist, Start: at(10, 30), End: at(11, 15)}, true, x.ID},
		{"first conflict wins", Candidate{StylistID: stylist, Start: at(10, 30), End: at(12, 30)}, true, x.ID},
		{"touching x end", Candidate{StylistID: stylist, Start: at(11, 0), End: at(12, 0)}, false, uuid.Nil},
		{"moving x onto itself", Candidate{StylistID: stylist, Start: at(10, 15), End: at(11, 15), ExcludeID: x.ID}, false, uuid.Nil},
		{"cancelled ignored", Candidate{StylistID: stylist, Start: at(14, 0), End: at(15, 0)}, false, uuid.Nil},
		{"other stylist ignored", Candidate{StylistID: stylist, Start: at(16, 0), End: at(17, 0)}, false, uuid.Nil},
		{"other stylist conflicts", Candidate{StylistID: other, Start: at(16, 30), End: at(17, 30)}, true, elsewhere.ID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CheckOverlap(tt.c, existing)
			if got.Conflict != tt.conflict || got.WithID != tt.withID {
				t.Fatalf("CheckOverlap = %+v, want conflict=%v with=%s", got, tt.conflict, tt.withID)
			}
		})
	}
}

func TestCheckOverlap_EmptyExisting(t *testing.T) {
	got := CheckOverlap(Candidate{StylistID: uuid.New(), Start: at(9, 0), End: at(10, 0)}, nil)
	if got != NoConflict() {
		t.Fatalf("CheckOverlap = %+v, want no conflict", got)
	}
	if got.Err() != nil {
		t.Fatalf("Err() = %v, want nil", got.Err())
	}
}

func TestOverlapResultErr(t *testing.T) {
	id := uuid.New()
	err := OverlapResult{Conflict: true, WithID: id}.Err()
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
	var ce *ConflictError
	if !errors.As(err, &ce) || ce.WithAppointmentID != id {
		t.Fatalf("ConflictError with = %v, want %s", ce, id)
	}
}
