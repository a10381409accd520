package reschedule

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/hackgods/salon-scheduling/internal/appointment"
	"github.com/hackgods/salon-scheduling/internal/rules"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{nil, KindNone},
		{appointment.ErrAppointmentNotFound, KindNotFound},
		{fmt.Errorf("load: %w", appointment.ErrAppointmentNotFound), KindNotFound},
		{rules.ErrForbidden, KindForbidden},
		{rules.ErrInvalidInterval, KindInvalidInterval},
		{&rules.ConflictError{WithAppointmentID: uuid.New()}, KindConflict},
		{appointment.ErrSlotTaken, KindConflict},
		{appointment.ErrVersionConflict, KindVersionConflict},
		{rules.ErrInvalidTransition, KindInvalidTransition},
		{ErrBusy, KindBusy},
		{persistError(context.DeadlineExceeded), KindPersistFailed},
		{errors.New("anything else"), KindPersistFailed},
	}
	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.want {
			t.Errorf("KindOf(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestDescriptions(t *testing.T) {
	for k := range descriptions {
		if k.Description() == "" {
			t.Errorf("%q has an empty description", k)
		}
	}
	if Kind("mystery").Description() != KindPersistFailed.Description() {
		t.Fatalf("unknown kind description should fall back to persist_failed")
	}
}

func TestPersistErrorKeepsDomainErrors(t *testing.T) {
	for _, err := range []error{appointment.ErrVersionConflict, appointment.ErrAppointmentNotFound, appointment.ErrSlotTaken} {
		if got := persistError(err); got != err {
			t.Errorf("persistError(%v) = %v, want unchanged", err, got)
		}
	}
	wrapped := persistError(errors.New("io"))
	if !errors.Is(wrapped, ErrPersistFailed) {
		t.Fatalf("persistError did not wrap ErrPersistFailed: %v", wrapped)
	}
}
