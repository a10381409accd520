package calendar

import (
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/hackgods/salon-scheduling/internal/appointment"
)

var icsStatus = map[appointment.Status]string{
	appointment.StatusScheduled: "TENTATIVE",
	appointment.StatusConfirmed: "CONFIRMED",
	appointment.StatusCompleted: "CONFIRMED",
	appointment.StatusCancelled: "CANCELLED",
}

// EncodeICS renders events as a read-only iCalendar feed. DTSTAMP is set to
// stamp so the output is deterministic for a given input.
func EncodeICS(name string, events []Event, stamp time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//hackgods//salon-scheduling//EN")
	if name != "" {
		cal.SetXWRCalName(name)
	}

	for _, e := range events {
		ev := cal.AddEvent(e.ID.String())
		ev.SetDtStampTime(stamp.UTC())
		ev.SetStartAt(e.Start.UTC())
		ev.SetEndAt(e.End.UTC())
		ev.SetSummary(e.Title)
		ev.SetProperty(ical.ComponentPropertyStatus, icsStatus[e.Status])
		ev.SetProperty(ical.ComponentPropertyCategories, strings.ToUpper(string(e.Status)))
	}

	return cal.Serialize()
}
