package scheduling

import (
	"testing"
	"time"

	"github.com/pharmadesk/pharmadesk/pkg/codes"
)

func at(hour, min int) time.Time {
	return time.Date(2024, 5, 2, hour, min, 0, 0, time.UTC)
}

func TestBuildSlots(t *testing.T) {
	booked := []*Appointment{
		{ScheduledAt: at(9, 40), Status: codes.AppointmentScheduled},
		{ScheduledAt: at(10, 0), Status: codes.AppointmentCancelled},
		{ScheduledAt: at(8, 0), Status: codes.AppointmentConfirmed},
		{ScheduledAt: at(10, 30), Status: codes.AppointmentCompleted},
	}
	slots := BuildSlots(at(9, 0), at(11, 0), 30*time.Minute, booked)

	want := []bool{true, false, true, false}
	if len(slots) != len(want) {
		t.Fatalf("expected %d slots, got %d", len(want), len(slots))
	}
	for i, w := range want {
		if slots[i].Available != w {
			t.Errorf("slot %d (%s): available=%v, want %v", i, slots[i].Start.Format("15:04"), slots[i].Available, w)
		}
	}
	if !slots[3].End.Equal(at(11, 0)) {
		t.Errorf("last slot should end at 11:00, got %s", slots[3].End)
	}
}

func TestBuildSlots_DropsPartialTail(t *testing.T) {
	slots := BuildSlots(at(9, 0), at(10, 45), 30*time.Minute, nil)
	if len(slots) != 3 {
		t.Fatalf("expected 3 whole slots, got %d", len(slots))
	}
	if countFree(slots) != 3 {
		t.Errorf("expected all slots free")
	}
}

func TestBuildSlots_Degenerate(t *testing.T) {
	if got := BuildSlots(at(10, 0), at(9, 0), 30*time.Minute, nil); len(got) != 0 {
		t.Errorf("expected no slots for inverted range, got %d", len(got))
	}
	if got := BuildSlots(at(9, 0), at(10, 0), 0, nil); len(got) != 0 {
		t.Errorf("expected no slots for zero slot size, got %d", len(got))
	}
}
