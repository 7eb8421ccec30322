package prescription

import (
	"fmt"
	"strings"

	"github.com/pharmadesk/pharmadesk/pkg/codes"
)

const printWidth = 56

// PrintHeader carries the names shown above the medicine list.
type PrintHeader struct {
	Clinic      string
	Doctor      string
	Specialty   string
	Patient     string
	PatientCode string
}

// Render lays a prescription out as fixed-width text.
func Render(p *Prescription, h PrintHeader) string {
	var b strings.Builder
	rule := strings.Repeat("=", printWidth) + "\n"

	b.WriteString(center(h.Clinic) + "\n")
	b.WriteString(center("PRESCRIPTION") + "\n")
	b.WriteString(rule)
	fmt.Fprintf(&b, "Rx:      %s\n", strings.ToUpper(p.ID.String()[:8]))
	fmt.Fprintf(&b, "Date:    %s\n", p.IssuedAt.Format("2006-01-02"))
	patient := h.Patient
	if h.PatientCode != "" {
		patient += " (" + h.PatientCode + ")"
	}
	fmt.Fprintf(&b, "Patient: %s\n", patient)
	doctor := h.Doctor
	if h.Specialty != "" {
		doctor += ", " + h.Specialty
	}
	fmt.Fprintf(&b, "Doctor:  %s\n", doctor)
	if p.Status != codes.PrescriptionActive {
		fmt.Fprintf(&b, "Status:  %s\n", strings.ToUpper(p.Status))
	}
	if p.Diagnosis != "" {
		fmt.Fprintf(&b, "Dx:      %s\n", p.Diagnosis)
	}
	b.WriteString(rule)

	for i, m := range p.Medicines {
		fmt.Fprintf(&b, "%d. %s\n", i+1, m.Name)
		parts := []string{m.Dose, m.Frequency}
		if m.Duration != "" {
			parts = append(parts, m.Duration)
		}
		line := "   " + strings.Join(parts, " | ")
		if m.TotalQuantity > 0 {
			line += fmt.Sprintf("  [qty %d]", m.TotalQuantity)
		}
		b.WriteString(line + "\n")
		if m.Instructions != "" {
			fmt.Fprintf(&b, "   %s\n", m.Instructions)
		}
	}
	b.WriteString(rule)
	if p.Advice != "" {
		fmt.Fprintf(&b, "Advice: %s\n", p.Advice)
	}
	if p.NextRefillDate != nil {
		fmt.Fprintf(&b, "Next refill: %s\n", p.NextRefillDate.String())
	}
	return b.String()
}

func center(s string) string {
	n := len([]rune(s))
	if n >= printWidth {
		return s
	}
	return strings.Repeat(" ", (printWidth-n)/2) + s
}
