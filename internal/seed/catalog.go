// Package seed provides the sample catalog used by the seed command and by
// demo mode, plus a CSV loader for larger medicine lists.
package seed

import "github.com/shopspring/decimal"

type Medicine struct {
	SKU          string
	Name         string
	GenericName  string
	Category     string
	Unit         string
	UnitPrice    decimal.Decimal
	Stock        int
	ReorderLevel int
}

type Patient struct {
	FullName   string
	Phone      string
	Gender     string
	BloodGroup string
	Address    string
}

type Clinic struct {
	Name    string
	Address string
	Phone   string
}

// Doctor belongs to the clinic at index Clinic in Clinics().
type Doctor struct {
	Name        string
	Specialty   string
	Phone       string
	Fee         decimal.Decimal
	WorkStart   string
	WorkEnd     string
	SlotMinutes int
	Clinic      int
}

type Plan struct {
	Code     string
	Name     string
	Price    decimal.Decimal
	Interval string
	Features []string
}

func price(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func Medicines() []Medicine {
	return []Medicine{
		{"NAPA-500", "Napa 500", "Paracetamol", "Analgesic", "tablet", price("1.20"), 500, 100},
		{"NAPA-EXT", "Napa Extra", "Paracetamol + Caffeine", "Analgesic", "tablet", price("2.50"), 300, 60},
		{"ACE-PLUS", "Ace Plus", "Paracetamol + Caffeine", "Analgesic", "tablet", price("2.50"), 40, 50},
		{"SECLO-20", "Seclo 20", "Omeprazole", "Antiulcerant", "capsule", price("6.00"), 250, 50},
		{"SERGEL-20", "Sergel 20", "Esomeprazole", "Antiulcerant", "capsule", price("7.00"), 180, 40},
		{"MAXPRO-20", "Maxpro 20", "Esomeprazole", "Antiulcerant", "tablet", price("7.00"), 12, 30},
		{"FIMOXYL-500", "Fimoxyl 500", "Amoxicillin", "Antibiotic", "capsule", price("8.50"), 150, 40},
		{"AZITH-500", "Azithrocin 500", "Azithromycin", "Antibiotic", "tablet", price("35.00"), 60, 20},
		{"CIPRO-500", "Ciprocin 500", "Ciprofloxacin", "Antibiotic", "tablet", price("15.00"), 90, 20},
		{"FEXO-120", "Fexo 120", "Fexofenadine", "Antihistamine", "tablet", price("8.00"), 200, 40},
		{"ALATROL-10", "Alatrol 10", "Cetirizine", "Antihistamine", "tablet", price("3.00"), 8, 30},
		{"MONAS-10", "Monas 10", "Montelukast", "Antiasthmatic", "tablet", price("16.00"), 120, 30},
		{"ORSALINE-N", "Orsaline-N", "Oral rehydration salts", "Electrolyte", "sachet", price("6.00"), 400, 100},
		{"TOFEN-SYR", "Tofen Syrup", "Ketotifen", "Antihistamine", "bottle", price("65.00"), 25, 10},
		{"CARDOBIS-5", "Cardobis 5", "Bisoprolol", "Cardiovascular", "tablet", price("8.00"), 140, 30},
		{"AMDOCAL-5", "Amdocal 5", "Amlodipine", "Cardiovascular", "tablet", price("5.00"), 160, 30},
		{"COMET-500", "Comet 500", "Metformin", "Antidiabetic", "tablet", price("4.00"), 300, 60},
		{"SECRIN-2", "Secrin 2", "Glimepiride", "Antidiabetic", "tablet", price("9.00"), 0, 20},
	}
}

func Patients() []Patient {
	return []Patient{
		{"Rahima Begum", "01711000001", "female", "B+", "Mirpur 10, Dhaka"},
		{"Karim Mia", "01811000002", "male", "O+", "Dhanmondi 27, Dhaka"},
		{"Nusrat Jahan", "01911000003", "female", "A+", "Agrabad, Chattogram"},
		{"Abdul Halim", "01511000004", "male", "AB+", "Zindabazar, Sylhet"},
		{"Fatema Khatun", "01611000005", "female", "O-", "Shaheb Bazar, Rajshahi"},
		{"Tanvir Hasan", "01311000006", "male", "B-", "Uttara Sector 7, Dhaka"},
	}
}

func Clinics() []Clinic {
	return []Clinic{
		{"Green Life Clinic", "House 12, Road 5, Dhanmondi, Dhaka", "0255001100"},
		{"Popular Diagnostic Point", "CDA Avenue, Chattogram", "0312550011"},
	}
}

func Doctors() []Doctor {
	return []Doctor{
		{"Dr. Shafiqul Islam", "Medicine", "01700111222", price("800"), "09:00", "13:00", 15, 0},
		{"Dr. Nasreen Akter", "Gynaecology", "01700333444", price("1000"), "16:00", "21:00", 20, 0},
		{"Dr. Mahbub Alam", "Paediatrics", "01700555666", price("700"), "10:00", "17:00", 30, 1},
	}
}

func Plans() []Plan {
	return []Plan{
		{"BASIC", "Basic", price("999"), "monthly", []string{"POS", "Inventory", "1 user"}},
		{"PRO", "Professional", price("2499"), "monthly", []string{"POS", "Inventory", "Prescriptions", "Appointments", "5 users"}},
		{"PRO-YEARLY", "Professional (yearly)", price("24990"), "yearly", []string{"Everything in Professional", "2 months free"}},
	}
}
