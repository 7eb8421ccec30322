package patient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pharmadesk/pharmadesk/internal/platform/validation"
	"github.com/pharmadesk/pharmadesk/pkg/codes"
	"github.com/pharmadesk/pharmadesk/pkg/datex"
)

// exportLimit caps CSV exports.
const exportLimit = 10000

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

func (s *Service) Create(ctx context.Context, p *Patient) error {
	normalize(p)
	if err := s.validate(p); err != nil {
		return err
	}
	if p.PatientCode == "" {
		p.PatientCode = s.newCode()
	}
	return s.repo.Create(ctx, p)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

// Update replaces the editable fields. The patient code never changes.
func (s *Service) Update(ctx context.Context, p *Patient) error {
	normalize(p)
	if err := s.validate(p); err != nil {
		return err
	}
	return s.repo.Update(ctx, p)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Patient, int, error) {
	return s.repo.Search(ctx, params, limit, offset)
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

// Export returns every patient matching params, up to exportLimit.
func (s *Service) Export(ctx context.Context, params map[string]string) ([]*Patient, error) {
	items, _, err := s.repo.Search(ctx, params, exportLimit, 0)
	if err != nil {
		return nil, fmt.Errorf("export patients: %w", err)
	}
	return items, nil
}

func (s *Service) validate(p *Patient) error {
	errs := validation.Errors{}
	errs.Required("full_name", p.FullName)
	errs.Required("phone", p.Phone)
	errs.Phone("phone", p.Phone)
	errs.Email("email", p.Email)
	errs.OneOf("gender", p.Gender, codes.Genders)
	errs.OneOf("blood_group", p.BloodGroup, codes.BloodGroups)
	if p.DateOfBirth != nil && p.DateOfBirth.After(datex.Of(s.now())) {
		errs.Add("date_of_birth", "must not be in the future")
	}
	return errs.Err()
}

// newCode returns e.g. "PT-240315-3FA9C1".
func (s *Service) newCode() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("PT-%s-%s", s.now().Format("060102"), suffix)
}

func normalize(p *Patient) {
	p.FullName = strings.TrimSpace(p.FullName)
	p.Phone = strings.TrimSpace(p.Phone)
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	p.Gender = strings.ToLower(strings.TrimSpace(p.Gender))
	p.BloodGroup = strings.ToUpper(strings.TrimSpace(p.BloodGroup))
	p.PatientCode = strings.TrimSpace(p.PatientCode)
}
