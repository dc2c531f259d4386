package inventory

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
)

func (s *Service) CreateYear(ctx context.Context, label string) (*Year, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, fmt.Errorf("%w: year label is required", ErrInvalidInput)
	}
	y := &Year{ID: uuid.New().String(), Label: label, CreatedAt: s.now()}
	if err := s.repo.CreateYear(ctx, y); err != nil {
		return nil, err
	}
	log.Printf("📋 Year created: %s (%s)", y.ID, y.Label)
	return y, nil
}

func (s *Service) CreateZone(ctx context.Context, yearID, name string) (*Zone, error) {
	name = strings.TrimSpace(name)
	if name == "" || yearID == "" {
		return nil, fmt.Errorf("%w: zone needs a name and a year", ErrInvalidInput)
	}
	z := &Zone{ID: uuid.New().String(), Name: name, YearID: yearID, CreatedAt: s.now()}
	if err := s.repo.CreateZone(ctx, z); err != nil {
		return nil, parentErr(err, "year", yearID)
	}
	log.Printf("📋 Zone created: %s (%s)", z.ID, z.Name)
	return z, nil
}

func (s *Service) CreateSubzone(ctx context.Context, zoneID, name string) (*Subzone, error) {
	name = strings.TrimSpace(name)
	if name == "" || zoneID == "" {
		return nil, fmt.Errorf("%w: subzone needs a name and a zone", ErrInvalidInput)
	}
	sz := &Subzone{ID: uuid.New().String(), Name: name, ZoneID: zoneID, CreatedAt: s.now()}
	if err := s.repo.CreateSubzone(ctx, sz); err != nil {
		return nil, parentErr(err, "zone", zoneID)
	}
	log.Printf("📋 Subzone created: %s (%s)", sz.ID, sz.Name)
	return sz, nil
}

func (s *Service) Years(ctx context.Context) ([]Year, error) {
	return s.repo.ListYears(ctx)
}

func (s *Service) Zones(ctx context.Context, yearID string) ([]Zone, error) {
	return s.repo.ListZones(ctx, yearID)
}

func (s *Service) Subzones(ctx context.Context, zoneID string) ([]Subzone, error) {
	return s.repo.ListSubzones(ctx, zoneID)
}

// checkPlacement verifies that the subzone belongs to the zone and the zone
// to the year.
func (s *Service) checkPlacement(ctx context.Context, a Activity) error {
	if _, err := s.repo.GetYear(ctx, a.YearID); err != nil {
		return parentErr(err, "year", a.YearID)
	}
	z, err := s.repo.GetZone(ctx, a.ZoneID)
	if err != nil {
		return parentErr(err, "zone", a.ZoneID)
	}
	if z.YearID != a.YearID {
		return fmt.Errorf("%w: zone %s is not in year %s", ErrInvalidInput, a.ZoneID, a.YearID)
	}
	sz, err := s.repo.GetSubzone(ctx, a.SubzoneID)
	if err != nil {
		return parentErr(err, "subzone", a.SubzoneID)
	}
	if sz.ZoneID != a.ZoneID {
		return fmt.Errorf("%w: subzone %s is not in zone %s", ErrInvalidInput, a.SubzoneID, a.ZoneID)
	}
	return nil
}

// parentErr reports a missing parent as bad input rather than a missing
// resource.
func parentErr(err error, kind, id string) error {
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%w: unknown %s %s", ErrInvalidInput, kind, id)
	}
	return err
}
