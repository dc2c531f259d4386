package inventory

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Service applies item writes and keeps the activity counters current, the
// same way a write trigger would.
type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// ActivityView is an activity with its items grouped by service.
type ActivityView struct {
	Activity *Activity         `json:"activity"`
	Services map[string][]Item `json:"services"`
}

// ItemInput is the writable part of an item.
type ItemInput struct {
	Name          string `json:"name"`
	Qty           int    `json:"qty"`
	SortieChecked bool   `json:"sortie_checked"`
	RetourChecked bool   `json:"retour_checked"`
}

func (s *Service) CreateActivity(ctx context.Context, a Activity) (*Activity, error) {
	a.Label = strings.TrimSpace(a.Label)
	if a.Label == "" || a.YearID == "" || a.ZoneID == "" || a.SubzoneID == "" {
		return nil, fmt.Errorf("%w: label, year, zone and subzone are required", ErrInvalidInput)
	}
	if !a.EndDate.IsZero() && a.EndDate.Before(a.StartDate) {
		return nil, fmt.Errorf("%w: end date before start date", ErrInvalidInput)
	}
	if err := s.checkPlacement(ctx, a); err != nil {
		return nil, err
	}
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	now := s.now()
	a.ItemsTotal, a.ItemsReturned, a.IsComplete = 0, 0, false
	a.CreatedAt, a.UpdatedAt = now, now

	if err := s.repo.CreateActivity(ctx, &a); err != nil {
		return nil, err
	}
	log.Printf("📋 Activity created: %s (%s)", a.ID, a.Label)
	return &a, nil
}

const (
	DefaultActivityLimit = 10
	MaxActivityLimit     = 100
)

// Activities lists the most recent activities. A limit outside
// 1..MaxActivityLimit falls back to DefaultActivityLimit.
func (s *Service) Activities(ctx context.Context, limit int) ([]Activity, error) {
	if limit <= 0 || limit > MaxActivityLimit {
		limit = DefaultActivityLimit
	}
	return s.repo.ListActivities(ctx, limit)
}

func (s *Service) Activity(ctx context.Context, id string) (*ActivityView, error) {
	a, err := s.repo.GetActivity(ctx, id)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.ListItems(ctx, id)
	if err != nil {
		return nil, err
	}
	view := &ActivityView{Activity: a, Services: make(map[string][]Item)}
	for _, it := range items {
		view.Services[it.ServiceID] = append(view.Services[it.ServiceID], it)
	}
	return view, nil
}

// WriteItem creates or updates an item and recounts the activity. Check-out
// and check-in timestamps are set when the flag turns on; the check-in
// timestamp is cleared when it turns off.
func (s *Service) WriteItem(ctx context.Context, activityID, serviceID, itemID string, in ItemInput) (*Item, Counts, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" || in.Qty < 0 {
		return nil, Counts{}, fmt.Errorf("%w: item needs a name and a non-negative qty", ErrInvalidInput)
	}

	now := s.now()
	item, err := s.repo.GetItem(ctx, activityID, serviceID, itemID)
	switch {
	case errors.Is(err, ErrNotFound):
		item = &Item{ID: itemID, ServiceID: serviceID, CreatedAt: now}
	case err != nil:
		return nil, Counts{}, err
	}

	item.Name = in.Name
	item.Qty = in.Qty
	if in.SortieChecked && !item.SortieChecked {
		t := now
		item.SortieAt = &t
	}
	if !in.SortieChecked {
		item.SortieAt = nil
	}
	item.SortieChecked = in.SortieChecked
	if in.RetourChecked && !item.RetourChecked {
		t := now
		item.RetourAt = &t
	}
	if !in.RetourChecked {
		item.RetourAt = nil
	}
	item.RetourChecked = in.RetourChecked
	item.UpdatedAt = now

	if err := s.repo.PutItem(ctx, activityID, item); err != nil {
		return nil, Counts{}, err
	}
	counts, err := Recount(ctx, s.repo, activityID, now)
	if err != nil {
		return nil, Counts{}, err
	}
	return item, counts, nil
}

func (s *Service) DeleteItem(ctx context.Context, activityID, serviceID, itemID string) (Counts, error) {
	if err := s.repo.DeleteItem(ctx, activityID, serviceID, itemID); err != nil {
		return Counts{}, err
	}
	return Recount(ctx, s.repo, activityID, s.now())
}
