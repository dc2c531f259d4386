package inventory

import (
	"context"
	"sort"
	"sync"
	"time"
)

type itemKey struct {
	service string
	item    string
}

type MemoryRepository struct {
	mu         sync.RWMutex
	activities map[string]*Activity
	items      map[string]map[itemKey]*Item
	years      map[string]*Year
	zones      map[string]*Zone
	subzones   map[string]*Subzone
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		activities: make(map[string]*Activity),
		items:      make(map[string]map[itemKey]*Item),
		years:      make(map[string]*Year),
		zones:      make(map[string]*Zone),
		subzones:   make(map[string]*Subzone),
	}
}

func (r *MemoryRepository) CreateActivity(ctx context.Context, a *Activity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	r.activities[a.ID] = &cp
	return nil
}

func (r *MemoryRepository) GetActivity(ctx context.Context, id string) (*Activity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.activities[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *MemoryRepository) ListActivities(ctx context.Context, limit int) ([]Activity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Activity, 0, len(r.activities))
	for _, a := range r.activities {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].StartDate.After(out[j].StartDate)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepository) UpdateCounts(ctx context.Context, id string, c Counts, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.activities[id]
	if !ok {
		return ErrNotFound
	}
	a.ItemsTotal = c.Total
	a.ItemsReturned = c.Returned
	a.IsComplete = c.Complete
	a.UpdatedAt = at
	return nil
}

func (r *MemoryRepository) ListItems(ctx context.Context, activityID string) ([]Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Item, 0, len(r.items[activityID]))
	for _, it := range r.items[activityID] {
		out = append(out, *it)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ServiceID != out[j].ServiceID {
			return out[i].ServiceID < out[j].ServiceID
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *MemoryRepository) GetItem(ctx context.Context, activityID, serviceID, itemID string) (*Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	it, ok := r.items[activityID][itemKey{serviceID, itemID}]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *it
	return &cp, nil
}

func (r *MemoryRepository) PutItem(ctx context.Context, activityID string, item *Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.activities[activityID]; !ok {
		return ErrNotFound
	}
	m := r.items[activityID]
	if m == nil {
		m = make(map[itemKey]*Item)
		r.items[activityID] = m
	}
	cp := *item
	m[itemKey{item.ServiceID, item.ID}] = &cp
	return nil
}

func (r *MemoryRepository) DeleteItem(ctx context.Context, activityID, serviceID, itemID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := itemKey{serviceID, itemID}
	if _, ok := r.items[activityID][key]; !ok {
		return ErrNotFound
	}
	delete(r.items[activityID], key)
	return nil
}

func (r *MemoryRepository) CreateYear(ctx context.Context, y *Year) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *y
	r.years[y.ID] = &cp
	return nil
}

func (r *MemoryRepository) GetYear(ctx context.Context, id string) (*Year, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	y, ok := r.years[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *y
	return &cp, nil
}

func (r *MemoryRepository) ListYears(ctx context.Context) ([]Year, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Year, 0, len(r.years))
	for _, y := range r.years {
		out = append(out, *y)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Label != out[j].Label {
			return out[i].Label > out[j].Label
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *MemoryRepository) CreateZone(ctx context.Context, z *Zone) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.years[z.YearID]; !ok {
		return ErrNotFound
	}
	cp := *z
	r.zones[z.ID] = &cp
	return nil
}

func (r *MemoryRepository) GetZone(ctx context.Context, id string) (*Zone, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	z, ok := r.zones[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *z
	return &cp, nil
}

func (r *MemoryRepository) ListZones(ctx context.Context, yearID string) ([]Zone, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []Zone{}
	for _, z := range r.zones {
		if yearID == "" || z.YearID == yearID {
			out = append(out, *z)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *MemoryRepository) CreateSubzone(ctx context.Context, sz *Subzone) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.zones[sz.ZoneID]; !ok {
		return ErrNotFound
	}
	cp := *sz
	r.subzones[sz.ID] = &cp
	return nil
}

func (r *MemoryRepository) GetSubzone(ctx context.Context, id string) (*Subzone, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sz, ok := r.subzones[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *sz
	return &cp, nil
}

func (r *MemoryRepository) ListSubzones(ctx context.Context, zoneID string) ([]Subzone, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []Subzone{}
	for _, sz := range r.subzones {
		if zoneID == "" || sz.ZoneID == zoneID {
			out = append(out, *sz)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *MemoryRepository) Close() error { return nil }
