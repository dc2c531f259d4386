// Package inventory tracks per-activity equipment checklists and keeps the
// activity's returned/total counters in step with every item write.
package inventory

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("inventory: not found")
	ErrInvalidInput = errors.New("inventory: invalid input")
)

type Activity struct {
	ID            string    `json:"id"`
	Label         string    `json:"label"`
	StartDate     time.Time `json:"start_date"`
	EndDate       time.Time `json:"end_date"`
	YearID        string    `json:"year_id"`
	ZoneID        string    `json:"zone_id"`
	SubzoneID     string    `json:"subzone_id"`
	Observations  string    `json:"observations,omitempty"`
	ItemsTotal    int       `json:"items_total"`
	ItemsReturned int       `json:"items_returned"`
	IsComplete    bool      `json:"is_complete"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Item is one line of a service's checklist. Sortie is the check-out,
// Retour the check-in.
type Item struct {
	ID            string     `json:"id"`
	ServiceID     string     `json:"service_id"`
	Name          string     `json:"name"`
	Qty           int        `json:"qty"`
	SortieChecked bool       `json:"sortie_checked"`
	SortieAt      *time.Time `json:"sortie_at"`
	RetourChecked bool       `json:"retour_checked"`
	RetourAt      *time.Time `json:"retour_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Year, Zone and Subzone form the hierarchy an activity is filed under.
type Year struct {
	ID        string    `json:"id"`
	Label     string    `json:"label"`
	CreatedAt time.Time `json:"created_at"`
}

type Zone struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	YearID    string    `json:"year_id"`
	CreatedAt time.Time `json:"created_at"`
}

type Subzone struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	ZoneID    string    `json:"zone_id"`
	CreatedAt time.Time `json:"created_at"`
}

type Counts struct {
	Total    int  `json:"items_total"`
	Returned int  `json:"items_returned"`
	Complete bool `json:"is_complete"`
}

// Hierarchy stores the years, zones and subzones. Listing by an empty
// parent ID returns every row.
type Hierarchy interface {
	CreateYear(ctx context.Context, y *Year) error
	GetYear(ctx context.Context, id string) (*Year, error)
	ListYears(ctx context.Context) ([]Year, error)
	CreateZone(ctx context.Context, z *Zone) error
	GetZone(ctx context.Context, id string) (*Zone, error)
	ListZones(ctx context.Context, yearID string) ([]Zone, error)
	CreateSubzone(ctx context.Context, sz *Subzone) error
	GetSubzone(ctx context.Context, id string) (*Subzone, error)
	ListSubzones(ctx context.Context, zoneID string) ([]Subzone, error)
}

type Repository interface {
	Hierarchy

	CreateActivity(ctx context.Context, a *Activity) error
	GetActivity(ctx context.Context, id string) (*Activity, error)
	// ListActivities returns the most recent activities first, by start
	// date then creation time.
	ListActivities(ctx context.Context, limit int) ([]Activity, error)
	UpdateCounts(ctx context.Context, id string, c Counts, at time.Time) error
	// ListItems returns the items of every service under the activity.
	ListItems(ctx context.Context, activityID string) ([]Item, error)
	GetItem(ctx context.Context, activityID, serviceID, itemID string) (*Item, error)
	PutItem(ctx context.Context, activityID string, item *Item) error
	DeleteItem(ctx context.Context, activityID, serviceID, itemID string) error
	Close() error
}
