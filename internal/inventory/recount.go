package inventory

import (
	"context"
	"fmt"
	"time"
)

// Recount recomputes the activity's counters from every item of every
// service beneath it and stores them stamped with at.
func Recount(ctx context.Context, repo Repository, activityID string, at time.Time) (Counts, error) {
	items, err := repo.ListItems(ctx, activityID)
	if err != nil {
		return Counts{}, fmt.Errorf("recount %s: %w", activityID, err)
	}

	var c Counts
	for _, it := range items {
		c.Total++
		if it.RetourChecked {
			c.Returned++
		}
	}
	c.Complete = c.Total > 0 && c.Total == c.Returned

	if err := repo.UpdateCounts(ctx, activityID, c, at); err != nil {
		return Counts{}, fmt.Errorf("recount %s: %w", activityID, err)
	}
	return c, nil
}
