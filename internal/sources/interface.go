package sources

import (
	"context"
	"errors"

	"github.com/leolhan1425/bc-tracker/internal/models"
)

// ErrNotFound is returned when a community or thread no longer exists.
var ErrNotFound = errors.New("not found")

// Listing is one page of posts from a community feed.
type Listing struct {
	Items []models.Item
	// After is the cursor of the next page, empty on the last page.
	After string
}

// Fetcher interface defines the contract for community data sources
type Fetcher interface {
	GetName() string
	FetchListing(ctx context.Context, community, sort, after string) (*Listing, error)
	FetchComments(ctx context.Context, postID, permalink string) ([]models.Item, error)
}

// FetchPages walks a community feed page by page until limit posts have been
// seen or the feed ends. Each page is handed to fn with duplicates of earlier
// pages removed. It returns the number of posts handed to fn.
func FetchPages(ctx context.Context, f Fetcher, community, sort string, limit int,
	fn func(page []models.Item) error) (int, error) {
	seen := make(map[string]struct{})
	total := 0
	after := ""

	for total < limit {
		listing, err := f.FetchListing(ctx, community, sort, after)
		if err != nil {
			return total, err
		}
		if len(listing.Items) == 0 {
			break
		}

		page := make([]models.Item, 0, len(listing.Items))
		for _, item := range listing.Items {
			if _, ok := seen[item.ID]; ok {
				continue
			}
			seen[item.ID] = struct{}{}
			page = append(page, item)
		}

		if len(page) > 0 {
			if err := fn(page); err != nil {
				return total, err
			}
			total += len(page)
		}

		if listing.After == "" {
			break
		}
		after = listing.After
	}

	return total, nil
}
