package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/leolhan1425/bc-tracker/internal/metrics"
	"github.com/leolhan1425/bc-tracker/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	DefaultRedditBaseURL   = "https://www.reddit.com"
	DefaultUserAgent       = "go:bc-tracker:v1.0 (contraceptive mention tracker)"
	DefaultRequestInterval = 1500 * time.Millisecond

	listingPageSize = 100
	commentLimit    = 200
	deletedBody     = "[deleted]"
)

// RedditOptions configures a RedditSource.
type RedditOptions struct {
	BaseURL         string
	UserAgent       string
	RequestInterval time.Duration
	Timeout         time.Duration
}

// RedditSource reads public Reddit JSON listings. All requests share one
// limiter so the upstream sees at most one request per interval.
type RedditSource struct {
	client  *resty.Client
	limiter *rate.Limiter
}

type redditListingResponse struct {
	Data struct {
		Children []struct {
			Kind string     `json:"kind"`
			Data redditPost `json:"data"`
		} `json:"children"`
		After string `json:"after"`
	} `json:"data"`
}

type redditPost struct {
	ID                  string  `json:"id"`
	Title               string  `json:"title"`
	Selftext            string  `json:"selftext"`
	Author              string  `json:"author"`
	Subreddit           string  `json:"subreddit"`
	Permalink           string  `json:"permalink"`
	Created             float64 `json:"created_utc"`
	Score               int     `json:"score"`
	NumComments         int     `json:"num_comments"`
	CrosspostParentList []struct {
		ID string `json:"id"`
	} `json:"crosspost_parent_list"`
}

// redditThing is a node of a comment tree: either a Listing or a t1 comment.
type redditThing struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

type redditListingData struct {
	Children []redditThing `json:"children"`
}

type redditComment struct {
	ID      string  `json:"id"`
	Body    string  `json:"body"`
	Author  string  `json:"author"`
	Created float64 `json:"created_utc"`
	Score   int     `json:"score"`
	// Replies is an empty string when there are none, a Listing otherwise.
	Replies json.RawMessage `json:"replies"`
}

// NewRedditSource creates a new Reddit source
func NewRedditSource(opts RedditOptions) *RedditSource {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultRedditBaseURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	limit := rate.Inf
	if opts.RequestInterval > 0 {
		limit = rate.Every(opts.RequestInterval)
	}

	return &RedditSource{
		client: resty.New().
			SetBaseURL(opts.BaseURL).
			SetHeader("User-Agent", opts.UserAgent).
			SetTimeout(opts.Timeout),
		limiter: rate.NewLimiter(limit, 1),
	}
}

func (r *RedditSource) GetName() string {
	return "reddit"
}

// FetchListing fetches one page of /r/<community>/<sort>.
func (r *RedditSource) FetchListing(ctx context.Context, community, sort, after string) (*Listing, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(listingPageSize))
	params.Set("raw_json", "1")
	if after != "" {
		params.Set("after", after)
	}

	body, err := r.get(ctx, "listing", fmt.Sprintf("/r/%s/%s.json", url.PathEscape(community), sort), params)
	if err != nil {
		return nil, fmt.Errorf("fetch r/%s/%s: %w", community, sort, err)
	}

	var resp redditListingResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode r/%s/%s: %w", community, sort, err)
	}

	listing := &Listing{After: resp.Data.After}
	for _, child := range resp.Data.Children {
		p := child.Data
		if p.ID == "" {
			continue
		}
		item := models.Item{
			ID:          p.ID,
			Kind:        models.KindPost,
			Title:       p.Title,
			Body:        p.Selftext,
			CreatedUTC:  int64(p.Created),
			Score:       p.Score,
			NumComments: p.NumComments,
			Community:   community,
			Permalink:   p.Permalink,
			Author:      p.Author,
			SortSource:  sort,
		}
		if len(p.CrosspostParentList) > 0 {
			item.CrosspostParent = p.CrosspostParentList[0].ID
		}
		listing.Items = append(listing.Items, item)
	}

	logrus.Debugf("Fetched %d posts from r/%s/%s", len(listing.Items), community, sort)
	return listing, nil
}

// FetchComments fetches a thread and flattens its reply tree. Deleted and
// empty comments are skipped.
func (r *RedditSource) FetchComments(ctx context.Context, postID, permalink string) ([]models.Item, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(commentLimit))
	params.Set("raw_json", "1")

	body, err := r.get(ctx, "comments", permalinkPath(permalink)+".json", params)
	if err != nil {
		return nil, fmt.Errorf("fetch comments for %s: %w", postID, err)
	}

	var things []redditThing
	if err := json.Unmarshal(body, &things); err != nil {
		return nil, fmt.Errorf("decode comments for %s: %w", postID, err)
	}

	comments := make([]models.Item, 0)
	if len(things) < 2 {
		return comments, nil
	}

	if err := walkComments(things[1], postID, &comments); err != nil {
		return nil, fmt.Errorf("decode comments for %s: %w", postID, err)
	}
	return comments, nil
}

func (r *RedditSource) get(ctx context.Context, endpoint, path string, params url.Values) ([]byte, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := r.client.R().
		SetContext(ctx).
		SetQueryParamsFromValues(params).
		Get(path)
	metrics.SourceRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.SourceRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		return nil, err
	}

	metrics.SourceRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode())).Inc()
	switch resp.StatusCode() {
	case 200:
	case 404:
		return nil, fmt.Errorf("reddit returned status 404: %w", ErrNotFound)
	default:
		return nil, fmt.Errorf("reddit returned status %d", resp.StatusCode())
	}

	return resp.Body(), nil
}

func walkComments(node redditThing, postID string, out *[]models.Item) error {
	switch node.Kind {
	case "Listing":
		var data redditListingData
		if err := json.Unmarshal(node.Data, &data); err != nil {
			return err
		}
		for _, child := range data.Children {
			if err := walkComments(child, postID, out); err != nil {
				return err
			}
		}
	case "t1":
		var c redditComment
		if err := json.Unmarshal(node.Data, &c); err != nil {
			return err
		}
		if c.Body != "" && c.Body != deletedBody {
			*out = append(*out, models.Item{
				ID:         c.ID,
				Kind:       models.KindComment,
				Body:       c.Body,
				CreatedUTC: int64(c.Created),
				Score:      c.Score,
				Author:     c.Author,
				PostID:     postID,
			})
		}
		if len(c.Replies) > 0 && c.Replies[0] == '{' {
			var replies redditThing
			if err := json.Unmarshal(c.Replies, &replies); err != nil {
				return err
			}
			return walkComments(replies, postID, out)
		}
	}
	return nil
}

// permalinkPath strips a trailing slash so ".json" can be appended.
func permalinkPath(permalink string) string {
	for len(permalink) > 1 && permalink[len(permalink)-1] == '/' {
		permalink = permalink[:len(permalink)-1]
	}
	return permalink
}
