package audit

import (
	"context"
	"encoding/json"
	"errors"
	"sort"

	"github.com/redis/go-redis/v9"
)

// ErrUnavailable wraps Redis transport failures.
var ErrUnavailable = errors.New("audit: store unavailable")

const defaultRetention = 10_000

// Store keeps the trail in one Redis list, newest entry at the head. Writes
// trim the tail so the list never exceeds the retention cap.
type Store struct {
	rdb       redis.UniversalClient
	key       string
	retention int
}

func NewStore(rdb redis.UniversalClient, prefix string, retention int) *Store {
	if retention <= 0 {
		retention = defaultRetention
	}
	return &Store{rdb: rdb, key: prefix + ":log", retention: retention}
}

// Append writes one entry and enforces retention. Entries are JSON so the
// trail stays inspectable with plain redis-cli.
func (st *Store) Append(ctx context.Context, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}

	pipe := st.rdb.TxPipeline()
	pipe.LPush(ctx, st.key, data)
	pipe.LTrim(ctx, st.key, 0, int64(st.retention-1))
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Join(ErrUnavailable, err)
	}
	return nil
}

// all loads the full retained trail, newest first. The retention cap bounds
// the read; filtering happens in process.
func (st *Store) all(ctx context.Context) ([]Entry, error) {
	raw, err := st.rdb.LRange(ctx, st.key, 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, errors.Join(ErrUnavailable, err)
	}

	entries := make([]Entry, 0, len(raw))
	for _, item := range raw {
		var e Entry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			// A corrupted record must not poison the whole trail.
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Query returns one page of matching entries, newest first. Page numbers are
// 1-based; out-of-range pages return an empty (not nil) slice with the
// correct totals.
func (st *Store) Query(ctx context.Context, f Filters, page, pageSize int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 50
	}

	entries, err := st.all(ctx)
	if err != nil {
		return nil, err
	}

	matched := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.matches(f) {
			matched = append(matched, e)
		}
	}

	total := len(matched)
	totalPages := (total + pageSize - 1) / pageSize

	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	return &Page{
		Logs:       matched[start:end],
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}

// Statistics aggregates the retained trail: counts by action, resource type
// and severity, the ten most recent entries, and the five most active actors.
func (st *Store) Statistics(ctx context.Context) (*Stats, error) {
	entries, err := st.all(ctx)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		TotalLogs:      len(entries),
		ByAction:       make(map[Action]int),
		ByResourceType: make(map[ResourceType]int),
		BySeverity:     make(map[Severity]int),
	}

	actorCounts := make(map[string]*ActorCount)
	for _, e := range entries {
		stats.ByAction[e.Action]++
		stats.ByResourceType[e.ResourceType]++
		stats.BySeverity[e.Severity]++

		ac, ok := actorCounts[e.ActorID]
		if !ok {
			ac = &ActorCount{ActorID: e.ActorID, ActorEmail: e.ActorEmail}
			actorCounts[e.ActorID] = ac
		}
		ac.Count++
	}

	recent := 10
	if len(entries) < recent {
		recent = len(entries)
	}
	stats.RecentActivity = entries[:recent]

	actors := make([]ActorCount, 0, len(actorCounts))
	for _, ac := range actorCounts {
		actors = append(actors, *ac)
	}
	sort.Slice(actors, func(i, j int) bool {
		if actors[i].Count != actors[j].Count {
			return actors[i].Count > actors[j].Count
		}
		return actors[i].ActorID < actors[j].ActorID
	})
	if len(actors) > 5 {
		actors = actors[:5]
	}
	stats.TopActors = actors

	return stats, nil
}
