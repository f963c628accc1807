package msglist

import (
	"context"
	"fmt"
	"time"

	"git.sr.ht/~rjarry/msglist/lib/hide"
	"git.sr.ht/~rjarry/msglist/lib/log"
	"git.sr.ht/~rjarry/msglist/lib/regen"
	"git.sr.ht/~rjarry/msglist/lib/sort"
	"git.sr.ht/~rjarry/msglist/lib/threading"
	"git.sr.ht/~rjarry/msglist/models"
)

const (
	AlgorithmJWZ        = "jwz"
	AlgorithmReferences = "references"
)

// compute runs on the scheduler worker. It only reads req and the store.
func compute(ctx context.Context, req *regen.Request) (*regen.Target, error) {
	start := time.Now()
	store := req.Store

	var uids []models.UID
	var err error
	if req.Search != "" {
		uids, err = store.Search(ctx, req.Search)
	} else {
		uids, err = store.Uids(ctx)
	}
	if err != nil {
		return nil, err
	}

	hidden := req.Hidden
	var matches []models.UID
	if len(req.HideExprs) > 0 {
		hidden = make(hide.Set, len(req.Hidden))
		for uid := range req.Hidden {
			hidden[uid] = struct{}{}
		}
		for _, expr := range req.HideExprs {
			found, err := store.Search(ctx, expr)
			if err != nil {
				return nil, err
			}
			for _, uid := range found {
				hidden[uid] = struct{}{}
			}
			matches = append(matches, found...)
		}
	}

	records := make([]*models.Record, 0, len(uids))
	byUid := make(map[models.UID]*models.Record, len(uids))
	for _, uid := range uids {
		if _, dup := byUid[uid]; dup {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r, err := store.Record(ctx, uid)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", uid, err)
		}
		if r == nil {
			continue
		}
		byUid[uid] = r
		records = append(records, r)
	}

	sort.Records(records, req.Less)
	order := make([]models.UID, len(records))
	for i, r := range records {
		order[i] = r.Uid
	}
	visible := hide.Visible(order, hidden, req.Window, req.HideDeleted,
		func(uid models.UID) bool {
			return byUid[uid].Flags.Has(models.DeletedFlag)
		})
	shown := make([]*models.Record, len(visible))
	for i, uid := range visible {
		shown[i] = byUid[uid]
	}
	forest := buildForest(shown, req.Threaded, req.Algorithm,
		req.ThreadBySubject, req.Less)

	log.Tracef("regen: %d/%d records visible, built in %s",
		len(shown), len(records), time.Since(start))
	return &regen.Target{Forest: forest, HideMatches: matches}, nil
}

// buildForest sorts records with less (sort.ByDate when nil) and arranges
// them in threads, or in a flat list when threaded is not set.
func buildForest(records []*models.Record, threaded bool, algorithm string,
	bySubject bool, less sort.LessFunc,
) *threading.Forest {
	sort.Records(records, less)
	if !threaded {
		return threading.Flat(records)
	}
	var parentOf threading.ParentFunc
	switch algorithm {
	case AlgorithmReferences:
		parentOf = threading.ReferenceParents(records)
	default:
		parentOf = threading.JWZParents(records, bySubject)
	}
	forest, _ := threading.BuildForest(records, parentOf, less)
	return forest
}
