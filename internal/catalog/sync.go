package catalog

import (
	"context"
	"log"
	"sort"
	"strings"
	"time"

	"upscaled/pkg/types"
)

// AdmitOptions bound which remote models enter the local store.
type AdmitOptions struct {
	// MaxScale excludes models above this factor; 0 means no limit.
	MaxScale int
	// Minimum color channel counts a model must consume and produce.
	MinInputChannels  int
	MinOutputChannels int
}

// Snapshot is one admitted, immutable view of the remote catalog.
type Snapshot struct {
	Revision  string
	FetchedAt time.Time
	Models    map[string]types.Descriptor
}

// Synchronizer drives catalog syncs: fetch a remote snapshot, compute the
// per-model plan against the local store, apply it atomically.
type Synchronizer struct {
	store  *Store
	client *Client
	opts   AdmitOptions
}

// NewSynchronizer wires a synchronizer to its store and remote client.
func NewSynchronizer(store *Store, client *Client, opts AdmitOptions) *Synchronizer {
	return &Synchronizer{store: store, client: client, opts: opts}
}

// Sync runs one synchronization pass. Any transport or decode failure
// returns a catalog-unavailable error and leaves the store untouched. A
// remote 304 yields an all-skip plan without touching any descriptor.
func (s *Synchronizer) Sync(ctx context.Context) (types.SyncPlan, error) {
	revision, _ := s.store.Revision()
	docs, newRev, notModified, err := s.client.fetchDocs(ctx, revision)
	if err != nil {
		return types.SyncPlan{}, ErrCatalogUnavailable(err)
	}
	if notModified {
		plan := s.store.notModifiedPlan(revision)
		if err := s.store.touchSync(time.Now()); err != nil {
			return types.SyncPlan{}, err
		}
		log.Printf("catalog event=sync_not_modified revision=%q models=%d", revision, s.store.Len())
		return plan, nil
	}
	snap := admit(docs, newRev, time.Now(), s.opts)
	plan := s.store.planAgainst(snap)
	if err := s.store.applyPlan(snap, plan); err != nil {
		return types.SyncPlan{}, err
	}
	log.Printf("catalog event=sync_applied revision=%q add=%d update=%d skip=%d stale=%d",
		newRev, plan.Count(types.SyncAdd), plan.Count(types.SyncUpdate),
		plan.Count(types.SyncSkip), plan.Count(types.SyncRemoveStale))
	return plan, nil
}

// admit filters the raw remote documents down to descriptors this service
// can manage: image-input pytorch-compatible architectures, sufficient
// channel counts, scale within bounds, and a usable weight resource.
func admit(docs remoteDocs, revision string, now time.Time, opts AdmitOptions) Snapshot {
	supported := make(map[string]bool, len(docs.architectures))
	for id, a := range docs.architectures {
		if a.Input == "image" && containsString(a.CompatiblePlatforms, "pytorch") {
			supported[id] = true
		}
	}
	allowed := allowedTags(docs.categories)
	models := make(map[string]types.Descriptor, len(docs.models))
	for id, m := range docs.models {
		if !supported[m.Architecture] {
			continue
		}
		if m.InputChannels < opts.MinInputChannels || m.OutputChannels < opts.MinOutputChannels {
			continue
		}
		if m.Scale < 1 || (opts.MaxScale > 0 && m.Scale > opts.MaxScale) {
			continue
		}
		res, ok := pickResource(m.Resources)
		if !ok {
			continue
		}
		d := types.Descriptor{
			ID:             id,
			Name:           m.Name,
			Architecture:   m.Architecture,
			Scale:          m.Scale,
			InputChannels:  m.InputChannels,
			OutputChannels: m.OutputChannels,
			FileName:       id + ".pth",
			Checksum:       res.sha256,
			SourceURL:      res.directURL,
			SizeBytes:      res.size,
			Tags:           m.Tags,
			LastSynced:     now,
		}
		d.DisplayName = renderDisplayName(d.Scale, d.Name, tagNames(m.Tags, docs.tags, allowed))
		if !d.HasSource() {
			// Admitted so the weights can still arrive by hand and be
			// adopted by audit, but fetch will refuse it.
			d.Unusable = true
			d.UnusableReason = "no direct download source"
		}
		models[id] = d
	}
	return Snapshot{Revision: revision, FetchedAt: now, Models: models}
}

type pickedResource struct {
	sha256    string
	size      int64
	directURL string
}

// pickResource selects the weight resource for a model: pytorch .pth
// resources only, the first one offering a direct .pth download preferred,
// otherwise the first supported resource with its URL left empty.
func pickResource(resources []remoteResource) (pickedResource, bool) {
	var fallback *remoteResource
	for i := range resources {
		r := &resources[i]
		if r.Type != "pth" || r.Platform != "pytorch" || r.SHA256 == "" {
			continue
		}
		for _, u := range r.URLs {
			if strings.HasSuffix(u, ".pth") {
				return pickedResource{sha256: r.SHA256, size: r.Size, directURL: u}, true
			}
		}
		if fallback == nil {
			fallback = r
		}
	}
	if fallback == nil {
		return pickedResource{}, false
	}
	return pickedResource{sha256: fallback.SHA256, size: fallback.Size}, true
}

// allowedTags unions the subject and purpose categories. A nil result
// means the category document named neither, in which case every tag is
// allowed.
func allowedTags(categories map[string]remoteTagCategory) map[string]bool {
	subject, okS := categories["subject"]
	purpose, okP := categories["purpose"]
	if !okS && !okP {
		return nil
	}
	allowed := make(map[string]bool, len(subject.Tags)+len(purpose.Tags))
	for _, t := range subject.Tags {
		allowed[t] = true
	}
	for _, t := range purpose.Tags {
		allowed[t] = true
	}
	return allowed
}

// tagNames resolves a model's tag ids to display names, keeping the
// model's tag order and dropping tags implied by another present tag.
func tagNames(modelTags []string, tags map[string]remoteTag, allowed map[string]bool) []string {
	found := make([]string, 0, len(modelTags))
	names := make(map[string]string, len(modelTags))
	implied := make(map[string]bool)
	for _, t := range modelTags {
		if allowed != nil && !allowed[t] {
			continue
		}
		det, ok := tags[t]
		if !ok {
			continue
		}
		found = append(found, t)
		names[t] = det.Name
		for _, imp := range det.Implies {
			implied[imp] = true
		}
	}
	out := make([]string, 0, len(found))
	for _, t := range found {
		if implied[t] {
			continue
		}
		out = append(out, names[t])
	}
	return out
}

func containsString(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}

// planAgainst computes the sync plan for a snapshot without mutating the
// store. User-defined models are never added, updated or removed by sync.
func (s *Store) planAgainst(snap Snapshot) types.SyncPlan {
	s.mu.RLock()
	defer s.mu.RUnlock()
	plan := types.SyncPlan{Revision: snap.Revision}
	for id := range snap.Models {
		local, ok := s.models[id]
		switch {
		case !ok:
			plan.Decisions = append(plan.Decisions, types.SyncDecision{
				ModelID: id, Action: types.SyncAdd,
			})
		case local.UserDefined:
			plan.Decisions = append(plan.Decisions, types.SyncDecision{
				ModelID: id, Action: types.SyncSkip, Reason: "user defined",
			})
		case local.Checksum != snap.Models[id].Checksum:
			plan.Decisions = append(plan.Decisions, types.SyncDecision{
				ModelID: id, Action: types.SyncUpdate, Reason: "checksum changed",
			})
		default:
			plan.Decisions = append(plan.Decisions, types.SyncDecision{
				ModelID: id, Action: types.SyncSkip,
			})
		}
	}
	for id, local := range s.models {
		if _, ok := snap.Models[id]; ok {
			continue
		}
		switch {
		case local.UserDefined:
			plan.Decisions = append(plan.Decisions, types.SyncDecision{
				ModelID: id, Action: types.SyncSkip, Reason: "user defined",
			})
		case local.Stale:
			plan.Decisions = append(plan.Decisions, types.SyncDecision{
				ModelID: id, Action: types.SyncSkip, Reason: "already stale",
			})
		default:
			plan.Decisions = append(plan.Decisions, types.SyncDecision{
				ModelID: id, Action: types.SyncRemoveStale, Reason: "absent from remote",
			})
		}
	}
	sort.Slice(plan.Decisions, func(i, j int) bool {
		return plan.Decisions[i].ModelID < plan.Decisions[j].ModelID
	})
	return plan
}

// applyPlan applies a computed plan under one lock and one registry write:
// either the whole snapshot revision lands or nothing changes.
//
// Adds install the remote descriptor as-is. Updates replace the descriptor
// and drop its file identity, because the remote weights changed. Skips of
// models still present remotely refresh mutable metadata (name, display
// name, tags, source, size) while keeping the local file identity; this
// also clears a stale mark when a model reappears. Remove-stale only marks
// the descriptor; weight files are never deleted here.
func (s *Store) applyPlan(snap Snapshot, plan types.SyncPlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make(map[string]types.Descriptor, len(s.models)+len(snap.Models))
	for id, d := range s.models {
		next[id] = d
	}
	for _, dec := range plan.Decisions {
		remote, hasRemote := snap.Models[dec.ModelID]
		local := next[dec.ModelID]
		switch dec.Action {
		case types.SyncAdd:
			next[dec.ModelID] = remote
		case types.SyncUpdate:
			next[dec.ModelID] = remote
		case types.SyncSkip:
			if !hasRemote || local.UserDefined {
				continue
			}
			merged := remote
			merged.LocalPath = local.LocalPath
			if local.LocalPath != "" {
				merged.SizeBytes = local.SizeBytes
				merged.Unusable = false
				merged.UnusableReason = ""
			}
			next[dec.ModelID] = merged
		case types.SyncRemoveStale:
			local.Stale = true
			next[dec.ModelID] = local
		}
	}
	prevModels, prevRev, prevAt := s.models, s.revision, s.syncedAt
	s.models = next
	s.revision = snap.Revision
	s.syncedAt = snap.FetchedAt
	if err := s.persistLocked(); err != nil {
		s.models, s.revision, s.syncedAt = prevModels, prevRev, prevAt
		return err
	}
	return nil
}

// notModifiedPlan builds the all-skip plan reported for a remote 304.
func (s *Store) notModifiedPlan(revision string) types.SyncPlan {
	s.mu.RLock()
	defer s.mu.RUnlock()
	plan := types.SyncPlan{Revision: revision, NotModified: true}
	ids := make([]string, 0, len(s.models))
	for id := range s.models {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		plan.Decisions = append(plan.Decisions, types.SyncDecision{
			ModelID: id, Action: types.SyncSkip, Reason: "not modified",
		})
	}
	return plan
}

// touchSync records a successful no-change sync.
func (s *Store) touchSync(at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.syncedAt
	s.syncedAt = at
	if err := s.persistLocked(); err != nil {
		s.syncedAt = prev
		return err
	}
	return nil
}
