package track

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/google/uuid"
	"github.com/zsiec/asdcore/internal/asderrors"
	"github.com/zsiec/asdcore/internal/assign"
	"github.com/zsiec/asdcore/internal/geom"
)

// NameLookup resolves a track's embedding against a small pre-registered
// face gallery, returning a name if the nearest match is within the
// gallery's acceptance threshold (spec.md §4.1 step 4: "cosine distance <
// 0.5").
type NameLookup func(embedding []float64) (name string, ok bool)

// TrackState is the immutable, per-frame snapshot of a Track handed back to
// callers (spec.md §2: "out as a set of per-frame TrackStates").
type TrackState struct {
	ID         uuid.UUID
	Name       string
	Status     Status
	BoxImage   geom.Box
	Confidence float64
	Embedding  []float64
	Costs      Costs
}

// Tracker associates detections to persistent tracks using cascaded
// motion/appearance gating, a teleport pass, and the RLAP global assignment
// solver (spec.md §4.1).
type Tracker struct {
	cfg      Config
	log      *slog.Logger
	detector FaceDetector
	embedder FaceEmbedder
	gallery  NameLookup

	tracks map[uuid.UUID]*Track

	// embeddingAge tracks frames since each track's embedding was last
	// refreshed; a track "requires an embedding refresh" once this reaches
	// IterationsPerEmbeddingUpdate (spec.md §4.1 step b).
	embeddingAge map[uuid.UUID]int
}

// New creates a Tracker. detector and embedder are the external black-box
// collaborators (spec.md §6); gallery may be nil (no naming performed).
func New(cfg Config, detector FaceDetector, embedder FaceEmbedder, gallery NameLookup, log *slog.Logger) *Tracker {
	if log == nil {
		log = slog.Default()
	}
	return &Tracker{
		cfg:          cfg,
		log:          log.With("component", "tracker"),
		detector:     detector,
		embedder:     embedder,
		gallery:      gallery,
		tracks:       make(map[uuid.UUID]*Track),
		embeddingAge: make(map[uuid.UUID]int),
	}
}

// Tracks exposes the live track set for callers that need direct access
// (e.g. the engine pairs VisualSpeakers to tracks by ID).
func (t *Tracker) Tracks() map[uuid.UUID]*Track {
	return t.tracks
}

// candidate is a gated (track, detection) pair carried through the cascade.
type candidate struct {
	trackID  uuid.UUID
	detIdx   int
	iou      float64
	confCost float64
	ocmCost  float64
	appCost  float64
	hasApp   bool
}

// Update runs one tracking frame: predicts all live tracks, requests
// detections from the external detector, runs the cascaded assignment, and
// applies hit/miss results. It returns a snapshot of every track still
// live (Pending or Active) after this frame.
func (t *Tracker) Update(pixelBuffer []byte, width, height int, xf *geom.CameraCoordinateTransformer) (map[uuid.UUID]TrackState, error) {
	for _, tr := range t.tracks {
		if tr.Status != StatusTerminated {
			tr.Predict(xf)
		}
	}

	predictions, err := t.detector.Detect(pixelBuffer, width, height)
	if err != nil {
		return nil, fmt.Errorf("tracker: detect: %w", err)
	}

	detections := make([]Detection, len(predictions))
	detPtrs := make([]*Detection, len(predictions))
	for i, p := range predictions {
		detections[i] = Detection{
			ID:         uuid.New(),
			BoxImage:   p.BoxImage,
			BoxKF:      xf.ToKF(p.BoxImage),
			Confidence: p.Confidence,
			Landmarks:  p.Landmarks,
			Attitude:   p.Attitude,
			IsFullFace: p.IsFullFace,
		}
		detPtrs[i] = &detections[i]
	}

	var activeIDs, pendingIDs []uuid.UUID
	for id, tr := range t.tracks {
		switch tr.Status {
		case StatusActive:
			activeIDs = append(activeIDs, id)
		case StatusPending:
			pendingIDs = append(pendingIDs, id)
		}
	}

	assignedTrack := make(map[uuid.UUID]bool)
	assignedDet := make(map[int]bool)
	hits := make(map[uuid.UUID]int) // trackID -> detection index

	t.runCascade(activeIDs, detections, detPtrs, assignedTrack, assignedDet, hits, true, pixelBuffer, width, height)
	t.runCascade(pendingIDs, detections, detPtrs, assignedTrack, assignedDet, hits, false, pixelBuffer, width, height)

	for id, tr := range t.tracks {
		if tr.Status == StatusTerminated {
			continue
		}
		if detIdx, ok := hits[id]; ok {
			cfg := HitConfig{
				ConfirmationThreshold:        t.cfg.ConfirmationThreshold,
				EmbeddingAlpha:               t.cfg.EmbeddingAlpha,
				EmbeddingConfidenceThreshold: t.cfg.EmbeddingConfidenceThreshold,
				NameLookup:                   t.gallery,
			}
			tr.RegisterHit(detections[detIdx], tr.LastCosts, cfg)
			t.embeddingAge[id] = 0
		} else {
			t.embeddingAge[id]++
			if tr.RegisterMiss(t.cfg.DeactivationThreshold, t.cfg.VelocityDamping, t.cfg.GrowthDamping) {
				t.log.Debug("track terminated", "track", id, "status", tr.Status)
			}
		}
	}

	for id, tr := range t.tracks {
		if tr.Status == StatusTerminated {
			delete(t.tracks, id)
			delete(t.embeddingAge, id)
		}
	}

	var unassignedUnembedded []*Detection
	for i := range detections {
		if !assignedDet[i] && !detections[i].HasEmbedding() {
			unassignedUnembedded = append(unassignedUnembedded, detPtrs[i])
		}
	}
	if len(unassignedUnembedded) > 0 && t.embedder != nil {
		if err := t.embedder.Embed(pixelBuffer, width, height, unassignedUnembedded); err != nil {
			t.log.Warn("embedder failed for unmatched detections", "error", err)
		}
	}

	for i, det := range detections {
		if assignedDet[i] {
			continue
		}
		if !det.HasEmbedding() {
			err := asderrors.New(asderrors.MissingEmbedding, "tracker")
			t.log.Debug("dropping unmatched detection without embedding", "detection", det.ID, "error", err)
			continue
		}
		id := uuid.New()
		t.tracks[id] = NewTrack(id, det, t.cfg.MaxAppearanceCost, t.cfg.AppearanceCostVariance, t.cfg.AppearanceCostMeasurementVariance)
		t.embeddingAge[id] = 0
	}

	out := make(map[uuid.UUID]TrackState, len(t.tracks))
	for id, tr := range t.tracks {
		out[id] = TrackState{
			ID:         id,
			Name:       tr.Name,
			Status:     tr.Status,
			BoxImage:   xf.ToImage(tr.LastBox),
			Confidence: tr.ExpectedConfidence,
			Embedding:  tr.Embedding,
			Costs:      tr.LastCosts,
		}
	}
	return out, nil
}

// runCascade performs steps a-e (active=true) or step f (active=false, a
// single motion+appearance gate followed by RLAP, no teleport pass since
// pending tracks have not yet accrued enough history for rapid-motion
// recovery to be meaningful) of spec.md §4.1 over the given track IDs.
// Committed pairs are recorded into hits/assignedTrack/assignedDet.
func (t *Tracker) runCascade(
	trackIDs []uuid.UUID,
	detections []Detection,
	detPtrs []*Detection,
	assignedTrack map[uuid.UUID]bool,
	assignedDet map[int]bool,
	hits map[uuid.UUID]int,
	active bool,
	pixelBuffer []byte,
	width, height int,
) {
	remainingTracks := make([]uuid.UUID, 0, len(trackIDs))
	for _, id := range trackIDs {
		if !assignedTrack[id] {
			remainingTracks = append(remainingTracks, id)
		}
	}
	remainingDets := make([]int, 0, len(detections))
	for i := range detections {
		if !assignedDet[i] {
			remainingDets = append(remainingDets, i)
		}
	}
	if len(remainingTracks) == 0 || len(remainingDets) == 0 {
		return
	}

	candidates := t.motionGate(remainingTracks, remainingDets, detections)

	commit := func(c candidate) {
		assignedTrack[c.trackID] = true
		assignedDet[c.detIdx] = true
		hits[c.trackID] = c.detIdx
		t.tracks[c.trackID].LastCosts = Costs{
			IoU: c.iou, Appearance: c.appCost, OCM: c.ocmCost, Confidence: c.confCost,
		}
	}

	candidates = t.greedyUniqueCommit(candidates, assignedTrack, assignedDet, commit, func(trackID uuid.UUID) bool {
		return t.embeddingAge[trackID] < t.cfg.IterationsPerEmbeddingUpdate
	})

	t.embedCandidates(candidates, detPtrs, pixelBuffer, width, height)
	candidates = t.attachAppearance(candidates, trackIDs, detections)
	candidates = filterCandidates(candidates, func(c candidate) bool {
		return c.hasApp && c.appCost <= t.cfg.MaxAppearanceCost
	})

	candidates = t.greedyUniqueCommit(candidates, assignedTrack, assignedDet, commit, func(uuid.UUID) bool { return true })

	remainingTracks = filterIDs(remainingTracks, assignedTrack)
	remainingDets = filterInts(remainingDets, assignedDet)
	if len(remainingTracks) > 0 && len(remainingDets) > 0 {
		t.solveRLAP(remainingTracks, remainingDets, detections, commit)
	}

	if active {
		remainingTracks = filterIDs(remainingTracks, assignedTrack)
		remainingDets = filterInts(remainingDets, assignedDet)
		t.teleportPass(remainingTracks, remainingDets, detections, commit)
	}
}

// motionGate computes IoU/confidence/OCM costs for every (track,
// detection) pair whose KF-space IoU meets MinIoU (spec.md §4.1 step a).
func (t *Tracker) motionGate(trackIDs []uuid.UUID, detIdxs []int, detections []Detection) []candidate {
	var out []candidate
	for _, id := range trackIDs {
		tr := t.tracks[id]
		for _, di := range detIdxs {
			det := detections[di]
			iou := geom.IoU(tr.LastBox, det.BoxKF)
			if iou < t.cfg.MinIoU {
				continue
			}
			confCost := math.Abs(tr.ExpectedConfidence - det.Confidence)
			theta := math.Atan2(det.BoxKF.Y-tr.LastBox.Y, det.BoxKF.X-tr.LastBox.X)
			ocmCost := math.Abs(geom.Wrap(tr.IntentAngle() - theta))
			out = append(out, candidate{trackID: id, detIdx: di, iou: iou, confCost: confCost, ocmCost: ocmCost})
		}
	}
	return out
}

// greedyUniqueCommit commits any candidate pair that is the sole remaining
// candidate for both its track and its detection, subject to the supplied
// track predicate (used to exclude tracks requiring an embedding refresh on
// the first pass, per spec.md §4.1 step b).
func (t *Tracker) greedyUniqueCommit(
	candidates []candidate,
	assignedTrack map[uuid.UUID]bool,
	assignedDet map[int]bool,
	commit func(candidate),
	trackEligible func(uuid.UUID) bool,
) []candidate {
	trackCount := map[uuid.UUID]int{}
	detCount := map[int]int{}
	for _, c := range candidates {
		trackCount[c.trackID]++
		detCount[c.detIdx]++
	}

	var remaining []candidate
	for _, c := range candidates {
		if assignedTrack[c.trackID] || assignedDet[c.detIdx] {
			continue
		}
		if trackCount[c.trackID] == 1 && detCount[c.detIdx] == 1 && trackEligible(c.trackID) {
			commit(c)
			continue
		}
		remaining = append(remaining, c)
	}
	return remaining
}

// embedCandidates lazily requests embeddings for any detection still
// involved in a remaining candidate pair that doesn't already have one
// (spec.md §4.1 step c: "Embed remaining candidate detections").
func (t *Tracker) embedCandidates(candidates []candidate, detPtrs []*Detection, pixelBuffer []byte, width, height int) {
	var need []*Detection
	seen := map[int]bool{}
	for _, c := range candidates {
		if seen[c.detIdx] {
			continue
		}
		seen[c.detIdx] = true
		if !detPtrs[c.detIdx].HasEmbedding() {
			need = append(need, detPtrs[c.detIdx])
		}
	}
	if len(need) == 0 || t.embedder == nil {
		return
	}
	if err := t.embedder.Embed(pixelBuffer, width, height, need); err != nil {
		t.log.Warn("embedder failed for candidate detections", "error", err)
	}
}

// attachAppearance fills in the cosine-distance appearance cost for every
// candidate whose detection now has an embedding.
func (t *Tracker) attachAppearance(candidates []candidate, _ []uuid.UUID, detections []Detection) []candidate {
	out := make([]candidate, len(candidates))
	for i, c := range candidates {
		out[i] = c
		det := detections[c.detIdx]
		tr := t.tracks[c.trackID]
		if det.HasEmbedding() {
			out[i].appCost = cosineDistance(tr.Embedding, det.Embedding)
			out[i].hasApp = true
		}
	}
	return out
}

func filterCandidates(in []candidate, keep func(candidate) bool) []candidate {
	var out []candidate
	for _, c := range in {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}

func filterIDs(in []uuid.UUID, assigned map[uuid.UUID]bool) []uuid.UUID {
	var out []uuid.UUID
	for _, id := range in {
		if !assigned[id] {
			out = append(out, id)
		}
	}
	return out
}

func filterInts(in []int, assigned map[int]bool) []int {
	var out []int
	for _, i := range in {
		if !assigned[i] {
			out = append(out, i)
		}
	}
	return out
}

// solveRLAP builds the dense tracks x detections cost matrix described in
// spec.md §4.1 step d and commits every pair the solver returns.
func (t *Tracker) solveRLAP(trackIDs []uuid.UUID, detIdxs []int, detections []Detection, commit func(candidate)) {
	rows, cols := len(trackIDs), len(detIdxs)
	cost := make([]float64, rows*cols)

	cells := make([][]candidate, rows)
	for i, id := range trackIDs {
		tr := t.tracks[id]
		cells[i] = make([]candidate, cols)
		for j, di := range detIdxs {
			det := detections[di]
			iou := geom.IoU(tr.LastBox, det.BoxKF)
			confCost := math.Abs(tr.ExpectedConfidence - det.Confidence)
			theta := math.Atan2(det.BoxKF.Y-tr.LastBox.Y, det.BoxKF.X-tr.LastBox.X)
			ocmCost := math.Abs(geom.Wrap(tr.IntentAngle() - theta))

			var appCost float64
			hasApp := det.HasEmbedding()
			if hasApp {
				appCost = cosineDistance(tr.Embedding, det.Embedding)
			}

			total := -iou + t.cfg.AppearanceWeight*appCost + t.cfg.OCMWeight*ocmCost + t.cfg.ConfidenceWeight*confCost
			cells[i][j] = candidate{trackID: id, detIdx: di, iou: iou, confCost: confCost, ocmCost: ocmCost, appCost: appCost, hasApp: hasApp}
			cost[i*cols+j] = total
		}
	}

	rowMatch, _, code, err := assign.Solve(cost, rows, cols)
	if err != nil {
		t.log.Warn("rlap solver warning", "code", code, "error", err)
	}
	for i, j := range rowMatch {
		if j < 0 {
			continue
		}
		commit(cells[i][j])
	}
}

// teleportPass catches rapid motion that defeated the motion gate entirely:
// still-unassigned active tracks are matched against remaining embedded
// detections using appearance alone, under a more permissive threshold than
// the main appearance gate (spec.md §4.1 step e).
func (t *Tracker) teleportPass(trackIDs []uuid.UUID, detIdxs []int, detections []Detection, commit func(candidate)) {
	usedDet := map[int]bool{}
	for _, id := range trackIDs {
		tr := t.tracks[id]
		bestIdx := -1
		bestCost := math.MaxFloat64
		for _, di := range detIdxs {
			if usedDet[di] {
				continue
			}
			det := detections[di]
			if !det.HasEmbedding() {
				continue
			}
			cost := cosineDistance(tr.Embedding, det.Embedding)
			if cost < t.cfg.MaxTeleportCost && cost < bestCost {
				bestCost = cost
				bestIdx = di
			}
		}
		if bestIdx >= 0 {
			usedDet[bestIdx] = true
			commit(candidate{trackID: id, detIdx: bestIdx, appCost: bestCost, hasApp: true})
		}
	}
}

// cosineDistance returns 1 - cosine similarity between two equal-length
// vectors, treating either as zero-similarity if empty.
func cosineDistance(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 1
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
