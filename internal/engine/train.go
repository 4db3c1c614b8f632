package engine

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/vidora/recgraph/internal/driver"
	"github.com/vidora/recgraph/internal/gnn"
	"github.com/vidora/recgraph/internal/graph"
	"github.com/vidora/recgraph/internal/metrics"
	"github.com/vidora/recgraph/internal/vecindex"
)

type TrainOptions struct {
	Epochs    int
	HiddenDim int
	Force     bool
}

func (o TrainOptions) withDefaults(cfg trainDefaults) TrainOptions {
	if o.Epochs <= 0 {
		o.Epochs = cfg.epochs
	}
	if o.HiddenDim <= 0 {
		o.HiddenDim = cfg.hiddenDim
	}
	return o
}

type trainDefaults struct {
	epochs    int
	hiddenDim int
}

type trainRun struct {
	done chan struct{}
	err  error
}

// startTraining begins a training run unless one is already in flight, in
// which case callers coalesce on the existing run. Redundant concurrent
// retrains would otherwise race on the persisted artifacts.
func (e *Engine) startTraining(ctx context.Context, opts TrainOptions) *trainRun {
	e.trainMu.Lock()
	defer e.trainMu.Unlock()

	if e.run != nil {
		return e.run
	}

	run := &trainRun{done: make(chan struct{})}
	e.run = run
	go func() {
		err := e.train(ctx, opts)
		if err != nil {
			metrics.TrainingRuns.WithLabelValues("error").Inc()
			e.log.Error("training run failed", "error", err)
		} else {
			metrics.TrainingRuns.WithLabelValues("ok").Inc()
		}
		run.err = err

		e.trainMu.Lock()
		e.run = nil
		e.trainMu.Unlock()
		close(run.done)
	}()
	return run
}

// Train runs (or joins) a training run and waits for it to finish.
func (e *Engine) Train(ctx context.Context, opts TrainOptions) error {
	run := e.startTraining(ctx, opts)
	select {
	case <-run.done:
		return run.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RequestTraining enqueues a background training run and returns
// immediately. Serving paths use this so a recommendation request never
// blocks on a multi-minute train.
func (e *Engine) RequestTraining(opts TrainOptions) {
	e.startTraining(context.Background(), opts)
}

// EnsureTrained retrains when the staleness detector demands it;
// otherwise, if the vector index is empty, it takes the cheap path and
// rebuilds the index from stored embeddings without retraining.
func (e *Engine) EnsureTrained(ctx context.Context) error {
	needs, err := e.NeedsTraining(ctx)
	if err != nil {
		return err
	}
	if needs {
		return e.Train(ctx, TrainOptions{})
	}

	e.mu.RLock()
	empty := e.index == nil || e.index.Len() == 0
	e.mu.RUnlock()
	if empty {
		return e.RebuildIndex(ctx)
	}
	return nil
}

func (e *Engine) train(ctx context.Context, opts TrainOptions) error {
	opts = opts.withDefaults(trainDefaults{
		epochs:    e.cfg.Training.Epochs,
		hiddenDim: e.cfg.Model.HiddenDim,
	})

	seed := e.cfg.Training.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	runID := uuid.New().String()
	log := e.log.With("run_id", runID)
	log.Info("training started", "epochs", opts.Epochs, "hidden_dim", opts.HiddenDim, "seed", seed)

	snap, err := graph.LoadSnapshot(ctx, e.driver, e.cfg.Model.FeatureDim, rng, log)
	if err != nil {
		return fmt.Errorf("failed to load graph snapshot: %w", err)
	}
	tensors := gnn.FromSnapshot(snap)

	e.mu.RLock()
	model := e.model
	prevEpochs := e.meta.TotalEpochs
	e.mu.RUnlock()

	if opts.Force || model == nil || model.Cfg.HiddenDim != opts.HiddenDim {
		model = gnn.NewModel(gnn.Config{
			HiddenDim:  opts.HiddenDim,
			NumLayers:  e.cfg.Model.NumLayers,
			FeatureDim: e.cfg.Model.FeatureDim,
			Dropout:    e.cfg.Model.Dropout,
		}, rng)
		prevEpochs = 0
	}

	optimizer := gnn.NewAdam(model, e.cfg.Training.LearningRate)

	watchRel := graph.RelationOf(graph.EdgeWatches)
	interactions := snap.Edges[watchRel]
	if limit := e.cfg.Training.InteractionCap; limit > 0 && len(interactions) > limit {
		interactions = interactions[:limit]
	}

	numVideos := snap.NumNodes(graph.NodeVideo)
	for epoch := 0; epoch < opts.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("training cancelled at epoch %d: %w", epoch, err)
		}

		loss, steps, err := e.trainEpoch(ctx, model, optimizer, tensors, interactions, numVideos, rng)
		if err != nil {
			return err
		}
		if (epoch+1)%10 == 0 {
			log.Info("epoch complete", "epoch", epoch+1, "loss", loss, "steps", steps)
		}
	}

	// Evaluation-mode forward pass: dropout disabled, final embeddings
	// for every node type.
	embeddings, _ := model.Forward(tensors, false, nil)
	if err := e.storeEmbeddings(ctx, snap, embeddings); err != nil {
		return err
	}

	meta := Metadata{
		HiddenDim:    model.Cfg.HiddenDim,
		NodeMappings: snap.Index,
		LastTrained:  time.Now().UTC(),
		TotalEpochs:  prevEpochs + opts.Epochs,
		RunID:        runID,
	}

	index, videoIDs, err := e.buildIndexFromStore(ctx, model.Cfg.HiddenDim)
	if err != nil {
		return err
	}

	// Persist before publishing: a failed write aborts the run and leaves
	// both the previous artifacts and the in-memory state untouched.
	if err := e.saveModelArtifacts(model, meta); err != nil {
		return err
	}
	if err := e.saveIndexArtifacts(index, videoIDs); err != nil {
		return err
	}

	e.mu.Lock()
	e.model = model
	e.meta = meta
	e.index = index
	e.videoIDs = videoIDs
	e.mu.Unlock()

	log.Info("training complete", "index_size", index.Len(), "total_epochs", meta.TotalEpochs)
	return nil
}

// trainEpoch runs one pass over the interaction pool: per interaction, a
// full-graph forward pass, the BPR loss on one sampled negative, and one
// optimizer step. A full forward per example is expensive; batching is a
// known performance redesign, not a correctness requirement.
func (e *Engine) trainEpoch(
	ctx context.Context,
	model *gnn.Model,
	optimizer *gnn.Adam,
	tensors *gnn.GraphTensors,
	interactions []graph.Edge,
	numVideos int,
	rng *rand.Rand,
) (float64, int, error) {
	if len(interactions) == 0 || numVideos == 0 {
		return 0, 0, nil
	}

	var totalLoss float64
	steps := 0
	for _, interaction := range interactions {
		if err := ctx.Err(); err != nil {
			return 0, steps, fmt.Errorf("training cancelled mid-epoch: %w", err)
		}

		userIdx := interaction.Src
		posIdx := interaction.Dst
		if userIdx < 0 || userIdx >= len(tensors.X[graph.NodeUser]) || posIdx < 0 || posIdx >= numVideos {
			metrics.SkippedInteractions.Inc()
			continue
		}
		// Uniform negative with no exclusion of already-seen items: cheap
		// and slightly noisy labels.
		negIdx := rng.Intn(numVideos)

		model.ZeroGrad()
		out, cache := model.Forward(tensors, true, rng)

		userEmb := out[graph.NodeUser][userIdx]
		posEmb := out[graph.NodeVideo][posIdx]
		negEmb := out[graph.NodeVideo][negIdx]

		posScore := dot(userEmb, posEmb)
		negScore := dot(userEmb, negEmb)
		diff := float64(posScore - negScore)
		totalLoss += -logSigmoid(diff)

		// d(-logσ(pos−neg))/d(pos−neg) = σ(pos−neg) − 1
		g := float32(sigmoid(diff) - 1)

		seed := gnn.SeedGrad{}
		seed.Add(graph.NodeUser, userIdx, scaledDiff(posEmb, negEmb, g))
		seed.Add(graph.NodeVideo, posIdx, scaled(userEmb, g))
		seed.Add(graph.NodeVideo, negIdx, scaled(userEmb, -g))

		model.Backward(tensors, cache, seed)
		optimizer.Step()
		steps++
	}

	return totalLoss / float64(steps), steps, nil
}

// storeEmbeddings overwrites every node's embedding property, batched per
// node type.
func (e *Engine) storeEmbeddings(ctx context.Context, snap *graph.Snapshot, embeddings map[graph.NodeType][][]float32) error {
	for _, t := range graph.NodeTypes() {
		ids := snap.IDs[t]
		if len(ids) == 0 {
			continue
		}

		rows := make([]any, len(ids))
		for i, id := range ids {
			rows[i] = map[string]any{
				"id":        id,
				"embedding": toFloat64s(embeddings[t][i]),
			}
		}

		_, err := e.driver.ExecuteQuery(ctx, driver.SetEmbeddingsQuery(t.Label(), t.IDField()), map[string]interface{}{
			"rows": rows,
		})
		if err != nil {
			return fmt.Errorf("failed to store %s embeddings: %w", t, err)
		}
	}
	return nil
}

// buildIndexFromStore reads every video with a non-null embedding (id
// order), L2-normalizes, and builds a fresh index with its aligned id
// list.
func (e *Engine) buildIndexFromStore(ctx context.Context, dim int) (*vecindex.Flat, []string, error) {
	result, err := e.driver.ExecuteQuery(ctx, driver.VideoEmbeddingsQuery, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read video embeddings: %w", err)
	}

	index := vecindex.New(dim)
	var videoIDs []string
	for _, rec := range result.Records {
		id, ok := recordString(rec, "video_id")
		if !ok {
			continue
		}
		embVal, _ := rec.Get("embedding")
		emb := floatSlice(embVal)
		if len(emb) != dim {
			e.log.Warn("skipping video with malformed embedding", "video_id", id, "len", len(emb))
			continue
		}
		vecindex.Normalize(emb)
		if err := index.Add(emb); err != nil {
			return nil, nil, err
		}
		videoIDs = append(videoIDs, id)
	}

	metrics.IndexRebuilds.Inc()
	return index, videoIDs, nil
}

// RebuildIndex rebuilds the vector index from stored embeddings and swaps
// it in atomically, without retraining.
func (e *Engine) RebuildIndex(ctx context.Context) error {
	e.mu.RLock()
	dim := e.meta.HiddenDim
	e.mu.RUnlock()
	if dim == 0 {
		dim = e.cfg.Model.HiddenDim
	}

	index, videoIDs, err := e.buildIndexFromStore(ctx, dim)
	if err != nil {
		return err
	}
	if err := e.saveIndexArtifacts(index, videoIDs); err != nil {
		return err
	}

	e.mu.Lock()
	e.index = index
	e.videoIDs = videoIDs
	e.mu.Unlock()

	e.log.Info("vector index rebuilt", "size", index.Len(), "dim", dim)
	return nil
}

func dot(a, b []float32) float32 {
	var sum float32
	for i, v := range a {
		sum += v * b[i]
	}
	return sum
}

func scaled(v []float32, s float32) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x * s
	}
	return out
}

func scaledDiff(a, b []float32, s float32) []float32 {
	out := make([]float32, len(a))
	for i := range a {
		out[i] = (a[i] - b[i]) * s
	}
	return out
}

func toFloat64s(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

// logSigmoid computes log(σ(x)) without overflow for large |x|.
func logSigmoid(x float64) float64 {
	if x >= 0 {
		return -math.Log1p(math.Exp(-x))
	}
	return x - math.Log1p(math.Exp(x))
}
