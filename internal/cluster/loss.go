package cluster

import (
	"sort"

	"github.com/rankpulse/diagnose-cli/internal/model"
)

// Counts holds baseline and current click totals for one cluster, plus the
// number of distinct pages that contributed.
type Counts struct {
	Baseline float64
	Current  float64
	Pages    int
}

// AnalyzeLoss turns per-cluster click counts into ClusterLoss rows. Only
// clusters with positive loss get a row; loss shares sum to at most 1.0. A
// cluster is marked dominant when its share meets dominantShare.
func AnalyzeLoss(runID string, byCluster map[string]Counts, dominantShare float64) []model.ClusterLoss {
	var total float64
	for _, c := range byCluster {
		if loss := c.Baseline - c.Current; loss > 0 {
			total += loss
		}
	}
	if total <= 0 {
		return nil
	}

	losses := make([]model.ClusterLoss, 0, len(byCluster))
	for name, c := range byCluster {
		loss := c.Baseline - c.Current
		if loss <= 0 {
			continue
		}
		share := loss / total
		losses = append(losses, model.ClusterLoss{
			RunID:          runID,
			Cluster:        name,
			BaselineClicks: c.Baseline,
			CurrentClicks:  c.Current,
			Loss:           loss,
			LossShare:      share,
			Dominant:       share >= dominantShare,
			Pages:          c.Pages,
		})
	}

	// Largest loss first; tie-break on name for deterministic output.
	sort.Slice(losses, func(i, j int) bool {
		if losses[i].Loss != losses[j].Loss {
			return losses[i].Loss > losses[j].Loss
		}
		return losses[i].Cluster < losses[j].Cluster
	})
	return losses
}

// Dominant returns the dominant cluster loss, if any.
func Dominant(losses []model.ClusterLoss) (model.ClusterLoss, bool) {
	for _, l := range losses {
		if l.Dominant {
			return l, true
		}
	}
	return model.ClusterLoss{}, false
}
