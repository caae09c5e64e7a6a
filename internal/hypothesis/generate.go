package hypothesis

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/rankpulse/diagnose-cli/internal/cluster"
	"github.com/rankpulse/diagnose-cli/internal/config"
	"github.com/rankpulse/diagnose-cli/internal/metrics"
	"github.com/rankpulse/diagnose-cli/internal/model"
)

// Input carries everything the gatherers evaluate. All fields are read-only.
type Input struct {
	Deltas        model.Deltas
	Anomalies     []model.Anomaly
	ClusterLosses []model.ClusterLoss
	Checks        []metrics.PageCheck
	Rules         cluster.RuleSet
	Cfg           config.DiagnosisConfig
}

// checkStats summarizes the latest technical check per URL.
type checkStats struct {
	total            int
	robotsBlocked    int
	noindex          int
	canonicalOff     int
	httpErrors       int
	redirected       int
	thin             int
	noStructured     int
	orphaned         int
	noTag            int
	blockedByCluster map[string]int
	exampleBlocked   string
	exampleCanonical string
	exampleError     string
	exampleThin      string
	exampleNoTag     string
}

func summarizeChecks(in Input) checkStats {
	// Keep only the newest check per URL.
	latest := make(map[string]metrics.PageCheck)
	for _, c := range in.Checks {
		if prev, ok := latest[c.URL]; !ok || c.Date.After(prev.Date) {
			latest[c.URL] = c
		}
	}

	urls := make([]string, 0, len(latest))
	for u := range latest {
		urls = append(urls, u)
	}
	sort.Strings(urls)

	st := checkStats{blockedByCluster: make(map[string]int)}
	for _, u := range urls {
		c := latest[u]
		st.total++
		if c.RobotsDisallowed {
			st.robotsBlocked++
			st.blockedByCluster[in.Rules.Classify(pathOf(c.URL))]++
			if st.exampleBlocked == "" {
				st.exampleBlocked = c.URL
			}
		}
		if strings.Contains(strings.ToLower(c.MetaRobots), "noindex") {
			st.noindex++
			if st.exampleBlocked == "" {
				st.exampleBlocked = c.URL
			}
		}
		if c.Canonical != "" && c.Canonical != c.URL {
			st.canonicalOff++
			if st.exampleCanonical == "" {
				st.exampleCanonical = c.URL
			}
		}
		if c.HTTPStatus >= 400 {
			st.httpErrors++
			if st.exampleError == "" {
				st.exampleError = c.URL
			}
		}
		if c.RedirectTarget != "" || (c.HTTPStatus >= 300 && c.HTTPStatus < 400) {
			st.redirected++
			if st.exampleError == "" {
				st.exampleError = c.URL
			}
		}
		if c.TextLength > 0 && c.TextLength < in.Cfg.MinTextLength {
			st.thin++
			if st.exampleThin == "" {
				st.exampleThin = c.URL
			}
		}
		if !c.HasStructuredData {
			st.noStructured++
		}
		if c.InternalLinks == 0 {
			st.orphaned++
		}
		if !c.HasAnalyticsTag {
			st.noTag++
			if st.exampleNoTag == "" {
				st.exampleNoTag = c.URL
			}
		}
	}
	return st
}

func pathOf(raw string) string {
	if u, err := url.Parse(raw); err == nil && u.Path != "" {
		return u.Path
	}
	return raw
}

// Generate evaluates the full catalog against the input and returns the
// ranked hypotheses for the run. Purely a function of (input, config): two
// runs over identical inputs produce identical output.
func Generate(runID string, in Input) []model.Hypothesis {
	st := summarizeChecks(in)
	dominant, hasDominant := cluster.Dominant(in.ClusterLosses)

	var out []model.Hypothesis
	for _, entry := range Catalog {
		f := gather(entry.Key, in, st, dominant, hasDominant)
		conf, ok := Score(f)
		if !ok {
			continue
		}
		out = append(out, model.Hypothesis{
			RunID:         runID,
			Key:           entry.Key,
			Confidence:    conf,
			Summary:       summarize(entry, f, conf),
			Evidence:      f.Evidence,
			Disconfirming: f.Disconfirming,
			MissingData:   f.MissingData,
		})
	}

	return Rank(out)
}

// gather dispatches to the per-key evidence logic.
func gather(key model.HypothesisKey, in Input, st checkStats, dominant model.ClusterLoss, hasDominant bool) Finding {
	switch key {
	case model.HypRobotsOrNoindex:
		return gatherRobots(in, st, dominant, hasDominant)
	case model.HypCanonicalMismatch:
		return gatherCanonical(in, st)
	case model.HypThinContentOrSSR:
		return gatherThinContent(in, st)
	case model.HypStructuredData:
		return gatherStructuredData(in, st)
	case model.HypInternalLinking:
		return gatherInternalLinking(in, st, hasDominant)
	case model.HypRedirectOrHTTP:
		return gatherRedirects(in, st)
	case model.HypContentIntent:
		return gatherContentIntent(in)
	case model.HypSERPLayoutCTR:
		return gatherSERPLayout(in)
	case model.HypAlgorithmUpdate:
		return gatherAlgorithmUpdate(in, st, hasDominant)
	case model.HypSeasonality:
		return gatherSeasonality(in, st)
	case model.HypTrackingBroken:
		return gatherTracking(in, st)
	default:
		return Finding{}
	}
}

func gatherRobots(in Input, st checkStats, dominant model.ClusterLoss, hasDominant bool) Finding {
	var f Finding
	if st.total == 0 {
		f.MissingData = append(f.MissingData, "page technical checks for the regression window")
		return f
	}

	if st.robotsBlocked > 0 {
		strength := model.StrengthModerate
		// Blocked pages concentrated in the dominant losing cluster is as
		// direct as crawl evidence gets.
		if hasDominant && st.blockedByCluster[dominant.Cluster] > 0 {
			strength = model.StrengthStrong
		} else if float64(st.robotsBlocked)/float64(st.total) >= 0.2 {
			strength = model.StrengthStrong
		}
		f.Evidence = append(f.Evidence, model.EvidenceBlock{
			Type:      model.EvidenceCheck,
			Statement: fmt.Sprintf("%d of %d checked pages are disallowed by robots.txt (e.g. %s)", st.robotsBlocked, st.total, st.exampleBlocked),
			Data:      map[string]any{"blocked": st.robotsBlocked, "checked": st.total, "example_url": st.exampleBlocked},
			Strength:  strength,
		})
	}
	if st.noindex > 0 {
		f.Evidence = append(f.Evidence, model.EvidenceBlock{
			Type:      model.EvidenceCheck,
			Statement: fmt.Sprintf("%d of %d checked pages carry a noindex meta robots directive", st.noindex, st.total),
			Data:      map[string]any{"noindex": st.noindex, "checked": st.total},
			Strength:  model.StrengthStrong,
		})
	}
	if len(f.Evidence) == 0 {
		return f
	}

	if d := in.Deltas.Search.Impressions; d.Available() && !d.Drop {
		f.Disconfirming = append(f.Disconfirming, model.EvidenceBlock{
			Type:      model.EvidenceMetric,
			Statement: fmt.Sprintf("impressions are stable (%+.1f%%), which a full crawl block would not allow", d.PctDelta),
			Strength:  model.StrengthModerate,
		})
	}
	f.MissingData = append(f.MissingData, "server log sample confirming crawler requests stopped")
	return f
}

func gatherCanonical(in Input, st checkStats) Finding {
	var f Finding
	if st.total == 0 {
		f.MissingData = append(f.MissingData, "canonical tag checks for the affected pages")
		return f
	}
	if st.canonicalOff == 0 {
		return f
	}

	strength := model.StrengthModerate
	if float64(st.canonicalOff)/float64(st.total) >= 0.3 {
		strength = model.StrengthStrong
	}
	f.Evidence = append(f.Evidence, model.EvidenceBlock{
		Type:      model.EvidenceCheck,
		Statement: fmt.Sprintf("%d of %d checked pages canonicalize to a different URL (e.g. %s)", st.canonicalOff, st.total, st.exampleCanonical),
		Data:      map[string]any{"mismatched": st.canonicalOff, "checked": st.total, "example_url": st.exampleCanonical},
		Strength:  strength,
	})
	if d := in.Deltas.Search.Impressions; d.Available() && !d.Drop {
		f.Disconfirming = append(f.Disconfirming, model.EvidenceBlock{
			Type:      model.EvidenceMetric,
			Statement: "impressions have not fallen, so the canonical targets may still be ranking",
			Strength:  model.StrengthModerate,
		})
	}
	f.MissingData = append(f.MissingData, "index coverage report for the canonical target URLs")
	return f
}

func gatherThinContent(in Input, st checkStats) Finding {
	var f Finding
	if st.total == 0 {
		f.MissingData = append(f.MissingData, "rendered text length checks for the affected pages")
		return f
	}
	if st.thin == 0 {
		return f
	}

	strength := model.StrengthModerate
	if float64(st.thin)/float64(st.total) >= 0.3 {
		strength = model.StrengthStrong
	}
	f.Evidence = append(f.Evidence, model.EvidenceBlock{
		Type:      model.EvidenceCheck,
		Statement: fmt.Sprintf("%d of %d checked pages render under %d characters of text (e.g. %s)", st.thin, st.total, in.Cfg.MinTextLength, st.exampleThin),
		Data:      map[string]any{"thin": st.thin, "checked": st.total, "min_text_length": in.Cfg.MinTextLength, "example_url": st.exampleThin},
		Strength:  strength,
	})
	f.MissingData = append(f.MissingData, "render comparison against a pre-regression snapshot")
	return f
}

func gatherStructuredData(in Input, st checkStats) Finding {
	var f Finding
	if st.total == 0 || st.noStructured == 0 {
		return f
	}

	ctrDropped := hasAnomaly(in.Anomalies, model.AnomalyCTRDrop)
	strength := model.StrengthWeak
	if ctrDropped {
		strength = model.StrengthModerate
	}
	f.Evidence = append(f.Evidence, model.EvidenceBlock{
		Type:      model.EvidenceCheck,
		Statement: fmt.Sprintf("%d of %d checked pages have no structured data markup", st.noStructured, st.total),
		Data:      map[string]any{"missing_markup": st.noStructured, "checked": st.total},
		Strength:  strength,
	})
	if !ctrDropped {
		f.Disconfirming = append(f.Disconfirming, model.EvidenceBlock{
			Type:      model.EvidenceMetric,
			Statement: "CTR has not dropped, which lost rich results would normally depress",
			Strength:  model.StrengthModerate,
		})
	}
	f.MissingData = append(f.MissingData, "rich-result impression trend for the affected templates")
	return f
}

func gatherInternalLinking(in Input, st checkStats, hasDominant bool) Finding {
	var f Finding
	if st.total == 0 || st.orphaned == 0 {
		return f
	}

	strength := model.StrengthModerate
	if hasDominant && float64(st.orphaned)/float64(st.total) >= 0.3 {
		strength = model.StrengthStrong
	}
	f.Evidence = append(f.Evidence, model.EvidenceBlock{
		Type:      model.EvidenceCheck,
		Statement: fmt.Sprintf("%d of %d checked pages have no internal links pointing at them", st.orphaned, st.total),
		Data:      map[string]any{"orphaned": st.orphaned, "checked": st.total},
		Strength:  strength,
	})
	f.MissingData = append(f.MissingData, "site-wide link graph from before the regression")
	return f
}

func gatherRedirects(in Input, st checkStats) Finding {
	var f Finding
	if st.total == 0 {
		f.MissingData = append(f.MissingData, "HTTP status checks for the affected pages")
		return f
	}

	if st.httpErrors > 0 {
		f.Evidence = append(f.Evidence, model.EvidenceBlock{
			Type:      model.EvidenceCheck,
			Statement: fmt.Sprintf("%d of %d checked pages return HTTP errors (e.g. %s)", st.httpErrors, st.total, st.exampleError),
			Data:      map[string]any{"errors": st.httpErrors, "checked": st.total, "example_url": st.exampleError},
			Strength:  model.StrengthStrong,
		})
	}
	if st.redirected > 0 {
		f.Evidence = append(f.Evidence, model.EvidenceBlock{
			Type:      model.EvidenceCheck,
			Statement: fmt.Sprintf("%d of %d checked pages redirect away from their indexed URL", st.redirected, st.total),
			Data:      map[string]any{"redirected": st.redirected, "checked": st.total},
			Strength:  model.StrengthModerate,
		})
	}
	if len(f.Evidence) > 0 {
		f.MissingData = append(f.MissingData, "redirect map from before the regression window")
	}
	return f
}

func gatherContentIntent(in Input) Finding {
	var f Finding
	pos := in.Deltas.Search.Position
	imp := in.Deltas.Search.Impressions
	if !pos.Available() {
		f.MissingData = append(f.MissingData, "average position data for the comparison windows")
		return f
	}
	if !pos.Drop {
		return f
	}

	strength := model.StrengthWeak
	if imp.Available() && !imp.Drop {
		// Rankings slid while the pages still surface: relevance, not
		// indexation.
		strength = model.StrengthModerate
	}
	f.Evidence = append(f.Evidence, model.EvidenceBlock{
		Type:      model.EvidenceMetric,
		Statement: fmt.Sprintf("average position worsened %.1f%% while the pages remain indexed", pos.PctDelta),
		Data:      map[string]any{"position_pct": pos.PctDelta},
		Strength:  strength,
	})
	f.MissingData = append(f.MissingData, "query-level ranking comparison for the losing pages")
	return f
}

func gatherSERPLayout(in Input) Finding {
	var f Finding
	ctr := in.Deltas.Search.CTR
	imp := in.Deltas.Search.Impressions
	pos := in.Deltas.Search.Position
	if !ctr.Available() {
		f.MissingData = append(f.MissingData, "CTR data for the comparison windows")
		return f
	}
	if !ctr.Drop {
		return f
	}

	stableVisibility := imp.Available() && !imp.Drop && pos.Available() && !pos.Drop
	strength := model.StrengthWeak
	if stableVisibility {
		// The classic SERP-feature signature: same rankings, same
		// impressions, fewer clicks.
		strength = model.StrengthModerate
	}
	f.Evidence = append(f.Evidence, model.EvidenceBlock{
		Type:      model.EvidenceComparison,
		Statement: fmt.Sprintf("CTR fell %.1f%% with impressions %+.1f%% and position %+.1f%%", ctr.PctDelta, imp.PctDelta, pos.PctDelta),
		Data:      map[string]any{"ctr_pct": ctr.PctDelta, "impressions_pct": imp.PctDelta, "position_pct": pos.PctDelta},
		Strength:  strength,
	})
	f.MissingData = append(f.MissingData, "SERP feature snapshot for the top losing queries")
	return f
}

func gatherAlgorithmUpdate(in Input, st checkStats, hasDominant bool) Finding {
	var f Finding
	clicks := in.Deltas.Search.Clicks
	if !clicks.Available() || !clicks.Drop {
		return f
	}

	// A broad decline with clean technical checks and no single losing
	// cluster fits an external ranking shift.
	technicalFindings := st.robotsBlocked + st.noindex + st.canonicalOff + st.httpErrors + st.thin
	if hasDominant {
		f.Disconfirming = append(f.Disconfirming, model.EvidenceBlock{
			Type:      model.EvidenceComparison,
			Statement: "the loss concentrates in a single page cluster, which an algorithm update rarely does",
			Strength:  model.StrengthModerate,
		})
	}
	strength := model.StrengthWeak
	if !hasDominant && st.total > 0 && technicalFindings == 0 {
		strength = model.StrengthModerate
	}
	f.Evidence = append(f.Evidence, model.EvidenceBlock{
		Type:      model.EvidenceMetric,
		Statement: fmt.Sprintf("clicks fell %.1f%% across clusters without a matching technical finding", clicks.PctDelta),
		Data:      map[string]any{"clicks_pct": clicks.PctDelta, "technical_findings": technicalFindings},
		Strength:  strength,
	})
	f.MissingData = append(f.MissingData, "competitor visibility trend for the same query set")
	return f
}

func gatherSeasonality(in Input, st checkStats) Finding {
	var f Finding
	clicks := in.Deltas.Search.Clicks
	if !clicks.Available() || !clicks.Drop {
		return f
	}
	technicalFindings := st.robotsBlocked + st.noindex + st.canonicalOff + st.httpErrors + st.thin
	if technicalFindings > 0 {
		return f
	}

	f.Evidence = append(f.Evidence, model.EvidenceBlock{
		Type:      model.EvidenceMetric,
		Statement: fmt.Sprintf("clicks fell %.1f%% with no technical finding; demand may simply be lower", clicks.PctDelta),
		Data:      map[string]any{"clicks_pct": clicks.PctDelta},
		Strength:  model.StrengthWeak,
	})
	f.MissingData = append(f.MissingData, "year-over-year comparison for the regression window")
	return f
}

func gatherTracking(in Input, st checkStats) Finding {
	var f Finding
	if !hasAnomaly(in.Anomalies, model.AnomalyTrackingGap) {
		return f
	}

	missingTag := st.noTag > 0
	if missingTag {
		f.Evidence = append(f.Evidence, model.EvidenceBlock{
			Type:      model.EvidenceCheck,
			Statement: fmt.Sprintf("%d of %d checked pages are missing the analytics tag (e.g. %s)", st.noTag, st.total, st.exampleNoTag),
			Data:      map[string]any{"missing_tag": true, "untagged": st.noTag, "checked": st.total, "example_url": st.exampleNoTag},
			Strength:  model.StrengthStrong,
		})
	}
	for _, a := range in.Anomalies {
		if a.Type != model.AnomalyTrackingGap {
			continue
		}
		f.Evidence = append(f.Evidence, model.EvidenceBlock{
			Type:      model.EvidenceComparison,
			Statement: fmt.Sprintf("%s dropped %.1f%% while search clicks held steady", a.Metric, a.DeltaPct),
			Data:      map[string]any{"metric": a.Metric, "delta_pct": a.DeltaPct, "missing_tag": missingTag},
			Strength:  model.StrengthModerate,
		})
	}
	if !missingTag {
		f.MissingData = append(f.MissingData, "tag coverage check for the affected landing pages")
	}
	return f
}

func hasAnomaly(anomalies []model.Anomaly, t model.AnomalyType) bool {
	for _, a := range anomalies {
		if a.Type == t {
			return true
		}
	}
	return false
}

func summarize(entry CatalogEntry, f Finding, conf model.Confidence) string {
	lead := f.Evidence[0].Statement
	return fmt.Sprintf("%s (%s confidence): %s", entry.Title, conf, lead)
}
