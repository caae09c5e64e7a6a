// Package hypothesis evaluates a fixed catalog of candidate root causes
// against a run's anomalies, cluster losses and page checks, scores
// confidence from the gathered evidence, and ranks the survivors.
package hypothesis

import (
	"github.com/rotisserie/eris"

	"github.com/rankpulse/diagnose-cli/internal/model"
)

// CatalogEntry describes one candidate root cause: its static priority tier,
// default owner, and remediation step templates. Declaration order is the
// final ranking tiebreak, so the order of Catalog is part of the contract.
type CatalogEntry struct {
	Key      model.HypothesisKey
	Priority model.Priority
	Owner    model.Owner
	Title    string
	Steps    []string
}

// Catalog is the versioned hypothesis catalog. P0 keys are site-breaking
// technical causes, P1 structural technical causes, P2 content/SERP causes,
// P3 external causes. Priority, owner, title and steps can be adjusted per
// deployment through a catalog overrides file.
var Catalog = []CatalogEntry{
	{
		Key:      model.HypRobotsOrNoindex,
		Priority: model.PriorityP0,
		Owner:    model.OwnerDEV,
		Title:    "Pages blocked by robots.txt or noindex",
		Steps: []string{
			"Diff robots.txt against the last known-good version and remove the offending Disallow rules",
			"Crawl the affected cluster %s and list every URL returning a noindex directive",
			"Request reindexing for the affected URLs once unblocked",
		},
	},
	{
		Key:      model.HypCanonicalMismatch,
		Priority: model.PriorityP0,
		Owner:    model.OwnerDEV,
		Title:    "Canonical tags point away from ranking URLs",
		Steps: []string{
			"Audit canonical tags on the affected cluster %s and restore self-referencing canonicals",
			"Check the template that renders the canonical element for a recent change",
			"Verify canonicals resolve with HTTP 200 and are not redirected",
		},
	},
	{
		Key:      model.HypThinContentOrSSR,
		Priority: model.PriorityP0,
		Owner:    model.OwnerDEV,
		Title:    "Rendered content collapsed below indexable threshold",
		Steps: []string{
			"Render affected pages with a headless crawler and compare text length against the %d character floor",
			"Check the SSR/prerender service logs for errors in the regression window",
			"Restore server-side rendering or restore the removed content blocks",
		},
	},
	{
		Key:      model.HypStructuredData,
		Priority: model.PriorityP1,
		Owner:    model.OwnerDEV,
		Title:    "Structured data markup broke",
		Steps: []string{
			"Validate structured data on the affected templates",
			"Compare rich-result impressions before and after the regression window",
			"Redeploy the last markup version that validated cleanly",
		},
	},
	{
		Key:      model.HypInternalLinking,
		Priority: model.PriorityP1,
		Owner:    model.OwnerDEV,
		Title:    "Internal links to the affected pages disappeared",
		Steps: []string{
			"Crawl from the homepage and measure click depth for the affected cluster %s",
			"Check recent navigation/footer template changes for removed link blocks",
			"Restore internal links or add the cluster to the sitemap feed",
		},
	},
	{
		Key:      model.HypRedirectOrHTTP,
		Priority: model.PriorityP1,
		Owner:    model.OwnerDEV,
		Title:    "Redirect chains or HTTP errors on ranking URLs",
		Steps: []string{
			"List URLs in %s returning non-200 status and map each to its redirect target",
			"Collapse redirect chains to a single hop",
			"Fix or remove URLs returning 4xx/5xx",
		},
	},
	{
		Key:      model.HypContentIntent,
		Priority: model.PriorityP2,
		Owner:    model.OwnerSEO,
		Title:    "Content no longer matches query intent",
		Steps: []string{
			"Review the top losing queries and compare against the current top-ranking results",
			"Refresh the affected pages to match the dominant intent",
			"Track position recovery over the next two weeks",
		},
	},
	{
		Key:      model.HypSERPLayoutCTR,
		Priority: model.PriorityP2,
		Owner:    model.OwnerSEO,
		Title:    "SERP layout change depressed click-through",
		Steps: []string{
			"Capture the current SERP for the top losing queries and note new features above the organic results",
			"Rewrite titles and descriptions for the affected cluster %s to compete with the new layout",
			"Evaluate targeting the new SERP feature directly",
		},
	},
	{
		Key:      model.HypAlgorithmUpdate,
		Priority: model.PriorityP3,
		Owner:    model.OwnerSEO,
		Title:    "Search algorithm update or industry-wide shift",
		Steps: []string{
			"Check algorithm-update trackers for confirmed updates in the regression window",
			"Compare visibility against competitors for the same query set",
			"Hold structural changes until the update finishes rolling out",
		},
	},
	{
		Key:      model.HypSeasonality,
		Priority: model.PriorityP3,
		Owner:    model.OwnerSEO,
		Title:    "Seasonal demand dip",
		Steps: []string{
			"Compare the regression window against the same period last year",
			"Check query-level demand trends for the losing queries",
			"Annotate the dip and re-evaluate after the seasonal window",
		},
	},
	{
		Key:      model.HypTrackingBroken,
		Priority: model.PriorityP1,
		Owner:    model.OwnerADS,
		Title:    "Analytics tracking misconfigured",
		Steps: []string{
			"Verify the analytics tag fires on the affected pages %s",
			"Check tag manager publish history for changes in the regression window",
			"Reconcile analytics sessions against search clicks once the tag is restored",
		},
	},
}

// catalogIndex maps each key to its declaration position for tiebreaks.
var catalogIndex = func() map[model.HypothesisKey]int {
	idx := make(map[model.HypothesisKey]int, len(Catalog))
	for i, e := range Catalog {
		if _, dup := idx[e.Key]; dup {
			panic("hypothesis: duplicate catalog key " + string(e.Key))
		}
		idx[e.Key] = i
	}
	return idx
}()

// Entry returns the catalog entry for a key.
func Entry(key model.HypothesisKey) (CatalogEntry, error) {
	i, ok := catalogIndex[key]
	if !ok {
		return CatalogEntry{}, eris.Errorf("hypothesis: unknown key %s", key)
	}
	return Catalog[i], nil
}

// PriorityFor returns the static priority tier for a key. The catalog covers
// every key, so this is total; unknown keys indicate a programming error and
// map to the lowest tier.
func PriorityFor(key model.HypothesisKey) model.Priority {
	if i, ok := catalogIndex[key]; ok {
		return Catalog[i].Priority
	}
	return model.PriorityP3
}
