// Package meter turns parsed stories into per-cycle category totals.
//
// classify.go buckets a story into Current, Previous or Older by comparing
// its creation time with two cycle start dates (inclusive). aggregate.go sums
// points per raw workflow state, then folds the sums into the fixed
// categories done, started, planned and icebox through a StateMap.
// merge.go pairs current and previous totals into the chart series and
// refuses to merge totals whose category sets differ.
//
// service.go runs the whole pipeline against a store.KV: Refresh replaces
// both stored totals in one SetMany, Display reads them back merged.
// setup.go seeds defaults and edits the cycle dates.
package meter
