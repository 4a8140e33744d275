// Package tracking owns the per-enemy estimation loop.
//
// A Tracker folds one optional observation per detection cycle through the
// lifecycle machine, the plate switch decision and the error-state filter,
// then publishes the resulting estimate for fire control. A Registry holds
// one Tracker per known enemy and steps them in parallel.
//
// Dependency rule: tracking may depend on eskf, enemy, lifecycle, config,
// monitoring and timeutil. No storage code is allowed in this package.
package tracking
