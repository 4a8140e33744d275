// Package enemy describes the opposing units: their identities and plate
// layouts, the nominal state the tracker estimates for each of them, the
// rotating-unit motion model the filter linearizes against, and the plate
// switch decision.
//
// Angles are degrees and lengths millimetres throughout.
package enemy
