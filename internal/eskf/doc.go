// Package eskf implements a dimension-generic error-state Kalman filter.
//
// The filter owns only the error state, its covariance and the noise
// matrices. What the nominal state means, how it propagates and how error
// is folded back into it is supplied by a Model, so the numeric engine can
// be exercised in isolation from any tracking policy.
//
// Dependency rule: eskf depends on gonum/mat and the monitoring logger
// only. It never imports tracking, lifecycle or enemy packages.
package eskf
