// Copyright (c) 2025 the trackcore authors. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.8.6
//

// Package trackcore is the perception-and-tracking core of an autonomous
// targeting pipeline. Given a stream of timestamped armor-plate pose
// observations it maintains per-target motion models, decides which target
// is currently trackable, predicts where each target will be at a future
// time, and emits firing decisions. It also hosts anti-top (spinning-target)
// and energy-rune estimators built on the same Kalman/EKF kernels.
//
// The package is single-threaded and synchronous: every exported method is
// a pure function of the receiver's current state and its arguments. There
// is no background goroutine, timer, or I/O. Callers that drive the core
// from multiple producer goroutines must serialise access themselves.
package trackcore
