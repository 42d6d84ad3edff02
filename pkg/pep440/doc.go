// Package pep440 implements Python package versions and version constraints.
//
// # Overview
//
// Python packages are versioned according to PEP 440. A version carries an
// optional epoch, a release tuple, and optional pre-release, post-release,
// development and local segments:
//
//	1!2.0.1rc3.post1.dev0+ubuntu.1
//
// [Parse] turns text into a [Version] and [Compare] orders two versions. The
// order is total: release segments compare component-wise with missing
// segments treated as zero, development releases sort before pre-releases,
// pre-releases before the final release, and post-releases after it. Local
// labels never affect ordering.
//
// Real index data contains versions that don't follow the grammar. Parse
// accepts them leniently by harvesting digit runs, so a single odd release
// never prevents resolution. Only empty input is rejected.
//
// # Constraints
//
// A [Constraint] pairs an [Operator] with a version, and a [Specifier] is a
// conjunction of constraints:
//
//	spec, _ := pep440.ParseSpecifier(">=1.4,<2,!=1.5.*")
//	spec.Allows(pep440.MustParse("1.6.2")) // true
//
// The compatible release operator desugars to a lower bound plus a prefix
// match, so "~=1.4.5" admits 1.4.5 up to but excluding 1.5.
//
// # Concurrency
//
// Everything in this package is pure and safe for concurrent use.
package pep440
