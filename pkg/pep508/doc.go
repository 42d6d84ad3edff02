// Package pep508 parses Python dependency specifications and evaluates
// environment markers.
//
// A requirement names a project, optionally requests extras, constrains the
// version, and may be guarded by a marker:
//
//	req, err := pep508.ParseRequirement(`httpx[http2]>=0.24 ; python_version >= "3.8"`)
//	if req.AppliesTo(pep508.DefaultEnvironment("3.11"), nil) {
//		// depend on httpx
//	}
//
// Project names are normalized on parse (see [NormalizeName]), so
// "Zope.Interface" and "zope-interface" refer to the same project.
package pep508
