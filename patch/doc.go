// Package patch generates and applies line-oriented unified diffs.
//
// Generate computes the hunks turning one line sequence into another, and
// Diff.Bytes renders them in the unified format understood by patch(1):
//
//	d, err := patch.Generate(patch.SplitLines(before), patch.SplitLines(after))
//	if patch.ShouldSendDiff(d, int64(len(after))) {
//	    send(d.Bytes())
//	}
//
// On the receiving side the hunks are parsed and applied to a stream of the
// original content. Every context and removed line is verified against the
// original, so a diff made for different content fails with a
// *MalformedDiffError instead of corrupting the output:
//
//	d, err := patch.ParseDiff(body)
//	err = patch.NewPatcher(original, d.Hunks).Patch(staging)
package patch
