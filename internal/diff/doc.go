// Package diff decomposes unified-diff patches into hunks and renders
// them into line-numbered text blocks suitable for LLM prompts.
//
// The new-side rendering numbers added and context lines so the model can
// report precise line ranges. Context lines in the first and last three
// body positions of a hunk that contains additions are left unnumbered;
// anchoring comments on boundary context is almost always noise.
package diff
