// Package roicorrect refines a user-drawn ROI so detected bosses line up with the
// cut templates.
//
// The search is exhaustive over a small grid of translations, scales and rotations
// around the input ROI. A candidate only replaces the input when it beats the input
// score by the configured improvement margin, so a correction never makes the fit worse.
package roicorrect
