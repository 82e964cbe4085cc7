// Package gerber defines the decoded Gerber primitive model consumed by the
// CAM pipeline: a closed set of primitive variants, their polarity, and the
// typed errors every pipeline stage reports against them.
//
// Coordinates are millimetres. Angles are radians.
package gerber
